//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/eliteGoblin/focusd/dlc_deploy/internal/catalog"
	"github.com/eliteGoblin/focusd/dlc_deploy/internal/domain"
	"github.com/eliteGoblin/focusd/dlc_deploy/internal/infra"
	"github.com/eliteGoblin/focusd/dlc_deploy/internal/shim"
	"github.com/eliteGoblin/focusd/dlc_deploy/test/fixtures"
)

var _ = Describe("Deployer", func() {
	var (
		tmpDir string
		game   *fixtures.FakeGameInstall
		s      *stack
		sel    domain.TargetSelection
		ctx    context.Context
	)

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "dlcdeploy-integration-*")
		Expect(err).NotTo(HaveOccurred())

		game = fixtures.NewFakeGameInstall(filepath.Join(tmpDir, "Game"))
		Expect(game.Create()).To(Succeed())

		s, err = newStack()
		Expect(err).NotTo(HaveOccurred())

		ctx = context.Background()
		sel = domain.TargetSelection{
			Name:          "Fake Game",
			Directory:     game.Dir,
			Platform:      domain.PlatformSteam,
			ProxyName:     "version",
			EnabledAddOns: []string{"1001"},
		}
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	payload := func(name string, arch domain.ArchitectureClass) []byte {
		desc, err := s.catalog.Lookup(name, arch)
		Expect(err).NotTo(HaveOccurred())
		return desc.Bytes
	}
	read := func(name string) []byte {
		data, err := os.ReadFile(filepath.Join(game.Dir, name))
		Expect(err).NotTo(HaveOccurred())
		return data
	}

	Describe("Install", func() {
		Context("with 32-bit and 64-bit executables on Steam", func() {
			It("should deploy both shims, the 64-bit proxy and the shim config", func() {
				report, err := s.deployer.Install(ctx, sel)
				Expect(err).NotTo(HaveOccurred())
				Expect(report.Status()).To(Equal(domain.StatusSuccess))

				Expect(read("SmokeAPI32.dll")).To(Equal(payload(catalog.ShimSmokeAPI, domain.Arch32)))
				Expect(read("SmokeAPI64.dll")).To(Equal(payload(catalog.ShimSmokeAPI, domain.Arch64)))
				Expect(read("version.dll")).To(Equal(payload("version", domain.Arch64)))

				var cfg shim.Config
				Expect(json.Unmarshal(read("SmokeAPI.json"), &cfg)).To(Succeed())
				Expect(cfg.Targets).To(Equal(game.ExecutablePaths()))
				Expect(cfg.DLC).To(ConsistOf("1001"))

				Expect(game.Exists(infra.LoaderConfigFileName)).To(BeFalse())
			})
		})

		Context("when run twice", func() {
			It("should leave the directory unchanged", func() {
				_, err := s.deployer.Install(ctx, sel)
				Expect(err).NotTo(HaveOccurred())
				before, err := game.Files()
				Expect(err).NotTo(HaveOccurred())

				report, err := s.deployer.Install(ctx, sel)
				Expect(err).NotTo(HaveOccurred())
				Expect(report.Count(domain.OutcomeWritten)).To(BeZero())
				Expect(report.Count(domain.OutcomeDeleted)).To(BeZero())
				Expect(game.Files()).To(Equal(before))
			})
		})

		Context("with only a 64-bit executable", func() {
			It("should never write a 32-bit payload", func() {
				Expect(os.Remove(filepath.Join(game.Dir, "game32.exe"))).To(Succeed())

				_, err := s.deployer.Install(ctx, sel)
				Expect(err).NotTo(HaveOccurred())
				Expect(game.Exists("SmokeAPI32.dll")).To(BeFalse())
				Expect(game.Exists("SmokeAPI64.dll")).To(BeTrue())
			})
		})
	})

	Describe("Uninstall", func() {
		Context("after a Steam install", func() {
			It("should leave only the original files", func() {
				_, err := s.deployer.Install(ctx, sel)
				Expect(err).NotTo(HaveOccurred())

				report, err := s.uninstaller.Uninstall(ctx, game.Dir, true)
				Expect(err).NotTo(HaveOccurred())
				Expect(report.Status()).To(Equal(domain.StatusSuccess))
				Expect(game.Files()).To(Equal(game.OriginalFiles()))
			})
		})

		Context("with a same-named file the game shipped", func() {
			It("should keep it", func() {
				shipped := filepath.Join(game.Dir, "version.dll")
				Expect(os.WriteFile(shipped, []byte("vendor version.dll"), 0644)).To(Succeed())

				report, err := s.uninstaller.Uninstall(ctx, game.Dir, true)
				Expect(err).NotTo(HaveOccurred())
				Expect(report.Count(domain.OutcomeKeptForeign)).To(Equal(1))
				Expect(read("version.dll")).To(Equal([]byte("vendor version.dll")))
			})
		})

		Context("on a clean directory", func() {
			It("should do nothing", func() {
				report, err := s.uninstaller.Uninstall(ctx, game.Dir, true)
				Expect(err).NotTo(HaveOccurred())
				Expect(report.Results).To(BeEmpty())
				Expect(report.Status()).To(Equal(domain.StatusSuccess))
			})
		})
	})
})
