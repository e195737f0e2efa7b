//go:build integration && unix

package integration

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/sys/unix"

	"github.com/eliteGoblin/focusd/dlc_deploy/internal/domain"
	"github.com/eliteGoblin/focusd/dlc_deploy/test/fixtures"
)

var _ = Describe("Locked files", func() {
	var (
		tmpDir string
		game   *fixtures.FakeGameInstall
		s      *stack
		sel    domain.TargetSelection
		held   *os.File
	)

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "dlcdeploy-lock-*")
		Expect(err).NotTo(HaveOccurred())

		game = fixtures.NewFakeGameInstall(filepath.Join(tmpDir, "Game"))
		Expect(game.Create()).To(Succeed())

		s, err = newStack()
		Expect(err).NotTo(HaveOccurred())

		sel = domain.TargetSelection{Directory: game.Dir, Platform: domain.PlatformSteam, ProxyName: "version"}
	})

	AfterEach(func() {
		if held != nil {
			_ = unix.Flock(int(held.Fd()), unix.LOCK_UN)
			held.Close()
			held = nil
		}
		os.RemoveAll(tmpDir)
	})

	hold := func(name string) {
		f, err := os.OpenFile(filepath.Join(game.Dir, name), os.O_RDWR|os.O_CREATE, 0644)
		Expect(err).NotTo(HaveOccurred())
		Expect(unix.Flock(int(f.Fd()), unix.LOCK_EX)).To(Succeed())
		held = f
	}

	It("should defer the whole directory when the proxy is in use", func() {
		hold("version.dll")

		report, err := s.deployer.Install(context.Background(), sel)
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Status()).To(Equal(domain.StatusPartial))
		Expect(report.Count(domain.OutcomeSkippedLocked)).To(Equal(1))
		Expect(game.Exists("SmokeAPI64.dll")).To(BeFalse())
		Expect(game.Exists("SmokeAPI.json")).To(BeFalse())
	})

	It("should defer a config change while the installed proxy is in use", func() {
		report, err := s.deployer.Install(context.Background(), sel)
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Status()).To(Equal(domain.StatusSuccess))
		before, err := os.ReadFile(filepath.Join(game.Dir, "SmokeAPI.json"))
		Expect(err).NotTo(HaveOccurred())

		hold("version.dll")
		sel.EnabledAddOns = []string{"2001"}
		report, err = s.deployer.Install(context.Background(), sel)
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Status()).To(Equal(domain.StatusPartial))
		Expect(report.Count(domain.OutcomeSkippedLocked)).To(Equal(1))

		after, err := os.ReadFile(filepath.Join(game.Dir, "SmokeAPI.json"))
		Expect(err).NotTo(HaveOccurred())
		Expect(after).To(Equal(before))
	})

	It("should converge once the file is released", func() {
		hold("version.dll")
		report, err := s.deployer.Install(context.Background(), sel)
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Status()).To(Equal(domain.StatusPartial))

		Expect(unix.Flock(int(held.Fd()), unix.LOCK_UN)).To(Succeed())
		held.Close()
		held = nil

		report, err = s.deployer.Install(context.Background(), sel)
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Status()).To(Equal(domain.StatusSuccess))
		Expect(game.Exists("SmokeAPI64.dll")).To(BeTrue())
	})
})
