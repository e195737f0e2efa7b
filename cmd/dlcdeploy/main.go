// Package main is the CLI entry point for dlcdeploy.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/dlc_deploy/internal/daemon"
	"github.com/eliteGoblin/focusd/dlc_deploy/internal/domain"
	"github.com/eliteGoblin/focusd/dlc_deploy/internal/selection"
	"github.com/eliteGoblin/focusd/dlc_deploy/internal/usecase"
)

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

// exitCode is set by commands that finish with a partial or failed report.
var exitCode = exitSuccess

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitFailed)
	}
	os.Exit(exitCode)
}

var rootCmd = &cobra.Command{
	Use:   "dlcdeploy",
	Short: "Install and remove DLC unlocker shims and the loader proxy",
	Long: `dlcdeploy deploys the platform DLC unlocker shims and the Koaloader proxy
into a game directory, and removes them again.

The directory's executables decide which 32-bit and 64-bit payloads are written.
Files that are in use are never patched; such runs report "partial" and can be
retried with --wait.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Deploy the loader proxy and the platform shims",
	Long: `Deploys the selected loader proxy and the shims of the selected platform,
removes competing proxies and stale shims, and reconciles every configuration file.`,
	RunE: runInstall,
}

var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove everything dlcdeploy may have deployed",
	Long: `Removes every loader proxy and shim whose content matches a bundled payload.
Same-named files with other content are kept. Configuration files are removed
unless --keep-config is given.`,
	RunE: runUninstall,
}

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show what install would change",
	Long:  `Computes the install operations and configuration diffs without touching the directory.`,
	RunE:  runPlan,
}

var classifyCmd = &cobra.Command{
	Use:   "classify [file...]",
	Short: "Print the architecture of executables",
	Long:  `Classifies the given files, or every executable in --dir, as 32-bit, 64-bit or unknown.`,
	RunE:  runClassify,
}

var proxiesCmd = &cobra.Command{
	Use:   "proxies",
	Short: "List the available loader proxy names",
	RunE:  runProxies,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Prints version, commit, and build time. Use --json for machine-readable output.`,
	Run:   runVersion,
}

var (
	configPath   string
	verbose      bool
	jsonOutput   bool
	dirFlag      string
	platformFlag string
	proxyFlag    string
	addOnFlags   []string
	manifestPath string
	waitFlag     bool
	keepConfig   bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Settings file (default $XDG_CONFIG_HOME/dlcdeploy/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose development logging")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Machine-readable output")

	for _, cmd := range []*cobra.Command{installCmd, planCmd} {
		cmd.Flags().StringVarP(&dirFlag, "dir", "d", "", "Game directory")
		cmd.Flags().StringVarP(&platformFlag, "platform", "p", "", "Platform: "+platformNames())
		cmd.Flags().StringVar(&proxyFlag, "proxy", "", "Loader proxy name (see 'dlcdeploy proxies')")
		cmd.Flags().StringArrayVarP(&addOnFlags, "addon", "a", nil, "Enabled add-on ID (repeatable)")
		cmd.Flags().StringVarP(&manifestPath, "manifest", "m", "", "YAML manifest listing selections")
	}
	installCmd.Flags().BoolVar(&waitFlag, "wait", false, "Retry installs deferred by files in use")

	uninstallCmd.Flags().StringVarP(&dirFlag, "dir", "d", "", "Game directory")
	uninstallCmd.Flags().StringVarP(&manifestPath, "manifest", "m", "", "YAML manifest listing selections")
	uninstallCmd.Flags().BoolVar(&keepConfig, "keep-config", false, "Keep configuration files")

	classifyCmd.Flags().StringVarP(&dirFlag, "dir", "d", "", "Classify every executable in this directory")

	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(uninstallCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(proxiesCmd)
	rootCmd.AddCommand(versionCmd)
}

func platformNames() string {
	names := make([]string, 0, len(domain.Platforms()))
	for _, p := range domain.Platforms() {
		names = append(names, string(p))
	}
	return strings.Join(names, ", ")
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// selections builds the targets from --manifest or from --dir and friends.
func (a *app) selections() ([]domain.TargetSelection, error) {
	if manifestPath != "" {
		reg, err := selection.LoadManifest(manifestPath, a.fs)
		if err != nil {
			return nil, err
		}
		for _, dropped := range reg.Validate(a.fs) {
			a.logger.Warn("skipping selection, directory is gone",
				zap.String("name", dropped.Label()),
				zap.String("dir", dropped.Directory))
		}
		sels := reg.All()
		if len(sels) == 0 {
			return nil, errors.New("manifest has no usable selections")
		}
		for i := range sels {
			if sels[i].ProxyName == "" {
				sels[i].ProxyName = a.settings.DefaultProxy
			}
		}
		return sels, nil
	}

	if dirFlag == "" {
		return nil, errors.New("--dir or --manifest is required")
	}
	platform := platformFlag
	if platform == "" {
		platform = a.settings.DefaultPlatform
	}
	proxy := proxyFlag
	if proxy == "" {
		proxy = a.settings.DefaultProxy
	}

	reg := selection.NewRegistry()
	sel, err := reg.Add(domain.TargetSelection{
		Directory:     a.fs.ExpandHome(dirFlag),
		Platform:      domain.Platform(platform),
		ProxyName:     proxy,
		EnabledAddOns: addOnFlags,
	})
	if err != nil {
		return nil, err
	}
	return []domain.TargetSelection{sel}, nil
}

func runInstall(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	sels, err := a.selections()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	attempts := 1
	if waitFlag {
		attempts = a.settings.RetryAttempts
	}
	interval, _ := a.settings.Interval()
	retrier := daemon.NewRetrier(daemon.RetryConfig{Interval: interval, MaxAttempts: attempts}, a.deployer, a.logger)

	results, runErr := retrier.Run(ctx, sels)

	var out []reportJSON
	for _, res := range results {
		if res.Attempts == 0 {
			exitCode = worse(exitCode, exitPartial)
			if jsonOutput {
				out = append(out, reportJSON{
					Operation: string(domain.OperationInstall),
					Name:      res.Selection.Name,
					Directory: res.Selection.Directory,
					Status:    string(domain.StatusPartial),
					Error:     "not attempted: interrupted",
					Results:   []fileResultJSON{},
				})
				continue
			}
			fmt.Fprintf(os.Stderr, "%s: not attempted: interrupted\n", res.Selection.Label())
			continue
		}
		exitCode = worse(exitCode, exitCodeFor(res.Status()))
		if jsonOutput {
			var entry reportJSON
			if res.Report != nil {
				entry = installJSON(res.Report)
			} else {
				entry = reportJSON{Operation: string(domain.OperationInstall), Directory: res.Selection.Directory, Status: string(domain.StatusFailed), Results: []fileResultJSON{}}
			}
			entry.Attempts = res.Attempts
			if res.Err != nil {
				entry.Error = res.Err.Error()
			}
			out = append(out, entry)
			continue
		}
		if res.Err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", res.Selection.Label(), res.Err)
			continue
		}
		printInstallReport(cmd.OutOrStdout(), res.Report)
	}

	if jsonOutput {
		if err := writeJSON(cmd.OutOrStdout(), out); err != nil {
			return err
		}
	}
	if runErr != nil {
		if !errors.Is(runErr, context.Canceled) {
			return runErr
		}
		exitCode = worse(exitCode, exitPartial)
	}
	return nil
}

func runUninstall(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	var dirs []string
	if manifestPath != "" || dirFlag == "" {
		sels, err := a.selections()
		if err != nil {
			return err
		}
		for _, sel := range sels {
			dirs = append(dirs, sel.Directory)
		}
	} else {
		dirs = []string{a.fs.ExpandHome(dirFlag)}
	}

	ctx, cancel := signalContext()
	defer cancel()

	var out []reportJSON
	for _, dir := range dirs {
		report, err := a.uninstaller.Uninstall(ctx, dir, !keepConfig)
		if err != nil {
			exitCode = exitFailed
			fmt.Fprintf(os.Stderr, "%s: %v\n", dir, err)
			continue
		}
		exitCode = worse(exitCode, exitCodeFor(report.Status()))
		if jsonOutput {
			out = append(out, toJSON(&report.Report))
			continue
		}
		printReport(cmd.OutOrStdout(), dir, &report.Report)
	}

	if jsonOutput {
		return writeJSON(cmd.OutOrStdout(), out)
	}
	return nil
}

func runPlan(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	sels, err := a.selections()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	var plans []*domain.Plan
	for _, sel := range sels {
		plan, err := a.deployer.Plan(ctx, sel)
		if err != nil {
			exitCode = exitFailed
			fmt.Fprintf(os.Stderr, "%s: %v\n", sel.Label(), err)
			continue
		}
		if jsonOutput {
			plans = append(plans, plan)
			continue
		}
		printPlan(cmd.OutOrStdout(), plan)
	}

	if jsonOutput {
		return writeJSON(cmd.OutOrStdout(), plansJSON(plans))
	}
	return nil
}

type operationJSON struct {
	Action  string `json:"action"`
	Path    string `json:"path"`
	Family  string `json:"family,omitempty"`
	Arch    string `json:"arch,omitempty"`
	Changes bool   `json:"changes"`
}

type planJSON struct {
	Directory  string            `json:"directory"`
	Platform   string            `json:"platform"`
	Proxy      string            `json:"proxy"`
	Has32      bool              `json:"has32"`
	Has64      bool              `json:"has64"`
	Operations []operationJSON   `json:"operations"`
	Diffs      map[string]string `json:"diffs"`
}

func plansJSON(plans []*domain.Plan) []planJSON {
	out := make([]planJSON, 0, len(plans))
	for _, p := range plans {
		pj := planJSON{
			Directory:  p.Selection.Directory,
			Platform:   string(p.Selection.Platform),
			Proxy:      p.Selection.ProxyName,
			Has32:      p.Scan.Has32,
			Has64:      p.Scan.Has64,
			Operations: make([]operationJSON, 0, len(p.Operations)),
			Diffs:      make(map[string]string, len(p.Previews)),
		}
		for _, op := range p.Operations {
			oj := operationJSON{Action: string(op.Action), Path: op.Path, Family: op.Family, Changes: op.Changes}
			if op.Payload != nil {
				oj.Arch = op.Payload.Architecture.String()
			}
			pj.Operations = append(pj.Operations, oj)
		}
		for _, preview := range p.Previews {
			pj.Diffs[preview.Path] = preview.Diff
		}
		out = append(out, pj)
	}
	return out
}

func runClassify(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	paths := args
	if len(paths) == 0 {
		if dirFlag == "" {
			return errors.New("pass files or --dir")
		}
		paths, err = a.fs.ListFiles(a.fs.ExpandHome(dirFlag), usecase.ExecutableExt)
		if err != nil {
			return err
		}
	}

	type classified struct {
		Path string `json:"path"`
		Arch string `json:"arch"`
	}
	out := make([]classified, 0, len(paths))
	for _, p := range paths {
		arch, err := a.classifier.Classify(p)
		if err != nil {
			exitCode = exitFailed
			fmt.Fprintf(os.Stderr, "%s: %v\n", p, err)
			continue
		}
		out = append(out, classified{Path: p, Arch: arch.String()})
	}

	if jsonOutput {
		return writeJSON(cmd.OutOrStdout(), out)
	}
	for _, c := range out {
		fmt.Fprintf(cmd.OutOrStdout(), "%-8s %s\n", c.Arch, c.Path)
	}
	return nil
}

func runProxies(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	names := a.catalog.ListNames()
	if jsonOutput {
		return writeJSON(cmd.OutOrStdout(), names)
	}
	for _, name := range names {
		marker := " "
		if strings.EqualFold(name, a.settings.DefaultProxy) {
			marker = "*"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %-10s %s\n", marker, name, a.catalog.ProxyFileName(name))
	}
	return nil
}

func runVersion(cmd *cobra.Command, args []string) {
	if jsonOutput {
		fmt.Printf(`{"version":"%s","commit":"%s","build_time":"%s"}`+"\n",
			Version, Commit, BuildTime)
	} else {
		fmt.Printf("dlcdeploy %s (commit: %s, built: %s)\n",
			Version, Commit, BuildTime)
	}
}
