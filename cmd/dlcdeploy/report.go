package main

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/fatih/color"

	"github.com/eliteGoblin/focusd/dlc_deploy/internal/domain"
	"github.com/eliteGoblin/focusd/dlc_deploy/internal/infra"
)

// Exit codes: success, failed, partial.
const (
	exitSuccess = 0
	exitFailed  = 1
	exitPartial = 2
)

type fileResultJSON struct {
	Path    string `json:"path"`
	Action  string `json:"action"`
	Outcome string `json:"outcome"`
	Error   string `json:"error,omitempty"`
}

type reportJSON struct {
	RunID      string           `json:"run_id,omitempty"`
	Operation  string           `json:"operation"`
	Name       string           `json:"name,omitempty"`
	Directory  string           `json:"directory"`
	Status     string           `json:"status"`
	Has32      *bool            `json:"has32,omitempty"`
	Has64      *bool            `json:"has64,omitempty"`
	Attempts   int              `json:"attempts,omitempty"`
	DurationMs int64            `json:"duration_ms"`
	Error      string           `json:"error,omitempty"`
	Results    []fileResultJSON `json:"results"`
}

func toJSON(r *domain.Report) reportJSON {
	out := reportJSON{
		RunID:      r.RunID,
		Operation:  string(r.Operation),
		Directory:  r.Directory,
		Status:     string(r.Status()),
		DurationMs: r.DurationMs,
		Results:    make([]fileResultJSON, 0, len(r.Results)),
	}
	for _, res := range r.Results {
		fr := fileResultJSON{Path: res.Path, Action: string(res.Action), Outcome: string(res.Outcome)}
		if res.Err != nil {
			fr.Error = res.Err.Error()
		}
		out.Results = append(out.Results, fr)
	}
	return out
}

func installJSON(r *domain.InstallReport) reportJSON {
	out := toJSON(&r.Report)
	out.Name = r.Selection.Name
	out.Has32, out.Has64 = &r.Has32, &r.Has64
	return out
}

func writeJSON(w io.Writer, v any) error {
	data, err := infra.EncodeJSON(v)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func outcomeLabel(o domain.Outcome) string {
	label := fmt.Sprintf("%-14s", o)
	switch o {
	case domain.OutcomeWritten, domain.OutcomeDeleted:
		return color.GreenString(label)
	case domain.OutcomeKeptForeign, domain.OutcomeSkippedLocked, domain.OutcomeDeferred:
		return color.YellowString(label)
	case domain.OutcomeFailed:
		return color.RedString(label)
	default:
		return color.New(color.Faint).Sprint(label)
	}
}

func statusLabel(s domain.Status) string {
	switch s {
	case domain.StatusSuccess:
		return color.GreenString(string(s))
	case domain.StatusPartial:
		return color.YellowString(string(s))
	default:
		return color.RedString(string(s))
	}
}

func printReport(w io.Writer, title string, r *domain.Report) {
	fmt.Fprintf(w, "\n=== %s %s ===\n", r.Operation, title)
	fmt.Fprintf(w, "Directory: %s\n", r.Directory)
	if len(r.Results) == 0 {
		fmt.Fprintln(w, "Nothing to do.")
	}
	for _, res := range r.Results {
		line := fmt.Sprintf("  %s %s", outcomeLabel(res.Outcome), filepath.Base(res.Path))
		if res.Err != nil {
			line += ": " + res.Err.Error()
		}
		fmt.Fprintln(w, line)
	}
	fmt.Fprintf(w, "Status: %s (%dms)\n", statusLabel(r.Status()), r.DurationMs)
}

func printInstallReport(w io.Writer, r *domain.InstallReport) {
	printReport(w, r.Selection.Label(), &r.Report)
}

func printPlan(w io.Writer, p *domain.Plan) {
	fmt.Fprintf(w, "\n=== plan %s ===\n", p.Selection.Label())
	fmt.Fprintf(w, "Directory: %s\n", p.Selection.Directory)
	fmt.Fprintf(w, "Executables: %d (32-bit: %t, 64-bit: %t)\n", len(p.Scan.Executables), p.Scan.Has32, p.Scan.Has64)

	pending := 0
	for _, op := range p.Operations {
		if !op.Changes {
			continue
		}
		pending++
		fmt.Fprintf(w, "  %s %s\n", color.CyanString("%-13s", op.Action), filepath.Base(op.Path))
	}
	if pending == 0 {
		fmt.Fprintln(w, "Up to date.")
	}
	for _, preview := range p.Previews {
		fmt.Fprintln(w)
		fmt.Fprint(w, preview.Diff)
	}
}

// exitCodeFor maps a status to the process exit code.
func exitCodeFor(s domain.Status) int {
	switch s {
	case domain.StatusSuccess:
		return exitSuccess
	case domain.StatusPartial:
		return exitPartial
	default:
		return exitFailed
	}
}

// worse keeps the more severe exit code; failed outranks partial.
func worse(a, b int) int {
	if a == exitFailed || b == exitFailed {
		return exitFailed
	}
	if a == exitPartial || b == exitPartial {
		return exitPartial
	}
	return exitSuccess
}
