package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/streamops/streamcheck/pkg/types"
)

// Print renders the run outcome to stdout with colored verdicts.
func Print(r types.Report) {
	bold := color.New(color.Bold)
	_, _ = bold.Printf("Validation run %s (AMGID %s)\n", r.RunID, r.AMGID)
	fmt.Println()

	if len(r.Endpoints) > 0 {
		_, _ = bold.Println("CDN Endpoints:")
		for _, v := range r.Endpoints {
			fmt.Printf("  %-40s %-18s liveness=%-8s %s\n",
				v.Endpoint.ID, verdictString(v.Level), v.Signals.Liveness, issueList(v.Signals))
			if v.Error != "" {
				color.Red("    error: %s", v.Error)
			}
		}
	}

	if len(r.Flows) > 0 {
		fmt.Println()
		_, _ = bold.Println("MediaConnect Flows:")
		for _, f := range r.Flows {
			name := f.Name
			if name == "" {
				name = f.FlowARN
			}
			fmt.Printf("  %-40s %-18s state=%-9s conn=%-12s stable=%v\n",
				name, verdictString(f.Verdict), f.State, f.Connection, f.BitrateStable)
			if f.Error != "" {
				color.Red("    error: %s", f.Error)
			}
		}
	}

	s := r.Summarize()
	fmt.Println()
	fmt.Printf("  Checked %d endpoints and %d flows in %s\n",
		s.Endpoints, s.Flows, r.Duration.Round(time.Millisecond))
	fmt.Printf("  Passed: %s  Warnings: %s  Failed: %s\n",
		color.GreenString("%d", s.Pass),
		color.YellowString("%d", s.Warnings),
		color.RedString("%d", s.Failures))
	fmt.Println()

	switch {
	case s.Failures > 0:
		color.Red("OVERALL: VALIDATION FAILED ✗")
	case s.Warnings > 0:
		color.Yellow("OVERALL: PASSED WITH WARNINGS")
	default:
		color.Green("OVERALL: ALL CHECKS PASSED ✓")
	}
}

func verdictString(v types.VerdictLevel) string {
	switch v {
	case types.VerdictPass:
		return color.GreenString(string(v))
	case types.VerdictWarning:
		return color.YellowString(string(v))
	case types.VerdictFail:
		return color.RedString(string(v))
	default:
		return string(v)
	}
}

func issueList(s types.Signals) string {
	var issues []string
	if s.Silence {
		issues = append(issues, "silence")
	}
	if s.Distortion {
		issues = append(issues, "distortion")
	}
	if s.BlackFrames {
		issues = append(issues, "black")
	}
	if s.FrozenFrames {
		issues = append(issues, "freeze")
	}
	if s.Bitrate == types.BitrateInvalid {
		issues = append(issues, "bitrate")
	}
	return strings.Join(issues, ",")
}
