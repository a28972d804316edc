package cmd

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Manik0107/VATA/internal/models"
	"github.com/Manik0107/VATA/internal/pipeline"
)

// NewReportCommand creates the report command
func NewReportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report <report.json|scene.py>",
		Short: "Show a provenance report",
		Long: `Render the provenance report written next to a generated scene.

The argument may be the report itself or the scene file it belongs to
(scene.py reads scene.report.json). Use --transitions to also list every
state transition of the run.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if !strings.HasSuffix(path, ".json") {
				path = pipeline.ReportPath(path)
			}
			report, err := pipeline.ReadReport(path)
			if err != nil {
				return err
			}
			transitions, _ := cmd.Flags().GetBool("transitions")
			renderReport(cmd.OutOrStdout(), report, transitions)
			return nil
		},
	}

	cmd.Flags().Bool("transitions", false, "List the state transitions of the run")

	return cmd
}

// renderReport prints the run summary, one row per strategy and one row per
// candidate or failed repair call.
func renderReport(w io.Writer, r *models.ProvenanceReport, transitions bool) {
	fmt.Fprintf(w, "Run:        %s\n", r.RunID)
	fmt.Fprintf(w, "Topic:      %s\n", orDash(r.Topic))
	fmt.Fprintf(w, "Storyboard: %s (%d scenes)\n", orDash(r.Storyboard), r.Scenes)
	fmt.Fprintf(w, "Outcome:    %s\n", r.Outcome)
	fmt.Fprintf(w, "Strategy:   %s\n", orDash(string(r.FinalStrategy)))
	fmt.Fprintf(w, "Candidate:  %s\n", orDash(r.FinalCandidateID))
	fmt.Fprintf(w, "Started:    %s\n", formatTime(r.StartedAt))
	fmt.Fprintf(w, "Duration:   %s\n", formatMS(r.ElapsedMS))
	fmt.Fprintf(w, "Candidates: %d validated, %d repairs\n\n", r.TotalAttempts(), r.RepairCount())

	if len(r.Strategies) > 0 {
		table := newTable(w, "Strategy", "Stop reason", "Attempts", "Duration")
		for _, s := range r.Strategies {
			table.Append([]string{
				string(s.Strategy),
				string(s.StopReason),
				strconv.Itoa(len(s.Attempts)),
				formatMS(s.ElapsedMS),
			})
		}
		table.Render()
		fmt.Fprintln(w)

		table = newTable(w, "Strategy", "#", "Candidate", "Parent", "Stage", "Status", "Diagnostic", "Rules")
		for _, s := range r.Strategies {
			for _, a := range s.Attempts {
				table.Append(attemptRow(string(s.Strategy), a))
			}
		}
		table.Render()
	}

	if transitions && len(r.Transitions) > 0 {
		fmt.Fprintf(w, "\nTransitions:\n")
		for i, t := range r.Transitions {
			fmt.Fprintf(w, "  %2d. %s\n", i+1, t)
		}
	}
}

func attemptRow(strategy string, a models.AttemptRecord) []string {
	status := string(a.Status)
	diag := ""
	rules := ""
	switch {
	case a.RepairError != "":
		status = "repair-error"
		diag = a.RepairError
	case a.Diagnostic != nil:
		diag = a.Diagnostic.String()
		rules = strings.Join(a.Diagnostic.RuleIDs(), ",")
	}
	return []string{
		strategy,
		strconv.Itoa(a.Attempt),
		shortID(a.CandidateID),
		shortID(a.ParentID),
		orDash(a.Stage),
		orDash(status),
		orDash(truncateCell(diag, 60)),
		orDash(rules),
	}
}
