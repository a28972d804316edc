package cmd

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Manik0107/VATA/internal/history"
)

// NewHistoryCommand creates the 'vata history' command group
func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Query the run history",
		Long: `List recorded pipeline runs, newest first.

Every generate run is recorded in a sqlite database
($VATA_HOME/history.db unless history.db_path is set).`,
		Args: cobra.NoArgs,
		RunE: runHistoryList,
	}
	cmd.Flags().IntP("limit", "n", 20, "Number of runs to show (0 = all)")

	cmd.AddCommand(newHistoryShowCommand())
	cmd.AddCommand(newHistoryStatsCommand())
	cmd.AddCommand(newHistoryPruneCommand())

	return cmd
}

func newHistoryShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run and its attempts",
		Long:  "Show one recorded run. A unique prefix of the run ID is enough.",
		Args:  cobra.ExactArgs(1),
		RunE:  runHistoryShow,
	}
}

func newHistoryStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show per-strategy success rates",
		Args:  cobra.NoArgs,
		RunE:  runHistoryStats,
	}
}

func newHistoryPruneCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete all but the most recent runs",
		Args:  cobra.NoArgs,
		RunE:  runHistoryPrune,
	}
	cmd.Flags().Int("keep", 100, "Number of most recent runs to keep")
	return cmd
}

// openHistory opens the configured history database. ok is false when the
// database does not exist yet, in which case a message has been printed.
func openHistory(cmd *cobra.Command) (store *history.Store, ok bool, err error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, false, err
	}
	dbPath, err := cfg.GetHistoryDBPath()
	if err != nil {
		return nil, false, fmt.Errorf("failed to get history database path: %w", err)
	}
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Fprintf(cmd.OutOrStdout(), "No runs recorded yet.\nDatabase path: %s\n", dbPath)
		return nil, false, nil
	}
	store, err = history.NewStore(dbPath)
	if err != nil {
		return nil, false, fmt.Errorf("open history store: %w", err)
	}
	return store, true, nil
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	store, ok, err := openHistory(cmd)
	if err != nil || !ok {
		return err
	}
	defer store.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	runs, err := store.ListRuns(cmd.Context(), limit)
	if err != nil {
		return err
	}
	renderRuns(cmd.OutOrStdout(), runs)
	return nil
}

func renderRuns(w io.Writer, runs []*history.RunSummary) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded yet.")
		return
	}
	table := newTable(w, "Run", "Started", "Topic", "Outcome", "Strategy", "Candidates", "Repairs", "Duration")
	for _, r := range runs {
		table.Append([]string{
			shortID(r.RunID),
			formatTime(r.StartedAt),
			truncateCell(orDash(r.Topic), 32),
			string(r.Outcome),
			orDash(string(r.FinalStrategy)),
			strconv.Itoa(r.TotalAttempts),
			strconv.Itoa(r.Repairs),
			formatMS(r.ElapsedMS),
		})
	}
	table.Render()
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	store, ok, err := openHistory(cmd)
	if err != nil || !ok {
		return err
	}
	defer store.Close()

	run, attempts, err := store.GetRun(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	renderRun(cmd.OutOrStdout(), run, attempts)
	return nil
}

func renderRun(w io.Writer, run *history.RunSummary, attempts []history.AttemptRow) {
	fmt.Fprintf(w, "Run:        %s\n", run.RunID)
	fmt.Fprintf(w, "Topic:      %s\n", orDash(run.Topic))
	fmt.Fprintf(w, "Storyboard: %s (%d scenes)\n", orDash(run.Storyboard), run.Scenes)
	fmt.Fprintf(w, "Outcome:    %s\n", run.Outcome)
	fmt.Fprintf(w, "Strategy:   %s\n", orDash(string(run.FinalStrategy)))
	fmt.Fprintf(w, "Started:    %s\n", formatTime(run.StartedAt))
	fmt.Fprintf(w, "Duration:   %s\n\n", formatMS(run.ElapsedMS))

	table := newTable(w, "Strategy", "Stop reason", "#", "Candidate", "Stage", "Status", "Diagnostic", "Rules")
	for _, a := range attempts {
		status := string(a.Status)
		diag := a.DiagnosticMessage
		if a.DiagnosticKind != "" {
			diag = a.DiagnosticKind + ": " + diag
		}
		if a.RepairError != "" {
			status = "repair-error"
			diag = a.RepairError
		}
		table.Append([]string{
			string(a.Strategy),
			string(a.StopReason),
			strconv.Itoa(a.Attempt),
			shortID(a.CandidateID),
			orDash(a.Stage),
			orDash(status),
			orDash(truncateCell(diag, 60)),
			orDash(strings.Join(a.RuleIDs, ",")),
		})
	}
	table.Render()

	if len(run.Transitions) > 0 {
		fmt.Fprintf(w, "\nTransitions: %s\n", strings.Join(run.Transitions, " -> "))
	}
}

func runHistoryStats(cmd *cobra.Command, args []string) error {
	store, ok, err := openHistory(cmd)
	if err != nil || !ok {
		return err
	}
	defer store.Close()

	stats, err := store.StrategyStats(cmd.Context())
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	if len(stats) == 0 {
		fmt.Fprintln(w, "No runs recorded yet.")
		return nil
	}
	table := newTable(w, "Strategy", "Runs", "Succeeded", "Success rate", "Avg candidates")
	for _, s := range stats {
		table.Append([]string{
			string(s.Strategy),
			strconv.Itoa(s.Runs),
			strconv.Itoa(s.Succeeded),
			percent(s.SuccessRate()),
			fmt.Sprintf("%.1f", s.AvgAttempts),
		})
	}
	table.Render()
	return nil
}

func runHistoryPrune(cmd *cobra.Command, args []string) error {
	store, ok, err := openHistory(cmd)
	if err != nil || !ok {
		return err
	}
	defer store.Close()

	keep, _ := cmd.Flags().GetInt("keep")
	n, err := store.Prune(cmd.Context(), keep)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d run(s), kept the %d most recent\n", n, keep)
	return nil
}
