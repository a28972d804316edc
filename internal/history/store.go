// Package history keeps a SQLite record of pipeline runs and the candidates
// each strategy produced.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Manik0107/VATA/internal/models"
)

// RunSummary is one row of the runs table.
type RunSummary struct {
	RunID            string
	Topic            string
	Storyboard       string
	Scenes           int
	Outcome          models.Outcome
	FinalStrategy    models.StrategyID
	FinalCandidateID string
	TotalAttempts    int
	Repairs          int
	ElapsedMS        int64
	StartedAt        time.Time
	FinishedAt       time.Time
	Transitions      []string
}

// AttemptRow is one validated candidate, or one failed repair call.
type AttemptRow struct {
	Strategy          models.StrategyID
	StopReason        models.StopReason
	CandidateID       string
	ParentID          string
	Attempt           int
	Stage             string
	Status            models.Status
	DiagnosticKind    string
	DiagnosticMessage string
	DiagnosticLine    int
	RuleIDs           []string
	ValidationMS      int64
	RepairMS          int64
	RepairError       string
}

// StrategyStat aggregates how a strategy fared across recorded runs.
type StrategyStat struct {
	Strategy    models.StrategyID
	Runs        int
	Succeeded   int
	AvgAttempts float64
}

// SuccessRate returns Succeeded/Runs, or 0 when the strategy never ran.
func (s StrategyStat) SuccessRate() float64 {
	if s.Runs == 0 {
		return 0
	}
	return float64(s.Succeeded) / float64(s.Runs)
}

// Store manages the SQLite run history.
type Store struct {
	db     *sql.DB
	dbPath string
}

// NewStore opens (creating if needed) the database at dbPath and applies
// pending migrations. ":memory:" opens a private in-memory database.
func NewStore(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Each connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}

	// busy_timeout must be first so the rest wait on locks.
	pragmas := []string{
		"PRAGMA busy_timeout=5000",
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if err := execWithRetry(db, pragma, 5, 10*time.Millisecond); err != nil {
			db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	s := &Store{db: db, dbPath: dbPath}
	if err := s.ApplyMigrations(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

// execWithRetry executes a statement with exponential backoff on lock errors.
func execWithRetry(db *sql.DB, stmt string, maxRetries int, baseDelay time.Duration) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		_, err := db.Exec(stmt)
		if err == nil {
			return nil
		}
		if !strings.Contains(err.Error(), "database is locked") {
			return err
		}
		lastErr = err
		time.Sleep(baseDelay * time.Duration(1<<attempt))
	}
	return lastErr
}

// Path returns the database path.
func (s *Store) Path() string {
	return s.dbPath
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// RecordRun stores report, replacing any earlier record of the same run.
func (s *Store) RecordRun(ctx context.Context, report *models.ProvenanceReport) error {
	if report == nil || report.RunID == "" {
		return fmt.Errorf("record run: report has no run id")
	}
	transitions, err := json.Marshal(report.Transitions)
	if err != nil {
		return fmt.Errorf("marshal transitions: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM attempts WHERE run_id = ?`, report.RunID); err != nil {
		return fmt.Errorf("clear attempts: %w", err)
	}

	_, err = tx.ExecContext(ctx, `INSERT OR REPLACE INTO runs
		(run_id, topic, storyboard, scenes, outcome, final_strategy, final_candidate_id,
		 total_attempts, repairs, elapsed_ms, started_at, finished_at, transitions)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		report.RunID,
		report.Topic,
		report.Storyboard,
		report.Scenes,
		string(report.Outcome),
		string(report.FinalStrategy),
		report.FinalCandidateID,
		report.TotalAttempts(),
		report.RepairCount(),
		report.ElapsedMS,
		report.StartedAt.UTC(),
		report.FinishedAt.UTC(),
		string(transitions),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO attempts
		(run_id, seq, strategy, stop_reason, candidate_id, parent_id, attempt, stage, status,
		 diagnostic_kind, diagnostic_message, diagnostic_line, rule_ids, validation_ms, repair_ms, repair_error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare attempt insert: %w", err)
	}
	defer stmt.Close()

	seq := 0
	for _, sr := range report.Strategies {
		for _, a := range sr.Attempts {
			var kind, message, ruleIDs string
			var line int
			if a.Diagnostic != nil {
				kind = string(a.Diagnostic.Kind)
				message = a.Diagnostic.Message
				line = a.Diagnostic.Line
				ruleIDs = strings.Join(a.Diagnostic.RuleIDs(), ",")
			}
			_, err := stmt.ExecContext(ctx,
				report.RunID, seq, string(sr.Strategy), string(sr.StopReason),
				a.CandidateID, a.ParentID, a.Attempt, a.Stage, string(a.Status),
				kind, message, line, ruleIDs, a.ValidationMS, a.RepairMS, a.RepairError,
			)
			if err != nil {
				return fmt.Errorf("insert attempt: %w", err)
			}
			seq++
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}

const runColumns = `run_id, topic, storyboard, scenes, outcome, final_strategy, final_candidate_id,
	total_attempts, repairs, elapsed_ms, started_at, finished_at, transitions`

func scanRun(scanner interface{ Scan(...interface{}) error }) (*RunSummary, error) {
	r := &RunSummary{}
	var topic, storyboard, finalStrategy, finalCandidate, transitions sql.NullString
	var scenes, total, repairs, elapsed sql.NullInt64
	var outcome string
	var started, finished sql.NullTime
	err := scanner.Scan(&r.RunID, &topic, &storyboard, &scenes, &outcome, &finalStrategy, &finalCandidate,
		&total, &repairs, &elapsed, &started, &finished, &transitions)
	if err != nil {
		return nil, err
	}
	r.Topic = topic.String
	r.Storyboard = storyboard.String
	r.Scenes = int(scenes.Int64)
	r.Outcome = models.Outcome(outcome)
	r.FinalStrategy = models.StrategyID(finalStrategy.String)
	r.FinalCandidateID = finalCandidate.String
	r.TotalAttempts = int(total.Int64)
	r.Repairs = int(repairs.Int64)
	r.ElapsedMS = elapsed.Int64
	r.StartedAt = started.Time
	r.FinishedAt = finished.Time
	if transitions.Valid && transitions.String != "" {
		if err := json.Unmarshal([]byte(transitions.String), &r.Transitions); err != nil {
			return nil, fmt.Errorf("unmarshal transitions: %w", err)
		}
	}
	return r, nil
}

// ListRuns returns the most recent runs first. limit <= 0 returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*RunSummary, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, id DESC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*RunSummary
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// GetRun returns a run and its attempts in recorded order. A run ID prefix
// is accepted when it is unambiguous.
func (s *Store) GetRun(ctx context.Context, runID string) (*RunSummary, []AttemptRow, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs WHERE run_id LIKE ? || '%' LIMIT 2`, runID)
	if err != nil {
		return nil, nil, fmt.Errorf("query run: %w", err)
	}
	var matches []*RunSummary
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			rows.Close()
			return nil, nil, fmt.Errorf("scan run: %w", err)
		}
		matches = append(matches, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate runs: %w", err)
	}
	switch len(matches) {
	case 0:
		return nil, nil, fmt.Errorf("run %q not found", runID)
	case 2:
		return nil, nil, fmt.Errorf("run id prefix %q is ambiguous", runID)
	}
	run := matches[0]

	attempts, err := s.attempts(ctx, run.RunID)
	if err != nil {
		return nil, nil, err
	}
	return run, attempts, nil
}

func (s *Store) attempts(ctx context.Context, runID string) ([]AttemptRow, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT strategy, stop_reason, candidate_id, parent_id, attempt, stage, status,
		diagnostic_kind, diagnostic_message, diagnostic_line, rule_ids, validation_ms, repair_ms, repair_error
		FROM attempts WHERE run_id = ? ORDER BY seq ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	var out []AttemptRow
	for rows.Next() {
		var a AttemptRow
		var strategy, stopReason, status string
		var candidate, parent, stage, kind, message, ruleIDs, repairErr sql.NullString
		var line, validationMS, repairMS sql.NullInt64
		if err := rows.Scan(&strategy, &stopReason, &candidate, &parent, &a.Attempt, &stage, &status,
			&kind, &message, &line, &ruleIDs, &validationMS, &repairMS, &repairErr); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		a.Strategy = models.StrategyID(strategy)
		a.StopReason = models.StopReason(stopReason)
		a.CandidateID = candidate.String
		a.ParentID = parent.String
		a.Stage = stage.String
		a.Status = models.Status(status)
		a.DiagnosticKind = kind.String
		a.DiagnosticMessage = message.String
		a.DiagnosticLine = int(line.Int64)
		if ruleIDs.String != "" {
			a.RuleIDs = strings.Split(ruleIDs.String, ",")
		}
		a.ValidationMS = validationMS.Int64
		a.RepairMS = repairMS.Int64
		a.RepairError = repairErr.String
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attempts: %w", err)
	}
	return out, nil
}

// StrategyStats aggregates attempts per strategy across all runs.
func (s *Store) StrategyStats(ctx context.Context) ([]StrategyStat, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT strategy,
			COUNT(DISTINCT run_id),
			COUNT(DISTINCT CASE WHEN stop_reason = ? THEN run_id END),
			COUNT(*) * 1.0 / COUNT(DISTINCT run_id)
		FROM attempts
		GROUP BY strategy
		ORDER BY strategy`, string(models.StopSucceeded))
	if err != nil {
		return nil, fmt.Errorf("query strategy stats: %w", err)
	}
	defer rows.Close()

	var stats []StrategyStat
	for rows.Next() {
		var st StrategyStat
		var strategy string
		if err := rows.Scan(&strategy, &st.Runs, &st.Succeeded, &st.AvgAttempts); err != nil {
			return nil, fmt.Errorf("scan strategy stats: %w", err)
		}
		st.Strategy = models.StrategyID(strategy)
		stats = append(stats, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate strategy stats: %w", err)
	}
	return stats, nil
}

// Prune deletes all but the newest keep runs and returns how many runs were
// removed.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		return 0, fmt.Errorf("keep must be >= 0, got %d", keep)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	const stale = `SELECT run_id FROM runs ORDER BY started_at DESC, id DESC LIMIT -1 OFFSET ?`
	if _, err := tx.ExecContext(ctx, `DELETE FROM attempts WHERE run_id IN (`+stale+`)`, keep); err != nil {
		return 0, fmt.Errorf("prune attempts: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE run_id IN (`+stale+`)`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit prune: %w", err)
	}
	return n, nil
}
