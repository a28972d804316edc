// Package pipeline selects, validates and repairs generated scene code.
//
// The selector is an explicit state machine:
//
//	Trying(i)       -> Succeeded(C)        candidate of strategy i passed
//	Trying(i)       -> Repairing(i, 0)     candidate failed a stage
//	Repairing(i, a) -> Succeeded(C')       repaired candidate passed
//	Repairing(i, a) -> Repairing(i, a+1)   failed, budget remains
//	Repairing(i, a) -> Trying(i+1)         failed, budget exhausted
//	Trying(N)       -> ExhaustedFallback   every strategy exhausted
//
// Strategies and repairs run strictly in sequence. Candidate-level errors,
// repair service failures and exhausted budgets never escape the machine;
// only an environment fault or the caller's cancellation is returned.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Manik0107/VATA/internal/budget"
	"github.com/Manik0107/VATA/internal/generation"
	"github.com/Manik0107/VATA/internal/models"
)

// Validator checks a candidate. The error is reserved for environment
// faults and cancellation.
type Validator interface {
	Validate(ctx context.Context, c *models.CodeCandidate) (models.ValidationVerdict, error)
}

// Repairer derives a new candidate from a failing one.
type Repairer interface {
	Repair(ctx context.Context, c *models.CodeCandidate, verdict models.ValidationVerdict) (*models.CodeCandidate, models.RepairAttempt, error)
}

// Logger receives pipeline events.
type Logger interface {
	LogStrategyStart(index int, strategy models.StrategyID)
	LogVerdict(c *models.CodeCandidate, verdict models.ValidationVerdict)
	LogRepair(attempt models.RepairAttempt)
	LogTransition(from, to string)
	LogOutcome(report *models.ProvenanceReport)
	Warnf(format string, args ...interface{})
}

// Recorder persists or exports a finished run. Recorder errors are logged
// and never fail the run.
type Recorder interface {
	RecordRun(ctx context.Context, report *models.ProvenanceReport) error
}

// Options wires a Pipeline.
type Options struct {
	// Strategies are tried in order.
	Strategies []generation.Strategy
	// Fallback produces the terminal candidate. It is not validated.
	Fallback generation.Strategy

	Validator Validator
	Repairer  Repairer
	Policy    budget.Policy

	Logger    Logger
	Recorders []Recorder
}

// Pipeline runs the generate, validate and repair loop. It keeps no state
// between runs and may be shared by concurrent callers as long as its
// collaborators can.
type Pipeline struct {
	strategies []generation.Strategy
	fallback   generation.Strategy
	validator  Validator
	repairer   Repairer
	policy     budget.Policy
	logger     Logger
	recorders  []Recorder
}

// New creates a Pipeline.
func New(opts Options) (*Pipeline, error) {
	if opts.Validator == nil {
		return nil, errors.New("pipeline: validator is required")
	}
	if opts.Repairer == nil {
		return nil, errors.New("pipeline: repairer is required")
	}
	if opts.Fallback == nil {
		return nil, errors.New("pipeline: fallback strategy is required")
	}
	for i, s := range opts.Strategies {
		if s == nil {
			return nil, fmt.Errorf("pipeline: strategy %d is nil", i)
		}
	}
	if opts.Policy == (budget.Policy{}) {
		opts.Policy = budget.DefaultPolicy()
	}
	logger := opts.Logger
	if logger == nil {
		logger = nopLogger{}
	}
	return &Pipeline{
		strategies: opts.Strategies,
		fallback:   opts.Fallback,
		validator:  opts.Validator,
		repairer:   opts.Repairer,
		policy:     opts.Policy,
		logger:     logger,
		recorders:  opts.Recorders,
	}, nil
}

// GenerateValidatedAnimation turns sb into scene source. It always ends in
// Succeeded or ExhaustedFallback unless the environment is broken or ctx is
// cancelled; in those cases the partial report is returned with the error.
func (p *Pipeline) GenerateValidatedAnimation(ctx context.Context, sb *models.Storyboard) (string, *models.ProvenanceReport, error) {
	if sb == nil {
		return "", nil, errors.New("storyboard is nil")
	}
	if err := sb.Validate(); err != nil {
		return "", nil, err
	}

	r := &run{
		p:  p,
		sb: sb,
		report: &models.ProvenanceReport{
			RunID:      uuid.NewString(),
			Topic:      sb.Topic,
			Storyboard: sb.SourcePath,
			Scenes:     sb.SceneCount(),
			StartedAt:  time.Now(),
		},
	}

	final, err := r.drive(ctx)
	r.finish(final)
	if err != nil {
		return "", r.report, err
	}

	p.logger.LogOutcome(r.report)
	for _, rec := range p.recorders {
		if rerr := rec.RecordRun(ctx, r.report); rerr != nil {
			p.logger.Warnf("recording run %s failed: %v", r.report.RunID, rerr)
		}
	}
	return final.Candidate.Source(), r.report, nil
}

// run is the mutable state of one GenerateValidatedAnimation call. It is
// owned by a single goroutine.
type run struct {
	p      *Pipeline
	sb     *models.Storyboard
	report *models.ProvenanceReport

	state   State
	tracker *budget.Tracker
	current *models.CodeCandidate
	verdict models.ValidationVerdict
	record  *models.StrategyRecord
}

func (r *run) drive(ctx context.Context) (State, error) {
	r.state = trying(0)
	r.report.Transitions = append(r.report.Transitions, r.state.String())

	for !r.state.Terminal() {
		var next State
		var err error
		switch r.state.Kind {
		case StateTrying:
			next, err = r.try(ctx, r.state.Strategy)
		case StateRepairing:
			next, err = r.repair(ctx, r.state.Strategy, r.state.Attempt)
		default:
			err = fmt.Errorf("unexpected state %s", r.state)
		}
		if err != nil {
			r.closeStrategy("")
			return r.state, err
		}
		r.transition(next)
	}
	return r.state, nil
}

func (r *run) transition(next State) {
	from := r.state.String()
	r.state = next
	r.report.Transitions = append(r.report.Transitions, next.String())
	r.p.logger.LogTransition(from, next.String())
}

func (r *run) try(ctx context.Context, i int) (State, error) {
	if i >= len(r.p.strategies) {
		c := r.p.fallback.Generate(ctx, r.sb)
		return exhausted(i, c), nil
	}

	strategy := r.p.strategies[i]
	r.p.logger.LogStrategyStart(i, strategy.ID())
	r.report.Strategies = append(r.report.Strategies, models.StrategyRecord{
		Strategy:  strategy.ID(),
		StartedAt: time.Now(),
	})
	r.record = &r.report.Strategies[len(r.report.Strategies)-1]

	c := strategy.Generate(ctx, r.sb)
	if err := ctx.Err(); err != nil {
		return State{}, err
	}
	verdict, err := r.p.validator.Validate(ctx, c)
	if err != nil {
		return State{}, err
	}
	r.p.logger.LogVerdict(c, verdict)
	r.addAttempt(newAttemptRecord(c, &verdict, nil))

	if verdict.Passed() {
		r.closeStrategy(models.StopSucceeded)
		return succeeded(i, c), nil
	}

	r.current, r.verdict = c, verdict
	r.tracker = budget.NewTracker(strategy.ID(), r.p.policy)
	return repairing(i, 0), nil
}

func (r *run) repair(ctx context.Context, i, attempt int) (State, error) {
	if be := r.tracker.Exhausted(); be != nil {
		return r.abandon(i, models.StopReasonFor(be.Reason), be), nil
	}

	budgetCtx, cancel := r.tracker.Context(ctx)
	defer cancel()

	r.tracker.RecordAttempt()
	next, ra, err := r.p.repairer.Repair(budgetCtx, r.current, r.verdict)
	r.p.logger.LogRepair(ra)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return State{}, ctxErr
		}
		r.addAttempt(models.AttemptRecord{
			ParentID:    r.current.ID(),
			Attempt:     r.current.Attempt() + 1,
			RepairMS:    ra.Elapsed.Milliseconds(),
			RepairError: err.Error(),
		})

		var be *models.BudgetExhausted
		if errors.As(err, &be) {
			return r.abandon(i, models.StopReasonFor(be.Reason), r.tracker.Expired()), nil
		}
		return r.abandon(i, models.StopRepairServiceError, err), nil
	}

	verdict, err := r.p.validator.Validate(budgetCtx, next)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return State{}, ctxErr
		}
		if !models.IsEnvironmentFault(err) && errors.Is(err, context.DeadlineExceeded) {
			r.addAttempt(newAttemptRecord(next, nil, &ra))
			return r.abandon(i, models.StopTimeBudget, r.tracker.Expired()), nil
		}
		return State{}, err
	}
	r.p.logger.LogVerdict(next, verdict)
	r.addAttempt(newAttemptRecord(next, &verdict, &ra))

	if verdict.Passed() {
		r.closeStrategy(models.StopSucceeded)
		return succeeded(i, next), nil
	}

	r.tracker.Observe(*verdict.Diagnostic)
	r.current, r.verdict = next, verdict
	if be := r.tracker.Exhausted(); be != nil {
		return r.abandon(i, models.StopReasonFor(be.Reason), be), nil
	}
	return repairing(i, attempt+1), nil
}

// abandon closes the current strategy and moves to the next one.
func (r *run) abandon(i int, reason models.StopReason, cause error) State {
	r.p.logger.Warnf("abandoning %s: %v", r.p.strategies[i].ID(), cause)
	r.closeStrategy(reason)
	r.tracker, r.current = nil, nil
	return trying(i + 1)
}

func (r *run) addAttempt(a models.AttemptRecord) {
	if r.record != nil {
		r.record.Attempts = append(r.record.Attempts, a)
	}
}

func (r *run) closeStrategy(reason models.StopReason) {
	if r.record == nil {
		return
	}
	r.record.StopReason = reason
	r.record.ElapsedMS = time.Since(r.record.StartedAt).Milliseconds()
	r.record = nil
}

func (r *run) finish(final State) {
	rep := r.report
	rep.FinishedAt = time.Now()
	rep.ElapsedMS = rep.FinishedAt.Sub(rep.StartedAt).Milliseconds()
	if final.Candidate == nil {
		return
	}
	switch final.Kind {
	case StateSucceeded:
		rep.Outcome = models.OutcomeSucceeded
	case StateExhaustedFallback:
		rep.Outcome = models.OutcomeExhaustedFallback
	}
	rep.FinalStrategy = final.Candidate.Strategy()
	rep.FinalCandidateID = final.Candidate.ID()
}

func newAttemptRecord(c *models.CodeCandidate, verdict *models.ValidationVerdict, repair *models.RepairAttempt) models.AttemptRecord {
	rec := models.AttemptRecord{
		CandidateID: c.ID(),
		ParentID:    c.ParentID(),
		Attempt:     c.Attempt(),
		SourceLines: sourceLines(c.Source()),
	}
	if verdict != nil {
		rec.Stage = verdict.StageReached.String()
		rec.Status = verdict.Status
		rec.Diagnostic = verdict.Diagnostic
		rec.ValidationMS = verdict.Duration.Milliseconds()
	}
	if repair != nil {
		rec.RepairMS = repair.Elapsed.Milliseconds()
		if repair.Err != nil {
			rec.RepairError = repair.Err.Error()
		}
	}
	return rec
}

func sourceLines(src string) int {
	if src == "" {
		return 0
	}
	n := strings.Count(src, "\n")
	if !strings.HasSuffix(src, "\n") {
		n++
	}
	return n
}

type nopLogger struct{}

func (nopLogger) LogStrategyStart(int, models.StrategyID)                   {}
func (nopLogger) LogVerdict(*models.CodeCandidate, models.ValidationVerdict) {}
func (nopLogger) LogRepair(models.RepairAttempt)                            {}
func (nopLogger) LogTransition(string, string)                              {}
func (nopLogger) LogOutcome(*models.ProvenanceReport)                       {}
func (nopLogger) Warnf(string, ...interface{})                              {}
