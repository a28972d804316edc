// Package validation judges a code candidate through four ordered,
// fail-fast stages: syntax, logic, runtime and scene instantiation.
package validation

import (
	"context"
	"time"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/Manik0107/VATA/internal/models"
	"github.com/Manik0107/VATA/internal/sandbox"
)

// Input is the state shared by the stages of one validation run.
type Input struct {
	Candidate *models.CodeCandidate
	Source    []byte

	// Tree is set by the syntax stage.
	Tree *sitter.Tree

	// SceneClass is set by the instantiation stage.
	SceneClass string
}

// Stage is one validation check. Check returns a models.Diagnoser for a
// candidate failure, nil on success, and any other error for an
// environment fault or cancellation.
type Stage interface {
	Stage() models.Stage
	Check(ctx context.Context, in *Input) error
}

// Logger receives per-stage debug output.
type Logger interface {
	Debugf(format string, args ...interface{})
}

// Options configures New.
type Options struct {
	Sandbox              *sandbox.Sandbox
	Rules                *RuleSet
	RuntimeTimeout       time.Duration
	InstantiationTimeout time.Duration
	Contract             SceneContract
	Logger               Logger
}

// Validator runs the stages in order and stops at the first failure.
// Safe for concurrent use when its stages are.
type Validator struct {
	stages []Stage
	logger Logger
}

// New builds the standard four-stage validator.
func New(opts Options) *Validator {
	if opts.Rules == nil {
		opts.Rules = DefaultRules()
	}
	if opts.RuntimeTimeout <= 0 {
		opts.RuntimeTimeout = 60 * time.Second
	}
	if opts.InstantiationTimeout <= 0 {
		opts.InstantiationTimeout = 60 * time.Second
	}
	if opts.Contract == (SceneContract{}) {
		opts.Contract = DefaultSceneContract()
	}

	v := NewWithStages(
		SyntaxStage{Sandbox: opts.Sandbox, Timeout: opts.RuntimeTimeout},
		LogicStage{Rules: opts.Rules},
		RuntimeStage{Sandbox: opts.Sandbox, Timeout: opts.RuntimeTimeout},
		InstantiationStage{Sandbox: opts.Sandbox, Timeout: opts.InstantiationTimeout, Contract: opts.Contract},
	)
	v.logger = opts.Logger
	return v
}

// NewWithStages builds a validator from an explicit stage list.
func NewWithStages(stages ...Stage) *Validator {
	return &Validator{stages: stages}
}

// Validate returns the first failing verdict or a pass verdict. The error
// is non-nil only for an environment fault or a cancelled ctx; a candidate
// that fails any stage is reported through the verdict.
func (v *Validator) Validate(ctx context.Context, c *models.CodeCandidate) (models.ValidationVerdict, error) {
	start := time.Now()
	in := &Input{Candidate: c, Source: []byte(c.Source())}
	defer func() {
		if in.Tree != nil {
			in.Tree.Close()
		}
	}()

	for _, st := range v.stages {
		if err := ctx.Err(); err != nil {
			return models.ValidationVerdict{}, err
		}

		stageStart := time.Now()
		err := st.Check(ctx, in)
		v.debugf("stage %s for %s took %s", st.Stage(), c, time.Since(stageStart).Round(time.Millisecond))
		if err == nil {
			continue
		}

		if diag, ok := models.AsDiagnoser(err); ok {
			return models.FailVerdict(st.Stage(), diag.Diagnostic(), time.Since(start)), nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return models.ValidationVerdict{}, ctxErr
		}
		if models.IsEnvironmentFault(err) {
			return models.ValidationVerdict{}, err
		}
		return models.ValidationVerdict{}, models.NewEnvironmentFault("validate "+st.Stage().String(), err)
	}

	return models.PassVerdict(time.Since(start)), nil
}

func (v *Validator) debugf(format string, args ...interface{}) {
	if v.logger != nil {
		v.logger.Debugf(format, args...)
	}
}
