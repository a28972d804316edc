package validation

import (
	"context"
	"fmt"
	"time"

	"github.com/Manik0107/VATA/internal/models"
	"github.com/Manik0107/VATA/internal/sandbox"
)

// CandidateFile is the name the candidate is written under inside a scope.
const CandidateFile = "candidate.py"

// RuntimeStage executes the candidate as a script in a fresh sandbox scope.
type RuntimeStage struct {
	Sandbox *sandbox.Sandbox
	Timeout time.Duration
}

// Stage implements Stage.
func (RuntimeStage) Stage() models.Stage { return models.StageRuntime }

// Check implements Stage.
func (s RuntimeStage) Check(ctx context.Context, in *Input) error {
	scope, err := s.Sandbox.NewScope()
	if err != nil {
		return err
	}
	defer scope.Close()

	if _, err := scope.WriteFile(CandidateFile, in.Source); err != nil {
		return err
	}

	res, err := scope.Run(ctx, s.Timeout, CandidateFile)
	if err != nil {
		return err
	}
	if res.TimedOut {
		return &models.RuntimeError{
			Message:  scope.Sanitize(FilterStderr(res.Stderr)),
			Line:     TracebackLine(res.Stderr, CandidateFile),
			ExitCode: res.ExitCode,
			TimedOut: true,
			Timeout:  s.Timeout,
		}
	}
	if res.ExitCode != 0 {
		msg := scope.Sanitize(FilterStderr(res.Stderr))
		if msg == "" {
			msg = fmt.Sprintf("process exited with status %d", res.ExitCode)
		}
		return &models.RuntimeError{
			Message:  msg,
			Line:     TracebackLine(res.Stderr, CandidateFile),
			ExitCode: res.ExitCode,
		}
	}
	return nil
}
