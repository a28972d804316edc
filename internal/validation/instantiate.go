package validation

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Manik0107/VATA/internal/models"
	"github.com/Manik0107/VATA/internal/sandbox"
)

//go:embed harness/instantiate.py
var instantiateHarness []byte

const harnessFile = "vata_probe.py"

// SceneContract names the framework class and method every candidate must
// provide.
type SceneContract struct {
	// ClassName selects the scene class; empty picks the last subclass of
	// BaseClass defined in the module.
	ClassName   string
	BaseClass   string
	EntryMethod string
}

// DefaultSceneContract is the Manim contract: a Scene subclass with construct.
func DefaultSceneContract() SceneContract {
	return SceneContract{BaseClass: "Scene", EntryMethod: "construct"}
}

// InstantiationStage loads the candidate through the embedded probe in a
// fresh scope and constructs the scene class without rendering.
type InstantiationStage struct {
	Sandbox  *sandbox.Sandbox
	Timeout  time.Duration
	Contract SceneContract
}

// Stage implements Stage.
func (InstantiationStage) Stage() models.Stage { return models.StageInstantiation }

type probeResult struct {
	OK    bool   `json:"ok"`
	Class string `json:"class"`
	Error string `json:"error"`
}

// Check implements Stage.
func (s InstantiationStage) Check(ctx context.Context, in *Input) error {
	contract := s.Contract
	if contract.BaseClass == "" {
		contract.BaseClass = "Scene"
	}
	if contract.EntryMethod == "" {
		contract.EntryMethod = "construct"
	}

	scope, err := s.Sandbox.NewScope()
	if err != nil {
		return err
	}
	defer scope.Close()

	if _, err := scope.WriteFile(CandidateFile, in.Source); err != nil {
		return err
	}
	if _, err := scope.WriteFile(harnessFile, instantiateHarness); err != nil {
		return err
	}

	res, err := scope.Run(ctx, s.Timeout, harnessFile, CandidateFile, contract.ClassName, contract.BaseClass, contract.EntryMethod)
	if err != nil {
		return err
	}
	if res.TimedOut {
		return &models.InstantiationError{
			ClassName: contract.ClassName,
			Message:   fmt.Sprintf("scene construction exceeded %v and was killed", s.Timeout),
		}
	}

	probe, ok := lastJSONLine(res.Stdout)
	if !ok {
		msg := scope.Sanitize(FilterStderr(res.Stderr))
		if msg == "" {
			msg = fmt.Sprintf("probe exited with status %d and no result", res.ExitCode)
		}
		return &models.InstantiationError{ClassName: contract.ClassName, Message: msg}
	}
	if !probe.OK {
		return &models.InstantiationError{ClassName: probe.Class, Message: scope.Sanitize(probe.Error)}
	}
	in.SceneClass = probe.Class
	return nil
}

// lastJSONLine decodes the probe's final JSON line; the candidate may print
// anything before it.
func lastJSONLine(stdout string) (probeResult, bool) {
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(line, "{") {
			continue
		}
		var pr probeResult
		if err := json.Unmarshal([]byte(line), &pr); err == nil {
			return pr, true
		}
	}
	return probeResult{}, false
}
