package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/Manik0107/VATA/internal/config"
)

// DefaultClaudeSystemPrompt keeps the CLI from wrapping code in prose.
const DefaultClaudeSystemPrompt = "You are a Manim Community developer. Output only Python source code. No markdown, no explanations."

// ClaudeClient invokes the claude CLI in print mode.
// It follows the http.Client pattern: create once, use many times.
type ClaudeClient struct {
	// ClaudePath is the path to the claude CLI binary.
	ClaudePath string

	// Model is passed through --model when set.
	Model string

	// Timeout bounds one invocation when ctx has no earlier deadline.
	Timeout time.Duration

	// TmpDir is a clean TMPDIR for the CLI; editor sockets in the default
	// temp dir crash it when --settings is used.
	TmpDir string
}

// NewClaudeClient creates a ClaudeClient from cfg.
func NewClaudeClient(cfg config.LLMConfig) *ClaudeClient {
	path := cfg.ClaudePath
	if path == "" {
		path = "claude"
	}
	return &ClaudeClient{
		ClaudePath: path,
		Model:      cfg.Model,
		Timeout:    cfg.Timeout,
		TmpDir:     filepath.Join(os.TempDir(), "vata-claude"),
	}
}

// claudeOutput is the --output-format json envelope.
type claudeOutput struct {
	Type      string `json:"type"`
	Subtype   string `json:"subtype"`
	IsError   bool   `json:"is_error"`
	Result    string `json:"result"`
	SessionID string `json:"session_id"`
}

// Complete implements Client.
func (c *ClaudeClient) Complete(ctx context.Context, req Request) (string, error) {
	if req.Prompt == "" {
		return "", fmt.Errorf("prompt is required")
	}
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	system := req.System
	if system == "" {
		system = DefaultClaudeSystemPrompt
	}
	args := []string{"--system-prompt", system, "-p", req.Prompt, "--output-format", "json"}
	if c.Model != "" && !strings.HasPrefix(c.Model, "gemini") && !strings.HasPrefix(c.Model, "gpt") {
		args = append(args, "--model", c.Model)
	}
	// Disable hooks for automation
	args = append(args, "--settings", `{"disableAllHooks": true}`)

	cmd := exec.CommandContext(ctx, c.ClaudePath, args...)
	c.setCleanEnv(cmd)

	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("claude invocation failed: %w (output: %s)", err, truncate(string(output), 500))
	}
	return parseClaudeOutput(output)
}

func parseClaudeOutput(raw []byte) (string, error) {
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return "", ErrEmptyResponse
	}

	var out claudeOutput
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		// Older CLIs print plain text even with --output-format json
		if extracted := ExtractJSON(text); extracted != "" && json.Unmarshal([]byte(extracted), &out) == nil {
			text = extracted
		} else {
			return text, nil
		}
	}
	if out.IsError {
		return "", fmt.Errorf("claude returned an error result: %s", truncate(out.Result, 500))
	}
	if strings.TrimSpace(out.Result) == "" {
		return "", ErrEmptyResponse
	}
	return out.Result, nil
}

// setCleanEnv copies the environment with TMPDIR pointing at the client's
// private temp directory.
func (c *ClaudeClient) setCleanEnv(cmd *exec.Cmd) {
	if c.TmpDir == "" {
		return
	}
	os.MkdirAll(c.TmpDir, 0755)

	env := os.Environ()
	found := false
	for i, kv := range env {
		if strings.HasPrefix(kv, "TMPDIR=") {
			env[i] = "TMPDIR=" + c.TmpDir
			found = true
			break
		}
	}
	if !found {
		env = append(env, "TMPDIR="+c.TmpDir)
	}
	cmd.Env = env
}
