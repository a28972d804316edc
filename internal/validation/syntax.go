package validation

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/Manik0107/VATA/internal/models"
	"github.com/Manik0107/VATA/internal/sandbox"
)

//go:embed harness/compile.py
var compileHarness []byte

const compileHarnessFile = "vata_compile.py"

// parse builds a Python syntax tree. A fresh parser per call keeps
// concurrent validations independent.
func parse(ctx context.Context, src []byte) (*sitter.Tree, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(python.GetLanguage())
	return parser.ParseCtx(ctx, nil, src)
}

// SyntaxStage parses the candidate without executing it. The tree-sitter
// parse runs first; when Sandbox is set the interpreter's own compiler
// then byte-compiles the source, which catches errors the grammar accepts
// (duplicate arguments, misplaced return, inconsistent tabs).
type SyntaxStage struct {
	Sandbox *sandbox.Sandbox
	Timeout time.Duration
}

// Stage implements Stage.
func (SyntaxStage) Stage() models.Stage { return models.StageSyntax }

// Check implements Stage. On success in.Tree holds the parse tree for
// later stages.
func (s SyntaxStage) Check(ctx context.Context, in *Input) error {
	tree, err := parse(ctx, in.Source)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &models.SyntaxError{Message: fmt.Sprintf("parsing failed: %v", err)}
	}

	root := tree.RootNode()
	if root.HasError() {
		defer tree.Close()
		if node := firstSyntaxError(root, 0); node != nil {
			return &models.SyntaxError{
				Message: describeSyntaxError(node, in.Source),
				Line:    int(node.StartPoint().Row) + 1,
			}
		}
		return &models.SyntaxError{Message: "invalid syntax"}
	}

	if !hasStatements(root) {
		tree.Close()
		return &models.SyntaxError{Message: "source contains no statements"}
	}

	if s.Sandbox != nil {
		if err := s.compile(ctx, in.Source); err != nil {
			tree.Close()
			return err
		}
	}

	in.Tree = tree
	return nil
}

type compileResult struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
	Line  int    `json:"line"`
}

// compile byte-compiles src in a fresh scope. A probe that times out or
// prints no result leaves the verdict to the runtime stage.
func (s SyntaxStage) compile(ctx context.Context, src []byte) error {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	scope, err := s.Sandbox.NewScope()
	if err != nil {
		return err
	}
	defer scope.Close()

	if _, err := scope.WriteFile(CandidateFile, src); err != nil {
		return err
	}
	if _, err := scope.WriteFile(compileHarnessFile, compileHarness); err != nil {
		return err
	}

	res, err := scope.Run(ctx, timeout, compileHarnessFile, CandidateFile)
	if err != nil {
		return err
	}
	if res.TimedOut || res.ExitCode != 0 {
		return nil
	}

	var cr compileResult
	if err := json.Unmarshal([]byte(strings.TrimSpace(res.Stdout)), &cr); err != nil || cr.OK {
		return nil
	}
	return &models.SyntaxError{Message: scope.Sanitize(cr.Error), Line: cr.Line}
}

// firstSyntaxError returns the first ERROR or MISSING node in document order.
func firstSyntaxError(node *sitter.Node, depth int) *sitter.Node {
	// Prevent stack overflow on deeply nested trees
	if depth > 1000 {
		return nil
	}
	if node.IsError() || node.IsMissing() {
		return node
	}
	if !node.HasError() {
		return nil
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		if found := firstSyntaxError(node.Child(i), depth+1); found != nil {
			return found
		}
	}
	return nil
}

func describeSyntaxError(node *sitter.Node, src []byte) string {
	if node.IsMissing() {
		return fmt.Sprintf("missing %q", node.Type())
	}
	text := strings.TrimSpace(node.Content(src))
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	if text == "" {
		return "invalid syntax"
	}
	return fmt.Sprintf("invalid syntax near %q", truncate(text, 40))
}

// hasStatements reports whether the module has anything besides comments.
func hasStatements(root *sitter.Node) bool {
	for i := 0; i < int(root.NamedChildCount()); i++ {
		if root.NamedChild(i).Type() != "comment" {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
