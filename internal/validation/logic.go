package validation

import (
	"bytes"
	"context"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/Manik0107/VATA/internal/models"
)

// LogicStage scans the parse tree against the rule table. Every violation
// is collected; the stage never stops at the first one.
type LogicStage struct {
	Rules *RuleSet
}

// Stage implements Stage.
func (LogicStage) Stage() models.Stage { return models.StageLogic }

// Check implements Stage.
func (s LogicStage) Check(ctx context.Context, in *Input) error {
	rules := s.Rules
	if rules == nil {
		rules = DefaultRules()
	}
	if in.Tree == nil {
		tree, err := parse(ctx, in.Source)
		if err != nil {
			return err
		}
		in.Tree = tree
	}

	violations := Scan(rules, in.Tree.RootNode(), in.Source)
	if len(violations) == 0 {
		return nil
	}
	return &models.LogicError{Violations: violations}
}

// Scan returns every rule violation in the tree, sorted by line then rule ID.
func Scan(rules *RuleSet, root *sitter.Node, src []byte) []models.RuleViolation {
	sc := &scanner{rules: rules, src: src, seen: make(map[violationKey]bool)}
	sc.walk(root, 0)
	sc.checkImports()
	sc.checkPatterns()

	sort.SliceStable(sc.out, func(i, j int) bool {
		if sc.out[i].Line != sc.out[j].Line {
			return sc.out[i].Line < sc.out[j].Line
		}
		return sc.out[i].RuleID < sc.out[j].RuleID
	})
	return sc.out
}

type violationKey struct {
	rule string
	line int
}

type scanner struct {
	rules   *RuleSet
	src     []byte
	imports map[string]bool
	seen    map[violationKey]bool
	out     []models.RuleViolation
}

func (sc *scanner) add(r *Rule, line int) {
	key := violationKey{r.ID, line}
	if sc.seen[key] {
		return
	}
	sc.seen[key] = true
	sc.out = append(sc.out, models.RuleViolation{RuleID: r.ID, Message: r.Message, Line: line})
}

func (sc *scanner) walk(node *sitter.Node, depth int) {
	if node == nil || depth > 1000 {
		return
	}

	switch node.Type() {
	case "call":
		sc.visitCall(node)
	case "attribute":
		if attr := node.ChildByFieldName("attribute"); attr != nil {
			for _, r := range sc.rules.byName[RuleAttribute][attr.Content(sc.src)] {
				sc.add(r, lineOf(attr))
			}
		}
	case "import_statement":
		for i := 0; i < int(node.NamedChildCount()); i++ {
			child := node.NamedChild(i)
			if child.Type() == "aliased_import" {
				child = child.ChildByFieldName("name")
			}
			if child != nil {
				sc.addImport(child.Content(sc.src))
			}
		}
	case "import_from_statement":
		if mod := node.ChildByFieldName("module_name"); mod != nil {
			sc.addImport(mod.Content(sc.src))
		}
	}

	for i := 0; i < int(node.NamedChildCount()); i++ {
		sc.walk(node.NamedChild(i), depth+1)
	}
}

func (sc *scanner) visitCall(node *sitter.Node) {
	fn := node.ChildByFieldName("function")
	if fn == nil {
		return
	}
	callee := calleeName(fn, sc.src)

	if fn.Type() == "identifier" {
		for _, r := range sc.rules.byName[RuleCall][callee] {
			sc.add(r, lineOf(fn))
		}
	}

	args := node.ChildByFieldName("arguments")
	if args == nil {
		return
	}
	for i := 0; i < int(args.NamedChildCount()); i++ {
		arg := args.NamedChild(i)
		if arg.Type() != "keyword_argument" {
			continue
		}
		name := arg.ChildByFieldName("name")
		if name == nil {
			continue
		}
		for _, r := range sc.rules.byName[RuleKeyword][name.Content(sc.src)] {
			if r.appliesTo(callee) {
				sc.add(r, lineOf(name))
			}
		}
	}
}

// calleeName is the identifier being called: Axes for Axes(...) and plot
// for axes.plot(...).
func calleeName(fn *sitter.Node, src []byte) string {
	switch fn.Type() {
	case "identifier":
		return fn.Content(src)
	case "attribute":
		if attr := fn.ChildByFieldName("attribute"); attr != nil {
			return attr.Content(src)
		}
	}
	return ""
}

func (sc *scanner) addImport(module string) {
	if sc.imports == nil {
		sc.imports = make(map[string]bool)
	}
	sc.imports[module] = true
	// "manim.animation" also satisfies a requirement on "manim"
	if i := strings.IndexByte(module, '.'); i > 0 {
		sc.imports[module[:i]] = true
	}
}

func (sc *scanner) checkImports() {
	for _, r := range sc.rules.Rules {
		if r.Kind == RuleImport && !sc.imports[r.Module] {
			sc.add(r, 1)
		}
	}
}

func (sc *scanner) checkPatterns() {
	var patterns []*Rule
	for _, r := range sc.rules.Rules {
		if r.Kind == RulePattern {
			patterns = append(patterns, r)
		}
	}
	if len(patterns) == 0 {
		return
	}

	for i, line := range bytes.Split(sc.src, []byte("\n")) {
		trimmed := bytes.TrimSpace(line)
		if len(trimmed) == 0 || trimmed[0] == '#' {
			continue
		}
		for _, r := range patterns {
			if r.re.Match(line) {
				sc.add(r, i+1)
			}
		}
	}
}

func lineOf(n *sitter.Node) int {
	return int(n.StartPoint().Row) + 1
}
