package validation

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

//go:embed default_rules.yaml
var defaultRulesYAML []byte

// RuleKind selects how a Rule is matched against a candidate.
type RuleKind string

const (
	RuleCall      RuleKind = "call"
	RuleKeyword   RuleKind = "keyword"
	RuleAttribute RuleKind = "attribute"
	RuleImport    RuleKind = "import"
	RulePattern   RuleKind = "pattern"
)

// Rule is one entry of the logic rule table.
type Rule struct {
	ID        string   `yaml:"id" validate:"required"`
	Kind      RuleKind `yaml:"kind" validate:"required,oneof=call keyword attribute import pattern"`
	Message   string   `yaml:"message" validate:"required"`
	Names     []string `yaml:"names,omitempty" validate:"required_if=Kind call,required_if=Kind attribute"`
	Keywords  []string `yaml:"keywords,omitempty" validate:"required_if=Kind keyword"`
	Callables []string `yaml:"callables,omitempty"`
	Module    string   `yaml:"module,omitempty" validate:"required_if=Kind import"`
	Pattern   string   `yaml:"pattern,omitempty" validate:"required_if=Kind pattern"`

	re *regexp.Regexp
}

// RuleSet is a validated, compiled rule table.
type RuleSet struct {
	Version string  `yaml:"version"`
	Rules   []*Rule `yaml:"rules" validate:"required,min=1,dive"`

	byName map[RuleKind]map[string][]*Rule
}

var ruleValidate = validator.New(validator.WithRequiredStructEnabled())

// DefaultRules returns the embedded rule table for Manim Community v0.18.
func DefaultRules() *RuleSet {
	rs, err := ParseRules(defaultRulesYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded rule table is invalid: %v", err))
	}
	return rs
}

// LoadRules reads a rule table from path. An empty path selects the
// embedded default.
func LoadRules(path string) (*RuleSet, error) {
	if path == "" {
		return DefaultRules(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	rs, err := ParseRules(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rs, nil
}

// ParseRules decodes, validates and compiles a YAML rule table.
func ParseRules(data []byte) (*RuleSet, error) {
	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("failed to parse rules: %w", err)
	}
	if err := ruleValidate.Struct(&rs); err != nil {
		return nil, fmt.Errorf("invalid rules: %w", err)
	}

	seen := make(map[string]bool, len(rs.Rules))
	for _, r := range rs.Rules {
		if seen[r.ID] {
			return nil, fmt.Errorf("duplicate rule id %q", r.ID)
		}
		seen[r.ID] = true
		if r.Kind == RulePattern {
			re, err := regexp.Compile(r.Pattern)
			if err != nil {
				return nil, fmt.Errorf("rule %s: invalid pattern: %w", r.ID, err)
			}
			r.re = re
		}
	}
	rs.index()
	return &rs, nil
}

func (rs *RuleSet) index() {
	rs.byName = map[RuleKind]map[string][]*Rule{
		RuleCall:      {},
		RuleKeyword:   {},
		RuleAttribute: {},
	}
	for _, r := range rs.Rules {
		switch r.Kind {
		case RuleCall, RuleAttribute:
			for _, n := range r.Names {
				rs.byName[r.Kind][n] = append(rs.byName[r.Kind][n], r)
			}
		case RuleKeyword:
			for _, k := range r.Keywords {
				rs.byName[RuleKeyword][k] = append(rs.byName[RuleKeyword][k], r)
			}
		}
	}
}

// Sorted returns the rules ordered by ID.
func (rs *RuleSet) Sorted() []*Rule {
	out := append([]*Rule(nil), rs.Rules...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Subject describes what a rule matches, for listings.
func (r *Rule) Subject() string {
	switch r.Kind {
	case RuleCall, RuleAttribute:
		return strings.Join(r.Names, ", ")
	case RuleKeyword:
		s := strings.Join(r.Keywords, ", ")
		if len(r.Callables) > 0 {
			s += " in " + strings.Join(r.Callables, ", ")
		}
		return s
	case RuleImport:
		return r.Module
	case RulePattern:
		return r.Pattern
	}
	return ""
}

func (r *Rule) appliesTo(callee string) bool {
	if len(r.Callables) == 0 {
		return true
	}
	for _, c := range r.Callables {
		if c == callee {
			return true
		}
	}
	return false
}
