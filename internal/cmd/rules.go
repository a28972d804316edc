package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Manik0107/VATA/internal/validation"
)

// NewRulesCommand creates the rules command
func NewRulesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "List the logic rule table",
		Long: `List the rules checked by the logic stage.

The table comes from --rules, then rules_file in the config, then the
built-in table for Manim Community v0.18. A rules file that fails to
parse or validate is reported with the offending rule.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if path, _ := cmd.Flags().GetString("rules"); path != "" {
				cfg.RulesFile = path
			}
			rules, err := loadRules(cfg.RulesFile)
			if err != nil {
				return err
			}
			source := cfg.RulesFile
			if source == "" {
				source = "built-in"
			}
			kind, _ := cmd.Flags().GetString("kind")
			return renderRules(cmd.OutOrStdout(), rules, source, kind)
		},
	}

	cmd.Flags().String("rules", "", "Rule table file to list instead of the configured one")
	cmd.Flags().String("kind", "", "Only list rules of this kind (call, keyword, attribute, import, pattern)")

	return cmd
}

func renderRules(w io.Writer, rules *validation.RuleSet, source, kind string) error {
	table := newTable(w, "ID", "Kind", "Matches", "Message")
	n := 0
	for _, r := range rules.Sorted() {
		if kind != "" && !strings.EqualFold(string(r.Kind), kind) {
			continue
		}
		table.Append([]string{r.ID, string(r.Kind), truncateCell(r.Subject(), 48), r.Message})
		n++
	}
	if kind != "" && n == 0 {
		return fmt.Errorf("no rules of kind %q", kind)
	}

	fmt.Fprintf(w, "Rule table: %s (version %s, %d rules)\n\n", source, orDash(rules.Version), len(rules.Rules))
	table.Render()
	return nil
}
