package cmd

import (
	"github.com/spf13/cobra"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// NewRootCommand creates and returns the root cobra command for vata
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vata",
		Short: "Validated animation code generation",
		Long: `VATA turns educational storyboards into Manim scene code.

Each storyboard is handed to an ordered list of generation strategies.
Every candidate is validated in four stages (syntax, logic rules,
sandboxed runtime, scene instantiation) and failing candidates are
repaired by the model under an attempt and time budget. When every
strategy is exhausted a deterministic template is emitted instead.

Configuration is loaded from .vata/config.yaml if present.
CLI flags override configuration file settings.`,
		Version: Version,
		// Silence usage on errors to avoid duplicate help text
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String("config", "", "Path to config file (default: .vata/config.yaml)")
	cmd.PersistentFlags().String("log-level", "", "Log level: trace, debug, info, warn, error (default: config)")

	cmd.AddCommand(NewGenerateCommand())
	cmd.AddCommand(NewValidateCommand())
	cmd.AddCommand(NewReportCommand())
	cmd.AddCommand(NewHistoryCommand())
	cmd.AddCommand(NewRulesCommand())

	return cmd
}
