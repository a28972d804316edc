package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Manik0107/VATA/internal/models"
	"github.com/Manik0107/VATA/internal/pipeline"
	"github.com/Manik0107/VATA/internal/validation"
)

// errValidationFailed makes the command exit non-zero after the
// per-file verdicts have been printed.
var errValidationFailed = errors.New("validation failed")

// NewValidateCommand creates and returns the validate subcommand
func NewValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <scene-file>...",
		Short: "Run the validation stages on existing scene files",
		Long: `Validate one or more Python scene files with the same four stages the
generator uses:
  1. syntax               - the file parses as Python
  2. logic                - no call, keyword, attribute or import matches the rule table
  3. runtime              - the module imports and runs in the sandbox
  4. scene-instantiation  - the scene class can be built and exposes its entry method

Validation stops at the first failing stage. Use --static to run only
the syntax and logic stages (no Python interpreter needed).

Exit code: 0 if every file passes, 1 otherwise`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return validateCommand(cmd, args)
		},
		SilenceUsage: true,
	}

	cmd.Flags().String("rules", "", "Rule table file (default: config rules_file or the built-in table)")
	cmd.Flags().Bool("static", false, "Run only the syntax and logic stages")

	return cmd
}

func validateCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if rulesFlag, _ := cmd.Flags().GetString("rules"); rulesFlag != "" {
		cfg.RulesFile = rulesFlag
	}
	if err := finishConfig(cfg); err != nil {
		return err
	}

	rules, err := loadRules(cfg.RulesFile)
	if err != nil {
		return err
	}

	static, _ := cmd.Flags().GetBool("static")
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var v pipeline.Validator
	if static {
		v = validation.NewWithStages(validation.SyntaxStage{}, validation.LogicStage{Rules: rules})
	} else {
		root, err := makeRunRoot(cfg.Sandbox.Root)
		if err != nil {
			return models.NewEnvironmentFault("create sandbox root", err)
		}
		defer os.RemoveAll(root)

		sbx, err := newSandbox(cfg, root)
		if err != nil {
			return err
		}
		v = validation.New(validation.Options{
			Sandbox:              sbx,
			Rules:                rules,
			RuntimeTimeout:       cfg.RuntimeTimeout,
			InstantiationTimeout: cfg.InstantiationTimeout,
			Contract:             sceneContract(cfg),
		})
	}

	return validateFiles(ctx, v, args, cmd.OutOrStdout())
}

// validateFiles validates each file and prints its verdict. Candidate
// failures are collected; an environment fault aborts immediately.
func validateFiles(ctx context.Context, v pipeline.Validator, paths []string, output io.Writer) error {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	failed := 0
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(output, "%s %s: %v\n", red("✗"), path, err)
			failed++
			continue
		}

		verdict, err := v.Validate(ctx, models.NewCandidate(string(data), ""))
		if err != nil {
			return fmt.Errorf("validate %s: %w", path, err)
		}

		name := filepath.Base(path)
		if verdict.Passed() {
			fmt.Fprintf(output, "%s %s passed all stages (%s)\n", green("✓"), name, verdict.Duration.Round(time.Millisecond))
			continue
		}

		failed++
		fmt.Fprintf(output, "%s %s failed %s stage\n", red("✗"), name, verdict.StageReached)
		printDiagnostic(output, verdict.Diagnostic)
	}

	if failed > 0 {
		fmt.Fprintf(output, "\n%d of %d file(s) failed validation\n", failed, len(paths))
		return errValidationFailed
	}
	return nil
}

func printDiagnostic(w io.Writer, d *models.Diagnostic) {
	if d == nil {
		return
	}
	fmt.Fprintf(w, "  %s\n", d)
	for _, v := range d.Violations {
		if v.Line > 0 {
			fmt.Fprintf(w, "    - [%s] line %d: %s\n", v.RuleID, v.Line, v.Message)
		} else {
			fmt.Fprintf(w, "    - [%s] %s\n", v.RuleID, v.Message)
		}
	}
}
