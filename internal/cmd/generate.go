package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Manik0107/VATA/internal/budget"
	"github.com/Manik0107/VATA/internal/config"
	"github.com/Manik0107/VATA/internal/generation"
	"github.com/Manik0107/VATA/internal/history"
	"github.com/Manik0107/VATA/internal/llm"
	"github.com/Manik0107/VATA/internal/logger"
	"github.com/Manik0107/VATA/internal/metrics"
	"github.com/Manik0107/VATA/internal/models"
	"github.com/Manik0107/VATA/internal/parser"
	"github.com/Manik0107/VATA/internal/pipeline"
	"github.com/Manik0107/VATA/internal/repair"
	"github.com/Manik0107/VATA/internal/sandbox"
	"github.com/Manik0107/VATA/internal/validation"
)

// NewGenerateCommand creates the generate command
func NewGenerateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate <storyboard-file-or-directory>...",
		Short: "Generate validated scene code from storyboards",
		Long: `Generate Manim scene code for one or more storyboards.

Storyboards may be JSON, YAML or Markdown. Directories are searched
recursively. Each storyboard runs through the strategy selector on its
own; up to --concurrency storyboards run at once.

For every storyboard <name>.json the command writes <output-dir>/<name>.py
and <output-dir>/<name>.report.json. An existing <name>.py is kept as
<name>.py.backup.<unix>.

Examples:
  vata generate storyboard.json
  vata generate storyboards/ --concurrency 4
  vata generate --dry-run storyboards/
  vata generate --backend none storyboard.md     # rule-based strategies only
  vata generate --max-attempts 5 --repair-budget 10m storyboard.yaml`,
		Args: cobra.MinimumNArgs(1),
		RunE: generateCommand,
	}

	cmd.Flags().Bool("dry-run", false, "Parse and check storyboards without generating code")
	cmd.Flags().Int("max-attempts", 0, "Maximum repair calls per strategy (default: config)")
	cmd.Flags().String("repair-budget", "", "Wall-clock budget per strategy repair sequence (e.g., 5m)")
	cmd.Flags().String("runtime-timeout", "", "Timeout for the runtime stage (e.g., 60s)")
	cmd.Flags().String("log-dir", "", "Directory for log files")
	cmd.Flags().StringP("output-dir", "o", "", "Directory for generated scene files")
	cmd.Flags().String("backend", "", "Model backend: gemini, openai, claude-cli, none")
	cmd.Flags().String("model", "", "Model name")
	cmd.Flags().Int("concurrency", 0, "Number of storyboards processed at once (default: config)")
	cmd.Flags().Bool("no-history", false, "Do not record runs in the history database")

	return cmd
}

// generateCommand implements the generate command logic
func generateCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := mergeGenerateFlags(cmd, cfg); err != nil {
		return err
	}
	if err := finishConfig(cfg); err != nil {
		return err
	}

	files, err := parser.FilterStoryboardFiles(args)
	if err != nil {
		return fmt.Errorf("failed to find storyboards: %w", err)
	}

	out := cmd.OutOrStdout()
	boards := make([]*models.Storyboard, 0, len(files))
	for _, f := range files {
		sb, err := parser.ParseFile(f)
		if err != nil {
			return fmt.Errorf("failed to load storyboard %s: %w", f, err)
		}
		boards = append(boards, sb)
	}
	if err := checkOutputCollisions(cfg.OutputDir, boards); err != nil {
		return err
	}

	fmt.Fprintf(out, "Loaded %d storyboard(s)\n", len(boards))
	for _, sb := range boards {
		fmt.Fprintf(out, "  - %s: %q, %d scene(s) -> %s\n",
			filepath.Base(sb.SourcePath), sb.Topic, sb.SceneCount(), outputPath(cfg.OutputDir, sb))
	}

	if dryRun, _ := cmd.Flags().GetBool("dry-run"); dryRun {
		fmt.Fprintf(out, "\nDry-run mode: storyboards are valid.\n")
		return nil
	}
	fmt.Fprintln(out)

	g, err := newGenerator(cfg, out)
	if err != nil {
		return err
	}
	defer g.Close()

	results, err := g.runAll(cmd.Context(), boards)
	printResults(out, results)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\nLogs written to: %s\n", g.fileLog.LogDir())
	return nil
}

func mergeGenerateFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()

	var maxAttemptsPtr *int
	if flags.Changed("max-attempts") {
		v, _ := flags.GetInt("max-attempts")
		maxAttemptsPtr = &v
	}

	durationFlag := func(name string) (*time.Duration, error) {
		if !flags.Changed(name) {
			return nil, nil
		}
		s, _ := flags.GetString(name)
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("invalid %s format %q: %w", name, s, err)
		}
		return &d, nil
	}
	repairBudgetPtr, err := durationFlag("repair-budget")
	if err != nil {
		return err
	}
	runtimeTimeoutPtr, err := durationFlag("runtime-timeout")
	if err != nil {
		return err
	}

	stringFlag := func(name string) *string {
		if !flags.Changed(name) {
			return nil
		}
		s, _ := flags.GetString(name)
		return &s
	}

	var concurrencyPtr *int
	if flags.Changed("concurrency") {
		v, _ := flags.GetInt("concurrency")
		concurrencyPtr = &v
	}

	cfg.MergeWithFlags(maxAttemptsPtr, repairBudgetPtr, runtimeTimeoutPtr,
		stringFlag("log-dir"), stringFlag("output-dir"), stringFlag("backend"), stringFlag("model"),
		concurrencyPtr)

	if noHistory, _ := flags.GetBool("no-history"); noHistory {
		cfg.History.Enabled = false
	}
	return nil
}

// outputPath maps a storyboard to <outputDir>/<base name>.py.
func outputPath(outputDir string, sb *models.Storyboard) string {
	base := filepath.Base(sb.SourcePath)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	if name == "" || name == "." {
		name = generation.MethodName(sb.Topic)
	}
	return filepath.Join(outputDir, name+".py")
}

func checkOutputCollisions(outputDir string, boards []*models.Storyboard) error {
	seen := make(map[string]string, len(boards))
	for _, sb := range boards {
		p := outputPath(outputDir, sb)
		if prev, ok := seen[p]; ok {
			return fmt.Errorf("storyboards %s and %s would both write %s", prev, sb.SourcePath, p)
		}
		seen[p] = sb.SourcePath
	}
	return nil
}

// runResult is the outcome of one storyboard.
type runResult struct {
	Storyboard string
	Output     string
	Backup     string
	Report     *models.ProvenanceReport
	Err        error
}

// generator holds what is shared by all runs of one invocation: the model
// client (so pacing is global), the rule table, loggers and recorders.
// Sandboxes and pipelines are built per run.
type generator struct {
	cfg       *config.Config
	console   *logger.ConsoleLogger
	fileLog   *logger.FileLogger
	client    llm.Client
	rules     *validation.RuleSet
	recorders []pipeline.Recorder
	store     *history.Store
}

func newGenerator(cfg *config.Config, out io.Writer) (*generator, error) {
	g := &generator{cfg: cfg}

	g.console = logger.NewConsoleLogger(out, cfg.LogLevel)
	fileLog, err := logger.NewFileLogger(cfg.LogDir, cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to create file logger: %w", err)
	}
	g.fileLog = fileLog

	shared := logger.NewMultiLogger(g.console, g.fileLog)
	g.client, err = llm.New(cfg.LLM, shared)
	if err != nil {
		g.Close()
		return nil, fmt.Errorf("failed to create model client: %w", err)
	}

	g.rules, err = loadRules(cfg.RulesFile)
	if err != nil {
		g.Close()
		return nil, err
	}

	if cfg.History.Enabled {
		dbPath, err := cfg.GetHistoryDBPath()
		if err != nil {
			g.Close()
			return nil, fmt.Errorf("failed to get history database path: %w", err)
		}
		g.store, err = history.NewStore(dbPath)
		if err != nil {
			g.Close()
			return nil, fmt.Errorf("open history store: %w", err)
		}
		g.recorders = append(g.recorders, g.store)
	}
	if cfg.MetricsFile != "" {
		rec, err := metrics.New(cfg.MetricsFile)
		if err != nil {
			g.Close()
			return nil, err
		}
		g.recorders = append(g.recorders, rec)
	}
	return g, nil
}

// Close releases the history store and the log file.
func (g *generator) Close() {
	if g.store != nil {
		g.store.Close()
	}
	if g.fileLog != nil {
		g.fileLog.Close()
	}
}

// runAll processes boards with at most cfg.Concurrency in flight. An
// environment fault or cancellation stops the remaining runs; results are
// returned in input order either way.
func (g *generator) runAll(ctx context.Context, boards []*models.Storyboard) ([]runResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	results := make([]runResult, len(boards))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.cfg.Concurrency)

	var mu sync.Mutex
	for i, sb := range boards {
		i, sb := i, sb
		eg.Go(func() error {
			res := g.runOne(egCtx, sb, len(boards) > 1)
			mu.Lock()
			results[i] = res
			mu.Unlock()
			if res.Err != nil && (models.IsEnvironmentFault(res.Err) || egCtx.Err() != nil) {
				return res.Err
			}
			return nil
		})
	}
	err := eg.Wait()

	if err == nil {
		var failed int
		for _, r := range results {
			if r.Err != nil {
				failed++
			}
		}
		if failed > 0 {
			err = fmt.Errorf("%d storyboard(s) failed", failed)
		}
	}
	return results, err
}

// runOne builds a fresh sandbox and pipeline for sb, runs it and writes
// the output.
func (g *generator) runOne(ctx context.Context, sb *models.Storyboard, prefixed bool) runResult {
	res := runResult{Storyboard: sb.SourcePath, Output: outputPath(g.cfg.OutputDir, sb)}
	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}

	console := g.console
	if prefixed {
		console = console.WithPrefix(strings.TrimSuffix(filepath.Base(res.Output), ".py"))
	}
	runFile := g.fileLog.ForRun()
	log := logger.NewMultiLogger(console, runFile)

	root, err := makeRunRoot(g.cfg.Sandbox.Root)
	if err != nil {
		res.Err = models.NewEnvironmentFault("create sandbox root", err)
		return res
	}
	defer os.RemoveAll(root)

	sbx, err := newSandbox(g.cfg, root)
	if err != nil {
		res.Err = err
		log.Errorf("Sandbox unavailable: %v", err)
		return res
	}

	p, err := g.newPipeline(sbx, log)
	if err != nil {
		res.Err = err
		return res
	}

	source, report, err := p.GenerateValidatedAnimation(ctx, sb)
	res.Report = report
	if err != nil {
		res.Err = err
		log.Errorf("Run aborted: %v", err)
		if report != nil && report.RunID != "" {
			if _, saveErr := runFile.SaveTranscript(report.RunID); saveErr != nil {
				console.Warnf("Failed to save run transcript: %v", saveErr)
			}
		}
		return res
	}

	res.Backup, err = pipeline.WriteOutput(res.Output, source, report)
	if err != nil {
		res.Err = err
		log.Errorf("Failed to write output: %v", err)
		return res
	}
	if res.Backup != "" {
		log.Infof("Previous %s kept as %s", filepath.Base(res.Output), filepath.Base(res.Backup))
	}
	return res
}

func (g *generator) newPipeline(sbx *sandbox.Sandbox, log *logger.MultiLogger) (*pipeline.Pipeline, error) {
	validator := validation.New(validation.Options{
		Sandbox:              sbx,
		Rules:                g.rules,
		RuntimeTimeout:       g.cfg.RuntimeTimeout,
		InstantiationTimeout: g.cfg.InstantiationTimeout,
		Contract:             sceneContract(g.cfg),
		Logger:               log,
	})

	genOpts := generation.Options{
		BaseClass:   g.cfg.Scene.BaseClass,
		EntryMethod: g.cfg.Scene.EntryMethod,
		Temperature: g.cfg.LLM.Temperature,
		MaxTokens:   g.cfg.LLM.MaxTokens,
		Logger:      log,
	}

	strategies := generation.Ordered(g.client, genOpts)
	if g.cfg.LLM.Backend == "none" {
		strategies = []generation.Strategy{generation.NewLegacyGenerator(genOpts)}
	}

	return pipeline.New(pipeline.Options{
		Strategies: strategies,
		Fallback:   generation.NewTemplateFallback(genOpts),
		Validator:  validator,
		Repairer:   repair.NewRepairer(repair.NewLLMService(g.client), log),
		Policy:     budget.Policy{MaxAttempts: g.cfg.MaxAttempts, Window: g.cfg.RepairBudget},
		Logger:     log,
		Recorders:  g.recorders,
	})
}

// makeRunRoot creates a private scope root for one run under base (or the
// system temp directory).
func makeRunRoot(base string) (string, error) {
	if base != "" {
		if err := os.MkdirAll(base, 0755); err != nil {
			return "", err
		}
	}
	return os.MkdirTemp(base, "vata-run-")
}

func printResults(w io.Writer, results []runResult) {
	if len(results) == 0 {
		return
	}
	fmt.Fprintf(w, "\nResults:\n")
	for _, r := range results {
		name := filepath.Base(r.Storyboard)
		switch {
		case r.Err != nil:
			fmt.Fprintf(w, "  - %s: FAILED (%v)\n", name, r.Err)
		case r.Report != nil:
			fmt.Fprintf(w, "  - %s: %s via %s -> %s\n", name, r.Report.Outcome, r.Report.FinalStrategy, r.Output)
		default:
			fmt.Fprintf(w, "  - %s: %s\n", name, r.Output)
		}
	}
}
