package commands

import (
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/traitmint/am"
	"github.com/teranos/traitmint/catalog"
	"github.com/teranos/traitmint/compose"
	"github.com/teranos/traitmint/generate"
	"github.com/teranos/traitmint/logger"
)

// GenerateCmd runs a generation batch
var GenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a batch of unique artifacts",
	Long: `Generate a batch of unique artifacts.

Every artifact is drawn from the distribution table, passed through the rule
table, checked against every artifact already accepted in the run, and
composed into <output_dir>/<index>-<value1>-...-<valueN>.<ext>. The attribute
table is written to <output_dir>/<attr_table> in index order.

The run is refused before anything is written when the output directory
already holds images, when the amount exceeds the distinct combinations of
the catalog, or when it is too small to draw the rarest trait at least once.

Examples:
  traitmint generate --amount 500
  traitmint generate --amount 50 --start-id 1001 --seed 7
  traitmint generate --dry-run          # Preflight checks only`,
	RunE: runGenerate,
}

var generateDryRun bool

// generateFlagKeys maps generate flags to configuration keys
var generateFlagKeys = map[string]string{
	"amount":       "generate.amount",
	"start-id":     "generate.start_id",
	"output-dir":   "generate.output_dir",
	"workers":      "generate.workers",
	"seed":         "generate.seed",
	"format":       "generate.format",
	"quality":      "generate.quality",
	"parallel":     "generate.parallel",
	"max-attempts": "generate.max_attempts",
}

func init() {
	GenerateCmd.Flags().IntP("amount", "n", 0, "Number of artifacts to generate")
	GenerateCmd.Flags().Int("start-id", 0, "Index of the first artifact")
	GenerateCmd.Flags().StringP("output-dir", "o", "", "Directory for artifacts and the attribute table")
	GenerateCmd.Flags().IntP("workers", "w", 0, "Parallel workers (0 = hardware parallelism - 1)")
	GenerateCmd.Flags().Uint64("seed", 0, "Random seed (0 = random)")
	GenerateCmd.Flags().String("format", "", "Output format: png or jpeg")
	GenerateCmd.Flags().Int("quality", 0, "JPEG quality 1..100")
	GenerateCmd.Flags().Bool("parallel", true, "Use parallel workers")
	GenerateCmd.Flags().Int("max-attempts", 0, "Consecutive rejections allowed per artifact")
	GenerateCmd.Flags().BoolVar(&generateDryRun, "dry-run", false, "Run preflight checks only")
}

// newComposer builds the composer for the configured canvas and format
func newComposer(cfg *am.Config, cat *catalog.Catalog) (*compose.Composer, error) {
	format, err := compose.ParseFormat(cfg.Generate.Format)
	if err != nil {
		return nil, err
	}
	return compose.New(cat, compose.Options{
		Width:     cfg.Canvas.Width,
		Height:    cfg.Canvas.Height,
		Format:    format,
		Quality:   cfg.Generate.Quality,
		OutDir:    cfg.Generate.OutputDir,
		CacheSize: cfg.Generate.CacheSize,
	}, logger.ComponentLogger("compose"))
}

// coordinatorConfig resolves the batch configuration for amount artifacts
func coordinatorConfig(cfg *am.Config, amount int) generate.Config {
	return generate.Config{
		Amount:      amount,
		StartID:     cfg.Generate.StartID,
		OutputDir:   cfg.Generate.OutputDir,
		Workers:     generate.ResolveWorkers(cfg.Generate.Workers, cfg.Generate.Parallel, amount),
		Seed:        cfg.Generate.Seed,
		MaxAttempts: cfg.GetMaxAttempts(),
		AttrTable:   cfg.Generate.AttrTable,
		Width:       cfg.Canvas.Width,
		Height:      cfg.Canvas.Height,
	}
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, generateFlagKeys)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext(cmd)
	defer cancel()

	cat, err := loadCatalog(cfg)
	if err != nil {
		return err
	}
	dist, err := buildDistribution(cfg, cat)
	if err != nil {
		return err
	}
	ruleTable, err := loadRules(cfg, cat)
	if err != nil {
		return err
	}

	deps := generate.Deps{Table: dist, Rules: ruleTable, Emitter: newEmitter(cmd)}
	batch := coordinatorConfig(cfg, cfg.Generate.Amount)

	if generateDryRun {
		coord, err := generate.NewCoordinator(batch, deps, logger.ComponentLogger("generate"))
		if err != nil {
			return err
		}
		if err := coord.Preflight(); err != nil {
			return err
		}
		pterm.Success.Printf("Preflight passed: %d artifacts fit %d distinct combinations (%d rules)\n",
			batch.Amount, dist.Capacity(), ruleTable.Len())
		return nil
	}

	composer, err := newComposer(cfg, cat)
	if err != nil {
		return err
	}
	deps.Composer = composer

	store, database, err := openLedger(cfg)
	if err != nil {
		return err
	}
	if database != nil {
		defer database.Close()
		deps.Ledger = store
	}

	coord, err := generate.NewCoordinator(batch, deps, logger.ComponentLogger("generate"))
	if err != nil {
		return err
	}
	result, err := coord.Generate(ctx)
	if err != nil {
		return err
	}

	if !jsonMode(cmd) {
		printResult(result)
	}
	return nil
}

// printResult prints the summary of a finished run
func printResult(result *generate.Result) {
	pterm.Println()
	pterm.Success.Printf("Composed %d artifacts in %s\n", len(result.Artifacts), result.Duration.Round(time.Millisecond))
	pterm.Printf("  Run:                %s\n", result.RunID)
	pterm.Printf("  Seed:               %d\n", result.Seed)
	pterm.Printf("  Attempts:           %d\n", result.Counters.Attempts)
	pterm.Printf("  Rule rejections:    %d\n", result.Counters.RuleRejected)
	pterm.Printf("  Duplicate draws:    %d\n", result.Counters.DuplicateRejected)
	if result.TablePath != "" {
		pterm.Printf("  Attribute table:    %s\n", result.TablePath)
	}
	if n := len(result.Artifacts); n > 0 {
		pterm.Printf("  Index range:        %d..%d\n", result.Artifacts[0].Index, result.Artifacts[n-1].Index)
	}
}
