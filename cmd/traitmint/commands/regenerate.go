package commands

import (
	"github.com/spf13/cobra"

	"github.com/teranos/traitmint/generate"
	"github.com/teranos/traitmint/logger"
	"github.com/teranos/traitmint/table"
)

// RegenerateCmd re-renders artifacts from an attribute table
var RegenerateCmd = &cobra.Command{
	Use:   "regenerate <attr.csv>",
	Short: "Re-render artifacts from an attribute table",
	Long: `Re-render artifacts from an attribute table.

Each row of the table is composed again exactly as listed, with index
start_id + row position, into an empty output directory. Use it after
editing artwork or changing the canvas, or to render a hand-curated table.
Every value must exist in the catalog; the table columns must match the
catalog's property order.

Examples:
  traitmint regenerate images/attr.csv -o images-v2
  traitmint regenerate curated.csv --start-id 1 --format jpeg`,
	Args: cobra.ExactArgs(1),
	RunE: runRegenerate,
}

func init() {
	RegenerateCmd.Flags().Int("start-id", 0, "Index of the first row")
	RegenerateCmd.Flags().StringP("output-dir", "o", "", "Directory for artifacts and the rewritten attribute table")
	RegenerateCmd.Flags().IntP("workers", "w", 0, "Parallel workers (0 = hardware parallelism - 1)")
	RegenerateCmd.Flags().String("format", "", "Output format: png or jpeg")
	RegenerateCmd.Flags().Int("quality", 0, "JPEG quality 1..100")
	RegenerateCmd.Flags().Bool("parallel", true, "Use parallel workers")
}

func runRegenerate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, generateFlagKeys)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext(cmd)
	defer cancel()

	properties, rows, err := table.Read(args[0])
	if err != nil {
		return err
	}
	cat, err := loadCatalog(cfg)
	if err != nil {
		return err
	}

	// Refuse before the composer creates the directory
	if err := generate.CheckOutputDir(cfg.Generate.OutputDir); err != nil {
		return err
	}
	composer, err := newComposer(cfg, cat)
	if err != nil {
		return err
	}
	deps := generate.Deps{Composer: composer, Emitter: newEmitter(cmd)}

	store, database, err := openLedger(cfg)
	if err != nil {
		return err
	}
	if database != nil {
		defer database.Close()
		deps.Ledger = store
	}

	coord, err := generate.NewCoordinator(coordinatorConfig(cfg, len(rows)), deps, logger.ComponentLogger("regenerate"))
	if err != nil {
		return err
	}
	result, err := coord.Regenerate(ctx, cat, cfg.GroupNames(), properties, rows)
	if err != nil {
		return err
	}

	if !jsonMode(cmd) {
		printResult(result)
	}
	return nil
}
