package commands

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teranos/traitmint/am"
	"github.com/teranos/traitmint/catalog"
	"github.com/teranos/traitmint/db"
	"github.com/teranos/traitmint/distribution"
	"github.com/teranos/traitmint/errors"
	"github.com/teranos/traitmint/ledger"
	"github.com/teranos/traitmint/logger"
	"github.com/teranos/traitmint/progress"
	"github.com/teranos/traitmint/rules"
)

// loadConfig binds the changed flags of cmd to their configuration keys,
// loads and validates the configuration.
func loadConfig(cmd *cobra.Command, flagKeys map[string]string) (*am.Config, error) {
	v := am.GetViper()
	for flag, key := range flagKeys {
		if f := cmd.Flags().Lookup(flag); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, errors.Wrapf(err, "failed to bind --%s", flag)
			}
		}
	}
	cfg, err := am.LoadWithViper(v)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// signalContext is canceled on Ctrl+C or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

// jsonMode reports whether --json was given.
func jsonMode(cmd *cobra.Command) bool {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	return jsonOutput
}

// newEmitter returns the JSON emitter under --json, the terminal emitter otherwise.
func newEmitter(cmd *cobra.Command) progress.Emitter {
	if jsonMode(cmd) {
		return progress.NewJSONEmitter(os.Stdout)
	}
	verbosity, _ := cmd.Flags().GetCount("verbose")
	return progress.NewCLIEmitter(verbosity)
}

// openLedger opens the run ledger, or returns nil when database.path is empty.
func openLedger(cfg *am.Config) (*ledger.Store, *sql.DB, error) {
	path := cfg.GetDatabasePath()
	if path == "" {
		return nil, nil, nil
	}
	database, err := db.OpenWithMigrations(path, logger.ComponentLogger("db"))
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to open run ledger")
	}
	return ledger.NewStore(database, logger.ComponentLogger("ledger")), database, nil
}

// loadCatalog scans the catalog and applies the ratio table if present.
func loadCatalog(cfg *am.Config) (*catalog.Catalog, error) {
	cat, err := catalog.Load(cfg.Catalog.Root, cfg.Catalog.Extensions, cfg.Catalog.RatioTable)
	if err != nil {
		return nil, err
	}
	logger.Debugw("Loaded catalog",
		logger.FieldDir, cfg.Catalog.Root,
		logger.FieldCount, len(cat.Rows),
		"groups", cat.Groups,
		"properties", cat.Properties)
	return cat, nil
}

// buildDistribution normalizes the catalog under the configured group weights.
func buildDistribution(cfg *am.Config, cat *catalog.Catalog) (*distribution.Table, error) {
	return distribution.Build(cat.Rows, cat.Properties, cfg.GroupWeights())
}

// sampledGroups returns the configured groups that can be chosen.
func sampledGroups(cfg *am.Config) []string {
	var groups []string
	for _, g := range cfg.Groups {
		if g.Weight > 0 {
			groups = append(groups, g.Name)
		}
	}
	return groups
}

// loadRules loads the rule table and checks it against the catalog.
// A missing rule table means no rules.
func loadRules(cfg *am.Config, cat *catalog.Catalog) (*rules.Table, error) {
	path := cfg.Catalog.RuleTable
	if path != "" {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			logger.Infow("No rule table, generating without rules", logger.FieldPath, path)
			path = ""
		}
	}
	table, err := rules.Load(path)
	if err != nil {
		return nil, err
	}
	if err := table.Check(cat.Properties, sampledGroups(cfg), cat.HasAsset); err != nil {
		return nil, err
	}
	return table, nil
}
