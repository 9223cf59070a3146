package commands

import (
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/traitmint/catalog"
	"github.com/teranos/traitmint/errors"
)

// TableCmd writes the ratio table of the trait catalog
var TableCmd = &cobra.Command{
	Use:   "table",
	Short: "Scan the trait catalog and write the ratio table",
	Long: `Scan the trait catalog and write the ratio table.

The catalog is laid out as <catalog.root>/<group>/<NN>_<property>/<value>.<ext>,
where NN orders the properties (and therefore the layers). Every asset is
written to catalog.ratio_table with raw weight 1; edit the weights afterwards
to make values rarer or more common.

Examples:
  traitmint table                       # Write ./ratio.csv from ./parts
  traitmint table --root art --force    # Rescan ./art, overwriting the table`,
	RunE: runTable,
}

var tableForce bool

func init() {
	TableCmd.Flags().String("root", "", "Catalog root directory")
	TableCmd.Flags().String("out", "", "Ratio table path")
	TableCmd.Flags().BoolVar(&tableForce, "force", false, "Overwrite an existing ratio table")
}

func runTable(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, map[string]string{
		"root": "catalog.root",
		"out":  "catalog.ratio_table",
	})
	if err != nil {
		return err
	}

	out := cfg.Catalog.RatioTable
	if _, err := os.Stat(out); err == nil && !tableForce {
		return errors.NewResourceConflictError("ratio table %s already exists (use --force to overwrite)", out)
	}

	cat, err := catalog.Scan(cfg.Catalog.Root, cfg.Catalog.Extensions)
	if err != nil {
		return err
	}
	if err := catalog.WriteRatioTable(out, cat.Rows); err != nil {
		return err
	}

	pterm.Success.Printf("Wrote %d values across %d groups and %d properties to %s\n",
		len(cat.Rows), len(cat.Groups), len(cat.Properties), out)
	pterm.Info.Printf("Layer order: %v\n", cat.Properties)
	return nil
}
