package commands

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/traitmint/distribution"
	"github.com/teranos/traitmint/generate"
	"github.com/teranos/traitmint/logger"
	"github.com/teranos/traitmint/table"
)

// CheckCmd runs the final duplicate check over an output directory
var CheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Deduplicate, renumber and report observed trait ratios",
	Long: `Deduplicate, renumber and report observed trait ratios.

Rescans the artifact file names in the output directory, deletes every
artifact whose trait tuple repeats an earlier one, renumbers the rest
contiguously from start_id, and rebuilds the attribute table. Afterwards the
observed share of every value is printed next to the share the distribution
table expects.

--columns restricts duplicate detection to some properties, e.g. to treat
artifacts that differ only in background as duplicates.

Examples:
  traitmint check
  traitmint check --columns FirstLetter,SecondLetter
  traitmint check --dry-run`,
	RunE: runCheck,
}

var (
	checkColumns []string
	checkDryRun  bool
)

func init() {
	CheckCmd.Flags().StringP("output-dir", "o", "", "Directory to check")
	CheckCmd.Flags().Int("start-id", 0, "Index of the first artifact after renumbering")
	CheckCmd.Flags().StringSliceVar(&checkColumns, "columns", nil, "Properties that define a duplicate (default: all)")
	CheckCmd.Flags().BoolVar(&checkDryRun, "dry-run", false, "Report without deleting or renaming")
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, map[string]string{
		"output-dir": "generate.output_dir",
		"start-id":   "generate.start_id",
	})
	if err != nil {
		return err
	}
	cat, err := loadCatalog(cfg)
	if err != nil {
		return err
	}

	report, err := table.Check(cfg.Generate.OutputDir, table.CheckOptions{
		Properties: cat.Properties,
		Columns:    checkColumns,
		StartID:    cfg.Generate.StartID,
		Extensions: generate.RasterExtensions,
		AttrTable:  cfg.Generate.AttrTable,
		DryRun:     checkDryRun,
	}, logger.ComponentLogger("check"))
	if err != nil {
		return err
	}

	verb := "Removed"
	if checkDryRun {
		verb = "Would remove"
	}
	pterm.Info.Printf("%s %d duplicates, renumbered %d artifacts, %d remain\n",
		verb, len(report.Removed), report.Renamed, len(report.Artifacts))
	for _, name := range report.Skipped {
		pterm.Warning.Printf("Skipped %s: name does not encode %d values\n", name, len(cat.Properties))
	}
	if !checkDryRun && cfg.Generate.AttrTable != "" {
		pterm.Info.Printf("Attribute table rewritten: %s\n", filepath.Join(cfg.Generate.OutputDir, cfg.Generate.AttrTable))
	}

	// Expected shares need the distribution; without it the report is observed-only
	dist, err := buildDistribution(cfg, cat)
	if err != nil {
		logger.Warnw("No expected ratios, distribution table unavailable", logger.FieldError, err)
		dist = nil
	}
	for _, property := range cat.Properties {
		pterm.DefaultSection.Println(property)
		if err := pterm.DefaultTable.WithHasHeader().WithData(ratioRows(property, report.Observed[property], dist)).Render(); err != nil {
			return err
		}
	}
	return nil
}

// ratioRows builds the observed vs expected table of one property. Values the
// distribution offers but no artifact shows are listed with 0% observed.
func ratioRows(property string, observed map[string]float64, dist *distribution.Table) pterm.TableData {
	values := table.SortedValues(observed)
	if dist != nil {
		seen := make(map[string]bool, len(values))
		for _, v := range values {
			seen[v] = true
		}
		for _, e := range dist.Entries() {
			if e.Property == property && !seen[e.Value] {
				seen[e.Value] = true
				values = append(values, e.Value)
			}
		}
		sort.Strings(values)
	}

	data := pterm.TableData{{"Value", "Observed", "Expected", "Δ"}}
	for _, v := range values {
		row := []string{v, percent(observed[v]), "-", "-"}
		if dist != nil {
			expected := dist.Expected(property, v)
			row[2] = percent(expected)
			row[3] = fmt.Sprintf("%+.2f", (observed[v]-expected)*100)
		}
		data = append(data, row)
	}
	return data
}

func percent(f float64) string {
	return fmt.Sprintf("%.2f%%", f*100)
}
