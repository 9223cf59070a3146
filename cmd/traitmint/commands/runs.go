package commands

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/traitmint/errors"
	"github.com/teranos/traitmint/ledger"
)

// RunsCmd inspects the run ledger
var RunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded generate and regenerate runs",
	Long: `List recorded generate and regenerate runs.

Every run is recorded in the ledger database (database.path) with its
configuration, counters and outcome, and every accepted artifact with its
fingerprint.

Examples:
  traitmint runs                        # Ten most recent runs
  traitmint runs --limit 0              # All runs
  traitmint runs show <run-id>          # One run and its artifacts`,
	RunE: runRunsList,
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one run and its artifacts",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsShow,
}

var runsLimit int

func init() {
	RunsCmd.Flags().IntVar(&runsLimit, "limit", 10, "Number of runs to list (0 = all)")
	RunsCmd.AddCommand(runsShowCmd)
}

// openStore opens the ledger for reading; runs need one configured.
func openStore(cmd *cobra.Command) (*ledger.Store, func() error, error) {
	cfg, err := loadConfig(cmd, nil)
	if err != nil {
		return nil, nil, err
	}
	store, database, err := openLedger(cfg)
	if err != nil {
		return nil, nil, err
	}
	if database == nil {
		return nil, nil, errors.WithHint(
			errors.NewConfigurationError("no run ledger configured"),
			"set database.path in traitmint.toml or TRAITMINT_DATABASE_PATH")
	}
	return store, database.Close, nil
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal output")
	}
	fmt.Println(string(data))
	return nil
}

func runRunsList(cmd *cobra.Command, args []string) error {
	store, closeDB, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer closeDB()

	runs, err := store.ListRuns(cmd.Context(), runsLimit)
	if err != nil {
		return err
	}
	if jsonMode(cmd) {
		return printJSON(runs)
	}
	if len(runs) == 0 {
		pterm.Info.Println("No runs recorded")
		return nil
	}

	data := pterm.TableData{{"ID", "Kind", "Status", "Started", "Duration", "Accepted", "Output"}}
	for _, r := range runs {
		data = append(data, []string{
			r.ID,
			r.Kind,
			statusText(r.Status),
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			durationText(r),
			fmt.Sprintf("%d/%d", r.Counters.Accepted, r.Amount),
			r.OutputDir,
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	store, closeDB, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer closeDB()

	run, err := store.GetRun(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	artifacts, err := store.Artifacts(cmd.Context(), run.ID)
	if err != nil {
		return err
	}
	if jsonMode(cmd) {
		return printJSON(struct {
			Run       *ledger.Run             `json:"run"`
			Artifacts []ledger.ArtifactRecord `json:"artifacts"`
		}{run, artifacts})
	}

	pterm.DefaultSection.Printf("Run %s", run.ID)
	pterm.Printf("  Kind:               %s\n", run.Kind)
	pterm.Printf("  Status:             %s\n", statusText(run.Status))
	pterm.Printf("  Started:            %s\n", run.StartedAt.Local().Format(time.RFC3339))
	pterm.Printf("  Duration:           %s\n", durationText(*run))
	pterm.Printf("  Amount:             %d from index %d\n", run.Amount, run.StartID)
	pterm.Printf("  Output:             %s\n", run.OutputDir)
	pterm.Printf("  Workers:            %d\n", run.Workers)
	pterm.Printf("  Seed:               %d\n", run.Seed)
	pterm.Printf("  Attempts:           %d\n", run.Counters.Attempts)
	pterm.Printf("  Rule rejections:    %d\n", run.Counters.RuleRejected)
	pterm.Printf("  Duplicate draws:    %d\n", run.Counters.DuplicateRejected)
	if run.Error != "" {
		pterm.Error.Println(run.Error)
	}
	if len(artifacts) == 0 {
		return nil
	}

	data := pterm.TableData{{"Index", "Group", "Values", "Fingerprint"}}
	for _, a := range artifacts {
		values := make([]string, len(a.Attributes))
		for i, attr := range a.Attributes {
			values[i] = attr.Value
		}
		fp := a.Fingerprint
		if len(fp) > 12 {
			fp = fp[:12]
		}
		data = append(data, []string{strconv.Itoa(a.Index), a.Group, strings.Join(values, ", "), fp})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func statusText(status string) string {
	switch status {
	case ledger.StatusCompleted:
		return pterm.Green(status)
	case ledger.StatusFailed:
		return pterm.Red(status)
	}
	return pterm.Yellow(status)
}

func durationText(r ledger.Run) string {
	if r.FinishedAt == nil {
		return "-"
	}
	return r.Duration().Round(time.Millisecond).String()
}
