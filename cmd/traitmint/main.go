package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/teranos/traitmint/cmd/traitmint/commands"
	"github.com/teranos/traitmint/errors"
	"github.com/teranos/traitmint/logger"
)

var rootCmd = &cobra.Command{
	Use:   "traitmint",
	Short: "traitmint - Generative trait composition for collectible artwork",
	Long: `traitmint - Generative trait composition for collectible artwork.

traitmint draws attribute sets from a weighted trait catalog, filters them
through a FORCE/FORBID rule table, rejects duplicates, and composes each
accepted set into a layered image with an attribute table row.

Available commands:
  table      - Scan the trait catalog and write the ratio table
  generate   - Generate a batch of unique artifacts
  regenerate - Re-render artifacts from an attribute table
  check      - Deduplicate, renumber and report observed trait ratios
  metadata   - Write per-artifact metadata JSON
  publish    - Pin artifacts and metadata through Pinata
  runs       - Show the run ledger
  am         - Manage traitmint configuration ("I am")

Examples:
  traitmint am init                 # Write a starter traitmint.toml
  traitmint table                   # Write ratio.csv from ./parts
  traitmint generate --amount 500   # Generate 500 artifacts into ./images
  traitmint check                   # Final duplicate check and ratio report
  traitmint runs                    # List recent runs`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Secrets such as TRAITMINT_PINATA_JWT may live in .env
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to load .env: %w", err)
		}

		verbosity, _ := cmd.Flags().GetCount("verbose")
		jsonOutput, _ := cmd.Flags().GetBool("json")
		if err := logger.Initialize(jsonOutput, verbosity); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Cleanup()
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv)")
	rootCmd.PersistentFlags().Bool("json", false, "Emit JSON logs and progress events")

	rootCmd.AddCommand(commands.TableCmd)
	rootCmd.AddCommand(commands.GenerateCmd)
	rootCmd.AddCommand(commands.RegenerateCmd)
	rootCmd.AddCommand(commands.CheckCmd)
	rootCmd.AddCommand(commands.MetadataCmd)
	rootCmd.AddCommand(commands.PublishCmd)
	rootCmd.AddCommand(commands.RunsCmd)
	rootCmd.AddCommand(commands.AmCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if hint := errors.FlattenHints(err); hint != "" {
			fmt.Fprintf(os.Stderr, "hint: %s\n", hint)
		}
		os.Exit(1)
	}
}
