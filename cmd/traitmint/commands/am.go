package commands

import (
	"encoding/json"
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/traitmint/am"
	"github.com/teranos/traitmint/errors"
)

// AmCmd represents the am (configuration) command
var AmCmd = &cobra.Command{
	Use:   "am",
	Short: "Manage traitmint configuration",
	Long: `am - Manage traitmint configuration ("I am")

Configuration sources (in order of precedence):
1. Command line flags
2. Environment variables (TRAITMINT_* prefix, PINATA_JWT)
3. Project config (nearest traitmint.toml, searching up directories)
4. User config (~/.traitmint/am.toml)
5. Default values

Examples:
  traitmint am show                    # Show current configuration
  traitmint am show --format json      # Show configuration in JSON format
  traitmint am show --sources          # Show every key with its source
  traitmint am validate                # Validate current configuration
  traitmint am init                    # Write a starter traitmint.toml`,
}

var amShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runAmShow,
}

var amValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate current configuration",
	RunE:  runAmValidate,
}

var amInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter traitmint.toml in the current directory",
	Long: `Write a starter traitmint.toml holding every default.

An existing file is only replaced with --force; the old file is kept as
traitmint.toml.back1 (up to three backups are rotated).`,
	RunE: runAmInit,
}

var amWhereCmd = &cobra.Command{
	Use:   "where",
	Short: "Show where configuration is loaded from",
	RunE:  runAmWhere,
}

var (
	configFormat  string
	configSources bool
	initForce     bool
)

func init() {
	amShowCmd.Flags().StringVar(&configFormat, "format", "toml", "Output format: toml, json, yaml")
	amShowCmd.Flags().BoolVar(&configSources, "sources", false, "List every key with the source that set it")
	amInitCmd.Flags().BoolVar(&initForce, "force", false, "Replace an existing traitmint.toml")

	AmCmd.AddCommand(amShowCmd)
	AmCmd.AddCommand(amValidateCmd)
	AmCmd.AddCommand(amInitCmd)
	AmCmd.AddCommand(amWhereCmd)
}

func runAmShow(cmd *cobra.Command, args []string) error {
	if configSources {
		return printSources(cmd)
	}
	cfg, err := am.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	data, err := am.Render(cfg, configFormat)
	if err != nil {
		return err
	}
	if configFormat != "json" {
		fmt.Println("# traitmint configuration")
	}
	fmt.Println(string(data))
	return nil
}

func printSources(cmd *cobra.Command) error {
	intro, err := am.GetConfigIntrospection()
	if err != nil {
		return err
	}
	if jsonMode(cmd) {
		data, err := json.MarshalIndent(intro, "", "  ")
		if err != nil {
			return errors.Wrap(err, "failed to marshal config sources")
		}
		fmt.Println(string(data))
		return nil
	}

	data := pterm.TableData{{"Key", "Value", "Source", "From"}}
	for _, s := range intro.Settings {
		value := fmt.Sprintf("%v", s.Value)
		// Truncate long values
		if len(value) > 50 {
			value = value[:47] + "..."
		}
		data = append(data, []string{s.Key, value, string(s.Source), s.SourcePath})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func runAmValidate(cmd *cobra.Command, args []string) error {
	cfg, err := am.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "configuration validation failed")
	}
	pterm.Success.Println("Configuration is valid")
	return nil
}

func runAmInit(cmd *cobra.Command, args []string) error {
	if err := am.WriteStarter(am.ProjectConfigName, initForce); err != nil {
		return err
	}
	pterm.Success.Printf("Wrote %s\n", am.ProjectConfigName)
	return nil
}

func runAmWhere(cmd *cobra.Command, args []string) error {
	files := am.ConfigFiles()
	if jsonMode(cmd) {
		data, err := json.MarshalIndent(files, "", "  ")
		if err != nil {
			return errors.Wrap(err, "failed to marshal config files")
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Println("Configuration cascade (later overrides earlier):")
	fmt.Println("  1. [DEFAULT]  Built-in defaults")
	for i, f := range files {
		state := "missing"
		if f.Exists {
			state = "loaded"
		}
		fmt.Printf("  %d. [%s]  %s (%s)\n", i+2, f.Source, f.Path, state)
	}
	fmt.Printf("  %d. [ENV]      %s_* environment variables\n", len(files)+2, am.EnvPrefix)
	return nil
}
