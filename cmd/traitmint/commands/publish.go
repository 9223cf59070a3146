package commands

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/traitmint/generate"
	"github.com/teranos/traitmint/logger"
	"github.com/teranos/traitmint/publish"
)

// PublishCmd pins a finished batch to IPFS through Pinata
var PublishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Pin artifacts and their metadata to IPFS",
	Long: `Pin artifacts and their metadata to IPFS through Pinata.

Every artifact of the output directory is pinned on its own. The metadata
documents are then rewritten so each image points at its artifact's CID and
pinned in turn. Requires a Pinata JWT in TRAITMINT_PINATA_JWT, PINATA_JWT or
publish.pinata_jwt.

Examples:
  traitmint publish
  traitmint publish --skip-metadata     # Pin artifacts only`,
	RunE: runPublish,
}

var publishSkipMetadata bool

func init() {
	PublishCmd.Flags().StringP("output-dir", "o", "", "Directory holding the artifacts and attribute table")
	PublishCmd.Flags().String("dir", "", "Metadata output directory")
	PublishCmd.Flags().String("endpoint", "", "Pinata pinFileToIPFS endpoint")
	PublishCmd.Flags().BoolVar(&publishSkipMetadata, "skip-metadata", false, "Pin artifacts only")
}

// isRaster reports whether name has an artifact extension
func isRaster(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, raster := range generate.RasterExtensions {
		if ext == raster {
			return true
		}
	}
	return false
}

func runPublish(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, map[string]string{
		"output-dir": "generate.output_dir",
		"dir":        "metadata.dir",
		"endpoint":   "publish.endpoint",
	})
	if err != nil {
		return err
	}
	ctx, cancel := signalContext(cmd)
	defer cancel()

	client, err := publish.NewClient(cfg.Publish.PinataJWT, cfg.Publish.Endpoint, logger.ComponentLogger("publish"))
	if err != nil {
		return err
	}

	spinner, _ := pterm.DefaultSpinner.Start("Pinning artifacts from " + cfg.Generate.OutputDir)
	imageCIDs, err := client.PinDir(ctx, cfg.Generate.OutputDir, isRaster)
	if err != nil {
		spinner.Fail(err.Error())
		return err
	}
	spinner.Success("Pinned ", len(imageCIDs), " artifacts")

	if publishSkipMetadata {
		return nil
	}

	artifacts, err := readBatch(cfg)
	if err != nil {
		return err
	}
	if _, err := writeMetadata(cfg, artifacts, imageCIDs); err != nil {
		return err
	}

	spinner, _ = pterm.DefaultSpinner.Start("Pinning metadata from " + cfg.Metadata.Dir)
	metaCIDs, err := client.PinDir(ctx, cfg.Metadata.Dir, nil)
	if err != nil {
		spinner.Fail(err.Error())
		return err
	}
	spinner.Success("Pinned ", len(metaCIDs), " metadata documents")

	if verbosity, _ := cmd.Flags().GetCount("verbose"); verbosity > 0 {
		data := pterm.TableData{{"Artifact", "Image CID", "Metadata CID"}}
		for _, a := range artifacts {
			name := filepath.Base(a.Path)
			data = append(data, []string{name, imageCIDs[name], metaCIDs[strconv.Itoa(a.Index)]})
		}
		return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	}
	return nil
}
