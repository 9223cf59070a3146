package commands

import (
	"path/filepath"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/traitmint/am"
	"github.com/teranos/traitmint/logger"
	"github.com/teranos/traitmint/metadata"
	"github.com/teranos/traitmint/sampler"
	"github.com/teranos/traitmint/table"
	"github.com/teranos/traitmint/trait"
)

// metadataStream separates the name chooser from the sampling workers when
// both run off the same seed.
const metadataStream = 1 << 32

// MetadataCmd writes token metadata for a finished batch
var MetadataCmd = &cobra.Command{
	Use:   "metadata",
	Short: "Write one metadata JSON document per artifact",
	Long: `Write one metadata JSON document per artifact.

Reads the attribute table of the output directory and writes
<metadata.dir>/<index> for every row, naming each token after one of
metadata.names and pointing its image at the artifact. Image URLs come from,
in order of preference: per-file CIDs recorded by publish, --image-cid (a
directory CID, converted to CIDv1 base32 for the dweb.link gateway), or
--image-base-url.

Examples:
  traitmint metadata
  traitmint metadata --image-cid QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG
  traitmint metadata --image-base-url ipfs://bafy.../`,
	RunE: runMetadata,
}

// metadataFlagKeys maps metadata flags to configuration keys
var metadataFlagKeys = map[string]string{
	"dir":            "metadata.dir",
	"output-dir":     "generate.output_dir",
	"image-cid":      "metadata.image_cid",
	"image-base-url": "metadata.image_base_url",
	"description":    "metadata.description",
}

func init() {
	MetadataCmd.Flags().String("dir", "", "Metadata output directory")
	MetadataCmd.Flags().StringP("output-dir", "o", "", "Directory holding the artifacts and attribute table")
	MetadataCmd.Flags().String("image-cid", "", "CID of the pinned artifact directory")
	MetadataCmd.Flags().String("image-base-url", "", "URL prefix of the artifact files")
	MetadataCmd.Flags().String("description", "", "Token description")
}

func runMetadata(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, metadataFlagKeys)
	if err != nil {
		return err
	}
	artifacts, err := readBatch(cfg)
	if err != nil {
		return err
	}
	paths, err := writeMetadata(cfg, artifacts, nil)
	if err != nil {
		return err
	}
	pterm.Success.Printf("Wrote %d metadata documents to %s\n", len(paths), cfg.Metadata.Dir)
	return nil
}

// readBatch reads the attribute table of the configured output directory.
func readBatch(cfg *am.Config) ([]trait.Artifact, error) {
	path := filepath.Join(cfg.Generate.OutputDir, cfg.Generate.AttrTable)
	_, artifacts, err := table.Read(path)
	if err != nil {
		return nil, err
	}
	logger.Debugw("Read attribute table", logger.FieldPath, path, logger.FieldCount, len(artifacts))
	return artifacts, nil
}

// writeMetadata writes the documents of artifacts; imageCIDs, when set,
// maps artifact file names to their pinned CIDs.
func writeMetadata(cfg *am.Config, artifacts []trait.Artifact, imageCIDs map[string]string) ([]string, error) {
	writer, err := metadata.NewWriter(metadata.Options{
		Dir:          cfg.Metadata.Dir,
		Names:        cfg.Metadata.Names,
		Description:  cfg.Metadata.Description,
		ImageBaseURL: cfg.Metadata.ImageBaseURL,
		ImageCID:     cfg.Metadata.ImageCID,
		ImageCIDs:    imageCIDs,
	}, sampler.NewRand(cfg.Generate.Seed, metadataStream), logger.ComponentLogger("metadata"))
	if err != nil {
		return nil, err
	}
	return writer.Write(artifacts)
}
