// Package am holds the traitmint configuration: canvas size, catalog
// location, group weights, generation parameters, the run ledger, and the
// metadata and publish collaborators.
//
// Values are merged from defaults, ~/.traitmint/am.toml, the nearest
// traitmint.toml found walking up from the working directory, TRAITMINT_*
// environment variables, and finally command line flags.
package am

import (
	"fmt"

	"github.com/teranos/traitmint/distribution"
)

// Config represents the traitmint configuration
type Config struct {
	Canvas   CanvasConfig   `mapstructure:"canvas" toml:"canvas" json:"canvas" yaml:"canvas"`
	Catalog  CatalogConfig  `mapstructure:"catalog" toml:"catalog" json:"catalog" yaml:"catalog"`
	Groups   []GroupConfig  `mapstructure:"groups" toml:"groups" json:"groups" yaml:"groups"`
	Generate GenerateConfig `mapstructure:"generate" toml:"generate" json:"generate" yaml:"generate"`
	Database DatabaseConfig `mapstructure:"database" toml:"database" json:"database" yaml:"database"`
	Metadata MetadataConfig `mapstructure:"metadata" toml:"metadata" json:"metadata" yaml:"metadata"`
	Publish  PublishConfig  `mapstructure:"publish" toml:"publish" json:"publish" yaml:"publish"`
}

// CanvasConfig sizes every composed artifact
type CanvasConfig struct {
	Width  int `mapstructure:"width" toml:"width" json:"width" yaml:"width"`
	Height int `mapstructure:"height" toml:"height" json:"height" yaml:"height"`
}

// CatalogConfig locates the trait catalog and its tables
type CatalogConfig struct {
	Root       string   `mapstructure:"root" toml:"root" json:"root" yaml:"root"`                      // <root>/<group>/<NN>_<property>/<value>.<ext>
	Extensions []string `mapstructure:"extensions" toml:"extensions" json:"extensions" yaml:"extensions"` // asset extensions, case-sensitive
	RatioTable string   `mapstructure:"ratio_table" toml:"ratio_table" json:"ratio_table" yaml:"ratio_table"`
	RuleTable  string   `mapstructure:"rule_table" toml:"rule_table" json:"rule_table" yaml:"rule_table"` // .csv, .yaml or .toml; empty = no rules
}

// GroupConfig is one group with its occurrence weight. Order is significant.
type GroupConfig struct {
	Name   string  `mapstructure:"name" toml:"name" json:"name" yaml:"name"`
	Weight float64 `mapstructure:"weight" toml:"weight" json:"weight" yaml:"weight"`
}

// GenerateConfig configures a batch
type GenerateConfig struct {
	Amount      int    `mapstructure:"amount" toml:"amount" json:"amount" yaml:"amount"`
	StartID     int    `mapstructure:"start_id" toml:"start_id" json:"start_id" yaml:"start_id"`
	OutputDir   string `mapstructure:"output_dir" toml:"output_dir" json:"output_dir" yaml:"output_dir"`
	Quality     int    `mapstructure:"quality" toml:"quality" json:"quality" yaml:"quality"` // JPEG quality 1..100
	Format      string `mapstructure:"format" toml:"format" json:"format" yaml:"format"`     // png or jpeg
	Parallel    bool   `mapstructure:"parallel" toml:"parallel" json:"parallel" yaml:"parallel"`
	Workers     int    `mapstructure:"workers" toml:"workers" json:"workers" yaml:"workers"`                     // 0 = hardware parallelism - 1
	Seed        uint64 `mapstructure:"seed" toml:"seed" json:"seed" yaml:"seed"`                                 // 0 = random
	MaxAttempts int    `mapstructure:"max_attempts" toml:"max_attempts" json:"max_attempts" yaml:"max_attempts"` // per slot
	AttrTable   string `mapstructure:"attr_table" toml:"attr_table" json:"attr_table" yaml:"attr_table"`
	CacheSize   int    `mapstructure:"cache_size" toml:"cache_size" json:"cache_size" yaml:"cache_size"` // decoded layers kept in memory
}

// DatabaseConfig configures the SQLite run ledger
type DatabaseConfig struct {
	Path string `mapstructure:"path" toml:"path" json:"path" yaml:"path"` // empty disables the ledger
}

// MetadataConfig configures per-artifact metadata documents
type MetadataConfig struct {
	Dir          string   `mapstructure:"dir" toml:"dir" json:"dir" yaml:"dir"`
	Names        []string `mapstructure:"names" toml:"names" json:"names" yaml:"names"`
	Description  string   `mapstructure:"description" toml:"description" json:"description" yaml:"description"`
	ImageBaseURL string   `mapstructure:"image_base_url" toml:"image_base_url" json:"image_base_url" yaml:"image_base_url"`
	ImageCID     string   `mapstructure:"image_cid" toml:"image_cid" json:"image_cid" yaml:"image_cid"`
}

// PublishConfig configures the Pinata pinning client
type PublishConfig struct {
	PinataJWT string `mapstructure:"pinata_jwt" toml:"pinata_jwt,omitempty" json:"-" yaml:"-"`
	Endpoint  string `mapstructure:"endpoint" toml:"endpoint" json:"endpoint" yaml:"endpoint"`
}

// File system constants
const (
	DefaultDirPermissions  = 0755 // Standard directory permissions (rwxr-xr-x)
	DefaultFilePermissions = 0644 // Standard file permissions (rw-r--r--)
)

// GroupWeights converts the configured groups for distribution.Build.
func (c *Config) GroupWeights() []distribution.GroupWeight {
	out := make([]distribution.GroupWeight, len(c.Groups))
	for i, g := range c.Groups {
		out[i] = distribution.GroupWeight{Name: g.Name, Weight: g.Weight}
	}
	return out
}

// GroupNames returns the configured group names in order.
func (c *Config) GroupNames() []string {
	out := make([]string, len(c.Groups))
	for i, g := range c.Groups {
		out[i] = g.Name
	}
	return out
}

// String returns a string representation of the config
func (c *Config) String() string {
	return fmt.Sprintf("Config{Catalog: %s, Groups: %d, Generate: {Amount: %d, OutputDir: %s, Workers: %d}, Database: %s}",
		c.Catalog.Root, len(c.Groups), c.Generate.Amount, c.Generate.OutputDir, c.Generate.Workers, c.Database.Path)
}
