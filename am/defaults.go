package am

import (
	"github.com/spf13/viper"

	"github.com/teranos/traitmint/compose"
	"github.com/teranos/traitmint/generate"
	"github.com/teranos/traitmint/publish"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	v.SetDefault("canvas.width", 400)
	v.SetDefault("canvas.height", 400)

	v.SetDefault("catalog.root", "./parts")
	v.SetDefault("catalog.extensions", []string{"png", "PNG"})
	v.SetDefault("catalog.ratio_table", "./ratio.csv")
	v.SetDefault("catalog.rule_table", "./rules.csv")

	v.SetDefault("groups", []map[string]interface{}{
		{"name": "parts", "weight": 1.0},
	})

	v.SetDefault("generate.amount", 100)
	v.SetDefault("generate.start_id", 1)
	v.SetDefault("generate.output_dir", "./images")
	v.SetDefault("generate.quality", 90)
	v.SetDefault("generate.format", string(compose.PNG))
	v.SetDefault("generate.parallel", true)
	v.SetDefault("generate.workers", 0)
	v.SetDefault("generate.seed", 0)
	v.SetDefault("generate.max_attempts", generate.DefaultMaxAttempts)
	v.SetDefault("generate.attr_table", "attr.csv")
	v.SetDefault("generate.cache_size", compose.DefaultCacheSize)

	v.SetDefault("database.path", "traitmint.db")

	v.SetDefault("metadata.dir", "./metadata")
	v.SetDefault("metadata.names", []string{"Test NFT"})
	v.SetDefault("metadata.description", "")
	v.SetDefault("metadata.image_base_url", "")
	v.SetDefault("metadata.image_cid", "")

	v.SetDefault("publish.endpoint", publish.DefaultEndpoint)
}

// BindSensitiveEnvVars explicitly binds sensitive configuration to environment variables
func BindSensitiveEnvVars(v *viper.Viper) {
	v.BindEnv("publish.pinata_jwt", "TRAITMINT_PINATA_JWT", "PINATA_JWT")
	v.BindEnv("database.path", "TRAITMINT_DATABASE_PATH")
}

// GetDatabasePath returns the configured ledger path, empty when disabled
func (c *Config) GetDatabasePath() string {
	return c.Database.Path
}

// GetMaxAttempts returns generate.max_attempts, falling back to the default
func (c *Config) GetMaxAttempts() int {
	if c.Generate.MaxAttempts <= 0 {
		return generate.DefaultMaxAttempts
	}
	return c.Generate.MaxAttempts
}
