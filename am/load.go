package am

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/teranos/traitmint/errors"
	"github.com/teranos/traitmint/logger"
)

// ProjectConfigName is the project configuration file searched for upward
// from the working directory.
const ProjectConfigName = "traitmint.toml"

// EnvPrefix prefixes every environment variable override.
const EnvPrefix = "TRAITMINT"

var globalConfig *Config
var viperInstance *viper.Viper

// ConfigSources records which file set each key, filled while loading.
var ConfigSources = map[string]SourceInfo{}

// Load reads the traitmint configuration using Viper
func Load() (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	config, err := LoadWithViper(initViper())
	if err != nil {
		return nil, err
	}

	globalConfig = config
	return globalConfig, nil
}

// GetViper returns the Viper instance for advanced configuration access,
// such as binding command line flags
func GetViper() *viper.Viper {
	return initViper()
}

// LoadWithViper loads configuration using a provided Viper instance
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	return &config, nil
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")

	// Set defaults but don't bind environment variables for this specific load
	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %s", configPath)
	}

	config, err := LoadWithViper(v)
	if err != nil {
		return nil, errors.Wrapf(err, "config file %s", configPath)
	}
	return config, nil
}

// Reset clears the cached configuration (useful for testing)
func Reset() {
	globalConfig = nil
	viperInstance = nil
	ConfigSources = map[string]SourceInfo{}
}

// initViper initializes Viper with configuration sources and defaults
func initViper() *viper.Viper {
	if viperInstance != nil {
		return viperInstance
	}

	v := viper.New()

	// Set up environment variable binding
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Bind specific sensitive configuration values to environment variables
	BindSensitiveEnvVars(v)

	SetDefaults(v)

	// Merge configs in precedence order: user -> project -> env vars
	mergeConfigFiles(v)

	viperInstance = v
	return v
}

// UserConfigDir returns ~/.traitmint
func UserConfigDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, ".traitmint")
}

// findProjectConfig searches for traitmint.toml by walking up the directory
// tree. Returns the first path found, or empty string if none found.
func findProjectConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		path := filepath.Join(dir, ProjectConfigName)
		if _, err := os.Stat(path); err == nil {
			return path
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// ConfigFile is one file of the configuration cascade
type ConfigFile struct {
	Path   string       `json:"path"`
	Source ConfigSource `json:"source"`
	Exists bool         `json:"exists"`
}

// ConfigFiles lists the configuration files in precedence order, lowest first.
// The project file is only listed when one is found.
func ConfigFiles() []ConfigFile {
	var files []ConfigFile
	if userDir := UserConfigDir(); userDir != "" {
		files = append(files, ConfigFile{Path: filepath.Join(userDir, "am.toml"), Source: SourceUser})
	}
	if projectConfig := findProjectConfig(); projectConfig != "" {
		files = append(files, ConfigFile{Path: projectConfig, Source: SourceProject})
	}
	for i := range files {
		_, err := os.Stat(files[i].Path)
		files[i].Exists = err == nil
	}
	return files
}

// mergeConfigFiles deep-merges configuration files into the config layer of
// v, so a later file overrides single keys without discarding its siblings
// and environment variables still win over every file.
// Precedence (lowest to highest): user < project < env vars
func mergeConfigFiles(v *viper.Viper) {
	for _, src := range ConfigFiles() {
		if !src.Exists {
			continue
		}
		tempViper := viper.New()
		tempViper.SetConfigFile(src.Path)
		tempViper.SetConfigType("toml")
		if err := tempViper.ReadInConfig(); err != nil {
			logger.Warnw("Skipping unreadable config file", logger.FieldPath, src.Path, logger.FieldError, err)
			continue
		}

		if err := v.MergeConfigMap(tempViper.AllSettings()); err != nil {
			continue
		}
		for _, key := range tempViper.AllKeys() {
			ConfigSources[key] = SourceInfo{Source: src.Source, Path: src.Path}
		}
	}
}
