package am

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/teranos/traitmint/errors"
)

// createBackup creates rotating backups (.back1, .back2, .back3) before modifying config
func createBackup(configPath string) error {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil // No file to backup
	}

	// Rotate backups: .back3 -> delete, .back2 -> .back3, .back1 -> .back2, current -> .back1
	back3 := configPath + ".back3"
	back2 := configPath + ".back2"
	back1 := configPath + ".back1"

	if err := os.Remove(back3); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "failed to delete .back3")
	}
	if _, err := os.Stat(back2); err == nil {
		if err := os.Rename(back2, back3); err != nil {
			return errors.Wrap(err, "failed to rotate .back2 to .back3")
		}
	}
	if _, err := os.Stat(back1); err == nil {
		if err := os.Rename(back1, back2); err != nil {
			return errors.Wrap(err, "failed to rotate .back1 to .back2")
		}
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		return errors.Wrap(err, "failed to read config for backup")
	}
	if err := os.WriteFile(back1, content, DefaultFilePermissions); err != nil {
		return errors.Wrap(err, "failed to create .back1")
	}
	return nil
}

// Defaults returns the configuration built from defaults alone, ignoring
// files and environment.
func Defaults() *Config {
	v := viper.New()
	SetDefaults(v)
	cfg, err := LoadWithViper(v)
	if err != nil {
		// Defaults always decode into Config
		panic(err)
	}
	return cfg
}

// WriteStarter writes a starter project configuration populated with the
// defaults. An existing file is refused unless force is set, in which case
// it is rotated into .back1 first.
func WriteStarter(path string, force bool) error {
	if _, err := os.Stat(path); err == nil {
		if !force {
			return errors.NewResourceConflictError("%s already exists (use --force to overwrite)", path)
		}
		if err := createBackup(path); err != nil {
			return errors.Wrap(err, "failed to create backup")
		}
	}

	data, err := Render(Defaults(), "toml")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, DefaultFilePermissions); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	return nil
}

// Render encodes cfg as toml, json or yaml. Secrets are never rendered.
func Render(cfg *Config, format string) ([]byte, error) {
	redacted := *cfg
	redacted.Publish.PinataJWT = ""

	switch strings.ToLower(format) {
	case "toml", "":
		data, err := toml.Marshal(redacted)
		return data, errors.Wrap(err, "failed to marshal config as toml")
	case "json":
		data, err := json.MarshalIndent(redacted, "", "  ")
		return data, errors.Wrap(err, "failed to marshal config as json")
	case "yaml", "yml":
		data, err := yaml.Marshal(redacted)
		return data, errors.Wrap(err, "failed to marshal config as yaml")
	}
	return nil, errors.NewConfigurationError("unknown format %q (want toml, json or yaml)", format)
}
