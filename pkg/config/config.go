package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/nspcc-dev/notetree/pkg/core/storage/dbconfig"
	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is the default path to the config file.
const DefaultConfigPath = "./config/notetree.yml"

// Version is the version of the application, set at build time.
var Version string

// Config top level struct representing the config
// for the application.
type Config struct {
	ApplicationConfiguration ApplicationConfiguration `yaml:"ApplicationConfiguration"`
	TreeConfiguration        TreeConfiguration        `yaml:"TreeConfiguration"`
}

// Default returns the configuration used when no config file is provided.
func Default() Config {
	return Config{
		ApplicationConfiguration: ApplicationConfiguration{
			LogLevel:    "info",
			LogEncoding: LogEncodingConsole,
			DBConfiguration: dbconfig.DBConfiguration{
				Type: dbconfig.LevelDB,
				LevelDBOptions: dbconfig.LevelDBOptions{
					DataDirectoryPath: "./chains/notetree",
				},
			},
		},
		TreeConfiguration: TreeConfiguration{
			Hasher:    "sha256",
			Retention: "keep",
		},
	}
}

// Load attempts to load the config from the given path, DefaultConfigPath is
// used if path is empty.
func Load(path string) (Config, error) {
	if len(path) == 0 {
		path = DefaultConfigPath
	}
	return LoadFile(path)
}

// LoadFile loads config from the provided path. Unset values are taken from
// Default.
func LoadFile(configPath string) (Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return Config{}, fmt.Errorf("config '%s' doesn't exist", configPath)
	}

	configData, err := os.ReadFile(configPath)
	if err != nil {
		return Config{}, fmt.Errorf("unable to read config: %w", err)
	}
	return Decode(configData)
}

// Decode parses YAML config data on top of Default values and validates the
// result. Unknown fields are not allowed.
func Decode(configData []byte) (Config, error) {
	config := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(configData))
	decoder.KnownFields(true)
	err := decoder.Decode(&config)
	if err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}

	err = config.Validate()
	if err != nil {
		return Config{}, fmt.Errorf("config is invalid: %w", err)
	}
	return config, nil
}

// Validate checks the whole configuration.
func (c *Config) Validate() error {
	if err := c.ApplicationConfiguration.Validate(); err != nil {
		return fmt.Errorf("ApplicationConfiguration: %w", err)
	}
	if err := c.TreeConfiguration.Validate(); err != nil {
		return fmt.Errorf("TreeConfiguration: %w", err)
	}
	return nil
}
