package main

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const configFilename = "ddb.yaml"

// Config holds defaults for every command. Loaded from ddb.yaml if present;
// flags override it.
type Config struct {
	// Schema is the schema document path, relative to the config file.
	Schema string `yaml:"schema"`

	// Region and Endpoint configure the DynamoDB client used by apply.
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`

	SkipVersionCheck bool `yaml:"skipVersionCheck"`

	// LogLevel is one of debug, info, warn or error. Defaults to warn.
	LogLevel string `yaml:"logLevel"`
	// LogFile additionally receives JSON logs.
	LogFile string `yaml:"logFile"`
}

// LoadConfig searches for ddb.yaml starting from dir and walking up to the
// filesystem root. Returns an empty config if none is found.
func LoadConfig(dir string) (Config, error) {
	var cfg Config

	configPath := findConfigFile(dir)
	if configPath == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", configPath, err)
	}
	if cfg.Schema != "" && !filepath.IsAbs(cfg.Schema) {
		cfg.Schema = filepath.Join(filepath.Dir(configPath), cfg.Schema)
	}
	return cfg, nil
}

// findConfigFile searches for ddb.yaml walking up from dir.
func findConfigFile(dir string) string {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return ""
	}

	for {
		path := filepath.Join(dir, configFilename)
		if _, err := os.Stat(path); err == nil {
			return path
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			return ""
		}
		dir = parent
	}
}
