package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

// DefaultModelPath is used when neither the file nor MODEL_PATH names one.
const DefaultModelPath = "transformer_failure_model.json"

type Config struct {
	HTTP struct {
		Port           int           `yaml:"port"`
		Timeout        time.Duration `yaml:"timeout"`
		MaxUploadBytes int64         `yaml:"max_upload_bytes"`
		AllowedOrigins []string      `yaml:"allowed_origins"`
	} `yaml:"http"`
	Model struct {
		Path string `yaml:"path"`
	} `yaml:"model"`
	Auth struct {
		APIKey string `yaml:"api_key"`
	} `yaml:"auth"`
	Log      LogConfig `yaml:"log"`
	Database struct {
		// Path of the SQLite audit store; empty disables it.
		Path string `yaml:"path"`
	} `yaml:"database"`
	Dashboard struct {
		Enabled           bool `yaml:"enabled"`
		DownloadCacheSize int  `yaml:"download_cache_size"`
	} `yaml:"dashboard"`
	Training TrainingConfig `yaml:"training"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   struct {
		Path       string `yaml:"path"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
		Compress   bool   `yaml:"compress"`
	} `yaml:"file"`
}

type TrainingConfig struct {
	Target        string              `yaml:"target"`
	PositiveLabel string              `yaml:"positive_label"`
	Classifier    string              `yaml:"classifier"`
	Trees         int                 `yaml:"trees"`
	MaxDepth      int                 `yaml:"max_depth"`
	MinLeaf       int                 `yaml:"min_leaf"`
	TestRatio     float64             `yaml:"test_ratio"`
	Seed          int64               `yaml:"seed"`
	Features      []string            `yaml:"features"`
	Exclude       []string            `yaml:"exclude"`
	Defaults      map[string]float64  `yaml:"defaults"`
	Aliases       map[string][]string `yaml:"aliases"`
}

func Default() *Config {
	c := &Config{}
	c.HTTP.Port = 8080
	c.HTTP.Timeout = 30 * time.Second
	c.HTTP.MaxUploadBytes = 32 << 20
	c.HTTP.AllowedOrigins = []string{"*"}
	c.Model.Path = DefaultModelPath
	c.Log.Level = "info"
	c.Log.Format = "json"
	c.Log.File.MaxSizeMB = 100
	c.Log.File.MaxBackups = 3
	c.Log.File.MaxAgeDays = 28
	c.Dashboard.Enabled = true
	c.Dashboard.DownloadCacheSize = 32
	c.Training.Target = "Burned_transformers_2019"
	c.Training.Classifier = "random_forest"
	c.Training.Trees = 100
	c.Training.MinLeaf = 1
	c.Training.TestRatio = 0.2
	c.Training.Seed = 42
	return c
}

// Load reads path over the defaults and applies environment overrides.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	c := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, err
		default:
			if err := yaml.Unmarshal(data, c); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}
	if err := c.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("MODEL_PATH"); ok && v != "" {
		c.Model.Path = v
	}
	if v, ok := lookup("API_KEY"); ok {
		c.Auth.APIKey = v
	}
	if v, ok := lookup("GRIDGUARD_LOG_LEVEL"); ok && v != "" {
		c.Log.Level = v
	}
	if v, ok := lookup("GRIDGUARD_LISTEN_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			return fmt.Errorf("GRIDGUARD_LISTEN_PORT: invalid port %q", v)
		}
		c.HTTP.Port = port
	}
	if c.Model.Path == "" {
		c.Model.Path = DefaultModelPath
	}
	return nil
}
