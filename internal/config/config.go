// Package config loads onebook settings from an optional YAML file and
// ONEBOOK_* environment variables, in that order of precedence (env wins).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"
)

// Storage backends.
const (
	BackendSQLite   = "sqlite"
	BackendBigQuery = "bigquery"
)

// Config is the full application configuration.
type Config struct {
	LogLevel string `yaml:"log_level"`
	LogJSON  bool   `yaml:"log_json"`

	// Uploads is where bill files are kept: a directory, or
	// gs://bucket/prefix for Cloud Storage.
	Uploads string `yaml:"uploads"`

	Storage StorageConfig `yaml:"storage"`
	Server  ServerConfig  `yaml:"server"`
	Gemini  GeminiConfig  `yaml:"gemini"`
	Notion  NotionConfig  `yaml:"notion"`
}

type StorageConfig struct {
	Backend    string `yaml:"backend"`
	SQLitePath string `yaml:"sqlite_path"`
	ProjectID  string `yaml:"project_id"`
	DatasetID  string `yaml:"dataset_id"`
}

type ServerConfig struct {
	Port      string `yaml:"port"`
	Workers   int    `yaml:"workers"`
	QueueSize int    `yaml:"queue_size"`
}

// GeminiConfig controls model categorization of entries the keyword rules
// leave unknown. Credentials come from the genai SDK's own environment
// variables.
type GeminiConfig struct {
	Enabled bool   `yaml:"enabled"`
	Model   string `yaml:"model"`
}

type NotionConfig struct {
	Token           string `yaml:"token"`
	EntriesDatabase string `yaml:"entries_database"`
	BillsDatabase   string `yaml:"bills_database"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		LogLevel: "info",
		Uploads:  "resources",
		Storage: StorageConfig{
			Backend:    BackendSQLite,
			SQLitePath: "onebook.db",
			DatasetID:  "onebook",
		},
		Server: ServerConfig{
			Port:      "8080",
			Workers:   5,
			QueueSize: 100,
		},
		Gemini: GeminiConfig{
			Model: "gemini-2.5-flash",
		},
	}
}

// Load reads path (skipped when empty) over the defaults, applies
// environment overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("Load: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("Load: parsing %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, fmt.Errorf("Load: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("Load: %w", err)
	}
	return cfg, nil
}

// applyEnv overrides cfg from the environment. GOOGLE_CLOUD_PROJECT,
// GCS_BUCKET and NOTION_TOKEN are honoured as fallbacks.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v, ok := lookup(k); ok && v != "" {
				*dst = v
				return
			}
		}
	}

	str(&cfg.LogLevel, "ONEBOOK_LOG_LEVEL")
	str(&cfg.Storage.Backend, "ONEBOOK_STORAGE_BACKEND")
	str(&cfg.Storage.SQLitePath, "ONEBOOK_SQLITE_PATH")
	str(&cfg.Storage.ProjectID, "ONEBOOK_PROJECT_ID", "GOOGLE_CLOUD_PROJECT")
	str(&cfg.Storage.DatasetID, "ONEBOOK_DATASET_ID")
	str(&cfg.Server.Port, "ONEBOOK_PORT", "PORT")
	str(&cfg.Gemini.Model, "ONEBOOK_GEMINI_MODEL")
	str(&cfg.Notion.Token, "ONEBOOK_NOTION_TOKEN", "NOTION_TOKEN")
	str(&cfg.Notion.EntriesDatabase, "ONEBOOK_NOTION_ENTRIES_DB")
	str(&cfg.Notion.BillsDatabase, "ONEBOOK_NOTION_BILLS_DB")

	str(&cfg.Uploads, "ONEBOOK_UPLOADS")
	if v, ok := lookup("GCS_BUCKET"); ok && v != "" {
		if _, set := lookup("ONEBOOK_UPLOADS"); !set {
			cfg.Uploads = "gs://" + v
		}
	}

	var errs []error
	boolean := func(dst *bool, key string) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}
	integer := func(dst *int, key string) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}

	boolean(&cfg.LogJSON, "ONEBOOK_LOG_JSON")
	boolean(&cfg.Gemini.Enabled, "ONEBOOK_GEMINI_ENABLED")
	integer(&cfg.Server.Workers, "ONEBOOK_WORKERS")
	integer(&cfg.Server.QueueSize, "ONEBOOK_QUEUE_SIZE")

	return errors.Join(errs...)
}

// Validate checks the settings that cannot be defaulted.
func (c Config) Validate() error {
	switch strings.ToLower(c.Storage.Backend) {
	case BackendSQLite:
		if c.Storage.SQLitePath == "" {
			return errors.New("storage.sqlite_path is required for the sqlite backend")
		}
	case BackendBigQuery:
		if c.Storage.ProjectID == "" || c.Storage.DatasetID == "" {
			return errors.New("storage.project_id and storage.dataset_id are required for the bigquery backend")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}

	if c.Uploads == "" {
		return errors.New("uploads location is required")
	}
	if c.Server.Workers < 1 {
		return fmt.Errorf("server.workers must be positive, got %d", c.Server.Workers)
	}
	if c.Server.QueueSize < 0 {
		return fmt.Errorf("server.queue_size must not be negative, got %d", c.Server.QueueSize)
	}
	return nil
}
