// Package config loads SceneFlow settings from the environment (and an
// optional .env file), overlays an optional YAML file named by
// SCENEFLOW_CONFIG, and validates the result.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/sceneflow/sceneflow/pkg/validation"
)

// Store kinds.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreFS       = "fs"
	StoreHTTP     = "http"
)

// Config holds all configuration for SceneFlow processes.
type Config struct {
	Store   StoreConfig   `yaml:"store" json:"store"`
	Server  ServerConfig  `yaml:"server" json:"server"`
	Runtime RuntimeConfig `yaml:"runtime" json:"runtime"`
	Editor  EditorConfig  `yaml:"editor" json:"editor"`
	Log     LogConfig     `yaml:"log" json:"log"`
}

// StoreConfig selects and addresses the asset store.
type StoreConfig struct {
	Kind        string `yaml:"kind" json:"kind" validate:"oneof=memory sqlite postgres fs http"`
	SQLitePath  string `yaml:"sqlite_path" json:"sqlite_path" validate:"required_if=Kind sqlite"`
	PostgresDSN string `yaml:"postgres_dsn" json:"postgres_dsn" validate:"required_if=Kind postgres"`
	// AssetDir roots the fs store on disk; empty keeps it in memory.
	AssetDir string `yaml:"asset_dir" json:"asset_dir"`
	AssetURL string `yaml:"asset_url" json:"asset_url" validate:"required_if=Kind http,omitempty,url"`
	// Blob settings shape the blobs the sqlite, postgres and memory stores
	// write and the fs store's bundle manifests. BlobKey is hex; empty
	// leaves blobs unsealed.
	BlobCodec       string `yaml:"blob_codec" json:"blob_codec" validate:"oneof=msgpack json"`
	BlobCompression string `yaml:"blob_compression" json:"blob_compression" validate:"oneof=none gzip zstd"`
	BlobKey         string `yaml:"blob_key" json:"blob_key" validate:"omitempty,blob_key"`
}

type ServerConfig struct {
	Addr string `yaml:"addr" json:"addr" validate:"required"`
}

type RuntimeConfig struct {
	MaxOverlayDepth int    `yaml:"max_overlay_depth" json:"max_overlay_depth" validate:"min=1,max=64"`
	DefaultScene    string `yaml:"default_scene" json:"default_scene" validate:"omitempty,asset_name"`
}

type EditorConfig struct {
	AutoSaveDelay time.Duration `yaml:"autosave_delay" json:"autosave_delay" validate:"min=1ms"`
}

type LogConfig struct {
	Level  string `yaml:"level" json:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" json:"format" validate:"oneof=text json"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Kind:            StoreMemory,
			SQLitePath:      "sceneflow.db",
			BlobCodec:       "msgpack",
			BlobCompression: "zstd",
		},
		Server:  ServerConfig{Addr: ":8080"},
		Runtime: RuntimeConfig{MaxOverlayDepth: 4, DefaultScene: "default"},
		Editor:  EditorConfig{AutoSaveDelay: 500 * time.Millisecond},
		Log:     LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads .env files, then the SCENEFLOW_* variables, then the YAML
// file named by SCENEFLOW_CONFIG, and validates the result. With no files
// given the working directory's .env is read if it exists; files named
// explicitly must exist.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		_ = godotenv.Load()
	} else if err := godotenv.Load(envFiles...); err != nil {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	d := Default()
	cfg := &Config{
		Store: StoreConfig{
			Kind:            getEnvWithDefault("SCENEFLOW_STORE", d.Store.Kind),
			SQLitePath:      getEnvWithDefault("SCENEFLOW_SQLITE_PATH", d.Store.SQLitePath),
			PostgresDSN:     getEnvWithDefault("SCENEFLOW_POSTGRES_DSN", ""),
			AssetDir:        getEnvWithDefault("SCENEFLOW_ASSET_DIR", ""),
			AssetURL:        getEnvWithDefault("SCENEFLOW_ASSET_URL", ""),
			BlobCodec:       getEnvWithDefault("SCENEFLOW_BLOB_CODEC", d.Store.BlobCodec),
			BlobCompression: getEnvWithDefault("SCENEFLOW_BLOB_COMPRESSION", d.Store.BlobCompression),
			BlobKey:         getEnvWithDefault("SCENEFLOW_BLOB_KEY", ""),
		},
		Server: ServerConfig{
			Addr: getEnvWithDefault("SCENEFLOW_ADDR", d.Server.Addr),
		},
		Runtime: RuntimeConfig{
			MaxOverlayDepth: getEnvAsInt("SCENEFLOW_MAX_OVERLAY_DEPTH", d.Runtime.MaxOverlayDepth),
			DefaultScene:    getEnvWithDefault("SCENEFLOW_DEFAULT_SCENE", d.Runtime.DefaultScene),
		},
		Editor: EditorConfig{
			AutoSaveDelay: getEnvAsDuration("SCENEFLOW_AUTOSAVE_DELAY", d.Editor.AutoSaveDelay),
		},
		Log: LogConfig{
			Level:  getEnvWithDefault("SCENEFLOW_LOG_LEVEL", d.Log.Level),
			Format: getEnvWithDefault("SCENEFLOW_LOG_FORMAT", d.Log.Format),
		},
	}

	if path := os.Getenv("SCENEFLOW_CONFIG"); path != "" {
		if err := cfg.Overlay(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Overlay applies the keys present in a YAML file on top of c.
func (c *Config) Overlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	return validation.ValidateWithPlayground(c)
}

// Helper functions for environment variable parsing

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if valueStr := os.Getenv(key); valueStr != "" {
		if value, err := strconv.Atoi(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if valueStr := os.Getenv(key); valueStr != "" {
		if value, err := time.ParseDuration(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}
