package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/menta2k/bbox-labeler/pkg/classes"
)

// EnvPrefix prefixes environment overrides, e.g. LABELER_SERVER_ADDR
const EnvPrefix = "LABELER"

// Config holds the application configuration
type Config struct {
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Uploads UploadsConfig `yaml:"uploads" mapstructure:"uploads"`
	Storage StorageConfig `yaml:"storage" mapstructure:"storage"`
	Render  RenderConfig  `yaml:"render" mapstructure:"render"`
	Dataset DatasetConfig `yaml:"dataset" mapstructure:"dataset"`
	Classes ClassesConfig `yaml:"classes" mapstructure:"classes"`
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`
	Watch   WatchConfig   `yaml:"watch" mapstructure:"watch"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Addr            string        `yaml:"addr" mapstructure:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
	StaticDir       string        `yaml:"static_dir" mapstructure:"static_dir"`
	WasmPath        string        `yaml:"wasm_path" mapstructure:"wasm_path"`
}

// UploadsConfig holds the image directory settings
type UploadsConfig struct {
	Dir               string   `yaml:"dir" mapstructure:"dir"`
	AllowedExtensions []string `yaml:"allowed_extensions" mapstructure:"allowed_extensions"`
	MaxUploadBytes    int64    `yaml:"max_upload_bytes" mapstructure:"max_upload_bytes"`
}

// StorageConfig selects and configures the label backend
type StorageConfig struct {
	Type     string         `yaml:"type" mapstructure:"type"`
	Files    FilesConfig    `yaml:"files" mapstructure:"files"`
	SQLite   SQLiteConfig   `yaml:"sqlite" mapstructure:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres" mapstructure:"postgres"`
	Redis    RedisConfig    `yaml:"redis" mapstructure:"redis"`
}

// FilesConfig configures YOLO text files plus status.json. An empty Dir
// keeps labels next to the images.
type FilesConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// SQLiteConfig configures the sqlite backend
type SQLiteConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// PostgresConfig configures the postgres backend
type PostgresConfig struct {
	DSN string `yaml:"dsn" mapstructure:"dsn"`
}

// RedisConfig configures the redis backend
type RedisConfig struct {
	Addr     string `yaml:"addr" mapstructure:"addr"`
	Password string `yaml:"password" mapstructure:"password"`
	DB       int    `yaml:"db" mapstructure:"db"`
	Prefix   string `yaml:"prefix" mapstructure:"prefix"`
}

// RenderConfig holds server-side rendering settings
type RenderConfig struct {
	FillAlpha float64 `yaml:"fill_alpha" mapstructure:"fill_alpha"`
	Format    string  `yaml:"format" mapstructure:"format"`
	Quality   int     `yaml:"quality" mapstructure:"quality"`
	ThumbSize int     `yaml:"thumb_size" mapstructure:"thumb_size"`
}

// DatasetConfig holds export settings
type DatasetConfig struct {
	Name string `yaml:"name" mapstructure:"name"`
}

// ClassesConfig selects the class registry: an inline list wins over a
// file, which wins over a preset
type ClassesConfig struct {
	Preset string          `yaml:"preset" mapstructure:"preset"`
	File   string          `yaml:"file" mapstructure:"file"`
	List   []classes.Class `yaml:"list" mapstructure:"list"`
}

// LoggingConfig configures the zap logger
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
	Output string `yaml:"output" mapstructure:"output"`
}

// WatchConfig toggles the uploads directory watcher
type WatchConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":5000",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    5 * time.Minute,
			ShutdownTimeout: 10 * time.Second,
			StaticDir:       "static",
			WasmPath:        "static/labeler.wasm",
		},
		Uploads: UploadsConfig{
			Dir:               "static/uploads",
			AllowedExtensions: []string{"jpg", "jpeg"},
			MaxUploadBytes:    32 << 20,
		},
		Storage: StorageConfig{
			Type:   "files",
			SQLite: SQLiteConfig{Path: "labels.db"},
			Redis:  RedisConfig{Addr: "localhost:6379", Prefix: "labeler"},
		},
		Render: RenderConfig{
			FillAlpha: 0,
			Format:    "png",
			Quality:   90,
			ThumbSize: 240,
		},
		Dataset: DatasetConfig{Name: "antpi"},
		Classes: ClassesConfig{Preset: "default"},
		Logging: LoggingConfig{Level: "info", Format: "json", Output: "stderr"},
		Watch:   WatchConfig{Enabled: true},
	}
}

// Load reads the YAML file at path over the defaults and applies
// LABELER_* environment overrides. An empty path loads defaults and env only.
func Load(path string) (*Config, error) {
	v, err := newViper()
	if err != nil {
		return nil, err
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newViper seeds a viper instance with the defaults so every key is known
// to AutomaticEnv
func newViper() (*viper.Viper, error) {
	data, err := yaml.Marshal(Default())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal defaults: %w", err)
	}
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr cannot be empty")
	}

	if c.Uploads.Dir == "" {
		return fmt.Errorf("uploads.dir cannot be empty")
	}

	if len(c.Uploads.AllowedExtensions) == 0 {
		return fmt.Errorf("uploads.allowed_extensions cannot be empty")
	}

	switch c.Storage.Type {
	case "files", "memory":
	case "sqlite":
		if c.Storage.SQLite.Path == "" {
			return fmt.Errorf("storage.sqlite.path cannot be empty")
		}
	case "postgres":
		if c.Storage.Postgres.DSN == "" {
			return fmt.Errorf("storage.postgres.dsn cannot be empty")
		}
	case "redis":
		if c.Storage.Redis.Addr == "" {
			return fmt.Errorf("storage.redis.addr cannot be empty")
		}
	default:
		return fmt.Errorf("storage.type must be one of files, sqlite, postgres, redis, memory")
	}

	if c.Render.FillAlpha < 0 || c.Render.FillAlpha > 1 {
		return fmt.Errorf("render.fill_alpha must be between 0 and 1")
	}

	if c.Render.Quality < 1 || c.Render.Quality > 100 {
		return fmt.Errorf("render.quality must be between 1 and 100")
	}

	switch strings.ToLower(c.Render.Format) {
	case "png", "jpg", "jpeg", "webp":
	default:
		return fmt.Errorf("render.format must be png, jpg or webp")
	}

	return nil
}

// LabelsDir returns the directory of the files backend
func (c *Config) LabelsDir() string {
	if c.Storage.Files.Dir != "" {
		return c.Storage.Files.Dir
	}
	return c.Uploads.Dir
}

// Registry builds the class registry
func (c *Config) Registry() (*classes.Registry, error) {
	switch {
	case len(c.Classes.List) > 0:
		return classes.New(c.Classes.List)
	case c.Classes.File != "":
		return classes.LoadFile(c.Classes.File)
	default:
		return classes.Preset(c.Classes.Preset)
	}
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./labeler.yaml"
	}
	return filepath.Join(home, ".config", "bbox-labeler", "config.yaml")
}
