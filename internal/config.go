package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like "2s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the standard library representation.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Vault   VaultConfig       `yaml:"vault"`
	SQLite  SQLiteConfig      `yaml:"sqlite"`
	Model   ModelConfig       `yaml:"model"`
	Watcher WatcherConfig     `yaml:"watcher"`
	Fetch   FetchConfig       `yaml:"fetch"`
	Tools   ToolsConfig       `yaml:"tools"`
	Confirm ConfirmConfig     `yaml:"confirm"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Vault.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Model.Validate(); err != nil {
		return err
	}
	if err := c.Tools.Validate(); err != nil {
		return err
	}
	return c.Confirm.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
}

// VaultConfig locates the Markdown vault and its system prompt folder.
type VaultConfig struct {
	Path       string `yaml:"path"`
	PromptsDir string `yaml:"prompts_dir"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.PromptsDir, validation.Required),
	)
}

// SQLiteConfig holds SQLite database configuration for the note index.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// ModelConfig holds the model defaults applied when a block omits the
// corresponding directive, plus the provider credential.
type ModelConfig struct {
	Default     string  `yaml:"default"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	APIKey      string  `yaml:"api_key"`
}

// Validate validates the model configuration.
func (c *ModelConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Default, validation.Required),
		validation.Field(&c.Temperature, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&c.MaxTokens, validation.Required, validation.Min(1)),
	)
}

// WatcherConfig holds change-event coordination settings.
type WatcherConfig struct {
	Debounce Duration `yaml:"debounce"`
}

// FetchConfig bounds external context fetches.
type FetchConfig struct {
	Timeout Duration `yaml:"timeout"`
}

// ToolsConfig holds tool loop settings.
type ToolsConfig struct {
	LoopCap        int      `yaml:"loop_cap"`
	ConfirmTimeout Duration `yaml:"confirm_timeout"`
}

// Validate validates the tools configuration.
func (c *ToolsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.LoopCap, validation.Min(1)),
	)
}

// ConfirmConfig holds the confirmation API server settings.
type ConfirmConfig struct {
	HTTP HTTPConfig `yaml:"http"`
}

// Validate validates the confirmation configuration.
func (c *ConfirmConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
		},
		Vault: VaultConfig{
			Path:       "./vault",
			PromptsDir: "Prompts",
		},
		SQLite: SQLiteConfig{
			Path: "./ansuz.db",
		},
		Model: ModelConfig{
			Default:     "gemini-2.5-flash",
			Temperature: 0.7,
			MaxTokens:   4096,
		},
		Watcher: WatcherConfig{
			Debounce: Duration(2 * time.Second),
		},
		Fetch: FetchConfig{
			Timeout: Duration(15 * time.Second),
		},
		Tools: ToolsConfig{
			LoopCap:        8,
			ConfirmTimeout: Duration(2 * time.Minute),
		},
		Confirm: ConfirmConfig{
			HTTP: HTTPConfig{
				Port: 8087,
			},
		},
	}
}
