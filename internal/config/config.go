package config

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"

	"bibsort/internal/bibliography"
	"bibsort/internal/citation"
	"bibsort/internal/document"
	"bibsort/internal/errors"
	"bibsort/internal/latex"
)

// CurrentVersion is the only config schema version this build reads.
const CurrentVersion = 1

// EnvPrefix prefixes environment overrides, e.g. BIBSORT_OUTPUT_SUFFIX.
const EnvPrefix = "BIBSORT"

// Config represents the complete bibsort configuration
type Config struct {
	Version int `json:"version" yaml:"version" toml:"version" mapstructure:"version"`

	Citation     CitationConfig     `json:"citation" yaml:"citation" toml:"citation" mapstructure:"citation"`
	Bibliography BibliographyConfig `json:"bibliography" yaml:"bibliography" toml:"bibliography" mapstructure:"bibliography"`
	Output       OutputConfig       `json:"output" yaml:"output" toml:"output" mapstructure:"output"`
	Logging      LoggingConfig      `json:"logging" yaml:"logging" toml:"logging" mapstructure:"logging"`
	History      HistoryConfig      `json:"history" yaml:"history" toml:"history" mapstructure:"history"`
	Backup       BackupConfig       `json:"backup" yaml:"backup" toml:"backup" mapstructure:"backup"`

	// Source is the file the config was read from, empty for defaults only.
	Source string `json:"-" yaml:"-" toml:"-" mapstructure:"-"`
}

// CitationConfig selects which markers count as citations
type CitationConfig struct {
	Commands     []string `json:"commands" yaml:"commands" toml:"commands" mapstructure:"commands"`
	SkipComments bool     `json:"skipComments" yaml:"skipComments" toml:"skipComments" mapstructure:"skipComments"`
}

// BibliographyConfig names the environment and its entry command
type BibliographyConfig struct {
	Environment string `json:"environment" yaml:"environment" toml:"environment" mapstructure:"environment"`
	ItemCommand string `json:"itemCommand" yaml:"itemCommand" toml:"itemCommand" mapstructure:"itemCommand"`
}

// OutputConfig controls where and how results are written
type OutputConfig struct {
	Suffix string `json:"suffix" yaml:"suffix" toml:"suffix" mapstructure:"suffix"`
	Format string `json:"format" yaml:"format" toml:"format" mapstructure:"format"`
	// PreviewCitations caps the citation list of the human report.
	PreviewCitations int `json:"previewCitations" yaml:"previewCitations" toml:"previewCitations" mapstructure:"previewCitations"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level      string `json:"level" yaml:"level" toml:"level" mapstructure:"level"`
	File       string `json:"file" yaml:"file" toml:"file" mapstructure:"file"`
	MaxSize    string `json:"maxSize" yaml:"maxSize" toml:"maxSize" mapstructure:"maxSize"`
	MaxBackups int    `json:"maxBackups" yaml:"maxBackups" toml:"maxBackups" mapstructure:"maxBackups"`
}

// HistoryConfig contains run history settings
type HistoryConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled" toml:"enabled" mapstructure:"enabled"`
	Path    string `json:"path" yaml:"path" toml:"path" mapstructure:"path"`
	Limit   int    `json:"limit" yaml:"limit" toml:"limit" mapstructure:"limit"`
	// Keep is how many runs survive pruning; 0 keeps everything.
	Keep int `json:"keep" yaml:"keep" toml:"keep" mapstructure:"keep"`
}

// BackupConfig contains snapshot settings for in-place rewrites
type BackupConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled" toml:"enabled" mapstructure:"enabled"`
	Dir     string `json:"dir" yaml:"dir" toml:"dir" mapstructure:"dir"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Version: CurrentVersion,
		Citation: CitationConfig{
			Commands:     []string{"cite"},
			SkipComments: false,
		},
		Bibliography: BibliographyConfig{
			Environment: "thebibliography",
			ItemCommand: "bibitem",
		},
		Output: OutputConfig{
			Suffix:           "-reordered",
			Format:           "human",
			PreviewCitations: 15,
		},
		Logging: LoggingConfig{
			Level:      "warn",
			MaxSize:    "10MB",
			MaxBackups: 3,
		},
		History: HistoryConfig{
			Enabled: true,
			Limit:   20,
			Keep:    500,
		},
		Backup: BackupConfig{
			Enabled: true,
		},
	}
}

// ConfigPath returns the project config file location under dir.
func ConfigPath(dir string) string {
	return filepath.Join(dir, ".bibsort", "config.toml")
}

// LoadConfig loads configuration from explicit when set, else from
// .bibsort/config.toml under dir. A missing project file is not an error;
// a missing explicit file is. BIBSORT_* environment variables override both.
func LoadConfig(dir, explicit string) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigType("toml")
	if explicit != "" {
		v.SetConfigFile(explicit)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(filepath.Join(dir, ".bibsort"))
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit != "" || !stderrors.As(err, &notFound) {
			return nil, errors.NewBibsortError(
				errors.ConfigInvalid,
				"cannot read config",
				err,
				nil,
			).WithDetails(map[string]string{"path": explicit})
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.NewBibsortError(errors.ConfigInvalid, "cannot decode config", err, nil)
	}
	cfg.Source = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, errors.NewBibsortError(errors.ConfigInvalid, "invalid config", err, nil).
			WithDetails(map[string]string{"path": cfg.Source})
	}
	return cfg, nil
}

// setDefaults registers every key so env overrides reach nested fields.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("version", d.Version)
	v.SetDefault("citation.commands", d.Citation.Commands)
	v.SetDefault("citation.skipComments", d.Citation.SkipComments)
	v.SetDefault("bibliography.environment", d.Bibliography.Environment)
	v.SetDefault("bibliography.itemCommand", d.Bibliography.ItemCommand)
	v.SetDefault("output.suffix", d.Output.Suffix)
	v.SetDefault("output.format", d.Output.Format)
	v.SetDefault("output.previewCitations", d.Output.PreviewCitations)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.file", d.Logging.File)
	v.SetDefault("logging.maxSize", d.Logging.MaxSize)
	v.SetDefault("logging.maxBackups", d.Logging.MaxBackups)
	v.SetDefault("history.enabled", d.History.Enabled)
	v.SetDefault("history.path", d.History.Path)
	v.SetDefault("history.limit", d.History.Limit)
	v.SetDefault("history.keep", d.History.Keep)
	v.SetDefault("backup.enabled", d.Backup.Enabled)
	v.SetDefault("backup.dir", d.Backup.Dir)
}

// Save writes the configuration as TOML to path, creating its directory.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	if err := toml.NewEncoder(f).Encode(c); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode config: %w", err)
	}
	return f.Close()
}

// Options converts the config into pipeline options.
func (c *Config) Options() document.Options {
	return document.Options{
		Citation: citation.Syntax{
			Commands:     append([]string(nil), c.Citation.Commands...),
			SkipComments: c.Citation.SkipComments,
		},
		Bibliography: bibliography.Syntax{
			Environment: c.Bibliography.Environment,
			ItemCommand: c.Bibliography.ItemCommand,
		},
	}
}

var (
	validFormats = map[string]bool{"human": true, "json": true, "yaml": true}
	validLevels  = map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true}
)

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Version != CurrentVersion {
		return &ConfigError{Field: "version", Message: fmt.Sprintf("unsupported config version %d", c.Version)}
	}

	if len(c.Citation.Commands) == 0 {
		return &ConfigError{Field: "citation.commands", Message: "at least one command is required"}
	}
	for _, cmd := range c.Citation.Commands {
		if !isCommandName(cmd) {
			return &ConfigError{Field: "citation.commands", Message: fmt.Sprintf("%q is not a command name", cmd)}
		}
	}
	if !isCommandName(c.Bibliography.ItemCommand) {
		return &ConfigError{Field: "bibliography.itemCommand", Message: fmt.Sprintf("%q is not a command name", c.Bibliography.ItemCommand)}
	}
	if strings.TrimSpace(c.Bibliography.Environment) == "" || strings.ContainsAny(c.Bibliography.Environment, "{}\\") {
		return &ConfigError{Field: "bibliography.environment", Message: fmt.Sprintf("%q is not an environment name", c.Bibliography.Environment)}
	}

	if c.Output.Suffix == "" || strings.ContainsAny(c.Output.Suffix, `/\`) {
		return &ConfigError{Field: "output.suffix", Message: "must be non-empty and contain no path separator"}
	}
	if !validFormats[c.Output.Format] {
		return &ConfigError{Field: "output.format", Message: fmt.Sprintf("unknown format %q", c.Output.Format)}
	}
	if c.Output.PreviewCitations < 0 {
		return &ConfigError{Field: "output.previewCitations", Message: "must not be negative"}
	}

	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return &ConfigError{Field: "logging.level", Message: fmt.Sprintf("unknown level %q", c.Logging.Level)}
	}
	if c.Logging.MaxBackups < 0 {
		return &ConfigError{Field: "logging.maxBackups", Message: "must not be negative"}
	}

	if c.History.Limit <= 0 {
		return &ConfigError{Field: "history.limit", Message: "must be positive"}
	}
	if c.History.Keep < 0 {
		return &ConfigError{Field: "history.keep", Message: "must not be negative"}
	}
	return nil
}

func isCommandName(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !latex.IsLetter(s[i]) {
			return false
		}
	}
	return true
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
