package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"
)

// Default config file path.
const DefaultConfigPath = "~/.config/testpilot/config.yaml"

// Study kinds understood by the recorder.
const (
	StudyWeekLife  = "week_life"
	StudyInterface = "interface"
)

// Config holds all testpilot configuration.
type Config struct {
	Study     StudyConfig     `yaml:"study" koanf:"study"`
	Retention RetentionConfig `yaml:"retention" koanf:"retention"`
	Report    ReportConfig    `yaml:"report" koanf:"report"`
	Heartbeat HeartbeatConfig `yaml:"heartbeat" koanf:"heartbeat"`
	Storage   StorageConfig   `yaml:"storage" koanf:"storage"`
	Daemon    DaemonConfig    `yaml:"daemon" koanf:"daemon"`
	Logging   LoggingConfig   `yaml:"logging" koanf:"logging"`
}

type StudyConfig struct {
	Kind      string `yaml:"kind" koanf:"kind"`
	Concluded bool   `yaml:"concluded" koanf:"concluded"`
}

type RetentionConfig struct {
	Days               int `yaml:"days" koanf:"days"`
	PruneIntervalHours int `yaml:"prune_interval_hours" koanf:"prune_interval_hours"`
}

// Window returns the retention window as a duration.
func (r RetentionConfig) Window() time.Duration {
	return time.Duration(r.Days) * 24 * time.Hour
}

type ReportConfig struct {
	TopN     int        `yaml:"top_n" koanf:"top_n"`
	Denylist []DenyPair `yaml:"denylist" koanf:"denylist"`
}

// DenyPair names an (item, sub_item) interaction excluded from the
// frequency table.
type DenyPair struct {
	Item    string `yaml:"item" koanf:"item"`
	SubItem string `yaml:"sub_item" koanf:"sub_item"`
}

type HeartbeatConfig struct {
	Enabled         bool `yaml:"enabled" koanf:"enabled"`
	IntervalSeconds int  `yaml:"interval_seconds" koanf:"interval_seconds"`
}

type StorageConfig struct {
	Path              string `yaml:"path" koanf:"path"`
	SQLiteFile        string `yaml:"sqlite_file" koanf:"sqlite_file"`
	SQLiteJournalMode string `yaml:"sqlite_journal_mode" koanf:"sqlite_journal_mode"`
}

type DaemonConfig struct {
	Host           string `yaml:"host" koanf:"host"`
	Port           int    `yaml:"port" koanf:"port"`
	MaxRequestSize int    `yaml:"max_request_size" koanf:"max_request_size"`
}

type LoggingConfig struct {
	Level string `yaml:"level" koanf:"level"`
	File  string `yaml:"file" koanf:"file"`
}

// Load reads a YAML config file at path and merges it over defaults, then
// applies TESTPILOT_* environment overrides.
// Returns an error if the file cannot be read or contains invalid YAML.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), kyaml.Parser()); err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	applyEnvOverrides(k)

	cfg := DefaultConfig()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects settings the recorder cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Study.Kind != StudyWeekLife && c.Study.Kind != StudyInterface {
		errs = append(errs, fmt.Errorf("study.kind: must be %q or %q, got %q", StudyWeekLife, StudyInterface, c.Study.Kind))
	}
	if c.Retention.Days <= 0 {
		errs = append(errs, fmt.Errorf("retention.days: must be positive, got %d", c.Retention.Days))
	}
	if c.Report.TopN <= 0 {
		errs = append(errs, fmt.Errorf("report.top_n: must be positive, got %d", c.Report.TopN))
	}
	if c.Heartbeat.Enabled && c.Heartbeat.IntervalSeconds <= 0 {
		errs = append(errs, fmt.Errorf("heartbeat.interval_seconds: must be positive, got %d", c.Heartbeat.IntervalSeconds))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// DBPath returns the resolved SQLite database file path.
func (c *Config) DBPath() (string, error) {
	dir, err := ExpandPath(c.Storage.Path)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, c.Storage.SQLiteFile), nil
}

// ExpandPath replaces a leading ~ with the user's home directory.
func ExpandPath(path string) (string, error) {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving home directory: %w", err)
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// LoadDotEnv loads KEY=VALUE pairs from an env file into the process
// environment. Variables already set win. A missing file is not an error.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading env file %s: %w", path, err)
	}
	return nil
}

// LoadOrCreate loads the config from the default path. If the file does
// not exist, it creates the directory structure and writes defaults.
func LoadOrCreate() (*Config, error) {
	path, err := ExpandPath(DefaultConfigPath)
	if err != nil {
		return nil, err
	}
	return LoadOrCreateAt(path)
}

// LoadOrCreateAt loads the config from the given path. If the file does
// not exist, it creates the directory structure and writes defaults.
func LoadOrCreateAt(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultConfig()

		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating config directory: %w", err)
		}

		data, err := yaml.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("marshaling default config: %w", err)
		}

		if err := os.WriteFile(path, data, 0644); err != nil {
			return nil, fmt.Errorf("writing default config: %w", err)
		}
	}

	return Load(path)
}
