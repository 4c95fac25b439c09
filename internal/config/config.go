package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"gopkg.in/yaml.v3"
)

// ICSConfig describes a single ICS subscription.
type ICSConfig struct {
	ID  string `yaml:"id" json:"id"`
	URL string `yaml:"url" json:"url"`
	// Name is a human-friendly label.
	Name string `yaml:"name,omitempty" json:"name,omitempty"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API. Auth is
// enabled when Username is set.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username" env:"TIMEREPORT_BASIC_AUTH_USERNAME"`
	Password string `yaml:"password" json:"password" env:"TIMEREPORT_BASIC_AUTH_PASSWORD"`
}

func (b BasicAuthConfig) Enabled() bool { return b.Username != "" }

type LogConfig struct {
	// Level is one of debug, info, error.
	Level string `yaml:"level" json:"level" env:"TIMEREPORT_LOG_LEVEL"`
	// File, if set, receives a copy of the log with size based rotation.
	File       string `yaml:"file,omitempty" json:"file,omitempty" env:"TIMEREPORT_LOG_FILE"`
	MaxSizeMB  int    `yaml:"max_size_mb,omitempty" json:"max_size_mb,omitempty"`
	MaxBackups int    `yaml:"max_backups,omitempty" json:"max_backups,omitempty"`
	MaxAgeDays int    `yaml:"max_age_days,omitempty" json:"max_age_days,omitempty"`
}

// CalendarConfig selects the source used by exports.
type CalendarConfig struct {
	// Provider is "outlook" (REST CalendarView with the host token) or
	// "ics" (the subscriptions below).
	Provider string      `yaml:"provider" json:"provider" env:"TIMEREPORT_CALENDAR_PROVIDER"`
	BaseURL  string      `yaml:"base_url" json:"base_url" env:"TIMEREPORT_CALENDAR_BASE_URL"`
	ICS      []ICSConfig `yaml:"ics" json:"ics"`
	CacheDir string      `yaml:"cache_dir" json:"cache_dir" env:"TIMEREPORT_CALENDAR_CACHE_DIR"`
}

type ExportConfig struct {
	// Format is "csv" or "xlsx".
	Format string `yaml:"format" json:"format" env:"TIMEREPORT_EXPORT_FORMAT"`
	// Encoding applies to csv: "utf-8" or "windows-1252".
	Encoding  string `yaml:"encoding" json:"encoding" env:"TIMEREPORT_EXPORT_ENCODING"`
	OutputDir string `yaml:"output_dir" json:"output_dir" env:"TIMEREPORT_EXPORT_OUTPUT_DIR"`

	// Schedule is a cron expression for unattended exports. Empty disables
	// them.
	Schedule     string `yaml:"schedule,omitempty" json:"schedule,omitempty" env:"TIMEREPORT_EXPORT_SCHEDULE"`
	ScheduleDays int    `yaml:"schedule_days" json:"schedule_days" env:"TIMEREPORT_EXPORT_SCHEDULE_DAYS"`
	// Mailbox is the account exported by the scheduler and the CLI.
	Mailbox string `yaml:"mailbox,omitempty" json:"mailbox,omitempty" env:"TIMEREPORT_EXPORT_MAILBOX"`
	// Token authenticates unattended exports against outlook. Environment
	// only, never written to the config file.
	Token string `yaml:"-" json:"-" env:"TIMEREPORT_EXPORT_TOKEN"`
}

type JournalConfig struct {
	// Backend is "memory" or "redis".
	Backend    string `yaml:"backend" json:"backend" env:"TIMEREPORT_JOURNAL_BACKEND"`
	RedisURL   string `yaml:"redis_url,omitempty" json:"redis_url,omitempty" env:"TIMEREPORT_JOURNAL_REDIS_URL"`
	Key        string `yaml:"key,omitempty" json:"key,omitempty" env:"TIMEREPORT_JOURNAL_KEY"`
	MaxEntries int    `yaml:"max_entries" json:"max_entries" env:"TIMEREPORT_JOURNAL_MAX_ENTRIES"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the task pane and API.
	Listen string `yaml:"listen" json:"listen" env:"TIMEREPORT_LISTEN"`

	// Timezone is the IANA timezone used for export dates (e.g. "Europe/Paris").
	Timezone string `yaml:"timezone" json:"timezone" env:"TIMEREPORT_TIMEZONE"`

	BasicAuth BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`

	// FilesDir holds projets.csv and prestations.csv.
	FilesDir string `yaml:"files_dir" json:"files_dir" env:"TIMEREPORT_FILES_DIR"`

	Log LogConfig `yaml:"log" json:"log"`

	// HostTimeout bounds every call to the host; ConfirmTimeout bounds the
	// wait for the user's answer to a replace prompt.
	HostTimeout    time.Duration `yaml:"host_timeout" json:"host_timeout" env:"TIMEREPORT_HOST_TIMEOUT"`
	ConfirmTimeout time.Duration `yaml:"confirm_timeout" json:"confirm_timeout" env:"TIMEREPORT_CONFIRM_TIMEOUT"`

	Calendar CalendarConfig `yaml:"calendar" json:"calendar"`
	Export   ExportConfig   `yaml:"export" json:"export"`
	Journal  JournalConfig  `yaml:"journal" json:"journal"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	c := &Config{}
	c.Normalize()
	return c
}

// Normalize fills in missing values and replaces unknown enum values with
// their default, so partially filled configs still behave.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.Timezone == "" {
		c.Timezone = "Europe/Paris"
	}
	if c.FilesDir == "" {
		c.FilesDir = "./files"
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "error":
		c.Log.Level = strings.ToLower(c.Log.Level)
	default:
		c.Log.Level = "info"
	}
	if c.HostTimeout <= 0 {
		c.HostTimeout = 10 * time.Second
	}
	if c.ConfirmTimeout <= 0 {
		c.ConfirmTimeout = 5 * time.Minute
	}

	switch c.Calendar.Provider {
	case "outlook", "ics":
	default:
		c.Calendar.Provider = "outlook"
	}
	if c.Calendar.BaseURL == "" {
		c.Calendar.BaseURL = "https://outlook.office.com/api/v2.0"
	}
	if c.Calendar.ICS == nil {
		c.Calendar.ICS = []ICSConfig{}
	}
	for i := range c.Calendar.ICS {
		if c.Calendar.ICS[i].ID == "" {
			c.Calendar.ICS[i].ID = fmt.Sprintf("ics-%d", i+1)
		}
	}
	if c.Calendar.CacheDir == "" {
		c.Calendar.CacheDir = "./var/ics-cache"
	}

	c.Export.Format = strings.ToLower(c.Export.Format)
	switch c.Export.Format {
	case "csv", "xlsx":
	default:
		c.Export.Format = "csv"
	}
	switch strings.ToLower(c.Export.Encoding) {
	case "windows-1252", "cp1252":
		c.Export.Encoding = "windows-1252"
	default:
		c.Export.Encoding = "utf-8"
	}
	if c.Export.OutputDir == "" {
		c.Export.OutputDir = "./exports"
	}
	if c.Export.ScheduleDays <= 0 {
		c.Export.ScheduleDays = 7
	}

	switch c.Journal.Backend {
	case "memory", "redis":
	default:
		c.Journal.Backend = "memory"
	}
	if c.Journal.Key == "" {
		c.Journal.Key = "timereport:journal"
	}
	if c.Journal.MaxEntries <= 0 {
		c.Journal.MaxEntries = 1000
	}
}

// Location loads the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     permissions and returned.
//   - Otherwise the YAML is read and normalized.
//   - TIMEREPORT_* environment variables override file values in both cases.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	var cfg *Config
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		cfg = DefaultConfig()
		if err := Save(path, cfg); err != nil {
			return cfg, err
		}
	case err != nil:
		return nil, err
	default:
		cfg = &Config{}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: %s: %w", path, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: environment: %w", err)
	}
	cfg.Normalize()
	return cfg, nil
}

// Save writes cfg atomically (temp file + rename) with 0600 permissions,
// creating the parent directory (0700) if needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}
	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".timereport-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func (c *Config) Save(path string) error {
	return Save(path, c)
}
