package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/zalando/go-keyring"
	"gopkg.in/yaml.v3"
)

const (
	keyringService = "justcal"

	DefaultURL      = "https://nextcloud.example.com/remote.php/dav"
	DefaultCalendar = "Personal"
	DefaultTimezone = "America/New_York"
	DefaultDuration = 60 // minutes
	DefaultDateFmt  = "2006-01-02 15:04"
)

var (
	ErrNotFound        = errors.New("configuration not found")
	ErrPasswordMissing = errors.New("password not found in keyring or config file")
	ErrUnknownKey      = errors.New("unknown configuration key")
	ErrInvalidValue    = errors.New("invalid configuration value")
)

type CalDAV struct {
	URL      string `yaml:"url"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Calendar string `yaml:"calendar"`
}

type Preferences struct {
	DefaultDuration int    `yaml:"default_duration"` // minutes
	Timezone        string `yaml:"timezone"`
	DateFormat      string `yaml:"date_format"` // Go time layout
}

type Security struct {
	UseKeyring bool `yaml:"use_keyring"`
}

type Cache struct {
	Path     string `yaml:"path"`
	Disabled bool   `yaml:"disabled"`
}

// Config is the justcal configuration file.
type Config struct {
	CalDAV      CalDAV      `yaml:"caldav"`
	Preferences Preferences `yaml:"preferences"`
	Security    Security    `yaml:"security"`
	Cache       Cache       `yaml:"cache"`

	path string
}

// Default returns the configuration written by a fresh init.
func Default() *Config {
	return &Config{
		CalDAV: CalDAV{Calendar: DefaultCalendar},
		Preferences: Preferences{
			DefaultDuration: DefaultDuration,
			Timezone:        DefaultTimezone,
			DateFormat:      DefaultDateFmt,
		},
		Security: Security{UseKeyring: true},
	}
}

// DefaultPath returns JUSTCAL_CONFIG if set, else
// $XDG_CONFIG_HOME/justcal/config.yaml.
func DefaultPath() (string, error) {
	if p := os.Getenv("JUSTCAL_CONFIG"); p != "" {
		return p, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config dir: %w", err)
	}
	return filepath.Join(dir, "justcal", "config.yaml"), nil
}

// Normalize fills zero values with defaults.
func (c *Config) Normalize() {
	if c.CalDAV.Calendar == "" {
		c.CalDAV.Calendar = DefaultCalendar
	}
	if c.Preferences.DefaultDuration <= 0 {
		c.Preferences.DefaultDuration = DefaultDuration
	}
	if c.Preferences.Timezone == "" {
		c.Preferences.Timezone = DefaultTimezone
	}
	if c.Preferences.DateFormat == "" {
		c.Preferences.DateFormat = DefaultDateFmt
	}
}

// Path is the file the configuration was loaded from or will be saved to.
func (c *Config) Path() string {
	return c.path
}

// LoadFile reads the YAML file at path without environment overrides.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w at %s. Run 'justcal config --init' to create it", ErrNotFound, path)
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.Normalize()
	cfg.path = path
	return cfg, nil
}

// Load reads the file at path and applies JUSTCAL_* environment overrides.
func Load(path string) (*Config, error) {
	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("JUSTCAL_CALDAV_URL"); v != "" {
		c.CalDAV.URL = v
	}
	if v := os.Getenv("JUSTCAL_CALDAV_USERNAME"); v != "" {
		c.CalDAV.Username = v
	}
	if v := os.Getenv("JUSTCAL_CALDAV_PASSWORD"); v != "" {
		c.CalDAV.Password = v
		c.Security.UseKeyring = false
	}
	if v := os.Getenv("JUSTCAL_CALENDAR"); v != "" {
		c.CalDAV.Calendar = v
	}
	if v := os.Getenv("JUSTCAL_TIMEZONE"); v != "" {
		c.Preferences.Timezone = v
	}
}

// Save writes the configuration atomically with 0600 permissions.
func (c *Config) Save(path string) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	c.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".justcal-config-*.tmp")
	if err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("save config: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("save config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	c.path = path
	return nil
}

// Location loads the configured time zone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Preferences.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: timezone %q: %v", ErrInvalidValue, c.Preferences.Timezone, err)
	}
	return loc, nil
}

// Duration is the default length of a timed event.
func (c *Config) Duration() time.Duration {
	return time.Duration(c.Preferences.DefaultDuration) * time.Minute
}

// CachePath returns the event cache database path, or "" when the cache is
// disabled.
func (c *Config) CachePath() (string, error) {
	if c.Cache.Disabled {
		return "", nil
	}
	if c.Cache.Path != "" {
		return c.Cache.Path, nil
	}
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("locate cache dir: %w", err)
	}
	return filepath.Join(dir, "justcal", "events.db"), nil
}

// field binds a "section.key" name to a config value.
type field struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func stringField(ptr func(c *Config) *string) field {
	return field{
		get: func(c *Config) string { return *ptr(c) },
		set: func(c *Config, v string) error { *ptr(c) = v; return nil },
	}
}

func boolField(ptr func(c *Config) *bool) field {
	return field{
		get: func(c *Config) string { return strconv.FormatBool(*ptr(c)) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%w: expected true or false, got %q", ErrInvalidValue, v)
			}
			*ptr(c) = b
			return nil
		},
	}
}

var fields = map[string]field{
	"caldav.url":      stringField(func(c *Config) *string { return &c.CalDAV.URL }),
	"caldav.username": stringField(func(c *Config) *string { return &c.CalDAV.Username }),
	"caldav.password": stringField(func(c *Config) *string { return &c.CalDAV.Password }),
	"caldav.calendar": stringField(func(c *Config) *string { return &c.CalDAV.Calendar }),
	"preferences.default_duration": {
		get: func(c *Config) string { return strconv.Itoa(c.Preferences.DefaultDuration) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				return fmt.Errorf("%w: default_duration must be a positive number of minutes, got %q", ErrInvalidValue, v)
			}
			c.Preferences.DefaultDuration = n
			return nil
		},
	},
	"preferences.timezone": {
		get: func(c *Config) string { return c.Preferences.Timezone },
		set: func(c *Config, v string) error {
			if _, err := time.LoadLocation(v); err != nil {
				return fmt.Errorf("%w: unknown timezone %q", ErrInvalidValue, v)
			}
			c.Preferences.Timezone = v
			return nil
		},
	},
	"preferences.date_format": stringField(func(c *Config) *string { return &c.Preferences.DateFormat }),
	"security.use_keyring":    boolField(func(c *Config) *bool { return &c.Security.UseKeyring }),
	"cache.path":              stringField(func(c *Config) *string { return &c.Cache.Path }),
	"cache.disabled":          boolField(func(c *Config) *bool { return &c.Cache.Disabled }),
}

func lookup(key string) (field, error) {
	if !strings.Contains(key, ".") {
		return field{}, fmt.Errorf("key must be in format 'section.key', got: %s", key)
	}
	f, ok := fields[strings.ToLower(key)]
	if !ok {
		return field{}, fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return f, nil
}

// Get returns the value stored under "section.key".
func (c *Config) Get(key string) (string, error) {
	f, err := lookup(key)
	if err != nil {
		return "", err
	}
	return f.get(c), nil
}

// Set validates and stores value under "section.key".
func (c *Config) Set(key, value string) error {
	f, err := lookup(key)
	if err != nil {
		return err
	}
	return f.set(c, value)
}

// Show renders the configuration as YAML with the password masked.
func (c *Config) Show() (string, error) {
	masked := *c
	if masked.CalDAV.Password != "" {
		masked.CalDAV.Password = "***"
	}
	data, err := yaml.Marshal(&masked)
	if err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}
	return string(data), nil
}

// Password returns the CalDAV password from the keyring, falling back to
// the config file.
func (c *Config) Password() (string, error) {
	if c.CalDAV.Username == "" {
		return "", fmt.Errorf("%w: username not configured", ErrInvalidValue)
	}
	if c.Security.UseKeyring {
		pw, err := keyring.Get(keyringService, c.CalDAV.Username)
		if err == nil && pw != "" {
			return pw, nil
		}
	}
	if c.CalDAV.Password != "" {
		return c.CalDAV.Password, nil
	}
	return "", fmt.Errorf("%w. Run 'justcal config --init' to set it up", ErrPasswordMissing)
}

// SetPassword stores the password in the keyring when enabled, clearing it
// from the file. When the keyring is disabled or unavailable the password is
// kept in the file and inKeyring is false.
func (c *Config) SetPassword(password string) (inKeyring bool, err error) {
	if c.CalDAV.Username == "" {
		return false, fmt.Errorf("%w: username must be set before password", ErrInvalidValue)
	}
	if c.Security.UseKeyring {
		if err := keyring.Set(keyringService, c.CalDAV.Username, password); err == nil {
			c.CalDAV.Password = ""
			return true, nil
		}
	}
	c.CalDAV.Password = password
	return false, nil
}
