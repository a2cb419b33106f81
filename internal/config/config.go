package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Shaping mode for the final event lists.
const (
	ModeSplit  = "split"  // separate recurring/single lists, MaxEach applies
	ModeMerged = "merged" // one combined list, MaxTotal applies
)

// Config is the top-level application configuration.
type Config struct {
	// FeedURL is the ICS subscription endpoint.
	FeedURL string `yaml:"feed_url" json:"feed_url"`

	// DaysAhead is the forward window length in days.
	DaysAhead int `yaml:"days_ahead" json:"days_ahead"`

	// Mode selects the output shaping: "split" or "merged".
	Mode string `yaml:"mode" json:"mode"`

	// MaxEach caps each list in split mode.
	MaxEach int `yaml:"max_each" json:"max_each"`

	// MaxTotal caps the combined list in merged mode.
	MaxTotal int `yaml:"max_total" json:"max_total"`

	// OutputPath is where the JSON envelope is written.
	OutputPath string `yaml:"output" json:"output"`

	// CacheDir is the base directory for the HTTP fetch cache.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// RefreshCron is a cron-style schedule (e.g. "*/30 * * * *") used in
	// daemon mode. Ignored with --once.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// BaseOffsetHours / SummerOffsetHours configure the fixed regional DST
	// rule used to resolve floating local times (default +1/+2).
	BaseOffsetHours   int `yaml:"base_offset_hours" json:"base_offset_hours"`
	SummerOffsetHours int `yaml:"summer_offset_hours" json:"summer_offset_hours"`

	// ExpandRecurring enables the recurrence expansion collaborator. When
	// false, recurring events are represented by their raw series start only.
	ExpandRecurring bool `yaml:"expand_recurring" json:"expand_recurring"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		FeedURL:           "",
		DaysAhead:         30,
		Mode:              ModeSplit,
		MaxEach:           3,
		MaxTotal:          10,
		OutputPath:        "data/calendar.json",
		CacheDir:          "./var/ics-cache",
		RefreshCron:       "*/30 * * * *",
		BaseOffsetHours:   1,
		SummerOffsetHours: 2,
		ExpandRecurring:   true,
	}
}

// Normalize fills in missing/zero values with defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.DaysAhead <= 0 {
		c.DaysAhead = 30
	}
	switch c.Mode {
	case ModeSplit, ModeMerged:
		// ok
	default:
		c.Mode = ModeSplit
	}
	if c.MaxEach <= 0 {
		c.MaxEach = 3
	}
	if c.MaxTotal <= 0 {
		c.MaxTotal = 10
	}
	if c.OutputPath == "" {
		c.OutputPath = "data/calendar.json"
	}
	if c.CacheDir == "" {
		c.CacheDir = "./var/ics-cache"
	}
	if c.RefreshCron == "" {
		c.RefreshCron = "*/30 * * * *"
	}
	if c.BaseOffsetHours == 0 {
		c.BaseOffsetHours = 1
	}
	if c.SummerOffsetHours == 0 {
		c.SummerOffsetHours = 2
	}
}

// ApplyEnv overrides config values from environment variables. These mirror
// the variables the deployment already sets, so a config file is optional.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("CALENDAR_ICS_URL"); v != "" {
		c.FeedURL = v
	}
	if v := os.Getenv("CALENDAR_DAYS_AHEAD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.DaysAhead = n
		}
	}
	if v := os.Getenv("CALENDAR_MODE"); v == ModeSplit || v == ModeMerged {
		c.Mode = v
	}
	if v := os.Getenv("CALENDAR_MAX_EACH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.MaxEach = n
		}
	}
	if v := os.Getenv("CALENDAR_MAX_TOTAL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.MaxTotal = n
		}
	}
	if v := os.Getenv("CALENDAR_OUTPUT"); v != "" {
		c.OutputPath = v
	}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
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

	// Atomic write: write to temp file in same directory then rename.
	tmp, err := os.CreateTemp(dir, ".calfeed-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}

	// Flush and close before chmod/rename.
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

	if err := os.Rename(tmpName, path); err != nil {
		return err
	}

	return nil
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
