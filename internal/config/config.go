package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	DataSource struct {
		BaseURL   string `yaml:"base_url"`
		AreaType  string `yaml:"area_type"`
		AreaName  string `yaml:"area_name"`
		TimeoutMS int    `yaml:"timeout_ms"`
	} `yaml:"data_source"`
	Ingest struct {
		ExcludedDates      []string `yaml:"excluded_dates"`
		StartSearchingTime string   `yaml:"start_searching_time"`
		TimeoutTime        string   `yaml:"timeout_time"`
		WaitTime           int      `yaml:"wait_time"` // seconds
	} `yaml:"ingest"`
	Store struct {
		RecordsFile      string `yaml:"records_file"`
		PeaksFile        string `yaml:"peaks_file"`
		RebuildOnInvalid bool   `yaml:"rebuild_on_invalid"`
		WriteAttempts    int    `yaml:"write_attempts"`
	} `yaml:"store"`
	Display struct {
		LastOutputFile string `yaml:"last_output_file"`
	} `yaml:"display"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	HTTP struct {
		Listen string `yaml:"listen"`
	} `yaml:"http"`
	Log struct {
		File string `yaml:"file"`
	} `yaml:"log"`
	Proxy string `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("COVID_API_BASE_URL"); v != "" {
		cfg.DataSource.BaseURL = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("EXCLUDED_DATES"); v != "" {
		cfg.Ingest.ExcludedDates = splitList(v)
	}
	if v := os.Getenv("START_SEARCHING_TIME"); v != "" {
		cfg.Ingest.StartSearchingTime = v
	}
	if v := os.Getenv("TIMEOUT_TIME"); v != "" {
		cfg.Ingest.TimeoutTime = v
	}
	if v := os.Getenv("WAIT_TIME"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Ingest.WaitTime = n
		}
	}
	if v := os.Getenv("REBUILD_ON_INVALID"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Store.RebuildOnInvalid = b
		}
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("HTTP_LISTEN"); v != "" {
		cfg.HTTP.Listen = v
	}

	// Defaults
	if cfg.DataSource.BaseURL == "" {
		cfg.DataSource.BaseURL = "https://api.coronavirus.data.gov.uk/v1/data"
	}
	if cfg.DataSource.AreaType == "" {
		cfg.DataSource.AreaType = "overview"
	}
	if cfg.DataSource.AreaName == "" {
		cfg.DataSource.AreaName = "United Kingdom"
	}
	if cfg.DataSource.TimeoutMS == 0 {
		cfg.DataSource.TimeoutMS = 30000
	}
	if cfg.Ingest.StartSearchingTime == "" {
		cfg.Ingest.StartSearchingTime = "1600"
	}
	if cfg.Ingest.TimeoutTime == "" {
		cfg.Ingest.TimeoutTime = "2200"
	}
	if cfg.Ingest.WaitTime == 0 {
		cfg.Ingest.WaitTime = 60
	}
	if cfg.Store.RecordsFile == "" {
		cfg.Store.RecordsFile = "data/AllData.json"
	}
	if cfg.Store.PeaksFile == "" {
		cfg.Store.PeaksFile = "data/RAPeaks.json"
	}
	if cfg.Store.WriteAttempts == 0 {
		cfg.Store.WriteAttempts = 3
	}
	if cfg.Display.LastOutputFile == "" {
		cfg.Display.LastOutputFile = "data/LastOutput.txt"
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "data/covid_sentinel.db"
	}

	return cfg, nil
}

// Validate checks that all required fields are set.
func (c *Config) Validate() error {
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required")
	}
	if c.Telegram.ChatID == "" {
		return fmt.Errorf("telegram.chat_id is required")
	}
	if c.DataSource.BaseURL == "" {
		return fmt.Errorf("data_source.base_url is required")
	}
	if _, err := ParseClock(c.Ingest.StartSearchingTime); err != nil {
		return fmt.Errorf("ingest.start_searching_time: %w", err)
	}
	if _, err := ParseClock(c.Ingest.TimeoutTime); err != nil {
		return fmt.Errorf("ingest.timeout_time: %w", err)
	}
	if c.Ingest.WaitTime <= 0 {
		return fmt.Errorf("ingest.wait_time must be positive")
	}
	for _, d := range c.Ingest.ExcludedDates {
		if _, err := time.Parse("2006-01-02", d); err != nil {
			return fmt.Errorf("ingest.excluded_dates: invalid date %q", d)
		}
	}
	if c.Store.WriteAttempts < 0 {
		return fmt.Errorf("store.write_attempts must not be negative")
	}
	return nil
}

// Excluded returns the excluded dates as a set.
func (c *Config) Excluded() map[string]bool {
	out := make(map[string]bool, len(c.Ingest.ExcludedDates))
	for _, d := range c.Ingest.ExcludedDates {
		out[d] = true
	}
	return out
}

// WaitDuration is the delay between fetch attempts.
func (c *Config) WaitDuration() time.Duration {
	return time.Duration(c.Ingest.WaitTime) * time.Second
}

// Clock is a zero-padded HHMM time of day.
type Clock struct {
	Hour, Minute int
}

// ParseClock parses "HHMM", e.g. "1600".
func ParseClock(s string) (Clock, error) {
	if len(s) != 4 {
		return Clock{}, fmt.Errorf("want HHMM, got %q", s)
	}
	h, err := strconv.Atoi(s[:2])
	if err != nil || h < 0 || h > 23 {
		return Clock{}, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(s[2:])
	if err != nil || m < 0 || m > 59 {
		return Clock{}, fmt.Errorf("invalid minute in %q", s)
	}
	return Clock{Hour: h, Minute: m}, nil
}

// On returns the clock time on the calendar day of t, in t's location.
func (c Clock) On(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), c.Hour, c.Minute, 0, 0, t.Location())
}

// Minutes returns minutes since midnight.
func (c Clock) Minutes() int { return c.Hour*60 + c.Minute }

// CronSpec returns a six-field cron spec firing daily at the clock time.
func (c Clock) CronSpec() string {
	return fmt.Sprintf("0 %d %d * * *", c.Minute, c.Hour)
}

// Window returns the search window for the day of t. A timeout at or before
// the start wraps to the following day.
func (c *Config) Window(t time.Time) (start, deadline time.Time, err error) {
	s, err := ParseClock(c.Ingest.StartSearchingTime)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	e, err := ParseClock(c.Ingest.TimeoutTime)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start, deadline = s.On(t), e.On(t)
	if e.Minutes() <= s.Minutes() {
		deadline = deadline.AddDate(0, 0, 1)
	}
	return start, deadline, nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
