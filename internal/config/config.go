// Package config loads the tracked-team configuration file.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/pfrederiksen/liquipedia-cs/internal/match"
	"github.com/pfrederiksen/liquipedia-cs/internal/scraper"
)

const (
	DefaultPollInterval   = 30 * time.Minute
	DefaultRefreshWorkers = 4
	DefaultLogLevel       = "info"
	DefaultListenAddr     = ":8080"
)

// ErrInvalid marks configuration that fails validation.
var ErrInvalid = errors.New("invalid configuration")

// Config is the YAML configuration file.
type Config struct {
	Teams          []match.Team  `yaml:"teams" validate:"required,min=1,unique=Page,dive"`
	PollInterval   time.Duration `yaml:"poll_interval" validate:"gt=0"`
	Timeout        time.Duration `yaml:"timeout" validate:"gt=0"`
	MaxRetries     *int          `yaml:"max_retries" validate:"omitempty,min=0,max=10"`
	RefreshWorkers int           `yaml:"refresh_workers" validate:"min=1,max=64"`
	Timezone       string        `yaml:"timezone"`
	BaseURL        string        `yaml:"base_url" validate:"url"`
	Wiki           string        `yaml:"wiki" validate:"required"`
	UserAgent      string        `yaml:"user_agent" validate:"required"`
	LogLevel       string        `yaml:"log_level" validate:"oneof=debug info warn error"`
	ListenAddr     string        `yaml:"listen_addr" validate:"required"`
}

// Load reads, defaults and validates the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading config file %s", path)
	}
	return Parse(data)
}

// Parse decodes, defaults and validates YAML config data.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "parsing config")
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.PollInterval == 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.Timeout == 0 {
		c.Timeout = scraper.Timeout
	}
	if c.MaxRetries == nil {
		n := scraper.MaxRetries
		c.MaxRetries = &n
	}
	if c.RefreshWorkers == 0 {
		c.RefreshWorkers = DefaultRefreshWorkers
	}
	if c.BaseURL == "" {
		c.BaseURL = scraper.BaseURL
	}
	if c.Wiki == "" {
		c.Wiki = scraper.Wiki
	}
	if c.UserAgent == "" {
		c.UserAgent = scraper.UserAgent
	}
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	for i := range c.Teams {
		c.Teams[i].Page = strings.TrimSpace(c.Teams[i].Page)
		c.Teams[i].Name = strings.TrimSpace(c.Teams[i].Name)
		if c.Teams[i].Name == "" {
			c.Teams[i].Name = strings.ReplaceAll(c.Teams[i].Page, "_", " ")
		}
	}
}

var validate = validator.New()

// Validate checks field constraints and that the timezone can be loaded.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errors.Mark(errors.Wrap(err, "validating config"), ErrInvalid)
	}
	if _, err := c.Location(); err != nil {
		return errors.Mark(err, ErrInvalid)
	}
	return nil
}

// Location is the display timezone. An empty or "Local" value is the host zone.
func (c *Config) Location() (*time.Location, error) {
	switch c.Timezone {
	case "", "Local":
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, errors.Wrapf(err, "loading timezone %q", c.Timezone)
	}
	return loc, nil
}

// Retries returns the configured retry count.
func (c *Config) Retries() int {
	if c.MaxRetries == nil {
		return scraper.MaxRetries
	}
	return *c.MaxRetries
}

// Team returns the tracked team with the given page.
func (c *Config) Team(page string) (match.Team, bool) {
	for _, t := range c.Teams {
		if t.Page == page {
			return t, true
		}
	}
	return match.Team{}, false
}
