// internal/config/types.go

// Package config provides configuration types for FeedHarvester: the
// HTTP surface, browser sessions, per-kind harvest pacing, credentials
// for the gated feed, output sinks, metrics and scheduled harvests.
package config

import (
	"strings"
	"time"

	"github.com/valpere/FeedHarvester/internal/browser"
	herrors "github.com/valpere/FeedHarvester/internal/errors"
	"github.com/valpere/FeedHarvester/internal/harvest"
)

// Config is the root configuration document.
type Config struct {
	// Server configures the job submission surface
	Server ServerConfig `yaml:"server" json:"server"`

	// Browser configures rendering sessions
	Browser browser.BrowserConfig `yaml:"browser" json:"browser"`

	// Harvest holds pacing per record kind
	Harvest HarvestConfig `yaml:"harvest" json:"harvest"`

	// Credentials sign in to the gated post surface
	Credentials CredentialsConfig `yaml:"credentials" json:"-"`

	// Output is the default sink for CLI and scheduled harvests
	Output OutputConfig `yaml:"output" json:"output"`

	// Metrics configures the Prometheus endpoint
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`

	// Schedules run harvests on cron expressions in server mode
	Schedules []ScheduleConfig `yaml:"schedules,omitempty" json:"schedules,omitempty"`

	// LogLevel is one of debug, info, warn, error
	LogLevel string `yaml:"log_level" json:"log_level"`
}

// ServerConfig defines the HTTP surface.
type ServerConfig struct {
	Address           string        `yaml:"address" json:"address"`
	RequestsPerSecond float64       `yaml:"requests_per_second" json:"requests_per_second"`
	Burst             int           `yaml:"burst" json:"burst"`
	ReadTimeout       time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout" json:"write_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
	// JobTimeout bounds a single harvest started over HTTP
	JobTimeout time.Duration `yaml:"job_timeout" json:"job_timeout"`
}

// HarvestConfig holds per-kind pacing and the session retry policy.
type HarvestConfig struct {
	Posts    harvest.Tuning      `yaml:"posts" json:"posts"`
	Videos   harvest.Tuning      `yaml:"videos" json:"videos"`
	Comments harvest.Tuning      `yaml:"comments" json:"comments"`
	Retry    herrors.RetryConfig `yaml:"retry" json:"retry"`
}

// Tuning returns the pacing configured for kind
func (h HarvestConfig) Tuning(kind harvest.Kind) harvest.Tuning {
	switch kind {
	case harvest.KindVideo:
		return h.Videos
	case harvest.KindComment:
		return h.Comments
	default:
		return h.Posts
	}
}

// CredentialsConfig holds the gated surface sign-in. Values are usually
// ${ENV} references expanded at load time.
type CredentialsConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Harvest converts to the engine's credential type
func (c CredentialsConfig) Harvest() harvest.Credentials {
	return harvest.Credentials{Username: c.Username, Password: c.Password}
}

// MarshalYAML keeps ${ENV} references and masks literal secrets.
func (c CredentialsConfig) MarshalYAML() (interface{}, error) {
	return map[string]string{
		"username": c.Username,
		"password": maskSecret(c.Password),
	}, nil
}

func maskSecret(s string) string {
	if s == "" || strings.HasPrefix(s, "${") {
		return s
	}
	return "********"
}

// OutputConfig defines where harvested records go.
type OutputConfig struct {
	// Format is one of json, csv, yaml, excel, sqlite, postgres, mysql, mongodb
	Format string `yaml:"format" json:"format"`

	// File is the target path for file formats and sqlite
	File string `yaml:"file,omitempty" json:"file,omitempty"`

	// DSN is the connection string for database formats
	DSN string `yaml:"dsn,omitempty" json:"-"`

	// Table names the SQL table; defaults to the record kind
	Table string `yaml:"table,omitempty" json:"table,omitempty"`

	// Database and Collection select the MongoDB target
	Database   string `yaml:"database,omitempty" json:"database,omitempty"`
	Collection string `yaml:"collection,omitempty" json:"collection,omitempty"`

	// Pretty indents JSON output
	Pretty bool `yaml:"pretty,omitempty" json:"pretty,omitempty"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	Namespace string `yaml:"namespace" json:"namespace"`
	Path      string `yaml:"path" json:"path"`
}

// ScheduleConfig is one cron-driven harvest.
type ScheduleConfig struct {
	Name  string `yaml:"name" json:"name"`
	Cron  string `yaml:"cron" json:"cron"`
	Kind  string `yaml:"kind" json:"kind"`
	Query string `yaml:"query,omitempty" json:"query,omitempty"`
	URL   string `yaml:"url,omitempty" json:"url,omitempty"`
	Limit int    `yaml:"limit" json:"limit"`

	// Output overrides the global output for this schedule
	Output *OutputConfig `yaml:"output,omitempty" json:"output,omitempty"`
}

// Target converts the schedule into a harvest target
func (s ScheduleConfig) Target() (harvest.Target, error) {
	kind, err := harvest.ParseKind(s.Kind)
	if err != nil {
		return harvest.Target{}, err
	}
	return harvest.Target{Kind: kind, Query: s.Query, URL: s.URL, Limit: s.Limit}, nil
}
