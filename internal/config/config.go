// internal/config/config.go
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/valpere/FeedHarvester/internal/browser"
	herrors "github.com/valpere/FeedHarvester/internal/errors"
	"github.com/valpere/FeedHarvester/internal/harvest"
)

// Default returns a configuration with every default applied
func Default() *Config {
	config := &Config{
		Browser: *browser.DefaultBrowserConfig(),
		Harvest: HarvestConfig{
			Posts:    harvest.DefaultTuning(harvest.KindPost),
			Videos:   harvest.DefaultTuning(harvest.KindVideo),
			Comments: harvest.DefaultTuning(harvest.KindComment),
		},
	}
	applyDefaults(config)
	return config
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(filename string) (*Config, error) {
	if filename == "" {
		return nil, fmt.Errorf("configuration filename cannot be empty")
	}

	// Check if file exists
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", filename)
	}

	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file: %w", err)
	}
	defer f.Close()

	return LoadFromReader(f)
}

// LoadFromBytes loads configuration from YAML bytes. Keys missing from
// the document keep their defaults.
func LoadFromBytes(data []byte) (*Config, error) {
	// Substitute environment variables
	expandedData := expandEnvironmentVariables(string(data))

	config := Default()
	// Output keys are taken as a unit so a new format never inherits
	// the default file name.
	config.Output = OutputConfig{}
	if err := yaml.Unmarshal([]byte(expandedData), config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML configuration: %w", err)
	}

	applyDefaults(config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// LoadFromReader loads configuration from an io.Reader
func LoadFromReader(reader io.Reader) (*Config, error) {
	if reader == nil {
		return nil, fmt.Errorf("reader cannot be nil")
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read from reader: %w", err)
	}

	return LoadFromBytes(data)
}

// SaveToFile saves configuration to a YAML file. Literal secrets are
// masked.
func SaveToFile(config *Config, filename string) error {
	if config == nil {
		return fmt.Errorf("configuration cannot be nil")
	}
	if filename == "" {
		return fmt.Errorf("filename cannot be empty")
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration to YAML: %w", err)
	}

	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	return nil
}

// GenerateTemplate returns a starter configuration as YAML
func GenerateTemplate() ([]byte, error) {
	config := Default()
	config.Credentials = CredentialsConfig{
		Username: "${FEEDHARVESTER_USERNAME}",
		Password: "${FEEDHARVESTER_PASSWORD}",
	}
	config.Output = OutputConfig{Format: "json", File: "output/records.json", Pretty: true}
	config.Metrics.Enabled = true
	config.Schedules = []ScheduleConfig{
		{
			Name:  "hourly-videos",
			Cron:  "0 * * * *",
			Kind:  "videos",
			Query: "golang",
			Limit: 20,
			Output: &OutputConfig{
				Format: "sqlite",
				File:   "output/harvest.db",
			},
		},
	}
	return yaml.Marshal(config)
}

var defaultExtensions = map[string]string{
	"json":   "json",
	"csv":    "csv",
	"yaml":   "yaml",
	"excel":  "xlsx",
	"sqlite": "db",
}

// expandEnvironmentVariables substitutes environment variables in the configuration
func expandEnvironmentVariables(content string) string {
	return os.ExpandEnv(content)
}

// applyDefaults fills every zero value that has a sensible default
func applyDefaults(config *Config) {
	if config.Server.Address == "" {
		config.Server.Address = ":5000"
	}
	if config.Server.RequestsPerSecond == 0 {
		config.Server.RequestsPerSecond = 1
	}
	if config.Server.Burst == 0 {
		config.Server.Burst = 5
	}
	if config.Server.ReadTimeout == 0 {
		config.Server.ReadTimeout = 30 * time.Second
	}
	if config.Server.WriteTimeout == 0 {
		// Harvests answer synchronously and can run for minutes.
		config.Server.WriteTimeout = 15 * time.Minute
	}
	if config.Server.ShutdownTimeout == 0 {
		config.Server.ShutdownTimeout = 30 * time.Second
	}
	if config.Server.JobTimeout == 0 {
		config.Server.JobTimeout = 10 * time.Minute
	}

	def := browser.DefaultBrowserConfig()
	if config.Browser.Backend == "" {
		config.Browser.Backend = def.Backend
	}
	if config.Browser.Timeout == 0 {
		config.Browser.Timeout = def.Timeout
	}
	if config.Browser.CallTimeout == 0 {
		config.Browser.CallTimeout = def.CallTimeout
	}
	if config.Browser.ViewportWidth == 0 {
		config.Browser.ViewportWidth = def.ViewportWidth
	}
	if config.Browser.ViewportHeight == 0 {
		config.Browser.ViewportHeight = def.ViewportHeight
	}
	if config.Browser.UserAgent == "" {
		config.Browser.UserAgent = def.UserAgent
	}
	if config.Browser.MaxSessions == 0 {
		config.Browser.MaxSessions = def.MaxSessions
	}

	config.Harvest.Posts = config.Harvest.Posts.Merge(harvest.DefaultTuning(harvest.KindPost))
	config.Harvest.Videos = config.Harvest.Videos.Merge(harvest.DefaultTuning(harvest.KindVideo))
	config.Harvest.Comments = config.Harvest.Comments.Merge(harvest.DefaultTuning(harvest.KindComment))
	// max_retries: 0 is a valid setting, so it is only defaulted when the
	// retry block is absent
	retry := &config.Harvest.Retry
	if *retry == (herrors.RetryConfig{}) {
		retry.MaxRetries = 2
	}
	if retry.BaseDelay == 0 {
		retry.BaseDelay = 2 * time.Second
	}
	if retry.BackoffFactor == 0 {
		retry.BackoffFactor = 2.0
	}
	if retry.MaxDelay == 0 {
		retry.MaxDelay = 30 * time.Second
	}

	if config.Output.Format == "" {
		config.Output.Format = "json"
	}
	if config.Output.File == "" {
		if ext, ok := defaultExtensions[config.Output.Format]; ok {
			config.Output.File = "output/records." + ext
		}
	}

	if config.Metrics.Namespace == "" {
		config.Metrics.Namespace = "feedharvester"
	}
	if config.Metrics.Path == "" {
		config.Metrics.Path = "/metrics"
	}

	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
}
