// internal/config/validation.go - validation with detailed error messages
package config

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/robfig/cron/v3"

	"github.com/valpere/FeedHarvester/internal/browser"
	"github.com/valpere/FeedHarvester/internal/harvest"
	"github.com/valpere/FeedHarvester/internal/utils"
)

// OutputFormats lists every supported output format
var OutputFormats = []string{"json", "csv", "yaml", "excel", "sqlite", "postgres", "mysql", "mongodb"}

// Formats that write to a file rather than a database connection
var fileFormats = []string{"json", "csv", "yaml", "excel", "sqlite"}

var metricNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// cronParser accepts the standard five-field syntax plus descriptors like @hourly
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ValidationError represents a detailed validation error
type ValidationError struct {
	Field   string `json:"field"`
	Value   string `json:"value"`
	Message string `json:"message"`
}

// ValidationResult holds validation results
type ValidationResult struct {
	Valid    bool              `json:"valid"`
	Errors   []ValidationError `json:"errors"`
	Warnings []string          `json:"warnings"`
}

func (r *ValidationResult) addError(field, value, message string) {
	r.Errors = append(r.Errors, ValidationError{Field: field, Value: value, Message: message})
}

func (r *ValidationResult) addWarning(format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Validate checks the configuration and returns every problem in one error
func (c *Config) Validate() error {
	result := c.ValidateWithDetails()
	if !result.Valid {
		return formatValidationError(result)
	}
	return nil
}

// ValidateWithDetails returns detailed validation results
func (c *Config) ValidateWithDetails() *ValidationResult {
	result := &ValidationResult{
		Valid:    true,
		Errors:   make([]ValidationError, 0),
		Warnings: make([]string, 0),
	}

	c.validateServer(result)
	c.validateBrowser(result)
	c.validateHarvest(result)
	c.validateCredentials(result)
	validateOutput("output", c.Output, result)
	c.validateMetrics(result)
	c.validateSchedules(result)

	if _, err := utils.ParseLevel(c.LogLevel); err != nil {
		result.addError("log_level", c.LogLevel, "Log level must be one of debug, info, warn, error")
	}

	result.Valid = len(result.Errors) == 0
	return result
}

func (c *Config) validateServer(result *ValidationResult) {
	if c.Server.Address == "" {
		result.addError("server.address", "", "Server address is required")
	}
	if c.Server.RequestsPerSecond < 0 {
		result.addError("server.requests_per_second", fmt.Sprintf("%g", c.Server.RequestsPerSecond),
			"Requests per second cannot be negative")
	}
	if c.Server.Burst < 0 {
		result.addError("server.burst", fmt.Sprintf("%d", c.Server.Burst), "Burst cannot be negative")
	}
	if c.Server.JobTimeout < 0 {
		result.addError("server.job_timeout", c.Server.JobTimeout.String(), "Job timeout cannot be negative")
	}
}

func (c *Config) validateBrowser(result *ValidationResult) {
	switch c.Browser.Backend {
	case browser.BackendChromedp, browser.BackendRod:
	default:
		result.addError("browser.backend", c.Browser.Backend,
			fmt.Sprintf("Backend must be %s or %s", browser.BackendChromedp, browser.BackendRod))
	}
	if c.Browser.MaxSessions < 1 {
		result.addError("browser.max_sessions", fmt.Sprintf("%d", c.Browser.MaxSessions),
			"At least one browser session must be allowed")
	}
	if c.Browser.Timeout < 0 || c.Browser.CallTimeout < 0 {
		result.addError("browser.timeout", c.Browser.Timeout.String(), "Browser timeouts cannot be negative")
	}
	if !c.Browser.Headless {
		result.addWarning("browser.headless is false: every harvest opens a visible window")
	}
}

func (c *Config) validateHarvest(result *ValidationResult) {
	tunings := map[string]harvest.Tuning{
		"harvest.posts":    c.Harvest.Posts,
		"harvest.videos":   c.Harvest.Videos,
		"harvest.comments": c.Harvest.Comments,
	}
	for field, t := range tunings {
		if t.MaxCycles < 1 {
			result.addError(field+".max_cycles", fmt.Sprintf("%d", t.MaxCycles), "Max cycles must be at least 1")
		}
		if t.StagnationCeiling < 1 {
			result.addError(field+".stagnation_ceiling", fmt.Sprintf("%d", t.StagnationCeiling),
				"Stagnation ceiling must be at least 1")
		}
		if t.LoadPause < 0 || t.RevealPause < 0 || t.StagnantPause < 0 || t.RootWait < 0 {
			result.addError(field, "", "Pauses cannot be negative")
		}
	}

	if c.Harvest.Retry.MaxRetries < 0 {
		result.addError("harvest.retry.max_retries", fmt.Sprintf("%d", c.Harvest.Retry.MaxRetries),
			"Max retries cannot be negative")
	}
	if c.Harvest.Retry.BackoffFactor != 0 && c.Harvest.Retry.BackoffFactor < 1 {
		result.addError("harvest.retry.backoff_factor", fmt.Sprintf("%g", c.Harvest.Retry.BackoffFactor),
			"Backoff factor must be at least 1")
	}
}

func (c *Config) validateCredentials(result *ValidationResult) {
	if c.Credentials.Username == "" || c.Credentials.Password == "" {
		result.addWarning("credentials are not set: post harvests will fail")
	}
}

func validateOutput(field string, out OutputConfig, result *ValidationResult) {
	if !contains(OutputFormats, out.Format) {
		result.addError(field+".format", out.Format,
			fmt.Sprintf("Output format must be one of: %s", strings.Join(OutputFormats, ", ")))
		return
	}

	if contains(fileFormats, out.Format) {
		if out.File == "" {
			result.addError(field+".file", "", fmt.Sprintf("Output file is required for %s", out.Format))
		}
		return
	}

	if out.DSN == "" {
		result.addError(field+".dsn", "", fmt.Sprintf("Connection string is required for %s", out.Format))
	}
	if out.Format == "mongodb" && out.Database == "" {
		result.addError(field+".database", "", "Database is required for mongodb")
	}
}

func (c *Config) validateMetrics(result *ValidationResult) {
	if !metricNamePattern.MatchString(c.Metrics.Namespace) {
		result.addError("metrics.namespace", c.Metrics.Namespace,
			"Namespace must start with a letter or underscore and contain only letters, digits and underscores")
	}
	if !strings.HasPrefix(c.Metrics.Path, "/") {
		result.addError("metrics.path", c.Metrics.Path, "Metrics path must start with /")
	}
}

func (c *Config) validateSchedules(result *ValidationResult) {
	names := make([]string, 0, len(c.Schedules))

	for i, s := range c.Schedules {
		field := fmt.Sprintf("schedules[%d]", i)

		if s.Name == "" {
			result.addError(field+".name", "", "Schedule name is required")
		} else if contains(names, s.Name) {
			result.addError(field+".name", s.Name, "Schedule names must be unique")
		}
		names = append(names, s.Name)

		if _, err := cronParser.Parse(s.Cron); err != nil {
			result.addError(field+".cron", s.Cron, fmt.Sprintf("Invalid cron expression: %v", err))
		}

		kind, err := harvest.ParseKind(s.Kind)
		if err != nil {
			result.addError(field+".kind", s.Kind, "Kind must be posts, videos or comments")
		} else if kind == harvest.KindComment {
			if !utils.IsValidURL(s.URL) {
				result.addError(field+".url", s.URL, "Comment schedules need a valid video URL")
			}
		} else if strings.TrimSpace(s.Query) == "" {
			result.addError(field+".query", "", "Search schedules need a query")
		}

		if s.Limit < 1 {
			result.addError(field+".limit", fmt.Sprintf("%d", s.Limit), "Limit must be at least 1")
		}

		if s.Output != nil {
			validateOutput(field+".output", *s.Output, result)
		}
	}
}

// formatValidationError creates a user-friendly error message
func formatValidationError(result *ValidationResult) error {
	var msg strings.Builder
	msg.WriteString("Configuration validation failed:\n")

	for i, err := range result.Errors {
		msg.WriteString(fmt.Sprintf("  %d. %s", i+1, err.Message))
		if err.Field != "" {
			msg.WriteString(fmt.Sprintf(" (field: %s)", err.Field))
		}
		if err.Value != "" {
			msg.WriteString(fmt.Sprintf(" (value: %q)", err.Value))
		}
		msg.WriteString("\n")
	}

	msg.WriteString("Suggestions:\n")
	for _, s := range GetValidationSuggestions(result) {
		msg.WriteString(fmt.Sprintf("  - %s\n", s))
	}

	return fmt.Errorf("%s", strings.TrimRight(msg.String(), "\n"))
}

// GetValidationSuggestions provides actionable suggestions for fixing validation errors
func GetValidationSuggestions(result *ValidationResult) []string {
	suggestions := make([]string, 0)

	hasOutputError := false
	hasScheduleError := false
	hasBrowserError := false

	for _, err := range result.Errors {
		if strings.Contains(err.Field, "output") {
			hasOutputError = true
		}
		if strings.HasPrefix(err.Field, "schedules") {
			hasScheduleError = true
		}
		if strings.HasPrefix(err.Field, "browser") {
			hasBrowserError = true
		}
	}

	if hasOutputError {
		suggestions = append(suggestions,
			"File formats need output.file; database formats need output.dsn",
			"Use ${ENV} references for connection strings with passwords")
	}

	if hasScheduleError {
		suggestions = append(suggestions,
			"Cron expressions use five fields: minute hour day month weekday",
			"Comment schedules need url; post and video schedules need query")
	}

	if hasBrowserError {
		suggestions = append(suggestions,
			"Set browser.backend to chromedp or rod",
			"Make sure Chrome or Chromium is installed")
	}

	if len(suggestions) == 0 {
		suggestions = append(suggestions,
			"Review the configuration file for syntax errors",
			"Check YAML indentation and formatting")
	}

	return suggestions
}

// Helper function to check if slice contains string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
