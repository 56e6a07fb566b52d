// internal/errors/service.go - Retry and user-facing error reporting
package errors

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"
)

// Service provides retry and error presentation for the harvester
type Service struct {
	retryConfig    RetryConfig
	messageHandler *MessageHandler
}

// RetryConfig defines retry behavior
type RetryConfig struct {
	MaxRetries    int           `yaml:"max_retries" json:"max_retries"`
	BaseDelay     time.Duration `yaml:"base_delay" json:"base_delay"`
	BackoffFactor float64       `yaml:"backoff_factor" json:"backoff_factor"`
	MaxDelay      time.Duration `yaml:"max_delay" json:"max_delay"`
}

// MessageHandler converts technical errors to user-friendly messages
type MessageHandler struct {
	showTechnical bool
}

// NewService creates a new error service
func NewService() *Service {
	return &Service{
		retryConfig: RetryConfig{
			MaxRetries:    2,
			BaseDelay:     time.Second * 2,
			BackoffFactor: 2.0,
			MaxDelay:      time.Second * 30,
		},
		messageHandler: &MessageHandler{showTechnical: false},
	}
}

// WithVerbose enables technical error details
func (s *Service) WithVerbose(verbose bool) *Service {
	s.messageHandler.showTechnical = verbose
	return s
}

// WithRetryConfig replaces the retry policy
func (s *Service) WithRetryConfig(config RetryConfig) *Service {
	s.retryConfig = config
	return s
}

// ExecuteWithRetry runs operation until it succeeds, fails with a
// non-retryable error, or runs out of attempts
func (s *Service) ExecuteWithRetry(ctx context.Context, operation func() error, operationName string) error {
	var lastErr error
	attempts := 0

	for attempt := 0; attempt <= s.retryConfig.MaxRetries; attempt++ {
		attempts++
		err := operation()
		if err == nil {
			return nil
		}

		lastErr = err

		if !s.shouldRetry(err, attempt) {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.calculateDelay(attempt)):
		}
	}

	return fmt.Errorf("operation %s failed after %d attempts: %w", operationName, attempts, lastErr)
}

// shouldRetry determines if error is retryable
func (s *Service) shouldRetry(err error, attempt int) bool {
	if attempt >= s.retryConfig.MaxRetries {
		return false
	}

	errStr := strings.ToLower(err.Error())
	retryableErrors := []string{
		"timeout", "connection refused", "websocket",
		"temporary", "resource temporarily unavailable",
	}

	for _, retryable := range retryableErrors {
		if strings.Contains(errStr, retryable) {
			return true
		}
	}

	return false
}

// calculateDelay computes exponential backoff delay
func (s *Service) calculateDelay(attempt int) time.Duration {
	delay := time.Duration(float64(s.retryConfig.BaseDelay) * math.Pow(s.retryConfig.BackoffFactor, float64(attempt)))
	if delay > s.retryConfig.MaxDelay {
		delay = s.retryConfig.MaxDelay
	}
	return delay
}

// GetUserFriendlyError converts technical errors to user-friendly messages
func (s *Service) GetUserFriendlyError(err error) (title, message string, suggestions []string) {
	if err == nil {
		return "", "", nil
	}

	switch ClassOf(err) {
	case ClassSignIn:
		return "Sign-In Failed",
			"Could not sign in to the gated surface.",
			[]string{
				"Check the configured username and password",
				"The login form may have changed",
				"Run without headless mode to watch the sign-in",
			}
	case ClassSession:
		return "Browser Unavailable",
			"Could not start a browser session.",
			[]string{
				"Check that Chrome or Chromium is installed",
				"Lower browser.max_sessions if the host is short on memory",
				"Try the other browser backend",
			}
	case ClassNavigation:
		return "Navigation Failed",
			"The target page could not be loaded.",
			[]string{
				"Check the target URL",
				"Increase browser.timeout in configuration",
			}
	case ClassInput:
		return "Invalid Request",
			err.Error(),
			nil
	}

	errStr := strings.ToLower(err.Error())

	if strings.Contains(errStr, "timeout") {
		return "Timeout",
			"The browser did not respond in time.",
			[]string{
				"Increase browser.call_timeout in configuration",
				"The content surface might be slow or experiencing issues",
			}
	}

	if strings.Contains(errStr, "yaml") || strings.Contains(errStr, "config") {
		return "Configuration Error",
			"The configuration file is invalid.",
			[]string{
				"Check YAML indentation (use spaces, not tabs)",
				"Run 'feedharvester validate <config.yaml>'",
			}
	}

	return "Unexpected Error",
		"An unexpected error occurred during the harvest.",
		[]string{
			"Try running the command again",
			"Run with --verbose for technical details",
		}
}

// GetExitCode returns appropriate exit code for error
func (s *Service) GetExitCode(err error) int {
	if err == nil {
		return 0
	}

	switch ClassOf(err) {
	case ClassInput:
		return 6
	case ClassSignIn:
		return 8
	case ClassSession, ClassNavigation:
		return 3
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "config") || strings.Contains(errStr, "yaml"):
		return 2 // Configuration error
	case strings.Contains(errStr, "timeout") || strings.Contains(errStr, "connection"):
		return 3 // Network error
	case strings.Contains(errStr, "output") || strings.Contains(errStr, "write"):
		return 5 // Output error
	case strings.Contains(errStr, "validation"):
		return 6 // Validation error
	default:
		return 1 // General error
	}
}

// FormatErrorForCLI formats error for command-line display
func (s *Service) FormatErrorForCLI(err error) string {
	title, message, suggestions := s.GetUserFriendlyError(err)

	output := fmt.Sprintf("Error: %s\n%s\n", title, message)

	if s.messageHandler.showTechnical {
		output += fmt.Sprintf("\nTechnical details: %s\n", err.Error())
	}

	if len(suggestions) > 0 {
		output += "\nSuggestions:\n"
		for _, suggestion := range suggestions {
			output += fmt.Sprintf("  - %s\n", suggestion)
		}
	}

	return output
}
