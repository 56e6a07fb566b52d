// internal/utils/utils.go
package utils

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
)

var invalidFileChars = regexp.MustCompile(`[<>:"/\\|?*\s]+`)

// IsValidURL checks if a string is an absolute http(s) URL
func IsValidURL(str string) bool {
	u, err := url.Parse(str)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

// CleanFileName removes invalid characters from a filename
func CleanFileName(name string) string {
	cleaned := invalidFileChars.ReplaceAllString(name, "_")

	// Trim spaces and dots
	cleaned = strings.TrimSpace(cleaned)
	cleaned = strings.Trim(cleaned, "._")

	// Limit length
	if len(cleaned) > 200 {
		cleaned = cleaned[:200]
	}

	// Default if empty
	if cleaned == "" {
		cleaned = "output"
	}

	return cleaned
}

// TruncateString shortens s to at most maxLen runes, marking the cut
// with "..."
func TruncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// FormatDuration formats a duration in a human-readable way
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%.1fm", d.Minutes())
	}
	return fmt.Sprintf("%.1fh", d.Hours())
}

// GenerateOutputFileName builds "<name>_<timestamp>.<ext>" for a
// harvest run started at t
func GenerateOutputFileName(name, ext string, t time.Time) string {
	return fmt.Sprintf("%s_%s.%s", CleanFileName(name), t.Format("20060102_150405"), ext)
}
