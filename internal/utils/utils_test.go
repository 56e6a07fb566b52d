// internal/utils/utils_test.go
package utils

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestIsValidURL(t *testing.T) {
	tests := map[string]bool{
		"https://www.youtube.com/watch?v=abc": true,
		"http://example.com":                  true,
		"ftp://example.com":                   false,
		"/watch?v=abc":                        false,
		"":                                    false,
	}
	for input, want := range tests {
		if got := IsValidURL(input); got != want {
			t.Errorf("IsValidURL(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestCleanFileName(t *testing.T) {
	if got := CleanFileName("golang news: daily/feed"); got != "golang_news_daily_feed" {
		t.Errorf("Unexpected cleaned name %q", got)
	}
	if got := CleanFileName("..."); got != "output" {
		t.Errorf("Expected default name, got %q", got)
	}
}

func TestTruncateString(t *testing.T) {
	if got := TruncateString("héllo wörld", 8); got != "héllo..." {
		t.Errorf("Unexpected truncation %q", got)
	}
	if got := TruncateString("short", 10); got != "short" {
		t.Errorf("Expected untouched string, got %q", got)
	}
}

func TestGenerateOutputFileName(t *testing.T) {
	at := time.Date(2025, 3, 1, 14, 30, 0, 0, time.UTC)
	if got := GenerateOutputFileName("daily videos", "json", at); got != "daily_videos_20250301_143000.json" {
		t.Errorf("Unexpected file name %q", got)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]LogLevel{"debug": DebugLevel, "INFO": InfoLevel, "": InfoLevel, "warning": WarnLevel, "error": ErrorLevel}
	for input, want := range tests {
		got, err := ParseLevel(input)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", input, got, err, want)
		}
	}
	if _, err := ParseLevel("verbose"); err == nil {
		t.Error("Expected error for unknown level")
	}
}

func TestSimpleLogger_LevelAndFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, InfoLevel)

	logger.Debug("hidden")
	logger.WithFields(map[string]interface{}{"kind": "video", "job_id": "video-1"}).Info("record accepted")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("Expected debug message to be filtered")
	}
	if !strings.Contains(out, "[INFO] record accepted fields={job_id=video-1, kind=video}") {
		t.Errorf("Unexpected log line %q", out)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	if !rl.Allow() || !rl.Allow() {
		t.Fatal("Expected burst of 2 to be allowed")
	}
	if rl.Allow() {
		t.Error("Expected third immediate request to be limited")
	}

	unlimited := NewRateLimiter(0, 1)
	for i := 0; i < 100; i++ {
		if !unlimited.Allow() {
			t.Fatal("Expected non-positive rate to disable limiting")
		}
	}

	unlimited.SetLimit(0.001)
	unlimited.SetBurst(0)
	if !unlimited.Allow() {
		t.Fatal("Expected the minimum burst of 1 to be allowed")
	}
	if unlimited.Allow() {
		t.Error("Expected SetLimit to restore limiting")
	}
}
