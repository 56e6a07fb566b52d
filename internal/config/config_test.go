// internal/config/config_test.go
package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/valpere/FeedHarvester/internal/browser"
	herrors "github.com/valpere/FeedHarvester/internal/errors"
	"github.com/valpere/FeedHarvester/internal/harvest"
	"github.com/valpere/FeedHarvester/internal/utils"
)

func TestLoadFromBytes_Defaults(t *testing.T) {
	config, err := LoadFromBytes([]byte(`log_level: debug`))
	if err != nil {
		t.Fatalf("LoadFromBytes failed: %v", err)
	}

	if config.Server.Address != ":5000" {
		t.Errorf("expected default address :5000, got %q", config.Server.Address)
	}
	if config.Browser.Backend != browser.BackendChromedp {
		t.Errorf("expected default backend, got %q", config.Browser.Backend)
	}
	if !config.Browser.Headless {
		t.Error("expected headless by default")
	}
	if config.Harvest.Posts != harvest.DefaultTuning(harvest.KindPost) {
		t.Errorf("unexpected post tuning %+v", config.Harvest.Posts)
	}
	if config.Output.Format != "json" || config.Output.File == "" {
		t.Errorf("unexpected default output %+v", config.Output)
	}
	if config.LogLevel != "debug" {
		t.Errorf("expected log level debug, got %q", config.LogLevel)
	}
}

func TestLoadFromBytes_PartialTuningKeepsDefaults(t *testing.T) {
	configYAML := `
harvest:
  videos:
    max_cycles: 7
    reveal_pause: 1s
browser:
  backend: rod
  max_sessions: 2
`
	config, err := LoadFromBytes([]byte(configYAML))
	if err != nil {
		t.Fatalf("LoadFromBytes failed: %v", err)
	}

	def := harvest.DefaultTuning(harvest.KindVideo)
	got := config.Harvest.Tuning(harvest.KindVideo)
	if got.MaxCycles != 7 || got.RevealPause != time.Second {
		t.Errorf("expected overrides to apply, got %+v", got)
	}
	if got.StagnationCeiling != def.StagnationCeiling || got.LoadPause != def.LoadPause {
		t.Errorf("expected unspecified fields to keep defaults, got %+v", got)
	}
	if config.Browser.Backend != browser.BackendRod || config.Browser.MaxSessions != 2 {
		t.Errorf("unexpected browser config %+v", config.Browser)
	}
}

func TestLoadFromBytes_PartialRetryKeepsDefaults(t *testing.T) {
	configYAML := `
harvest:
  retry:
    max_retries: 3
`
	config, err := LoadFromBytes([]byte(configYAML))
	if err != nil {
		t.Fatalf("LoadFromBytes failed: %v", err)
	}

	want := herrors.RetryConfig{
		MaxRetries:    3,
		BaseDelay:     2 * time.Second,
		BackoffFactor: 2.0,
		MaxDelay:      30 * time.Second,
	}
	if diff := cmp.Diff(want, config.Harvest.Retry); diff != "" {
		t.Errorf("retry config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadFromBytes_RetryDisabled(t *testing.T) {
	configYAML := `
harvest:
  retry:
    max_retries: 0
    base_delay: 500ms
`
	config, err := LoadFromBytes([]byte(configYAML))
	if err != nil {
		t.Fatalf("LoadFromBytes failed: %v", err)
	}

	retry := config.Harvest.Retry
	if retry.MaxRetries != 0 || retry.BaseDelay != 500*time.Millisecond {
		t.Errorf("expected explicit settings kept, got %+v", retry)
	}
	if retry.BackoffFactor != 2.0 || retry.MaxDelay != 30*time.Second {
		t.Errorf("expected unspecified fields to keep defaults, got %+v", retry)
	}
}

func TestLoadFromBytes_ExpandsEnvironment(t *testing.T) {
	t.Setenv("FH_TEST_USER", "alice")
	t.Setenv("FH_TEST_PASS", "s3cret")

	config, err := LoadFromBytes([]byte(`
credentials:
  username: ${FH_TEST_USER}
  password: ${FH_TEST_PASS}
`))
	if err != nil {
		t.Fatalf("LoadFromBytes failed: %v", err)
	}

	creds := config.Credentials.Harvest()
	if creds.Username != "alice" || creds.Password != "s3cret" {
		t.Errorf("expected expanded credentials, got %+v", config.Credentials)
	}
}

func TestLoadFromBytes_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		yaml  string
		field string
	}{
		{"bad backend", "browser:\n  backend: firefox\n", "browser.backend"},
		{"bad format", "output:\n  format: pdf\n", "output.format"},
		{"database without dsn", "output:\n  format: postgres\n", "output.dsn"},
		{"bad log level", "log_level: loud\n", "log_level"},
		{"bad namespace", "metrics:\n  namespace: 9lives\n", "metrics.namespace"},
		{"bad cron", "schedules:\n  - name: a\n    cron: every minute\n    kind: videos\n    query: go\n    limit: 5\n", "schedules[0].cron"},
		{"comment without url", "schedules:\n  - name: a\n    cron: '@hourly'\n    kind: comments\n    limit: 5\n", "schedules[0].url"},
		{"search without query", "schedules:\n  - name: a\n    cron: '@hourly'\n    kind: posts\n    limit: 5\n", "schedules[0].query"},
		{"zero limit", "schedules:\n  - name: a\n    cron: '@hourly'\n    kind: videos\n    query: go\n", "schedules[0].limit"},
		{"unknown kind", "schedules:\n  - name: a\n    cron: '@hourly'\n    kind: podcasts\n    query: go\n    limit: 1\n", "schedules[0].kind"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromBytes([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), "field: "+tt.field) {
				t.Errorf("expected error to name %s, got: %v", tt.field, err)
			}
		})
	}
}

func TestLoadFromBytes_MalformedYAML(t *testing.T) {
	if _, err := LoadFromBytes([]byte("server: [unclosed")); err == nil {
		t.Error("expected parse error")
	}
}

func TestValidateWithDetails_DuplicateSchedules(t *testing.T) {
	config := Default()
	s := ScheduleConfig{Name: "dup", Cron: "*/5 * * * *", Kind: "videos", Query: "go", Limit: 3}
	config.Schedules = []ScheduleConfig{s, s}

	result := config.ValidateWithDetails()
	if result.Valid {
		t.Fatal("expected duplicate schedule names to be rejected")
	}
	if len(result.Errors) != 1 || result.Errors[0].Field != "schedules[1].name" {
		t.Errorf("unexpected errors %+v", result.Errors)
	}
	if len(GetValidationSuggestions(result)) == 0 {
		t.Error("expected suggestions")
	}
}

func TestValidateWithDetails_MissingCredentialsWarns(t *testing.T) {
	result := Default().ValidateWithDetails()
	if !result.Valid {
		t.Fatalf("expected default config to be valid: %+v", result.Errors)
	}
	if len(result.Warnings) == 0 {
		t.Error("expected a warning about missing credentials")
	}
}

func TestScheduleConfig_Target(t *testing.T) {
	target, err := ScheduleConfig{Kind: "tweets", Query: "go", Limit: 4}.Target()
	if err != nil {
		t.Fatalf("Target failed: %v", err)
	}
	if target.Kind != harvest.KindPost || target.Limit != 4 || target.Query != "go" {
		t.Errorf("unexpected target %+v", target)
	}
}

func TestCredentials_MarshalMasksSecrets(t *testing.T) {
	config := Default()
	config.Credentials = CredentialsConfig{Username: "bob", Password: "hunter2"}

	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.yaml")
	if err := SaveToFile(config, path); err != nil {
		t.Fatalf("SaveToFile failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read saved file: %v", err)
	}
	if bytes.Contains(data, []byte("hunter2")) {
		t.Error("expected literal password to be masked")
	}

	config.Credentials.Password = "${SECRET}"
	if err := SaveToFile(config, path); err != nil {
		t.Fatalf("SaveToFile failed: %v", err)
	}
	data, _ = os.ReadFile(path)
	if !bytes.Contains(data, []byte("${SECRET}")) {
		t.Error("expected env reference to be kept")
	}
}

func TestGenerateTemplate(t *testing.T) {
	t.Setenv("FEEDHARVESTER_USERNAME", "user")
	t.Setenv("FEEDHARVESTER_PASSWORD", "pass")

	data, err := GenerateTemplate()
	if err != nil {
		t.Fatalf("GenerateTemplate failed: %v", err)
	}

	config, err := LoadFromBytes(data)
	if err != nil {
		t.Fatalf("generated template should be valid: %v", err)
	}
	if len(config.Schedules) != 1 || config.Credentials.Username != "user" {
		t.Errorf("unexpected template contents %+v", config)
	}
}

func TestLoadFromFile(t *testing.T) {
	if _, err := LoadFromFile(""); err == nil {
		t.Error("expected error for empty filename")
	}
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  address: \":8080\"\n"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	config, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if config.Server.Address != ":8080" {
		t.Errorf("expected :8080, got %q", config.Server.Address)
	}
}

func TestConfigWatcher_ReloadsValidChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("log_level: info\n"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	var logs bytes.Buffer
	watcher, err := NewConfigWatcher(path, utils.NewLoggerWithWriter(&logs, utils.ErrorLevel))
	if err != nil {
		t.Fatalf("NewConfigWatcher failed: %v", err)
	}
	defer watcher.Close()

	reloaded := make(chan *Config, 4)
	watcher.OnChange(func(c *Config) {
		select {
		case reloaded <- c:
		default:
		}
	})

	if err := os.WriteFile(path, []byte("log_level: debug\n"), 0644); err != nil {
		t.Fatalf("failed to rewrite config: %v", err)
	}

	// A write can surface as several events, some seeing a truncated file.
	timeout := time.After(5 * time.Second)
	for {
		select {
		case c := <-reloaded:
			if c.LogLevel == "debug" {
				return
			}
		case <-timeout:
			t.Fatal("timed out waiting for reload")
		}
	}
}
