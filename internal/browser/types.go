// internal/browser/types.go
package browser

import (
	"context"
	"errors"
	"time"
)

// Supported rendering backends
const (
	BackendChromedp = "chromedp"
	BackendRod      = "rod"
)

// ErrSessionClosed is returned by every Session call made after Close.
var ErrSessionClosed = errors.New("browser session is closed")

// BrowserConfig defines browser automation configuration
type BrowserConfig struct {
	Backend        string        `yaml:"backend" json:"backend"`
	Headless       bool          `yaml:"headless" json:"headless"`
	UserDataDir    string        `yaml:"user_data_dir,omitempty" json:"user_data_dir,omitempty"`
	Timeout        time.Duration `yaml:"timeout" json:"timeout"`
	CallTimeout    time.Duration `yaml:"call_timeout" json:"call_timeout"`
	ViewportWidth  int           `yaml:"viewport_width" json:"viewport_width"`
	ViewportHeight int           `yaml:"viewport_height" json:"viewport_height"`
	UserAgent      string        `yaml:"user_agent,omitempty" json:"user_agent,omitempty"`
	DisableImages  bool          `yaml:"disable_images" json:"disable_images"`
	MaxSessions    int           `yaml:"max_sessions" json:"max_sessions"`
}

// DefaultBrowserConfig returns default browser configuration
func DefaultBrowserConfig() *BrowserConfig {
	return &BrowserConfig{
		Backend:        BackendChromedp,
		Headless:       true,
		Timeout:        30 * time.Second,
		CallTimeout:    10 * time.Second,
		ViewportWidth:  1920,
		ViewportHeight: 1080,
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		DisableImages:  false, // thumbnails are harvested from img src
		MaxSessions:    4,
	}
}

// Node is a read-only handle to one element of the rendered document.
// Handles come from a snapshot taken at query time and never change
// under the caller.
type Node interface {
	// Find returns the first descendant matching selector.
	Find(selector string) (Node, bool)

	// FindAll returns every descendant matching selector in document order.
	FindAll(selector string) []Node

	// Attr reads an attribute of the node itself.
	Attr(name string) (string, bool)

	// Text returns the node's text content, whitespace-trimmed.
	Text() string
}

// Session is the capability set the harvester consumes from a rendering
// client. One session belongs to exactly one harvest job.
type Session interface {
	// Navigate loads a URL and waits for the document body
	Navigate(ctx context.Context, url string) error

	// QueryAll returns every element currently rendered that matches selector
	QueryAll(ctx context.Context, selector string) ([]Node, error)

	// WaitForElement blocks until selector is present or timeout elapses
	WaitForElement(ctx context.Context, selector string, timeout time.Duration) error

	// ExecuteScript evaluates a JavaScript expression and returns its value
	ExecuteScript(ctx context.Context, script string) (interface{}, error)

	// SubmitInput types value into the input matching selector and presses Enter
	SubmitInput(ctx context.Context, selector, value string) error

	// Close tears the session down
	Close() error
}

// Opener creates fresh sessions.
type Opener interface {
	NewSession(ctx context.Context) (Session, error)
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(ctx context.Context) (Session, error)

// NewSession calls f(ctx).
func (f OpenerFunc) NewSession(ctx context.Context) (Session, error) {
	return f(ctx)
}
