// internal/browser/rod.go
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// RodClient implements Session on top of go-rod. It launches its own
// Chrome process so sessions never share a browser.
type RodClient struct {
	browser  *rod.Browser
	page     *rod.Page
	launcher *launcher.Launcher
	config   *BrowserConfig
	closed   bool
	mu       sync.Mutex
}

// NewRodClient launches Chrome through the rod launcher and opens a blank tab
func NewRodClient(config *BrowserConfig) (*RodClient, error) {
	if config == nil {
		config = DefaultBrowserConfig()
	}

	l := launcher.New().
		Headless(config.Headless).
		NoSandbox(true).
		Set("disable-dev-shm-usage")
	if config.UserDataDir != "" {
		l = l.UserDataDir(config.UserDataDir)
	}
	if config.DisableImages {
		l = l.Set("blink-settings", "imagesEnabled=false")
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		l.Cleanup()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	page, err := b.Page(proto.TargetCreateTarget{URL: ""})
	if err != nil {
		b.Close()
		l.Cleanup()
		return nil, fmt.Errorf("failed to open tab: %w", err)
	}

	client := &RodClient{browser: b, page: page, launcher: l, config: config}
	if err := client.initialize(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to initialize browser: %w", err)
	}
	return client, nil
}

func (c *RodClient) initialize() error {
	if c.config.UserAgent != "" {
		if err := c.page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: c.config.UserAgent}); err != nil {
			return err
		}
	}
	return c.page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             c.config.ViewportWidth,
		Height:            c.config.ViewportHeight,
		DeviceScaleFactor: 1,
	})
}

// tab returns the page bound to ctx and timeout, or ErrSessionClosed
func (c *RodClient) tab(ctx context.Context, timeout time.Duration) (*rod.Page, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrSessionClosed
	}
	if timeout <= 0 {
		timeout = c.config.Timeout
	}
	return c.page.Context(ctx).Timeout(timeout), nil
}

// Navigate loads url and waits for the load event
func (c *RodClient) Navigate(ctx context.Context, url string) error {
	p, err := c.tab(ctx, c.config.Timeout)
	if err != nil {
		return err
	}
	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	if err := p.WaitLoad(); err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	return nil
}

// QueryAll snapshots the DOM and returns the elements matching selector
func (c *RodClient) QueryAll(ctx context.Context, selector string) ([]Node, error) {
	p, err := c.tab(ctx, c.config.CallTimeout)
	if err != nil {
		return nil, err
	}
	html, err := p.HTML()
	if err != nil {
		return nil, fmt.Errorf("failed to get HTML: %w", err)
	}
	doc, err := ParseDocument(html)
	if err != nil {
		return nil, err
	}
	return doc.QueryAll(selector), nil
}

// WaitForElement waits until selector is present in the DOM
func (c *RodClient) WaitForElement(ctx context.Context, selector string, timeout time.Duration) error {
	p, err := c.tab(ctx, timeout)
	if err != nil {
		return err
	}
	if _, err := p.Element(selector); err != nil {
		return fmt.Errorf("element wait timeout: %w", err)
	}
	return nil
}

// ExecuteScript evaluates a JavaScript expression
func (c *RodClient) ExecuteScript(ctx context.Context, script string) (interface{}, error) {
	p, err := c.tab(ctx, c.config.CallTimeout)
	if err != nil {
		return nil, err
	}
	res, err := p.Eval(`() => (` + script + `)`)
	if err != nil {
		return nil, fmt.Errorf("script execution failed: %w", err)
	}
	return res.Value.Val(), nil
}

// SubmitInput types value into the matching input and presses Enter
func (c *RodClient) SubmitInput(ctx context.Context, selector, value string) error {
	p, err := c.tab(ctx, c.config.CallTimeout)
	if err != nil {
		return err
	}
	el, err := p.Element(selector)
	if err != nil {
		return fmt.Errorf("input %s not found: %w", selector, err)
	}
	if err := el.Input(value); err != nil {
		return fmt.Errorf("input %s failed: %w", selector, err)
	}
	return el.Type(input.Enter)
}

// Close closes the tab, the browser and the launched process
func (c *RodClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	if c.page != nil {
		c.page.Close()
	}
	var err error
	if c.browser != nil {
		err = c.browser.Close()
	}
	if c.launcher != nil {
		c.launcher.Cleanup()
	}
	return err
}
