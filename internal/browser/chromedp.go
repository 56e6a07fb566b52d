// internal/browser/chromedp.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
)

// ChromeClient implements Session using chromedp
type ChromeClient struct {
	ctx               context.Context
	cancel            context.CancelFunc
	allocCancel       context.CancelFunc
	config            *BrowserConfig
	navigationSuccess bool
	closed            bool
	mu                sync.RWMutex
}

// NewChromeClient launches a dedicated Chrome process and opens one tab on it
func NewChromeClient(config *BrowserConfig) (*ChromeClient, error) {
	if config == nil {
		config = DefaultBrowserConfig()
	}

	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.DisableGPU,
		chromedp.NoSandbox, // Required for Docker environments
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(config.ViewportWidth, config.ViewportHeight),
	}

	if config.Headless {
		opts = append(opts, chromedp.Headless)
	}
	if config.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(config.UserDataDir))
	}
	if config.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(config.UserAgent))
	}
	if config.DisableImages {
		opts = append(opts, chromedp.Flag("blink-settings", "imagesEnabled=false"))
	}

	// The allocator lives as long as the session; cancelling it kills Chrome.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	ctx, cancel := chromedp.NewContext(allocCtx)

	client := &ChromeClient{
		ctx:         ctx,
		cancel:      cancel,
		allocCancel: allocCancel,
		config:      config,
	}

	if err := client.initialize(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to initialize browser: %w", err)
	}

	return client, nil
}

// initialize starts the browser process and applies the viewport. The
// first Run ties Chrome's lifetime to its context, so it runs on the tab
// context and startup is bounded by a watchdog instead.
func (c *ChromeClient) initialize() error {
	watchdog := time.AfterFunc(c.config.Timeout, c.cancel)
	err := chromedp.Run(c.ctx,
		chromedp.EmulateViewport(int64(c.config.ViewportWidth), int64(c.config.ViewportHeight)),
	)
	if !watchdog.Stop() {
		return fmt.Errorf("browser startup exceeded %s", c.config.Timeout)
	}
	return err
}

// run executes actions on the tab bounded by timeout and by the caller's ctx
func (c *ChromeClient) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return ErrSessionClosed
	}

	if timeout <= 0 {
		timeout = c.config.Timeout
	}
	runCtx, cancel := context.WithTimeout(c.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

// Navigate navigates to a URL and waits for the body to be ready
func (c *ChromeClient) Navigate(ctx context.Context, url string) error {
	err := c.run(ctx, c.config.Timeout,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.navigationSuccess = err == nil
	if err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	return nil
}

// GetHTML returns the current page HTML
func (c *ChromeClient) GetHTML(ctx context.Context) (string, error) {
	c.mu.RLock()
	navSuccess := c.navigationSuccess
	c.mu.RUnlock()

	if !navSuccess {
		return "", fmt.Errorf("cannot extract HTML: navigation has not completed successfully")
	}

	var html string
	if err := c.run(ctx, c.config.CallTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("failed to get HTML: %w", err)
	}
	return html, nil
}

// QueryAll snapshots the DOM and returns the elements matching selector
func (c *ChromeClient) QueryAll(ctx context.Context, selector string) ([]Node, error) {
	html, err := c.GetHTML(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := ParseDocument(html)
	if err != nil {
		return nil, err
	}
	return doc.QueryAll(selector), nil
}

// WaitForElement waits until an element matching selector is present
func (c *ChromeClient) WaitForElement(ctx context.Context, selector string, timeout time.Duration) error {
	if err := c.run(ctx, timeout, chromedp.WaitReady(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("element wait timeout: %w", err)
	}
	return nil
}

// ExecuteScript runs JavaScript code
func (c *ChromeClient) ExecuteScript(ctx context.Context, script string) (interface{}, error) {
	var result interface{}
	err := c.run(ctx, c.config.CallTimeout, chromedp.Evaluate(script, &result))
	if errors.Is(err, chromedp.ErrJSUndefined) || errors.Is(err, chromedp.ErrJSNull) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("script execution failed: %w", err)
	}
	return result, nil
}

// SubmitInput types value into the matching input and presses Enter
func (c *ChromeClient) SubmitInput(ctx context.Context, selector, value string) error {
	err := c.run(ctx, c.config.CallTimeout,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, value+kb.Enter, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("input %s failed: %w", selector, err)
	}
	return nil
}

// Close shuts the tab and the Chrome process down. It is safe to call twice.
func (c *ChromeClient) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	var err error
	if c.ctx != nil {
		err = chromedp.Cancel(c.ctx)
	}
	if c.cancel != nil {
		c.cancel()
	}
	if c.allocCancel != nil {
		c.allocCancel()
	}
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	return err
}
