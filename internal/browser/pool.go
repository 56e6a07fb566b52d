// internal/browser/pool.go
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// acquireTimeout bounds how long NewSession waits for a free slot
const acquireTimeout = 30 * time.Second

// Launcher hands out fresh sessions while capping how many are alive at
// once. Sessions are never reused: Close on a session tears its browser
// down and frees the slot.
type Launcher struct {
	config  *BrowserConfig
	open    func(*BrowserConfig) (Session, error)
	slots   chan struct{}
	maxSize int
	active  int
	mu      sync.RWMutex
	closed  bool
}

// NewLauncher creates a launcher for the configured backend
func NewLauncher(config *BrowserConfig) (*Launcher, error) {
	if config == nil {
		config = DefaultBrowserConfig()
	}

	open, err := backendOpener(config.Backend)
	if err != nil {
		return nil, err
	}
	return newLauncher(config, open), nil
}

func newLauncher(config *BrowserConfig, open func(*BrowserConfig) (Session, error)) *Launcher {
	maxSize := config.MaxSessions
	if maxSize <= 0 {
		maxSize = 4
	}
	return &Launcher{
		config:  config,
		open:    open,
		slots:   make(chan struct{}, maxSize),
		maxSize: maxSize,
	}
}

func backendOpener(backend string) (func(*BrowserConfig) (Session, error), error) {
	switch backend {
	case "", BackendChromedp:
		return func(c *BrowserConfig) (Session, error) { return NewChromeClient(c) }, nil
	case BackendRod:
		return func(c *BrowserConfig) (Session, error) { return NewRodClient(c) }, nil
	default:
		return nil, fmt.Errorf("unsupported browser backend: %s", backend)
	}
}

// NewSession waits for a free slot and launches a new browser session
func (l *Launcher) NewSession(ctx context.Context) (Session, error) {
	l.mu.RLock()
	if l.closed {
		l.mu.RUnlock()
		return nil, fmt.Errorf("launcher is closed")
	}
	l.mu.RUnlock()

	select {
	case l.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(acquireTimeout):
		return nil, fmt.Errorf("timeout waiting for available browser slot")
	}

	session, err := l.open(l.config)
	if err != nil {
		<-l.slots
		return nil, fmt.Errorf("failed to create browser: %w", err)
	}

	l.mu.Lock()
	l.active++
	l.mu.Unlock()

	return &slotSession{Session: session, release: l.release}, nil
}

func (l *Launcher) release() {
	l.mu.Lock()
	l.active--
	l.mu.Unlock()
	<-l.slots
}

// Active returns the number of live sessions
func (l *Launcher) Active() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active
}

// MaxSize returns the session cap
func (l *Launcher) MaxSize() int {
	return l.maxSize
}

// Closed reports whether Close has been called
func (l *Launcher) Closed() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.closed
}

// Close stops handing out sessions. Live sessions stay owned by their jobs.
func (l *Launcher) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

// slotSession frees its launcher slot exactly once on Close
type slotSession struct {
	Session
	release func()
	once    sync.Once
}

func (s *slotSession) Close() error {
	var err error
	s.once.Do(func() {
		err = s.Session.Close()
		s.release()
	})
	return err
}
