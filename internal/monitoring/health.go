// internal/monitoring/health.go
package monitoring

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"sync"
	"time"
)

// HealthStatus represents the health status of a component
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnknown   HealthStatus = "unknown"
)

// HealthCheck represents a single health check
type HealthCheck struct {
	Name      string                                      `json:"name"`
	Status    HealthStatus                                `json:"status"`
	Message   string                                      `json:"message,omitempty"`
	Error     string                                      `json:"error,omitempty"`
	LastCheck time.Time                                   `json:"last_check"`
	Duration  time.Duration                               `json:"duration"`
	Metadata  map[string]interface{}                      `json:"metadata,omitempty"`
	CheckFunc func(ctx context.Context) HealthCheckResult `json:"-"`
	Timeout   time.Duration                               `json:"-"`
	Critical  bool                                        `json:"critical"`
}

// HealthCheckResult represents the result of a health check
type HealthCheckResult struct {
	Status   HealthStatus
	Message  string
	Error    error
	Metadata map[string]interface{}
}

// HealthConfig configuration for health monitoring
type HealthConfig struct {
	CheckInterval  time.Duration `json:"check_interval"`
	DefaultTimeout time.Duration `json:"default_timeout"`
	Version        string        `json:"version"`
}

// SystemHealth represents overall system health information
type SystemHealth struct {
	Status     HealthStatus           `json:"status"`
	Timestamp  time.Time              `json:"timestamp"`
	Version    string                 `json:"version,omitempty"`
	Uptime     string                 `json:"uptime"`
	Goroutines int                    `json:"goroutines"`
	Checks     map[string]HealthCheck `json:"checks,omitempty"`
}

// HealthManager runs registered checks periodically and serves the
// aggregated status
type HealthManager struct {
	checks map[string]*HealthCheck
	mu     sync.RWMutex
	config HealthConfig
	start  time.Time
	stopCh chan struct{}
	once   sync.Once
}

// NewHealthManager creates a new health manager
func NewHealthManager(config HealthConfig) *HealthManager {
	if config.CheckInterval == 0 {
		config.CheckInterval = 30 * time.Second
	}
	if config.DefaultTimeout == 0 {
		config.DefaultTimeout = 5 * time.Second
	}

	return &HealthManager{
		checks: make(map[string]*HealthCheck),
		config: config,
		start:  time.Now(),
		stopCh: make(chan struct{}),
	}
}

// RegisterCheck registers a new health check
func (hm *HealthManager) RegisterCheck(check *HealthCheck) {
	if check.Timeout == 0 {
		check.Timeout = hm.config.DefaultTimeout
	}
	check.Status = HealthStatusUnknown

	hm.mu.Lock()
	hm.checks[check.Name] = check
	hm.mu.Unlock()
}

// Start runs all checks now and then on every interval until Stop or ctx ends
func (hm *HealthManager) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(hm.config.CheckInterval)
		defer ticker.Stop()

		hm.RunChecks(ctx)
		for {
			select {
			case <-ticker.C:
				hm.RunChecks(ctx)
			case <-hm.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the health monitoring
func (hm *HealthManager) Stop() {
	hm.once.Do(func() { close(hm.stopCh) })
}

// RunChecks runs every registered check concurrently and waits for them
func (hm *HealthManager) RunChecks(ctx context.Context) {
	hm.mu.RLock()
	checks := make([]*HealthCheck, 0, len(hm.checks))
	for _, check := range hm.checks {
		checks = append(checks, check)
	}
	hm.mu.RUnlock()

	var wg sync.WaitGroup
	for _, check := range checks {
		wg.Add(1)
		go func(c *HealthCheck) {
			defer wg.Done()
			hm.runCheck(ctx, c)
		}(check)
	}
	wg.Wait()
}

// runCheck runs a single health check
func (hm *HealthManager) runCheck(ctx context.Context, check *HealthCheck) {
	start := time.Now()

	checkCtx, cancel := context.WithTimeout(ctx, check.Timeout)
	defer cancel()

	result := HealthCheckResult{Status: HealthStatusUnknown, Message: "No check function defined"}
	if check.CheckFunc != nil {
		result = check.CheckFunc(checkCtx)
	}

	hm.mu.Lock()
	defer hm.mu.Unlock()
	check.LastCheck = start
	check.Duration = time.Since(start)
	check.Status = result.Status
	check.Message = result.Message
	check.Metadata = result.Metadata
	check.Error = ""
	if result.Error != nil {
		check.Error = result.Error.Error()
	}
}

// GetHealth returns the overall health status. A failing critical check
// makes the service unhealthy; any other failure degrades it.
func (hm *HealthManager) GetHealth() SystemHealth {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	health := SystemHealth{
		Status:     HealthStatusHealthy,
		Timestamp:  time.Now(),
		Version:    hm.config.Version,
		Uptime:     time.Since(hm.start).Round(time.Second).String(),
		Goroutines: runtime.NumGoroutine(),
		Checks:     make(map[string]HealthCheck, len(hm.checks)),
	}

	for name, check := range hm.checks {
		health.Checks[name] = *check

		switch check.Status {
		case HealthStatusHealthy:
		case HealthStatusUnhealthy:
			if check.Critical {
				health.Status = HealthStatusUnhealthy
			} else if health.Status == HealthStatusHealthy {
				health.Status = HealthStatusDegraded
			}
		default:
			if health.Status == HealthStatusHealthy {
				health.Status = HealthStatusDegraded
			}
		}
	}

	return health
}

// HealthHandler returns the HTTP handler for the health endpoint
func (hm *HealthManager) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := hm.GetHealth()

		w.Header().Set("Content-Type", "application/json")
		if health.Status == HealthStatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}

		json.NewEncoder(w).Encode(health)
	}
}

// SessionSource reports browser session capacity
type SessionSource interface {
	Active() int
	MaxSize() int
	Closed() bool
}

// SessionHealthCheck reports the browser launcher's capacity. A closed
// launcher is unhealthy; a saturated one is degraded.
func SessionHealthCheck(source SessionSource) *HealthCheck {
	return &HealthCheck{
		Name:     "browser_sessions",
		Critical: true,
		CheckFunc: func(ctx context.Context) HealthCheckResult {
			active, max := source.Active(), source.MaxSize()
			metadata := map[string]interface{}{
				"active_sessions": active,
				"max_sessions":    max,
			}

			switch {
			case source.Closed():
				return HealthCheckResult{
					Status:   HealthStatusUnhealthy,
					Message:  "Session launcher is closed",
					Metadata: metadata,
				}
			case active >= max:
				return HealthCheckResult{
					Status:   HealthStatusDegraded,
					Message:  fmt.Sprintf("All %d browser sessions in use", max),
					Metadata: metadata,
				}
			}
			return HealthCheckResult{
				Status:   HealthStatusHealthy,
				Message:  fmt.Sprintf("%d of %d browser sessions in use", active, max),
				Metadata: metadata,
			}
		},
	}
}

// DatabaseHealthCheck creates a database connectivity health check
func DatabaseHealthCheck(name string, ping func(ctx context.Context) error) *HealthCheck {
	return &HealthCheck{
		Name:     name,
		Critical: false,
		CheckFunc: func(ctx context.Context) HealthCheckResult {
			if err := ping(ctx); err != nil {
				return HealthCheckResult{
					Status:  HealthStatusUnhealthy,
					Message: "Database connection failed",
					Error:   err,
				}
			}
			return HealthCheckResult{
				Status:  HealthStatusHealthy,
				Message: "Database connection successful",
			}
		},
	}
}

// GoroutineHealthCheck creates a goroutine count health check
func GoroutineHealthCheck(maxGoroutines int) *HealthCheck {
	return &HealthCheck{
		Name: "goroutines",
		CheckFunc: func(ctx context.Context) HealthCheckResult {
			count := runtime.NumGoroutine()
			metadata := map[string]interface{}{
				"goroutine_count": count,
				"max_allowed":     maxGoroutines,
			}

			if count > maxGoroutines {
				return HealthCheckResult{
					Status:   HealthStatusDegraded,
					Message:  fmt.Sprintf("High goroutine count: %d", count),
					Metadata: metadata,
				}
			}
			return HealthCheckResult{
				Status:   HealthStatusHealthy,
				Message:  fmt.Sprintf("Goroutine count normal: %d", count),
				Metadata: metadata,
			}
		},
	}
}
