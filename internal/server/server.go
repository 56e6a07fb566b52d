// internal/server/server.go
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/valpere/FeedHarvester/internal/config"
	"github.com/valpere/FeedHarvester/internal/harvest"
	"github.com/valpere/FeedHarvester/internal/monitoring"
	"github.com/valpere/FeedHarvester/internal/utils"
	"github.com/valpere/FeedHarvester/pkg/types"
)

// Runner executes harvest jobs. *harvest.Harvester satisfies it.
type Runner interface {
	Harvest(ctx context.Context, target harvest.Target) *harvest.Result
	HarvestAll(ctx context.Context, searchTerm string, numPosts, numVideos int) *harvest.CompositeResult
}

// Server exposes harvest jobs over HTTP
type Server struct {
	config      config.ServerConfig
	runner      Runner
	metrics     *monitoring.MetricsManager
	metricsPath string
	health      *monitoring.HealthManager
	limiter     *utils.RateLimiter
	logger      utils.Logger
	router      *mux.Router
	httpServer  *http.Server
}

// Option configures a Server
type Option func(*Server)

// WithMetrics records request metrics and serves them at path
func WithMetrics(mm *monitoring.MetricsManager, path string) Option {
	return func(s *Server) {
		s.metrics = mm
		s.metricsPath = path
	}
}

// WithHealth serves the health report at /health
func WithHealth(hm *monitoring.HealthManager) Option {
	return func(s *Server) { s.health = hm }
}

// WithLogger sets the server's logger
func WithLogger(l utils.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a server running jobs on runner
func New(cfg config.ServerConfig, runner Runner, opts ...Option) *Server {
	s := &Server{
		config:  cfg,
		runner:  runner,
		limiter: utils.NewRateLimiter(cfg.RequestsPerSecond, cfg.Burst),
		logger:  utils.NewLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metricsPath == "" {
		s.metricsPath = "/metrics"
	}
	s.router = s.routes()
	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.instrument)

	if s.health != nil {
		r.Handle(types.EndpointHealth.String(), s.health.HealthHandler()).Methods(http.MethodGet)
	} else {
		r.HandleFunc(types.EndpointHealth.String(), func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
		}).Methods(http.MethodGet)
	}
	if s.metrics != nil {
		r.Handle(s.metricsPath, s.metrics.MetricsHandler()).Methods(http.MethodGet)
	}

	jobs := map[types.Endpoint]http.HandlerFunc{
		types.EndpointFetchTweets:   s.handleFetchPosts,
		types.EndpointFetchVideos:   s.handleFetchVideos,
		types.EndpointFetchComments: s.handleFetchComments,
		types.EndpointFetchAll:      s.handleFetchAll,
	}
	for endpoint, h := range jobs {
		r.Handle(endpoint.String(), s.rateLimit(h)).Methods(http.MethodPost)
	}

	return r
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on the configured address until Shutdown is called
func (s *Server) Start() error {
	s.logger.Infof("Listening on %s", s.config.Address)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for running jobs
func (s *Server) Shutdown(ctx context.Context) error {
	if s.config.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()
	}
	return s.httpServer.Shutdown(ctx)
}

// jobContext bounds one job by the configured timeout
func (s *Server) jobContext(r *http.Request) (context.Context, context.CancelFunc) {
	if s.config.JobTimeout > 0 {
		return context.WithTimeout(r.Context(), s.config.JobTimeout)
	}
	return context.WithCancel(r.Context())
}

// statusRecorder captures the response status for logging and metrics
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := routeName(r)
		duration := time.Since(start)
		if s.metrics != nil {
			s.metrics.RecordRequest(route, r.Method, rec.status, duration)
		}
		s.logger.WithFields(map[string]interface{}{
			"method":   r.Method,
			"route":    route,
			"status":   rec.status,
			"duration": utils.FormatDuration(duration),
		}).Debug("Request handled")
	})
}

// SetRateLimit changes the job routes' request rate and burst
func (s *Server) SetRateLimit(requestsPerSecond float64, burst int) {
	s.limiter.SetLimit(requestsPerSecond)
	s.limiter.SetBurst(burst)
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			if s.metrics != nil {
				s.metrics.RecordRateLimitHit(routeName(r))
			}
			writeError(w, http.StatusTooManyRequests, "Rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func routeName(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return r.URL.Path
}
