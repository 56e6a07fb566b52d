// pkg/api/api.go
package api

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/valpere/FeedHarvester/internal/browser"
	"github.com/valpere/FeedHarvester/internal/config"
	herrors "github.com/valpere/FeedHarvester/internal/errors"
	"github.com/valpere/FeedHarvester/internal/harvest"
	"github.com/valpere/FeedHarvester/internal/monitoring"
	"github.com/valpere/FeedHarvester/internal/output"
	"github.com/valpere/FeedHarvester/internal/scheduler"
	"github.com/valpere/FeedHarvester/internal/server"
	"github.com/valpere/FeedHarvester/internal/utils"
)

// Re-export types from internal packages for public API
type (
	Config          = config.Config
	Kind            = harvest.Kind
	Target          = harvest.Target
	Result          = harvest.Result
	CompositeResult = harvest.CompositeResult
	Record          = harvest.Record
	Post            = harvest.Post
	Video           = harvest.Video
	Comment         = harvest.Comment
	Event           = harvest.Event
	Observer        = harvest.Observer
	ObserverFunc    = harvest.ObserverFunc
	Opener          = browser.Opener
	Session         = browser.Session
	Logger          = utils.Logger
)

const (
	KindPost    = harvest.KindPost
	KindVideo   = harvest.KindVideo
	KindComment = harvest.KindComment
)

// Version is reported by the health endpoint
var Version = "dev"

// LoadConfig reads and validates a configuration file
func LoadConfig(path string) (*Config, error) {
	return config.LoadFromFile(path)
}

// Service wires a harvester to its browser, output, metrics and health
// checks from one configuration
type Service struct {
	config    *config.Config
	logger    utils.Logger
	launcher  *browser.Launcher
	harvester *harvest.Harvester
	output    *output.Manager
	metrics   *monitoring.MetricsManager
	health    *monitoring.HealthManager
	observers harvest.Observers
	opener    browser.Opener
	watcher   *config.ConfigWatcher

	mu     sync.Mutex
	server *server.Server
}

// Option configures a Service
type Option func(*Service)

// WithLogger replaces the logger built from log_level
func WithLogger(l Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithOpener supplies sessions instead of launching the configured browser
func WithOpener(o Opener) Option {
	return func(s *Service) { s.opener = o }
}

// WithObserver receives every harvest event alongside logging and metrics
func WithObserver(o Observer) Option {
	return func(s *Service) {
		if o != nil {
			s.observers = append(s.observers, o)
		}
	}
}

// New builds a service from a validated configuration
func New(cfg *Config, opts ...Option) (*Service, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	level, err := utils.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	s := &Service{
		config: cfg,
		logger: utils.NewLoggerWithLevel(level),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.opener == nil {
		browserCfg := cfg.Browser
		launcher, err := browser.NewLauncher(&browserCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create browser launcher: %w", err)
		}
		s.launcher = launcher
		s.opener = launcher
	}

	s.observers = append(harvest.Observers{harvest.NewLogObserver(s.logger)}, s.observers...)
	if cfg.Metrics.Enabled {
		s.metrics = monitoring.NewMetricsManager(monitoring.MetricsConfig{
			Namespace:       cfg.Metrics.Namespace,
			EnableGoMetrics: true,
		})
		s.observers = append(s.observers, s.metrics)
	}

	hopts := []harvest.Option{
		harvest.WithCredentials(cfg.Credentials.Harvest()),
		harvest.WithObserver(s.observers),
		harvest.WithRetry(herrors.NewService().WithRetryConfig(cfg.Harvest.Retry)),
	}
	for _, kind := range []harvest.Kind{harvest.KindPost, harvest.KindVideo, harvest.KindComment} {
		hopts = append(hopts, harvest.WithTuning(kind, cfg.Harvest.Tuning(kind)))
	}
	s.harvester = harvest.NewHarvester(s.opener, hopts...)

	mopts := []output.ManagerOption{output.WithLogger(s.logger)}
	if s.metrics != nil {
		mopts = append(mopts, output.WithRecorder(s.metrics))
	}
	s.output, err = output.NewManager(cfg.Output, mopts...)
	if err != nil {
		return nil, err
	}

	s.health = monitoring.NewHealthManager(monitoring.HealthConfig{Version: Version})
	if s.launcher != nil {
		s.health.RegisterCheck(monitoring.SessionHealthCheck(s.launcher))
	}
	if s.output.IsDatabase() {
		s.health.RegisterCheck(monitoring.DatabaseHealthCheck(string(s.output.Format()), s.output.Ping))
	}
	s.health.RegisterCheck(monitoring.GoroutineHealthCheck(1000 + 100*runtime.NumCPU()))

	return s, nil
}

// NewFromFile loads path and builds a service from it
func NewFromFile(path string, opts ...Option) (*Service, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return New(cfg, opts...)
}

// Config returns the service configuration
func (s *Service) Config() *Config {
	return s.config
}

// Logger returns the service logger
func (s *Service) Logger() Logger {
	return s.logger
}

// Harvester returns the underlying harvester
func (s *Service) Harvester() *harvest.Harvester {
	return s.harvester
}

// Metrics returns the metrics manager, or nil when metrics are disabled
func (s *Service) Metrics() *monitoring.MetricsManager {
	return s.metrics
}

// Health returns the health manager
func (s *Service) Health() *monitoring.HealthManager {
	return s.health
}

// Harvest runs one job
func (s *Service) Harvest(ctx context.Context, target Target) *Result {
	return s.harvester.Harvest(ctx, target)
}

// HarvestAll runs the posts and videos jobs for one search term
func (s *Service) HarvestAll(ctx context.Context, searchTerm string, numPosts, numVideos int) *CompositeResult {
	return s.harvester.HarvestAll(ctx, searchTerm, numPosts, numVideos)
}

// Save writes a result's records to the configured output
func (s *Service) Save(ctx context.Context, res *Result) error {
	return s.output.WriteResult(ctx, res)
}

// OutputPath returns where records of kind are written for file formats
func (s *Service) OutputPath(kind Kind) string {
	return s.output.ResolvePath(kind)
}

// HarvestAndSave runs one job and writes whatever it collected. The job
// error takes precedence over an output error.
func (s *Service) HarvestAndSave(ctx context.Context, target Target) (*Result, error) {
	res := s.Harvest(ctx, target)
	var saveErr error
	if len(res.Records) > 0 {
		saveErr = s.Save(ctx, res)
	}
	if res.Err != nil {
		return res, res.Err
	}
	if saveErr != nil {
		return res, fmt.Errorf("output: %w", saveErr)
	}
	return res, nil
}

// NewServer builds the HTTP job surface backed by this service
func (s *Service) NewServer() *server.Server {
	opts := []server.Option{
		server.WithLogger(s.logger),
		server.WithHealth(s.health),
	}
	if s.metrics != nil {
		opts = append(opts, server.WithMetrics(s.metrics, s.config.Metrics.Path))
	}
	return server.New(s.config.Server, s.harvester, opts...)
}

// NewScheduler builds a scheduler loaded with the configured schedules
func (s *Service) NewScheduler() (*scheduler.Scheduler, error) {
	opts := []scheduler.Option{
		scheduler.WithLogger(s.logger),
		scheduler.WithJobTimeout(s.config.Server.JobTimeout),
	}
	if s.metrics != nil {
		opts = append(opts, scheduler.WithRecorder(s.metrics))
	}
	sched := scheduler.New(s.harvester, s.output, opts...)
	if err := sched.Load(s.config.Schedules); err != nil {
		return nil, err
	}
	return sched, nil
}

// Watch reloads harvest pacing and the server rate limit whenever the
// config file at path changes
func (s *Service) Watch(path string) error {
	if s.watcher != nil {
		return fmt.Errorf("already watching %s", path)
	}
	w, err := config.NewConfigWatcher(path, s.logger)
	if err != nil {
		return err
	}
	w.OnChange(s.applyTuning)
	s.watcher = w
	return nil
}

func (s *Service) applyTuning(cfg *config.Config) {
	for _, kind := range []harvest.Kind{harvest.KindPost, harvest.KindVideo, harvest.KindComment} {
		s.harvester.SetTuning(kind, cfg.Harvest.Tuning(kind))
	}
	s.mu.Lock()
	if s.server != nil {
		s.server.SetRateLimit(cfg.Server.RequestsPerSecond, cfg.Server.Burst)
	}
	s.mu.Unlock()
	s.logger.Info("Harvest tuning reloaded")
}

// Serve runs the HTTP server, the scheduler and periodic health checks
// until ctx is cancelled
func (s *Service) Serve(ctx context.Context) error {
	srv := s.NewServer()
	sched, err := s.NewScheduler()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.server = srv
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.server = nil
		s.mu.Unlock()
	}()

	s.health.Start(ctx)
	defer s.health.Stop()
	sched.Start()
	defer func() { <-sched.Stop().Done() }()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down")
	if err := srv.Shutdown(context.Background()); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return <-errCh
}

// Close stops the watcher and the browser launcher
func (s *Service) Close() error {
	var errs []error
	if s.watcher != nil {
		errs = append(errs, s.watcher.Close())
		s.watcher = nil
	}
	if s.launcher != nil {
		errs = append(errs, s.launcher.Close())
	}
	return errors.Join(errs...)
}
