// internal/scheduler/scheduler.go
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/valpere/FeedHarvester/internal/config"
	"github.com/valpere/FeedHarvester/internal/harvest"
	"github.com/valpere/FeedHarvester/internal/output"
	"github.com/valpere/FeedHarvester/internal/utils"
)

// Runner executes a single harvest job
type Runner interface {
	Harvest(ctx context.Context, target harvest.Target) *harvest.Result
}

// Sink stores one batch of records. *output.Manager satisfies it.
type Sink interface {
	Write(ctx context.Context, kind harvest.Kind, records []harvest.Record) error
}

// Entry describes a registered schedule
type Entry struct {
	Name string
	Cron string
	Next time.Time
	Prev time.Time
}

type job struct {
	config config.ScheduleConfig
	target harvest.Target
	sink   Sink
	id     cron.EntryID
}

// Scheduler runs configured harvests on cron expressions and writes
// their records to the global or per-schedule output
type Scheduler struct {
	cron       *cron.Cron
	runner     Runner
	sink       Sink
	recorder   output.Recorder
	logger     utils.Logger
	jobTimeout time.Duration
	location   *time.Location

	mu         sync.Mutex
	jobs       map[string]*job
	runCtx     context.Context
	cancelRuns context.CancelFunc
}

// outputTimeout bounds writing a run's records once its harvest is over
const outputTimeout = 30 * time.Second

// Option configures a Scheduler
type Option func(*Scheduler)

// WithLogger sets the scheduler's logger
func WithLogger(l utils.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithJobTimeout bounds each scheduled run
func WithJobTimeout(d time.Duration) Option {
	return func(s *Scheduler) { s.jobTimeout = d }
}

// WithRecorder attaches output metrics to per-schedule sinks
func WithRecorder(r output.Recorder) Option {
	return func(s *Scheduler) { s.recorder = r }
}

// WithLocation sets the time zone cron expressions are evaluated in
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		if loc != nil {
			s.location = loc
		}
	}
}

// New creates a scheduler. sink receives records for schedules without
// their own output.
func New(runner Runner, sink Sink, opts ...Option) *Scheduler {
	s := &Scheduler{
		runner:   runner,
		sink:     sink,
		logger:   utils.NewLogger(),
		location: time.Local,
		jobs:     make(map[string]*job),
	}
	s.runCtx, s.cancelRuns = context.WithCancel(context.Background())
	for _, opt := range opts {
		opt(s)
	}

	clog := cronLogger{s.logger}
	s.cron = cron.New(
		cron.WithLocation(s.location),
		cron.WithParser(cron.NewParser(cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow|cron.Descriptor)),
		cron.WithLogger(clog),
		cron.WithChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)),
	)
	return s
}

// Add registers a schedule, replacing any schedule with the same name
func (s *Scheduler) Add(sc config.ScheduleConfig) error {
	target, err := sc.Target()
	if err != nil {
		return fmt.Errorf("schedule %q: %w", sc.Name, err)
	}

	sink := s.sink
	if sc.Output != nil {
		opts := []output.ManagerOption{output.WithLogger(s.logger)}
		if s.recorder != nil {
			opts = append(opts, output.WithRecorder(s.recorder))
		}
		m, err := output.NewManager(*sc.Output, opts...)
		if err != nil {
			return fmt.Errorf("schedule %q: %w", sc.Name, err)
		}
		sink = m
	}
	if sink == nil {
		return fmt.Errorf("schedule %q: no output configured", sc.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.jobs[sc.Name]; ok {
		s.cron.Remove(old.id)
		delete(s.jobs, sc.Name)
	}

	j := &job{config: sc, target: target, sink: sink}
	id, err := s.cron.AddFunc(sc.Cron, func() {
		if err := s.run(s.baseContext(), j); err != nil {
			s.logger.WithField("schedule", j.config.Name).Errorf("Scheduled harvest failed: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule %q: invalid cron expression: %w", sc.Name, err)
	}
	j.id = id
	s.jobs[sc.Name] = j

	s.logger.WithFields(map[string]interface{}{
		"schedule": sc.Name,
		"cron":     sc.Cron,
		"kind":     target.Kind,
	}).Info("Harvest scheduled")
	return nil
}

// Load replaces every registered schedule with schedules
func (s *Scheduler) Load(schedules []config.ScheduleConfig) error {
	s.mu.Lock()
	for name, j := range s.jobs {
		s.cron.Remove(j.id)
		delete(s.jobs, name)
	}
	s.mu.Unlock()

	for _, sc := range schedules {
		if err := s.Add(sc); err != nil {
			return err
		}
	}
	return nil
}

// Remove unregisters a schedule by name
func (s *Scheduler) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[name]
	if !ok {
		return false
	}
	s.cron.Remove(j.id)
	delete(s.jobs, name)
	return true
}

// RunNow runs a registered schedule immediately, outside its cron timing
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	j, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("schedule %q not found", name)
	}
	return s.run(ctx, j)
}

// run harvests one schedule and writes whatever was collected. A job
// error is returned after the partial records are stored.
func (s *Scheduler) run(ctx context.Context, j *job) error {
	if s.jobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.jobTimeout)
		defer cancel()
	}

	log := s.logger.WithField("schedule", j.config.Name)
	log.Infof("Running scheduled %s harvest", j.target.Kind)

	res := s.runner.Harvest(ctx, j.target)
	if len(res.Records) > 0 {
		// Partial records of a cancelled run are still stored
		writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), outputTimeout)
		defer cancel()
		if err := j.sink.Write(writeCtx, res.Kind, res.Records); err != nil {
			return fmt.Errorf("output: %w", err)
		}
	} else {
		log.Warn("Harvest produced no records")
	}

	if res.Err != nil {
		return res.Err
	}
	log.Infof("Harvested %d records in %s", len(res.Records), utils.FormatDuration(res.Duration))
	return nil
}

// Entries lists registered schedules sorted by name
func (s *Scheduler) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Entry, 0, len(s.jobs))
	for name, j := range s.jobs {
		e := s.cron.Entry(j.id)
		out = append(out, Entry{Name: name, Cron: j.config.Cron, Next: e.Next, Prev: e.Prev})
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Name < out[b].Name })
	return out
}

// Start begins running schedules in the background
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.runCtx.Err() != nil {
		s.runCtx, s.cancelRuns = context.WithCancel(context.Background())
	}
	s.mu.Unlock()
	s.cron.Start()
}

// Stop halts the scheduler and cancels running harvests. The returned
// context is done once they have stored their records and returned.
func (s *Scheduler) Stop() context.Context {
	s.mu.Lock()
	s.cancelRuns()
	s.mu.Unlock()
	return s.cron.Stop()
}

// baseContext is the parent of every cron-triggered run
func (s *Scheduler) baseContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runCtx
}

// cronLogger adapts utils.Logger to cron's logging interface
type cronLogger struct {
	logger utils.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.WithFields(fields(keysAndValues)).Debug("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.WithFields(fields(keysAndValues)).Errorf("cron: %s: %v", msg, err)
}

func fields(keysAndValues []interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		out[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return out
}
