// internal/harvest/job.go
package harvest

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/valpere/FeedHarvester/internal/browser"
	herrors "github.com/valpere/FeedHarvester/internal/errors"
)

// Sign-in and warm-up pacing
const (
	signInFormWait   = 10 * time.Second
	signInPageSettle = 3 * time.Second
	signInStepSettle = 2 * time.Second
	signInDoneSettle = 5 * time.Second
	videoFirstWait   = 15 * time.Second
	warmupPause      = 3 * time.Second
)

// Credentials for the gated post surface
type Credentials struct {
	Username string `yaml:"username" json:"-"`
	Password string `yaml:"password" json:"-"`
}

// Empty reports whether either half is missing
func (c Credentials) Empty() bool {
	return c.Username == "" || c.Password == ""
}

// Target binds a job to what it harvests. Query is the search term for
// posts and videos; URL is the video whose comments are read.
type Target struct {
	Kind  Kind   `json:"kind"`
	Query string `json:"query,omitempty"`
	URL   string `json:"url,omitempty"`
	Limit int    `json:"limit"`
}

// Result is the outcome of one harvest job. Records is never nil. When
// Err is set Records holds whatever was collected before the failure.
type Result struct {
	JobID    string        `json:"job_id"`
	Kind     Kind          `json:"kind"`
	Records  []Record      `json:"records"`
	Stop     StopReason    `json:"stop,omitempty"`
	Cycles   int           `json:"cycles"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

// CompositeResult aggregates a posts job and a videos job for one term.
// Each side fails independently; Err is the first side failure, if any.
type CompositeResult struct {
	SearchTerm string  `json:"search_term"`
	Posts      *Result `json:"tweets"`
	Videos     *Result `json:"youtube_videos"`
	Err        error   `json:"-"`
}

// Harvester runs harvest jobs, each on a fresh session from opener
type Harvester struct {
	opener      browser.Opener
	credentials Credentials
	observer    Observer
	retry       *herrors.Service
	pause       pauseFunc
	seq         atomic.Uint64

	mu      sync.RWMutex
	tunings map[Kind]Tuning
}

// Option configures a Harvester
type Option func(*Harvester)

// WithCredentials sets the sign-in credentials for the post surface
func WithCredentials(c Credentials) Option {
	return func(h *Harvester) { h.credentials = c }
}

// WithObserver attaches an event observer
func WithObserver(o Observer) Option {
	return func(h *Harvester) {
		if o != nil {
			h.observer = o
		}
	}
}

// WithTuning overrides the pacing of one kind; zero fields keep defaults
func WithTuning(kind Kind, t Tuning) Option {
	return func(h *Harvester) { h.tunings[kind] = t.Merge(DefaultTuning(kind)) }
}

// WithRetry sets the policy used when opening sessions
func WithRetry(s *herrors.Service) Option {
	return func(h *Harvester) {
		if s != nil {
			h.retry = s
		}
	}
}

func withPause(p pauseFunc) Option {
	return func(h *Harvester) { h.pause = p }
}

// NewHarvester creates a harvester drawing sessions from opener
func NewHarvester(opener browser.Opener, opts ...Option) *Harvester {
	h := &Harvester{
		opener:   opener,
		observer: nopObserver{},
		retry:    herrors.NewService(),
		pause:    sleep,
		tunings: map[Kind]Tuning{
			KindPost:    DefaultTuning(KindPost),
			KindVideo:   DefaultTuning(KindVideo),
			KindComment: DefaultTuning(KindComment),
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// SetTuning replaces the pacing of one kind for jobs started afterwards
func (h *Harvester) SetTuning(kind Kind, t Tuning) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.tunings[kind] = t.Merge(DefaultTuning(kind))
}

// Tuning returns the pacing currently used for kind
func (h *Harvester) Tuning(kind Kind) Tuning {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if t, ok := h.tunings[kind]; ok {
		return t
	}
	return DefaultTuning(kind)
}

// Harvest runs one job to completion. It never panics; every failure is
// reported through Result.Err.
func (h *Harvester) Harvest(ctx context.Context, target Target) (res *Result) {
	start := time.Now()
	res = &Result{
		JobID:   fmt.Sprintf("%s-%d", target.Kind, h.seq.Add(1)),
		Kind:    target.Kind,
		Records: []Record{},
	}
	emit := func(e Event) {
		e.JobID = res.JobID
		e.Kind = target.Kind
		if e.Time.IsZero() {
			e.Time = time.Now()
		}
		h.observer.HandleEvent(e)
	}

	defer func() {
		res.Duration = time.Since(start)
		emit(Event{
			Type:      EventJobFinished,
			Cycle:     res.Cycles,
			Collected: len(res.Records),
			Reason:    res.Stop,
			Err:       res.Err,
			Duration:  res.Duration,
		})
	}()
	defer func() {
		if r := recover(); r != nil {
			res.Err = herrors.New(herrors.ClassInternal, "harvest", fmt.Errorf("panic: %v", r))
		}
	}()

	profile, targetURL, err := h.plan(target)
	if err != nil {
		res.Err = err
		return res
	}
	tuning := h.Tuning(target.Kind)
	emit(Event{Type: EventJobStarted, Detail: targetURL})

	session, err := h.acquire(ctx)
	if err != nil {
		res.Err = herrors.New(herrors.ClassSession, "open session", err)
		return res
	}
	defer func() {
		if err := session.Close(); err != nil {
			emit(Event{Type: EventCycleFailed, Detail: "close session", Err: err})
		}
	}()

	if target.Kind == KindPost {
		if err := h.signIn(ctx, session); err != nil {
			res.Err = err
			return res
		}
	}

	if err := session.Navigate(ctx, targetURL); err != nil {
		res.Err = herrors.New(herrors.ClassNavigation, "navigate", err)
		return res
	}
	if err := h.pause(ctx, tuning.LoadPause); err != nil {
		res.Err = herrors.New(herrors.ClassNavigation, "navigate", err)
		return res
	}
	if err := h.warmup(ctx, session, target.Kind); err != nil {
		res.Err = herrors.New(herrors.ClassSession, "warm-up", err)
		return res
	}

	l := &loop{
		session: session,
		profile: profile,
		tuning:  tuning,
		limit:   target.Limit,
		pause:   h.pause,
		emit:    emit,
	}
	state, reason, err := l.run(ctx)
	res.Records = state.Records
	res.Cycles = state.Cycles
	res.Stop = reason
	res.Err = err
	if err == nil {
		emit(Event{Type: EventLoopStopped, Cycle: state.Cycles, Collected: len(state.Records), Reason: reason})
	}
	return res
}

// HarvestAll runs a posts job and a videos job for one search term
// concurrently, each on its own session. The group shares no context, so
// a failing side never cancels the other.
func (h *Harvester) HarvestAll(ctx context.Context, searchTerm string, numPosts, numVideos int) *CompositeResult {
	out := &CompositeResult{SearchTerm: searchTerm}

	var g errgroup.Group
	g.Go(func() error {
		out.Posts = h.Harvest(ctx, Target{Kind: KindPost, Query: searchTerm, Limit: numPosts})
		if out.Posts.Err != nil {
			return fmt.Errorf("posts: %w", out.Posts.Err)
		}
		return nil
	})
	g.Go(func() error {
		out.Videos = h.Harvest(ctx, Target{Kind: KindVideo, Query: searchTerm, Limit: numVideos})
		if out.Videos.Err != nil {
			return fmt.Errorf("videos: %w", out.Videos.Err)
		}
		return nil
	})
	out.Err = g.Wait()

	return out
}

// plan validates target and resolves its profile and surface URL.
// Nothing here touches a session.
func (h *Harvester) plan(target Target) (*Profile, string, error) {
	if target.Limit <= 0 {
		return nil, "", herrors.New(herrors.ClassInput, "", herrors.ErrInvalidLimit)
	}

	switch target.Kind {
	case KindPost:
		if target.Query == "" {
			return nil, "", herrors.New(herrors.ClassInput, "", herrors.ErrMissingQuery)
		}
		if h.credentials.Empty() {
			return nil, "", herrors.New(herrors.ClassInput, "", herrors.ErrMissingCredentials)
		}
		return PostProfile(), fmt.Sprintf(PostSearchURL, url.QueryEscape(target.Query)), nil
	case KindVideo:
		if target.Query == "" {
			return nil, "", herrors.New(herrors.ClassInput, "", herrors.ErrMissingQuery)
		}
		return VideoProfile(), fmt.Sprintf(VideoSearchURL, url.QueryEscape(target.Query)), nil
	case KindComment:
		if target.URL == "" {
			return nil, "", herrors.New(herrors.ClassInput, "", herrors.ErrMissingTarget)
		}
		return CommentProfile(target.URL), target.URL, nil
	}
	return nil, "", herrors.New(herrors.ClassInput, "", fmt.Errorf("unknown record kind: %q", target.Kind))
}

func (h *Harvester) acquire(ctx context.Context) (browser.Session, error) {
	var session browser.Session
	err := h.retry.ExecuteWithRetry(ctx, func() error {
		s, err := h.opener.NewSession(ctx)
		if err != nil {
			return err
		}
		session = s
		return nil
	}, "open_session")
	return session, err
}

// signIn walks the two-step login form
func (h *Harvester) signIn(ctx context.Context, s browser.Session) error {
	steps := []func() error{
		func() error { return s.Navigate(ctx, LoginURL) },
		func() error { return h.pause(ctx, signInPageSettle) },
		func() error { return s.WaitForElement(ctx, UsernameInput, signInFormWait) },
		func() error { return s.SubmitInput(ctx, UsernameInput, h.credentials.Username) },
		func() error { return h.pause(ctx, signInStepSettle) },
		func() error { return s.WaitForElement(ctx, PasswordInput, signInFormWait) },
		func() error { return s.SubmitInput(ctx, PasswordInput, h.credentials.Password) },
		func() error { return h.pause(ctx, signInDoneSettle) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return herrors.New(herrors.ClassSignIn, "sign-in", fmt.Errorf("%w: %w", herrors.ErrSignInFailed, err))
		}
	}
	return nil
}

// warmup nudges lazily rendered surfaces before the first cycle. Only
// cancellation or a dead session is reported.
func (h *Harvester) warmup(ctx context.Context, s browser.Session, kind Kind) error {
	var err error
	switch kind {
	case KindVideo:
		if waitErr := s.WaitForElement(ctx, VideoRoots[0], videoFirstWait); waitErr != nil {
			err = runScripts(ctx, s, h.pause, `window.scrollTo(0, 500)`, `window.scrollTo(0, 0)`)
		}
	case KindComment:
		err = runScripts(ctx, s, h.pause, `window.scrollTo(0, 1000)`)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, browser.ErrSessionClosed) {
		return err
	}
	return nil
}

func runScripts(ctx context.Context, s browser.Session, pause pauseFunc, scripts ...string) error {
	for _, script := range scripts {
		if _, err := s.ExecuteScript(ctx, script); err != nil {
			return err
		}
		if err := pause(ctx, warmupPause); err != nil {
			return err
		}
	}
	return nil
}
