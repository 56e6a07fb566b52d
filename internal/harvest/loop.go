// internal/harvest/loop.go
package harvest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/valpere/FeedHarvester/internal/browser"
	herrors "github.com/valpere/FeedHarvester/internal/errors"
)

// Scripts run against the rendering client
const (
	revealScript = `window.scrollTo(0, document.body.scrollHeight)`
	extentScript = `document.body.scrollHeight`
)

// pauseFunc waits for d or until ctx is done
type pauseFunc func(ctx context.Context, d time.Duration) error

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// State is the job-local harvest state. Only the loop mutates it.
type State struct {
	Records  []Record
	Cycles   int
	seen     *Deduplicator[Identity]
	detector *StagnationDetector
}

func newState(ceiling int) *State {
	return &State{
		Records:  []Record{},
		seen:     NewDeduplicator[Identity](),
		detector: NewStagnationDetector(ceiling),
	}
}

// loop drives reveal cycles against one session
type loop struct {
	session browser.Session
	profile *Profile
	tuning  Tuning
	limit   int
	pause   pauseFunc
	emit    func(Event)
}

// run collects until the limit is met, the surface stagnates or the
// cycle budget is spent. The error is non-nil only when the session
// can no longer be used.
func (l *loop) run(ctx context.Context) (*State, StopReason, error) {
	state := newState(l.tuning.StagnationCeiling)

	extent, err := l.measure(ctx)
	if err != nil {
		if l.fatal(ctx, err) {
			return state, "", l.abort(err)
		}
	} else {
		state.detector.Observe(extent)
	}

	for {
		if len(state.Records) >= l.limit {
			return state, StopLimitReached, nil
		}
		if state.Cycles >= l.tuning.MaxCycles {
			return state, StopMaxCycles, nil
		}
		if err := ctx.Err(); err != nil {
			return state, "", l.abort(err)
		}

		state.Cycles++
		cycle := state.Cycles
		l.emit(Event{Type: EventCycleStarted, Cycle: cycle, Collected: len(state.Records)})

		// Collecting
		roots, err := l.roots(ctx)
		if err != nil {
			if l.fatal(ctx, err) {
				return state, "", l.abort(err)
			}
			l.cycleFailed(cycle, state, "query roots", err)
		}
		if len(roots) == 0 {
			if state.detector.Fail() {
				return state, StopStagnated, nil
			}
			if err := l.reveal(ctx); err != nil {
				if l.fatal(ctx, err) {
					return state, "", l.abort(err)
				}
				l.cycleFailed(cycle, state, "reveal", err)
			}
			continue
		}

		if l.collect(state, roots, cycle) {
			return state, StopLimitReached, nil
		}

		// Revealing
		if err := l.reveal(ctx); err != nil {
			if l.fatal(ctx, err) {
				return state, "", l.abort(err)
			}
			l.cycleFailed(cycle, state, "reveal", err)
			if state.detector.Fail() {
				return state, StopStagnated, nil
			}
			continue
		}

		// Measuring
		extent, err := l.measure(ctx)
		if err != nil {
			if l.fatal(ctx, err) {
				return state, "", l.abort(err)
			}
			l.cycleFailed(cycle, state, "measure", err)
			if state.detector.Fail() {
				return state, StopStagnated, nil
			}
			continue
		}

		if state.detector.Observe(extent) {
			return state, StopStagnated, nil
		}
		if state.detector.Stagnant() > 0 {
			if err := l.pause(ctx, l.tuning.StagnantPause); err != nil {
				return state, "", l.abort(err)
			}
		}
	}
}

// roots queries the ranked root selectors, waiting once for the
// primary selector when nothing is rendered yet.
func (l *loop) roots(ctx context.Context) ([]browser.Node, error) {
	nodes, err := l.queryRanked(ctx)
	if err != nil || len(nodes) > 0 {
		return nodes, err
	}
	if len(l.profile.RootSelectors) == 0 {
		return nil, nil
	}
	if err := l.session.WaitForElement(ctx, l.profile.RootSelectors[0], l.tuning.RootWait); err != nil {
		return nil, err
	}
	return l.queryRanked(ctx)
}

func (l *loop) queryRanked(ctx context.Context) ([]browser.Node, error) {
	var lastErr error
	for _, sel := range l.profile.RootSelectors {
		nodes, err := l.session.QueryAll(ctx, sel)
		if err != nil {
			if l.fatal(ctx, err) {
				return nil, err
			}
			lastErr = err
			continue
		}
		if len(nodes) > 0 {
			return nodes, nil
		}
	}
	return nil, lastErr
}

// collect extracts roots in encounter order and reports whether the
// limit was reached.
func (l *loop) collect(state *State, roots []browser.Node, cycle int) bool {
	for _, root := range roots {
		rec, err := l.profile.Build(root)
		if err != nil {
			l.emit(Event{Type: EventRecordSkipped, Cycle: cycle, Collected: len(state.Records), Err: err, Detail: err.Error()})
			continue
		}
		if !rec.Acceptable() {
			l.emit(Event{Type: EventRecordSkipped, Cycle: cycle, Collected: len(state.Records), Identity: rec.Identity(), Detail: "primary content not acceptable"})
			continue
		}

		id := rec.Identity()
		if !state.seen.IsNew(id) {
			l.emit(Event{Type: EventDuplicateSkipped, Cycle: cycle, Collected: len(state.Records), Identity: id})
			continue
		}

		state.Records = append(state.Records, rec)
		l.emit(Event{Type: EventRecordAccepted, Cycle: cycle, Collected: len(state.Records), Identity: id})

		if len(state.Records) >= l.limit {
			return true
		}
	}
	return false
}

func (l *loop) reveal(ctx context.Context) error {
	if _, err := l.session.ExecuteScript(ctx, revealScript); err != nil {
		return err
	}
	return l.pause(ctx, l.tuning.RevealPause)
}

func (l *loop) measure(ctx context.Context) (int64, error) {
	v, err := l.session.ExecuteScript(ctx, extentScript)
	if err != nil {
		return 0, err
	}
	return toExtent(v)
}

func (l *loop) cycleFailed(cycle int, state *State, op string, err error) {
	l.emit(Event{
		Type:      EventCycleFailed,
		Cycle:     cycle,
		Collected: len(state.Records),
		Err:       herrors.New(herrors.ClassCycle, op, err),
		Detail:    op,
	})
}

// fatal separates session-ending failures from per-call timeouts
func (l *loop) fatal(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, browser.ErrSessionClosed)
}

func (l *loop) abort(err error) error {
	return herrors.New(herrors.ClassSession, "reveal loop", err)
}

// toExtent converts a script result into a surface extent
func toExtent(v interface{}) (int64, error) {
	switch n := v.(type) {
	case float64:
		return int64(n), nil
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case json.Number:
		return n.Int64()
	}
	return 0, fmt.Errorf("unexpected surface extent %v (%T)", v, v)
}
