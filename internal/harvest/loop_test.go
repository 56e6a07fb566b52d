// internal/harvest/loop_test.go
package harvest

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func newTestLoop(session *scriptedSession, profile *Profile, tuning Tuning, limit int, events *eventLog) *loop {
	return &loop{
		session: session,
		profile: profile,
		tuning:  tuning,
		limit:   limit,
		pause:   noPause,
		emit:    events.HandleEvent,
	}
}

func detailCount(events *eventLog, t EventType, detail string) int {
	events.mu.Lock()
	defer events.mu.Unlock()
	n := 0
	for _, e := range events.events {
		if e.Type == t && e.Detail == detail {
			n++
		}
	}
	return n
}

func TestLoop_RecordPanicSkipsOnlyThatRecord(t *testing.T) {
	session := newScriptedSession([]string{commentHTML(3)}, []int64{1000})
	profile := CommentProfile("https://www.youtube.com/watch?v=abc")
	assemble := profile.Assemble
	profile.Assemble = func(v map[string]string) Record {
		if v["text"] == "comment 2" {
			panic("malformed comment")
		}
		return assemble(v)
	}
	events := &eventLog{}

	state, stop, err := newTestLoop(session, profile, fastTuning(2, 10), 10, events).run(context.Background())
	if err != nil {
		t.Fatalf("Expected record failure to stay local, got %v", err)
	}
	if diff := cmp.Diff([]string{"comment 1", "comment 3"}, recordTexts(state.Records)); diff != "" {
		t.Errorf("Records mismatch (-want +got):\n%s", diff)
	}
	if stop != StopStagnated || state.Cycles != 2 {
		t.Errorf("Expected stagnation after 2 cycles, got %q after %d", stop, state.Cycles)
	}
	if got := events.count(EventRecordSkipped); got != 2 {
		t.Errorf("Expected the malformed record skipped once per cycle, got %d", got)
	}
}

func TestLoop_MeasureFailuresCountTowardsStagnation(t *testing.T) {
	session := newScriptedSession([]string{commentHTML(3)}, []int64{1000})
	session.failScripts = map[string]error{extentScript: errors.New("evaluation timed out")}
	events := &eventLog{}

	profile := CommentProfile("https://www.youtube.com/watch?v=abc")
	state, stop, err := newTestLoop(session, profile, fastTuning(3, 10), 10, events).run(context.Background())
	if err != nil {
		t.Fatalf("Expected measure failures to be cycle-local, got %v", err)
	}
	if len(state.Records) != 3 {
		t.Errorf("Expected collection to continue, got %d records", len(state.Records))
	}
	if stop != StopStagnated || state.Cycles != 3 {
		t.Errorf("Expected stagnation after 3 cycles, got %q after %d", stop, state.Cycles)
	}
	if got := detailCount(events, EventCycleFailed, "measure"); got != 3 {
		t.Errorf("Expected 3 failed measurements, got %d", got)
	}
}

func TestLoop_RevealFailuresAreReported(t *testing.T) {
	session := newScriptedSession([]string{commentHTML(2)}, []int64{1000})
	session.failScripts = map[string]error{revealScript: errors.New("script timed out")}
	events := &eventLog{}

	profile := CommentProfile("https://www.youtube.com/watch?v=abc")
	state, stop, err := newTestLoop(session, profile, fastTuning(2, 10), 10, events).run(context.Background())
	if err != nil {
		t.Fatalf("Expected reveal failures to be cycle-local, got %v", err)
	}
	if stop != StopStagnated || state.Cycles != 2 {
		t.Errorf("Expected stagnation after 2 cycles, got %q after %d", stop, state.Cycles)
	}
	if got := detailCount(events, EventCycleFailed, "reveal"); got != 2 {
		t.Errorf("Expected 2 failed reveals, got %d", got)
	}
}

func TestLoop_RevealFailureWithoutRootsIsReported(t *testing.T) {
	session := newScriptedSession([]string{"<html><body><p>loading</p></body></html>"}, []int64{800})
	session.failScripts = map[string]error{revealScript: errors.New("script timed out")}
	events := &eventLog{}

	profile := CommentProfile("https://www.youtube.com/watch?v=abc")
	state, stop, err := newTestLoop(session, profile, fastTuning(2, 10), 10, events).run(context.Background())
	if err != nil {
		t.Fatalf("Expected short result, got %v", err)
	}
	if stop != StopStagnated || state.Cycles != 2 {
		t.Errorf("Expected stagnation after 2 cycles, got %q after %d", stop, state.Cycles)
	}
	if got := detailCount(events, EventCycleFailed, "reveal"); got != 1 {
		t.Errorf("Expected the failed reveal reported, got %d", got)
	}
	if got := detailCount(events, EventCycleFailed, "query roots"); got != 2 {
		t.Errorf("Expected 2 empty root queries, got %d", got)
	}
}
