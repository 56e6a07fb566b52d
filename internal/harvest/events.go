// internal/harvest/events.go
package harvest

import (
	"time"
)

// EventType names a point in a harvest job's life
type EventType string

const (
	EventJobStarted       EventType = "job_started"
	EventCycleStarted     EventType = "cycle_started"
	EventRecordAccepted   EventType = "record_accepted"
	EventDuplicateSkipped EventType = "duplicate_skipped"
	EventRecordSkipped    EventType = "record_skipped"
	EventCycleFailed      EventType = "cycle_failed"
	EventLoopStopped      EventType = "loop_stopped"
	EventJobFinished      EventType = "job_finished"
)

// StopReason explains why a reveal loop ended normally
type StopReason string

const (
	StopLimitReached StopReason = "limit_reached"
	StopStagnated    StopReason = "stagnated"
	StopMaxCycles    StopReason = "max_cycles"
)

// Event is one entry of the harvest event stream
type Event struct {
	Type      EventType
	JobID     string
	Kind      Kind
	Cycle     int
	Collected int
	Identity  Identity
	Reason    StopReason
	Detail    string
	Err       error
	Duration  time.Duration
	Time      time.Time
}

// Observer receives harvest events. Observers are called synchronously
// from the job goroutine and must not block.
type Observer interface {
	HandleEvent(Event)
}

// ObserverFunc adapts a function to Observer
type ObserverFunc func(Event)

// HandleEvent calls f(e)
func (f ObserverFunc) HandleEvent(e Event) { f(e) }

// Observers fans an event out to several observers in order
type Observers []Observer

// HandleEvent delivers e to every non-nil observer
func (o Observers) HandleEvent(e Event) {
	for _, obs := range o {
		if obs != nil {
			obs.HandleEvent(e)
		}
	}
}

type nopObserver struct{}

func (nopObserver) HandleEvent(Event) {}
