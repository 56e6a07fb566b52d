// internal/harvest/log_observer.go
package harvest

import (
	herrors "github.com/valpere/FeedHarvester/internal/errors"
	"github.com/valpere/FeedHarvester/internal/utils"
)

// LogObserver writes the event stream to a logger, one line per event
type LogObserver struct {
	logger utils.Logger
}

// NewLogObserver creates an observer logging through logger
func NewLogObserver(logger utils.Logger) *LogObserver {
	return &LogObserver{logger: logger}
}

// HandleEvent implements Observer
func (o *LogObserver) HandleEvent(e Event) {
	log := o.logger.WithFields(map[string]interface{}{
		"job_id": e.JobID,
		"kind":   e.Kind,
	})

	switch e.Type {
	case EventJobStarted:
		log.Infof("Harvest started: %s", e.Detail)
	case EventCycleStarted:
		log.Debugf("Cycle %d started with %d records", e.Cycle, e.Collected)
	case EventRecordAccepted:
		log.Debugf("Record %d accepted: %s", e.Collected, utils.TruncateString(e.Identity.Primary, 50))
	case EventDuplicateSkipped:
		log.Debugf("Duplicate skipped: %s", utils.TruncateString(e.Identity.Primary, 30))
	case EventRecordSkipped:
		log.Debugf("Record skipped: %s", e.Detail)
	case EventCycleFailed:
		if herrors.IsFatal(e.Err) {
			log.Errorf("Cycle %d: %v", e.Cycle, e.Err)
			return
		}
		log.Warnf("Cycle %d: %v", e.Cycle, e.Err)
	case EventLoopStopped:
		log.Infof("Loop stopped after %d cycles: %s", e.Cycle, e.Reason)
	case EventJobFinished:
		if e.Err != nil {
			log.Errorf("Harvest failed after %s: %v", utils.FormatDuration(e.Duration), e.Err)
			return
		}
		log.Infof("Harvest finished: %d records in %s", e.Collected, utils.FormatDuration(e.Duration))
	}
}
