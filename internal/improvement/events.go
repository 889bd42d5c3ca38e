package improvement

import (
	"time"

	"github.com/GoSim-25-26J-441/form-optimizer/internal/field"
	"github.com/GoSim-25-26J-441/form-optimizer/internal/measure"
)

// EventType names a progress notification
type EventType string

const (
	EventInitialScore     EventType = "initial_score"
	EventNewBestScore     EventType = "new_best_score"
	EventNewScore         EventType = "new_score"
	EventFieldConverged   EventType = "field_converged"
	EventRestartTriggered EventType = "restart_triggered"
	EventRestartFinished  EventType = "restart_finished"
	EventPassCompleted    EventType = "pass_completed"
	EventStopped          EventType = "stopped"
)

// ProgressEvent is emitted by a running session
type ProgressEvent struct {
	Type        EventType         `json:"type"`
	SessionID   string            `json:"sessionId"`
	Score       float64           `json:"score"`
	Metrics     measure.Snapshot  `json:"metrics"`
	Combination field.Combination `json:"combination,omitempty"`
	Field       string            `json:"field,omitempty"`
	Pass        int               `json:"pass,omitempty"`
	Attempt     int               `json:"attempt,omitempty"`
	Improved    bool              `json:"improved,omitempty"`
	Error       string            `json:"error,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
}

// IsScore reports whether the event carries a new reading worth recording
func (e ProgressEvent) IsScore() bool {
	switch e.Type {
	case EventInitialScore, EventNewBestScore, EventNewScore:
		return true
	}
	return false
}

// Reading is one scored observation of the page
type Reading struct {
	Score    float64
	Snapshot measure.Snapshot
	OK       bool
}

// Recorder receives search counters; see internal/metrics
type Recorder interface {
	ObserveTrial(ok bool)
	ObserveBest(score float64)
	ObserveRestart(improved bool)
	ObservePass()
}

type nopRecorder struct{}

func (nopRecorder) ObserveTrial(bool)   {}
func (nopRecorder) ObserveBest(float64) {}
func (nopRecorder) ObserveRestart(bool) {}
func (nopRecorder) ObservePass()        {}
