package pipeline

import (
	"time"

	"showmerge/model"
)

// Stage is a step of the run state machine.
type Stage string

const (
	StageCreated     Stage = "created"
	StageDiscovering Stage = "discovering"
	StageFetching    Stage = "fetching"
	StagePlanning    Stage = "planning"
	StageEncoding    Stage = "encoding"
	StagePublishing  Stage = "publishing"
	StageCleaningUp  Stage = "cleaning_up"
	StageSucceeded   Stage = "succeeded"
	StageFailed      Stage = "failed"
)

// Terminal reports whether no further stage follows.
func (s Stage) Terminal() bool {
	return s == StageSucceeded || s == StageFailed
}

// Event is emitted on every stage change of a run.
type Event struct {
	RunID        string             `json:"runId"`
	Stage        Stage              `json:"stage"`
	Show         string             `json:"show,omitempty"`
	Folder       string             `json:"folder,omitempty"`
	SegmentCount int                `json:"segmentCount,omitempty"`
	Time         time.Time          `json:"time"`
	Result       *model.MergeResult `json:"result,omitempty"` // Set on StageSucceeded
	Err          *RunError          `json:"-"`                // Set on StageFailed
}

// Observer receives run events. Notify is called synchronously from the run
// and must not block.
type Observer interface {
	Notify(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) Notify(e Event) {
	f(e)
}

// Observers fans an event out to several observers in order.
type Observers []Observer

func (o Observers) Notify(e Event) {
	for _, obs := range o {
		if obs != nil {
			obs.Notify(e)
		}
	}
}
