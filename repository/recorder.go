package repository

import (
	"context"
	"sync"
	"time"

	"showmerge/core/pipeline"
	"showmerge/logger"
	"showmerge/model"
)

const (
	recordTimeout   = 5 * time.Second
	recordQueueSize = 256
)

// Recorder persists pipeline events as merge records. Writes happen on a
// single background worker in event order; Notify only enqueues.
type Recorder struct {
	repo  MergeRepository
	queue chan pipeline.Event
	done  chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewRecorder creates a Recorder writing to repo and starts its worker.
// Call Close to flush pending events.
func NewRecorder(repo MergeRepository) *Recorder {
	r := &Recorder{
		repo:  repo,
		queue: make(chan pipeline.Event, recordQueueSize),
		done:  make(chan struct{}),
	}
	go r.loop()
	return r
}

// Notify implements pipeline.Observer. Events arriving after Close or while
// the queue is full are dropped with a warning.
func (r *Recorder) Notify(e pipeline.Event) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	select {
	case r.queue <- e:
	default:
		logger.Warn("merge record queue full, dropping event",
			logger.String("runId", e.RunID),
			logger.String("stage", string(e.Stage)))
	}
}

// Close stops accepting events and waits until queued ones are written.
func (r *Recorder) Close() {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()
	<-r.done
}

func (r *Recorder) loop() {
	defer close(r.done)
	for e := range r.queue {
		r.record(e)
	}
}

func (r *Recorder) record(e pipeline.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	var err error
	switch e.Stage {
	case pipeline.StageCreated:
		err = r.repo.Create(ctx, &model.MergeRecord{
			ID:        e.RunID,
			Stage:     string(e.Stage),
			Status:    model.StatusRunning,
			CreatedAt: e.Time,
		})
	case pipeline.StageSucceeded:
		err = r.repo.Complete(ctx, e.RunID, e.Result)
	case pipeline.StageFailed:
		stage, kind, msg := string(e.Stage), "", ""
		if e.Err != nil {
			stage, kind, msg = string(e.Err.Stage), string(e.Err.Kind), e.Err.Err.Error()
		}
		if e.Show != "" {
			if uerr := r.repo.UpdateStage(ctx, e.RunID, StageUpdate{Stage: stage, Show: e.Show, Folder: e.Folder, SegmentCount: e.SegmentCount}); uerr != nil {
				r.warn(e, uerr)
			}
		}
		err = r.repo.Fail(ctx, e.RunID, stage, kind, msg)
	default:
		err = r.repo.UpdateStage(ctx, e.RunID, StageUpdate{
			Stage:        string(e.Stage),
			Show:         e.Show,
			Folder:       e.Folder,
			SegmentCount: e.SegmentCount,
		})
	}
	if err != nil {
		r.warn(e, err)
	}
}

func (r *Recorder) warn(e pipeline.Event, err error) {
	logger.Warn("failed to record merge event",
		logger.String("runId", e.RunID),
		logger.String("stage", string(e.Stage)),
		logger.ErrorField(err))
}
