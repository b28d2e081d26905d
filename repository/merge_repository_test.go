package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"showmerge/core/pipeline"
	"showmerge/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryMergeRepository(10)

	require.NoError(t, repo.Create(ctx, &model.MergeRecord{ID: "r1", Stage: "created", Status: model.StatusRunning}))
	require.NoError(t, repo.UpdateStage(ctx, "r1", StageUpdate{Stage: "fetching", Show: "ep1", Folder: "shows", SegmentCount: 3}))
	require.NoError(t, repo.Complete(ctx, "r1", &model.MergeResult{FinalAudioURL: "https://a", ChaptersURL: "https://c", TotalSeconds: 47}))

	rec, err := repo.GetByID(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusSucceeded, rec.Status)
	assert.Equal(t, "ep1", rec.ShowName)
	assert.Equal(t, 3, rec.SegmentCount)
	assert.Equal(t, 47.0, rec.TotalSeconds)
	assert.NotNil(t, rec.FinishedAt)

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrRecordNotFound)
	assert.ErrorIs(t, repo.Fail(ctx, "missing", "encoding", "encode", "boom"), ErrRecordNotFound)
}

func TestMemoryRepository_ListRecentAndEviction(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryMergeRepository(2)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, repo.Create(ctx, &model.MergeRecord{ID: id, CreatedAt: base.Add(time.Duration(i) * time.Minute)}))
	}

	recent, err := repo.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "c", recent[0].ID)
	assert.Equal(t, "b", recent[1].ID)

	recent, err = repo.ListRecent(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, recent, 1)
}

func TestRecorder_TracksRun(t *testing.T) {
	repo := NewMemoryMergeRepository(10)
	rec := NewRecorder(repo)
	now := time.Now()

	rec.Notify(pipeline.Event{RunID: "r1", Stage: pipeline.StageCreated, Time: now})
	rec.Notify(pipeline.Event{RunID: "r1", Stage: pipeline.StageFetching, Show: "ep1", Folder: "shows", SegmentCount: 2, Time: now})
	rec.Notify(pipeline.Event{RunID: "r1", Stage: pipeline.StageEncoding, Show: "ep1", Folder: "shows", SegmentCount: 2, Time: now})
	rec.Notify(pipeline.Event{RunID: "r1", Stage: pipeline.StageCleaningUp, Show: "ep1", Time: now})
	rec.Notify(pipeline.Event{
		RunID: "r1",
		Stage: pipeline.StageFailed,
		Show:  "ep1",
		Err:   &pipeline.RunError{RunID: "r1", Kind: pipeline.KindEncode, Stage: pipeline.StageEncoding, Err: errors.New("exit status 1")},
	})
	rec.Close()

	got, err := repo.GetByID(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, got.Status)
	assert.Equal(t, "encoding", got.Stage)
	assert.Equal(t, "encode", got.ErrorKind)
	assert.Equal(t, "exit status 1", got.ErrorMessage)
	assert.Equal(t, "ep1", got.ShowName)
	assert.Equal(t, 2, got.SegmentCount)
}

func TestRecorder_Success(t *testing.T) {
	repo := NewMemoryMergeRepository(10)
	rec := NewRecorder(repo)

	rec.Notify(pipeline.Event{RunID: "r2", Stage: pipeline.StageCreated, Time: time.Now()})
	rec.Notify(pipeline.Event{RunID: "r2", Stage: pipeline.StageSucceeded, Result: &model.MergeResult{FinalAudioURL: "https://a/ep.mp3"}})
	rec.Close()

	got, err := repo.GetByID(context.Background(), "r2")
	require.NoError(t, err)
	assert.Equal(t, model.StatusSucceeded, got.Status)
	assert.Equal(t, "https://a/ep.mp3", got.AudioURL)
}

type slowRepository struct {
	MergeRepository
	release chan struct{}
}

func (s *slowRepository) Create(ctx context.Context, record *model.MergeRecord) error {
	<-s.release
	return s.MergeRepository.Create(ctx, record)
}

type failingStageRepository struct {
	MergeRepository
	updates int
}

func (f *failingStageRepository) UpdateStage(context.Context, string, StageUpdate) error {
	f.updates++
	return errors.New("connection refused")
}

func TestRecorder_NotifyDoesNotWaitForStorage(t *testing.T) {
	repo := &slowRepository{MergeRepository: NewMemoryMergeRepository(10), release: make(chan struct{})}
	rec := NewRecorder(repo)

	returned := make(chan struct{})
	go func() {
		rec.Notify(pipeline.Event{RunID: "r3", Stage: pipeline.StageCreated, Time: time.Now()})
		rec.Notify(pipeline.Event{RunID: "r3", Stage: pipeline.StageFetching, Show: "ep3", Time: time.Now()})
		close(returned)
	}()

	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("Notify blocked on a stalled repository")
	}

	close(repo.release)
	rec.Close()

	got, err := repo.GetByID(context.Background(), "r3")
	require.NoError(t, err)
	assert.Equal(t, "ep3", got.ShowName)
	assert.Equal(t, "fetching", got.Stage)
}

func TestRecorder_FailureStillRecordedWhenStageUpdateFails(t *testing.T) {
	repo := &failingStageRepository{MergeRepository: NewMemoryMergeRepository(10)}
	rec := NewRecorder(repo)

	rec.Notify(pipeline.Event{RunID: "r4", Stage: pipeline.StageCreated, Time: time.Now()})
	rec.Notify(pipeline.Event{
		RunID: "r4",
		Stage: pipeline.StageFailed,
		Show:  "ep4",
		Err:   &pipeline.RunError{RunID: "r4", Kind: pipeline.KindFetch, Stage: pipeline.StageFetching, Err: errors.New("404")},
	})
	rec.Close()
	rec.Close()
	rec.Notify(pipeline.Event{RunID: "r4", Stage: pipeline.StageEncoding})

	assert.Equal(t, 1, repo.updates)
	got, err := repo.GetByID(context.Background(), "r4")
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, got.Status)
	assert.Equal(t, "fetch", got.ErrorKind)
}
