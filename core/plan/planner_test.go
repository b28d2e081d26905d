package plan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"showmerge/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProber struct {
	durations map[string]float64
	calls     []string
	err       error
}

func (f *fakeProber) Duration(_ context.Context, path string) (float64, error) {
	f.calls = append(f.calls, path)
	if f.err != nil {
		return 0, f.err
	}
	return f.durations[path], nil
}

func segments(durations ...float64) []model.Segment {
	out := make([]model.Segment, len(durations))
	for i, d := range durations {
		out[i] = model.Segment{
			SourceURL: fmt.Sprintf("https://cdn.example.com/show/chapter-%02d.mp3", i+1),
			Ordinal:   i,
			LocalPath: fmt.Sprintf("/stage/segment_%03d.mp3", i),
			Duration:  d,
		}
	}
	return out
}

func startTimes(markers []model.ChapterMarker) []float64 {
	out := make([]float64, len(markers))
	for i, m := range markers {
		out[i] = m.StartTime
	}
	return out
}

func TestBuild_ThreeSegmentsWithSilence(t *testing.T) {
	plan, markers, err := Build(segments(10, 20, 15), &model.TransitionAsset{Kind: model.TransitionSilence, Duration: 2})
	require.NoError(t, err)

	assert.Equal(t, []float64{0, 12, 34}, startTimes(markers))
	assert.InDelta(t, 49.0, plan.TotalDuration(), 1e-9)
	assert.Equal(t, 5, plan.Len())
	assert.Equal(t, 2, plan.TransitionCount())

	entries := plan.Entries()
	assert.Equal(t, model.EntrySegment, entries[0].Kind)
	assert.Equal(t, model.EntrySilence, entries[1].Kind)
	assert.Equal(t, "/stage/segment_001.mp3", entries[2].Path)
	assert.Equal(t, model.EntrySilence, entries[3].Kind)
	assert.Equal(t, 2, entries[4].SegmentIndex)
}

func TestBuild_SingleSegmentHasNoTransition(t *testing.T) {
	transitions := map[string]*model.TransitionAsset{
		"none":    nil,
		"silence": {Kind: model.TransitionSilence, Duration: 0.3},
		"clip":    {Kind: model.TransitionClip, LocalPath: "/stage/transition.mp3", Duration: 1.2},
	}
	for name, tr := range transitions {
		t.Run(name, func(t *testing.T) {
			plan, markers, err := Build(segments(42), tr)
			require.NoError(t, err)
			require.Len(t, markers, 1)
			assert.Equal(t, 0.0, markers[0].StartTime)
			assert.Equal(t, 1, plan.Len())
			assert.Equal(t, 0, plan.TransitionCount())
		})
	}
}

func TestBuild_NoTransitionPlanLength(t *testing.T) {
	plan, markers, err := Build(segments(5, 6, 7, 8), &model.TransitionAsset{Kind: model.TransitionNone})
	require.NoError(t, err)
	assert.Equal(t, 4, plan.Len())
	assert.Equal(t, []float64{0, 5, 11, 18}, startTimes(markers))
}

func TestBuild_ClipTransitionPlanLength(t *testing.T) {
	plan, markers, err := Build(segments(5, 6, 7, 8), &model.TransitionAsset{Kind: model.TransitionClip, LocalPath: "/stage/transition.mp3", Duration: 1.5})
	require.NoError(t, err)
	assert.Equal(t, 7, plan.Len())
	assert.Equal(t, []float64{0, 6.5, 14, 22.5}, startTimes(markers))
	assert.InDelta(t, 30.5, plan.TotalDuration(), 1e-9)
}

func TestBuild_MarkerRecurrence(t *testing.T) {
	durations := []float64{3.217, 61.04, 0.5, 12.999, 7.25, 100.1}
	transition := 1.337
	segs := segments(durations...)
	_, markers, err := Build(segs, &model.TransitionAsset{Kind: model.TransitionClip, LocalPath: "/stage/t.mp3", Duration: transition})
	require.NoError(t, err)

	require.Len(t, markers, len(durations))
	assert.Equal(t, 0.0, markers[0].StartTime)
	for i := 0; i < len(markers)-1; i++ {
		assert.InDelta(t, markers[i].StartTime+durations[i]+transition, markers[i+1].StartTime, 1e-9)
		assert.LessOrEqual(t, markers[i].StartTime, markers[i+1].StartTime)
	}
}

func TestBuild_EmptyInput(t *testing.T) {
	plan, markers, err := Build(nil, &model.TransitionAsset{Kind: model.TransitionSilence, Duration: 1})
	assert.Nil(t, plan)
	assert.Nil(t, markers)
	assert.ErrorIs(t, err, ErrEmptyInput)

	var planErr *Error
	require.True(t, errors.As(err, &planErr))
	assert.Equal(t, EmptyInput, planErr.Code)
}

func TestBuild_ReordersByOrdinal(t *testing.T) {
	segs := segments(10, 20, 30)
	shuffled := []model.Segment{segs[2], segs[0], segs[1]}

	plan, markers, err := Build(shuffled, nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 10, 30}, startTimes(markers))
	assert.Equal(t, "/stage/segment_000.mp3", plan.Entries()[0].Path)
	// input untouched
	assert.Equal(t, 2, shuffled[0].Ordinal)
}

func TestBuild_RejectsGapsAndUnstagedSegments(t *testing.T) {
	gap := segments(1, 2)
	gap[1].Ordinal = 2
	_, _, err := Build(gap, nil)
	assert.ErrorIs(t, err, &Error{Code: InvalidOrder})

	unstaged := segments(1, 2)
	unstaged[0].LocalPath = ""
	_, _, err = Build(unstaged, nil)
	assert.ErrorIs(t, err, &Error{Code: InvalidSegment})

	_, _, err = Build(segments(1, 2), &model.TransitionAsset{Kind: model.TransitionClip, LocalPath: "/stage/t.mp3"})
	assert.ErrorIs(t, err, &Error{Code: InvalidTransition})
}

func TestBuild_IsDeterministic(t *testing.T) {
	segs := segments(10.123, 20.456, 15.789)
	tr := &model.TransitionAsset{Kind: model.TransitionSilence, Duration: 0.3}

	_, first, err := Build(segs, tr)
	require.NoError(t, err)
	_, second, err := Build(segs, tr)
	require.NoError(t, err)

	a, err := json.Marshal(model.ChapterTable{Show: "ep1", Chapters: first})
	require.NoError(t, err)
	b, err := json.Marshal(model.ChapterTable{Show: "ep1", Chapters: second})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestBuild_LabelsFromSource(t *testing.T) {
	segs := segments(1, 1)
	segs[1].Label = "Interview"
	_, markers, err := Build(segs, nil)
	require.NoError(t, err)
	assert.Equal(t, "chapter-01", markers[0].Label)
	assert.Equal(t, "Interview", markers[1].Label)
}

func TestPlanner_ProbesClipBeforeComputingMarkers(t *testing.T) {
	prober := &fakeProber{durations: map[string]float64{"/stage/transition.mp3": 2.5}}
	planner := NewPlanner(prober)

	_, markers, err := planner.BuildPlan(context.Background(), segments(10, 20, 15),
		model.TransitionPolicy{Kind: model.TransitionClip, ClipURL: "https://cdn.example.com/swoosh.mp3"},
		"/stage/transition.mp3")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 12.5, 35}, startTimes(markers))
	assert.Equal(t, []string{"/stage/transition.mp3"}, prober.calls)
}

func TestPlanner_SingleSegmentSkipsClipProbe(t *testing.T) {
	prober := &fakeProber{err: errors.New("should not be called")}
	_, markers, err := NewPlanner(prober).BuildPlan(context.Background(), segments(10),
		model.TransitionPolicy{Kind: model.TransitionClip}, "")
	require.NoError(t, err)
	assert.Len(t, markers, 1)
	assert.Empty(t, prober.calls)
}

func TestPlanner_ClipProbeFailure(t *testing.T) {
	probeErr := errors.New("ffprobe exploded")
	_, _, err := NewPlanner(&fakeProber{err: probeErr}).BuildPlan(context.Background(), segments(1, 2),
		model.TransitionPolicy{Kind: model.TransitionClip}, "/stage/transition.mp3")
	assert.ErrorIs(t, err, probeErr)
}

func TestPlanner_SilencePolicy(t *testing.T) {
	_, markers, err := NewPlanner(&fakeProber{}).BuildPlan(context.Background(), segments(10, 20, 15),
		model.TransitionPolicy{Kind: model.TransitionSilence, Seconds: 2}, "")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 12, 34}, startTimes(markers))
}
