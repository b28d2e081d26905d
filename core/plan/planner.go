package plan

import (
	"context"
	"fmt"
	"math"
	"sort"

	"showmerge/core/audio"
	"showmerge/model"
)

// ErrorCode classifies planning failures.
type ErrorCode string

const (
	EmptyInput        ErrorCode = "empty_input"
	InvalidOrder      ErrorCode = "invalid_order"
	InvalidSegment    ErrorCode = "invalid_segment"
	InvalidTransition ErrorCode = "invalid_transition"
)

// Error is returned when a plan cannot be built.
type Error struct {
	Code   ErrorCode
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("plan: %s", e.Code)
	}
	return fmt.Sprintf("plan: %s: %s", e.Code, e.Detail)
}

// Is matches any *Error with the same code, so errors.Is(err, ErrEmptyInput) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// ErrEmptyInput is the sentinel for a plan requested with no segments.
var ErrEmptyInput = &Error{Code: EmptyInput, Detail: "no segments to merge"}

// Build lays out segments in ordinal order with the transition between each
// consecutive pair and computes the chapter markers on the encoded time axis.
// Segment durations and the transition duration must already be resolved.
// The input slice is not modified.
func Build(segments []model.Segment, transition *model.TransitionAsset) (*model.ConcatenationPlan, []model.ChapterMarker, error) {
	if len(segments) == 0 {
		return nil, nil, ErrEmptyInput
	}

	ordered := make([]model.Segment, len(segments))
	copy(ordered, segments)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Ordinal < ordered[j].Ordinal })

	for i, seg := range ordered {
		if seg.Ordinal != i {
			return nil, nil, &Error{Code: InvalidOrder, Detail: fmt.Sprintf("expected ordinal %d, got %d", i, seg.Ordinal)}
		}
		if seg.LocalPath == "" {
			return nil, nil, &Error{Code: InvalidSegment, Detail: fmt.Sprintf("segment %d is not staged", i)}
		}
		if !validDuration(seg.Duration) {
			return nil, nil, &Error{Code: InvalidSegment, Detail: fmt.Sprintf("segment %d has invalid duration %v", i, seg.Duration)}
		}
	}

	between, err := transitionEntry(transition)
	if err != nil {
		return nil, nil, err
	}

	entries := make([]model.PlanEntry, 0, 2*len(ordered)-1)
	markers := make([]model.ChapterMarker, 0, len(ordered))
	cumulative := 0.0

	for i, seg := range ordered {
		markers = append(markers, model.ChapterMarker{
			Index:     i,
			Label:     seg.DisplayLabel(),
			StartTime: cumulative,
		})
		entries = append(entries, model.PlanEntry{
			Kind:         model.EntrySegment,
			Path:         seg.LocalPath,
			Duration:     seg.Duration,
			SegmentIndex: i,
		})
		cumulative += seg.Duration

		if between != nil && i < len(ordered)-1 {
			entries = append(entries, *between)
			cumulative += between.Duration
		}
	}

	return model.NewConcatenationPlan(entries), markers, nil
}

func transitionEntry(t *model.TransitionAsset) (*model.PlanEntry, error) {
	if t == nil {
		return nil, nil
	}
	switch t.Kind {
	case model.TransitionNone, "":
		return nil, nil
	case model.TransitionSilence:
		if !validDuration(t.Duration) {
			return nil, &Error{Code: InvalidTransition, Detail: fmt.Sprintf("invalid silence duration %v", t.Duration)}
		}
		if t.Duration == 0 {
			return nil, nil
		}
		return &model.PlanEntry{Kind: model.EntrySilence, Duration: t.Duration, SegmentIndex: -1}, nil
	case model.TransitionClip:
		if t.LocalPath == "" {
			return nil, &Error{Code: InvalidTransition, Detail: "transition clip is not staged"}
		}
		if !validDuration(t.Duration) || t.Duration == 0 {
			return nil, &Error{Code: InvalidTransition, Detail: fmt.Sprintf("transition clip has unresolved duration %v", t.Duration)}
		}
		return &model.PlanEntry{Kind: model.EntryClip, Path: t.LocalPath, Duration: t.Duration, SegmentIndex: -1}, nil
	default:
		return nil, &Error{Code: InvalidTransition, Detail: fmt.Sprintf("unknown transition kind %q", t.Kind)}
	}
}

func validDuration(d float64) bool {
	return d >= 0 && !math.IsNaN(d) && !math.IsInf(d, 0)
}

// Planner resolves transition policies before building plans.
type Planner struct {
	prober audio.Prober
}

// NewPlanner creates a Planner that probes fixed clips with prober.
func NewPlanner(prober audio.Prober) *Planner {
	return &Planner{prober: prober}
}

// ResolveTransition turns a policy into an asset with a known duration. For
// FixedClip the clip must already be staged at clipPath.
func (p *Planner) ResolveTransition(ctx context.Context, policy model.TransitionPolicy, clipPath string) (*model.TransitionAsset, error) {
	switch policy.Kind {
	case model.TransitionNone, "":
		return nil, nil
	case model.TransitionSilence:
		return &model.TransitionAsset{Kind: model.TransitionSilence, Duration: policy.Seconds}, nil
	case model.TransitionClip:
		if clipPath == "" {
			return nil, &Error{Code: InvalidTransition, Detail: "transition clip is not staged"}
		}
		d, err := p.prober.Duration(ctx, clipPath)
		if err != nil {
			return nil, err
		}
		return &model.TransitionAsset{Kind: model.TransitionClip, LocalPath: clipPath, Duration: d}, nil
	default:
		return nil, &Error{Code: InvalidTransition, Detail: fmt.Sprintf("unknown transition kind %q", policy.Kind)}
	}
}

// BuildPlan resolves the transition and then builds the plan. The clip is only
// probed when there is more than one segment, since a single segment never
// gets a transition.
func (p *Planner) BuildPlan(ctx context.Context, segments []model.Segment, policy model.TransitionPolicy, clipPath string) (*model.ConcatenationPlan, []model.ChapterMarker, error) {
	if len(segments) == 0 {
		return nil, nil, ErrEmptyInput
	}
	var asset *model.TransitionAsset
	if len(segments) > 1 {
		var err error
		if asset, err = p.ResolveTransition(ctx, policy, clipPath); err != nil {
			return nil, nil, err
		}
	}
	return Build(segments, asset)
}
