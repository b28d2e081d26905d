package model

// EntryKind distinguishes segment entries from transition entries in a plan.
type EntryKind int

const (
	EntrySegment EntryKind = iota
	EntryClip
	EntrySilence
)

// PlanEntry is one encoder input, in play order.
type PlanEntry struct {
	Kind         EntryKind
	Path         string  // Local file; empty for EntrySilence
	Duration     float64 // Seconds
	SegmentIndex int     // Index into the ordered segments; -1 for transitions
}

// IsTransition reports whether the entry was inserted between segments.
func (e PlanEntry) IsTransition() bool {
	return e.Kind != EntrySegment
}

// ConcatenationPlan is the ordered list of encoder inputs. It cannot be
// modified once built.
type ConcatenationPlan struct {
	entries []PlanEntry
	total   float64
}

// NewConcatenationPlan copies entries into a new plan.
func NewConcatenationPlan(entries []PlanEntry) *ConcatenationPlan {
	p := &ConcatenationPlan{entries: make([]PlanEntry, len(entries))}
	copy(p.entries, entries)
	for _, e := range entries {
		p.total += e.Duration
	}
	return p
}

// Entries returns a copy of the plan's entries.
func (p *ConcatenationPlan) Entries() []PlanEntry {
	out := make([]PlanEntry, len(p.entries))
	copy(out, p.entries)
	return out
}

func (p *ConcatenationPlan) Len() int {
	return len(p.entries)
}

// TotalDuration is the expected length of the encoded output in seconds.
func (p *ConcatenationPlan) TotalDuration() float64 {
	return p.total
}

// TransitionCount returns how many transition entries the plan holds.
func (p *ConcatenationPlan) TransitionCount() int {
	n := 0
	for _, e := range p.entries {
		if e.IsTransition() {
			n++
		}
	}
	return n
}
