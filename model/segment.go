package model

import (
	"fmt"
	"path"
	"strings"
)

// Segment is one input audio chapter of a merge, in play order.
type Segment struct {
	SourceURL string  `json:"url"`
	Ordinal   int     `json:"ordinal"`         // 0-based play position
	Label     string  `json:"label,omitempty"` // Chapter name; derived from the source when empty
	LocalPath string  `json:"-"`               // Staging path once fetched
	Duration  float64 `json:"duration"`        // Seconds, populated after probing
}

// DisplayLabel returns the label used for this segment's chapter marker.
func (s Segment) DisplayLabel() string {
	if strings.TrimSpace(s.Label) != "" {
		return strings.TrimSpace(s.Label)
	}
	if name := LabelFromSource(s.SourceURL); name != "" {
		return name
	}
	return fmt.Sprintf("Chapter %d", s.Ordinal+1)
}

// LabelFromSource derives a chapter name from the last path element of a URL
// or object key, without query string or extension.
func LabelFromSource(source string) string {
	if i := strings.IndexAny(source, "?#"); i >= 0 {
		source = source[:i]
	}
	base := path.Base(strings.TrimRight(source, "/"))
	if base == "." || base == "/" {
		return ""
	}
	return strings.TrimSuffix(base, path.Ext(base))
}

// TransitionKind identifies what is inserted between consecutive segments.
type TransitionKind string

const (
	TransitionNone    TransitionKind = "none"
	TransitionSilence TransitionKind = "silence"
	TransitionClip    TransitionKind = "clip"
)

// TransitionPolicy is the requested transition behaviour for one run.
type TransitionPolicy struct {
	Kind    TransitionKind `json:"type"`
	Seconds float64        `json:"seconds,omitempty"` // Silence length
	ClipURL string         `json:"clipUrl,omitempty"` // Fixed clip source
}

// Active reports whether anything is inserted between segments.
func (p TransitionPolicy) Active() bool {
	switch p.Kind {
	case TransitionSilence:
		return p.Seconds > 0
	case TransitionClip:
		return true
	default:
		return false
	}
}

// TransitionAsset is a resolved transition: a synthesized silence of fixed
// length or a staged clip whose duration has been probed.
type TransitionAsset struct {
	Kind      TransitionKind
	LocalPath string // Empty for silence
	Duration  float64
}
