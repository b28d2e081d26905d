package model

import "time"

// SegmentSource is an explicitly listed input segment.
type SegmentSource struct {
	URL   string `json:"url"`
	Label string `json:"label,omitempty"`
}

// MergeRequest is the inbound payload for one merge.
type MergeRequest struct {
	Files        []string          `json:"files,omitempty"`
	Segments     []SegmentSource   `json:"segments,omitempty"`
	Folder       string            `json:"folder,omitempty"` // Discover segments from this remote folder
	OutputName   string            `json:"outputName"`
	TargetFolder string            `json:"targetFolder,omitempty"`
	Transition   *TransitionPolicy `json:"transition,omitempty"`

	Bitrate    string `json:"bitrate,omitempty"`
	SampleRate int    `json:"sampleRate,omitempty"`
	Channels   int    `json:"channels,omitempty"`
	Codec      string `json:"codec,omitempty"`

	FadeSeconds   *float64 `json:"fadeSeconds,omitempty"`
	Compression   string   `json:"compression,omitempty"` // Preset name, or "off"
	CleanupChunks bool     `json:"cleanupChunks,omitempty"`
}

// ExplicitSegments returns the listed segments in request order. Discovery
// requests return nil.
func (r *MergeRequest) ExplicitSegments() []Segment {
	var out []Segment
	for _, f := range r.Files {
		out = append(out, Segment{SourceURL: f, Ordinal: len(out)})
	}
	for _, s := range r.Segments {
		out = append(out, Segment{SourceURL: s.URL, Label: s.Label, Ordinal: len(out)})
	}
	return out
}

// AudioParams are passed through unmodified to the encoder.
type AudioParams struct {
	SampleRate int    `json:"sampleRate"`
	Channels   int    `json:"channels"`
	Codec      string `json:"codec"`
	Bitrate    string `json:"bitrate"`
}

// FilterChain is the optional per-segment and post-concat processing.
type FilterChain struct {
	FadeSeconds float64 // Fade in and out on every segment; 0 disables
	Compressor  string  // acompressor expression applied after concat; empty disables
}

// Enabled reports whether any filter is requested.
func (f FilterChain) Enabled() bool {
	return f.FadeSeconds > 0 || f.Compressor != ""
}

// MergeResult is the successful outcome of a run.
type MergeResult struct {
	RunID         string          `json:"runId"`
	FinalAudioURL string          `json:"finalAudioUrl"`
	ChaptersURL   string          `json:"chaptersUrl"`
	Chapters      []ChapterMarker `json:"chapters"`
	TotalSeconds  float64         `json:"totalSeconds"`
	Warnings      []string        `json:"warnings,omitempty"`
}

// Run statuses stored on MergeRecord.
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// MergeRecord is the persisted history entry of one run.
type MergeRecord struct {
	ID           string     `gorm:"primaryKey;size:36" json:"id"`
	ShowName     string     `gorm:"size:191;index" json:"showName"`
	Folder       string     `gorm:"size:255" json:"folder,omitempty"`
	SegmentCount int        `json:"segmentCount"`
	Stage        string     `gorm:"size:32" json:"stage"`
	Status       string     `gorm:"size:16;index" json:"status"`
	AudioURL     string     `gorm:"size:1024" json:"audioUrl,omitempty"`
	ChaptersURL  string     `gorm:"size:1024" json:"chaptersUrl,omitempty"`
	TotalSeconds float64    `json:"totalSeconds"`
	ErrorKind    string     `gorm:"size:32" json:"errorKind,omitempty"`
	ErrorMessage string     `gorm:"type:text" json:"errorMessage,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	FinishedAt   *time.Time `json:"finishedAt,omitempty"`
}

// TableName 指定表名
func (MergeRecord) TableName() string {
	return "merge_runs"
}
