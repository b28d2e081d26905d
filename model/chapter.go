package model

import (
	"encoding/json"
	"math"
)

// ChapterMarker is a navigable point in the merged output.
type ChapterMarker struct {
	Index     int     `json:"index"`
	Label     string  `json:"label"`
	StartTime float64 `json:"startTime"` // Seconds from the start of the merged show
}

// ChapterTable is the published chapter index of one show.
type ChapterTable struct {
	Show         string          `json:"show"`
	TotalSeconds float64         `json:"totalSeconds"`
	Chapters     []ChapterMarker `json:"chapters"`
}

// MarshalJSON rounds times to hundredths; accumulation keeps full precision.
func (t ChapterTable) MarshalJSON() ([]byte, error) {
	type wire ChapterTable
	out := wire{
		Show:         t.Show,
		TotalSeconds: roundHundredths(t.TotalSeconds),
		Chapters:     make([]ChapterMarker, len(t.Chapters)),
	}
	for i, c := range t.Chapters {
		c.StartTime = roundHundredths(c.StartTime)
		out.Chapters[i] = c
	}
	return json.Marshal(out)
}

func roundHundredths(v float64) float64 {
	return math.Round(v*100) / 100
}
