package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransitionPolicy_Active(t *testing.T) {
	assert.True(t, TransitionPolicy{Kind: TransitionSilence, Seconds: 2}.Active())
	assert.False(t, TransitionPolicy{Kind: TransitionSilence}.Active())
	assert.True(t, TransitionPolicy{Kind: TransitionClip}.Active())
	assert.False(t, TransitionPolicy{Kind: TransitionNone}.Active())
}

func TestSegment_DisplayLabel(t *testing.T) {
	assert.Equal(t, "Intro", Segment{Label: " Intro "}.DisplayLabel())
	assert.Equal(t, "ep-01", Segment{SourceURL: "https://cdn.example.com/shows/ep-01.mp3?sig=abc"}.DisplayLabel())
	assert.Equal(t, "Chapter 3", Segment{SourceURL: "https://cdn.example.com/", Ordinal: 2}.DisplayLabel())
}
