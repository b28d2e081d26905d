package audio

import (
	"context"

	"showmerge/model"
)

// Prober measures audio files.
type Prober interface {
	// Duration returns the playing time of localPath in seconds.
	Duration(ctx context.Context, localPath string) (float64, error)
}

// Encoder renders a concatenation plan into one output file.
type Encoder interface {
	// Encode invokes the external encoder exactly once for the whole plan.
	Encode(ctx context.Context, plan *model.ConcatenationPlan, outputPath string, params model.AudioParams, filters model.FilterChain) error
}
