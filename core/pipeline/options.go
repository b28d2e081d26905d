package pipeline

import (
	"showmerge/config"
	"showmerge/model"
)

// Options is the explicit configuration an Orchestrator is built with.
type Options struct {
	StagingRoot        string // Parent of per-run staging directories; empty means os.TempDir()
	OutputFolder       string
	Audio              model.AudioParams
	SilenceSeconds     float64
	FadeSeconds        float64
	CompressionPreset  string
	CompressionEnabled bool
	SwooshURL          string // Default clip for the "clip" transition
	FetchConcurrency   int    // 1 fetches sequentially
	ChunkCleanupPrefix string
}

// OptionsFromConfig projects the application config into pipeline options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		StagingRoot:  cfg.StagingRoot,
		OutputFolder: cfg.OutputFolder,
		Audio: model.AudioParams{
			SampleRate: cfg.SampleRate,
			Channels:   cfg.Channels,
			Codec:      cfg.AudioCodec,
			Bitrate:    cfg.AudioBitrate,
		},
		SilenceSeconds:     cfg.SilenceSeconds,
		FadeSeconds:        cfg.FadeSeconds,
		CompressionPreset:  cfg.CompressionPreset,
		CompressionEnabled: cfg.CompressionEnabled,
		SwooshURL:          cfg.SwooshURL,
		FetchConcurrency:   cfg.FetchConcurrency,
		ChunkCleanupPrefix: cfg.ChunkCleanupPrefix,
	}
}

func (o Options) concurrency() int {
	if o.FetchConcurrency < 1 {
		return 1
	}
	return o.FetchConcurrency
}
