package cmd

import (
	"context"
	"fmt"

	"showmerge/config"
	"showmerge/core/audio"
	"showmerge/core/fetch"
	"showmerge/core/pipeline"
	"showmerge/core/publish"
	"showmerge/db"
	"showmerge/logger"
	"showmerge/storage"
)

// buildOrchestrator assembles the pipeline from cfg: MinIO for discovery and
// publishing, ffprobe and ffmpeg for timing and encoding, and Redis for
// revision numbers when enabled.
func buildOrchestrator(ctx context.Context, cfg *config.Config, observers ...pipeline.Observer) (*pipeline.Orchestrator, error) {
	if err := audio.CheckAvailable(cfg.FFmpegPath, cfg.FFprobePath); err != nil {
		return nil, err
	}

	store, err := storage.NewStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("无法连接到MinIO: %w", err)
	}

	var counter publish.RevisionCounter
	if cfg.RedisEnabled {
		client, err := db.ConnectRedis(cfg)
		if err != nil {
			return nil, err
		}
		counter = db.NewRevisionCounter(client)
		logger.Info("revision counter enabled", logger.String("redis", cfg.RedisHost+":"+cfg.RedisPort))
	}

	return pipeline.New(pipeline.OptionsFromConfig(cfg), pipeline.Dependencies{
		Fetcher:    fetch.New(nil, cfg.FetchTimeout),
		Prober:     audio.NewFFprobe(cfg.FFprobePath),
		Encoder:    audio.NewFFmpegEncoder(cfg.FFmpegPath),
		Discoverer: storage.NewDiscoverer(store, cfg.DiscoveryMaxResults),
		Publisher:  publish.NewCoordinator(store, publish.NewNamer(counter)),
		Observer:   pipeline.Observers(observers),
	}), nil
}
