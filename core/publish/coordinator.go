package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"showmerge/core/audio"
	"showmerge/logger"
	"showmerge/model"
)

// ObjectStore is the remote asset store used for publishing.
type ObjectStore interface {
	PutFile(ctx context.Context, objectName, localPath, contentType string) (string, error)
	PutBytes(ctx context.Context, objectName string, data []byte, contentType string) (string, error)
	Remove(ctx context.Context, objectName string) error
	RemovePrefix(ctx context.Context, prefix string) (int, error)
}

// Error reports a failed upload.
type Error struct {
	Object string
	Err    error
}

func (e *Error) Error() string {
	if e.Object == "" {
		return fmt.Sprintf("publish: %v", e.Err)
	}
	return fmt.Sprintf("publish %s: %v", e.Object, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Published holds the public locations of a show.
type Published struct {
	AudioURL    string
	ChaptersURL string
	Names       ObjectNames
}

// Coordinator uploads merged shows and removes local staging.
type Coordinator struct {
	store ObjectStore
	namer *Namer
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(store ObjectStore, namer *Namer) *Coordinator {
	if namer == nil {
		namer = NewNamer(nil)
	}
	return &Coordinator{store: store, namer: namer}
}

// Publish uploads the merged artifact and its chapter table as two objects
// under folder. If the chapter upload fails the audio object is removed again
// so a failed publish never leaves half a show behind.
func (c *Coordinator) Publish(ctx context.Context, artifactPath string, table model.ChapterTable, folder string) (*Published, error) {
	ext := filepath.Ext(artifactPath)
	names, err := c.namer.Names(ctx, folder, table.Show, ext)
	if err != nil {
		return nil, &Error{Err: err}
	}

	chapters, err := json.MarshalIndent(table, "", "  ")
	if err != nil {
		return nil, &Error{Object: names.Chapters, Err: err}
	}

	audioURL, err := c.store.PutFile(ctx, names.Audio, artifactPath, audio.ContentType(ext))
	if err != nil {
		return nil, &Error{Object: names.Audio, Err: err}
	}

	chaptersURL, err := c.store.PutBytes(ctx, names.Chapters, chapters, "application/json")
	if err != nil {
		if rmErr := c.store.Remove(context.WithoutCancel(ctx), names.Audio); rmErr != nil {
			logger.Warn("failed to roll back audio object", logger.String("object", names.Audio), logger.ErrorField(rmErr))
		}
		return nil, &Error{Object: names.Chapters, Err: err}
	}

	return &Published{AudioURL: audioURL, ChaptersURL: chaptersURL, Names: names}, nil
}

// CleanupChunks deletes intermediate chunk objects under prefix. It is best
// effort: the returned error is for reporting only.
func (c *Coordinator) CleanupChunks(ctx context.Context, prefix string) (int, error) {
	if prefix == "" {
		return 0, nil
	}
	n, err := c.store.RemovePrefix(ctx, prefix)
	if err != nil {
		logger.Warn("remote chunk cleanup failed", logger.String("prefix", prefix), logger.ErrorField(err))
		return n, err
	}
	logger.Info("remote chunks removed", logger.String("prefix", prefix), logger.Int("count", n))
	return n, nil
}

// Cleanup removes the staging directory tree. It never panics and is safe to
// call on a directory that is already gone.
func Cleanup(stagingDir string) error {
	if stagingDir == "" {
		return nil
	}
	if err := os.RemoveAll(stagingDir); err != nil {
		return fmt.Errorf("remove staging directory %s: %w", stagingDir, err)
	}
	if _, err := os.Stat(stagingDir); !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("staging directory %s still present", stagingDir)
	}
	return nil
}
