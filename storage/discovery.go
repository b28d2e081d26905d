package storage

import (
	"context"
	"fmt"

	"showmerge/model"
)

// Discoverer finds merge segments stored in a bucket folder.
type Discoverer struct {
	store      *Store
	maxResults int
}

// NewDiscoverer creates a Discoverer returning at most maxResults segments.
func NewDiscoverer(store *Store, maxResults int) *Discoverer {
	return &Discoverer{store: store, maxResults: maxResults}
}

// Discover lists media objects in folder ordered by key and returns them as
// segments with presigned source URLs.
func (d *Discoverer) Discover(ctx context.Context, folder string) ([]model.Segment, error) {
	objects, err := d.store.ListMedia(ctx, folder, d.maxResults)
	if err != nil {
		return nil, fmt.Errorf("discover %s: %w", folder, err)
	}

	segments := make([]model.Segment, 0, len(objects))
	for i, obj := range objects {
		u, err := d.store.PresignedURL(ctx, obj.Key)
		if err != nil {
			return nil, err
		}
		segments = append(segments, model.Segment{
			SourceURL: u,
			Ordinal:   i,
			Label:     model.LabelFromSource(obj.Key),
		})
	}
	return segments, nil
}
