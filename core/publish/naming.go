package publish

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"strings"

	"showmerge/core/audio"
)

var nonAlphaNumeric = regexp.MustCompile(`[^a-zA-Z0-9_\-\.]`)
var multipleSpaces = regexp.MustCompile(`\s+`)

const maxBaseLength = 150

// SafeBaseName turns an output naming hint into the show's base identity:
// a trailing audio extension dropped, whitespace collapsed to underscores, anything outside
// [a-zA-Z0-9_-.] removed.
func SafeBaseName(outputName string) string {
	base := strings.TrimSpace(outputName)
	if ext := path.Ext(base); audio.IsAudioExtension(ext) {
		base = strings.TrimSuffix(base, ext)
	}
	base = multipleSpaces.ReplaceAllString(base, "_")
	base = nonAlphaNumeric.ReplaceAllString(base, "")
	base = strings.Trim(base, ".")
	if len(base) > maxBaseLength {
		base = base[:maxBaseLength]
	}
	return base
}

// RevisionCounter hands out increasing revision numbers per key.
type RevisionCounter interface {
	Next(ctx context.Context, key string) (int64, error)
}

// ObjectNames are the remote names of one published show.
type ObjectNames struct {
	Base     string
	Revision int64 // 0 when revisions are disabled
	Audio    string
	Chapters string
}

// Namer derives object names from a folder and a base identity. Without a
// counter the same base always maps to the same names and republishing
// overwrites.
type Namer struct {
	counter RevisionCounter
}

// NewNamer creates a Namer; counter may be nil.
func NewNamer(counter RevisionCounter) *Namer {
	return &Namer{counter: counter}
}

// RevisionKey is the counter key for a show.
func RevisionKey(folder, base string) string {
	return "showmerge:revision:" + strings.Trim(path.Join(folder, base), "/")
}

// Names returns the object names for the next publication of base.
func (n *Namer) Names(ctx context.Context, folder, base, audioExt string) (ObjectNames, error) {
	names := ObjectNames{Base: base}
	stem := base
	if n != nil && n.counter != nil {
		rev, err := n.counter.Next(ctx, RevisionKey(folder, base))
		if err != nil {
			return ObjectNames{}, fmt.Errorf("next revision for %s: %w", base, err)
		}
		names.Revision = rev
		stem = fmt.Sprintf("%s-r%04d", base, rev)
	}
	names.Audio = strings.TrimPrefix(path.Join(folder, stem+audioExt), "/")
	names.Chapters = strings.TrimPrefix(path.Join(folder, stem+".chapters.json"), "/")
	return names, nil
}
