package publish

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"showmerge/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	files    map[string]string
	blobs    map[string][]byte
	removed  []string
	failPut  map[string]error
	prefixes []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{files: map[string]string{}, blobs: map[string][]byte{}, failPut: map[string]error{}}
}

func (f *fakeStore) PutFile(_ context.Context, objectName, localPath, _ string) (string, error) {
	if err := f.failPut[objectName]; err != nil {
		return "", err
	}
	f.files[objectName] = localPath
	return "https://cdn.example.com/bucket/" + objectName, nil
}

func (f *fakeStore) PutBytes(_ context.Context, objectName string, data []byte, _ string) (string, error) {
	if err := f.failPut[objectName]; err != nil {
		return "", err
	}
	f.blobs[objectName] = data
	return "https://cdn.example.com/bucket/" + objectName, nil
}

func (f *fakeStore) Remove(_ context.Context, objectName string) error {
	f.removed = append(f.removed, objectName)
	return nil
}

func (f *fakeStore) RemovePrefix(_ context.Context, prefix string) (int, error) {
	f.prefixes = append(f.prefixes, prefix)
	return 3, nil
}

type counter struct{ n int64 }

func (c *counter) Next(context.Context, string) (int64, error) {
	c.n++
	return c.n, nil
}

func table() model.ChapterTable {
	return model.ChapterTable{
		Show:         "Morning_Show",
		TotalSeconds: 47,
		Chapters: []model.ChapterMarker{
			{Index: 0, Label: "intro", StartTime: 0},
			{Index: 1, Label: "news", StartTime: 12.004},
		},
	}
}

func TestSafeBaseName(t *testing.T) {
	assert.Equal(t, "Morning_Show", SafeBaseName("Morning Show.mp3"))
	assert.Equal(t, "ep-12_final", SafeBaseName("  ep-12   final "))
	assert.Equal(t, "abc", SafeBaseName("a/b\\c"))
	assert.Equal(t, "", SafeBaseName("???"))
	assert.Equal(t, "Episode_1.5_Interview", SafeBaseName("Episode 1.5 Interview"))
	assert.Equal(t, "Episode_1.6_Recap", SafeBaseName("Episode 1.6 Recap.m4a"))
	assert.Equal(t, "v2.notes", SafeBaseName("v2.notes"))
	assert.NotEqual(t, SafeBaseName("Episode 1.5 Interview"), SafeBaseName("Episode 1.6 Recap"))
}

func TestNamer_WithoutCounterIsStable(t *testing.T) {
	n := NewNamer(nil)
	first, err := n.Names(context.Background(), "audio-webflow", "Morning_Show", ".mp3")
	require.NoError(t, err)
	second, err := n.Names(context.Background(), "audio-webflow", "Morning_Show", ".mp3")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, "audio-webflow/Morning_Show.mp3", first.Audio)
	assert.Equal(t, "audio-webflow/Morning_Show.chapters.json", first.Chapters)
}

func TestNamer_WithCounterIncrements(t *testing.T) {
	n := NewNamer(&counter{})
	first, err := n.Names(context.Background(), "shows", "ep1", ".m4a")
	require.NoError(t, err)
	second, err := n.Names(context.Background(), "shows", "ep1", ".m4a")
	require.NoError(t, err)

	assert.Equal(t, "shows/ep1-r0001.m4a", first.Audio)
	assert.Equal(t, "shows/ep1-r0002.chapters.json", second.Chapters)
	assert.Equal(t, first.Base, second.Base)
	assert.Equal(t, "showmerge:revision:shows/ep1", RevisionKey("shows", "ep1"))
}

func TestPublish_UploadsAudioAndChapters(t *testing.T) {
	store := newFakeStore()
	c := NewCoordinator(store, nil)

	pub, err := c.Publish(context.Background(), "/stage/Morning_Show.mp3", table(), "audio-webflow")
	require.NoError(t, err)

	assert.Equal(t, "https://cdn.example.com/bucket/audio-webflow/Morning_Show.mp3", pub.AudioURL)
	assert.Equal(t, "https://cdn.example.com/bucket/audio-webflow/Morning_Show.chapters.json", pub.ChaptersURL)
	assert.Equal(t, "/stage/Morning_Show.mp3", store.files["audio-webflow/Morning_Show.mp3"])

	var decoded struct {
		Show     string `json:"show"`
		Chapters []struct {
			Label     string  `json:"label"`
			StartTime float64 `json:"startTime"`
		} `json:"chapters"`
	}
	require.NoError(t, json.Unmarshal(store.blobs["audio-webflow/Morning_Show.chapters.json"], &decoded))
	assert.Equal(t, "Morning_Show", decoded.Show)
	assert.Equal(t, 12.0, decoded.Chapters[1].StartTime)
}

func TestPublish_ChapterFailureRollsBackAudio(t *testing.T) {
	store := newFakeStore()
	store.failPut["shows/Morning_Show.chapters.json"] = errors.New("bucket full")

	_, err := NewCoordinator(store, nil).Publish(context.Background(), "/stage/x.mp3", table(), "shows")

	var pubErr *Error
	require.True(t, errors.As(err, &pubErr))
	assert.Equal(t, "shows/Morning_Show.chapters.json", pubErr.Object)
	assert.Equal(t, []string{"shows/Morning_Show.mp3"}, store.removed)
}

func TestPublish_AudioFailure(t *testing.T) {
	store := newFakeStore()
	store.failPut["shows/Morning_Show.mp3"] = errors.New("denied")

	_, err := NewCoordinator(store, nil).Publish(context.Background(), "/stage/x.mp3", table(), "shows")
	var pubErr *Error
	require.True(t, errors.As(err, &pubErr))
	assert.Empty(t, store.blobs)
}

func TestCleanupChunks(t *testing.T) {
	store := newFakeStore()
	c := NewCoordinator(store, nil)

	n, err := c.CleanupChunks(context.Background(), "FFmpeg-converter/")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = c.CleanupChunks(context.Background(), "")
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, []string{"FFmpeg-converter/"}, store.prefixes)
}

func TestCleanup_RemovesTree(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "merge-run")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nested", "segment_000.mp3"), []byte("x"), 0644))

	require.NoError(t, Cleanup(dir))
	assert.NoDirExists(t, dir)

	// already gone
	assert.NoError(t, Cleanup(dir))
	assert.NoError(t, Cleanup(""))
}
