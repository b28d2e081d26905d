package audio

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"showmerge/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		name    string
		output  string
		want    float64
		wantErr bool
	}{
		{name: "plain", output: "12.345000\n", want: 12.345},
		{name: "integer", output: "30", want: 30},
		{name: "padded", output: "  7.5 \r\n", want: 7.5},
		{name: "empty", output: "", wantErr: true},
		{name: "not available", output: "N/A\n", wantErr: true},
		{name: "garbage", output: "duration=abc", wantErr: true},
		{name: "negative", output: "-1.0", wantErr: true},
		{name: "nan", output: "nan", wantErr: true},
		{name: "inf", output: "inf\n", wantErr: true},
		{name: "negative inf", output: "-Inf", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDuration([]byte(tt.output))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestFFprobeDuration_MissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.mp3")
	_, err := NewFFprobe("ffprobe").Duration(context.Background(), missing)

	var probeErr *ProbeError
	require.True(t, errors.As(err, &probeErr))
	assert.Equal(t, missing, probeErr.Path)
}

func TestFFmpegEncoder_MissingBinary(t *testing.T) {
	plan := model.NewConcatenationPlan([]model.PlanEntry{
		{Kind: model.EntrySegment, Path: "a.mp3", Duration: 1},
	})
	out := filepath.Join(t.TempDir(), "show.mp3")
	params := model.AudioParams{SampleRate: 44100, Channels: 2, Codec: "libmp3lame", Bitrate: "192k"}

	err := NewFFmpegEncoder(filepath.Join(t.TempDir(), "no-ffmpeg")).Encode(context.Background(), plan, out, params, model.FilterChain{})

	var encErr *EncodeError
	require.True(t, errors.As(err, &encErr))
	assert.Equal(t, -1, encErr.ExitCode)
	assert.NoFileExists(t, out)
}

func TestCompressorPreset(t *testing.T) {
	expr, err := CompressorPreset("")
	require.NoError(t, err)
	assert.Equal(t, compressorPresets["normal"], expr)

	expr, err = CompressorPreset("Radio")
	require.NoError(t, err)
	assert.Contains(t, expr, "ratio=4")

	expr, err = CompressorPreset("off")
	require.NoError(t, err)
	assert.Empty(t, expr)

	_, err = CompressorPreset("loud")
	assert.ErrorIs(t, err, ErrUnknownPreset)
}

func TestBuildArgs_SilenceAndClipOrder(t *testing.T) {
	plan := model.NewConcatenationPlan([]model.PlanEntry{
		{Kind: model.EntrySegment, Path: "/stage/segment_000.mp3", Duration: 10, SegmentIndex: 0},
		{Kind: model.EntrySilence, Duration: 2, SegmentIndex: -1},
		{Kind: model.EntrySegment, Path: "/stage/segment_001.mp3", Duration: 20, SegmentIndex: 1},
	})
	params := model.AudioParams{SampleRate: 24000, Channels: 1, Codec: "libmp3lame", Bitrate: "128k"}

	args, err := BuildArgs(plan, "/stage/show.mp3", params, model.FilterChain{})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"-hide_banner", "-nostdin", "-y",
		"-i", "/stage/segment_000.mp3",
		"-f", "lavfi", "-t", "2", "-i", "anullsrc=channel_layout=mono:sample_rate=24000",
		"-i", "/stage/segment_001.mp3",
	}, args[:13])
	assert.Equal(t, "/stage/show.mp3", args[len(args)-1])
	assert.Contains(t, args, "-filter_complex")
	assert.Contains(t, args, "128k")
	assert.Equal(t, []string{"-ar", "24000", "-ac", "1"}, args[len(args)-5:len(args)-1])
}

func TestBuildArgs_RejectsEmptyPlan(t *testing.T) {
	_, err := BuildArgs(model.NewConcatenationPlan(nil), "out.mp3", model.AudioParams{SampleRate: 44100, Channels: 2}, model.FilterChain{})
	assert.Error(t, err)
}

func TestBuildFilterGraph(t *testing.T) {
	plan := model.NewConcatenationPlan([]model.PlanEntry{
		{Kind: model.EntrySegment, Path: "a.mp3", Duration: 10, SegmentIndex: 0},
		{Kind: model.EntryClip, Path: "swoosh.mp3", Duration: 1.5, SegmentIndex: -1},
		{Kind: model.EntrySegment, Path: "b.mp3", Duration: 0.2, SegmentIndex: 1},
	})
	params := model.AudioParams{SampleRate: 44100, Channels: 2}

	t.Run("plain concat", func(t *testing.T) {
		graph := BuildFilterGraph(plan, params, model.FilterChain{})
		assert.Contains(t, graph, "[0:a]aresample=44100,aformat=sample_fmts=fltp:sample_rates=44100:channel_layouts=stereo[a0];")
		assert.Contains(t, graph, "[a0][a1][a2]concat=n=3:v=0:a=1[out]")
		assert.NotContains(t, graph, "afade")
	})

	t.Run("fades only on segments and compressor after concat", func(t *testing.T) {
		graph := BuildFilterGraph(plan, params, model.FilterChain{FadeSeconds: 0.15, Compressor: "acompressor=ratio=3"})
		assert.Contains(t, graph, "afade=t=in:st=0:d=0.15,afade=t=out:st=9.850:d=0.15[a0]")
		assert.Contains(t, graph, "channel_layouts=stereo[a1]")
		// 0.2s segment: fade clamps to half its length
		assert.Contains(t, graph, "afade=t=in:st=0:d=0.1,afade=t=out:st=0.100:d=0.1[a2]")
		assert.Contains(t, graph, "concat=n=3:v=0:a=1,acompressor=ratio=3[out]")
	})
}
