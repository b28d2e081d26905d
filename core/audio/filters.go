package audio

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"showmerge/model"
)

// Compressor presets for the post-concat dynamic-range stage.
var compressorPresets = map[string]string{
	"light":   "acompressor=threshold=-15dB:ratio=2:attack=20:release=300:makeup=2",
	"normal":  "acompressor=threshold=-18dB:ratio=3:attack=15:release=200:makeup=3",
	"radio":   "acompressor=threshold=-20dB:ratio=4:attack=10:release=250:makeup=4",
	"crushed": "acompressor=threshold=-40dB:ratio=20:attack=1:release=50:makeup=15",
}

// ErrUnknownPreset is returned for compressor preset names that do not exist.
var ErrUnknownPreset = errors.New("unknown compression preset")

// CompressorPreset resolves a preset name to its filter expression. An empty
// name selects "normal"; "off" and "none" disable compression.
func CompressorPreset(name string) (string, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	switch name {
	case "":
		return compressorPresets["normal"], nil
	case "off", "none":
		return "", nil
	}
	expr, ok := compressorPresets[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownPreset, name)
	}
	return expr, nil
}

func channelLayout(channels int) string {
	switch channels {
	case 1:
		return "mono"
	case 2:
		return "stereo"
	default:
		return fmt.Sprintf("%dc", channels)
	}
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// fadeFilter returns the afade pair for one segment. The fade never exceeds
// half the segment so fade-in and fade-out do not overlap.
func fadeFilter(duration, fade float64) string {
	if fade > duration/2 {
		fade = duration / 2
	}
	if fade <= 0 {
		return ""
	}
	outStart := duration - fade
	if outStart < 0 {
		outStart = 0
	}
	return fmt.Sprintf("afade=t=in:st=0:d=%s,afade=t=out:st=%.3f:d=%s",
		formatSeconds(fade), outStart, formatSeconds(fade))
}

// BuildFilterGraph builds the filter_complex expression for a plan. Every
// input is resampled to the target format before concat so that the single
// encode is uniform and timestamps line up with the planned durations.
func BuildFilterGraph(plan *model.ConcatenationPlan, params model.AudioParams, filters model.FilterChain) string {
	entries := plan.Entries()
	normalise := fmt.Sprintf("aresample=%d,aformat=sample_fmts=fltp:sample_rates=%d:channel_layouts=%s",
		params.SampleRate, params.SampleRate, channelLayout(params.Channels))

	var b strings.Builder
	for i, entry := range entries {
		fmt.Fprintf(&b, "[%d:a]%s", i, normalise)
		if entry.Kind == model.EntrySegment && filters.FadeSeconds > 0 {
			if fade := fadeFilter(entry.Duration, filters.FadeSeconds); fade != "" {
				b.WriteString("," + fade)
			}
		}
		fmt.Fprintf(&b, "[a%d];", i)
	}
	for i := range entries {
		fmt.Fprintf(&b, "[a%d]", i)
	}
	fmt.Fprintf(&b, "concat=n=%d:v=0:a=1", len(entries))
	if filters.Compressor != "" {
		b.WriteString("," + filters.Compressor)
	}
	b.WriteString("[out]")
	return b.String()
}

// BuildArgs builds the complete ffmpeg argument list for one encode.
func BuildArgs(plan *model.ConcatenationPlan, outputPath string, params model.AudioParams, filters model.FilterChain) ([]string, error) {
	if plan == nil || plan.Len() == 0 {
		return nil, errors.New("empty concatenation plan")
	}
	if params.SampleRate <= 0 || params.Channels <= 0 {
		return nil, fmt.Errorf("invalid audio params: sample rate %d, channels %d", params.SampleRate, params.Channels)
	}

	args := []string{"-hide_banner", "-nostdin", "-y"}
	for _, entry := range plan.Entries() {
		switch entry.Kind {
		case model.EntrySilence:
			args = append(args,
				"-f", "lavfi",
				"-t", formatSeconds(entry.Duration),
				"-i", fmt.Sprintf("anullsrc=channel_layout=%s:sample_rate=%d", channelLayout(params.Channels), params.SampleRate),
			)
		default:
			args = append(args, "-i", entry.Path)
		}
	}

	args = append(args,
		"-filter_complex", BuildFilterGraph(plan, params, filters),
		"-map", "[out]",
		"-c:a", params.Codec,
	)
	if params.Bitrate != "" {
		args = append(args, "-b:a", params.Bitrate)
	}
	args = append(args,
		"-ar", strconv.Itoa(params.SampleRate),
		"-ac", strconv.Itoa(params.Channels),
		outputPath,
	)
	return args, nil
}

// OutputExtension returns the container extension for an encoder codec.
func OutputExtension(codec string) string {
	switch strings.ToLower(codec) {
	case "aac", "libfdk_aac":
		return ".m4a"
	case "libopus", "opus":
		return ".opus"
	case "libvorbis", "vorbis":
		return ".ogg"
	case "flac":
		return ".flac"
	case "pcm_s16le", "pcm_s24le":
		return ".wav"
	default:
		return ".mp3"
	}
}

// IsAudioExtension reports whether ext (with leading dot) names an audio
// container.
func IsAudioExtension(ext string) bool {
	switch strings.ToLower(ext) {
	case ".mp3", ".wav", ".flac", ".m4a", ".aac", ".ogg", ".opus":
		return true
	}
	return false
}

// ContentType returns the MIME type for an output extension.
func ContentType(ext string) string {
	switch strings.ToLower(ext) {
	case ".m4a":
		return "audio/mp4"
	case ".opus", ".ogg":
		return "audio/ogg"
	case ".flac":
		return "audio/flac"
	case ".wav":
		return "audio/wav"
	default:
		return "audio/mpeg"
	}
}
