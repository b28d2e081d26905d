package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"showmerge/logger"
	"showmerge/model"
)

// ProbeError reports that the duration of a file could not be determined.
type ProbeError struct {
	Path string
	Err  error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("probe %s: %v", e.Path, e.Err)
}

func (e *ProbeError) Unwrap() error {
	return e.Err
}

// EncodeError wraps a failed encoder invocation.
type EncodeError struct {
	ExitCode int // -1 when the process could not be started
	Stderr   string
	Err      error
}

func (e *EncodeError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("ffmpeg exited with code %d: %v: %s", e.ExitCode, e.Err, e.Stderr)
	}
	return fmt.Sprintf("ffmpeg exited with code %d: %v", e.ExitCode, e.Err)
}

func (e *EncodeError) Unwrap() error {
	return e.Err
}

// ErrNoOutput is returned when the encoder exits zero without producing the
// declared output file.
var ErrNoOutput = errors.New("encoder produced no output file")

const maxStderrTail = 2048

// FFprobe implements Prober with the ffprobe executable.
type FFprobe struct {
	path string
}

// NewFFprobe creates a new FFprobe.
func NewFFprobe(ffprobePath string) *FFprobe {
	return &FFprobe{path: ffprobePath}
}

// Duration uses ffprobe to get the duration of an audio file in seconds.
func (p *FFprobe) Duration(ctx context.Context, localPath string) (float64, error) {
	if _, err := os.Stat(localPath); err != nil {
		return 0, &ProbeError{Path: localPath, Err: err}
	}

	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		localPath,
	}

	cmd := exec.CommandContext(ctx, p.path, args...)
	var out bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return 0, &ProbeError{Path: localPath, Err: fmt.Errorf("ffprobe failed: %w: %s", err, strings.TrimSpace(stderr.String()))}
	}

	duration, err := ParseDuration(out.Bytes())
	if err != nil {
		return 0, &ProbeError{Path: localPath, Err: err}
	}
	return duration, nil
}

// ParseDuration reads the single seconds value printed by ffprobe.
func ParseDuration(output []byte) (float64, error) {
	text := strings.TrimSpace(string(output))
	if text == "" || text == "N/A" {
		return 0, fmt.Errorf("duration not found in ffprobe output %q", text)
	}
	duration, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration string %q: %w", text, err)
	}
	if math.IsNaN(duration) || math.IsInf(duration, 0) {
		return 0, fmt.Errorf("non-finite duration %q", text)
	}
	if duration < 0 {
		return 0, fmt.Errorf("negative duration %q", text)
	}
	return duration, nil
}

// FFmpegEncoder implements Encoder with the ffmpeg executable.
type FFmpegEncoder struct {
	ffmpegPath string
}

// NewFFmpegEncoder creates a new FFmpegEncoder.
func NewFFmpegEncoder(ffmpegPath string) *FFmpegEncoder {
	return &FFmpegEncoder{ffmpegPath: ffmpegPath}
}

// Encode runs one ffmpeg process that normalises, filters and concatenates
// every plan entry in order. A failed run leaves no output file behind.
func (e *FFmpegEncoder) Encode(ctx context.Context, plan *model.ConcatenationPlan, outputPath string, params model.AudioParams, filters model.FilterChain) error {
	args, err := BuildArgs(plan, outputPath, params, filters)
	if err != nil {
		return &EncodeError{ExitCode: -1, Err: err}
	}

	cmd := exec.CommandContext(ctx, e.ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	logger.Info("executing ffmpeg",
		logger.String("output", outputPath),
		logger.Int("inputs", plan.Len()),
		logger.Bool("filters", filters.Enabled()),
		logger.String("args", strings.Join(args, " ")))

	if err := cmd.Run(); err != nil {
		os.Remove(outputPath)
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return &EncodeError{ExitCode: exitCode, Stderr: tail(stderr.String(), maxStderrTail), Err: err}
	}

	if info, err := os.Stat(outputPath); err != nil || info.Size() == 0 {
		os.Remove(outputPath)
		return &EncodeError{ExitCode: 0, Err: ErrNoOutput}
	}
	return nil
}

// CheckAvailable verifies that the configured executables can be found.
func CheckAvailable(paths ...string) error {
	for _, p := range paths {
		if _, err := exec.LookPath(p); err != nil {
			return fmt.Errorf("%s not found: %w", p, err)
		}
	}
	return nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
