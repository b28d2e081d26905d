package pipeline

import (
	"math"
	"net/url"
	"path"
	"strings"

	"showmerge/core/audio"
	"showmerge/core/plan"
	"showmerge/core/publish"
	"showmerge/model"
)

const maxChannels = 8

// job is a validated request with every default applied.
type job struct {
	segments      []model.Segment // Explicit segments; nil when discovering
	folder        string          // Discovery folder
	base          string
	targetFolder  string
	transition    model.TransitionPolicy
	params        model.AudioParams
	filters       model.FilterChain
	cleanupChunks bool
}

// prepare validates req and resolves it against the options. It performs no
// I/O.
func (o *Orchestrator) prepare(req model.MergeRequest) (*job, error) {
	sources := 0
	if len(req.Files) > 0 {
		sources++
	}
	if len(req.Segments) > 0 {
		sources++
	}
	folder := strings.Trim(strings.TrimSpace(req.Folder), "/")
	if folder != "" {
		sources++
	}
	switch {
	case sources == 0:
		return nil, plan.ErrEmptyInput
	case sources > 1:
		return nil, invalid("segments", "only one of files, segments or folder may be set")
	}

	if strings.TrimSpace(req.OutputName) == "" {
		return nil, invalid("outputName", "is required")
	}
	j := &job{
		folder:        folder,
		base:          publish.SafeBaseName(req.OutputName),
		cleanupChunks: req.CleanupChunks,
	}
	if j.base == "" {
		return nil, invalid("outputName", "%q has no usable characters", req.OutputName)
	}

	if folder == "" {
		j.segments = req.ExplicitSegments()
		for i, seg := range j.segments {
			if err := checkURL(seg.SourceURL); err != nil {
				return nil, invalid("segments", "segment %d: %v", i, err)
			}
		}
	} else if err := checkFolder(folder); err != nil {
		return nil, invalid("folder", "%v", err)
	}

	target := strings.Trim(strings.TrimSpace(req.TargetFolder), "/")
	if target == "" {
		target = strings.Trim(o.opts.OutputFolder, "/")
	}
	if err := checkFolder(target); err != nil {
		return nil, invalid("targetFolder", "%v", err)
	}
	j.targetFolder = target

	var err error
	if j.transition, err = o.transitionPolicy(req.Transition); err != nil {
		return nil, err
	}
	if j.params, err = o.audioParams(req); err != nil {
		return nil, err
	}
	if j.filters, err = o.filterChain(req); err != nil {
		return nil, err
	}
	return j, nil
}

func (o *Orchestrator) transitionPolicy(requested *model.TransitionPolicy) (model.TransitionPolicy, error) {
	if requested == nil {
		return model.TransitionPolicy{Kind: model.TransitionSilence, Seconds: o.opts.SilenceSeconds}, nil
	}
	p := *requested
	if !finite(p.Seconds) || p.Seconds < 0 {
		return p, invalid("transition.seconds", "must be a non-negative number")
	}
	switch p.Kind {
	case "", model.TransitionSilence:
		p.Kind = model.TransitionSilence
		if p.Seconds == 0 {
			p.Seconds = o.opts.SilenceSeconds
		}
	case model.TransitionNone:
		p.Seconds = 0
	case model.TransitionClip:
		if p.ClipURL == "" {
			p.ClipURL = o.opts.SwooshURL
		}
		if p.ClipURL == "" {
			return p, invalid("transition.clipUrl", "is required when no default clip is configured")
		}
		if err := checkURL(p.ClipURL); err != nil {
			return p, invalid("transition.clipUrl", "%v", err)
		}
	default:
		return p, invalid("transition.type", "unknown transition %q", p.Kind)
	}
	return p, nil
}

func (o *Orchestrator) audioParams(req model.MergeRequest) (model.AudioParams, error) {
	params := o.opts.Audio
	if req.SampleRate < 0 {
		return params, invalid("sampleRate", "must be positive")
	}
	if req.SampleRate > 0 {
		params.SampleRate = req.SampleRate
	}
	if req.Channels < 0 || req.Channels > maxChannels {
		return params, invalid("channels", "must be between 1 and %d", maxChannels)
	}
	if req.Channels > 0 {
		params.Channels = req.Channels
	}
	if req.Codec != "" {
		params.Codec = req.Codec
	}
	if req.Bitrate != "" {
		params.Bitrate = req.Bitrate
	}
	return params, nil
}

func (o *Orchestrator) filterChain(req model.MergeRequest) (model.FilterChain, error) {
	chain := model.FilterChain{FadeSeconds: o.opts.FadeSeconds}
	if req.FadeSeconds != nil {
		chain.FadeSeconds = *req.FadeSeconds
	}
	if !finite(chain.FadeSeconds) || chain.FadeSeconds < 0 {
		return chain, invalid("fadeSeconds", "must be a non-negative number")
	}

	preset := req.Compression
	if preset == "" {
		preset = "off"
		if o.opts.CompressionEnabled {
			preset = o.opts.CompressionPreset
		}
	}
	expr, err := audio.CompressorPreset(preset)
	if err != nil {
		return chain, invalid("compression", "%v", err)
	}
	chain.Compressor = expr
	return chain, nil
}

func checkURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &url.Error{Op: "parse", URL: raw, Err: errUnsupportedScheme}
	}
	if u.Host == "" {
		return &url.Error{Op: "parse", URL: raw, Err: errMissingHost}
	}
	return nil
}

func checkFolder(folder string) error {
	for _, part := range strings.Split(folder, "/") {
		if part == ".." || part == "." {
			return errRelativeFolder
		}
	}
	if path.Clean("/"+folder) != "/"+folder && folder != "" {
		return errRelativeFolder
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
