package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"showmerge/core/audio"
	"showmerge/core/plan"
	"showmerge/core/publish"
	"showmerge/logger"
	"showmerge/model"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Fetcher stages one remote resource as a local file.
type Fetcher interface {
	Fetch(ctx context.Context, sourceURL, destinationPath string) error
}

// Discoverer lists the segments stored in a remote folder, in play order.
type Discoverer interface {
	Discover(ctx context.Context, folder string) ([]model.Segment, error)
}

// Publisher uploads a merged show and optionally removes stale chunks.
type Publisher interface {
	Publish(ctx context.Context, artifactPath string, table model.ChapterTable, folder string) (*publish.Published, error)
	CleanupChunks(ctx context.Context, prefix string) (int, error)
}

// Dependencies are the collaborators of an Orchestrator. Discoverer and
// Observer may be nil.
type Dependencies struct {
	Fetcher    Fetcher
	Prober     audio.Prober
	Encoder    audio.Encoder
	Discoverer Discoverer
	Publisher  Publisher
	Observer   Observer
}

// Orchestrator runs merge requests end to end. Runs share no state and may
// execute concurrently.
type Orchestrator struct {
	opts     Options
	deps     Dependencies
	planner  *plan.Planner
	cleanup  func(stagingDir string) error
	mkdirTmp func(dir, pattern string) (string, error)
}

// New creates an Orchestrator.
func New(opts Options, deps Dependencies) *Orchestrator {
	return &Orchestrator{
		opts:     opts,
		deps:     deps,
		planner:  plan.NewPlanner(deps.Prober),
		cleanup:  publish.Cleanup,
		mkdirTmp: os.MkdirTemp,
	}
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.New().String()
}

// run carries the per-run state through the stages.
type run struct {
	ctx          context.Context
	id           string
	stage        Stage
	show         string
	folder       string
	segmentCount int
	observer     Observer
}

func (r *run) enter(stage Stage) {
	r.stage = stage
	logger.Info("merge stage", logger.String("runId", r.id), logger.String("stage", string(stage)))
	r.emit(Event{Stage: stage})
}

func (r *run) emit(e Event) {
	if r.observer == nil {
		return
	}
	e.RunID = r.id
	e.Show = r.show
	e.Folder = r.folder
	e.SegmentCount = r.segmentCount
	e.Time = time.Now()
	r.observer.Notify(e)
}

// fail wraps err for the current stage. A failure caused by the caller's
// context is reported as canceled whatever stage it hit.
func (r *run) fail(kind Kind, err error) *RunError {
	if kind != KindValidation && r.ctx.Err() != nil {
		kind = KindCanceled
	}
	return &RunError{RunID: r.id, Kind: kind, Stage: r.stage, Err: err}
}

// Run executes one merge. runID may be empty, in which case one is generated.
// The staging directory is removed before Run returns, on every path.
func (o *Orchestrator) Run(ctx context.Context, runID string, req model.MergeRequest) (result *model.MergeResult, err error) {
	if runID == "" {
		runID = NewRunID()
	}
	r := &run{ctx: ctx, id: runID, stage: StageCreated, observer: o.deps.Observer}
	start := time.Now()
	var stagingDir string

	defer func() {
		r.stage = StageCleaningUp
		r.emit(Event{Stage: StageCleaningUp})
		if stagingDir != "" {
			if cerr := o.cleanup(stagingDir); cerr != nil {
				logger.Warn("staging cleanup failed",
					logger.String("runId", runID),
					logger.String("dir", stagingDir),
					logger.ErrorField(cerr))
				if result != nil {
					result.Warnings = append(result.Warnings, cerr.Error())
				}
			}
		}

		var runErr *RunError
		if err != nil {
			runErr, _ = AsRunError(err)
			logger.Error("merge failed",
				logger.String("runId", runID),
				logger.String("stage", string(runErr.Stage)),
				logger.String("kind", string(runErr.Kind)),
				logger.ErrorField(runErr.Err),
				logger.Duration("elapsed", time.Since(start)))
			r.emit(Event{Stage: StageFailed, Err: runErr})
			return
		}
		logger.Info("merge succeeded",
			logger.String("runId", runID),
			logger.String("audio", result.FinalAudioURL),
			logger.Float64("totalSeconds", result.TotalSeconds),
			logger.Duration("elapsed", time.Since(start)))
		r.emit(Event{Stage: StageSucceeded, Result: result})
	}()

	r.emit(Event{Stage: StageCreated})

	j, perr := o.prepare(req)
	if perr != nil {
		return nil, r.fail(KindValidation, perr)
	}
	r.show = j.base
	r.folder = j.targetFolder

	segments := j.segments
	if j.folder != "" {
		r.enter(StageDiscovering)
		if o.deps.Discoverer == nil {
			return nil, r.fail(KindValidation, invalid("folder", "discovery is not configured"))
		}
		found, derr := o.deps.Discoverer.Discover(ctx, j.folder)
		if derr != nil {
			return nil, r.fail(KindFetch, derr)
		}
		if len(found) == 0 {
			return nil, r.fail(KindNotFound, fmt.Errorf("%w in folder %q", ErrNoSegments, j.folder))
		}
		segments = found
	}
	r.segmentCount = len(segments)

	dir, merr := o.mkdirTmp(o.opts.StagingRoot, "merge-"+runID+"-")
	if merr != nil {
		return nil, r.fail(KindInternal, fmt.Errorf("create staging directory: %w", merr))
	}
	stagingDir = dir

	return o.execute(r, j, segments, stagingDir)
}

// execute runs the stages that need the staging directory.
func (o *Orchestrator) execute(r *run, j *job, segments []model.Segment, stagingDir string) (*model.MergeResult, error) {
	ctx := r.ctx

	r.enter(StageFetching)
	staged, err := o.fetchAll(ctx, r.id, segments, stagingDir)
	if err != nil {
		return nil, r.fail(KindFetch, err)
	}
	var clipPath string
	if j.transition.Kind == model.TransitionClip && len(staged) > 1 {
		clipPath = filepath.Join(stagingDir, "transition"+sourceExt(j.transition.ClipURL))
		if err := o.deps.Fetcher.Fetch(ctx, j.transition.ClipURL, clipPath); err != nil {
			return nil, r.fail(KindFetch, err)
		}
	}

	r.enter(StagePlanning)
	for i := range staged {
		d, err := o.deps.Prober.Duration(ctx, staged[i].LocalPath)
		if err != nil {
			return nil, r.fail(KindProbe, err)
		}
		staged[i].Duration = d
	}
	concat, markers, err := o.planner.BuildPlan(ctx, staged, j.transition, clipPath)
	if err != nil {
		var planErr *plan.Error
		if errors.As(err, &planErr) {
			return nil, r.fail(KindPlan, err)
		}
		return nil, r.fail(KindProbe, err)
	}
	logger.Info("merge planned",
		logger.String("runId", r.id),
		logger.Int("segments", len(staged)),
		logger.Bool("transitionActive", j.transition.Active()),
		logger.Int("transitions", concat.TransitionCount()),
		logger.Float64("totalSeconds", concat.TotalDuration()))

	r.enter(StageEncoding)
	artifact := filepath.Join(stagingDir, j.base+audio.OutputExtension(j.params.Codec))
	if err := o.deps.Encoder.Encode(ctx, concat, artifact, j.params, j.filters); err != nil {
		return nil, r.fail(KindEncode, err)
	}

	r.enter(StagePublishing)
	table := model.ChapterTable{Show: j.base, TotalSeconds: concat.TotalDuration(), Chapters: markers}
	published, err := o.deps.Publisher.Publish(ctx, artifact, table, j.targetFolder)
	if err != nil {
		return nil, r.fail(KindPublish, err)
	}

	result := &model.MergeResult{
		RunID:         r.id,
		FinalAudioURL: published.AudioURL,
		ChaptersURL:   published.ChaptersURL,
		Chapters:      markers,
		TotalSeconds:  concat.TotalDuration(),
	}

	if j.cleanupChunks && o.opts.ChunkCleanupPrefix != "" {
		if _, err := o.deps.Publisher.CleanupChunks(ctx, o.opts.ChunkCleanupPrefix); err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("chunk cleanup: %v", err))
		}
	}
	return result, nil
}

// fetchAll stages every segment, at most FetchConcurrency at a time. The
// returned slice keeps the input order whatever order the fetches finish in.
func (o *Orchestrator) fetchAll(ctx context.Context, runID string, segments []model.Segment, stagingDir string) ([]model.Segment, error) {
	staged := make([]model.Segment, len(segments))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.concurrency())

	for i, seg := range segments {
		i, seg := i, seg
		g.Go(func() error {
			dest := filepath.Join(stagingDir, fmt.Sprintf("segment_%03d%s", i, sourceExt(seg.SourceURL)))
			if err := o.deps.Fetcher.Fetch(gctx, seg.SourceURL, dest); err != nil {
				return err
			}
			seg.LocalPath = dest
			staged[i] = seg
			logger.Debug("segment staged",
				logger.String("runId", runID),
				logger.Int("ordinal", seg.Ordinal),
				logger.String("path", dest))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return staged, nil
}

// sourceExt returns the extension of a source URL's path, defaulting to .mp3.
func sourceExt(source string) string {
	u, err := url.Parse(source)
	if err != nil {
		return ".mp3"
	}
	ext := strings.ToLower(path.Ext(u.Path))
	if ext == "" || len(ext) > 6 {
		return ".mp3"
	}
	return ext
}
