package transcode

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"mixtape/internal/config"
	"mixtape/internal/deps"
	"mixtape/internal/fileutil"
	"mixtape/internal/logging"
	"mixtape/internal/lyrics"
	"mixtape/internal/progress"
	"mixtape/internal/services"
	"mixtape/internal/timeline"
)

// SettingsFromConfig combines configured encode parameters with the
// detected video encoder.
func SettingsFromConfig(cfg *config.Config, enc deps.Encoder) Settings {
	return Settings{
		FFmpeg:       cfg.FFmpegBinary(),
		Encoder:      enc,
		AudioBitrate: cfg.Encoder.AudioBitrate,
		SampleRate:   cfg.Encoder.SampleRate,
		Channels:     cfg.Encoder.Channels,
		FontSize:     cfg.Lyrics.FontSize,
	}
}

// Request describes one job's video.
type Request struct {
	// Job is the 1-based job index stamped on progress events.
	Job        int
	Timeline   timeline.Timeline
	Image      string
	Subtitles  lyrics.SubtitleTrack
	OutputPath string
	// WorkDir holds intermediate artifacts. It is cleared of previous
	// artifacts before the first stage.
	WorkDir string
}

func (r Request) validate() error {
	switch {
	case r.Timeline.Len() == 0:
		return errors.New("timeline has no tracks")
	case r.Image == "":
		return errors.New("background image is required")
	case r.OutputPath == "":
		return errors.New("output path is required")
	case r.WorkDir == "":
		return errors.New("work directory is required")
	}
	return nil
}

// StageTiming records how long a completed invocation took.
type StageTiming struct {
	Stage   progress.Stage
	Elapsed time.Duration
}

// Result describes a completed video.
type Result struct {
	OutputPath string
	// Burned reports whether a subtitle stage ran.
	Burned bool
	// Warnings lists subtitle problems that did not stop the encode.
	Warnings []string
	Stages   []StageTiming
}

// Pipeline runs the stage sequence for one job at a time.
type Pipeline struct {
	settings Settings
	runner   Runner
	emit     func(progress.Event)
	logger   *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

// New builds a pipeline. emit receives progress events and must not block;
// it may be nil.
func New(settings Settings, runner Runner, emit func(progress.Event), logger *zap.Logger) *Pipeline {
	if emit == nil {
		emit = func(progress.Event) {}
	}
	return &Pipeline{
		settings: settings,
		runner:   runner,
		emit:     emit,
		logger:   logging.NewComponentLogger(logger, "transcode"),
	}
}

// Cancel terminates the in-flight invocation, if any. Run then returns a
// *StageError wrapping services.ErrCancelled.
func (p *Pipeline) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
	}
}

func (p *Pipeline) setCancel(cancel context.CancelFunc) {
	p.mu.Lock()
	p.cancel = cancel
	p.mu.Unlock()
}

type step struct {
	stage    progress.Stage
	label    string
	inv      Invocation
	expected float64
	weight   float64
	prepare  func() error
}

// Run executes every stage for req and moves the final video to
// req.OutputPath. On failure or cancellation nothing is written there.
func (p *Pipeline) Run(ctx context.Context, req Request) (Result, error) {
	if err := req.validate(); err != nil {
		return Result{}, services.Wrap(services.ErrValidation, "transcode", "plan", "", err)
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.setCancel(cancel)
	defer func() {
		p.setCancel(nil)
		cancel()
	}()

	if err := prepareWorkDir(req.WorkDir); err != nil {
		return Result{}, services.Wrap(services.ErrConfiguration, "transcode", "prepare work dir", req.WorkDir, err)
	}

	result := Result{Burned: !req.Subtitles.Empty()}
	if result.Burned {
		result.Warnings = lyrics.Validate(req.Subtitles, req.Timeline.Total)
		if len(result.Warnings) > 0 {
			logging.WarnWithContext(logging.WithContext(ctx, p.logger), "subtitle track has problems", "subtitle_validation",
				zap.Strings("issues", result.Warnings),
				zap.String(logging.FieldImpact, "some lyric lines may display incorrectly"),
			)
		}
	}

	steps, base := p.plan(req)
	track := &tracker{job: req.Job, emit: p.emit, base: base}
	for _, st := range steps {
		if err := runCtx.Err(); err != nil {
			return result, cancelled(st.stage, "", err)
		}
		started := time.Now()
		if err := p.runStep(runCtx, st, track); err != nil {
			return result, err
		}
		result.Stages = append(result.Stages, StageTiming{Stage: st.stage, Elapsed: time.Since(started)})
	}

	if err := runCtx.Err(); err != nil {
		return result, cancelled(progress.StageMux, "", err)
	}
	if err := fileutil.MoveFile(filepath.Join(req.WorkDir, finalName), req.OutputPath); err != nil {
		return result, &StageError{
			Stage:    progress.StageMux,
			ExitCode: -1,
			Err:      services.Wrap(services.ErrExternalTool, string(progress.StageMux), "publish", req.OutputPath, err),
		}
	}
	result.OutputPath = req.OutputPath
	return result, nil
}

// plan lays out the invocations for req. The returned base is the weight
// already earned by stages that have nothing to do.
func (p *Pipeline) plan(req Request) ([]step, float64) {
	s := p.settings
	work := req.WorkDir
	weights := stageWeights(!req.Subtitles.Empty())
	total := req.Timeline.Total

	inputs := make([]string, req.Timeline.Len())
	var pending []int
	for i, entry := range req.Timeline.Entries {
		inputs[i] = absolute(entry.Track.Path)
		if !entry.Track.IsMP3() {
			pending = append(pending, i)
		}
	}

	var steps []step
	base := 0.0
	if len(pending) == 0 {
		base = weights[progress.StageNormalize]
	}
	for n, i := range pending {
		entry := req.Timeline.Entries[i]
		dst := filepath.Join(work, normalizedName(i+1))
		steps = append(steps, step{
			stage:    progress.StageNormalize,
			label:    fmt.Sprintf("normalizing %s (%d/%d)", entry.Track.DisplayName(), n+1, len(pending)),
			inv:      Invocation{Binary: s.FFmpeg, Args: s.normalizeArgs(inputs[i], dst)},
			expected: entry.Track.Duration,
			weight:   weights[progress.StageNormalize] / float64(len(pending)),
		})
		inputs[i] = dst
	}

	list := filepath.Join(work, concatListName)
	steps = append(steps, step{
		stage: progress.StageConcat,
		label: fmt.Sprintf("joining %d tracks", len(inputs)),
		inv:   Invocation{Binary: s.FFmpeg, Args: concatArgs(list, filepath.Join(work, combinedName))},
		prepare: func() error {
			return os.WriteFile(list, []byte(concatList(inputs)), 0o644)
		},
		expected: total,
		weight:   weights[progress.StageConcat],
	})

	image := absolute(req.Image)
	if req.Subtitles.Empty() {
		steps = append(steps, step{
			stage:    progress.StageMux,
			label:    "encoding video",
			inv:      Invocation{Binary: s.FFmpeg, Args: s.videoArgs(image, combinedName, false, finalName), Dir: work},
			expected: total,
			weight:   weights[progress.StageMux],
		})
		return steps, base
	}

	subtitles := req.Subtitles
	steps = append(steps,
		step{
			stage: progress.StageSubtitle,
			label: fmt.Sprintf("burning %d lyric lines", len(subtitles.Cues)),
			inv:   Invocation{Binary: s.FFmpeg, Args: s.videoArgs(image, combinedName, true, videoName), Dir: work},
			prepare: func() error {
				return lyrics.WriteSRT(filepath.Join(work, subtitlesName), subtitles)
			},
			expected: total,
			weight:   weights[progress.StageSubtitle],
		},
		step{
			stage:    progress.StageMux,
			label:    "finalizing container",
			inv:      Invocation{Binary: s.FFmpeg, Args: remuxArgs(videoName, finalName), Dir: work},
			expected: total,
			weight:   weights[progress.StageMux],
		},
	)
	return steps, base
}

func (p *Pipeline) runStep(ctx context.Context, st step, track *tracker) error {
	ctx = services.WithStage(ctx, string(st.stage))
	logger := logging.WithContext(ctx, p.logger)

	if st.prepare != nil {
		if err := st.prepare(); err != nil {
			return &StageError{
				Stage:    st.stage,
				ExitCode: -1,
				Err:      services.Wrap(services.ErrExternalTool, string(st.stage), "prepare", "", err),
			}
		}
	}

	logger.Info("stage started", zap.String("detail", st.label), zap.Float64("expected_seconds", st.expected))
	diag := newTail(diagnosticLines)
	last := 0.0
	track.report(st, 0, st.label)

	err := p.runner.Run(ctx, st.inv, func(line string) {
		if elapsed, ok := ParseElapsed(line); ok {
			if f := Fraction(elapsed, st.expected); f > last {
				last = f
				track.report(st, f, st.label)
			}
			return
		}
		diag.add(line)
	})
	if ctxErr := ctx.Err(); ctxErr != nil {
		logger.Info("stage cancelled", zap.String(logging.FieldEventType, "stage_cancelled"))
		return cancelled(st.stage, diag.String(), ctxErr)
	}
	if err != nil {
		code := ExitCode(err)
		logging.ErrorWithContext(logger, "stage failed", "stage_failed",
			zap.Int("exit_code", code),
			zap.String("command", st.inv.String()),
			zap.String("diagnostic", diag.String()),
			zap.String(logging.FieldErrorHint, "run the logged ffmpeg command by hand to reproduce"),
			zap.Error(err),
		)
		return &StageError{
			Stage:      st.stage,
			ExitCode:   code,
			Diagnostic: diag.String(),
			Err:        services.Wrap(services.ErrExternalTool, string(st.stage), "ffmpeg", "", err),
		}
	}
	track.complete(st)
	logger.Info("stage completed")
	return nil
}

func cancelled(stage progress.Stage, diagnostic string, err error) error {
	return &StageError{
		Stage:      stage,
		ExitCode:   -1,
		Diagnostic: diagnostic,
		Err:        services.Wrap(services.ErrCancelled, string(stage), "", "cancelled", err),
	}
}

// stageWeights splits a job into thirds: normalize and concat share the
// first, subtitle and mux the rest.
func stageWeights(burn bool) map[progress.Stage]float64 {
	if !burn {
		return map[progress.Stage]float64{
			progress.StageNormalize: 1.0 / 6,
			progress.StageConcat:    1.0 / 6,
			progress.StageMux:       2.0 / 3,
		}
	}
	return map[progress.Stage]float64{
		progress.StageNormalize: 1.0 / 6,
		progress.StageConcat:    1.0 / 6,
		progress.StageSubtitle:  1.0 / 2,
		progress.StageMux:       1.0 / 6,
	}
}

// tracker folds stage fractions into a job fraction that never decreases.
type tracker struct {
	job     int
	emit    func(progress.Event)
	base    float64
	overall float64
}

func (t *tracker) report(st step, fraction float64, message string) {
	overall := t.base + st.weight*fraction
	if overall > 1 {
		overall = 1
	}
	if overall < t.overall {
		overall = t.overall
	}
	t.overall = overall
	t.emit(progress.Event{
		Kind:     progress.KindProgress,
		Job:      t.job,
		Stage:    st.stage,
		Fraction: fraction,
		Overall:  overall,
		Message:  message,
		Time:     time.Now(),
	})
}

func (t *tracker) complete(st step) {
	t.report(st, 1, st.label)
	t.base += st.weight
}

var staleArtifacts = []string{concatListName, combinedName, subtitlesName, videoName, finalName, "norm_*.mp3"}

func prepareWorkDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, pattern := range staleArtifacts {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return err
		}
		for _, m := range matches {
			if err := os.Remove(m); err != nil && !os.IsNotExist(err) {
				return err
			}
		}
	}
	return nil
}

func absolute(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
