package batch

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mixtape/internal/config"
	"mixtape/internal/history"
	"mixtape/internal/logging"
	"mixtape/internal/lyrics"
	"mixtape/internal/notifications"
	"mixtape/internal/ordering"
	"mixtape/internal/progress"
	"mixtape/internal/publish"
	"mixtape/internal/services"
	"mixtape/internal/staging"
	"mixtape/internal/timeline"
	"mixtape/internal/tracks"
	"mixtape/internal/transcode"
)

// ErrBusy is returned when Run is called while a batch is in flight.
var ErrBusy = errors.New("batch already running")

const bookkeepingTimeout = 10 * time.Second

// Transcoder renders one job's video.
type Transcoder interface {
	Run(ctx context.Context, req transcode.Request) (transcode.Result, error)
	Cancel()
}

// Synchronizer builds the subtitle track for a timeline.
type Synchronizer interface {
	Synchronize(tl timeline.Timeline) (lyrics.SubtitleTrack, []lyrics.Contribution)
}

// Recorder persists batch and job state.
type Recorder interface {
	StartBatch(ctx context.Context, b history.Batch) error
	RecordJob(ctx context.Context, j history.Job) error
	FinishBatch(ctx context.Context, b history.Batch) error
}

// Notifier announces batch milestones.
type Notifier interface {
	Publish(ctx context.Context, msg notifications.Message) error
}

// Option customizes a Controller.
type Option func(*Controller)

// WithRecorder stores batch and job records.
func WithRecorder(r Recorder) Option {
	return func(c *Controller) { c.recorder = r }
}

// WithNotifier sends lifecycle notifications.
func WithNotifier(n Notifier) Option {
	return func(c *Controller) { c.notifier = n }
}

// WithUploader publishes each finished video.
func WithUploader(u publish.Uploader) Option {
	return func(c *Controller) { c.uploader = u }
}

// WithOrderingOptions passes options through to the ordering generator.
func WithOrderingOptions(opts ...ordering.Option) Option {
	return func(c *Controller) { c.orderingOpts = append(c.orderingOpts, opts...) }
}

// Request is one batch of videos over a fixed track set.
type Request struct {
	Tracks []tracks.Track
	Images []string
	// Count is the number of videos requested; zero uses the configured count.
	Count int
	// OutputName is the file name template; empty uses the configured name.
	OutputName string
	// OutputDir defaults to the configured output directory.
	OutputDir string
}

func (r Request) validate() error {
	if len(r.Tracks) == 0 {
		return services.Wrap(services.ErrValidation, "batch", "validate", "at least one track is required", nil)
	}
	if len(r.Images) == 0 {
		return services.Wrap(services.ErrValidation, "batch", "validate", "at least one background image is required", nil)
	}
	if r.Count < 0 {
		return services.Wrap(services.ErrValidation, "batch", "validate", fmt.Sprintf("count must be positive, got %d", r.Count), nil)
	}
	return nil
}

// Result is the outcome of a batch.
type Result struct {
	BatchID string
	Jobs    []Job
	// Requested is the count asked for; Effective is how many orderings were
	// actually available.
	Requested int
	Effective int
	Shortfall int
	// Tracks and OutputName are the caller's original input order and name
	// template, unchanged by the run.
	Tracks     []tracks.Track
	OutputName string
	Elapsed    time.Duration
	Cancelled  bool
}

// Summary tallies the batch's jobs.
func (r Result) Summary() Summary {
	return Summarize(r.Jobs)
}

// Controller runs batches one job at a time. A Controller runs at most one
// batch at a time but may be reused for consecutive batches.
type Controller struct {
	cfg          *config.Config
	transcoder   Transcoder
	synchronizer Synchronizer
	queue        *progress.Queue
	logger       *zap.Logger

	recorder     Recorder
	notifier     Notifier
	uploader     publish.Uploader
	orderingOpts []ordering.Option

	jobTimer   Timer
	batchTimer Timer

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	jobs    []Job
}

// New constructs a Controller. queue may be nil when nobody observes progress.
func New(cfg *config.Config, transcoder Transcoder, synchronizer Synchronizer, queue *progress.Queue, logger *zap.Logger, opts ...Option) *Controller {
	c := &Controller{
		cfg:          cfg,
		transcoder:   transcoder,
		synchronizer: synchronizer,
		queue:        queue,
		logger:       logging.NewComponentLogger(logger, "batch"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Cancel stops the in-flight job and abandons the remaining ones. It is a
// no-op when no batch is running.
func (c *Controller) Cancel() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	c.transcoder.Cancel()
}

// Running reports whether a batch is in flight.
func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Jobs returns a snapshot of the current or most recent batch's jobs.
func (c *Controller) Jobs() []Job {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.jobs)
}

// JobElapsed is the running time of the current job, or of the last one.
func (c *Controller) JobElapsed() time.Duration {
	return c.jobTimer.Elapsed()
}

// BatchElapsed is the running time of the current batch, or of the last one.
func (c *Controller) BatchElapsed() time.Duration {
	return c.batchTimer.Elapsed()
}

// Run executes the batch. Cancellation is not an error: Run returns the
// partial result with Cancelled set. With the stop policy a failed job ends
// the batch and Run returns an error naming it alongside the result.
func (c *Controller) Run(ctx context.Context, req Request) (Result, error) {
	req = c.withDefaults(req)
	result := Result{
		Tracks:     slices.Clone(req.Tracks),
		OutputName: req.OutputName,
		Requested:  req.Count,
	}
	if err := req.validate(); err != nil {
		return result, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if !c.begin(cancel) {
		return result, ErrBusy
	}
	defer c.end()

	result.BatchID = uuid.NewString()
	runCtx = services.WithBatchID(runCtx, result.BatchID)
	logger := logging.WithContext(runCtx, c.logger)

	opts := []ordering.Option{ordering.WithMaxAttempts(c.cfg.Batch.MaxShuffleAttempts)}
	gen := ordering.NewGenerator(req.Tracks, req.Count, append(opts, c.orderingOpts...)...)

	c.batchTimer.Restart()
	started := time.Now()
	c.setJobs(planJobs(req, gen.Effective()))

	logger.Info("batch started",
		zap.Int("tracks", len(req.Tracks)),
		zap.Int("images", len(req.Images)),
		zap.Int("requested", gen.Requested()),
		zap.Int("effective", gen.Effective()),
	)
	if gen.Shortfall() > 0 {
		logging.WarnWithContext(logger, "fewer distinct orderings than requested", "ordering_shortfall",
			zap.Int("requested", gen.Requested()),
			zap.Int("available", gen.Effective()),
			zap.String(logging.FieldImpact, fmt.Sprintf("%d video(s) will not be produced", gen.Shortfall())),
			zap.String(logging.FieldErrorHint, "add more tracks or request fewer videos"),
		)
	}

	staging.CleanStale(runCtx, c.cfg.Paths.WorkDir, staging.DefaultMaxAge, c.logger)
	lease, err := staging.Acquire(c.cfg.Paths.WorkDir, result.BatchID)
	if err != nil {
		result.Effective = gen.Effective()
		result.Shortfall = gen.Shortfall()
		result.Jobs = c.Jobs()
		result.Elapsed = c.batchTimer.Stop()
		return result, services.Wrap(services.ErrConfiguration, "batch", "lease work dir", c.cfg.Paths.WorkDir, err)
	}

	c.startBatch(runCtx, result.BatchID, req, gen.Requested(), gen.Effective(), started)

	var runErr error
	for i := 0; ; i++ {
		if runCtx.Err() != nil {
			result.Cancelled = true
			break
		}
		ord, err := gen.Next()
		if errors.Is(err, ordering.ErrExhausted) {
			if gen.Produced() < len(c.Jobs()) {
				c.truncateJobs(gen.Produced())
				logging.WarnWithContext(logger, "shuffle attempts exhausted", "ordering_exhausted",
					zap.Int("produced", gen.Produced()),
					zap.Int("requested", gen.Requested()),
					zap.String(logging.FieldImpact, fmt.Sprintf("%d video(s) will not be produced", gen.Shortfall())),
					zap.String(logging.FieldErrorHint, "raise batch.max_shuffle_attempts"),
				)
			}
			break
		}
		if i > 0 {
			if err := lease.Reset(); err != nil {
				logging.WarnWithContext(logger, "work dir reset failed", "work_dir_reset",
					zap.Error(err),
					zap.String(logging.FieldImpact, "stale artifacts may remain until the next stage overwrites them"),
				)
			}
		}

		job := c.runJob(runCtx, result.BatchID, i, ord, lease.WorkDir())
		if job.Status == StatusCancelled {
			result.Cancelled = true
			break
		}
		if job.Status == StatusFailed && !c.cfg.ContinueOnFailure() {
			runErr = fmt.Errorf("job %d failed at %s: %s", job.Index, job.Stage, job.Diagnostic)
			logger.Info("batch stopped after failure",
				zap.Int(logging.FieldJob, job.Index),
				zap.String("on_failure", c.cfg.Batch.OnFailure),
			)
			break
		}
	}

	result.Jobs = c.Jobs()
	result.Effective = gen.Effective()
	result.Shortfall = gen.Shortfall()
	result.Elapsed = c.batchTimer.Stop()
	summary := result.Summary()

	if err := lease.Release(summary.Failed > 0); err != nil {
		logging.WarnWithContext(logger, "work dir release failed", "work_dir_release",
			zap.Error(err),
			zap.String(logging.FieldImpact, "batch directory left on disk until stale cleanup"),
		)
	}

	c.finishBatch(runCtx, result, started)
	logger.Info("batch finished",
		zap.Int("done", summary.Done),
		zap.Int("failed", summary.Failed),
		zap.Int("cancelled", summary.Cancelled),
		zap.Int("not_started", summary.Pending),
		zap.Int("shortfall", result.Shortfall),
		zap.Duration("elapsed", result.Elapsed),
	)
	return result, runErr
}

func (c *Controller) withDefaults(req Request) Request {
	if req.Count == 0 {
		req.Count = c.cfg.Batch.Count
	}
	if strings.TrimSpace(req.OutputName) == "" {
		req.OutputName = c.cfg.Batch.OutputName
	}
	if strings.TrimSpace(req.OutputDir) == "" {
		req.OutputDir = c.cfg.Paths.OutputDir
	}
	return req
}

// planJobs lays out the pending jobs. Names use the effective count so a
// batch clamped to one video gets the unsuffixed name.
func planJobs(req Request, effective int) []Job {
	jobs := make([]Job, effective)
	for i := range jobs {
		imageIndex := i % len(req.Images)
		jobs[i] = Job{
			Index:      i + 1,
			ImageIndex: imageIndex,
			Image:      req.Images[imageIndex],
			OutputPath: OutputPath(req.OutputDir, req.OutputName, effective, i+1),
			Status:     StatusPending,
		}
	}
	return jobs
}

func (c *Controller) runJob(ctx context.Context, batchID string, i int, ord ordering.Ordering, workDir string) Job {
	job := c.Jobs()[i]
	ctx = services.WithJobIndex(ctx, job.Index)
	logger := logging.WithContext(ctx, c.logger)

	c.jobTimer.Restart()
	job = c.update(i, func(j *Job) error {
		j.Ordering = ord
		return j.transition(StatusRunning)
	})
	logger.Info("job started",
		zap.String("image", job.Image),
		zap.String("output", job.OutputPath),
		zap.String("fingerprint", ord.Fingerprint),
		zap.Strings("order", trackNames(ord.Tracks)),
	)
	c.emitJob(job, "")
	c.record(ctx, batchID, job)

	tl := timeline.Build(ord.Tracks)
	subs, contributions := c.synchronizer.Synchronize(tl)
	c.logContributions(logger, tl, contributions)

	res, err := c.transcoder.Run(ctx, transcode.Request{
		Job:        job.Index,
		Timeline:   tl,
		Image:      job.Image,
		Subtitles:  subs,
		OutputPath: job.OutputPath,
		WorkDir:    workDir,
	})
	elapsed := c.jobTimer.Stop()

	switch {
	case err == nil:
		location, note := c.upload(ctx, batchID, res.OutputPath)
		job = c.update(i, func(j *Job) error {
			j.Warnings = res.Warnings
			j.Location = location
			j.Note = note
			j.Elapsed = elapsed
			return j.transition(StatusDone)
		})
		logger.Info("job finished",
			zap.String("output", job.OutputPath),
			zap.Bool("lyrics_burned", res.Burned),
			zap.Duration("elapsed", elapsed),
		)
	case services.IsCancellation(err) || ctx.Err() != nil:
		stage, _ := stageOf(err)
		job = c.update(i, func(j *Job) error {
			j.Stage = stage
			j.Elapsed = elapsed
			return j.transition(StatusCancelled)
		})
		logger.Info("job cancelled", zap.String(logging.FieldStage, string(stage)))
	default:
		stage, diagnostic := stageOf(err)
		job = c.update(i, func(j *Job) error {
			j.Stage = stage
			j.Diagnostic = diagnostic
			j.Elapsed = elapsed
			return j.transition(StatusFailed)
		})
		logging.ErrorWithContext(logger, "job failed", "job_failed",
			zap.String(logging.FieldStage, string(stage)),
			zap.Error(err),
			zap.String(logging.FieldErrorHint, "see diagnostic for the ffmpeg error"),
		)
	}

	c.emitJob(job, job.Diagnostic)
	c.record(ctx, batchID, job)
	c.notify(ctx, notifications.Message{
		Event:          notifications.EventJobFinished,
		BatchID:        batchID,
		Job:            job.Index,
		Status:         string(job.Status),
		Stage:          string(job.Stage),
		Output:         job.OutputPath,
		Detail:         firstNonEmpty(job.Diagnostic, job.Note),
		ElapsedSeconds: elapsed.Seconds(),
	})
	return job
}

// stageOf extracts the failing stage and diagnostic from a pipeline error.
func stageOf(err error) (progress.Stage, string) {
	var stageErr *transcode.StageError
	if errors.As(err, &stageErr) {
		diagnostic := stageErr.Diagnostic
		if diagnostic == "" && stageErr.Err != nil {
			diagnostic = stageErr.Err.Error()
		}
		return stageErr.Stage, diagnostic
	}
	if err == nil {
		return "", ""
	}
	return "", err.Error()
}

func (c *Controller) upload(ctx context.Context, batchID, path string) (string, string) {
	if c.uploader == nil || path == "" {
		return "", ""
	}
	location, err := c.uploader.Upload(ctx, batchID, path)
	if err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, c.logger), "upload failed", "upload_failed",
			zap.String("output", path),
			zap.Error(err),
			zap.String(logging.FieldImpact, "video is available locally only"),
			zap.String(logging.FieldErrorHint, "check publish endpoint and credentials"),
		)
		return "", "upload failed: " + err.Error()
	}
	return location, ""
}

func (c *Controller) logContributions(logger *zap.Logger, tl timeline.Timeline, contributions []lyrics.Contribution) {
	cues := 0
	for _, contrib := range contributions {
		cues += len(contrib.Cues)
		if !contrib.Skipped() {
			continue
		}
		track := tl.Entries[contrib.Index].Track
		fields := []zap.Field{zap.String("track", track.DisplayName())}
		fields = append(fields, logging.DecisionFields("lyrics", "skipped", string(contrib.Skip))...)
		switch contrib.Skip {
		case lyrics.SkipDisabled, lyrics.SkipNoSource:
			logger.Debug("no lyrics for track", fields...)
		default:
			fields = append(fields, zap.String("source", contrib.Source))
			if contrib.Err != nil {
				fields = append(fields, zap.Error(contrib.Err))
			}
			logger.Info("lyrics skipped", fields...)
		}
	}
	logger.Debug("subtitles assembled", zap.Int("cues", cues), zap.Float64("total_seconds", tl.Total))
}

func (c *Controller) begin(cancel context.CancelFunc) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return false
	}
	c.running = true
	c.cancel = cancel
	return true
}

func (c *Controller) end() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
	c.cancel = nil
}

func (c *Controller) setJobs(jobs []Job) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.jobs = jobs
}

func (c *Controller) truncateJobs(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.jobs = c.jobs[:n]
}

// update applies fn to job i and returns the updated copy. A rejected
// transition is a programming error and is logged rather than applied.
func (c *Controller) update(i int, fn func(*Job) error) Job {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := c.jobs[i]
	if err := fn(&next); err != nil {
		c.logger.Error("job state update rejected", zap.Error(err))
		return c.jobs[i]
	}
	c.jobs[i] = next
	return next
}

func (c *Controller) push(e progress.Event) {
	if c.queue == nil {
		return
	}
	e.Time = time.Now()
	c.queue.Push(e)
}

func (c *Controller) emitJob(job Job, message string) {
	c.push(progress.Event{
		Kind:    progress.KindJob,
		Job:     job.Index,
		Stage:   job.Stage,
		Status:  string(job.Status),
		Message: message,
	})
}

// bookkeeping returns a context that survives batch cancellation so final
// records and notifications still go out.
func bookkeeping(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), bookkeepingTimeout)
}

func (c *Controller) startBatch(ctx context.Context, batchID string, req Request, requested, effective int, started time.Time) {
	c.push(progress.Event{Kind: progress.KindBatch, Status: string(StatusRunning),
		Message: fmt.Sprintf("%d of %d video(s)", effective, requested)})
	if c.recorder != nil {
		bctx, cancel := bookkeeping(ctx)
		err := c.recorder.StartBatch(bctx, history.Batch{
			ID:         batchID,
			Status:     string(StatusRunning),
			OutputName: req.OutputName,
			Tracks:     len(req.Tracks),
			Requested:  requested,
			Effective:  effective,
			StartedAt:  started,
		})
		cancel()
		c.warnBookkeeping(ctx, "history", err)
	}
	c.notify(ctx, notifications.Message{
		Event:     notifications.EventBatchStarted,
		BatchID:   batchID,
		Requested: requested,
		Detail:    fmt.Sprintf("%d track(s)", len(req.Tracks)),
	})
}

func (c *Controller) finishBatch(ctx context.Context, result Result, started time.Time) {
	summary := result.Summary()
	status := batchStatus(result)
	c.push(progress.Event{Kind: progress.KindBatch, Status: status,
		Message: fmt.Sprintf("%d done, %d failed, %d cancelled", summary.Done, summary.Failed, summary.Cancelled)})
	if c.recorder != nil {
		bctx, cancel := bookkeeping(ctx)
		err := c.recorder.FinishBatch(bctx, history.Batch{
			ID:         result.BatchID,
			Status:     status,
			OutputName: result.OutputName,
			Tracks:     len(result.Tracks),
			Requested:  result.Requested,
			Effective:  result.Effective,
			Done:       summary.Done,
			Failed:     summary.Failed,
			Cancelled:  summary.Cancelled,
			StartedAt:  started,
			FinishedAt: started.Add(result.Elapsed),
		})
		cancel()
		c.warnBookkeeping(ctx, "history", err)
	}
	c.notify(ctx, notifications.Message{
		Event:          notifications.EventBatchCompleted,
		BatchID:        result.BatchID,
		Status:         status,
		Requested:      result.Requested,
		Done:           summary.Done,
		Failed:         summary.Failed,
		Cancelled:      summary.Cancelled,
		ElapsedSeconds: result.Elapsed.Seconds(),
	})
}

func batchStatus(result Result) string {
	summary := result.Summary()
	switch {
	case result.Cancelled:
		return string(StatusCancelled)
	case summary.Failed > 0:
		return string(StatusFailed)
	default:
		return string(StatusDone)
	}
}

func (c *Controller) record(ctx context.Context, batchID string, job Job) {
	if c.recorder == nil {
		return
	}
	bctx, cancel := bookkeeping(ctx)
	defer cancel()
	err := c.recorder.RecordJob(bctx, history.Job{
		BatchID:     batchID,
		Index:       job.Index,
		Status:      string(job.Status),
		Stage:       string(job.Stage),
		Fingerprint: job.Ordering.Fingerprint,
		Image:       job.Image,
		OutputPath:  job.OutputPath,
		Diagnostic:  job.Diagnostic,
		Note:        job.Note,
		Elapsed:     job.Elapsed,
	})
	c.warnBookkeeping(ctx, "history", err)
}

func (c *Controller) notify(ctx context.Context, msg notifications.Message) {
	if c.notifier == nil {
		return
	}
	msg.Time = time.Now()
	bctx, cancel := bookkeeping(ctx)
	defer cancel()
	c.warnBookkeeping(ctx, "notification", c.notifier.Publish(bctx, msg))
}

func (c *Controller) warnBookkeeping(ctx context.Context, what string, err error) {
	if err == nil {
		return
	}
	logging.WarnWithContext(logging.WithContext(ctx, c.logger), what+" update failed", what+"_failed",
		zap.Error(err),
		zap.String(logging.FieldImpact, "batch continues; "+what+" may be incomplete"),
	)
}

func trackNames(list []tracks.Track) []string {
	names := make([]string, len(list))
	for i, t := range list {
		names[i] = t.DisplayName()
	}
	return names
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
