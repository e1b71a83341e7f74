package batch

import (
	"context"
	"errors"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"mixtape/internal/config"
	"mixtape/internal/deps"
	"mixtape/internal/logging"
	"mixtape/internal/lyrics"
	"mixtape/internal/notifications"
	"mixtape/internal/ordering"
	"mixtape/internal/progress"
	"mixtape/internal/services"
	"mixtape/internal/testsupport"
	"mixtape/internal/tracks"
	"mixtape/internal/transcode"
)

type fakeTranscoder struct {
	mu       sync.Mutex
	requests []transcode.Request
	cancels  int
	fn       func(ctx context.Context, req transcode.Request) (transcode.Result, error)
}

func (f *fakeTranscoder) Run(ctx context.Context, req transcode.Request) (transcode.Result, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.fn != nil {
		return f.fn(ctx, req)
	}
	return writeOutput(req)
}

func (f *fakeTranscoder) Cancel() {
	f.mu.Lock()
	f.cancels++
	f.mu.Unlock()
}

func (f *fakeTranscoder) calls() []transcode.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]transcode.Request(nil), f.requests...)
}

func writeOutput(req transcode.Request) (transcode.Result, error) {
	if err := os.MkdirAll(filepath.Dir(req.OutputPath), 0o755); err != nil {
		return transcode.Result{}, err
	}
	if err := os.WriteFile(req.OutputPath, []byte("video"), 0o644); err != nil {
		return transcode.Result{}, err
	}
	return transcode.Result{OutputPath: req.OutputPath}, nil
}

// scriptedRunner stands in for ffmpeg under a real transcode.Pipeline.
type scriptedRunner struct {
	onFinal func(ctx context.Context) error
}

func (r *scriptedRunner) Run(ctx context.Context, inv transcode.Invocation, onLine func(string)) error {
	dst := inv.Args[len(inv.Args)-1]
	if strings.HasSuffix(dst, "final.mp4") && r.onFinal != nil {
		if err := r.onFinal(ctx); err != nil {
			return err
		}
	}
	onLine("size=1kB time=00:00:01.00 bitrate=1")
	if !filepath.IsAbs(dst) {
		dst = filepath.Join(inv.Dir, dst)
	}
	return os.WriteFile(dst, []byte("media"), 0o644)
}

func newPipeline(runner transcode.Runner, queue *progress.Queue) *transcode.Pipeline {
	settings := transcode.Settings{
		FFmpeg:       "ffmpeg",
		Encoder:      deps.Encoder{Codec: "libx264", Preset: "medium", Quality: 23},
		AudioBitrate: "192k",
		SampleRate:   44100,
		Channels:     2,
		FontSize:     24,
	}
	emit := func(e progress.Event) {
		if queue != nil {
			queue.Push(e)
		}
	}
	return transcode.New(settings, runner, emit, logging.NewNop())
}

func sampleTracks(t *testing.T, n int) []tracks.Track {
	t.Helper()
	dir := t.TempDir()
	names := []string{"a", "b", "c", "d"}
	list := make([]tracks.Track, n)
	for i := range list {
		list[i] = tracks.Track{
			Path:     filepath.Join(dir, names[i]+".mp3"),
			Title:    strings.ToUpper(names[i]),
			Duration: float64(10 * (i + 1)),
			Format:   "mp3",
		}
	}
	return list
}

func newController(cfg *config.Config, tr Transcoder, queue *progress.Queue, opts ...Option) *Controller {
	synchronizer := lyrics.NewSynchronizer(lyrics.Options{}, logging.NewNop())
	opts = append([]Option{WithOrderingOptions(ordering.WithRand(rand.New(rand.NewPCG(1, 2))))}, opts...)
	return New(cfg, tr, synchronizer, queue, logging.NewNop(), opts...)
}

func TestTwoTracksProduceTwoVideosWithShortfall(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ctrl := newController(cfg, newPipeline(&scriptedRunner{}, nil), nil)
	input := sampleTracks(t, 2)
	original := append([]tracks.Track(nil), input...)

	res, err := ctrl.Run(context.Background(), Request{Tracks: input, Images: []string{"cover.jpg"}, Count: 5, OutputName: "mix"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Requested != 5 || res.Effective != 2 || res.Shortfall != 3 {
		t.Fatalf("requested/effective/shortfall = %d/%d/%d, want 5/2/3", res.Requested, res.Effective, res.Shortfall)
	}
	if got := res.Summary(); got.Done != 2 || got.Failed != 0 || got.Pending != 0 {
		t.Fatalf("summary = %+v, want 2 done", got)
	}
	for i, job := range res.Jobs {
		want := filepath.Join(cfg.Paths.OutputDir, "mix_"+string(rune('1'+i))+".mp4")
		if job.OutputPath != want {
			t.Fatalf("job %d output = %q, want %q", job.Index, job.OutputPath, want)
		}
		if _, err := os.Stat(job.OutputPath); err != nil {
			t.Fatalf("job %d output missing: %v", job.Index, err)
		}
	}
	second := res.Jobs[1].Ordering.Tracks
	if second[0].Path != input[1].Path || second[1].Path != input[0].Path {
		t.Fatalf("second ordering should be the reverse, got %v", tracks.Paths(second))
	}
	for i := range input {
		if input[i] != original[i] || res.Tracks[i] != original[i] {
			t.Fatalf("input order changed at %d", i)
		}
	}
	if res.OutputName != "mix" {
		t.Fatalf("output name = %q, want template restored", res.OutputName)
	}
}

func TestCancelDuringMuxLeavesJobCancelled(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	muxStarted := make(chan struct{})
	var once sync.Once
	runner := &scriptedRunner{onFinal: func(ctx context.Context) error {
		once.Do(func() { close(muxStarted) })
		<-ctx.Done()
		return ctx.Err()
	}}
	queue := progress.NewQueue(1024)
	ctrl := newController(cfg, newPipeline(runner, queue), queue)

	go func() {
		<-muxStarted
		ctrl.Cancel()
	}()

	res, err := ctrl.Run(context.Background(), Request{Tracks: sampleTracks(t, 3), Images: []string{"cover.jpg"}, Count: 3})
	if err != nil {
		t.Fatalf("cancellation should not be an error: %v", err)
	}
	if !res.Cancelled {
		t.Fatal("expected result to be cancelled")
	}
	first := res.Jobs[0]
	if first.Status != StatusCancelled || first.Stage != progress.StageMux {
		t.Fatalf("job 1 = %s at %q, want cancelled at mux", first.Status, first.Stage)
	}
	if _, err := os.Stat(first.OutputPath); !os.IsNotExist(err) {
		t.Fatalf("cancelled job must not publish output, stat err = %v", err)
	}
	for _, job := range res.Jobs[1:] {
		if job.Status != StatusPending {
			t.Fatalf("job %d = %s, want pending", job.Index, job.Status)
		}
	}
	if ctrl.Running() {
		t.Fatal("controller still running after Run returned")
	}
}

func TestStopPolicyEndsBatchOnFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	tr := &fakeTranscoder{fn: func(_ context.Context, req transcode.Request) (transcode.Result, error) {
		return transcode.Result{}, &transcode.StageError{
			Stage:      progress.StageConcat,
			ExitCode:   1,
			Diagnostic: "concat.txt: Invalid data found",
			Err:        services.ErrExternalTool,
		}
	}}
	ctrl := newController(cfg, tr, nil)

	res, err := ctrl.Run(context.Background(), Request{Tracks: sampleTracks(t, 3), Images: []string{"cover.jpg"}, Count: 3})
	if err == nil {
		t.Fatal("expected error from stop policy")
	}
	if !strings.Contains(err.Error(), "job 1") || !strings.Contains(err.Error(), "concat") {
		t.Fatalf("error should name job and stage: %v", err)
	}
	first := res.Jobs[0]
	if first.Status != StatusFailed || first.Stage != progress.StageConcat || first.Diagnostic == "" {
		t.Fatalf("job 1 = %+v, want failed at concat with diagnostic", first)
	}
	if got := len(tr.calls()); got != 1 {
		t.Fatalf("transcoder called %d times, want 1", got)
	}
	if s := res.Summary(); s.Failed != 1 || s.Pending != 2 {
		t.Fatalf("summary = %+v", s)
	}
}

func TestContinuePolicyRunsRemainingJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithContinueOnFailure())
	tr := &fakeTranscoder{fn: func(_ context.Context, req transcode.Request) (transcode.Result, error) {
		if req.Job == 2 {
			return transcode.Result{}, &transcode.StageError{Stage: progress.StageMux, ExitCode: 1, Diagnostic: "boom", Err: services.ErrExternalTool}
		}
		return writeOutput(req)
	}}
	ctrl := newController(cfg, tr, nil)

	res, err := ctrl.Run(context.Background(), Request{Tracks: sampleTracks(t, 3), Images: []string{"cover.jpg"}, Count: 3})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if s := res.Summary(); s.Done != 2 || s.Failed != 1 {
		t.Fatalf("summary = %+v, want 2 done 1 failed", s)
	}
	if res.Jobs[1].Status != StatusFailed || res.Jobs[2].Status != StatusDone {
		t.Fatalf("unexpected statuses %s %s", res.Jobs[1].Status, res.Jobs[2].Status)
	}
}

func TestImagesAssignedRoundRobin(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	tr := &fakeTranscoder{}
	ctrl := newController(cfg, tr, nil)
	images := []string{"one.jpg", "two.jpg"}

	if _, err := ctrl.Run(context.Background(), Request{Tracks: sampleTracks(t, 3), Images: images, Count: 3}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	calls := tr.calls()
	want := []string{"one.jpg", "two.jpg", "one.jpg"}
	if len(calls) != len(want) {
		t.Fatalf("got %d calls, want %d", len(calls), len(want))
	}
	for i, req := range calls {
		if req.Image != want[i] {
			t.Fatalf("job %d image = %q, want %q", i+1, req.Image, want[i])
		}
		if req.Timeline.Total != 60 {
			t.Fatalf("job %d total = %v, want 60", i+1, req.Timeline.Total)
		}
	}
	if calls[0].Timeline.Entries[0].Track.Title != "A" {
		t.Fatal("first job must use the input order")
	}
}

func TestSingleVideoUsesPlainName(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ctrl := newController(cfg, &fakeTranscoder{}, nil)

	res, err := ctrl.Run(context.Background(), Request{Tracks: sampleTracks(t, 1), Images: []string{"c.jpg"}, Count: 4, OutputName: "my/mix"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Jobs) != 1 || res.Shortfall != 3 {
		t.Fatalf("jobs=%d shortfall=%d, want 1/3", len(res.Jobs), res.Shortfall)
	}
	if base := filepath.Base(res.Jobs[0].OutputPath); strings.Contains(base, "_1") || !strings.HasSuffix(base, ".mp4") {
		t.Fatalf("unexpected single output name %q", base)
	}
}

func TestRunRejectsInvalidRequest(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ctrl := newController(cfg, &fakeTranscoder{}, nil)

	cases := []Request{
		{Images: []string{"c.jpg"}},
		{Tracks: sampleTracks(t, 1)},
		{Tracks: sampleTracks(t, 1), Images: []string{"c.jpg"}, Count: -1},
	}
	for i, req := range cases {
		if _, err := ctrl.Run(context.Background(), req); !errors.Is(err, services.ErrValidation) {
			t.Fatalf("case %d: expected validation error, got %v", i, err)
		}
	}
}

func TestRunRejectsConcurrentBatch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	started := make(chan struct{})
	release := make(chan struct{})
	tr := &fakeTranscoder{fn: func(_ context.Context, req transcode.Request) (transcode.Result, error) {
		close(started)
		<-release
		return writeOutput(req)
	}}
	ctrl := newController(cfg, tr, nil)
	req := Request{Tracks: sampleTracks(t, 1), Images: []string{"c.jpg"}}

	done := make(chan error, 1)
	go func() {
		_, err := ctrl.Run(context.Background(), req)
		done <- err
	}()
	<-started
	if _, err := ctrl.Run(context.Background(), req); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	if ctrl.JobElapsed() <= 0 || ctrl.BatchElapsed() <= 0 {
		t.Fatal("timers should be readable while running")
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first run: %v", err)
	}
}

func TestCancelledContextStartsNoJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	tr := &fakeTranscoder{}
	ctrl := newController(cfg, tr, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := ctrl.Run(ctx, Request{Tracks: sampleTracks(t, 3), Images: []string{"c.jpg"}, Count: 2})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Cancelled || len(tr.calls()) != 0 {
		t.Fatalf("cancelled=%v calls=%d", res.Cancelled, len(tr.calls()))
	}
	if s := res.Summary(); s.Pending != 2 {
		t.Fatalf("summary = %+v, want 2 pending", s)
	}
}

func TestRunRecordsHistory(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)
	ctrl := newController(cfg, &fakeTranscoder{}, nil, WithRecorder(store))

	res, err := ctrl.Run(context.Background(), Request{Tracks: sampleTracks(t, 3), Images: []string{"c.jpg"}, Count: 2, OutputName: "set"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	ctx := context.Background()
	b, err := store.GetBatch(ctx, res.BatchID)
	if err != nil {
		t.Fatalf("GetBatch: %v", err)
	}
	if b.Status != "done" || b.Done != 2 || b.Requested != 2 || b.OutputName != "set" || b.FinishedAt.IsZero() {
		t.Fatalf("batch record = %+v", b)
	}
	jobs, err := store.Jobs(ctx, res.BatchID)
	if err != nil {
		t.Fatalf("Jobs: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("got %d job records, want 2", len(jobs))
	}
	for i, j := range jobs {
		if j.Status != "done" || j.Fingerprint != res.Jobs[i].Ordering.Fingerprint {
			t.Fatalf("job record %d = %+v", i, j)
		}
	}
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages []notifications.Message
	err      error
}

func (f *fakeNotifier) Publish(_ context.Context, msg notifications.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, msg)
	return f.err
}

func TestNotifierSeesLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	notifier := &fakeNotifier{err: errors.New("ntfy down")}
	ctrl := newController(cfg, &fakeTranscoder{}, nil, WithNotifier(notifier))

	if _, err := ctrl.Run(context.Background(), Request{Tracks: sampleTracks(t, 2), Images: []string{"c.jpg"}, Count: 2}); err != nil {
		t.Fatalf("notification failures must not fail the batch: %v", err)
	}
	var events []notifications.Event
	for _, m := range notifier.messages {
		events = append(events, m.Event)
	}
	want := []notifications.Event{
		notifications.EventBatchStarted,
		notifications.EventJobFinished,
		notifications.EventJobFinished,
		notifications.EventBatchCompleted,
	}
	if len(events) != len(want) {
		t.Fatalf("events = %v, want %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("events = %v, want %v", events, want)
		}
	}
	last := notifier.messages[len(notifier.messages)-1]
	if last.Done != 2 || last.Status != "done" {
		t.Fatalf("completion message = %+v", last)
	}
}

type fakeUploader struct {
	err error
}

func (f fakeUploader) Upload(_ context.Context, batchID, file string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "s3://videos/" + batchID + "/" + filepath.Base(file), nil
}

func TestUploadOutcomeKeepsJobDone(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	ctrl := newController(cfg, &fakeTranscoder{}, nil, WithUploader(fakeUploader{}))
	res, err := ctrl.Run(context.Background(), Request{Tracks: sampleTracks(t, 1), Images: []string{"c.jpg"}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if job := res.Jobs[0]; job.Status != StatusDone || !strings.HasPrefix(job.Location, "s3://videos/"+res.BatchID) {
		t.Fatalf("job = %+v", job)
	}

	ctrl = newController(cfg, &fakeTranscoder{}, nil, WithUploader(fakeUploader{err: errors.New("denied")}))
	res, err = ctrl.Run(context.Background(), Request{Tracks: sampleTracks(t, 1), Images: []string{"c.jpg"}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if job := res.Jobs[0]; job.Status != StatusDone || !strings.Contains(job.Note, "denied") {
		t.Fatalf("job = %+v", job)
	}
}

func TestRunPushesLifecycleEvents(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	queue := progress.NewQueue(256)
	ctrl := newController(cfg, &fakeTranscoder{}, queue)

	if _, err := ctrl.Run(context.Background(), Request{Tracks: sampleTracks(t, 2), Images: []string{"c.jpg"}}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	var statuses []string
	for _, e := range queue.Drain() {
		if e.Kind == progress.KindJob {
			statuses = append(statuses, string(e.Status))
		}
		if e.Time.IsZero() {
			t.Fatal("event time not stamped")
		}
	}
	if strings.Join(statuses, ",") != "running,done" {
		t.Fatalf("job statuses = %v", statuses)
	}
}

func TestStaleWorkDirsCleanedAndLeaseReleased(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	stale := filepath.Join(cfg.Paths.WorkDir, "batch-old")
	if err := os.MkdirAll(stale, 0o755); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatal(err)
	}
	tr := &fakeTranscoder{}
	ctrl := newController(cfg, tr, nil)

	if _, err := ctrl.Run(context.Background(), Request{Tracks: sampleTracks(t, 1), Images: []string{"c.jpg"}}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	entries, err := os.ReadDir(cfg.Paths.WorkDir)
	if err != nil {
		t.Fatalf("read work dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("work dir should be empty after a clean batch, found %d entries", len(entries))
	}
	if calls := tr.calls(); !strings.HasPrefix(calls[0].WorkDir, cfg.Paths.WorkDir) {
		t.Fatalf("job work dir %q outside work_dir", calls[0].WorkDir)
	}
}
