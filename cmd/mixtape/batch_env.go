package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"mixtape/internal/batch"
	"mixtape/internal/config"
	"mixtape/internal/deps"
	"mixtape/internal/history"
	"mixtape/internal/logging"
	"mixtape/internal/lyrics"
	"mixtape/internal/notifications"
	"mixtape/internal/preflight"
	"mixtape/internal/progress"
	"mixtape/internal/publish"
	"mixtape/internal/tracks"
	"mixtape/internal/transcode"
)

// batchEnv holds everything one or more consecutive batches share: the
// controller, its progress relay, and the history and notification sinks.
type batchEnv struct {
	cfg        *config.Config
	logger     *zap.Logger
	resolver   *tracks.Resolver
	queue      *progress.Queue
	relay      *progress.Relay
	controller *batch.Controller
	store      *history.Store
	notifier   notifications.Service
	encoder    deps.Encoder
}

func newBatchEnv(ctx context.Context, cc *commandContext, out io.Writer, showProgress bool) (*batchEnv, error) {
	cfg, err := cc.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := cc.ensureLogger()
	if err != nil {
		return nil, err
	}

	if missing := deps.MissingRequired(deps.CheckBinaries(deps.Requirements(cfg))); len(missing) > 0 {
		return nil, fmt.Errorf("missing required binaries: %s (run `mixtape check`)", strings.Join(missing, ", "))
	}
	for _, r := range []preflight.Result{
		preflight.CheckDirectoryAccess("Work directory", cfg.Paths.WorkDir),
		preflight.CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir),
	} {
		if !r.Passed {
			return nil, fmt.Errorf("%s: %s", strings.ToLower(r.Name), r.Detail)
		}
	}
	encoder := deps.DetectEncoder(ctx, cfg)

	lyricOpts, err := lyrics.OptionsFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("lyrics config: %w", err)
	}
	synchronizer := lyrics.NewSynchronizer(lyricOpts, logger)

	queue := progress.NewQueue(cfg.Progress.QueueSize)
	runner := transcode.NewExecRunner(cfg.CancelGrace(), logger)
	pipeline := transcode.New(transcode.SettingsFromConfig(cfg, encoder), runner, func(e progress.Event) {
		queue.Push(e)
	}, logger)

	store, err := history.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	uploader, err := publish.NewFromConfig(cfg)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("publish config: %w", err)
	}
	notifier := notifications.NewService(cfg)

	opts := []batch.Option{batch.WithRecorder(store), batch.WithNotifier(notifier)}
	if uploader != nil {
		opts = append(opts, batch.WithUploader(uploader))
	}
	controller := batch.New(cfg, pipeline, synchronizer, queue, logger, opts...)

	observers := []progress.Observer{progress.NewLogObserver(logger)}
	if showProgress {
		observers = append(observers, newBarObserver(out))
	}
	relay := progress.NewRelay(queue, cfg.ProgressPollInterval(), logger, observers...)
	// The relay drains after the queue closes, so it must outlive ctx.
	relay.Start(context.WithoutCancel(ctx))

	logger.Debug("batch environment ready",
		zap.String("encoder", encoder.Codec),
		zap.String("preset", encoder.Preset),
		zap.Bool("publish", uploader != nil),
	)

	return &batchEnv{
		cfg:        cfg,
		logger:     logger,
		resolver:   tracks.NewResolver(cfg, logger),
		queue:      queue,
		relay:      relay,
		controller: controller,
		store:      store,
		notifier:   notifier,
		encoder:    encoder,
	}, nil
}

func (e *batchEnv) close() error {
	e.queue.Close()
	e.relay.Wait()
	return errors.Join(e.notifier.Close(), e.store.Close())
}

// release closes the environment from a defer, logging what close reports.
func (e *batchEnv) release() {
	if err := e.close(); err != nil {
		logging.WarnWithContext(e.logger, "batch environment close failed", "shutdown_failed",
			zap.Error(err),
			zap.String(logging.FieldErrorHint, "check the history database and notification endpoints"),
			zap.String(logging.FieldImpact, "the last batch may be missing from history"),
		)
	}
}

// inputs gathers tracks and images for a batch. Explicit track paths win
// over scanning the music folder.
func (e *batchEnv) inputs(ctx context.Context, opts buildOptions, trackArgs []string) (batch.Request, error) {
	paths := trackArgs
	if len(paths) == 0 {
		dir := firstNonBlank(opts.musicDir, e.cfg.Paths.MusicDir)
		if dir == "" {
			return batch.Request{}, errors.New("no tracks given and paths.music_dir is not set")
		}
		scanned, err := tracks.Scan(dir)
		if err != nil {
			return batch.Request{}, fmt.Errorf("scan music folder: %w", err)
		}
		paths = scanned
	}
	if len(paths) == 0 {
		return batch.Request{}, errors.New("no audio tracks found")
	}

	images := opts.images
	if len(images) == 0 {
		dir := firstNonBlank(opts.imagesDir, e.cfg.Paths.ImagesDir)
		if dir == "" {
			return batch.Request{}, errors.New("no --image given and paths.images_dir is not set")
		}
		scanned, err := tracks.ScanImages(dir)
		if err != nil {
			return batch.Request{}, fmt.Errorf("scan images folder: %w", err)
		}
		images = scanned
	}
	if len(images) == 0 {
		return batch.Request{}, errors.New("no background images found")
	}

	resolver := e.resolver
	if opts.lyricsDir != "" {
		resolver = resolver.WithLyricsDir(opts.lyricsDir)
	}
	return batch.Request{
		Tracks:     resolver.ResolveAll(ctx, paths),
		Images:     images,
		Count:      opts.count,
		OutputName: opts.name,
		OutputDir:  opts.outputDir,
	}, nil
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
