package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mixtape/internal/logging"
	"mixtape/internal/tracks"
)

const watchDebounce = 2 * time.Second

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var opts buildOptions
	var skipInitial bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Rebuild whenever tracks in the music folder change",
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			env, err := newBatchEnv(runCtx, ctx, out, opts.showProgress())
			if err != nil {
				return err
			}
			defer env.release()

			dir := firstNonBlank(opts.musicDir, env.cfg.Paths.MusicDir)
			if dir == "" {
				return errors.New("watch needs --music or paths.music_dir")
			}
			opts.musicDir = dir

			watcher, err := fsnotify.NewWatcher()
			if err != nil {
				return fmt.Errorf("create watcher: %w", err)
			}
			defer watcher.Close()
			if err := watcher.Add(dir); err != nil {
				return fmt.Errorf("watch %s: %w", dir, err)
			}

			rebuild := func(ctx context.Context) {
				rebuildOnce(ctx, env, opts, out)
			}
			if !skipInitial {
				rebuild(runCtx)
			}
			fmt.Fprintf(out, "Watching %s for track changes (Ctrl-C to stop)\n", dir)
			err = debounceLoop(runCtx, watcher.Events, watcher.Errors, watchDebounce, env.logger, rebuild)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	opts.register(cmd)
	cmd.Flags().BoolVar(&skipInitial, "skip-initial", false, "Wait for the first change instead of building immediately")
	return cmd
}

func rebuildOnce(ctx context.Context, env *batchEnv, opts buildOptions, out io.Writer) {
	if ctx.Err() != nil {
		return
	}
	req, err := env.inputs(ctx, opts, nil)
	if err != nil {
		logging.WarnWithContext(env.logger, "rebuild skipped", "watch_rebuild_skipped",
			zap.Error(err),
			zap.String(logging.FieldImpact, "no videos rendered for this change"),
		)
		return
	}
	if err := runBatch(ctx, env, req, out); err != nil && !errors.Is(err, context.Canceled) {
		logging.ErrorWithContext(env.logger, "rebuild failed", "watch_rebuild_failed", zap.Error(err))
	}
}

// debounceLoop calls rebuild once changes to audio files have been quiet for
// delay. Changes arriving while rebuild runs start a fresh quiet period
// after it returns.
func debounceLoop(ctx context.Context, events <-chan fsnotify.Event, errs <-chan error, delay time.Duration, logger *zap.Logger, rebuild func(context.Context)) error {
	timer := time.NewTimer(delay)
	timer.Stop()
	defer timer.Stop()
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if !relevantChange(ev) {
				continue
			}
			logger.Debug("music folder changed", zap.String("path", ev.Name), zap.String("op", ev.Op.String()))
			timer.Reset(delay)
			fire = timer.C
		case err, ok := <-errs:
			if !ok {
				return nil
			}
			logging.WarnWithContext(logger, "watcher error", "watch_error",
				zap.Error(err),
				zap.String(logging.FieldImpact, "some changes may be missed"),
			)
		case <-fire:
			fire = nil
			rebuild(ctx)
		}
	}
}

func relevantChange(ev fsnotify.Event) bool {
	if !tracks.IsAudioFile(ev.Name) {
		return false
	}
	return ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename)
}
