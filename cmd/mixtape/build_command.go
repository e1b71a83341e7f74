package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"mixtape/internal/batch"
)

type buildOptions struct {
	musicDir   string
	imagesDir  string
	lyricsDir  string
	outputDir  string
	name       string
	images     []string
	count      int
	noProgress bool
}

func (o *buildOptions) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&o.musicDir, "music", "", "Folder to scan for tracks when none are given (default paths.music_dir)")
	flags.StringVar(&o.imagesDir, "images", "", "Folder of background images (default paths.images_dir)")
	flags.StringArrayVar(&o.images, "image", nil, "Background image; repeat to rotate through several")
	flags.StringVar(&o.lyricsDir, "lyrics", "", "Folder searched for lyric files (default paths.lyrics_dir)")
	flags.StringVarP(&o.outputDir, "output", "o", "", "Output folder (default paths.output_dir)")
	flags.StringVarP(&o.name, "name", "n", "", "Output file name template (default batch.output_name)")
	flags.IntVar(&o.count, "count", 0, "Number of videos, each with a different track order (default batch.count)")
	flags.BoolVar(&o.noProgress, "no-progress", false, "Disable the progress bar")
}

func (o buildOptions) showProgress() bool {
	return !o.noProgress && isatty.IsTerminal(os.Stdout.Fd())
}

func newBuildCommand(ctx *commandContext) *cobra.Command {
	var opts buildOptions

	cmd := &cobra.Command{
		Use:   "build [track...]",
		Short: "Render one or more videos from a set of tracks",
		Long: "Render one or more videos from a set of tracks.\n\n" +
			"Each video after the first uses a different track order. Tracks default to the\n" +
			"music folder; Ctrl-C stops the current video and skips the rest.",
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			env, err := newBatchEnv(runCtx, ctx, out, opts.showProgress())
			if err != nil {
				return err
			}
			defer env.release()

			req, err := env.inputs(runCtx, opts, args)
			if err != nil {
				return err
			}
			return runBatch(runCtx, env, req, out)
		},
	}
	opts.register(cmd)
	return cmd
}

// runBatch runs one batch and prints its summary, including after a
// cancellation or a stop-on-failure.
func runBatch(ctx context.Context, env *batchEnv, req batch.Request, out io.Writer) error {
	fmt.Fprintf(out, "Building from %d track(s) with %d image(s) using %s\n", len(req.Tracks), len(req.Images), env.encoder.Codec)
	res, err := env.controller.Run(ctx, req)
	if res.BatchID == "" && err != nil {
		return err
	}
	printBatchSummary(out, res)
	switch {
	case err != nil:
		return err
	case res.Cancelled:
		fmt.Fprintln(out, "Batch cancelled")
		return context.Canceled
	case res.Summary().Failed > 0:
		return fmt.Errorf("%d video(s) failed", res.Summary().Failed)
	}
	return nil
}

func printBatchSummary(out io.Writer, res batch.Result) {
	headers := []string{"#", "Status", "Output", "Stage", "Elapsed", "Detail"}
	rows := make([][]string, 0, len(res.Jobs))
	for _, job := range res.Jobs {
		rows = append(rows, []string{
			fmt.Sprintf("%d", job.Index),
			string(job.Status),
			job.OutputPath,
			string(job.Stage),
			formatDuration(job.Elapsed),
			jobDetail(job),
		})
	}
	fmt.Fprintln(out, renderTable(headers, rows, []columnAlignment{alignRight}))

	s := res.Summary()
	fmt.Fprintf(out, "Batch %s: %d done, %d failed, %d cancelled, %d not started in %s\n",
		shortID(res.BatchID), s.Done, s.Failed, s.Cancelled, s.Pending, formatDuration(res.Elapsed))
	if res.Shortfall > 0 {
		fmt.Fprintf(out, "Only %d distinct track order(s) available; %d of %d requested video(s) not produced\n",
			res.Effective, res.Shortfall, res.Requested)
	}
}

func jobDetail(job batch.Job) string {
	switch {
	case job.Diagnostic != "":
		return lastLine(job.Diagnostic)
	case job.Note != "":
		return job.Note
	case job.Location != "":
		return job.Location
	case len(job.Warnings) > 0:
		return fmt.Sprintf("%d subtitle warning(s)", len(job.Warnings))
	}
	return ""
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return d.Round(time.Second).String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
