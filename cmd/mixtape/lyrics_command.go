package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"mixtape/internal/lyrics"
	"mixtape/internal/timeline"
	"mixtape/internal/tracks"
)

func newLyricsCommand(ctx *commandContext) *cobra.Command {
	var lyricsDir string
	var limit int

	cmd := &cobra.Command{
		Use:   "lyrics <track|lyric-file>",
		Short: "Show how a track's lyrics are discovered, decoded, and classified",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			opts, err := lyrics.OptionsFromConfig(cfg)
			if err != nil {
				return err
			}
			opts.Enabled = true
			synchronizer := lyrics.NewSynchronizer(opts, logger)

			source := args[0]
			var track tracks.Track
			if tracks.IsAudioFile(source) {
				resolver := tracks.NewResolver(cfg, logger)
				if lyricsDir != "" {
					resolver = resolver.WithLyricsDir(lyricsDir)
				}
				track = resolver.Resolve(cmd.Context(), source)
				fmt.Fprintf(out, "Track: %s (%.2fs)\n", track.DisplayName(), track.Duration)
				if !track.HasLyrics() {
					return errors.New("no lyric file found for track")
				}
				source = track.LyricsSource
			}

			report := synchronizer.Inspect(source)
			doc := report.Document
			verdict := "lyrics"
			if report.Skip != lyrics.SkipNone {
				verdict = string(report.Skip)
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Source", "Encoding", "Tagged lines", "Content lines", "Ratio", "Offset", "Verdict"},
				[][]string{{
					report.Source,
					report.Encoding,
					fmt.Sprintf("%d", doc.TaggedLines),
					fmt.Sprintf("%d", doc.ContentLines),
					fmt.Sprintf("%.0f%%", doc.TaggedRatio()*100),
					fmt.Sprintf("%dms", doc.OffsetMS),
					verdict,
				}},
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight},
			))
			if report.Err != nil {
				return report.Err
			}

			rows := cueRows(track, doc, opts, limit)
			if len(rows) == 0 {
				fmt.Fprintln(out, "No cues")
				return nil
			}
			fmt.Fprintln(out, renderTable([]string{"#", "Start", "End", "Text"}, rows, []columnAlignment{alignRight, alignRight, alignRight}))
			if limit > 0 && len(doc.Cues) > limit {
				fmt.Fprintf(out, "%d more cue(s); use --limit 0 to show all\n", len(doc.Cues)-limit)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&lyricsDir, "lyrics", "", "Folder searched for lyric files (default paths.lyrics_dir)")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum cues to print (0 for all)")
	return cmd
}

// cueRows places the parsed cues on a single-track timeline so the printed
// end times match what a batch would burn in. Without a known duration the
// raw cue start times are shown.
func cueRows(track tracks.Track, doc lyrics.Document, opts lyrics.Options, limit int) [][]string {
	rel := doc.Cues
	if limit > 0 && len(rel) > limit {
		rel = rel[:limit]
	}
	if track.Duration > 0 {
		entry := timeline.Build([]tracks.Track{track}).Entries[0]
		placed := lyrics.Place(entry, doc.Cues, opts.LastCueHold, opts.Transform)
		if limit > 0 && len(placed) > limit {
			placed = placed[:limit]
		}
		rows := make([][]string, len(placed))
		for i, c := range placed {
			rows[i] = []string{fmt.Sprintf("%d", i+1), lyrics.FormatTimestamp(c.Start), lyrics.FormatTimestamp(c.End), c.Text}
		}
		return rows
	}
	rows := make([][]string, len(rel))
	for i, c := range rel {
		rows[i] = []string{fmt.Sprintf("%d", i+1), lyrics.FormatTimestamp(c.Time), "", c.Text}
	}
	return rows
}
