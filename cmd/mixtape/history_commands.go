package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"mixtape/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect past batches",
	}
	cmd.AddCommand(newHistoryListCommand(ctx))
	cmd.AddCommand(newHistoryShowCommand(ctx))
	cmd.AddCommand(newHistoryPruneCommand(ctx))
	return cmd
}

func newHistoryListCommand(ctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent batches, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openHistory()
			if err != nil {
				return err
			}
			defer store.Close()

			batches, err := store.ListBatches(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(batches) == 0 {
				fmt.Fprintln(out, "No batches recorded")
				return nil
			}
			rows := make([][]string, 0, len(batches))
			for _, b := range batches {
				rows = append(rows, []string{
					shortID(b.ID),
					b.StartedAt.Local().Format(time.DateTime),
					b.Status,
					b.OutputName,
					fmt.Sprintf("%d", b.Tracks),
					fmt.Sprintf("%d/%d", b.Done, b.Requested),
					fmt.Sprintf("%d", b.Failed),
					formatDuration(b.Elapsed()),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Started", "Status", "Name", "Tracks", "Done", "Failed", "Elapsed"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight},
			))
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum batches to list")
	return cmd
}

func newHistoryShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <batch-id>",
		Short: "Show one batch and its jobs (an unambiguous id prefix is enough)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openHistory()
			if err != nil {
				return err
			}
			defer store.Close()

			b, err := store.GetBatch(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if b == nil {
				return fmt.Errorf("no batch matches %q", args[0])
			}
			jobs, err := store.Jobs(cmd.Context(), b.ID)
			if err != nil {
				return err
			}
			printHistoryBatch(cmd, b, jobs)
			return nil
		},
	}
}

func printHistoryBatch(cmd *cobra.Command, b *history.Batch, jobs []history.Job) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Batch %s\n", b.ID)
	fmt.Fprintf(out, "  Status:    %s\n", b.Status)
	fmt.Fprintf(out, "  Started:   %s\n", b.StartedAt.Local().Format(time.DateTime))
	if !b.FinishedAt.IsZero() {
		fmt.Fprintf(out, "  Finished:  %s (%s)\n", b.FinishedAt.Local().Format(time.DateTime), formatDuration(b.Elapsed()))
	}
	fmt.Fprintf(out, "  Requested: %d (available %d)\n", b.Requested, b.Effective)
	fmt.Fprintf(out, "  Outcome:   %d done, %d failed, %d cancelled\n", b.Done, b.Failed, b.Cancelled)

	if len(jobs) == 0 {
		return
	}
	rows := make([][]string, 0, len(jobs))
	for _, j := range jobs {
		detail := lastLine(j.Diagnostic)
		if detail == "" {
			detail = j.Note
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", j.Index),
			j.Status,
			j.Stage,
			j.OutputPath,
			formatDuration(j.Elapsed),
			detail,
		})
	}
	fmt.Fprintln(out, renderTable([]string{"#", "Status", "Stage", "Output", "Elapsed", "Detail"}, rows, []columnAlignment{alignRight}))
}

func newHistoryPruneCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete batch records older than a cutoff",
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}
			store, err := ctx.openHistory()
			if err != nil {
				return err
			}
			defer store.Close()

			removed, err := store.Prune(cmd.Context(), time.Now().Add(-olderThan))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d batch record(s)\n", removed)
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "Age cutoff, e.g. 720h")
	return cmd
}
