package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mixtape/internal/deps"
	"mixtape/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Report external tool availability and the selected video encoder",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			statuses := deps.CheckBinaries(deps.Requirements(cfg))
			rows := make([][]string, 0, len(statuses))
			for _, s := range statuses {
				detail := s.Detail
				if s.Available {
					detail = s.Command
				}
				rows = append(rows, []string{s.Name, yesNo(s.Available), yesNo(!s.Optional), detail, s.Description})
			}
			fmt.Fprintln(out, renderTable([]string{"Tool", "Available", "Required", "Path", "Purpose"}, rows, nil))

			if missing := deps.MissingRequired(statuses); len(missing) > 0 {
				return fmt.Errorf("missing required tools: %v", missing)
			}

			checks := preflight.RunAll(cmd.Context(), cfg)
			rows = rows[:0]
			for _, c := range checks {
				rows = append(rows, []string{c.Name, yesNo(c.Passed), yesNo(!c.Optional), c.Detail})
			}
			fmt.Fprintln(out, renderTable([]string{"Check", "Passed", "Required", "Detail"}, rows, nil))
			if failed := preflight.Failed(checks); len(failed) > 0 {
				return fmt.Errorf("preflight checks failed: %v", failed)
			}

			enc := deps.DetectEncoder(cmd.Context(), cfg)
			fmt.Fprintln(out, renderTable(
				[]string{"Encoder", "Preset", "Quality", "GPU"},
				[][]string{{enc.Codec, enc.Preset, fmt.Sprintf("%s %d", enc.QualityFlag(), enc.Quality), yesNo(enc.GPU())}},
				nil,
			))
			return nil
		},
	}
}
