package main

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"clef/internal/deps"
	"clef/internal/preflight"
)

func newDepsCommand(ctx *commandContext) *cobra.Command {
	var full bool

	cmd := &cobra.Command{
		Use:   "deps",
		Short: "Check external tool availability",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			if full {
				results := preflight.RunAll(cmd.Context(), cfg)
				rows := make([][]string, 0, len(results))
				for _, result := range results {
					rows = append(rows, []string{
						result.Name,
						checkLabel(result.Passed, false, colorize),
						result.Detail,
					})
				}
				table := renderTable([]string{"Check", "Result", "Detail"}, rows, []columnAlignment{alignLeft, alignLeft, alignLeft})
				fmt.Fprintln(out, table)
				if failed := preflight.Failed(results); len(failed) > 0 {
					return fmt.Errorf("%d preflight check(s) failed", len(failed))
				}
				return nil
			}

			statuses := deps.CheckBinaries(deps.Requirements(cfg))
			rows := make([][]string, 0, len(statuses))
			for _, status := range statuses {
				rows = append(rows, []string{
					status.Name,
					checkLabel(status.Available, status.Optional, colorize),
					status.Detail,
				})
			}
			table := renderTable([]string{"Dependency", "Status", "Detail"}, rows, []columnAlignment{alignLeft, alignLeft, alignLeft})
			fmt.Fprintln(out, table)

			if missing := deps.MissingRequired(statuses); len(missing) > 0 {
				return fmt.Errorf("missing required dependencies: %s", strings.Join(missing, ", "))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&full, "full", false, "Run the full preflight suite including directory and LLM checks")
	return cmd
}

func checkLabel(ok, optional bool, colorize bool) string {
	switch {
	case ok:
		return maybeColor("ok", text.FgGreen, colorize)
	case optional:
		return maybeColor("missing (optional)", text.FgYellow, colorize)
	default:
		return maybeColor("missing", text.FgRed, colorize)
	}
}

func maybeColor(value string, color text.Color, colorize bool) string {
	if !colorize {
		return value
	}
	return color.Sprint(value)
}
