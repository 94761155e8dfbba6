package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"partita/internal/deps"
)

func newDepsCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "deps",
		Short: "Check availability of the external tools the pipeline shells out to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			statuses := deps.CheckBinaries(deps.Requirements(cfg))
			if jsonOut {
				return writeJSON(cmd, statuses)
			}

			colorize := stdoutIsTerminal()
			rows := make([][]string, 0, len(statuses))
			missingRequired := false
			for _, status := range statuses {
				if !status.Available && !status.Optional {
					missingRequired = true
				}
				rows = append(rows, []string{
					status.Name,
					status.Command,
					renderAvailability(status.Available, status.Optional, colorize),
					status.Detail,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Dependency", "Command", "Status", "Detail"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
			))
			if missingRequired {
				return errors.New("required external tools are missing")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit dependency status as JSON")
	return cmd
}
