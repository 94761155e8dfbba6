package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"partita/internal/convert"
	"partita/internal/diff"
)

func newDiffCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "diff <work-id> <source-id> <seq-a> <seq-b>",
		Short: "Compare two committed revisions of a source",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			seqA, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("invalid sequence %q", args[2])
			}
			seqB, err := strconv.Atoi(args[3])
			if err != nil {
				return fmt.Errorf("invalid sequence %q", args[3])
			}

			rt, err := ctx.openRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			svc := diff.NewService(rt.cfg, rt.store, rt.objects, rt.vcs, convert.NewExecutor(), rt.logger)
			result, err := svc.Compare(cmd.Context(), args[0], args[1], seqA, seqB)
			if err != nil {
				return err
			}

			if jsonOut {
				return writeJSON(cmd, result)
			}

			out := cmd.OutOrStdout()
			fmt.Fprint(out, result.TextDiff)
			fmt.Fprintf(out, "\nReport stored at %s/%s\n", result.Report.Bucket, result.Report.Key)
			if result.PDF != nil {
				fmt.Fprintf(out, "Visual diff stored at %s/%s\n", result.PDF.Bucket, result.PDF.Key)
			} else {
				fmt.Fprintln(out, "Visual diff unavailable")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the comparison as JSON")
	return cmd
}
