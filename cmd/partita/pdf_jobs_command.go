package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"partita/internal/pdfjob"
)

func newPDFJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "pdf-jobs",
		Short: "Deferred PDF rendering jobs",
	}

	jobsCmd.AddCommand(newPDFJobsListCommand(ctx))
	jobsCmd.AddCommand(newPDFJobsRunCommand(ctx))
	return jobsCmd
}

func newPDFJobsListCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List deferred rendering jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := ctx.openRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			jobs, err := rt.store.ListPDFJobs(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, jobs)
			}

			out := cmd.OutOrStdout()
			if len(jobs) == 0 {
				fmt.Fprintln(out, "No PDF jobs")
				return nil
			}
			rows := make([][]string, 0, len(jobs))
			for _, job := range jobs {
				rows = append(rows, []string{
					strconv.FormatInt(job.ID, 10),
					fmt.Sprintf("%s/%s", job.WorkID, job.SourceID),
					strconv.Itoa(job.Seq),
					string(job.State),
					strconv.Itoa(job.Attempts),
					job.LastError,
					job.UpdatedAt.Local().Format(time.DateTime),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Source", "Seq", "State", "Attempts", "Last Error", "Updated"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft, alignRight, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit jobs as JSON")
	return cmd
}

func newPDFJobsRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Process all pending rendering jobs once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := ctx.openRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			worker := pdfjob.NewWorker(rt.cfg, rt.store, rt.objects, rt.engine, rt.logger)
			if err := worker.Drain(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Pending jobs processed")
			return nil
		},
	}
}
