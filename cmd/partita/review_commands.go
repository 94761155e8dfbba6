package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newApproveCommand(ctx *commandContext) *cobra.Command {
	return newDecisionCommand(ctx, "approve", "Approve a pending revision", true)
}

func newRejectCommand(ctx *commandContext) *cobra.Command {
	return newDecisionCommand(ctx, "reject", "Reject a pending revision", false)
}

func newDecisionCommand(ctx *commandContext, verb, short string, approve bool) *cobra.Command {
	var userID string
	var admin bool

	cmd := &cobra.Command{
		Use:   verb + " <revision-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := ctx.openRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			rev, err := rt.ingest.Decide(cmd.Context(), args[0], approve, actorFrom(userID, admin))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Revision %s (seq %d) is now %s\n", rev.ID, rev.Seq, rev.Status)
			return nil
		},
	}
	addActorFlags(cmd, &userID, &admin)
	return cmd
}

func newWithdrawCommand(ctx *commandContext) *cobra.Command {
	var userID string
	var admin bool

	cmd := &cobra.Command{
		Use:   "withdraw <revision-id>",
		Short: "Withdraw a pending revision you submitted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := ctx.openRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			rev, err := rt.ingest.Withdraw(cmd.Context(), args[0], actorFrom(userID, admin))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Revision %s (seq %d) withdrawn\n", rev.ID, rev.Seq)
			return nil
		},
	}
	addActorFlags(cmd, &userID, &admin)
	return cmd
}
