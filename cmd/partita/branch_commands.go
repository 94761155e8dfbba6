package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"partita/internal/branch"
)

func newBranchCommand(ctx *commandContext) *cobra.Command {
	branchCmd := &cobra.Command{
		Use:   "branch",
		Short: "Branch policy management",
	}

	branchCmd.AddCommand(newBranchListCommand(ctx))
	branchCmd.AddCommand(newBranchSetCommand(ctx))
	branchCmd.AddCommand(newBranchRemoveCommand(ctx))
	return branchCmd
}

func newBranchListCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list <work-id> <source-id>",
		Short: "List the branches of a source with their policies",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := ctx.openRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			records, err := rt.store.ListBranchRecords(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			names, err := rt.vcs.ListBranches(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}

			byName := make(map[string]*branch.Record, len(records))
			for _, record := range records {
				byName[record.Name] = record
			}
			// Policy records can exist before the first commit lands on the
			// branch; list those too.
			seen := make(map[string]struct{}, len(names))
			for _, name := range names {
				seen[name] = struct{}{}
			}
			for _, record := range records {
				if _, ok := seen[record.Name]; !ok {
					names = append(names, record.Name)
				}
			}

			if jsonOut {
				type branchView struct {
					Name        string `json:"name"`
					Policy      string `json:"policy"`
					OwnerUserID string `json:"ownerUserId,omitempty"`
				}
				views := make([]branchView, 0, len(names))
				for _, name := range names {
					view := branchView{Name: name, Policy: string(branch.PolicyPublic)}
					if record, ok := byName[name]; ok {
						view.Policy = string(record.Policy)
						view.OwnerUserID = record.OwnerUserID
					}
					views = append(views, view)
				}
				return writeJSON(cmd, views)
			}

			out := cmd.OutOrStdout()
			if len(names) == 0 {
				fmt.Fprintln(out, "No branches")
				return nil
			}
			rows := make([][]string, 0, len(names))
			for _, name := range names {
				policy := string(branch.PolicyPublic)
				owner := ""
				if record, ok := byName[name]; ok {
					policy = string(record.Policy)
					owner = record.OwnerUserID
				}
				rows = append(rows, []string{name, policy, owner})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Branch", "Policy", "Owner"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit branches as JSON")
	return cmd
}

func newBranchSetCommand(ctx *commandContext) *cobra.Command {
	var policyFlag string
	var ownerFlag string

	cmd := &cobra.Command{
		Use:   "set <work-id> <source-id> <branch>",
		Short: "Record a branch policy",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			policy := branch.Policy(policyFlag)
			switch policy {
			case branch.PolicyPublic, branch.PolicyOwnerApproval:
			default:
				return fmt.Errorf("unknown policy %q (expected %s or %s)",
					policyFlag, branch.PolicyPublic, branch.PolicyOwnerApproval)
			}
			if policy == branch.PolicyOwnerApproval && ownerFlag == "" {
				return fmt.Errorf("policy %s requires --owner", branch.PolicyOwnerApproval)
			}

			rt, err := ctx.openRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			name := branch.Normalize(args[2])
			err = rt.store.SetBranchRecord(cmd.Context(), branch.Record{
				WorkID:      args[0],
				SourceID:    args[1],
				Name:        name,
				Policy:      policy,
				OwnerUserID: ownerFlag,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Branch %s policy recorded as %s\n", name, policy)
			return nil
		},
	}

	cmd.Flags().StringVar(&policyFlag, "policy", string(branch.PolicyPublic), "Branch policy (public or owner_approval)")
	cmd.Flags().StringVar(&ownerFlag, "owner", "", "Owner user id for owner_approval branches")
	return cmd
}

func newBranchRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <work-id> <source-id> <branch>",
		Short: "Remove a branch policy record, restoring the default public policy",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := ctx.openRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			name := branch.Normalize(args[2])
			if err := rt.store.DeleteBranchRecord(cmd.Context(), args[0], args[1], name); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Branch %s policy removed\n", name)
			return nil
		},
	}
}
