package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"partita/internal/imslp"
	"partita/internal/store"
)

func newVerifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <revision-id> <page-title>",
		Short: "Verify an uploaded file against a hosted catalogue entry",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := ctx.openRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			if !rt.cfg.IMSLP.Enabled {
				return errors.New("catalogue verification is disabled; set imslp.enabled in the config")
			}

			resolver := imslp.NewHTTPClient(rt.cfg)
			state, err := rt.ingest.VerifyReference(cmd.Context(), args[0], args[1], resolver)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch state {
			case store.ValidationVerified:
				fmt.Fprintf(out, "Revision %s verified against %s\n", args[0], args[1])
			case store.ValidationMismatch:
				fmt.Fprintf(out, "Revision %s does not match any file on %s\n", args[0], args[1])
			default:
				fmt.Fprintf(out, "Revision %s validation state: %s\n", args[0], state)
			}
			return nil
		},
	}
}
