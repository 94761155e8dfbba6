package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"partita/internal/ingest"
	"partita/internal/services"
)

func newIngestCommand(ctx *commandContext) *cobra.Command {
	var branchFlag string
	var formatHint string
	var mimeType string
	var userID string
	var admin bool
	var jsonOut bool
	var quiet bool

	cmd := &cobra.Command{
		Use:   "ingest <work-id> <source-id> <file>",
		Short: "Run the ingestion pipeline for one uploaded score file",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := ctx.openRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			path := args[2]
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read upload %q: %w", path, err)
			}

			sessionID := uuid.NewString()
			var wg sync.WaitGroup
			if !quiet {
				events, cancel := rt.hub.Subscribe(sessionID)
				defer cancel()
				wg.Add(1)
				go func() {
					defer wg.Done()
					for event := range events {
						fmt.Fprintf(cmd.ErrOrStderr(), "[%s] %s\n", event.Stage, event.Message)
					}
				}()
			}

			outcome, err := rt.ingest.Ingest(cmd.Context(), ingest.Request{
				WorkID:     args[0],
				SourceID:   args[1],
				Filename:   filepath.Base(path),
				MIMEType:   mimeType,
				FormatHint: formatHint,
				Branch:     branchFlag,
				Actor:      actorFrom(userID, admin),
				Data:       data,
				SessionID:  sessionID,
			})
			wg.Wait()
			if err != nil {
				if services.IsHardFailure(err) {
					return fmt.Errorf("upload rejected: %w", err)
				}
				return err
			}

			if jsonOut {
				return writeJSON(cmd, outcome)
			}

			out := cmd.OutOrStdout()
			rev := outcome.Revision
			fmt.Fprintf(out, "Status:    %s\n", outcome.Status)
			fmt.Fprintf(out, "Revision:  %s (seq %d, branch %s)\n", rev.ID, rev.Seq, rev.Branch)
			if rev.ArtifactID != "" {
				fmt.Fprintf(out, "Artifact:  %s\n", rev.ArtifactID)
			}
			fmt.Fprintf(out, "Pending:   %s\n", yesNo(rev.Pending))
			for _, note := range outcome.Notes {
				fmt.Fprintf(out, "  %s\n", note.String())
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&branchFlag, "branch", "b", "", "Target branch (defaults to trunk)")
	cmd.Flags().StringVar(&formatHint, "format", "", "Explicit format hint (e.g. musicxml, mxl, mscz)")
	cmd.Flags().StringVar(&mimeType, "mime", "", "Declared MIME type of the upload")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the outcome as JSON")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Suppress stage progress output")
	addActorFlags(cmd, &userID, &admin)
	return cmd
}
