package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"partita/internal/manifest"
	"partita/internal/objectstore"
)

func newRevisionsCommand(ctx *commandContext) *cobra.Command {
	var userID string
	var admin bool
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "revisions <work-id> <source-id>",
		Short: "List the revisions of a source visible to the caller",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := ctx.openRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			revisions, err := rt.store.ListVisibleRevisions(cmd.Context(), args[0], args[1], actorFrom(userID, admin))
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, revisions)
			}

			out := cmd.OutOrStdout()
			if len(revisions) == 0 {
				fmt.Fprintln(out, "No revisions")
				return nil
			}

			colorize := stdoutIsTerminal()
			rows := make([][]string, 0, len(revisions))
			for _, rev := range revisions {
				artifact := rev.ArtifactID
				if len(artifact) > 12 {
					artifact = artifact[:12]
				}
				rows = append(rows, []string{
					strconv.Itoa(rev.Seq),
					rev.ID,
					rev.Branch,
					renderStatus(rev.Status, colorize),
					rev.Format,
					yesNo(rev.Pending),
					artifact,
					rev.CreatedAt.Local().Format(time.DateTime),
				})
			}
			headers := []string{"Seq", "Revision", "Branch", "Status", "Format", "Pending", "Artifact", "Created"}
			aligns := []columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft}
			fmt.Fprintln(out, renderTable(headers, rows, aligns))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit revisions as JSON")
	addActorFlags(cmd, &userID, &admin)
	return cmd
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "show <revision-id>",
		Short: "Show one revision with its pipeline manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := ctx.openRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			rev, err := rt.store.GetRevision(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			var m *manifest.Manifest
			if rev.ManifestKey != "" {
				data, err := rt.objects.Get(cmd.Context(), objectstore.BucketDerivatives, rev.ManifestKey)
				if err == nil {
					var decoded manifest.Manifest
					if json.Unmarshal(data, &decoded) == nil {
						m = &decoded
					}
				}
			}

			if jsonOut {
				return writeJSON(cmd, struct {
					Revision any                `json:"revision"`
					Manifest *manifest.Manifest `json:"manifest,omitempty"`
				}{rev, m})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Revision:  %s\n", rev.ID)
			fmt.Fprintf(out, "Source:    %s/%s (seq %d)\n", rev.WorkID, rev.SourceID, rev.Seq)
			fmt.Fprintf(out, "Branch:    %s\n", rev.Branch)
			fmt.Fprintf(out, "Status:    %s\n", renderStatus(rev.Status, stdoutIsTerminal()))
			fmt.Fprintf(out, "Format:    %s\n", rev.Format)
			fmt.Fprintf(out, "Pending:   %s\n", yesNo(rev.Pending))
			fmt.Fprintf(out, "Validation:%s\n", " "+string(rev.Validation))
			if rev.ArtifactID != "" {
				fmt.Fprintf(out, "Artifact:  %s\n", rev.ArtifactID)
			}
			if rev.ParentArtifactID != "" {
				fmt.Fprintf(out, "Parent:    %s\n", rev.ParentArtifactID)
			}
			if rev.UploaderID != "" {
				fmt.Fprintf(out, "Uploader:  %s\n", rev.UploaderID)
			}
			if m != nil {
				fmt.Fprintln(out, "Pipeline:")
				for _, note := range m.Notes {
					fmt.Fprintf(out, "  %s\n", note.String())
				}
				if len(m.Tooling) > 0 {
					fmt.Fprintln(out, "Tooling:")
					for role, version := range m.Tooling {
						fmt.Fprintf(out, "  %s: %s\n", role, version)
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the revision as JSON")
	return cmd
}
