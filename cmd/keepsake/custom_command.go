package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"keepsake/internal/archiver"
	"keepsake/internal/dedup"
)

func newCustomCommand(ctx *commandContext) *cobra.Command {
	var tags []string

	cmd := &cobra.Command{
		Use:   "custom <url>",
		Short: "Download a single URL into the archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(runCtx context.Context, app *application) error {
				result, err := app.archiver.Archive(runCtx, archiver.Request{URL: args[0], Tags: tags})
				if err != nil {
					return err
				}
				printArchived(cmd.OutOrStdout(), result)
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVarP(&tags, "tag", "t", nil, "Tag to attach to the catalogued item (repeatable)")

	cmd.AddCommand(&cobra.Command{
		Use:   "batch <file>",
		Short: "Download every URL listed in a file, one per line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(runCtx context.Context, app *application) error {
				report, err := app.archiver.ArchiveFile(runCtx, args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, result := range report.Archived {
					printArchived(out, result)
				}
				fmt.Fprintf(out, "Archived %d URL(s), downloaded %d, failed %d\n",
					len(report.Archived), report.Downloaded(), len(report.Failures))
				rows := make([][]string, 0, len(report.Failures))
				for _, f := range report.Failures {
					rows = append(rows, []string{f.URL, f.Kind, f.Err.Error()})
				}
				printFailures(out, []string{"URL", "Kind", "Error"}, rows)
				return nil
			})
		},
	})
	return cmd
}

func printArchived(out io.Writer, result *archiver.Result) {
	outcome := dedup.Outcome("")
	if result.Save != nil {
		outcome = result.Save.Outcome
	}
	verb := "Saved"
	if !result.Downloaded {
		verb = "Already on disk"
	}
	fmt.Fprintf(out, "%s %s (%s)\n", verb, result.Path, outcome)
}
