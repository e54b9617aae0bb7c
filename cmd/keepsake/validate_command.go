package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"keepsake/internal/dedup"
)

func newValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Rehash catalogued files and report drift from the archive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(runCtx context.Context, app *application) error {
				report, err := app.dedup.Verify(runCtx, app.cfg.Paths.BaseDir)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				renderVerifyReport(out, report, shouldColorize(out))
				if !report.Clean() {
					return errors.New("archive drift detected")
				}
				return nil
			})
		},
	}
}

func renderVerifyReport(out io.Writer, report *dedup.Report, colorize bool) {
	printLines(out, renderSectionHeader("Validate", colorize)...)
	printLines(out, renderStatusLine("Checked", statusInfo, fmt.Sprintf("%d item(s)", report.Checked), colorize))

	if report.Clean() {
		printLines(out, renderStatusLine("Archive", statusOK, "consistent", colorize))
		return
	}

	missing := fmt.Sprintf("%d item(s)", len(report.Missing))
	if report.Pruned > 0 {
		missing = fmt.Sprintf("%s, %d pruned", missing, report.Pruned)
	}
	printLines(out, renderStatusLine("Missing", kindFor(len(report.Missing)), missing, colorize))
	printLines(out, renderStatusLine("Hash mismatch", kindFor(len(report.Mismatched)), fmt.Sprintf("%d item(s)", len(report.Mismatched)), colorize))
	printLines(out, renderStatusLine("Unregistered", kindFor(len(report.Unregistered)), fmt.Sprintf("%d file(s)", len(report.Unregistered)), colorize))

	rows := make([][]string, 0, len(report.Missing)+len(report.Mismatched)+len(report.Unregistered))
	for _, item := range report.Missing {
		rows = append(rows, []string{"missing", item.Location()})
	}
	for _, m := range report.Mismatched {
		rows = append(rows, []string{"mismatch", m.Item.Location()})
	}
	for _, path := range report.Unregistered {
		rows = append(rows, []string{"unregistered", path})
	}
	fmt.Fprintln(out, renderTable([]string{"Problem", "Path"}, rows))
}

func kindFor(count int) statusKind {
	if count > 0 {
		return statusWarn
	}
	return statusOK
}
