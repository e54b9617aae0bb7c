package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"keepsake/internal/logging"
	"keepsake/internal/preflight"
	"keepsake/internal/subscriptions"
)

func newStartCommand(ctx *commandContext) *cobra.Command {
	var opts subscriptions.RunOptions
	var watch bool

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Poll subscriptions and download missing entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(runCtx context.Context, app *application) error {
				lock := flock.New(app.cfg.LockPath())
				ok, err := lock.TryLock()
				if err != nil {
					return fmt.Errorf("acquire lock: %w", err)
				}
				if !ok {
					return errors.New("another keepsake run is already in progress")
				}
				defer func() {
					if err := lock.Unlock(); err != nil {
						app.logger.Warn("failed to release run lock", logging.Error(err))
					}
				}()

				for {
					if err := runOnce(runCtx, cmd.OutOrStdout(), app, opts); err != nil {
						return err
					}
					if !watch {
						return nil
					}
					select {
					case <-runCtx.Done():
						return runCtx.Err()
					case <-time.After(app.cfg.WatchInterval()):
					}
				}
			})
		},
	}
	cmd.Flags().BoolVarP(&opts.Force, "force", "f", false, "Poll every subscription regardless of the check interval")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Keep running, pausing between runs")
	cmd.Flags().BoolVar(&opts.SkipDownloads, "skip-downloads", false, "Poll without downloading missing entries")
	cmd.Flags().StringSliceVar(&opts.Schemes, "scheme", nil, "Limit the run to the given template names")
	return cmd
}

// runOnce skips the run when the network is unreachable; that is not an
// error.
func runOnce(ctx context.Context, out io.Writer, app *application, opts subscriptions.RunOptions) error {
	live := preflight.CheckLiveness(ctx, app.cfg.Liveness.URL, app.cfg.LivenessTimeout())
	if !live.Passed {
		logging.WarnWithContext(app.logger, "network unreachable; run skipped", "run_skipped_offline",
			logging.String("detail", live.Detail),
			logging.String(logging.FieldErrorHint, "check connectivity or liveness.url"),
			logging.String(logging.FieldImpact, "subscriptions not polled this run"),
		)
		fmt.Fprintf(out, "Network %s; skipping run\n", live.Detail)
		return nil
	}

	report, err := app.engine.Run(ctx, opts)
	if err != nil {
		return err
	}
	renderRunReport(out, report, shouldColorize(out))
	return nil
}

func renderRunReport(out io.Writer, report *subscriptions.Report, colorize bool) {
	printLines(out, renderSectionHeader("Run "+report.RunID, colorize)...)

	elapsed := report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond)
	printLines(out,
		renderStatusLine("Polled", statusInfo, fmt.Sprintf("%d subscription(s) in %s", len(report.Polls)-report.Skipped(), elapsed), colorize),
		renderStatusLine("Skipped", statusInfo, humanize.Comma(int64(report.Skipped())), colorize),
		renderStatusLine("New data", statusOK, humanize.Comma(int64(report.Count(subscriptions.StateNewData))), colorize),
		renderStatusLine("No change", statusOK, humanize.Comma(int64(report.Count(subscriptions.StateNoChange))), colorize),
	)
	if n := report.Count(subscriptions.StateRegressed); n > 0 {
		printLines(out, renderStatusLine("Regressed", statusWarn, humanize.Comma(int64(n)), colorize))
	}
	if n := report.Count(subscriptions.StateUnchecked); n > 0 {
		printLines(out, renderStatusLine("Unchecked", statusError, humanize.Comma(int64(n)), colorize))
	}
	printLines(out, renderStatusLine("Downloaded", statusOK, humanize.Comma(int64(report.Downloaded())), colorize))

	rows := make([][]string, 0, len(report.Failures))
	for _, f := range report.Failures {
		rows = append(rows, []string{displayName(f.Subscription), f.URL, f.Kind, f.Err.Error()})
	}
	printFailures(out, []string{"Subscription", "URL", "Kind", "Error"}, rows)
}
