package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"keepsake/internal/catalog"
)

func newAddSubscriptionCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add-subscription <url>",
		Short: "Track the listing a URL belongs to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(runCtx context.Context, app *application) error {
				sub, err := app.engine.Add(runCtx, args[0])
				if err != nil {
					return err
				}
				printSubscribed(cmd, sub)
				return nil
			})
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "batch <file>",
		Short: "Add every URL listed in a file as a subscription",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(runCtx context.Context, app *application) error {
				report, err := app.engine.AddFile(runCtx, args[0])
				if err != nil {
					return err
				}
				for _, sub := range report.Added {
					printSubscribed(cmd, sub)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Added %d subscription(s), failed %d\n", len(report.Added), len(report.Failures))
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

func printSubscribed(cmd *cobra.Command, sub *catalog.Subscription) {
	fmt.Fprintf(cmd.OutOrStdout(), "Subscribed to %s (%s) with %d entries\n",
		displayName(sub.DisplayName), sub.CanonicalURL, sub.ContentCount)
}

func newDelSubscriptionCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "del-subscription <id|url|name>",
		Short: "Stop tracking a subscription",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(runCtx context.Context, app *application) error {
				sub, err := app.engine.Remove(runCtx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed subscription %d %s (%s)\n",
					sub.ID, displayName(sub.DisplayName), sub.CanonicalURL)
				return nil
			})
		},
	}
}

func newListSubscriptionsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list-subscriptions [scheme,scheme...]",
		Short: "List tracked subscriptions",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var schemes []string
			if len(args) == 1 {
				schemes = splitSchemes(args[0])
			}
			return ctx.withApp(cmd, func(runCtx context.Context, app *application) error {
				subs, err := app.engine.List(runCtx, schemes...)
				if err != nil {
					return err
				}
				if asJSON {
					if subs == nil {
						subs = []*catalog.Subscription{}
					}
					return writeJSON(cmd, subs)
				}
				out := cmd.OutOrStdout()
				if len(subs) == 0 {
					fmt.Fprintln(out, "No subscriptions")
					return nil
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Scheme", "Name", "Entries", "Downloaded", "New", "Last Checked"},
					subscriptionRows(subs, time.Now()),
					0, 3, 4,
				))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func subscriptionRows(subs []*catalog.Subscription, now time.Time) [][]string {
	rows := make([][]string, 0, len(subs))
	for _, sub := range subs {
		checked := "never"
		if sub.LastCheckedAt != nil {
			checked = humanize.RelTime(*sub.LastCheckedAt, now, "ago", "from now")
		}
		rows = append(rows, []string{
			strconv.FormatInt(sub.ID, 10),
			sub.SchemeName,
			displayName(sub.DisplayName),
			humanize.Comma(int64(sub.ContentCount)),
			humanize.Comma(int64(sub.DownloadedCount)),
			yesNo(sub.HasNewData),
			checked,
		})
	}
	return rows
}

// displayName title-cases a stored subscription name for terminal output.
func displayName(name string) string {
	return cases.Title(language.Und, cases.NoLower).String(name)
}

func splitSchemes(arg string) []string {
	var out []string
	for _, part := range strings.Split(arg, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
