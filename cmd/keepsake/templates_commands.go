package main

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"keepsake/internal/router"
)

func newTemplatesCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "Inspect site templates",
	}
	cmd.AddCommand(newTemplatesListCommand(ctx))
	cmd.AddCommand(newTemplatesCheckCommand(ctx))
	return cmd
}

func newTemplatesListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List loaded and rejected templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(_ context.Context, app *application) error {
				out := cmd.OutOrStdout()
				all := app.templates.All()
				invalid := app.templates.Invalid()
				if len(all) == 0 && len(invalid) == 0 {
					fmt.Fprintf(out, "No templates in %s\n", app.cfg.Paths.TemplatesDir)
					return nil
				}

				rows := make([][]string, 0, len(all)+len(invalid))
				for _, tpl := range all {
					categories := "-"
					if tpl.Categories.Enabled {
						names := make([]string, 0, len(tpl.Categories.Available))
						for name := range tpl.Categories.Available {
							names = append(names, name)
						}
						slices.Sort(names)
						categories = strings.Join(names, ", ")
					}
					rows = append(rows, []string{tpl.Key, tpl.Name, categories, yesNo(tpl.Subscription.Enabled), "ok"})
				}
				keys := make([]string, 0, len(invalid))
				for key := range invalid {
					keys = append(keys, key)
				}
				slices.Sort(keys)
				for _, key := range keys {
					rows = append(rows, []string{key, "-", "-", "-", invalid[key].Error()})
				}
				fmt.Fprintln(out, renderTable([]string{"File", "Name", "Categories", "Subscriptions", "Status"}, rows))
				return nil
			})
		},
	}
}

func newTemplatesCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check <url>",
		Short: "Show how a URL resolves and where its downloads would go",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(_ context.Context, app *application) error {
				match, err := app.templates.Resolve(args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Template:     %s (%s)\n", match.Template.Name, match.Template.Source)

				category := "-"
				if name, _, ok := match.Category(); ok {
					category = name
				}
				fmt.Fprintf(out, "Category:     %s\n", category)

				dir, err := router.New(app.cfg.Paths.BaseDir).Route(match, router.Options{})
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Destination:  %s\n", dir)

				if !match.Template.Subscription.Enabled {
					fmt.Fprintln(out, "Subscription: disabled")
					return nil
				}
				name, err := match.SubscriptionName()
				if err != nil {
					fmt.Fprintf(out, "Subscription: unavailable (%v)\n", err)
					return nil
				}
				subURL, err := match.SubscriptionURL()
				if err != nil {
					fmt.Fprintf(out, "Subscription: %s (url unavailable: %v)\n", name, err)
					return nil
				}
				fmt.Fprintf(out, "Subscription: %s (%s)\n", name, subURL)
				return nil
			})
		},
	}
}
