package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"keepsake/internal/catalog"
	"keepsake/internal/config"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export catalog records to a JSON file",
	}
	cmd.AddCommand(newExportSubcommand(ctx, "subscriptions", (*catalog.Catalog).ExportSubscriptions))
	cmd.AddCommand(newExportSubcommand(ctx, "items", (*catalog.Catalog).ExportItems))
	return cmd
}

func newExportSubcommand(ctx *commandContext, kind string, export func(*catalog.Catalog, context.Context, string) (int, error)) *cobra.Command {
	return &cobra.Command{
		Use:   kind + " <file>",
		Short: "Export " + kind,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			return ctx.withApp(cmd, func(runCtx context.Context, app *application) error {
				n, err := export(app.catalog, runCtx, path)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported %d %s to %s\n", n, kind, path)
				return nil
			})
		},
	}
}

func newImportCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import catalog records from a JSON file",
	}
	cmd.AddCommand(newImportSubcommand(ctx, "subscriptions", (*catalog.Catalog).ImportSubscriptions))
	cmd.AddCommand(newImportSubcommand(ctx, "items", (*catalog.Catalog).ImportItems))
	return cmd
}

func newImportSubcommand(ctx *commandContext, kind string, load func(*catalog.Catalog, context.Context, string) (catalog.ImportResult, error)) *cobra.Command {
	return &cobra.Command{
		Use:   kind + " <file>",
		Short: "Import " + kind,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			return ctx.withApp(cmd, func(runCtx context.Context, app *application) error {
				result, err := load(app.catalog, runCtx, path)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Imported %d %s (%d merged, %d skipped, %d failed)\n",
					result.Imported, kind, result.Merged, result.Skipped, len(result.Failures))
				rows := make([][]string, 0, len(result.Failures))
				for _, f := range result.Failures {
					rows = append(rows, []string{strconv.Itoa(f.Index), f.Ref, f.Kind, f.Err.Error()})
				}
				printFailures(out, []string{"Record", "Ref", "Kind", "Error"}, rows)
				return nil
			})
		},
	}
}
