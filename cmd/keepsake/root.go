package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	return newRootCommandWith(nil)
}

// newRootCommandWith builds the command tree. A non-nil newFetcher replaces
// the yt-dlp client.
func newRootCommandWith(newFetcher fetcherFactory) *cobra.Command {
	var configFlag string

	ctx := newCommandContext(&configFlag, newFetcher)

	rootCmd := &cobra.Command{
		Use:           "keepsake",
		Short:         "Archive media from template-described sites",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")

	rootCmd.AddCommand(newCustomCommand(ctx))
	rootCmd.AddCommand(newAddSubscriptionCommand(ctx))
	rootCmd.AddCommand(newDelSubscriptionCommand(ctx))
	rootCmd.AddCommand(newListSubscriptionsCommand(ctx))
	rootCmd.AddCommand(newStartCommand(ctx))
	rootCmd.AddCommand(newValidateCommand(ctx))
	rootCmd.AddCommand(newExportCommand(ctx))
	rootCmd.AddCommand(newImportCommand(ctx))
	rootCmd.AddCommand(newTemplatesCommand(ctx))
	rootCmd.AddCommand(newCheckCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}
