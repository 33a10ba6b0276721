package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	root := &cobra.Command{
		Use:           "babel",
		Short:         "Streaming translation worker and CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	ctx.bindFlags(root)

	root.AddCommand(newDaemonCommands(ctx)...)
	root.AddCommand(
		newTranslateCommand(ctx),
		newServeCommand(ctx),
		newHistoryCommand(ctx),
		newLanguagesCommand(),
		newLogsCommand(ctx),
		newConfigCommand(ctx),
	)
	return root
}
