package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var endpointFlag string
	var configFlag string

	ctx := newCommandContext(&endpointFlag, &configFlag)

	rootCmd := &cobra.Command{
		Use:           "datamart",
		Short:         "Confidential data marketplace fulfillment engine",
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

	rootCmd.PersistentFlags().StringVar(&endpointFlag, "endpoint", "", "Daemon API base URL (defaults to http://<api_bind>)")
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")

	rootCmd.AddCommand(newDaemonCommand(ctx))
	rootCmd.AddCommand(newSimulateCommand(ctx))
	for _, cmd := range newTransactionCommands(ctx) {
		rootCmd.AddCommand(cmd)
	}
	rootCmd.AddCommand(newListCommand(ctx))
	rootCmd.AddCommand(newStatusCommand(ctx))
	rootCmd.AddCommand(newTestNotifyCommand(ctx))
	rootCmd.AddCommand(newConfigCommand())

	return rootCmd
}
