package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification through the daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			resp, err := client.TestNotification(cmd.Context())
			if err != nil {
				return err
			}
			if resp == nil {
				return errors.New("missing notification response")
			}
			switch {
			case resp.Message != "":
				fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
			case resp.Sent:
				fmt.Fprintln(cmd.OutOrStdout(), "Test notification sent")
			default:
				fmt.Fprintln(cmd.OutOrStdout(), "Notification not sent")
			}
			return nil
		},
	}
}
