package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mixtape/internal/notifications"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification through the configured channels",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if strings.TrimSpace(cfg.Notifications.NtfyTopic) == "" && strings.TrimSpace(cfg.Notifications.RedisAddr) == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "No notification channels configured")
				return nil
			}
			service := notifications.NewService(cfg)
			defer service.Close()

			err = service.Publish(cmd.Context(), notifications.Message{
				Event:  notifications.EventTest,
				Detail: "mixtape notifications are working",
				Time:   time.Now(),
			})
			if err != nil {
				return fmt.Errorf("send test notification: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Test notification sent")
			return nil
		},
	}
}
