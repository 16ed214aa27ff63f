package command

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/manar-alshaikh/rtf-client/internal/api"
	"github.com/manar-alshaikh/rtf-client/internal/core"
)

// NewLoginCmd creates the login command. It validates the session
// against the server before saving anything.
func NewLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store server URL and session cookie",
		RunE: func(cmd *cobra.Command, args []string) error {
			server, _ := cmd.Flags().GetString("server")
			cookie, _ := cmd.Flags().GetString("cookie")
			desktop, _ := cmd.Flags().GetBool("desktop-notify")
			if server == "" || cookie == "" {
				return fmt.Errorf("both --server and --cookie are required")
			}

			client, err := api.New(server, api.WithSessionCookie(cookie))
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()
			session, err := client.Session(ctx)
			if err != nil {
				return fmt.Errorf("session check failed: %w", err)
			}

			config := core.Config{
				ServerURL:     server,
				SessionCookie: cookie,
				DesktopNotify: desktop,
			}
			if stored, err := core.ReadConfig(); err == nil && stored != nil {
				config.StorePath = stored.StorePath
				config.LogFile = stored.LogFile
				config.LogLevel = stored.LogLevel
			}
			if err := core.WriteConfig(config); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "logged in as @%s\n", session.Username)
			return nil
		},
	}

	cmd.Flags().Bool("desktop-notify", false, "raise OS notifications for unread messages")
	return cmd
}
