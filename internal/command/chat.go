package command

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/manar-alshaikh/rtf-client/internal/bus"
	"github.com/manar-alshaikh/rtf-client/internal/chat"
	"github.com/manar-alshaikh/rtf-client/internal/contacts"
	"github.com/manar-alshaikh/rtf-client/internal/transport"
	"github.com/manar-alshaikh/rtf-client/internal/unread"
)

// NewChatCmd creates the chat command.
func NewChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive chat mode",
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			if err := initLogging(config); err != nil {
				return err
			}

			client, err := newClient(config)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			session, err := client.Session(ctx)
			cancel()
			if err != nil {
				return fmt.Errorf("not logged in: %w", err)
			}

			dbPath, err := storePath(config)
			if err != nil {
				return err
			}
			store, err := unread.OpenStore(dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			signals := bus.New()
			directory := contacts.NewDirectory(session, signals)
			manager, err := unread.NewManager(session, store, signals, unread.Options{
				DesktopNotify: config.DesktopNotify,
			})
			if err != nil {
				return err
			}

			channel := transport.NewChannel(client.WebSocketURL(), transport.Options{
				Header: channelHeader(config),
			})

			return chat.Run(chat.Options{
				Client:    client,
				Channel:   channel,
				Session:   session,
				Directory: directory,
				Unread:    manager,
				Signals:   signals,
			})
		},
	}
	return cmd
}
