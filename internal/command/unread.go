package command

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/manar-alshaikh/rtf-client/internal/unread"
)

// NewUnreadCmd creates the unread command: a non-interactive dump of
// the persisted unread counts, with usernames resolved when the server
// is reachable.
func NewUnreadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unread",
		Short: "Show persisted unread message counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			client, err := newClient(config)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()
			session, err := client.Session(ctx)
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

			counts, err := store.Counts(session.UserID)
			if err != nil {
				return err
			}
			if len(counts) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no unread messages")
				return nil
			}

			names := make(map[int64]string)
			if list, err := client.Contacts(ctx); err == nil {
				for _, c := range list {
					names[c.UserID] = c.Username
				}
			}

			ids := make([]int64, 0, len(counts))
			for id := range counts {
				ids = append(ids, id)
			}
			sort.Slice(ids, func(i, j int) bool { return counts[ids[i]] > counts[ids[j]] })

			for _, id := range ids {
				name := names[id]
				if name == "" {
					name = fmt.Sprintf("user %d", id)
				} else {
					name = "@" + name
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-24s %d\n", name, counts[id])
			}
			return nil
		},
	}
	return cmd
}
