package command

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/manar-alshaikh/rtf-client/internal/api"
	"github.com/manar-alshaikh/rtf-client/internal/feed"
	"github.com/manar-alshaikh/rtf-client/internal/transport"
	"github.com/manar-alshaikh/rtf-client/internal/types"
)

// NewCommentsCmd creates the comments command: page through a post's
// comments from the terminal, optionally posting one first. With
// --follow the command stays attached to the realtime channel and
// prints new comments and reaction updates as they arrive.
func NewCommentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "comments <post-id>",
		Short: "List comments on a post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			postID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid post id %q", args[0])
			}
			pages, _ := cmd.Flags().GetInt("pages")
			post, _ := cmd.Flags().GetString("post")
			follow, _ := cmd.Flags().GetBool("follow")

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

			ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
			defer cancel()

			if post != "" {
				if err := client.PostComment(ctx, postID, post); err != nil {
					return err
				}
			}

			pane := feed.NewPane(postID, api.CommentPageSize)
			for fetched := 0; pages <= 0 || fetched < pages; fetched++ {
				beforeID, limit, ok := pane.NextQuery()
				if !ok {
					break
				}
				items, nextCursor, err := client.Comments(ctx, postID, beforeID, limit)
				if err != nil {
					pane.AbortLoad()
					return err
				}
				pane.ApplyPage(items, nextCursor)
			}

			out := cmd.OutOrStdout()
			comments := pane.Comments()
			if len(comments) == 0 && !follow {
				fmt.Fprintln(out, "no comments")
				return nil
			}
			for _, c := range comments {
				printComment(out, c)
			}
			if !pane.Done() {
				fmt.Fprintln(out, "…older comments not shown (raise --pages)")
			}
			if !follow {
				return nil
			}

			channel := transport.NewChannel(client.WebSocketURL(), transport.Options{
				Header: channelHeader(config),
			})
			if err := channel.Connect(); err != nil {
				return err
			}
			defer channel.Close()

			watchCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			fmt.Fprintln(out, "watching for new comments — ctrl+c to stop")
			return followComments(watchCtx, channel.Events(), pane, out)
		},
	}

	cmd.Flags().Int("pages", 0, "max pages to fetch (0 = all)")
	cmd.Flags().String("post", "", "post this comment before listing")
	cmd.Flags().Bool("follow", false, "keep printing new comments as they arrive")
	return cmd
}

// followComments consumes realtime frames until the context ends, the
// events channel closes, or the transport gives up reconnecting. The
// pane filters out frames for other posts and replays.
func followComments(ctx context.Context, events <-chan types.Event, pane *feed.Pane, w io.Writer) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			switch ev.Type {
			case types.EventChannelDown:
				return fmt.Errorf("connection lost")

			case types.EventCommentCreated:
				comment, err := api.DecodeCommentEvent(ev.Data)
				if err != nil {
					zap.L().Warn("malformed comment frame", zap.Error(err))
					continue
				}
				if pane.ApplyLive(comment) {
					printComment(w, comment)
				}

			case types.EventCommentReaction:
				var p types.CommentReactionEvent
				if err := json.Unmarshal(ev.Data, &p); err != nil {
					zap.L().Warn("malformed comment reaction frame", zap.Error(err))
					continue
				}
				if pane.ApplyReaction(p) {
					fmt.Fprintf(w, "reactions on comment %d: +%d/-%d\n", p.CommentID, p.Likes, p.Dislikes)
				}

			case types.EventPostReaction:
				var p types.PostReactionEvent
				if err := json.Unmarshal(ev.Data, &p); err != nil {
					zap.L().Warn("malformed post reaction frame", zap.Error(err))
					continue
				}
				if p.PostID == pane.PostID() {
					fmt.Fprintf(w, "reactions on post %d: +%d/-%d\n", p.PostID, p.Likes, p.Dislikes)
				}
			}
		}
	}
}

func printComment(w io.Writer, c types.Comment) {
	fmt.Fprintf(w, "@%s · %s\n  %s  (+%d/-%d)\n",
		c.Username, humanize.Time(c.CreatedAt), c.Content, c.Likes, c.Dislikes)
}
