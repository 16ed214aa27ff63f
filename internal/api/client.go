// Package api is the HTTP client for the forum's JSON endpoints.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/manar-alshaikh/rtf-client/internal/types"
)

// Default page sizes for message history.
const (
	InitialMessageLimit = 20
	OlderMessageLimit   = 15
	CommentPageSize     = 10
)

// Client talks to one forum server with one session cookie.
type Client struct {
	base   *url.URL
	http   *http.Client
	cookie string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithSessionCookie sets the forum session cookie value.
func WithSessionCookie(value string) Option {
	return func(c *Client) { c.cookie = value }
}

// New creates a client for the given base URL.
func New(baseURL string, opts ...Option) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	c := &Client{
		base: base,
		http: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// WebSocketURL returns the realtime channel endpoint derived from the
// server base URL.
func (c *Client) WebSocketURL() string {
	ws := c.base.JoinPath("ws")
	switch ws.Scheme {
	case "https":
		ws.Scheme = "wss"
	default:
		ws.Scheme = "ws"
	}
	return ws.String()
}

// SessionCookie returns the configured cookie value.
func (c *Client) SessionCookie() string {
	return c.cookie
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	// JoinPath keeps any path prefix on the configured base URL.
	u := c.base.JoinPath(path)
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cookie != "" {
		req.AddCookie(&http.Cookie{Name: "session_id", Value: c.cookie})
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("%s %s: decode response: %w", method, path, err)
		}
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s %s: server returned %d", method, path, resp.StatusCode)
	}
	return nil
}

// Session resolves the logged-in user. The session endpoint reports the
// username; the id is resolved with a second lookup.
func (c *Client) Session(ctx context.Context) (types.Session, error) {
	var env struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/session", nil, nil, &env); err != nil {
		return types.Session{}, err
	}
	if !env.Success || env.Message == "" {
		return types.Session{}, ErrUnauthorized
	}
	username := env.Message

	var idEnv struct {
		Success bool  `json:"success"`
		UserID  int64 `json:"user_id"`
	}
	q := url.Values{"username": {username}}
	if err := c.do(ctx, http.MethodGet, "/api/user/id", q, nil, &idEnv); err != nil {
		return types.Session{}, err
	}
	if !idEnv.Success || idEnv.UserID == 0 {
		return types.Session{}, fmt.Errorf("resolve user id for %q", username)
	}
	return types.Session{UserID: idEnv.UserID, Username: username}, nil
}

type contactPayload struct {
	UserID          int64  `json:"user_id"`
	Username        string `json:"username"`
	ProfilePicture  string `json:"profile_picture"`
	IsOnline        bool   `json:"is_online"`
	LastMessageTime string `json:"last_message_time,omitempty"`
}

// Contacts fetches the full contact directory.
func (c *Client) Contacts(ctx context.Context) ([]types.Contact, error) {
	var env struct {
		Success  bool             `json:"success"`
		Contacts []contactPayload `json:"contacts"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/contacts", nil, nil, &env); err != nil {
		return nil, err
	}
	if !env.Success {
		return nil, fmt.Errorf("contacts request rejected")
	}
	contacts := make([]types.Contact, 0, len(env.Contacts))
	for _, p := range env.Contacts {
		contacts = append(contacts, types.Contact{
			UserID:          p.UserID,
			Username:        p.Username,
			ProfilePicture:  p.ProfilePicture,
			IsOnline:        p.IsOnline,
			LastMessageTime: parseServerTime(p.LastMessageTime),
		})
	}
	return contacts, nil
}

type messagePayload struct {
	ID         int64  `json:"id"`
	FromUserID int64  `json:"from_user_id"`
	ToUserID   int64  `json:"to_user_id"`
	Username   string `json:"username"`
	Content    string `json:"content"`
	CreatedAt  string `json:"created_at"`
}

func (p messagePayload) toMessage() types.Message {
	return types.Message{
		ID:         p.ID,
		FromUserID: p.FromUserID,
		ToUserID:   p.ToUserID,
		Username:   p.Username,
		Content:    p.Content,
		CreatedAt:  parseServerTime(p.CreatedAt),
	}
}

// Messages fetches one page of conversation history with the target
// user. Pages count from 1, newest page first; messages within a page
// are in chronological order. The second return value is the server's
// hasMore flag.
func (c *Client) Messages(ctx context.Context, targetUserID int64, page, limit int) ([]types.Message, bool, error) {
	q := url.Values{
		"target_user_id": {strconv.FormatInt(targetUserID, 10)},
		"page":           {strconv.Itoa(page)},
		"limit":          {strconv.Itoa(limit)},
	}
	var env struct {
		Success  bool             `json:"success"`
		Messages []messagePayload `json:"messages"`
		HasMore  bool             `json:"hasMore"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/private-messages", q, nil, &env); err != nil {
		return nil, false, err
	}
	if !env.Success {
		return nil, false, fmt.Errorf("message history request rejected")
	}
	messages := make([]types.Message, 0, len(env.Messages))
	for _, p := range env.Messages {
		messages = append(messages, p.toMessage())
	}
	return messages, env.HasMore, nil
}

// SendMessage posts a private message and returns the server record.
func (c *Client) SendMessage(ctx context.Context, toUserID int64, content string) (types.Message, error) {
	body := map[string]any{
		"to_user_id":   toUserID,
		"content":      content,
		"message_type": "text",
	}
	var env struct {
		Success bool           `json:"success"`
		Message messagePayload `json:"message"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/private-messages/send", nil, body, &env); err != nil {
		return types.Message{}, err
	}
	if !env.Success {
		return types.Message{}, fmt.Errorf("send rejected by server")
	}
	return env.Message.toMessage(), nil
}

// TypingStart signals that the user started typing to the target.
func (c *Client) TypingStart(ctx context.Context, toUserID int64) error {
	return c.typing(ctx, "/api/typing/start", toUserID)
}

// TypingStop signals that the user stopped typing to the target.
func (c *Client) TypingStop(ctx context.Context, toUserID int64) error {
	return c.typing(ctx, "/api/typing/stop", toUserID)
}

func (c *Client) typing(ctx context.Context, path string, toUserID int64) error {
	body := map[string]any{"to_user_id": toUserID}
	var env struct {
		Success bool `json:"success"`
	}
	if err := c.do(ctx, http.MethodPost, path, nil, body, &env); err != nil {
		return err
	}
	if !env.Success {
		return fmt.Errorf("typing signal rejected")
	}
	return nil
}

// Comments fetches one page of comments for a post, walking backwards
// from beforeID (0 means newest page). Returns the page in
// chronological order plus the next cursor (0 when exhausted).
func (c *Client) Comments(ctx context.Context, postID, beforeID int64, limit int) ([]types.Comment, int64, error) {
	q := url.Values{"limit": {strconv.Itoa(limit)}}
	if beforeID > 0 {
		q.Set("before_id", strconv.FormatInt(beforeID, 10))
	}
	var env struct {
		Success    bool            `json:"success"`
		Data       []types.Comment `json:"data"`
		NextCursor int64           `json:"nextCursor"`
	}
	path := fmt.Sprintf("/api/posts/%d/comments", postID)
	if err := c.do(ctx, http.MethodGet, path, q, nil, &env); err != nil {
		return nil, 0, err
	}
	if !env.Success {
		return nil, 0, fmt.Errorf("comments request rejected")
	}
	return env.Data, env.NextCursor, nil
}

// PostComment creates a comment under a post.
func (c *Client) PostComment(ctx context.Context, postID int64, content string) error {
	body := map[string]any{"content": content}
	var env struct {
		Success bool `json:"success"`
	}
	path := fmt.Sprintf("/api/posts/%d/comments", postID)
	if err := c.do(ctx, http.MethodPost, path, nil, body, &env); err != nil {
		return err
	}
	if !env.Success {
		return fmt.Errorf("comment rejected by server")
	}
	return nil
}

// DecodeMessageEvent decodes the payload of a new_private_message push
// frame into a Message.
func DecodeMessageEvent(data json.RawMessage) (types.Message, error) {
	var p messagePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return types.Message{}, err
	}
	return p.toMessage(), nil
}

// DecodeCommentEvent decodes the payload of a comment.created push
// frame into a Comment.
func DecodeCommentEvent(data json.RawMessage) (types.Comment, error) {
	var p types.CommentCreatedEvent
	if err := json.Unmarshal(data, &p); err != nil {
		return types.Comment{}, err
	}
	return types.Comment{
		CommentID: p.CommentID,
		PostID:    p.PostID,
		Username:  p.Username,
		Content:   p.Content,
		CreatedAt: parseServerTime(p.CreatedAt),
	}, nil
}

// parseServerTime parses the timestamp formats the server emits. An
// empty or malformed value becomes the zero time; malformed values are
// logged so drift is visible.
func parseServerTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	zap.L().Warn("unparseable server timestamp", zap.String("value", s))
	return time.Time{}
}
