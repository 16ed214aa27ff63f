package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := New(server.URL, WithSessionCookie("abc123"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return client
}

func TestSession(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/session", func(w http.ResponseWriter, r *http.Request) {
		if cookie, err := r.Cookie("session_id"); err != nil || cookie.Value != "abc123" {
			t.Errorf("session cookie not forwarded: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{"success": true, "message": "mona"})
	})
	mux.HandleFunc("/api/user/id", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("username"); got != "mona" {
			t.Errorf("username query = %q, want mona", got)
		}
		json.NewEncoder(w).Encode(map[string]any{"success": true, "user_id": 42})
	})

	client := newTestClient(t, mux)
	session, err := client.Session(context.Background())
	if err != nil {
		t.Fatalf("Session() error = %v", err)
	}
	if session.UserID != 42 || session.Username != "mona" {
		t.Errorf("Session() = %+v, want {42 mona}", session)
	}
}

func TestSessionUnauthorized(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	if _, err := client.Session(context.Background()); err != ErrUnauthorized {
		t.Errorf("Session() error = %v, want ErrUnauthorized", err)
	}
}

func TestMessages(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("target_user_id") != "2" || q.Get("page") != "3" || q.Get("limit") != "15" {
			t.Errorf("unexpected query: %v", q)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"hasMore": true,
			"messages": []map[string]any{
				{"id": 9, "from_user_id": 2, "to_user_id": 1, "username": "ali",
					"content": "hey", "created_at": "2026-08-30T10:00:00Z"},
			},
		})
	}))

	messages, hasMore, err := client.Messages(context.Background(), 2, 3, 15)
	if err != nil {
		t.Fatalf("Messages() error = %v", err)
	}
	if !hasMore {
		t.Error("hasMore = false, want true")
	}
	if len(messages) != 1 {
		t.Fatalf("messages = %d, want 1", len(messages))
	}
	m := messages[0]
	if m.ID != 9 || m.Content != "hey" || m.Username != "ali" {
		t.Errorf("message = %+v", m)
	}
	want := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	if !m.CreatedAt.Equal(want) {
		t.Errorf("CreatedAt = %v, want %v", m.CreatedAt, want)
	}
}

func TestSendMessage(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/private-messages/send" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if body["to_user_id"] != float64(2) || body["content"] != "hi" || body["message_type"] != "text" {
			t.Errorf("unexpected body: %v", body)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"message": map[string]any{
				"id": 77, "from_user_id": 1, "to_user_id": 2,
				"content": "hi", "created_at": "2026-08-30T10:00:00Z",
			},
		})
	}))

	message, err := client.SendMessage(context.Background(), 2, "hi")
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if message.ID != 77 || message.Pending() {
		t.Errorf("SendMessage() = %+v, want confirmed id 77", message)
	}
}

func TestContactsParsesTimestamps(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"contacts": []map[string]any{
				{"user_id": 2, "username": "ali", "is_online": true,
					"last_message_time": "2026-08-29 18:30:00"},
				{"user_id": 3, "username": "bea", "last_message_time": ""},
				{"user_id": 4, "username": "cal", "last_message_time": "not a time"},
			},
		})
	}))

	contacts, err := client.Contacts(context.Background())
	if err != nil {
		t.Fatalf("Contacts() error = %v", err)
	}
	if len(contacts) != 3 {
		t.Fatalf("contacts = %d, want 3", len(contacts))
	}
	if !contacts[0].HasActivity() {
		t.Error("contact with timestamp should have activity")
	}
	// Empty and malformed stamps degrade to "never messaged".
	if contacts[1].HasActivity() || contacts[2].HasActivity() {
		t.Error("empty/malformed timestamps should parse to zero")
	}
}

func TestComments(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/posts/7/comments" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("before_id"); got != "30" {
			t.Errorf("before_id = %q, want 30", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"success":    true,
			"nextCursor": 20,
			"data": []map[string]any{
				{"comment_id": 20, "post_id": 7, "username": "ali",
					"content": "first", "created_at": "2026-08-30T09:00:00Z", "likes": 1},
			},
		})
	}))

	comments, next, err := client.Comments(context.Background(), 7, 30, 10)
	if err != nil {
		t.Fatalf("Comments() error = %v", err)
	}
	if next != 20 || len(comments) != 1 || comments[0].CommentID != 20 {
		t.Errorf("Comments() = (%v, %d)", comments, next)
	}
}

func TestBaseURLPathPrefixPreserved(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/forum/api/session", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"success": true, "message": "mona"})
	})
	mux.HandleFunc("/forum/api/user/id", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"success": true, "user_id": 42})
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client, err := New(server.URL + "/forum")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	session, err := client.Session(context.Background())
	if err != nil {
		t.Fatalf("Session() error = %v", err)
	}
	if session.UserID != 42 {
		t.Errorf("Session() = %+v, want user 42", session)
	}

	wsURL := client.WebSocketURL()
	want := "ws" + server.URL[len("http"):] + "/forum/ws"
	if wsURL != want {
		t.Errorf("WebSocketURL() = %q, want %q", wsURL, want)
	}
}

func TestDecodeMessageEvent(t *testing.T) {
	raw := json.RawMessage(`{"id":5,"from_user_id":2,"to_user_id":1,"username":"ali","content":"yo","created_at":"2026-08-30T10:00:00Z"}`)
	message, err := DecodeMessageEvent(raw)
	if err != nil {
		t.Fatalf("DecodeMessageEvent() error = %v", err)
	}
	if message.ID != 5 || message.FromUserID != 2 || message.Content != "yo" {
		t.Errorf("DecodeMessageEvent() = %+v", message)
	}
	if _, err := DecodeMessageEvent(json.RawMessage(`{`)); err == nil {
		t.Error("malformed payload should error")
	}
}

func TestDecodeCommentEvent(t *testing.T) {
	raw := json.RawMessage(`{"post_id":7,"comment_id":20,"username":"ali","content":"first","created_at":"2026-08-30 09:00:00"}`)
	comment, err := DecodeCommentEvent(raw)
	if err != nil {
		t.Fatalf("DecodeCommentEvent() error = %v", err)
	}
	if comment.PostID != 7 || comment.CommentID != 20 || comment.Content != "first" {
		t.Errorf("DecodeCommentEvent() = %+v", comment)
	}
	if comment.CreatedAt.IsZero() {
		t.Error("created_at should parse")
	}
	if _, err := DecodeCommentEvent(json.RawMessage(`{`)); err == nil {
		t.Error("malformed payload should error")
	}
}
