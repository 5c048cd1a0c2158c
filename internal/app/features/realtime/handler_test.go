package realtime_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/parley/internal/app/features/realtime"
	"github.com/dalemusser/parley/internal/app/system/auth"
	"github.com/dalemusser/parley/internal/app/system/wshub"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func newServer(t *testing.T, origins []string) (*httptest.Server, *wshub.Hub, *auth.TokenManager) {
	t.Helper()
	tokens, err := auth.NewTokenManager("access-secret", "refresh-secret", time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("NewTokenManager: %v", err)
	}
	hub := wshub.NewHub(zap.NewNop())
	h := realtime.NewHandler(hub, tokens, origins, zap.NewNop())

	r := chi.NewRouter()
	r.Mount("/ws", realtime.Routes(h))
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		hub.CloseAll()
		srv.Close()
	})
	return srv, hub, tokens
}

func wsURL(srv *httptest.Server, query string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
}

func waitConnected(t *testing.T, hub *wshub.Hub, key string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Connected(key) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("client %s never registered", key)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestServeWS_ReceivesNotifications(t *testing.T) {
	srv, hub, tokens := newServer(t, nil)
	uid := primitive.NewObjectID()
	token, err := tokens.IssueAccess(uid, "karthi@chatmail.com")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "?token="+token), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	waitConnected(t, hub, uid.Hex())

	hub.Notify(context.Background(), "receive_message", map[string]string{"message": "hello"}, uid.Hex())

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var frame struct {
		Event   string            `json:"event"`
		Payload map[string]string `json:"payload"`
	}
	if err := json.Unmarshal(data, &frame); err != nil {
		t.Fatalf("unmarshal %s: %v", data, err)
	}
	if frame.Event != "receive_message" || frame.Payload["message"] != "hello" {
		t.Errorf("frame = %+v", frame)
	}
}

func TestServeWS_BearerHeader(t *testing.T) {
	srv, hub, tokens := newServer(t, nil)
	uid := primitive.NewObjectID()
	token, _ := tokens.IssueAccess(uid, "samy@chatmail.com")

	hdr := http.Header{}
	hdr.Set("Authorization", "Bearer "+token)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, ""), hdr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	waitConnected(t, hub, uid.Hex())
}

func TestServeWS_Rejects(t *testing.T) {
	srv, _, tokens := newServer(t, []string{"https://chat.example.com"})
	uid := primitive.NewObjectID()
	access, _ := tokens.IssueAccess(uid, "a@chatmail.com")
	refresh, _ := tokens.IssueRefresh(uid, "a@chatmail.com")

	tests := []struct {
		name     string
		query    string
		origin   string
		wantCode int
	}{
		{"no token", "", "", http.StatusUnauthorized},
		{"garbage token", "?token=abc", "", http.StatusUnauthorized},
		{"refresh token", "?token=" + refresh, "", http.StatusUnauthorized},
		{"foreign origin", "?token=" + access, "https://evil.example.com", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hdr := http.Header{}
			if tt.origin != "" {
				hdr.Set("Origin", tt.origin)
			}
			conn, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, tt.query), hdr)
			if err == nil {
				conn.Close()
				t.Fatal("expected handshake to fail")
			}
			if resp == nil || resp.StatusCode != tt.wantCode {
				t.Errorf("resp = %v, want status %d", resp, tt.wantCode)
			}
		})
	}
}

func TestServeWS_AllowedOrigin(t *testing.T) {
	srv, hub, tokens := newServer(t, []string{"https://chat.example.com/"})
	uid := primitive.NewObjectID()
	token, _ := tokens.IssueAccess(uid, "a@chatmail.com")

	hdr := http.Header{}
	hdr.Set("Origin", "https://chat.example.com")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "?token="+token), hdr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	waitConnected(t, hub, uid.Hex())
}
