package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dialChat(t *testing.T, srv *httptest.Server, token string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/chat"
	if token != "" {
		url += "?token=" + token
	}
	return websocket.DefaultDialer.Dial(url, nil)
}

func TestChatSocket(t *testing.T) {
	s := newTestServer(t, Config{})
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	token, session := s.token(t)
	conn, _, err := dialChat(t, srv, token)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	if err := conn.WriteJSON(inboundMessage{Content: "I feel so hopeless", Timestamp: "2025-01-01T00:00:00Z"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	var reply outboundMessage
	if err := conn.ReadJSON(&reply); err != nil {
		t.Fatalf("read: %v", err)
	}
	if reply.Type != "message" || reply.Sender != "assistant" {
		t.Errorf("unexpected reply %+v", reply)
	}
	if !reply.RiskDetected || reply.RiskLevel != "moderate" || reply.Escalated {
		t.Errorf("unexpected risk fields %+v", reply)
	}
	if reply.Timestamp != "2025-01-01T00:00:00Z" {
		t.Errorf("timestamp not echoed: %q", reply.Timestamp)
	}

	if err := conn.WriteJSON(inboundMessage{Content: ""}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := conn.ReadJSON(&reply); err != nil {
		t.Fatalf("read: %v", err)
	}
	if reply.Type != "error" {
		t.Errorf("empty content should produce an error reply, got %+v", reply)
	}

	msgs, err := s.engine.ChatHistory(t.Context(), session, 0)
	if err != nil || len(msgs) != 1 {
		t.Errorf("expected 1 stored message, got %d (%v)", len(msgs), err)
	}
}

func TestChatSocket_RequiresToken(t *testing.T) {
	s := newTestServer(t, Config{})
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	for _, token := range []string{"", "not-a-token"} {
		_, resp, err := dialChat(t, srv, token)
		if err == nil {
			t.Fatalf("token %q: expected dial failure", token)
		}
		if resp == nil || resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("token %q: expected 401 response, got %v", token, resp)
		}
	}
}
