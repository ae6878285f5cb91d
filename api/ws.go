package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"

	"github.com/GoCodeAlone/sahara/auth"
	"github.com/GoCodeAlone/sahara/engine"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 16
)

// inboundMessage is one chat message received over the socket.
type inboundMessage struct {
	Content   string `json:"content"`
	Timestamp string `json:"timestamp,omitempty"`
}

// outboundMessage is the reply written back.
type outboundMessage struct {
	Type         string `json:"type"`
	Content      string `json:"content"`
	Timestamp    string `json:"timestamp,omitempty"`
	Sender       string `json:"sender"`
	RiskDetected bool   `json:"risk_detected"`
	Escalated    bool   `json:"escalated"`
	RiskLevel    string `json:"risk_level,omitempty"`
}

// ChatSocket serves GET /ws/chat. Browsers cannot set headers on WebSocket
// requests, so the session token travels in the token query parameter.
type ChatSocket struct {
	engine   *engine.Engine
	issuer   *auth.Issuer
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewChatSocket creates a ChatSocket accepting the given origins.
func NewChatSocket(eng *engine.Engine, issuer *auth.Issuer, origins []string, logger *slog.Logger) *ChatSocket {
	allowAll := len(origins) == 0 || slices.Contains(origins, "*")
	return &ChatSocket{
		engine: eng,
		issuer: issuer,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowAll || slices.Contains(origins, origin)
			},
		},
	}
}

// ServeHTTP verifies the token and upgrades the connection.
func (s *ChatSocket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		WriteError(w, http.StatusUnauthorized, "missing token")
		return
	}
	sessionID, err := s.issuer.Verify(token)
	if err != nil {
		WriteError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	// The request context ends when ServeHTTP returns, so each connection
	// gets its own.
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	send := make(chan []byte, sendBuffer)
	go s.writePump(conn, send, cancel)
	go s.readPump(ctx, cancel, conn, sessionID, send)
}

func (s *ChatSocket) readPump(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, sessionID string, send chan<- []byte) {
	defer func() {
		cancel()
		close(send)
	}()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("websocket read error", "error", err)
			}
			return
		}

		reply := s.handle(ctx, sessionID, data)
		payload, err := json.Marshal(reply)
		if err != nil {
			s.logger.Error("failed to marshal websocket reply", "error", err)
			continue
		}
		select {
		case send <- payload:
		case <-ctx.Done():
			return
		}
	}
}

func (s *ChatSocket) handle(ctx context.Context, sessionID string, data []byte) outboundMessage {
	var in inboundMessage
	if err := json.Unmarshal(data, &in); err != nil {
		return outboundMessage{Type: "error", Content: "invalid message", Sender: "system"}
	}

	out, err := s.engine.AssessMessage(ctx, sessionID, in.Content)
	if err != nil {
		content := "internal error"
		if errors.Is(err, engine.ErrInvalidInput) {
			content = err.Error()
		} else {
			s.logger.Error("websocket assessment failed", "error", err)
		}
		return outboundMessage{Type: "error", Content: content, Timestamp: in.Timestamp, Sender: "system"}
	}
	return outboundMessage{
		Type:         "message",
		Content:      out.Message.Response,
		Timestamp:    in.Timestamp,
		Sender:       "assistant",
		RiskDetected: out.Message.RiskDetected,
		Escalated:    out.Decision.Escalate,
		RiskLevel:    string(out.Decision.Level),
	}
}

func (s *ChatSocket) writePump(conn *websocket.Conn, send <-chan []byte, cancel context.CancelFunc) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		cancel()
		_ = conn.Close()
	}()

	for {
		select {
		case message, ok := <-send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
