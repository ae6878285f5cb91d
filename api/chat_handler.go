package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/GoCodeAlone/sahara/engine"
	"github.com/GoCodeAlone/sahara/escalation"
)

// ChatHandler serves the supportive chat endpoints.
type ChatHandler struct {
	engine *engine.Engine
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(eng *engine.Engine) *ChatHandler {
	return &ChatHandler{engine: eng}
}

type chatResponse struct {
	Response     string                `json:"response"`
	RiskDetected bool                  `json:"risk_detected"`
	Escalated    bool                  `json:"escalated"`
	RiskLevel    string                `json:"risk_level"`
	Priority     string                `json:"priority"`
	Actions      []string              `json:"actions"`
	Resources    []escalation.Resource `json:"resources"`
	Sentiment    string                `json:"sentiment,omitempty"`
	Timestamp    time.Time             `json:"timestamp"`
}

func newChatResponse(out *engine.MessageOutcome) chatResponse {
	return chatResponse{
		Response:     out.Message.Response,
		RiskDetected: out.Message.RiskDetected,
		Escalated:    out.Decision.Escalate,
		RiskLevel:    string(out.Decision.Level),
		Priority:     string(out.Decision.Priority),
		Actions:      out.Decision.Actions,
		Resources:    out.Decision.Resources,
		Sentiment:    out.Message.Sentiment,
		Timestamp:    out.Message.CreatedAt,
	}
}

// Send handles POST /api/v1/chat/ai.
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	out, err := h.engine.AssessMessage(r.Context(), SessionFromContext(r.Context()), req.Message)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, newChatResponse(out))
}

// History handles GET /api/v1/chat/history.
func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			WriteError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	msgs, err := h.engine.ChatHistory(r.Context(), SessionFromContext(r.Context()), limit)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, msgs)
}
