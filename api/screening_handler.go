package api

import (
	"net/http"
	"time"

	"github.com/GoCodeAlone/sahara/engine"
	"github.com/GoCodeAlone/sahara/screening"
)

// ScreeningHandler serves questionnaire templates, submissions and history.
type ScreeningHandler struct {
	engine *engine.Engine
}

// NewScreeningHandler creates a new ScreeningHandler.
func NewScreeningHandler(eng *engine.Engine) *ScreeningHandler {
	return &ScreeningHandler{engine: eng}
}

type submitScreeningRequest struct {
	ScreeningType string         `json:"screening_type"`
	Responses     map[string]any `json:"responses"`
}

type screeningResponse struct {
	ID             string                    `json:"id"`
	ScreeningType  string                    `json:"screening_type"`
	Score          int                       `json:"score"`
	RiskLevel      string                    `json:"risk_level"`
	Recommendation *screening.Recommendation `json:"recommendation,omitempty"`
	Degradations   []screening.Degradation   `json:"degradations,omitempty"`
	CompletedAt    time.Time                 `json:"completed_at"`
}

// Templates handles GET /api/v1/screenings/templates.
func (h *ScreeningHandler) Templates(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.engine.Templates())
}

// Submit handles POST /api/v1/screenings/submit.
func (h *ScreeningHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitScreeningRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	out, err := h.engine.SubmitScreening(r.Context(), SessionFromContext(r.Context()), req.ScreeningType, req.Responses)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, screeningResponse{
		ID:             out.Screening.ID,
		ScreeningType:  out.Screening.Type,
		Score:          out.Screening.Score,
		RiskLevel:      out.Screening.Severity,
		Recommendation: &out.Recommendation,
		Degradations:   out.Result.Degradations,
		CompletedAt:    out.Screening.CompletedAt,
	})
}

// History handles GET /api/v1/screenings/history.
func (h *ScreeningHandler) History(w http.ResponseWriter, r *http.Request) {
	list, err := h.engine.ScreeningHistory(r.Context(), SessionFromContext(r.Context()))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	out := make([]screeningResponse, 0, len(list))
	for _, s := range list {
		out = append(out, screeningResponse{
			ID:            s.ID,
			ScreeningType: s.Type,
			Score:         s.Score,
			RiskLevel:     s.Severity,
			CompletedAt:   s.CompletedAt,
		})
	}
	WriteJSON(w, http.StatusOK, out)
}

// Insights handles GET /api/v1/screenings/insights.
func (h *ScreeningHandler) Insights(w http.ResponseWriter, r *http.Request) {
	insights, err := h.engine.Insights(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, insights)
}
