package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/GoCodeAlone/sahara/auth"
	"github.com/GoCodeAlone/sahara/engine"
	"github.com/GoCodeAlone/sahara/metrics"
)

type testServer struct {
	router *Router
	issuer *auth.Issuer
	engine *engine.Engine
}

func newTestServer(t *testing.T, cfg Config) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	eng, err := engine.NewBuilder().
		WithLogger(logger).
		WithRand(rand.New(rand.NewPCG(1, 1))).
		Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	issuer := auth.NewIssuer([]byte("test-secret"), "sahara-test", 0)
	rt := NewRouter(Deps{
		Engine:  eng,
		Issuer:  issuer,
		Metrics: metrics.New(metrics.DefaultConfig()),
		Logger:  logger,
	}, cfg)
	t.Cleanup(rt.Stop)
	return &testServer{router: rt, issuer: issuer, engine: eng}
}

func (s *testServer) token(t *testing.T) (string, string) {
	t.Helper()
	tok, err := s.issuer.Issue()
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	return tok.AccessToken, tok.SessionID
}

func (s *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var r io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	var env struct {
		Data  json.RawMessage `json:"data"`
		Error string          `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if env.Error != "" {
		t.Fatalf("unexpected error response: %s", env.Error)
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		t.Fatalf("decode data: %v", err)
	}
}

func TestAnonymousSession(t *testing.T) {
	s := newTestServer(t, Config{})

	rec := s.do(http.MethodPost, "/api/v1/auth/anonymous", "", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var tok struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	decodeData(t, rec, &tok)
	if tok.AccessToken == "" || tok.TokenType != "bearer" {
		t.Fatalf("unexpected token %+v", tok)
	}

	rec = s.do(http.MethodGet, "/api/v1/auth/verify", tok.AccessToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("verify: expected 200, got %d", rec.Code)
	}
	var verified struct {
		Subject string `json:"subject"`
		Valid   bool   `json:"valid"`
	}
	decodeData(t, rec, &verified)
	if !verified.Valid || verified.Subject == "" {
		t.Errorf("unexpected verify body %+v", verified)
	}

	rec = s.do(http.MethodGet, "/api/v1/auth/verify", "garbage", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("garbage token: expected 401, got %d", rec.Code)
	}
}

func TestAnonymousSession_RateLimited(t *testing.T) {
	s := newTestServer(t, Config{SessionRateLimit: 2})

	for i := 0; i < 2; i++ {
		if rec := s.do(http.MethodPost, "/api/v1/auth/anonymous", "", nil); rec.Code != http.StatusCreated {
			t.Fatalf("request %d: expected 201, got %d", i+1, rec.Code)
		}
	}
	rec := s.do(http.MethodPost, "/api/v1/auth/anonymous", "", nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}

func TestSubmitScreening(t *testing.T) {
	s := newTestServer(t, Config{})
	token, _ := s.token(t)

	body := map[string]any{
		"screening_type": "GAD7",
		"responses": map[string]any{
			"q1": "Nearly every day", "q2": "Nearly every day", "q3": 2,
			"q4": 2, "q5": 1, "q6": 0, "q7": "Several days",
		},
	}

	if rec := s.do(http.MethodPost, "/api/v1/screenings/submit", "", body); rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: expected 401, got %d", rec.Code)
	}

	rec := s.do(http.MethodPost, "/api/v1/screenings/submit", token, body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var got screeningResponse
	decodeData(t, rec, &got)
	if got.Score != 12 || got.RiskLevel != "moderate" || got.ScreeningType != "GAD7" {
		t.Errorf("unexpected screening %+v", got)
	}
	if got.Recommendation == nil || got.Recommendation.Message == "" {
		t.Error("expected a recommendation")
	}

	rec = s.do(http.MethodGet, "/api/v1/screenings/history", token, nil)
	var history []screeningResponse
	decodeData(t, rec, &history)
	if len(history) != 1 || history[0].ID != got.ID {
		t.Errorf("unexpected history %+v", history)
	}

	rec = s.do(http.MethodGet, "/api/v1/screenings/insights", "", nil)
	var insights struct {
		TotalScreenings int `json:"total_screenings"`
	}
	decodeData(t, rec, &insights)
	if insights.TotalScreenings != 1 {
		t.Errorf("total_screenings = %d", insights.TotalScreenings)
	}
}

func TestSubmitScreening_InvalidInput(t *testing.T) {
	s := newTestServer(t, Config{})
	token, _ := s.token(t)

	tests := []struct {
		name string
		body any
	}{
		{"unknown questionnaire", map[string]any{"screening_type": "BDI", "responses": map[string]any{"q1": 1}}},
		{"empty responses", map[string]any{"screening_type": "PHQ9", "responses": map[string]any{}}},
		{"fractional answer", map[string]any{"screening_type": "PHQ9", "responses": map[string]any{"q1": 1.5}}},
		{"boolean answer", map[string]any{"screening_type": "PHQ9", "responses": map[string]any{"q1": true}}},
		{"not an object", []int{1, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(http.MethodPost, "/api/v1/screenings/submit", token, tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestTemplates(t *testing.T) {
	s := newTestServer(t, Config{})
	rec := s.do(http.MethodGet, "/api/v1/screenings/templates", "", nil)
	var defs []struct {
		ID        string   `json:"id"`
		Questions []string `json:"questions"`
	}
	decodeData(t, rec, &defs)
	if len(defs) != 3 {
		t.Fatalf("expected 3 templates, got %d", len(defs))
	}
	if defs[0].ID != "PHQ9" || len(defs[0].Questions) != 9 {
		t.Errorf("unexpected first template %+v", defs[0])
	}
}

func TestChat_HighRisk(t *testing.T) {
	s := newTestServer(t, Config{})
	token, session := s.token(t)

	rec := s.do(http.MethodPost, "/api/v1/chat/ai", token, map[string]string{"message": "I want to end my life"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var got chatResponse
	decodeData(t, rec, &got)
	if !got.RiskDetected || !got.Escalated || got.RiskLevel != "high" || got.Priority != "urgent" {
		t.Errorf("unexpected chat response %+v", got)
	}
	if !strings.Contains(got.Response, "988") {
		t.Errorf("crisis reply should carry resources: %q", got.Response)
	}
	if len(got.Resources) != 2 || len(got.Actions) == 0 {
		t.Errorf("unexpected resources/actions: %+v %+v", got.Resources, got.Actions)
	}

	records, err := s.engine.Escalations(t.Context(), session)
	if err != nil || len(records) != 1 {
		t.Fatalf("expected 1 escalation record, got %d (%v)", len(records), err)
	}

	rec = s.do(http.MethodGet, "/api/v1/chat/history?limit=10", token, nil)
	var msgs []struct {
		Message      string `json:"message"`
		RiskDetected bool   `json:"risk_detected"`
	}
	decodeData(t, rec, &msgs)
	if len(msgs) != 1 || !msgs[0].RiskDetected {
		t.Errorf("unexpected history %+v", msgs)
	}
}

func TestChat_Errors(t *testing.T) {
	s := newTestServer(t, Config{})
	token, _ := s.token(t)

	if rec := s.do(http.MethodPost, "/api/v1/chat/ai", token, map[string]string{"message": "  "}); rec.Code != http.StatusBadRequest {
		t.Errorf("empty message: expected 400, got %d", rec.Code)
	}
	if rec := s.do(http.MethodPost, "/api/v1/chat/ai", "", map[string]string{"message": "hi"}); rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: expected 401, got %d", rec.Code)
	}
	if rec := s.do(http.MethodGet, "/api/v1/chat/history?limit=abc", token, nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit: expected 400, got %d", rec.Code)
	}
}

func TestServiceEndpoints(t *testing.T) {
	s := newTestServer(t, Config{Environment: "test"})

	rec := s.do(http.MethodGet, "/health", "", nil)
	var health map[string]string
	decodeData(t, rec, &health)
	if health["status"] != "healthy" || health["environment"] != "test" {
		t.Errorf("unexpected health %+v", health)
	}

	rec = s.do(http.MethodGet, "/", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("root: expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}

	rec = s.do(http.MethodGet, "/metrics", "", nil)
	if !strings.Contains(rec.Body.String(), "sahara_http_requests_total") {
		t.Error("metrics endpoint should expose request counters")
	}

	if rec := s.do(http.MethodGet, "/nope", "", nil); rec.Code != http.StatusNotFound {
		t.Errorf("unknown path: expected 404, got %d", rec.Code)
	}
}

func TestCORS(t *testing.T) {
	s := newTestServer(t, Config{CORSOrigins: []string{"http://localhost:3000"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/chat/ai", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight: expected 204, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "http://localhost:3000" {
		t.Error("expected allowed origin to be echoed")
	}

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("unlisted origin must not be allowed")
	}
}

func TestRealIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	if got := realIP(req); got != "10.0.0.1" {
		t.Errorf("RemoteAddr: got %q", got)
	}
	req.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")
	if got := realIP(req); got != "203.0.113.5" {
		t.Errorf("X-Forwarded-For: got %q", got)
	}
	req.Header.Set("X-Real-IP", "198.51.100.7")
	if got := realIP(req); got != "198.51.100.7" {
		t.Errorf("X-Real-IP: got %q", got)
	}
}
