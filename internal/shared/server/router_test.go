package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"

	"csreply-backend/internal/inquiries"
	"csreply-backend/internal/responses"
	"csreply-backend/internal/rules"
	"csreply-backend/internal/services/health"
	"csreply-backend/internal/shared/auth"
	"csreply-backend/internal/shared/config"
	"csreply-backend/internal/shared/telemetry"
	"csreply-backend/internal/submitter"
	"csreply-backend/internal/workflow"
)

var testSecret = []byte("router-test-secret")

func newTestRouter(t *testing.T, checks *health.Service) http.Handler {
	t.Helper()
	restore := telemetry.SetOutput(io.Discard)
	t.Cleanup(restore)

	inqRepo := inquiries.NewMemoryRepo()
	wf := &workflow.Service{
		Inquiries: inqRepo,
		Responses: responses.NewMemoryRepo(),
		Rules:     rules.NewStore(rules.Default()),
		Submitter: submitter.LogSubmitter{},
	}
	return NewRouter(RouterDeps{
		Config:          config.Config{Env: "production", CORSAllowOrigin: []string{"http://localhost:5173"}},
		JWTSecret:       testSecret,
		InquiryHandler:  inquiries.NewHandler(&inquiries.Service{Repo: inqRepo}),
		WorkflowHandler: workflow.NewHandler(wf),
		Health:          checks,
	})
}

func bearer(t *testing.T, sub string) string {
	t.Helper()
	token, err := auth.SignJWT(testSecret, auth.OperatorClaims{
		Name:             "Park",
		Role:             "lead",
		RegisteredClaims: jwt.RegisteredClaims{Subject: sub},
	})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return "Bearer " + token
}

func do(r http.Handler, method, path, authz, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestHealthIsPublic(t *testing.T) {
	r := newTestRouter(t, nil)
	resp := do(r, http.MethodGet, "/api/v1/health", "", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
}

func TestHealthReportsFailingDependency(t *testing.T) {
	checks := health.NewService()
	checks.Register("database", func(ctx context.Context) error { return errors.New("down") })
	r := newTestRouter(t, checks)

	resp := do(r, http.MethodGet, "/api/v1/health", "", "")
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.Code)
	}
	var body struct {
		OK           bool              `json:"ok"`
		Dependencies map[string]string `json:"dependencies"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.OK || body.Dependencies["database"] != "down" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	r := newTestRouter(t, nil)
	resp := do(r, http.MethodGet, "/metrics", "", "")
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), "pipeline_duration_ms") {
		t.Fatalf("unexpected metrics response %d: %s", resp.Code, resp.Body.String())
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	r := newTestRouter(t, nil)
	if resp := do(r, http.MethodGet, "/api/v1/responses", "", ""); resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.Code)
	}
	if resp := do(r, http.MethodGet, "/api/v1/responses", "Bearer nope", ""); resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", resp.Code)
	}
	if resp := do(r, http.MethodGet, "/api/v1/responses", bearer(t, "op-1"), ""); resp.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestMeReturnsOperatorClaims(t *testing.T) {
	r := newTestRouter(t, nil)
	resp := do(r, http.MethodGet, "/api/v1/me", bearer(t, "op-9"), "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["operatorId"] != "op-9" || body["name"] != "Park" || body["role"] != "lead" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestBatchRunIsRateLimited(t *testing.T) {
	r := newTestRouter(t, nil)
	token := bearer(t, "op-1")
	for i := 0; i < 2; i++ {
		if resp := do(r, http.MethodPost, "/api/v1/batch/run", token, `{"limit":1}`); resp.Code != http.StatusOK {
			t.Fatalf("run %d: expected 200, got %d: %s", i, resp.Code, resp.Body.String())
		}
	}
	if resp := do(r, http.MethodPost, "/api/v1/batch/run", token, `{"limit":1}`); resp.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after burst, got %d", resp.Code)
	}
	// Other groups keep their own budget.
	if resp := do(r, http.MethodGet, "/api/v1/responses", token, ""); resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for default group, got %d", resp.Code)
	}
}

func TestAddr(t *testing.T) {
	cases := map[string]string{"": ":8080", "9000": ":9000", ":7000": ":7000"}
	for in, want := range cases {
		if got := Addr(in); got != want {
			t.Fatalf("Addr(%q) = %q, want %q", in, got, want)
		}
	}
}
