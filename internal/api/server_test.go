package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/samcharles93/specdec/internal/logger"
	"github.com/samcharles93/specdec/internal/metrics"
	"github.com/samcharles93/specdec/internal/rejection"
)

func newTestEcho(t *testing.T, cfg rejection.Config) (*echo.Echo, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	s, err := rejection.New(cfg, rejection.WithLogger(logger.Discard()), rejection.WithMetrics(metrics.New(reg)))
	if err != nil {
		t.Fatalf("new sampler: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	e := echo.New()
	NewServer(s, WithGatherer(reg)).Register(e)
	return e, reg
}

func doJSON(t *testing.T, e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ResponseError {
	t.Helper()
	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return resp.Error
}

const greedyBatch = `{
  "vocab_size": 10,
  "requests": [
    {"draft_token_ids": [5, 7], "temperature": 0, "bonus_token_id": 42,
     "logits": [[0,0,0,0,0,50,0,0,0,0], [0,0,0,0,0,0,0,0,0,50]]},
    {"draft_token_ids": [5, 7], "temperature": 0, "bonus_token_id": 42,
     "logits": [[0,0,0,0,0,50,0,0,0,0], [0,0,0,0,0,0,0,50,0,0]]}
  ]
}`

func TestVerify(t *testing.T) {
	t.Parallel()
	e, _ := newTestEcho(t, rejection.Config{Seed: 1})

	rec := doJSON(t, e, http.MethodPost, "/v1/verify", greedyBatch)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d body=%s", rec.Code, rec.Body.String())
	}
	var resp VerifyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.HasPrefix(resp.ID, "verify_") {
		t.Fatalf("unexpected id %q", resp.ID)
	}
	if resp.Object != "verification" || resp.Created == 0 {
		t.Fatalf("unexpected envelope: %+v", resp)
	}
	if got := resp.Outputs; len(got) != 2 || len(got[0]) != 2 || got[0][1] != 9 || len(got[1]) != 3 || got[1][2] != 42 {
		t.Fatalf("unexpected outputs: %v", got)
	}
	if resp.Usage.DraftTokens != 4 || resp.Usage.AcceptedTokens != 3 || resp.Usage.EmittedTokens != 5 {
		t.Fatalf("unexpected usage: %+v", resp.Usage)
	}
	if !resp.Requests[0].Rejected || !resp.Requests[1].Bonus {
		t.Fatalf("unexpected per-request results: %+v", resp.Requests)
	}
}

func TestVerifyErrors(t *testing.T) {
	t.Parallel()
	e, _ := newTestEcho(t, rejection.Config{Seed: 1, MaxNumTokens: 2})

	tests := []struct {
		name   string
		body   string
		status int
		code   string
		param  string
	}{
		{"malformed", `{"vocab_size":`, http.StatusBadRequest, "", ""},
		{"unknown field", `{"vocab_size": 2, "requests": [], "model": "x"}`, http.StatusBadRequest, "", ""},
		{"empty", `{"vocab_size": 2, "requests": []}`, http.StatusBadRequest, "empty_batch", ""},
		{"bad vocab", `{"vocab_size": 0, "requests": [{}]}`, http.StatusBadRequest, "invalid_batch", ""},
		{"missing logits", `{"vocab_size": 2, "requests": [{"draft_token_ids": [1]}]}`, http.StatusBadRequest, "shape_mismatch", "requests[0].logits"},
		{"token out of vocab", `{"vocab_size": 2, "requests": [{"draft_token_ids": [4], "logits": [[1, 2]]}]}`, http.StatusBadRequest, "invalid_token", ""},
		{"capacity", `{"vocab_size": 2, "requests": [{"draft_token_ids": [1, 1, 1], "logits": [[1,2],[1,2],[1,2]]}]}`, http.StatusRequestEntityTooLarge, "capacity_exceeded", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, e, http.MethodPost, "/v1/verify", tc.body)
			if rec.Code != tc.status {
				t.Fatalf("status: got %d want %d body=%s", rec.Code, tc.status, rec.Body.String())
			}
			got := decodeError(t, rec)
			if got.Type != "invalid_request_error" || got.Code != tc.code || got.Param != tc.param {
				t.Fatalf("unexpected error: %+v", got)
			}
		})
	}
}

func TestVerifyBodyLimit(t *testing.T) {
	t.Parallel()
	s, err := rejection.New(rejection.Config{Seed: 1}, rejection.WithLogger(logger.Discard()))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	e := echo.New()
	NewServer(s, WithMaxBodyBytes(16)).Register(e)

	rec := doJSON(t, e, http.MethodPost, "/v1/verify", greedyBatch)
	if rec.Code != http.StatusRequestEntityTooLarge && rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d body=%s", rec.Code, rec.Body.String())
	}
}

type failingVerifier struct{ err error }

func (f failingVerifier) Forward(context.Context, rejection.Input) (*rejection.Output, error) {
	return nil, f.err
}

func (failingVerifier) Stats() rejection.Stats { return rejection.Stats{} }

func TestVerifyInternalError(t *testing.T) {
	t.Parallel()
	e := echo.New()
	NewServer(failingVerifier{err: errors.New("boom")}).Register(e)

	rec := doJSON(t, e, http.MethodPost, "/v1/verify", greedyBatch)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status: got %d", rec.Code)
	}
	if got := decodeError(t, rec); got.Type != "server_error" || got.Message != "boom" {
		t.Fatalf("unexpected error: %+v", got)
	}
}

func TestHealthReportsStats(t *testing.T) {
	t.Parallel()
	e, _ := newTestEcho(t, rejection.Config{Seed: 1})
	if rec := doJSON(t, e, http.MethodPost, "/v1/verify", greedyBatch); rec.Code != http.StatusOK {
		t.Fatalf("verify status %d", rec.Code)
	}

	rec := doJSON(t, e, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "ok" || resp.Version == "" {
		t.Fatalf("unexpected health: %+v", resp)
	}
	if resp.Stats.Batches != 1 || resp.Stats.DraftTokens != 4 || resp.AcceptanceRate != 0.75 {
		t.Fatalf("unexpected stats: %+v", resp)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()
	e, _ := newTestEcho(t, rejection.Config{Seed: 1})
	doJSON(t, e, http.MethodPost, "/v1/verify", greedyBatch)

	rec := doJSON(t, e, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"specdec_batches_total 1",
		`specdec_accepted_tokens_total{mode="greedy"} 3`,
		`specdec_bonus_tokens_total{mode="greedy"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in metrics output:\n%s", want, body)
		}
	}
}

func TestStatusClass(t *testing.T) {
	t.Parallel()
	status, code := statusClass(context.Canceled)
	if status != http.StatusServiceUnavailable || code != "canceled" {
		t.Fatalf("got %d %q", status, code)
	}
}
