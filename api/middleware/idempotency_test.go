package middleware

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/foodrelief/relief-backend/pkg/errors"
)

type fakeStore struct {
	data map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string]string)}
}

func (f *fakeStore) Replay(_ context.Context, scope, key string) (string, bool, error) {
	v, ok := f.data[scope+"#"+key]
	return v, ok, nil
}

func (f *fakeStore) Remember(_ context.Context, scope, key, record string, _ time.Duration) (bool, error) {
	if _, ok := f.data[scope+"#"+key]; ok {
		return false, nil
	}
	f.data[scope+"#"+key] = record
	return true, nil
}

func requestWithPattern(method, url, pattern string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, url, body)
	rc := chi.NewRouteContext()
	rc.RoutePatterns = []string{pattern}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func TestReplayTTLSelection(t *testing.T) {
	day := 24 * time.Hour
	tests := []struct {
		name    string
		method  string
		pattern string
		want    time.Duration
		ok      bool
	}{
		{"disburse", http.MethodPost, "/api/v1/ingredient-requests/{requestId}/disburse", moneyReplayTTL, true},
		{"operation approve", http.MethodPost, "/api/v1/operation-requests/{requestId}/approve", moneyReplayTTL, true},
		{"cancel phase", http.MethodPost, "/api/v1/phases/{phaseId}/cancel", moneyReplayTTL, true},
		{"submit request", http.MethodPost, "/api/v1/phases/{phaseId}/ingredient-requests", day, true},
		{"batch usage", http.MethodPost, "/api/v1/meal-batches/{batchId}/usages", day, true},
		{"read phase", http.MethodGet, "/api/v1/phases/{phaseId}", 0, false},
		{"status patch", http.MethodPatch, "/api/v1/delivery-tasks/{taskId}/status", 0, false},
	}

	for _, tt := range tests {
		ttl, ok := replayTTL(tt.method, tt.pattern, day)
		require.Equal(t, tt.ok, ok, tt.name)
		if ok {
			require.Equal(t, tt.want, ttl, tt.name)
		}
	}
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	store := newFakeStore()
	calls := 0
	handler := Idempotency(store, time.Hour, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"id":"req-1"}}`))
	}))

	pattern := "/api/v1/phases/{phaseId}/ingredient-requests"
	for i := 0; i < 2; i++ {
		req := requestWithPattern(http.MethodPost, "/api/v1/phases/p1/ingredient-requests", pattern, strings.NewReader(`{"items":[]}`))
		req.Header.Set("Idempotency-Key", "key-1")
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		require.Equal(t, http.StatusCreated, resp.Code)
		require.JSONEq(t, `{"data":{"id":"req-1"}}`, resp.Body.String())
		if i == 1 {
			require.Equal(t, "true", resp.Header().Get("Idempotent-Replayed"))
		}
	}
	require.Equal(t, 1, calls)
}

func TestIdempotencyRejectsReusedKeyWithDifferentBody(t *testing.T) {
	store := newFakeStore()
	handler := Idempotency(store, time.Hour, nil)(okHandler())
	pattern := "/api/v1/expense-proofs"

	first := requestWithPattern(http.MethodPost, pattern, pattern, strings.NewReader(`{"claimed_amount":1}`))
	first.Header.Set("Idempotency-Key", "key-2")
	handler.ServeHTTP(httptest.NewRecorder(), first)

	second := requestWithPattern(http.MethodPost, pattern, pattern, strings.NewReader(`{"claimed_amount":2}`))
	second.Header.Set("Idempotency-Key", "key-2")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, second)

	require.Equal(t, http.StatusConflict, resp.Code)
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	require.Equal(t, string(pkgerrors.CodeIdempotency), body.Error.Code)
}

func TestIdempotencyRequiresHeader(t *testing.T) {
	handler := Idempotency(newFakeStore(), time.Hour, nil)(okHandler())
	pattern := "/api/v1/campaigns"
	req := requestWithPattern(http.MethodPost, pattern, pattern, strings.NewReader(`{}`))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	require.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestIdempotencySkipsServerFailures(t *testing.T) {
	store := newFakeStore()
	calls := 0
	handler := Idempotency(store, time.Hour, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	pattern := "/api/v1/ingredient-requests/{requestId}/disburse"
	for i := 0; i < 2; i++ {
		req := requestWithPattern(http.MethodPost, "/api/v1/ingredient-requests/r1/disburse", pattern, nil)
		req.Header.Set("Idempotency-Key", "key-3")
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}
	require.Equal(t, 2, calls)
	require.Empty(t, store.data)
}

func TestIdempotencyIgnoresUnlistedRoutes(t *testing.T) {
	handler := Idempotency(newFakeStore(), time.Hour, nil)(okHandler())
	req := requestWithPattern(http.MethodGet, "/api/v1/phases/p1", "/api/v1/phases/{phaseId}", nil)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)
}
