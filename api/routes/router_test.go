package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foodrelief/relief-backend/internal/phases"
	"github.com/foodrelief/relief-backend/internal/requests"
	pkgAuth "github.com/foodrelief/relief-backend/pkg/auth"
	"github.com/foodrelief/relief-backend/pkg/config"
	"github.com/foodrelief/relief-backend/pkg/enums"
	"github.com/foodrelief/relief-backend/pkg/logger"
	"github.com/foodrelief/relief-backend/pkg/metrics"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type memoryStore struct {
	data map[string]string
}

func (m *memoryStore) Replay(_ context.Context, scope, key string) (string, bool, error) {
	v, ok := m.data[scope+"#"+key]
	return v, ok, nil
}

func (m *memoryStore) Remember(_ context.Context, scope, key, record string, _ time.Duration) (bool, error) {
	if _, ok := m.data[scope+"#"+key]; ok {
		return false, nil
	}
	m.data[scope+"#"+key] = record
	return true, nil
}

type countingRequests struct {
	requests.Service
	disbursed int
}

func (c *countingRequests) DisburseIngredient(_ context.Context, id uuid.UUID, _ phases.Actor) (*requests.IngredientRequestResult, error) {
	c.disbursed++
	return &requests.IngredientRequestResult{
		IngredientRequestView: phases.IngredientRequestView{ID: id, Status: enums.IngredientRequestDisbursed},
		PhaseStatus:           enums.PhaseStatusIngredientPurchase,
	}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App:   config.AppConfig{Env: "test", Port: "8080"},
		JWT:   config.JWTConfig{Secret: "router-secret", Issuer: "relief-test", ExpirationMinutes: 5},
		Redis: config.RedisConfig{IdempotencyTTL: time.Hour},
	}
}

func testRouter(t *testing.T, reqs requests.Service, store *memoryStore) (http.Handler, *config.Config) {
	t.Helper()
	cfg := testConfig()
	registry := prometheus.NewRegistry()
	metrics.NewWorkflowMetrics(registry).ObserveTransition("PLANNING", "AWAITING_INGREDIENT_DISBURSEMENT")
	infra := Infra{
		DB:      stubPinger{},
		Redis:   stubPinger{},
		Metrics: registry,
	}
	if store != nil {
		infra.Idempotency = store
	}
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	return NewRouter(cfg, logg, infra, Services{Requests: reqs}), cfg
}

func bearer(t *testing.T, cfg *config.Config, role enums.ActorRole) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{UserID: uuid.New(), Role: role})
	require.NoError(t, err)
	return "Bearer " + token
}

func TestHealthRoutes(t *testing.T) {
	router, _ := testRouter(t, nil, nil)

	for _, path := range []string{"/health/live", "/health/ready"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, "test", rec.Header().Get("X-Relief-Env"))
	}
}

func TestMetricsEndpointExportsWorkflowMetrics(t *testing.T) {
	router, _ := testRouter(t, nil, nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "phase_transitions_total")
}

func TestPrivateRoutesRejectMissingJWT(t *testing.T) {
	router, _ := testRouter(t, nil, nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/me", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWhoAmISucceedsWithJWT(t *testing.T) {
	router, cfg := testRouter(t, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.Header.Set("Authorization", bearer(t, cfg, enums.ActorRoleDonor))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminRoutesRejectOtherRoles(t *testing.T) {
	router, cfg := testRouter(t, &countingRequests{}, &memoryStore{data: map[string]string{}})
	paths := []string{
		"/api/v1/phases/" + uuid.NewString() + "/cancel",
		"/api/v1/ingredient-requests/" + uuid.NewString() + "/disburse",
		"/api/v1/expense-proofs/" + uuid.NewString() + "/approve",
	}
	for _, path := range paths {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{}`))
		req.Header.Set("Authorization", bearer(t, cfg, enums.ActorRoleKitchenStaff))
		req.Header.Set("Idempotency-Key", uuid.NewString())
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code, path)
	}
}

func TestDeliveryStaffOnlyRoutes(t *testing.T) {
	router, cfg := testRouter(t, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/delivery-tasks/mine", nil)
	req.Header.Set("Authorization", bearer(t, cfg, enums.ActorRoleFundraiser))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDisburseRequiresIdempotencyKeyAndReplays(t *testing.T) {
	svc := &countingRequests{}
	router, cfg := testRouter(t, svc, &memoryStore{data: map[string]string{}})
	path := "/api/v1/ingredient-requests/" + uuid.NewString() + "/disburse"
	auth := bearer(t, cfg, enums.ActorRoleAdmin)

	req := httptest.NewRequest(http.MethodPost, path, nil)
	req.Header.Set("Authorization", auth)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, svc.disbursed)

	key := uuid.NewString()
	var bodies []string
	for i := 0; i < 2; i++ {
		req = httptest.NewRequest(http.MethodPost, path, nil)
		req.Header.Set("Authorization", auth)
		req.Header.Set("Idempotency-Key", key)
		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		bodies = append(bodies, rec.Body.String())
	}
	assert.Equal(t, 1, svc.disbursed)
	assert.Equal(t, bodies[0], bodies[1])
	assert.Contains(t, bodies[0], `"phase_status":"INGREDIENT_PURCHASE"`)
}
