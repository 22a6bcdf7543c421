package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/foodrelief/relief-backend/api/responses"
	pkgerrors "github.com/foodrelief/relief-backend/pkg/errors"
	"github.com/foodrelief/relief-backend/pkg/logger"
	pkgredis "github.com/foodrelief/relief-backend/pkg/redis"
)

// moneyReplayTTL covers approvals, disbursements and terminal phase actions.
const moneyReplayTTL = 7 * 24 * time.Hour

type replayRoute struct {
	prefix string
	suffix string
	money  bool
}

// replayRoutes lists the POST routes that require an Idempotency-Key. A route
// with an empty suffix must match its prefix exactly.
var replayRoutes = []replayRoute{
	{prefix: "/api/v1/campaigns"},
	{prefix: "/api/v1/campaigns/{campaignId}/phases"},
	{prefix: "/api/v1/phases/{phaseId}/ingredient-requests"},
	{prefix: "/api/v1/phases/{phaseId}/operation-requests"},
	{prefix: "/api/v1/phases/{phaseId}/meal-batches"},
	{prefix: "/api/v1/expense-proofs"},
	{prefix: "/api/v1/media/upload-urls"},
	{prefix: "/api/v1/meal-batches/", suffix: "/usages"},
	{prefix: "/api/v1/meal-batches/", suffix: "/delivery-tasks"},
	{prefix: "/api/v1/delivery-tasks/", suffix: "/reassign"},
	{prefix: "/api/v1/ingredient-requests/", suffix: "/approve", money: true},
	{prefix: "/api/v1/ingredient-requests/", suffix: "/disburse", money: true},
	{prefix: "/api/v1/operation-requests/", suffix: "/approve", money: true},
	{prefix: "/api/v1/phases/", suffix: "/cancel", money: true},
	{prefix: "/api/v1/phases/", suffix: "/fail", money: true},
}

func (rr replayRoute) matches(pattern string) bool {
	if rr.suffix == "" {
		return pattern == rr.prefix
	}
	return strings.HasPrefix(pattern, rr.prefix) && strings.HasSuffix(pattern, rr.suffix)
}

// storedResponse is the JSON value kept in redis per key.
type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body"`
	RequestHash string `json:"request_hash"`
}

// Idempotency replays the first response recorded for an Idempotency-Key.
// Reusing a key with a different body is rejected, and 5xx responses are
// never recorded so the client may retry them.
func Idempotency(store pkgredis.IdempotencyStore, defaultTTL time.Duration, logg *logger.Logger) func(http.Handler) http.Handler {
	if defaultTTL <= 0 {
		defaultTTL = 24 * time.Hour
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ttl, guarded := replayTTL(r.Method, routePattern(r), defaultTTL)
			if !guarded || store == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
			if key == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
				return
			}
			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
			hash := sha256.Sum256(body)
			fingerprint := base64.StdEncoding.EncodeToString(hash[:])
			scope := strings.Join([]string{UserIDFromContext(ctx), r.Method, r.URL.Path}, "|")

			raw, found, err := store.Replay(ctx, scope, key)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
				return
			}
			if found {
				var prior storedResponse
				if err := json.Unmarshal([]byte(raw), &prior); err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
					return
				}
				if prior.RequestHash != fingerprint {
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
					return
				}
				prior.writeTo(w)
				return
			}

			capture := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(capture, r)
			if capture.statusCode() >= http.StatusInternalServerError {
				return
			}
			record, err := json.Marshal(storedResponse{
				Status:      capture.statusCode(),
				ContentType: capture.Header().Get("Content-Type"),
				Body:        capture.body.Bytes(),
				RequestHash: fingerprint,
			})
			if err == nil {
				_, err = store.Remember(ctx, scope, key, string(record), ttl)
			}
			if err != nil && logg != nil {
				logg.Error(ctx, "persist idempotency record", err)
			}
		})
	}
}

func (s storedResponse) writeTo(w http.ResponseWriter) {
	if s.ContentType != "" {
		w.Header().Set("Content-Type", s.ContentType)
	}
	w.Header().Set("Idempotent-Replayed", "true")
	w.WriteHeader(s.Status)
	_, _ = w.Write(s.Body)
}

func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

func replayTTL(method, pattern string, defaultTTL time.Duration) (time.Duration, bool) {
	if method != http.MethodPost || pattern == "" {
		return 0, false
	}
	for _, route := range replayRoutes {
		if !route.matches(pattern) {
			continue
		}
		if route.money {
			return moneyReplayTTL, true
		}
		return defaultTTL, true
	}
	return 0, false
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *responseCapture) statusCode() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}

func (c *responseCapture) WriteHeader(code int) {
	c.status = code
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}
