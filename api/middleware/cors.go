package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// localOrigins are the admin dashboard and the Expo dev server.
var localOrigins = []string{"http://localhost:3000", "http://localhost:8081"}

// CORS admits the local origins plus any configured ones. Replay and quota
// headers are exposed so the mobile client can back off correctly.
func CORS(extra ...string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: append(append([]string(nil), localOrigins...), extra...),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Accept-Language", "Authorization", "Content-Type", "Idempotency-Key", requestIDHeader},
		ExposedHeaders: []string{
			requestIDHeader,
			"Idempotent-Replayed",
			"Retry-After",
			"X-RateLimit-Limit",
			"X-RateLimit-Remaining",
		},
		AllowCredentials: true,
		MaxAge:           300,
	})
}
