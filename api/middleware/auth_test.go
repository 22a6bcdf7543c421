package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/foodrelief/relief-backend/pkg/auth"
	"github.com/foodrelief/relief-backend/pkg/config"
	"github.com/foodrelief/relief-backend/pkg/enums"
)

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "issuer", ExpirationMinutes: 60}

func mintTestToken(t *testing.T, userID uuid.UUID, role enums.ActorRole) string {
	t.Helper()
	token, err := auth.MintAccessToken(testJWT, time.Now(), auth.AccessTokenPayload{UserID: userID, Role: role})
	require.NoError(t, err)
	return token
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthRejectsMissingToken(t *testing.T) {
	handler := Auth(testJWT, nil)(okHandler())

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestAuthRejectsInvalidToken(t *testing.T) {
	handler := Auth(testJWT, nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer invalid")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	require.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestAuthSeedsCallerContext(t *testing.T) {
	userID := uuid.New()
	token := mintTestToken(t, userID, enums.ActorRoleKitchenStaff)

	var gotUser, gotRole string
	handler := Auth(testJWT, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = UserIDFromContext(r.Context())
		gotRole = RoleFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, userID.String(), gotUser)
	require.Equal(t, string(enums.ActorRoleKitchenStaff), gotRole)
}

func TestRequireRoles(t *testing.T) {
	tests := []struct {
		name string
		user string
		role enums.ActorRole
		want int
	}{
		{"allowed", uuid.NewString(), enums.ActorRoleAdmin, http.StatusOK},
		{"second allowed", uuid.NewString(), enums.ActorRoleFundraiser, http.StatusOK},
		{"wrong role", uuid.NewString(), enums.ActorRoleDeliveryStaff, http.StatusForbidden},
		{"anonymous", "", "", http.StatusUnauthorized},
	}

	handler := RequireRoles(nil, enums.ActorRoleAdmin, enums.ActorRoleFundraiser)(okHandler())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			ctx := req.Context()
			if tt.user != "" {
				ctx = WithUserID(ctx, tt.user)
				ctx = WithRole(ctx, string(tt.role))
			}
			resp := httptest.NewRecorder()
			handler.ServeHTTP(resp, req.WithContext(ctx))
			require.Equal(t, tt.want, resp.Code)
		})
	}
}

func TestBearerToken(t *testing.T) {
	require.Equal(t, "abc", bearerToken("Bearer abc"))
	require.Equal(t, "abc", bearerToken("  bearer   abc "))
	require.Equal(t, "abc", bearerToken("abc"))
	require.Empty(t, bearerToken("Bearer "))
	require.Empty(t, bearerToken(""))
}
