package controllers

import (
	"net/http"

	"github.com/foodrelief/relief-backend/api/middleware"
	"github.com/foodrelief/relief-backend/api/presenters"
	"github.com/foodrelief/relief-backend/api/responses"
	"github.com/foodrelief/relief-backend/pkg/enums"
)

type whoAmIResponse struct {
	UserID    string `json:"user_id"`
	Role      string `json:"role"`
	RoleLabel string `json:"role_label"`
	Language  string `json:"language"`
}

// WhoAmI reports the identity the API resolved from the bearer token, with
// the role rendered in the caller's language.
func WhoAmI() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		labels := presenters.FromRequest(r)
		role := middleware.RoleFromContext(r.Context())
		responses.WriteSuccess(w, whoAmIResponse{
			UserID:    middleware.UserIDFromContext(r.Context()),
			Role:      role,
			RoleLabel: labels.Role(enums.ActorRole(role)),
			Language:  labels.Language(),
		})
	}
}
