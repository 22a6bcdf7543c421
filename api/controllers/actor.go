package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/foodrelief/relief-backend/api/middleware"
	"github.com/foodrelief/relief-backend/api/responses"
	"github.com/foodrelief/relief-backend/api/validators"
	"github.com/foodrelief/relief-backend/internal/phases"
	"github.com/foodrelief/relief-backend/pkg/enums"
	pkgerrors "github.com/foodrelief/relief-backend/pkg/errors"
	"github.com/foodrelief/relief-backend/pkg/logger"
)

// actorFromRequest reads the authenticated caller placed in the context by
// the auth middleware.
func actorFromRequest(r *http.Request) (phases.Actor, error) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		return phases.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	uid, err := uuid.Parse(userID)
	if err != nil {
		return phases.Actor{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id")
	}
	role, err := enums.ParseActorRole(middleware.RoleFromContext(r.Context()))
	if err != nil {
		return phases.Actor{}, pkgerrors.New(pkgerrors.CodeForbidden, "role context missing")
	}
	return phases.Actor{UserID: uid, Role: role}, nil
}

// reasonRequest is the body shared by reject, cancel and fail endpoints.
type reasonRequest struct {
	Reason string `json:"reason" validate:"required,max=1000"`
}

// noteRequest carries an optional reviewer note.
type noteRequest struct {
	Note string `json:"note" validate:"max=1000"`
}

// idAction is a mutation addressed by one path id with no request body.
type idAction func(ctx context.Context, id uuid.UUID, actor phases.Actor) (any, error)

// handleIDAction serves approve and disburse style endpoints.
func handleIDAction(available bool, service, param string, logg *logger.Logger, action idAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !available {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Newf(pkgerrors.CodeInternal, "%s service unavailable", service))
			return
		}
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.ParseUUIDParam(r, param)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := action(r.Context(), id, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// decodeOptionalBody decodes the body only when one was sent.
func decodeOptionalBody(r *http.Request, dest any) error {
	if r.Body == nil || r.Body == http.NoBody || r.ContentLength == 0 {
		return nil
	}
	return validators.DecodeJSONBody(r, dest)
}

// reasonAction is a mutation addressed by a path id that carries a reason.
type reasonAction func(ctx context.Context, id uuid.UUID, actor phases.Actor, reason string) (any, error)

func handleReasonAction(available bool, service, param string, logg *logger.Logger, action reasonAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !available {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Newf(pkgerrors.CodeInternal, "%s service unavailable", service))
			return
		}
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.ParseUUIDParam(r, param)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload reasonRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := action(r.Context(), id, actor, strings.TrimSpace(payload.Reason))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

type getAction func(ctx context.Context, id uuid.UUID) (any, error)

func handleGet(available bool, service, param string, logg *logger.Logger, action getAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !available {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Newf(pkgerrors.CodeInternal, "%s service unavailable", service))
			return
		}
		id, err := validators.ParseUUIDParam(r, param)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := action(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
