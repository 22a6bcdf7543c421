package controllers

import (
	"net/http"
	"strings"

	"github.com/foodrelief/relief-backend/api/responses"
	"github.com/foodrelief/relief-backend/api/validators"
	"github.com/foodrelief/relief-backend/internal/media"
	pkgerrors "github.com/foodrelief/relief-backend/pkg/errors"
	"github.com/foodrelief/relief-backend/pkg/logger"
)

type uploadURLsRequest struct {
	FileCount int      `json:"file_count" validate:"required,min=1"`
	FileTypes []string `json:"file_types" validate:"required,min=1,dive,required"`
}

// MediaUploadURLs returns signed PUT URLs for evidence uploads.
func MediaUploadURLs(svc media.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "media service unavailable"))
			return
		}
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload uploadURLsRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		types := make([]string, 0, len(payload.FileTypes))
		for _, t := range payload.FileTypes {
			types = append(types, strings.ToLower(strings.TrimSpace(t)))
		}

		targets, err := svc.GenerateUploadURLs(r.Context(), media.UploadInput{
			OwnerID:   actor.UserID,
			FileCount: payload.FileCount,
			FileTypes: types,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]any{"uploads": targets})
	}
}
