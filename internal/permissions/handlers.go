package permissions

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/authgrid/authgrid/internal/apperrors"
)

type CreateRequest struct {
	Name string `json:"name"`
}

// HandleList handles GET /api/v1/permissions
func HandleList(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		service := NewService(pool)
		perms, err := service.List(r.Context())
		if err != nil {
			log.Error().Err(err).Msg("Failed to list permissions")
			apperrors.WriteInternalError(w, r, "Failed to list permissions")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"permissions": perms,
		})
	}
}

// HandleCreate handles POST /api/v1/permissions
func HandleCreate(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		service := NewService(pool)
		perm, err := service.Create(r.Context(), req.Name)
		if err != nil {
			if errors.Is(err, ErrNameEmpty) {
				apperrors.WriteBadRequest(w, r, "Permission name is required")
				return
			}
			if errors.Is(err, ErrNameConflict) {
				apperrors.WriteConflict(w, r, "Permission name already exists")
				return
			}
			log.Error().Err(err).Msg("Failed to create permission")
			apperrors.WriteInternalError(w, r, "Failed to create permission")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusCreated, map[string]any{
			"permission": perm,
		})
	}
}
