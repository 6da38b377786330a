package orgs

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/authgrid/authgrid/internal/apperrors"
	"github.com/authgrid/authgrid/internal/validation"
)

type CreateRequest struct {
	OrgID       string `json:"org_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type OrgResponse struct {
	OrgID       string `json:"org_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// HandleCreate handles POST /api/v1/orgs
func HandleCreate(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req CreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" {
			apperrors.WriteBadRequest(w, r, "Name is required")
			return
		}
		if err := validation.ValidateOrgID(req.OrgID); err != nil {
			apperrors.WriteBadRequest(w, r, err.Error())
			return
		}

		service := NewService(pool)
		org, err := service.Create(ctx, req.OrgID, req.Name, req.Description)
		if err != nil {
			if errors.Is(err, ErrOrgIDConflict) {
				apperrors.WriteConflict(w, r, "Organisation ID already exists")
				return
			}
			log.Error().Err(err).Msg("Failed to create organisation")
			apperrors.WriteInternalError(w, r, "Failed to create organisation")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusCreated, map[string]any{
			"org": OrgResponse{OrgID: org.OrgID, Name: org.Name, Description: org.Description},
		})
	}
}

// HandleListMembers handles GET /api/v1/orgs/{org_id}/members
func HandleListMembers(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		service := NewService(pool)
		org, err := service.GetByOrgID(ctx, chi.URLParam(r, "org_id"))
		if err != nil {
			if errors.Is(err, ErrOrgNotFound) {
				apperrors.WriteNotFound(w, r, "Organisation not found")
				return
			}
			log.Error().Err(err).Msg("Failed to resolve organisation")
			apperrors.WriteInternalError(w, r, "Failed to resolve organisation")
			return
		}

		members, err := service.ListMembers(ctx, org.ID)
		if err != nil {
			log.Error().Err(err).Msg("Failed to list members")
			apperrors.WriteInternalError(w, r, "Failed to list members")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"members": members,
		})
	}
}
