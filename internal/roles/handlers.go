package roles

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/authgrid/authgrid/internal/apperrors"
	"github.com/authgrid/authgrid/internal/auth"
	"github.com/authgrid/authgrid/internal/orgs"
	"github.com/authgrid/authgrid/internal/validation"
)

type CreateRequest struct {
	RoleName      string      `json:"role_name"`
	Description   string      `json:"description"`
	PermissionIDs []uuid.UUID `json:"permissions"`
}

type SyncRequest struct {
	PermissionIDs []uuid.UUID `json:"permissions"`
}

type BulkSyncRequest struct {
	Roles []BulkEntry `json:"roles"`
}

type AssignRequest struct {
	Role string `json:"role"`
}

// resolveOrg maps the {org_id} URL parameter (the external-facing
// identifier) to the organisation row, writing the error response
// itself when that fails.
func resolveOrg(w http.ResponseWriter, r *http.Request, pool *pgxpool.Pool) (*orgs.Org, bool) {
	org, err := orgs.NewService(pool).GetByOrgID(r.Context(), chi.URLParam(r, "org_id"))
	if err != nil {
		if errors.Is(err, orgs.ErrOrgNotFound) {
			apperrors.WriteNotFound(w, r, "Organisation not found")
			return nil, false
		}
		log.Error().Err(err).Msg("Failed to resolve organisation")
		apperrors.WriteInternalError(w, r, "Failed to resolve organisation")
		return nil, false
	}
	return org, true
}

// HandleCreate handles POST /api/v1/orgs/{org_id}/roles
func HandleCreate(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		org, ok := resolveOrg(w, r, pool)
		if !ok {
			return
		}

		var req CreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}
		if err := validation.ValidateRoleName(req.RoleName); err != nil {
			apperrors.WriteBadRequest(w, r, err.Error())
			return
		}

		service := NewService(pool)
		role, err := service.Create(ctx, org.ID, req.RoleName, req.Description, req.PermissionIDs)
		if err != nil {
			if errors.Is(err, ErrRoleNameConflict) {
				apperrors.WriteConflict(w, r, "Role name already exists in organisation")
				return
			}
			if errors.Is(err, ErrPermissionNotFound) {
				apperrors.WriteBadRequest(w, r, "Role creation failed: unknown permission id")
				return
			}
			log.Error().Err(err).Msg("Failed to create role")
			apperrors.WriteInternalError(w, r, "Role creation failed")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusCreated, map[string]any{
			"role_id": role.ID,
		})
	}
}

// HandleList handles GET /api/v1/orgs/{org_id}/roles
func HandleList(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		org, ok := resolveOrg(w, r, pool)
		if !ok {
			return
		}

		service := NewService(pool)
		list, err := service.ListByOrg(r.Context(), org.ID)
		if err != nil {
			log.Error().Err(err).Msg("Failed to list roles")
			apperrors.WriteInternalError(w, r, "Failed to list roles")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"roles": list,
		})
	}
}

// HandleDisable handles PUT /api/v1/orgs/{org_id}/roles/{role_id}/disable
func HandleDisable(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		actorID := auth.GetUserID(ctx)

		org, ok := resolveOrg(w, r, pool)
		if !ok {
			return
		}

		roleID, err := uuid.Parse(chi.URLParam(r, "role_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid role ID")
			return
		}

		service := NewService(pool)
		if err := service.Disable(ctx, actorID, org.ID, roleID); err != nil {
			if errors.Is(err, ErrInsufficientPermissions) {
				apperrors.WriteForbidden(w, r, "Insufficient permission")
				return
			}
			if errors.Is(err, ErrRoleNotFound) {
				apperrors.WriteNotFound(w, r, "Role not found")
				return
			}
			if errors.Is(err, ErrRoleIsDefault) || errors.Is(err, ErrNoDefaultRole) {
				apperrors.WriteConflict(w, r, err.Error())
				return
			}
			log.Error().Err(err).Msg("Failed to disable role")
			apperrors.WriteInternalError(w, r, "Role disabling failed: "+err.Error())
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"disabled": true,
		})
	}
}

// HandleSetDefault handles PUT /api/v1/orgs/{org_id}/roles/{role_id}/default
func HandleSetDefault(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		org, ok := resolveOrg(w, r, pool)
		if !ok {
			return
		}

		roleID, err := uuid.Parse(chi.URLParam(r, "role_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid role ID")
			return
		}

		service := NewService(pool)
		if err := service.SetDefault(r.Context(), org.ID, roleID); err != nil {
			if errors.Is(err, ErrRoleNotFound) {
				apperrors.WriteNotFound(w, r, "Role not found")
				return
			}
			log.Error().Err(err).Msg("Failed to set default role")
			apperrors.WriteInternalError(w, r, "Failed to set default role")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"updated": true,
		})
	}
}

// HandleSyncPermissions handles PUT /api/v1/roles/{role_id}/permissions
func HandleSyncPermissions(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roleID, err := uuid.Parse(chi.URLParam(r, "role_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid role ID")
			return
		}

		var req SyncRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		service := NewService(pool)
		if err := service.SyncPermissions(r.Context(), roleID, req.PermissionIDs); err != nil {
			if errors.Is(err, ErrRoleNotFound) {
				apperrors.WriteNotFound(w, r, "Role not found")
				return
			}
			if errors.Is(err, ErrPermissionNotFound) {
				apperrors.WriteBadRequest(w, r, "Unknown permission id")
				return
			}
			log.Error().Err(err).Msg("Failed to sync role permissions")
			apperrors.WriteInternalError(w, r, "Failed to update permissions")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"updated": true,
		})
	}
}

// HandleBulkSyncPermissions handles PUT /api/v1/orgs/{org_id}/roles/permissions
func HandleBulkSyncPermissions(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := resolveOrg(w, r, pool); !ok {
			return
		}

		var req BulkSyncRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		service := NewService(pool)
		if err := service.BulkSyncPermissions(r.Context(), req.Roles); err != nil {
			if errors.Is(err, ErrPermissionNotFound) {
				apperrors.WriteBadRequest(w, r, "Unknown permission id")
				return
			}
			log.Error().Err(err).Msg("Failed to bulk sync role permissions")
			apperrors.WriteInternalError(w, r, "Failed to update permissions")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"updated": true,
		})
	}
}

// HandleAssignUserRole handles PUT /api/v1/orgs/{org_id}/users/{user_id}/roles
func HandleAssignUserRole(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		org, ok := resolveOrg(w, r, pool)
		if !ok {
			return
		}

		userID, err := uuid.Parse(chi.URLParam(r, "user_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid user ID")
			return
		}

		var req AssignRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}
		if err := validation.ValidateRoleName(req.Role); err != nil {
			apperrors.WriteBadRequest(w, r, err.Error())
			return
		}

		service := NewService(pool)
		if err := service.AssignByName(r.Context(), org.ID, userID, req.Role); err != nil {
			if errors.Is(err, ErrRoleNotFound) {
				apperrors.WriteNotFound(w, r, "Role not found")
				return
			}
			log.Error().Err(err).Msg("Failed to assign role")
			apperrors.WriteInternalError(w, r, "Failed to assign role")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"updated": true,
		})
	}
}
