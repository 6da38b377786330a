package users

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/authgrid/authgrid/internal/apperrors"
)

type CreateRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type CreateResponse struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
}

// HandleCreate handles POST /api/v1/users
func HandleCreate(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req CreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		if len(req.Password) < 8 {
			apperrors.WriteBadRequest(w, r, "Password must be at least 8 characters")
			return
		}

		service := NewService(pool)
		user, err := service.Create(ctx, req.Email, req.Password)
		if err != nil {
			if errors.Is(err, ErrInvalidEmail) {
				apperrors.WriteBadRequest(w, r, "Invalid email address")
				return
			}
			if errors.Is(err, ErrEmailConflict) {
				apperrors.WriteConflict(w, r, "Email already registered")
				return
			}
			log.Error().Err(err).Msg("Failed to create user")
			apperrors.WriteInternalError(w, r, "Failed to create user")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusCreated, map[string]any{
			"user": CreateResponse{ID: user.ID, Email: user.Email},
		})
	}
}
