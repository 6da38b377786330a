package invites

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/authgrid/authgrid/internal/apperrors"
	"github.com/authgrid/authgrid/internal/orgs"
	"github.com/authgrid/authgrid/internal/users"
)

type GenerateRequest struct {
	OrgID     string    `json:"org_id"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}

type GenerateResponse struct {
	InvitationUUID string `json:"invitation_uuid"`
	Link           string `json:"link"`
	ExpiresAt      string `json:"expires_at"`
}

type AcceptRequest struct {
	InvitationLink string `json:"invitation_link"`
}

// HandleGenerate handles POST /api/v1/invitations
func HandleGenerate(pool *pgxpool.Pool, baseURL string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req GenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		if strings.TrimSpace(req.OrgID) == "" {
			apperrors.WriteBadRequest(w, r, "Organisation ID is required")
			return
		}
		if req.ExpiresAt.IsZero() {
			apperrors.WriteBadRequest(w, r, "Expiry timestamp is required")
			return
		}

		service := NewService(pool)
		invite, token, err := service.Generate(ctx, req.OrgID, req.Email, req.ExpiresAt)
		if err != nil {
			if errors.Is(err, orgs.ErrOrgNotFound) {
				apperrors.WriteBadRequest(w, r, "Organisation not found")
				return
			}
			if errors.Is(err, users.ErrInvalidEmail) {
				apperrors.WriteBadRequest(w, r, "Invalid email address")
				return
			}
			if errors.Is(err, users.ErrUserNotFound) {
				apperrors.WriteBadRequest(w, r, "User with the provided email does not exist")
				return
			}
			if errors.Is(err, orgs.ErrNotMember) {
				apperrors.WriteBadRequest(w, r, "User is not associated with the specified organisation")
				return
			}
			if errors.Is(err, ErrExpiryNotFuture) {
				apperrors.WriteBadRequest(w, r, "Expiry must be in the future")
				return
			}
			log.Error().Err(err).Msg("Failed to generate invitation")
			apperrors.WriteInternalError(w, r, "Failed to generate invitation")
			return
		}

		link := baseURL + "/api/v1/invitations/accept?token=" + url.QueryEscape(token)
		apperrors.WriteSuccess(w, r, http.StatusCreated, map[string]any{
			"invitation": GenerateResponse{
				InvitationUUID: invite.PublicID.String(),
				Link:           link,
				ExpiresAt:      invite.ExpiresAt.Format(time.RFC3339),
			},
		})
	}
}

func acceptToken(w http.ResponseWriter, r *http.Request, pool *pgxpool.Pool, token string) {
	token = strings.TrimSpace(token)
	if token == "" {
		apperrors.WriteBadRequest(w, r, "Invitation token is required")
		return
	}

	service := NewService(pool)
	acceptance, err := service.Accept(r.Context(), token)
	if err != nil {
		if errors.Is(err, ErrInviteInvalid) {
			apperrors.WriteBadRequest(w, r, "Invalid or expired invitation link")
			return
		}
		log.Error().Err(err).Msg("Failed to accept invitation")
		apperrors.WriteInternalError(w, r, "Failed to accept invitation")
		return
	}

	apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
		"invitation_uuid": acceptance.InvitePublicID,
		"message":         "Invitation accepted, you have been added to the organisation",
	})
}

// HandleAccept handles GET /api/v1/invitations/accept?token=...
func HandleAccept(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		acceptToken(w, r, pool, r.URL.Query().Get("token"))
	}
}

// HandleAcceptPost handles POST /api/v1/invitations/accept. It shares
// the acceptance contract with the GET entry point: the token must
// exist and be unexpired, and the membership attach always happens.
// The body accepts either the full invitation link or the bare token.
func HandleAcceptPost(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AcceptRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}
		acceptToken(w, r, pool, tokenFromLink(req.InvitationLink))
	}
}

// tokenFromLink extracts the token query parameter from a full
// invitation link. Values that do not parse as a link with a token
// parameter are returned unchanged.
func tokenFromLink(value string) string {
	value = strings.TrimSpace(value)
	parsed, err := url.Parse(value)
	if err != nil {
		return value
	}
	if token := parsed.Query().Get("token"); token != "" {
		return token
	}
	return value
}
