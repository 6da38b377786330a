package integration

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/authgrid/authgrid/internal/invites"
	"github.com/authgrid/authgrid/internal/orgs"
	"github.com/authgrid/authgrid/internal/users"
)

func TestGenerateInvitation_UnknownOrg(t *testing.T) {
	pool, cleanup := newTestDB(t)
	t.Cleanup(cleanup)

	createUser(t, pool, "someone@example.com")

	_, _, err := invites.NewService(pool).Generate(context.Background(), "missing-org", "someone@example.com", time.Now().Add(time.Hour))
	require.ErrorIs(t, err, orgs.ErrOrgNotFound)

	require.Zero(t, countRows(t, pool, `SELECT COUNT(*) FROM invites`))
}

func TestGenerateInvitation_UnknownUser(t *testing.T) {
	pool, cleanup := newTestDB(t)
	t.Cleanup(cleanup)

	createOrg(t, pool, "acme-inv-user")

	_, _, err := invites.NewService(pool).Generate(context.Background(), "acme-inv-user", "ghost@example.com", time.Now().Add(time.Hour))
	require.ErrorIs(t, err, users.ErrUserNotFound)

	require.Zero(t, countRows(t, pool, `SELECT COUNT(*) FROM invites`))
}

func TestGenerateInvitation_NonMemberIsRejected(t *testing.T) {
	pool, cleanup := newTestDB(t)
	t.Cleanup(cleanup)

	createOrg(t, pool, "acme-inv-member")
	createUser(t, pool, "stranger@example.com")

	_, _, err := invites.NewService(pool).Generate(context.Background(), "acme-inv-member", "stranger@example.com", time.Now().Add(time.Hour))
	require.ErrorIs(t, err, orgs.ErrNotMember)

	require.Zero(t, countRows(t, pool, `SELECT COUNT(*) FROM invites`))
}

func TestGenerateInvitation_PastExpiryIsRejected(t *testing.T) {
	pool, cleanup := newTestDB(t)
	t.Cleanup(cleanup)

	org := createOrg(t, pool, "acme-inv-past")
	user := createUser(t, pool, "member@example.com")
	attachMember(t, pool, org.ID, user.ID)

	_, _, err := invites.NewService(pool).Generate(context.Background(), "acme-inv-past", "member@example.com", time.Now().Add(-time.Minute))
	require.ErrorIs(t, err, invites.ErrExpiryNotFuture)

	require.Zero(t, countRows(t, pool, `SELECT COUNT(*) FROM invites`))
}

func TestGenerateAndAccept_AttachesMembership(t *testing.T) {
	pool, cleanup := newTestDB(t)
	t.Cleanup(cleanup)
	ctx := context.Background()

	org := createOrg(t, pool, "acme-inv-accept")
	user := createUser(t, pool, "invitee@example.com")
	attachMember(t, pool, org.ID, user.ID)

	service := invites.NewService(pool)
	invite, token, err := service.Generate(ctx, "acme-inv-accept", "invitee@example.com", time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(token, invites.TokenPrefix))
	require.Equal(t, org.ID, invite.OrgID)

	acceptance, err := service.Accept(ctx, token)
	require.NoError(t, err)
	require.Equal(t, invite.PublicID, acceptance.InvitePublicID)
	require.Equal(t, org.ID, acceptance.OrgID)
	require.Equal(t, user.ID, acceptance.UserID)

	isMember, err := orgs.NewService(pool).IsMember(ctx, org.ID, user.ID)
	require.NoError(t, err)
	require.True(t, isMember)
}

func TestAccept_ExpiredAndUnknownAreIndistinguishable(t *testing.T) {
	pool, cleanup := newTestDB(t)
	t.Cleanup(cleanup)
	ctx := context.Background()

	org := createOrg(t, pool, "acme-inv-exp")
	user := createUser(t, pool, "late@example.com")
	attachMember(t, pool, org.ID, user.ID)

	service := invites.NewService(pool)
	invite, token, err := service.Generate(ctx, "acme-inv-exp", "late@example.com", time.Now().Add(time.Minute))
	require.NoError(t, err)

	// Remove the baseline membership so a successful accept would be visible.
	_, err = pool.Exec(ctx, `DELETE FROM org_memberships WHERE org_id = $1 AND user_id = $2`, org.ID, user.ID)
	require.NoError(t, err)

	_, err = pool.Exec(ctx, `UPDATE invites SET expires_at = NOW() - INTERVAL '1 hour' WHERE id = $1`, invite.ID)
	require.NoError(t, err)

	_, errExpired := service.Accept(ctx, token)
	require.ErrorIs(t, errExpired, invites.ErrInviteInvalid)

	unknown, _, err := invites.GenerateToken()
	require.NoError(t, err)
	_, errUnknown := service.Accept(ctx, unknown)
	require.ErrorIs(t, errUnknown, invites.ErrInviteInvalid)

	require.Equal(t, errExpired.Error(), errUnknown.Error())

	// The expired accept must not have attached anything.
	isMember, err := orgs.NewService(pool).IsMember(ctx, org.ID, user.ID)
	require.NoError(t, err)
	require.False(t, isMember)
}

func TestAccept_TwiceCreatesNoDuplicateMembership(t *testing.T) {
	pool, cleanup := newTestDB(t)
	t.Cleanup(cleanup)
	ctx := context.Background()

	org := createOrg(t, pool, "acme-inv-twice")
	user := createUser(t, pool, "again@example.com")
	attachMember(t, pool, org.ID, user.ID)

	service := invites.NewService(pool)
	_, token, err := service.Generate(ctx, "acme-inv-twice", "again@example.com", time.Now().Add(time.Hour))
	require.NoError(t, err)

	_, err = service.Accept(ctx, token)
	require.NoError(t, err)
	_, err = service.Accept(ctx, token)
	require.NoError(t, err)

	require.Equal(t, 1, countRows(t, pool, `
		SELECT COUNT(*) FROM org_memberships WHERE org_id = $1 AND user_id = $2
	`, org.ID, user.ID))
}

func TestAccept_MalformedToken(t *testing.T) {
	pool, cleanup := newTestDB(t)
	t.Cleanup(cleanup)

	_, err := invites.NewService(pool).Accept(context.Background(), "not-a-token")
	require.ErrorIs(t, err, invites.ErrInviteInvalid)
}

func TestPurgeExpired_RemovesOnlyExpiredInvites(t *testing.T) {
	pool, cleanup := newTestDB(t)
	t.Cleanup(cleanup)
	ctx := context.Background()

	org := createOrg(t, pool, "acme-inv-purge")
	user := createUser(t, pool, "keeper@example.com")
	attachMember(t, pool, org.ID, user.ID)

	service := invites.NewService(pool)

	expired, _, err := service.Generate(ctx, "acme-inv-purge", "keeper@example.com", time.Now().Add(time.Minute))
	require.NoError(t, err)
	_, kept, err := service.Generate(ctx, "acme-inv-purge", "keeper@example.com", time.Now().Add(time.Hour))
	require.NoError(t, err)

	_, err = pool.Exec(ctx, `UPDATE invites SET expires_at = NOW() - INTERVAL '1 hour' WHERE id = $1`, expired.ID)
	require.NoError(t, err)

	purged, err := service.PurgeExpired(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, purged)

	require.Equal(t, 1, countRows(t, pool, `SELECT COUNT(*) FROM invites`))

	// The surviving invite still redeems.
	_, err = service.Accept(ctx, kept)
	require.NoError(t, err)
}
