package auth

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/storefront/internal/access"
	"github.com/example/storefront/internal/store"
)

type failingUsers struct{}

func (failingUsers) UserByID(ctx context.Context, id string) (*store.User, error) {
	return nil, errors.New("db down")
}

func TestResolve(t *testing.T) {
	ctx := context.Background()
	c := newTestCredentials(t)
	db := store.NewMemoryDB()
	u := &store.User{Email: "a@b.c", Name: "a", Password: "x", Permissions: access.NewSet(access.PermUser, access.PermItemCreate)}
	require.NoError(t, db.CreateUser(ctx, u))
	sessions := NewSessions(c, db)

	token, err := c.IssueToken(u.ID)
	require.NoError(t, err)
	p, err := sessions.Resolve(ctx, token)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, u.ID, p.UserID)
	assert.True(t, p.Permissions.Has(access.PermItemCreate))

	// permissions come from storage, not the token
	_, err = db.UpdatePermissions(ctx, u.ID, access.NewSet(access.PermAdmin))
	require.NoError(t, err)
	p, err = sessions.Resolve(ctx, token)
	require.NoError(t, err)
	assert.True(t, p.Permissions.Has(access.PermAdmin))
	assert.False(t, p.Permissions.Has(access.PermItemCreate))

	for _, raw := range []string{"", "garbage"} {
		p, err := sessions.Resolve(ctx, raw)
		require.NoError(t, err)
		assert.Nil(t, p)
	}

	ghost, err := c.IssueToken("deleted-user")
	require.NoError(t, err)
	p, err = sessions.Resolve(ctx, ghost)
	require.NoError(t, err)
	assert.Nil(t, p)

	_, err = NewSessions(c, failingUsers{}).Resolve(ctx, token)
	assert.Error(t, err)
}

func TestPrincipalContext(t *testing.T) {
	assert.Nil(t, PrincipalFrom(context.Background()))
	p := &access.Principal{UserID: "u1"}
	assert.Same(t, p, PrincipalFrom(WithPrincipal(context.Background(), p)))
}

func TestSessionEffectCookie(t *testing.T) {
	assert.Nil(t, SessionEffect{}.Cookie(true))

	set := SetSession("tok").Cookie(true)
	require.NotNil(t, set)
	assert.Equal(t, CookieName, set.Name)
	assert.Equal(t, "tok", set.Value)
	assert.True(t, set.HttpOnly)
	assert.True(t, set.Secure)
	assert.Equal(t, 365*24*60*60, set.MaxAge)
	assert.Equal(t, http.SameSiteLaxMode, set.SameSite)

	cleared := ClearSession().Cookie(false)
	require.NotNil(t, cleared)
	assert.Equal(t, CookieName, cleared.Name)
	assert.Empty(t, cleared.Value)
	assert.Equal(t, -1, cleared.MaxAge)
	assert.False(t, cleared.Secure)
}
