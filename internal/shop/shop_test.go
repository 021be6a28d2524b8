package shop

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/example/storefront/internal/access"
	"github.com/example/storefront/internal/apperr"
	"github.com/example/storefront/internal/auth"
	"github.com/example/storefront/internal/payment"
	"github.com/example/storefront/internal/store"
)

type fakeGateway struct {
	mu       sync.Mutex
	requests []payment.ChargeRequest
	err      error
}

func (g *fakeGateway) Charge(ctx context.Context, req payment.ChargeRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if g.err != nil {
		return "", g.err
	}
	return "ch_" + req.IdempotencyKey, nil
}

type fakeMailer struct {
	mu    sync.Mutex
	links map[string]string
	err   error
}

func (m *fakeMailer) SendResetEmail(ctx context.Context, to, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.links == nil {
		m.links = map[string]string{}
	}
	m.links[to] = link
	return m.err
}

type fixture struct {
	shop    *Shop
	db      *store.MemDB
	creds   *auth.Credentials
	gateway *fakeGateway
	mailer  *fakeMailer
	now     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	creds, err := auth.NewCredentials("test-secret", bcrypt.MinCost)
	require.NoError(t, err)
	f := &fixture{
		db:      store.NewMemoryDB(),
		creds:   creds,
		gateway: &fakeGateway{},
		mailer:  &fakeMailer{},
		now:     time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.shop = New(Options{
		DB:          f.db,
		Credentials: creds,
		Gateway:     f.gateway,
		Mailer:      f.mailer,
		FrontendURL: "http://localhost:7777",
		Now:         func() time.Time { return f.now },
	})
	return f
}

// as returns a context acting as u.
func as(u *store.User) context.Context {
	return auth.WithPrincipal(context.Background(), &access.Principal{UserID: u.ID, Email: u.Email, Permissions: u.Permissions})
}

func (f *fixture) user(t *testing.T, email string, perms ...access.Permission) *store.User {
	t.Helper()
	hash, err := f.creds.HashPassword("password")
	require.NoError(t, err)
	u := &store.User{Email: email, Name: email, Password: hash, Permissions: access.NewSet(perms...)}
	require.NoError(t, f.db.CreateUser(context.Background(), u))
	return u
}

func (f *fixture) item(t *testing.T, owner *store.User, title string, price int64) *store.Item {
	t.Helper()
	it, err := f.shop.CreateItem(as(owner), ItemInput{Title: title, Price: price})
	require.NoError(t, err)
	return it
}

func assertKind(t *testing.T, kind apperr.Kind, err error) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, kind, apperr.KindOf(err), "error: %v", err)
}
