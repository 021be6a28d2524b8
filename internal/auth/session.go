package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/example/storefront/internal/access"
	"github.com/example/storefront/internal/store"
)

const (
	// CookieName is the session cookie carrying the token.
	CookieName = "token"
	// CookieMaxAge is how long browsers keep the session cookie.
	CookieMaxAge = 365 * 24 * time.Hour
)

// SessionEffect tells the transport how to change the caller's session.
// The zero value leaves it alone.
type SessionEffect struct {
	SetToken string
	Clear    bool
}

func SetSession(token string) SessionEffect { return SessionEffect{SetToken: token} }
func ClearSession() SessionEffect           { return SessionEffect{Clear: true} }

// Cookie renders the effect as a cookie, or nil when there is nothing to do.
func (e SessionEffect) Cookie(secure bool) *http.Cookie {
	switch {
	case e.SetToken != "":
		return &http.Cookie{
			Name:     CookieName,
			Value:    e.SetToken,
			Path:     "/",
			MaxAge:   int(CookieMaxAge / time.Second),
			HttpOnly: true,
			Secure:   secure,
			SameSite: http.SameSiteLaxMode,
		}
	case e.Clear:
		return &http.Cookie{
			Name:     CookieName,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   secure,
			SameSite: http.SameSiteLaxMode,
		}
	}
	return nil
}

// Sessions resolves the principal behind a raw session token.
type Sessions struct {
	creds *Credentials
	users store.UserReader
}

func NewSessions(creds *Credentials, users store.UserReader) *Sessions {
	return &Sessions{creds: creds, users: users}
}

// Resolve returns nil for anonymous callers: no token, a token that does not
// verify, or a token for a user that no longer exists. Storage failures are
// returned so the caller can fail the request instead of downgrading it.
func (s *Sessions) Resolve(ctx context.Context, raw string) (*access.Principal, error) {
	userID, err := s.creds.VerifyToken(raw)
	if errors.Is(err, ErrNoToken) || errors.Is(err, ErrInvalidToken) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	u, err := s.users.UserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load principal %s: %w", userID, err)
	}
	if u == nil {
		return nil, nil
	}
	return &access.Principal{UserID: u.ID, Email: u.Email, Permissions: u.Permissions}, nil
}

type principalKey struct{}

// WithPrincipal attaches p to ctx. A nil p marks the request anonymous.
func WithPrincipal(ctx context.Context, p *access.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the principal attached to ctx, or nil.
func PrincipalFrom(ctx context.Context) *access.Principal {
	p, _ := ctx.Value(principalKey{}).(*access.Principal)
	return p
}
