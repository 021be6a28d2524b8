package shop

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/example/storefront/internal/access"
	"github.com/example/storefront/internal/apperr"
	"github.com/example/storefront/internal/auth"
	"github.com/example/storefront/internal/mail"
	"github.com/example/storefront/internal/store"
)

// One message for every reset failure so callers cannot tell which check
// rejected them.
const resetFailedMsg = "this reset token is either invalid or expired"

func errResetFailed() error { return apperr.Validation(resetFailedMsg) }

func errBadCredentials() error { return apperr.Unauthenticated("invalid email or password") }

type SignupInput struct {
	Email    string
	Name     string
	Password string
}

type ResetInput struct {
	ResetToken      string
	Password        string
	ConfirmPassword string
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Signup creates a USER account and signs the caller in.
func (s *Shop) Signup(ctx context.Context, in SignupInput) (*store.User, auth.SessionEffect, error) {
	email := normalizeEmail(in.Email)
	name := strings.TrimSpace(in.Name)
	if email == "" || !strings.Contains(email, "@") {
		return nil, auth.SessionEffect{}, apperr.Validation("a valid email is required")
	}
	if name == "" {
		return nil, auth.SessionEffect{}, apperr.Validation("name is required")
	}
	if in.Password == "" {
		return nil, auth.SessionEffect{}, apperr.Validation("password is required")
	}

	hash, err := s.creds.HashPassword(in.Password)
	if err != nil {
		return nil, auth.SessionEffect{}, fmt.Errorf("hash password: %w", err)
	}
	u := &store.User{
		Email:       email,
		Name:        name,
		Password:    hash,
		Permissions: access.NewSet(access.PermUser),
		CreatedAt:   s.now(),
	}
	if err := s.db.CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, auth.SessionEffect{}, apperr.Conflict("an account with that email already exists")
		}
		return nil, auth.SessionEffect{}, fmt.Errorf("create user: %w", err)
	}
	return s.startSession(u)
}

var (
	dummyHashOnce sync.Once
	dummyHash     string
)

// Signin checks the password and signs the caller in. Unknown emails and wrong
// passwords fail identically, including a bcrypt comparison for both.
func (s *Shop) Signin(ctx context.Context, email, password string) (*store.User, auth.SessionEffect, error) {
	u, err := s.db.UserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, auth.SessionEffect{}, fmt.Errorf("load user: %w", err)
	}
	if u == nil {
		dummyHashOnce.Do(func() { dummyHash, _ = s.creds.HashPassword("not-a-real-password") })
		s.creds.VerifyPassword(password, dummyHash)
		return nil, auth.SessionEffect{}, errBadCredentials()
	}
	if !s.creds.VerifyPassword(password, u.Password) {
		return nil, auth.SessionEffect{}, errBadCredentials()
	}
	return s.startSession(u)
}

// Signout needs no server state: tokens are stateless, so only the cookie goes.
func (s *Shop) Signout(ctx context.Context) auth.SessionEffect {
	return auth.ClearSession()
}

func (s *Shop) startSession(u *store.User) (*store.User, auth.SessionEffect, error) {
	token, err := s.creds.IssueToken(u.ID)
	if err != nil {
		return nil, auth.SessionEffect{}, fmt.Errorf("issue token: %w", err)
	}
	return u, auth.SetSession(token), nil
}

// Me returns the caller's account, or nil for anonymous callers.
func (s *Shop) Me(ctx context.Context) (*store.User, error) {
	p := principal(ctx)
	if p == nil {
		return nil, nil
	}
	u, err := s.db.UserByID(ctx, p.UserID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	return u, nil
}

// RequestReset stores a one-hour reset token and mails the link. A mail
// failure is logged and does not fail the request.
func (s *Shop) RequestReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	token, err := auth.NewResetToken()
	if err != nil {
		return fmt.Errorf("reset token: %w", err)
	}
	ok, err := s.db.SetResetToken(ctx, email, token, s.now().Add(ResetTokenTTL))
	if err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}
	if !ok {
		return errResetFailed()
	}
	link := mail.ResetLink(s.frontendURL, token)
	if err := s.mailer.SendResetEmail(ctx, email, link); err != nil {
		log.Printf("[reset] mail to %s failed: %v", email, err)
	}
	return nil
}

// ResetPassword redeems a reset token, sets the new password and signs the
// caller in. The token is consumed on success.
func (s *Shop) ResetPassword(ctx context.Context, in ResetInput) (*store.User, auth.SessionEffect, error) {
	if in.Password == "" || in.Password != in.ConfirmPassword {
		return nil, auth.SessionEffect{}, errResetFailed()
	}
	u, err := s.db.UserByResetToken(ctx, in.ResetToken, s.now())
	if err != nil {
		return nil, auth.SessionEffect{}, fmt.Errorf("load reset token: %w", err)
	}
	if u == nil {
		return nil, auth.SessionEffect{}, errResetFailed()
	}
	hash, err := s.creds.HashPassword(in.Password)
	if err != nil {
		return nil, auth.SessionEffect{}, fmt.Errorf("hash password: %w", err)
	}
	ok, err := s.db.ResetPassword(ctx, u.ID, in.ResetToken, hash)
	if err != nil {
		return nil, auth.SessionEffect{}, fmt.Errorf("reset password: %w", err)
	}
	if !ok {
		// redeemed concurrently
		return nil, auth.SessionEffect{}, errResetFailed()
	}
	u.Password = hash
	u.ResetToken = ""
	u.ResetTokenExpiry = time.Time{}
	return s.startSession(u)
}

// UpdatePermissions replaces a user's permission set.
func (s *Shop) UpdatePermissions(ctx context.Context, userID string, names []string) (*store.User, error) {
	if err := access.RequirePermission(principal(ctx), access.PermAdmin, access.PermPermissionUpdate); err != nil {
		return nil, err
	}
	perms, err := access.ParseSet(names)
	if err != nil {
		return nil, err
	}
	u, err := s.db.UpdatePermissions(ctx, userID, perms)
	if err != nil {
		return nil, fmt.Errorf("update permissions: %w", err)
	}
	if u == nil {
		return nil, apperr.NotFound("no user found for id " + userID)
	}
	return u, nil
}

// Users lists every account for permission management.
func (s *Shop) Users(ctx context.Context) ([]*store.User, error) {
	if err := access.RequirePermission(principal(ctx), access.PermAdmin, access.PermPermissionUpdate); err != nil {
		return nil, err
	}
	users, err := s.db.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}
