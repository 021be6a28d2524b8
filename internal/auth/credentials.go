// Package auth issues and verifies credentials and derives the principal for
// each request.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrNoToken means the request carried no session token at all.
	ErrNoToken = errors.New("auth: no session token")
	// ErrInvalidToken covers tampered, malformed, or foreign tokens.
	ErrInvalidToken = errors.New("auth: invalid session token")
)

const userIDClaim = "userId"

// Credentials hashes passwords and signs session tokens with one
// process-wide secret.
type Credentials struct {
	secret []byte
	cost   int
}

// NewCredentials fails when secret is empty. A cost outside bcrypt's range
// falls back to bcrypt.DefaultCost.
func NewCredentials(secret string, cost int) (*Credentials, error) {
	if secret == "" {
		return nil, errors.New("auth: signing secret is not configured")
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Credentials{secret: []byte(secret), cost: cost}, nil
}

func (c *Credentials) HashPassword(p string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(p), c.cost)
	return string(b), err
}

// VerifyPassword relies on bcrypt's constant-time comparison.
func (c *Credentials) VerifyPassword(p, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(p)) == nil
}

// IssueToken signs a token carrying only the user id. The token has no expiry
// of its own; its lifetime is bounded by the session cookie and by rotating
// the secret.
func (c *Credentials) IssueToken(userID string) (string, error) {
	claims := jwt.MapClaims{userIDClaim: userID}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.secret)
}

// VerifyToken returns the embedded user id, ErrNoToken for an empty token, or
// ErrInvalidToken for anything that does not verify.
func (c *Credentials) VerifyToken(raw string) (string, error) {
	if raw == "" {
		return "", ErrNoToken
	}
	token, err := jwt.Parse(raw, func(token *jwt.Token) (interface{}, error) {
		return c.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}
	userID, ok := claims[userIDClaim].(string)
	if !ok || userID == "" {
		return "", ErrInvalidToken
	}
	return userID, nil
}

// NewResetToken returns a random hex token for password reset links.
func NewResetToken() (string, error) {
	b := make([]byte, 20)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
