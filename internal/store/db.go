// Package store is the persistence collaborator for the shop: users, catalog
// items, cart line items and orders.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/example/storefront/internal/access"
)

// ErrDuplicate is returned when a unique constraint rejects a write.
var ErrDuplicate = errors.New("store: duplicate record")

// UserReader is the slice of DB the session layer needs.
type UserReader interface {
	UserByID(ctx context.Context, id string) (*User, error)
}

// DB interface for database operations. Lookups return (nil, nil) when the
// record does not exist.
type DB interface {
	UserReader
	// User operations
	CreateUser(ctx context.Context, u *User) error
	UserByEmail(ctx context.Context, email string) (*User, error)
	ListUsers(ctx context.Context) ([]*User, error)
	UpdatePermissions(ctx context.Context, userID string, perms access.Set) (*User, error)
	SetResetToken(ctx context.Context, email, token string, expiry time.Time) (bool, error)
	UserByResetToken(ctx context.Context, token string, now time.Time) (*User, error)
	// ResetPassword only succeeds while token is still the user's reset token.
	ResetPassword(ctx context.Context, userID, token, passwordHash string) (bool, error)
	// Item operations
	CreateItem(ctx context.Context, it *Item) error
	ItemByID(ctx context.Context, id string) (*Item, error)
	ListItems(ctx context.Context, q ItemQuery) ([]*Item, error)
	CountItems(ctx context.Context, search string) (int, error)
	UpdateItem(ctx context.Context, id string, patch ItemPatch) (*Item, error)
	// DeleteItem returns the removed item, or nil if it was already gone.
	// Cart lines referring to the item are removed with it.
	DeleteItem(ctx context.Context, id string) (*Item, error)
	// Cart operations
	// AddCartItem atomically creates the (userID, itemID) line with quantity 1
	// or increments the existing one.
	AddCartItem(ctx context.Context, userID, itemID string) (*CartItem, error)
	CartItemByID(ctx context.Context, id string) (*CartItem, error)
	CartItems(ctx context.Context, userID string) ([]*CartItem, error)
	DeleteCartItem(ctx context.Context, id, userID string) (bool, error)
	// Order operations
	// CreateOrder stores o with its items and removes the given cart lines in
	// one transaction.
	CreateOrder(ctx context.Context, o *Order, clearCartItemIDs []string) error
	OrderByID(ctx context.Context, id string) (*Order, error)
	OrdersByUser(ctx context.Context, userID string) ([]*Order, error)
	// lifecycle
	Ping(ctx context.Context) error
	Close() error
}
