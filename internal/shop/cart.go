package shop

import (
	"context"
	"fmt"

	"github.com/example/storefront/internal/access"
	"github.com/example/storefront/internal/apperr"
	"github.com/example/storefront/internal/store"
)

// Cart is a user's cart with its total in minor currency units.
type Cart struct {
	Items []*store.CartItem
	Total int64
}

func cartTotal(lines []*store.CartItem) int64 {
	var total int64
	for _, l := range lines {
		if l.Item == nil {
			continue
		}
		total += l.Item.Price * int64(l.Quantity)
	}
	return total
}

// AddToCart puts one more of itemID in the caller's cart. Repeated adds of the
// same item grow a single line rather than creating new ones.
func (s *Shop) AddToCart(ctx context.Context, itemID string) (*store.CartItem, error) {
	userID, err := access.RequireAuthenticated(principal(ctx))
	if err != nil {
		return nil, err
	}
	it, err := s.db.ItemByID(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("load item: %w", err)
	}
	if it == nil {
		return nil, apperr.NotFound("no item found for id " + itemID)
	}
	line, err := s.db.AddCartItem(ctx, userID, itemID)
	if err != nil {
		return nil, fmt.Errorf("add cart item: %w", err)
	}
	line.Item = it
	return line, nil
}

// RemoveFromCart deletes one of the caller's own cart lines. Admins get no
// override here.
func (s *Shop) RemoveFromCart(ctx context.Context, lineItemID string) (*store.CartItem, error) {
	userID, err := access.RequireAuthenticated(principal(ctx))
	if err != nil {
		return nil, err
	}
	line, err := s.db.CartItemByID(ctx, lineItemID)
	if err != nil {
		return nil, fmt.Errorf("load cart item: %w", err)
	}
	if line == nil {
		return nil, apperr.NotFound("no cart item found for id " + lineItemID)
	}
	if line.UserID != userID {
		return nil, apperr.Forbidden("you do not own that cart item")
	}
	ok, err := s.db.DeleteCartItem(ctx, lineItemID, userID)
	if err != nil {
		return nil, fmt.Errorf("delete cart item: %w", err)
	}
	if !ok {
		return nil, apperr.Conflict("cart item was already removed")
	}
	return line, nil
}

// Cart returns the caller's cart lines with their items.
func (s *Shop) Cart(ctx context.Context) (*Cart, error) {
	userID, err := access.RequireAuthenticated(principal(ctx))
	if err != nil {
		return nil, err
	}
	lines, err := s.db.CartItems(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	return &Cart{Items: lines, Total: cartTotal(lines)}, nil
}
