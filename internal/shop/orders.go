package shop

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/example/storefront/internal/access"
	"github.com/example/storefront/internal/apperr"
	"github.com/example/storefront/internal/payment"
	"github.com/example/storefront/internal/store"
)

// CreateOrder charges the caller for their cart and records the order.
//
// The total is always computed here from catalog prices. The charge is tried
// once; if it fails nothing is written. Once it succeeds the order is written
// even if the caller has gone away, and a write failure is logged with the
// charge id for manual reconciliation.
func (s *Shop) CreateOrder(ctx context.Context, paymentToken string) (*store.Order, error) {
	userID, err := access.RequireAuthenticated(principal(ctx))
	if err != nil {
		return nil, err
	}
	if paymentToken == "" {
		return nil, apperr.Validation("payment token is required")
	}
	lines, err := s.db.CartItems(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}

	orderID := uuid.New().String()
	var (
		items   []store.OrderItem
		lineIDs []string
		total   int64
	)
	for _, l := range lines {
		if l.Item == nil {
			continue
		}
		total += l.Item.Price * int64(l.Quantity)
		lineIDs = append(lineIDs, l.ID)
		items = append(items, store.OrderItem{
			OrderID:     orderID,
			ItemID:      l.ItemID,
			Title:       l.Item.Title,
			Description: l.Item.Description,
			Image:       l.Item.Image,
			LargeImage:  l.Item.LargeImage,
			Price:       l.Item.Price,
			Quantity:    l.Quantity,
		})
	}
	if len(items) == 0 {
		return nil, apperr.Validation("your cart is empty")
	}

	chargeID, err := s.gateway.Charge(ctx, payment.ChargeRequest{
		Amount:         total,
		Currency:       s.currency,
		Source:         paymentToken,
		Description:    fmt.Sprintf("order %s for user %s", orderID, userID),
		IdempotencyKey: orderID,
	})
	if err != nil {
		log.Printf("[order] charge failed user=%s total=%d: %v", userID, total, err)
		return nil, err
	}

	order := &store.Order{
		ID:        orderID,
		UserID:    userID,
		Total:     total,
		ChargeID:  chargeID,
		Items:     items,
		CreatedAt: s.now(),
	}
	if err := s.db.CreateOrder(context.WithoutCancel(ctx), order, lineIDs); err != nil {
		log.Printf("[order] RECONCILE charge=%s order=%s user=%s total=%d: %v", chargeID, orderID, userID, total, err)
		return nil, apperr.Internal(fmt.Errorf("persist order after charge %s: %w", chargeID, err))
	}
	log.Printf("[order] created order=%s user=%s total=%d charge=%s", orderID, userID, total, chargeID)
	return order, nil
}

// Order returns one order to its owner or an ADMIN.
func (s *Shop) Order(ctx context.Context, id string) (*store.Order, error) {
	p := principal(ctx)
	if _, err := access.RequireAuthenticated(p); err != nil {
		return nil, err
	}
	o, err := s.db.OrderByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load order: %w", err)
	}
	if o == nil {
		return nil, apperr.NotFound("no order found for id " + id)
	}
	if err := access.RequireOwnerOrPermission(p, o.UserID, access.PermAdmin); err != nil {
		return nil, err
	}
	return o, nil
}

// Orders lists the caller's own orders.
func (s *Shop) Orders(ctx context.Context) ([]*store.Order, error) {
	userID, err := access.RequireAuthenticated(principal(ctx))
	if err != nil {
		return nil, err
	}
	orders, err := s.db.OrdersByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load orders: %w", err)
	}
	return orders, nil
}
