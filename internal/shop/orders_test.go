package shop

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/storefront/internal/access"
	"github.com/example/storefront/internal/apperr"
)

func TestCreateOrder(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "buyer@example.com", access.PermUser)
	hat := f.item(t, u, "Hat", 1000)
	belt := f.item(t, u, "Belt", 250)
	for _, id := range []string{hat.ID, hat.ID, belt.ID} {
		_, err := f.shop.AddToCart(as(u), id)
		require.NoError(t, err)
	}

	order, err := f.shop.CreateOrder(as(u), "tok_visa")
	require.NoError(t, err)
	assert.Equal(t, int64(2250), order.Total)
	assert.Equal(t, u.ID, order.UserID)
	assert.Equal(t, "ch_"+order.ID, order.ChargeID)
	require.Len(t, order.Items, 2)

	require.Len(t, f.gateway.requests, 1)
	req := f.gateway.requests[0]
	assert.Equal(t, int64(2250), req.Amount)
	assert.Equal(t, "usd", req.Currency)
	assert.Equal(t, "tok_visa", req.Source)
	assert.Equal(t, order.ID, req.IdempotencyKey)

	cart, err := f.shop.Cart(as(u))
	require.NoError(t, err)
	assert.Empty(t, cart.Items)

	// later price changes do not touch the snapshot
	price := int64(9999)
	_, err = f.shop.UpdateItem(as(u), ItemUpdate{ID: hat.ID, Price: &price})
	require.NoError(t, err)
	got, err := f.shop.Order(as(u), order.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2250), got.Total)
	for _, oi := range got.Items {
		if oi.ItemID == hat.ID {
			assert.Equal(t, int64(1000), oi.Price)
			assert.Equal(t, 2, oi.Quantity)
		}
	}

	orders, err := f.shop.Orders(as(u))
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, order.ID, orders[0].ID)
}

func TestCreateOrderDeclinedPersistsNothing(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "buyer@example.com", access.PermUser)
	it := f.item(t, u, "Hat", 1000)
	for i := 0; i < 2; i++ {
		_, err := f.shop.AddToCart(as(u), it.ID)
		require.NoError(t, err)
	}
	f.gateway.err = apperr.New(apperr.KindPaymentDeclined, "your card was declined")

	_, err := f.shop.CreateOrder(as(u), "tok_chargeDeclined")
	assertKind(t, apperr.KindPaymentDeclined, err)

	require.Len(t, f.gateway.requests, 1)
	assert.Equal(t, int64(2000), f.gateway.requests[0].Amount)

	orders, err := f.shop.Orders(as(u))
	require.NoError(t, err)
	assert.Empty(t, orders)

	cart, err := f.shop.Cart(as(u))
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 2, cart.Items[0].Quantity)
}

func TestCreateOrderGatewayError(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "buyer@example.com", access.PermUser)
	it := f.item(t, u, "Hat", 1000)
	_, err := f.shop.AddToCart(as(u), it.ID)
	require.NoError(t, err)
	f.gateway.err = apperr.New(apperr.KindPaymentGatewayError, "payment gateway unreachable")

	_, err = f.shop.CreateOrder(as(u), "tok_visa")
	assertKind(t, apperr.KindPaymentGatewayError, err)

	orders, err := f.shop.Orders(as(u))
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestCreateOrderRejections(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "buyer@example.com", access.PermUser)

	_, err := f.shop.CreateOrder(context.Background(), "tok_visa")
	assertKind(t, apperr.KindUnauthenticated, err)

	_, err = f.shop.CreateOrder(as(u), "tok_visa")
	assertKind(t, apperr.KindValidation, err)

	it := f.item(t, u, "Hat", 1000)
	_, err = f.shop.AddToCart(as(u), it.ID)
	require.NoError(t, err)
	_, err = f.shop.CreateOrder(as(u), "")
	assertKind(t, apperr.KindValidation, err)

	assert.Empty(t, f.gateway.requests)
}

func TestOrderVisibility(t *testing.T) {
	f := newFixture(t)
	buyer := f.user(t, "buyer@example.com", access.PermUser)
	other := f.user(t, "other@example.com", access.PermUser)
	admin := f.user(t, "admin@example.com", access.PermAdmin)
	it := f.item(t, buyer, "Hat", 1000)
	_, err := f.shop.AddToCart(as(buyer), it.ID)
	require.NoError(t, err)
	order, err := f.shop.CreateOrder(as(buyer), "tok_visa")
	require.NoError(t, err)

	_, err = f.shop.Order(as(other), order.ID)
	assertKind(t, apperr.KindForbidden, err)

	got, err := f.shop.Order(as(admin), order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)

	_, err = f.shop.Order(as(buyer), "missing")
	assertKind(t, apperr.KindNotFound, err)

	_, err = f.shop.Order(context.Background(), order.ID)
	assertKind(t, apperr.KindUnauthenticated, err)
}
