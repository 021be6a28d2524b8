package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/example/storefront/internal/access"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryDB(t *testing.T) {
	runDBSuite(t, func(t *testing.T) DB { return NewMemoryDB() })
}

func TestSQLiteDB(t *testing.T) {
	runDBSuite(t, func(t *testing.T) DB {
		db, err := NewSQLiteDB(":memory:")
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })
		return db
	})
}

// runDBSuite exercises the DB contract shared by every adapter.
func runDBSuite(t *testing.T, newDB func(t *testing.T) DB) {
	t.Run("users", func(t *testing.T) { testUsers(t, newDB(t)) })
	t.Run("reset tokens", func(t *testing.T) { testResetTokens(t, newDB(t)) })
	t.Run("items", func(t *testing.T) { testItems(t, newDB(t)) })
	t.Run("cart", func(t *testing.T) { testCart(t, newDB(t)) })
	t.Run("concurrent add to cart", func(t *testing.T) { testConcurrentAddToCart(t, newDB(t)) })
	t.Run("orders", func(t *testing.T) { testOrders(t, newDB(t)) })
}

func seedUser(t *testing.T, db DB, email string, perms ...access.Permission) *User {
	t.Helper()
	u := &User{Email: email, Name: email, Password: "hash", Permissions: access.NewSet(perms...)}
	require.NoError(t, db.CreateUser(context.Background(), u))
	return u
}

func seedItem(t *testing.T, db DB, owner, title string, price int64, created time.Time) *Item {
	t.Helper()
	it := &Item{Title: title, Description: title + " description", Price: price, OwnerID: owner, CreatedAt: created}
	require.NoError(t, db.CreateItem(context.Background(), it))
	return it
}

func testUsers(t *testing.T, db DB) {
	ctx := context.Background()
	u := seedUser(t, db, "wes@example.com", access.PermUser)
	require.NotEmpty(t, u.ID)

	err := db.CreateUser(ctx, &User{Email: "wes@example.com", Name: "dup", Password: "x"})
	assert.ErrorIs(t, err, ErrDuplicate)

	got, err := db.UserByEmail(ctx, "wes@example.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, u.ID, got.ID)
	assert.True(t, got.Permissions.Has(access.PermUser))

	missing, err := db.UserByID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	updated, err := db.UpdatePermissions(ctx, u.ID, access.NewSet(access.PermAdmin, access.PermItemDelete))
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, []string{"ADMIN", "ITEMDELETE"}, updated.Permissions.Strings())

	none, err := db.UpdatePermissions(ctx, "nope", access.NewSet(access.PermAdmin))
	require.NoError(t, err)
	assert.Nil(t, none)

	seedUser(t, db, "amy@example.com")
	users, err := db.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "amy@example.com", users[0].Email)
}

func testResetTokens(t *testing.T, db DB) {
	ctx := context.Background()
	u := seedUser(t, db, "reset@example.com")
	now := time.Now()

	ok, err := db.SetResetToken(ctx, "unknown@example.com", "tok", now.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = db.SetResetToken(ctx, u.Email, "tok", now.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := db.UserByResetToken(ctx, "tok", now)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, u.ID, got.ID)

	expired, err := db.UserByResetToken(ctx, "tok", now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Nil(t, expired)

	ok, err = db.ResetPassword(ctx, u.ID, "wrong", "newhash")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = db.ResetPassword(ctx, u.ID, "tok", "newhash")
	require.NoError(t, err)
	assert.True(t, ok)

	// single use
	ok, err = db.ResetPassword(ctx, u.ID, "tok", "other")
	require.NoError(t, err)
	assert.False(t, ok)

	after, err := db.UserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "newhash", after.Password)
	assert.Empty(t, after.ResetToken)
	assert.True(t, after.ResetTokenExpiry.IsZero())
}

func testItems(t *testing.T, db DB) {
	ctx := context.Background()
	owner := seedUser(t, db, "owner@example.com")
	base := time.Now().Add(-time.Hour).Truncate(time.Millisecond)
	shoes := seedItem(t, db, owner.ID, "Shoes", 5000, base)
	hat := seedItem(t, db, owner.ID, "Hat", 1500, base.Add(time.Minute))
	seedItem(t, db, owner.ID, "Belt", 2500, base.Add(2*time.Minute))

	items, err := db.ListItems(ctx, ItemQuery{})
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "Belt", items[0].Title)

	items, err = db.ListItems(ctx, ItemQuery{OrderBy: OrderPriceAsc, Skip: 1, First: 1})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Belt", items[0].Title)

	items, err = db.ListItems(ctx, ItemQuery{OrderBy: OrderTitleAsc, Skip: 2})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Shoes", items[0].Title)

	items, err = db.ListItems(ctx, ItemQuery{Search: "HAT"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, hat.ID, items[0].ID)

	n, err := db.CountItems(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	n, err = db.CountItems(ctx, "description")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	title := "Running Shoes"
	price := int64(6000)
	updated, err := db.UpdateItem(ctx, shoes.ID, ItemPatch{Title: &title, Price: &price})
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, "Running Shoes", updated.Title)
	assert.Equal(t, int64(6000), updated.Price)
	assert.Equal(t, "Shoes description", updated.Description)
	assert.Equal(t, owner.ID, updated.OwnerID)

	missing, err := db.UpdateItem(ctx, "nope", ItemPatch{Title: &title})
	require.NoError(t, err)
	assert.Nil(t, missing)

	deleted, err := db.DeleteItem(ctx, hat.ID)
	require.NoError(t, err)
	require.NotNil(t, deleted)
	assert.Equal(t, "Hat", deleted.Title)

	again, err := db.DeleteItem(ctx, hat.ID)
	require.NoError(t, err)
	assert.Nil(t, again)

	gone, err := db.ItemByID(ctx, hat.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func testCart(t *testing.T, db DB) {
	ctx := context.Background()
	u := seedUser(t, db, "cart@example.com")
	other := seedUser(t, db, "other@example.com")
	it := seedItem(t, db, u.ID, "Mug", 1200, time.Now())
	it2 := seedItem(t, db, u.ID, "Tee", 2000, time.Now())

	first, err := db.AddCartItem(ctx, u.ID, it.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Quantity)

	second, err := db.AddCartItem(ctx, u.ID, it.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 2, second.Quantity)

	_, err = db.AddCartItem(ctx, u.ID, it2.ID)
	require.NoError(t, err)

	lines, err := db.CartItems(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	for _, l := range lines {
		require.NotNil(t, l.Item)
		assert.Equal(t, l.ItemID, l.Item.ID)
	}

	got, err := db.CartItemByID(ctx, first.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, u.ID, got.UserID)

	ok, err := db.DeleteCartItem(ctx, first.ID, other.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = db.DeleteCartItem(ctx, first.ID, u.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	// deleting a catalog item drops the cart lines that point at it
	_, err = db.DeleteItem(ctx, it2.ID)
	require.NoError(t, err)
	lines, err = db.CartItems(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func testConcurrentAddToCart(t *testing.T, db DB) {
	ctx := context.Background()
	u := seedUser(t, db, "race@example.com")
	it := seedItem(t, db, u.ID, "Sticker", 100, time.Now())

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := db.AddCartItem(ctx, u.ID, it.ID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	lines, err := db.CartItems(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, n, lines[0].Quantity)
}

func testOrders(t *testing.T, db DB) {
	ctx := context.Background()
	u := seedUser(t, db, "buyer@example.com")
	it := seedItem(t, db, u.ID, "Lamp", 1000, time.Now())
	line, err := db.AddCartItem(ctx, u.ID, it.ID)
	require.NoError(t, err)

	o := &Order{
		UserID:   u.ID,
		Total:    1000,
		ChargeID: "ch_123",
		Items:    []OrderItem{{ItemID: it.ID, Title: it.Title, Price: it.Price, Quantity: 1}},
	}
	require.NoError(t, db.CreateOrder(ctx, o, []string{line.ID}))
	require.NotEmpty(t, o.ID)

	lines, err := db.CartItems(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, lines)

	got, err := db.OrderByID(ctx, o.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(1000), got.Total)
	assert.Equal(t, "ch_123", got.ChargeID)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "Lamp", got.Items[0].Title)
	assert.Equal(t, o.ID, got.Items[0].OrderID)

	orders, err := db.OrdersByUser(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	require.Len(t, orders[0].Items, 1)

	missing, err := db.OrderByID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
