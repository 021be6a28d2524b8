package shop

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/storefront/internal/access"
	"github.com/example/storefront/internal/apperr"
	"github.com/example/storefront/internal/store"
)

func TestCreateItem(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner@example.com", access.PermUser)

	_, err := f.shop.CreateItem(context.Background(), ItemInput{Title: "Hat", Price: 100})
	assertKind(t, apperr.KindUnauthenticated, err)

	_, err = f.shop.CreateItem(as(owner), ItemInput{Title: "  ", Price: 100})
	assertKind(t, apperr.KindValidation, err)

	_, err = f.shop.CreateItem(as(owner), ItemInput{Title: "Hat", Price: -1})
	assertKind(t, apperr.KindValidation, err)

	it, err := f.shop.CreateItem(as(owner), ItemInput{Title: " Hat ", Price: 100})
	require.NoError(t, err)
	assert.Equal(t, "Hat", it.Title)
	assert.Equal(t, owner.ID, it.OwnerID)

	got, err := f.shop.Item(context.Background(), it.ID)
	require.NoError(t, err)
	assert.Equal(t, it.ID, got.ID)

	_, err = f.shop.Item(context.Background(), "missing")
	assertKind(t, apperr.KindNotFound, err)
}

func TestUpdateItemGuard(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner@example.com", access.PermUser)
	other := f.user(t, "other@example.com", access.PermUser)
	editor := f.user(t, "editor@example.com", access.PermUser, access.PermItemUpdate)
	it := f.item(t, owner, "Hat", 100)

	title := "Cap"
	_, err := f.shop.UpdateItem(as(other), ItemUpdate{ID: it.ID, Title: &title})
	assertKind(t, apperr.KindForbidden, err)

	updated, err := f.shop.UpdateItem(as(owner), ItemUpdate{ID: it.ID, Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "Cap", updated.Title)
	assert.Equal(t, int64(100), updated.Price)

	price := int64(250)
	updated, err = f.shop.UpdateItem(as(editor), ItemUpdate{ID: it.ID, Price: &price})
	require.NoError(t, err)
	assert.Equal(t, int64(250), updated.Price)
	assert.Equal(t, "Cap", updated.Title)

	negative := int64(-5)
	_, err = f.shop.UpdateItem(as(owner), ItemUpdate{ID: it.ID, Price: &negative})
	assertKind(t, apperr.KindValidation, err)

	_, err = f.shop.UpdateItem(as(owner), ItemUpdate{ID: "missing", Title: &title})
	assertKind(t, apperr.KindNotFound, err)
}

func TestDeleteItemGuard(t *testing.T) {
	tests := []struct {
		name  string
		perms []access.Permission
		owner bool
		kind  apperr.Kind
	}{
		{"owner", []access.Permission{access.PermUser}, true, ""},
		{"admin", []access.Permission{access.PermAdmin}, false, ""},
		{"item deleter", []access.Permission{access.PermItemDelete}, false, ""},
		{"item updater", []access.Permission{access.PermItemUpdate}, false, apperr.KindForbidden},
		{"plain user", []access.Permission{access.PermUser}, false, apperr.KindForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			owner := f.user(t, "owner@example.com", access.PermUser)
			it := f.item(t, owner, "Hat", 100)
			caller := owner
			if !tt.owner {
				caller = f.user(t, "caller@example.com", tt.perms...)
			}

			deleted, err := f.shop.DeleteItem(as(caller), it.ID)
			if tt.kind != "" {
				assertKind(t, tt.kind, err)
				got, err := f.db.ItemByID(context.Background(), it.ID)
				require.NoError(t, err)
				assert.NotNil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, it.ID, deleted.ID)

			_, err = f.shop.DeleteItem(as(caller), it.ID)
			assertKind(t, apperr.KindNotFound, err)
		})
	}
}

func TestDeleteItemAnonymous(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner@example.com", access.PermUser)
	it := f.item(t, owner, "Hat", 100)

	_, err := f.shop.DeleteItem(context.Background(), it.ID)
	assertKind(t, apperr.KindUnauthenticated, err)
}

func TestItemsPaging(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner@example.com", access.PermUser)
	for i := 0; i < 5; i++ {
		f.item(t, owner, fmt.Sprintf("Shoe %d", i), int64(100*(i+1)))
	}
	f.item(t, owner, "Belt", 50)

	items, err := f.shop.Items(context.Background(), store.ItemQuery{Search: "shoe", First: 2, Skip: 1, OrderBy: store.OrderPriceAsc})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, int64(200), items[0].Price)
	assert.Equal(t, int64(300), items[1].Price)

	items, err = f.shop.Items(context.Background(), store.ItemQuery{Skip: -3, First: 10000})
	require.NoError(t, err)
	assert.Len(t, items, 6)

	n, err := f.shop.ItemsCount(context.Background(), "shoe")
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}
