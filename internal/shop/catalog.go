package shop

import (
	"context"
	"fmt"
	"strings"

	"github.com/example/storefront/internal/access"
	"github.com/example/storefront/internal/apperr"
	"github.com/example/storefront/internal/store"
)

// MaxPageSize caps a single items listing.
const MaxPageSize = 100

type ItemInput struct {
	Title       string
	Description string
	Image       string
	LargeImage  string
	Price       int64
}

// ItemUpdate is a partial update. ID selects the item and is never written.
type ItemUpdate struct {
	ID          string
	Title       *string
	Description *string
	Image       *string
	LargeImage  *string
	Price       *int64
}

func (u ItemUpdate) patch() store.ItemPatch {
	return store.ItemPatch{
		Title:       u.Title,
		Description: u.Description,
		Image:       u.Image,
		LargeImage:  u.LargeImage,
		Price:       u.Price,
	}
}

func validateItem(title string, price int64) error {
	if strings.TrimSpace(title) == "" {
		return apperr.Validation("title is required")
	}
	if price < 0 {
		return apperr.Validation("price cannot be negative")
	}
	return nil
}

// CreateItem stores a new catalog item owned by the caller.
func (s *Shop) CreateItem(ctx context.Context, in ItemInput) (*store.Item, error) {
	userID, err := access.RequireAuthenticated(principal(ctx))
	if err != nil {
		return nil, err
	}
	if err := validateItem(in.Title, in.Price); err != nil {
		return nil, err
	}
	it := &store.Item{
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Image:       in.Image,
		LargeImage:  in.LargeImage,
		Price:       in.Price,
		OwnerID:     userID,
		CreatedAt:   s.now(),
	}
	if err := s.db.CreateItem(ctx, it); err != nil {
		return nil, fmt.Errorf("create item: %w", err)
	}
	return it, nil
}

// UpdateItem applies a partial update. Like DeleteItem it is limited to the
// owner or holders of ADMIN / ITEMUPDATE.
func (s *Shop) UpdateItem(ctx context.Context, in ItemUpdate) (*store.Item, error) {
	p := principal(ctx)
	if _, err := access.RequireAuthenticated(p); err != nil {
		return nil, err
	}
	it, err := s.db.ItemByID(ctx, in.ID)
	if err != nil {
		return nil, fmt.Errorf("load item: %w", err)
	}
	if it == nil {
		return nil, apperr.NotFound("no item found for id " + in.ID)
	}
	if err := access.RequireOwnerOrPermission(p, it.OwnerID, access.PermAdmin, access.PermItemUpdate); err != nil {
		return nil, err
	}

	patch := in.patch()
	if patch.Title != nil {
		t := strings.TrimSpace(*patch.Title)
		patch.Title = &t
	}
	title, price := it.Title, it.Price
	if patch.Title != nil {
		title = *patch.Title
	}
	if patch.Price != nil {
		price = *patch.Price
	}
	if err := validateItem(title, price); err != nil {
		return nil, err
	}

	updated, err := s.db.UpdateItem(ctx, in.ID, patch)
	if err != nil {
		return nil, fmt.Errorf("update item: %w", err)
	}
	if updated == nil {
		return nil, apperr.Conflict("item was deleted while updating")
	}
	return updated, nil
}

// DeleteItem removes an item the caller owns or may delete.
func (s *Shop) DeleteItem(ctx context.Context, id string) (*store.Item, error) {
	p := principal(ctx)
	if _, err := access.RequireAuthenticated(p); err != nil {
		return nil, err
	}
	it, err := s.db.ItemByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load item: %w", err)
	}
	if it == nil {
		return nil, apperr.NotFound("no item found for id " + id)
	}
	if err := access.RequireOwnerOrPermission(p, it.OwnerID, access.PermAdmin, access.PermItemDelete); err != nil {
		return nil, err
	}
	// the owner never changes, so the only race left is a second delete
	deleted, err := s.db.DeleteItem(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("delete item: %w", err)
	}
	if deleted == nil {
		return nil, apperr.Conflict("item was already deleted")
	}
	return deleted, nil
}

func (s *Shop) Item(ctx context.Context, id string) (*store.Item, error) {
	it, err := s.db.ItemByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load item: %w", err)
	}
	if it == nil {
		return nil, apperr.NotFound("no item found for id " + id)
	}
	return it, nil
}

func (s *Shop) Items(ctx context.Context, q store.ItemQuery) ([]*store.Item, error) {
	if q.Skip < 0 {
		q.Skip = 0
	}
	if q.First <= 0 || q.First > MaxPageSize {
		q.First = MaxPageSize
	}
	items, err := s.db.ListItems(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return items, nil
}

// ItemsCount backs pagination: the number of items matching search.
func (s *Shop) ItemsCount(ctx context.Context, search string) (int, error) {
	n, err := s.db.CountItems(ctx, search)
	if err != nil {
		return 0, fmt.Errorf("count items: %w", err)
	}
	return n, nil
}
