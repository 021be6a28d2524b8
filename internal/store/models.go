package store

import (
	"strings"
	"time"

	"github.com/example/storefront/internal/access"
)

// User represents a shop account
type User struct {
	ID          string
	Email       string
	Name        string
	Password    string
	Permissions access.Set
	// ResetToken and ResetTokenExpiry are set while a password reset is pending
	ResetToken       string
	ResetTokenExpiry time.Time
	CreatedAt        time.Time
}

// Item is a catalog entry. Price is in minor currency units.
type Item struct {
	ID          string
	Title       string
	Description string
	Image       string
	LargeImage  string
	Price       int64
	OwnerID     string
	CreatedAt   time.Time
}

// ItemPatch carries the fields of a partial item update; nil means unchanged.
type ItemPatch struct {
	Title       *string
	Description *string
	Image       *string
	LargeImage  *string
	Price       *int64
}

func (p ItemPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Image == nil && p.LargeImage == nil && p.Price == nil
}

func (p ItemPatch) apply(it *Item) {
	if p.Title != nil {
		it.Title = *p.Title
	}
	if p.Description != nil {
		it.Description = *p.Description
	}
	if p.Image != nil {
		it.Image = *p.Image
	}
	if p.LargeImage != nil {
		it.LargeImage = *p.LargeImage
	}
	if p.Price != nil {
		it.Price = *p.Price
	}
}

// Item listing orders accepted by ListItems.
const (
	OrderCreatedDesc = "createdAt_DESC"
	OrderCreatedAsc  = "createdAt_ASC"
	OrderPriceAsc    = "price_ASC"
	OrderPriceDesc   = "price_DESC"
	OrderTitleAsc    = "title_ASC"
	OrderTitleDesc   = "title_DESC"
)

// ItemQuery filters and pages a catalog listing. First <= 0 means no limit.
type ItemQuery struct {
	Search  string
	Skip    int
	First   int
	OrderBy string
}

// CartItem is one line of a user's cart. Item is populated by CartItems.
type CartItem struct {
	ID        string
	UserID    string
	ItemID    string
	Quantity  int
	CreatedAt time.Time
	Item      *Item
}

// Order is an immutable record of a paid purchase.
type Order struct {
	ID        string
	UserID    string
	Total     int64
	ChargeID  string
	Items     []OrderItem
	CreatedAt time.Time
}

// OrderItem is a snapshot of a catalog item at purchase time.
type OrderItem struct {
	ID          string
	OrderID     string
	ItemID      string
	Title       string
	Description string
	Image       string
	LargeImage  string
	Price       int64
	Quantity    int
}

func encodePermissions(s access.Set) string {
	return strings.Join(s.Strings(), ",")
}

func decodePermissions(v string) access.Set {
	s := access.NewSet()
	for _, name := range strings.Split(v, ",") {
		if p, ok := access.ParsePermission(name); ok {
			s[p] = struct{}{}
		}
	}
	return s
}
