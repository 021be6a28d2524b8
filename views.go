package main

import (
	"time"

	"github.com/example/storefront/internal/store"
)

// JSON shapes returned to clients. Password hashes and reset tokens never
// leave the server.

type userView struct {
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
}

func newUserView(u *store.User) *userView {
	if u == nil {
		return nil
	}
	return &userView{ID: u.ID, Email: u.Email, Name: u.Name, Permissions: u.Permissions.Strings()}
}

type itemView struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Image       string    `json:"image,omitempty"`
	LargeImage  string    `json:"largeImage,omitempty"`
	Price       int64     `json:"price"`
	OwnerID     string    `json:"ownerId"`
	CreatedAt   time.Time `json:"createdAt"`
}

func newItemView(it *store.Item) *itemView {
	if it == nil {
		return nil
	}
	return &itemView{
		ID:          it.ID,
		Title:       it.Title,
		Description: it.Description,
		Image:       it.Image,
		LargeImage:  it.LargeImage,
		Price:       it.Price,
		OwnerID:     it.OwnerID,
		CreatedAt:   it.CreatedAt,
	}
}

type cartItemView struct {
	ID       string    `json:"id"`
	Quantity int       `json:"quantity"`
	Item     *itemView `json:"item"`
}

func newCartItemView(c *store.CartItem) cartItemView {
	return cartItemView{ID: c.ID, Quantity: c.Quantity, Item: newItemView(c.Item)}
}

type orderItemView struct {
	ID          string `json:"id"`
	ItemID      string `json:"itemId"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Image       string `json:"image,omitempty"`
	LargeImage  string `json:"largeImage,omitempty"`
	Price       int64  `json:"price"`
	Quantity    int    `json:"quantity"`
}

type orderView struct {
	ID        string          `json:"id"`
	Total     int64           `json:"total"`
	Charge    string          `json:"charge"`
	Items     []orderItemView `json:"items"`
	CreatedAt time.Time       `json:"createdAt"`
}

func newOrderView(o *store.Order) orderView {
	v := orderView{ID: o.ID, Total: o.Total, Charge: o.ChargeID, CreatedAt: o.CreatedAt, Items: []orderItemView{}}
	for _, oi := range o.Items {
		v.Items = append(v.Items, orderItemView{
			ID:          oi.ID,
			ItemID:      oi.ItemID,
			Title:       oi.Title,
			Description: oi.Description,
			Image:       oi.Image,
			LargeImage:  oi.LargeImage,
			Price:       oi.Price,
			Quantity:    oi.Quantity,
		})
	}
	return v
}
