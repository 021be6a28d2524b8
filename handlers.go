package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/example/storefront/internal/shop"
	"github.com/example/storefront/internal/store"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 1 << 20

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return false
	}
	return true
}

func (a *App) HandleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := a.DB.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]bool{"ready": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ready": true})
}

func queryInt(r *http.Request, key string) (int, bool) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, true
	}
	n, err := strconv.Atoi(v)
	return n, err == nil
}

func (a *App) HandleItems(w http.ResponseWriter, r *http.Request) {
	skip, ok := queryInt(r, "skip")
	first, ok2 := queryInt(r, "first")
	if !ok || !ok2 {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "skip and first must be integers")
		return
	}
	items, err := a.Shop.Items(r.Context(), store.ItemQuery{
		Search:  r.URL.Query().Get("search"),
		Skip:    skip,
		First:   first,
		OrderBy: r.URL.Query().Get("orderBy"),
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	out := make([]*itemView, 0, len(items))
	for _, it := range items {
		out = append(out, newItemView(it))
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *App) HandleItemsCount(w http.ResponseWriter, r *http.Request) {
	n, err := a.Shop.ItemsCount(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": n})
}

func (a *App) HandleItem(w http.ResponseWriter, r *http.Request) {
	it, err := a.Shop.Item(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newItemView(it))
}

func (a *App) HandleCreateItem(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Image       string `json:"image"`
		LargeImage  string `json:"largeImage"`
		Price       int64  `json:"price"`
	}
	if !decodeBody(w, r, &in) {
		return
	}
	it, err := a.Shop.CreateItem(r.Context(), shop.ItemInput{
		Title:       in.Title,
		Description: in.Description,
		Image:       in.Image,
		LargeImage:  in.LargeImage,
		Price:       in.Price,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newItemView(it))
}

// HandleUpdateItem takes the id from the path only; an id in the body is
// ignored.
func (a *App) HandleUpdateItem(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Title       *string `json:"title"`
		Description *string `json:"description"`
		Image       *string `json:"image"`
		LargeImage  *string `json:"largeImage"`
		Price       *int64  `json:"price"`
	}
	if !decodeBody(w, r, &in) {
		return
	}
	it, err := a.Shop.UpdateItem(r.Context(), shop.ItemUpdate{
		ID:          mux.Vars(r)["id"],
		Title:       in.Title,
		Description: in.Description,
		Image:       in.Image,
		LargeImage:  in.LargeImage,
		Price:       in.Price,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newItemView(it))
}

func (a *App) HandleDeleteItem(w http.ResponseWriter, r *http.Request) {
	it, err := a.Shop.DeleteItem(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newItemView(it))
}

func (a *App) HandleCart(w http.ResponseWriter, r *http.Request) {
	cart, err := a.Shop.Cart(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	items := make([]cartItemView, 0, len(cart.Items))
	for _, c := range cart.Items {
		items = append(items, newCartItemView(c))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items": items,
		"total": cart.Total,
	})
}

func (a *App) HandleAddToCart(w http.ResponseWriter, r *http.Request) {
	var in struct {
		ItemID string `json:"itemId"`
	}
	if !decodeBody(w, r, &in) {
		return
	}
	line, err := a.Shop.AddToCart(r.Context(), in.ItemID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newCartItemView(line))
}

func (a *App) HandleRemoveFromCart(w http.ResponseWriter, r *http.Request) {
	line, err := a.Shop.RemoveFromCart(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newCartItemView(line))
}

// HandleCreateOrder reads only the payment token. Totals and prices sent by
// the client are not part of the request shape and never reach the shop.
func (a *App) HandleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Token string `json:"token"`
	}
	if !decodeBody(w, r, &in) {
		return
	}
	o, err := a.Shop.CreateOrder(r.Context(), in.Token)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newOrderView(o))
}

func (a *App) HandleOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := a.Shop.Orders(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	out := make([]orderView, 0, len(orders))
	for _, o := range orders {
		out = append(out, newOrderView(o))
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *App) HandleOrder(w http.ResponseWriter, r *http.Request) {
	o, err := a.Shop.Order(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newOrderView(o))
}
