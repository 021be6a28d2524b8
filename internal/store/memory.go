package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/example/storefront/internal/access"
	"github.com/google/uuid"
)

// MemDB keeps everything in process memory. One mutex serializes all access,
// which makes every check-then-write inside a method atomic.
type MemDB struct {
	mu        sync.Mutex
	users     map[string]*User
	items     map[string]*Item
	cartItems map[string]*CartItem
	orders    map[string]*Order
}

func NewMemoryDB() *MemDB {
	return &MemDB{
		users:     map[string]*User{},
		items:     map[string]*Item{},
		cartItems: map[string]*CartItem{},
		orders:    map[string]*Order{},
	}
}

func ensureID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}

func ensureTime(t *time.Time) {
	if t.IsZero() {
		*t = time.Now()
	}
}

func copyUser(u *User) *User {
	c := *u
	c.Permissions = access.NewSet(u.Permissions.Slice()...)
	return &c
}

func copyItem(it *Item) *Item {
	c := *it
	return &c
}

func copyOrder(o *Order) *Order {
	c := *o
	c.Items = append([]OrderItem(nil), o.Items...)
	return &c
}

func (m *MemDB) CreateUser(ctx context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return ErrDuplicate
		}
	}
	ensureID(&u.ID)
	ensureTime(&u.CreatedAt)
	if u.Permissions == nil {
		u.Permissions = access.NewSet()
	}
	m.users[u.ID] = copyUser(u)
	return nil
}

func (m *MemDB) UserByID(ctx context.Context, id string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		return copyUser(u), nil
	}
	return nil, nil
}

func (m *MemDB) UserByEmail(ctx context.Context, email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return copyUser(u), nil
		}
	}
	return nil, nil
}

func (m *MemDB) ListUsers(ctx context.Context) ([]*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, copyUser(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (m *MemDB) UpdatePermissions(ctx context.Context, userID string, perms access.Set) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return nil, nil
	}
	u.Permissions = access.NewSet(perms.Slice()...)
	return copyUser(u), nil
}

func (m *MemDB) SetResetToken(ctx context.Context, email, token string, expiry time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			u.ResetToken = token
			u.ResetTokenExpiry = expiry
			return true, nil
		}
	}
	return false, nil
}

func (m *MemDB) UserByResetToken(ctx context.Context, token string, now time.Time) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if token == "" {
		return nil, nil
	}
	for _, u := range m.users {
		if u.ResetToken == token && !u.ResetTokenExpiry.Before(now) {
			return copyUser(u), nil
		}
	}
	return nil, nil
}

func (m *MemDB) ResetPassword(ctx context.Context, userID, token, passwordHash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok || token == "" || u.ResetToken != token {
		return false, nil
	}
	u.Password = passwordHash
	u.ResetToken = ""
	u.ResetTokenExpiry = time.Time{}
	return true, nil
}

func (m *MemDB) CreateItem(ctx context.Context, it *Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ensureID(&it.ID)
	ensureTime(&it.CreatedAt)
	m.items[it.ID] = copyItem(it)
	return nil
}

func (m *MemDB) ItemByID(ctx context.Context, id string) (*Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if it, ok := m.items[id]; ok {
		return copyItem(it), nil
	}
	return nil, nil
}

func matchesSearch(it *Item, search string) bool {
	if search == "" {
		return true
	}
	s := strings.ToLower(search)
	return strings.Contains(strings.ToLower(it.Title), s) || strings.Contains(strings.ToLower(it.Description), s)
}

func itemLess(orderBy string) func(a, b *Item) bool {
	tie := func(a, b *Item) bool { return a.ID < b.ID }
	switch orderBy {
	case OrderCreatedAsc:
		return func(a, b *Item) bool {
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return tie(a, b)
		}
	case OrderPriceAsc, OrderPriceDesc:
		desc := orderBy == OrderPriceDesc
		return func(a, b *Item) bool {
			if a.Price != b.Price {
				return (a.Price < b.Price) != desc
			}
			return tie(a, b)
		}
	case OrderTitleAsc, OrderTitleDesc:
		desc := orderBy == OrderTitleDesc
		return func(a, b *Item) bool {
			if a.Title != b.Title {
				return (a.Title < b.Title) != desc
			}
			return tie(a, b)
		}
	default:
		return func(a, b *Item) bool {
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
			return tie(a, b)
		}
	}
}

func (m *MemDB) ListItems(ctx context.Context, q ItemQuery) ([]*Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []*Item
	for _, it := range m.items {
		if matchesSearch(it, q.Search) {
			all = append(all, copyItem(it))
		}
	}
	less := itemLess(q.OrderBy)
	sort.Slice(all, func(i, j int) bool { return less(all[i], all[j]) })
	if q.Skip > 0 {
		if q.Skip >= len(all) {
			return []*Item{}, nil
		}
		all = all[q.Skip:]
	}
	if q.First > 0 && q.First < len(all) {
		all = all[:q.First]
	}
	return all, nil
}

func (m *MemDB) CountItems(ctx context.Context, search string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, it := range m.items {
		if matchesSearch(it, search) {
			n++
		}
	}
	return n, nil
}

func (m *MemDB) UpdateItem(ctx context.Context, id string, patch ItemPatch) (*Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok {
		return nil, nil
	}
	patch.apply(it)
	return copyItem(it), nil
}

func (m *MemDB) DeleteItem(ctx context.Context, id string) (*Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok {
		return nil, nil
	}
	delete(m.items, id)
	for cid, c := range m.cartItems {
		if c.ItemID == id {
			delete(m.cartItems, cid)
		}
	}
	return it, nil
}

func (m *MemDB) AddCartItem(ctx context.Context, userID, itemID string) (*CartItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.cartItems {
		if c.UserID == userID && c.ItemID == itemID {
			c.Quantity++
			cc := *c
			return &cc, nil
		}
	}
	c := &CartItem{ID: uuid.NewString(), UserID: userID, ItemID: itemID, Quantity: 1, CreatedAt: time.Now()}
	m.cartItems[c.ID] = c
	cc := *c
	return &cc, nil
}

func (m *MemDB) CartItemByID(ctx context.Context, id string) (*CartItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.cartItems[id]; ok {
		cc := *c
		return &cc, nil
	}
	return nil, nil
}

func (m *MemDB) CartItems(ctx context.Context, userID string) ([]*CartItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*CartItem
	for _, c := range m.cartItems {
		if c.UserID != userID {
			continue
		}
		cc := *c
		if it, ok := m.items[c.ItemID]; ok {
			cc.Item = copyItem(it)
		}
		out = append(out, &cc)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MemDB) DeleteCartItem(ctx context.Context, id, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cartItems[id]
	if !ok || c.UserID != userID {
		return false, nil
	}
	delete(m.cartItems, id)
	return true, nil
}

func (m *MemDB) CreateOrder(ctx context.Context, o *Order, clearCartItemIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ensureID(&o.ID)
	ensureTime(&o.CreatedAt)
	for i := range o.Items {
		ensureID(&o.Items[i].ID)
		o.Items[i].OrderID = o.ID
	}
	m.orders[o.ID] = copyOrder(o)
	for _, id := range clearCartItemIDs {
		if c, ok := m.cartItems[id]; ok && c.UserID == o.UserID {
			delete(m.cartItems, id)
		}
	}
	return nil
}

func (m *MemDB) OrderByID(ctx context.Context, id string) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.orders[id]; ok {
		return copyOrder(o), nil
	}
	return nil, nil
}

func (m *MemDB) OrdersByUser(ctx context.Context, userID string) ([]*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Order
	for _, o := range m.orders {
		if o.UserID == userID {
			out = append(out, copyOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// lifecycle helpers
func (m *MemDB) Ping(ctx context.Context) error { return nil }
func (m *MemDB) Close() error                   { return nil }
