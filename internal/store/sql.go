package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/example/storefront/internal/access"
	"github.com/google/uuid"
)

// sqlDB implements DB over database/sql. Queries are written with '?'
// placeholders and rebound per dialect.
type sqlDB struct {
	db *sql.DB
	// numbered rewrites '?' to $1..$n
	numbered bool
	// upsertCart is the dialect's atomic add-to-cart statement
	upsertCart string
	// isUnique recognizes the driver's unique-violation error
	isUnique func(error) bool
}

func (s *sqlDB) bind(q string) string {
	if !s.numbered {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func millis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms) }

const userColumns = `id,email,name,password,permissions,reset_token,reset_token_expiry,created_at`

func scanUser(row scanner) (*User, error) {
	var u User
	var perms string
	var resetToken sql.NullString
	var resetExpiry sql.NullInt64
	var created int64
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Password, &perms, &resetToken, &resetExpiry, &created); err != nil {
		return nil, err
	}
	u.Permissions = decodePermissions(perms)
	u.ResetToken = resetToken.String
	if resetExpiry.Valid {
		u.ResetTokenExpiry = fromMillis(resetExpiry.Int64)
	}
	u.CreatedAt = fromMillis(created)
	return &u, nil
}

func (s *sqlDB) CreateUser(ctx context.Context, u *User) error {
	ensureID(&u.ID)
	ensureTime(&u.CreatedAt)
	if u.Permissions == nil {
		u.Permissions = access.NewSet()
	}
	_, err := s.db.ExecContext(ctx, s.bind(`INSERT INTO users(id,email,name,password,permissions,created_at) VALUES(?,?,?,?,?,?)`),
		u.ID, u.Email, u.Name, u.Password, encodePermissions(u.Permissions), millis(u.CreatedAt))
	if err != nil && s.isUnique(err) {
		return ErrDuplicate
	}
	return err
}

func (s *sqlDB) userWhere(ctx context.Context, where string, args ...interface{}) (*User, error) {
	row := s.db.QueryRowContext(ctx, s.bind(`SELECT `+userColumns+` FROM users WHERE `+where), args...)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return u, err
}

func (s *sqlDB) UserByID(ctx context.Context, id string) (*User, error) {
	return s.userWhere(ctx, `id = ?`, id)
}

func (s *sqlDB) UserByEmail(ctx context.Context, email string) (*User, error) {
	return s.userWhere(ctx, `email = ?`, email)
}

func (s *sqlDB) ListUsers(ctx context.Context) ([]*User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY email`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *sqlDB) UpdatePermissions(ctx context.Context, userID string, perms access.Set) (*User, error) {
	res, err := s.db.ExecContext(ctx, s.bind(`UPDATE users SET permissions = ? WHERE id = ?`), encodePermissions(perms), userID)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	return s.UserByID(ctx, userID)
}

func (s *sqlDB) SetResetToken(ctx context.Context, email, token string, expiry time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.bind(`UPDATE users SET reset_token = ?, reset_token_expiry = ? WHERE email = ?`), token, millis(expiry), email)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *sqlDB) UserByResetToken(ctx context.Context, token string, now time.Time) (*User, error) {
	if token == "" {
		return nil, nil
	}
	return s.userWhere(ctx, `reset_token = ? AND reset_token_expiry >= ?`, token, millis(now))
}

func (s *sqlDB) ResetPassword(ctx context.Context, userID, token, passwordHash string) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.bind(`UPDATE users SET password = ?, reset_token = NULL, reset_token_expiry = NULL WHERE id = ? AND reset_token = ?`),
		passwordHash, userID, token)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

const itemColumns = `id,title,description,image,large_image,price,owner_id,created_at`

func scanItem(row scanner) (*Item, error) {
	var it Item
	var created int64
	if err := row.Scan(&it.ID, &it.Title, &it.Description, &it.Image, &it.LargeImage, &it.Price, &it.OwnerID, &created); err != nil {
		return nil, err
	}
	it.CreatedAt = fromMillis(created)
	return &it, nil
}

func (s *sqlDB) CreateItem(ctx context.Context, it *Item) error {
	ensureID(&it.ID)
	ensureTime(&it.CreatedAt)
	_, err := s.db.ExecContext(ctx, s.bind(`INSERT INTO items(`+itemColumns+`) VALUES(?,?,?,?,?,?,?,?)`),
		it.ID, it.Title, it.Description, it.Image, it.LargeImage, it.Price, it.OwnerID, millis(it.CreatedAt))
	return err
}

func (s *sqlDB) ItemByID(ctx context.Context, id string) (*Item, error) {
	row := s.db.QueryRowContext(ctx, s.bind(`SELECT `+itemColumns+` FROM items WHERE id = ?`), id)
	it, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return it, err
}

var itemOrderClauses = map[string]string{
	OrderCreatedDesc: "created_at DESC, id",
	OrderCreatedAsc:  "created_at ASC, id",
	OrderPriceAsc:    "price ASC, id",
	OrderPriceDesc:   "price DESC, id",
	OrderTitleAsc:    "title ASC, id",
	OrderTitleDesc:   "title DESC, id",
}

func searchClause(search string) (string, []interface{}) {
	if search == "" {
		return "", nil
	}
	pattern := "%" + strings.ToLower(search) + "%"
	return ` WHERE (LOWER(title) LIKE ? OR LOWER(description) LIKE ?)`, []interface{}{pattern, pattern}
}

func (s *sqlDB) ListItems(ctx context.Context, q ItemQuery) ([]*Item, error) {
	where, args := searchClause(q.Search)
	order, ok := itemOrderClauses[q.OrderBy]
	if !ok {
		order = itemOrderClauses[OrderCreatedDesc]
	}
	query := `SELECT ` + itemColumns + ` FROM items` + where + ` ORDER BY ` + order
	if q.First > 0 {
		query += ` LIMIT ?`
		args = append(args, q.First)
	} else if q.Skip > 0 {
		// both dialects need a LIMIT before OFFSET is meaningful
		query += ` LIMIT ?`
		args = append(args, int64(1<<62))
	}
	if q.Skip > 0 {
		query += ` OFFSET ?`
		args = append(args, q.Skip)
	}
	rows, err := s.db.QueryContext(ctx, s.bind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []*Item{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *sqlDB) CountItems(ctx context.Context, search string) (int, error) {
	where, args := searchClause(search)
	var n int
	err := s.db.QueryRowContext(ctx, s.bind(`SELECT COUNT(*) FROM items`+where), args...).Scan(&n)
	return n, err
}

func (s *sqlDB) UpdateItem(ctx context.Context, id string, patch ItemPatch) (*Item, error) {
	if patch.Empty() {
		return s.ItemByID(ctx, id)
	}
	var sets []string
	var args []interface{}
	add := func(col string, v interface{}) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if patch.Title != nil {
		add("title", *patch.Title)
	}
	if patch.Description != nil {
		add("description", *patch.Description)
	}
	if patch.Image != nil {
		add("image", *patch.Image)
	}
	if patch.LargeImage != nil {
		add("large_image", *patch.LargeImage)
	}
	if patch.Price != nil {
		add("price", *patch.Price)
	}
	args = append(args, id)
	res, err := s.db.ExecContext(ctx, s.bind(`UPDATE items SET `+strings.Join(sets, ", ")+` WHERE id = ?`), args...)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	return s.ItemByID(ctx, id)
}

func (s *sqlDB) DeleteItem(ctx context.Context, id string) (*Item, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, s.bind(`SELECT `+itemColumns+` FROM items WHERE id = ?`), id)
	it, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, s.bind(`DELETE FROM cart_items WHERE item_id = ?`), id); err != nil {
		return nil, err
	}
	res, err := tx.ExecContext(ctx, s.bind(`DELETE FROM items WHERE id = ?`), id)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	return it, tx.Commit()
}

const cartColumns = `c.id,c.user_id,c.item_id,c.quantity,c.created_at`

func scanCartItem(row scanner, extra ...interface{}) (*CartItem, error) {
	var c CartItem
	var created int64
	dest := append([]interface{}{&c.ID, &c.UserID, &c.ItemID, &c.Quantity, &created}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	c.CreatedAt = fromMillis(created)
	return &c, nil
}

func (s *sqlDB) AddCartItem(ctx context.Context, userID, itemID string) (*CartItem, error) {
	row := s.db.QueryRowContext(ctx, s.bind(s.upsertCart), uuid.NewString(), userID, itemID, millis(time.Now()))
	return scanCartItem(row)
}

func (s *sqlDB) CartItemByID(ctx context.Context, id string) (*CartItem, error) {
	row := s.db.QueryRowContext(ctx, s.bind(`SELECT `+cartColumns+` FROM cart_items c WHERE c.id = ?`), id)
	c, err := scanCartItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

func (s *sqlDB) CartItems(ctx context.Context, userID string) ([]*CartItem, error) {
	rows, err := s.db.QueryContext(ctx, s.bind(`SELECT `+cartColumns+`,
		i.id,i.title,i.description,i.image,i.large_image,i.price,i.owner_id,i.created_at
		FROM cart_items c JOIN items i ON i.id = c.item_id
		WHERE c.user_id = ? ORDER BY c.created_at, c.id`), userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*CartItem
	for rows.Next() {
		var it Item
		var itemCreated int64
		c, err := scanCartItem(rows, &it.ID, &it.Title, &it.Description, &it.Image, &it.LargeImage, &it.Price, &it.OwnerID, &itemCreated)
		if err != nil {
			return nil, err
		}
		it.CreatedAt = fromMillis(itemCreated)
		c.Item = &it
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *sqlDB) DeleteCartItem(ctx context.Context, id, userID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.bind(`DELETE FROM cart_items WHERE id = ? AND user_id = ?`), id, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *sqlDB) CreateOrder(ctx context.Context, o *Order, clearCartItemIDs []string) error {
	ensureID(&o.ID)
	ensureTime(&o.CreatedAt)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.bind(`INSERT INTO orders(id,user_id,total,charge_id,created_at) VALUES(?,?,?,?,?)`),
		o.ID, o.UserID, o.Total, o.ChargeID, millis(o.CreatedAt)); err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	for i := range o.Items {
		oi := &o.Items[i]
		ensureID(&oi.ID)
		oi.OrderID = o.ID
		if _, err := tx.ExecContext(ctx, s.bind(`INSERT INTO order_items(id,order_id,item_id,title,description,image,large_image,price,quantity) VALUES(?,?,?,?,?,?,?,?,?)`),
			oi.ID, oi.OrderID, oi.ItemID, oi.Title, oi.Description, oi.Image, oi.LargeImage, oi.Price, oi.Quantity); err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}
	for _, id := range clearCartItemIDs {
		if _, err := tx.ExecContext(ctx, s.bind(`DELETE FROM cart_items WHERE id = ? AND user_id = ?`), id, o.UserID); err != nil {
			return fmt.Errorf("clear cart: %w", err)
		}
	}
	return tx.Commit()
}

const orderColumns = `id,user_id,total,charge_id,created_at`

func scanOrder(row scanner) (*Order, error) {
	var o Order
	var created int64
	if err := row.Scan(&o.ID, &o.UserID, &o.Total, &o.ChargeID, &created); err != nil {
		return nil, err
	}
	o.CreatedAt = fromMillis(created)
	return &o, nil
}

func (s *sqlDB) loadOrderItems(ctx context.Context, o *Order) error {
	rows, err := s.db.QueryContext(ctx, s.bind(`SELECT id,order_id,item_id,title,description,image,large_image,price,quantity FROM order_items WHERE order_id = ? ORDER BY title, id`), o.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	o.Items = nil
	for rows.Next() {
		var oi OrderItem
		if err := rows.Scan(&oi.ID, &oi.OrderID, &oi.ItemID, &oi.Title, &oi.Description, &oi.Image, &oi.LargeImage, &oi.Price, &oi.Quantity); err != nil {
			return err
		}
		o.Items = append(o.Items, oi)
	}
	return rows.Err()
}

func (s *sqlDB) OrderByID(ctx context.Context, id string) (*Order, error) {
	row := s.db.QueryRowContext(ctx, s.bind(`SELECT `+orderColumns+` FROM orders WHERE id = ?`), id)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return o, s.loadOrderItems(ctx, o)
}

func (s *sqlDB) OrdersByUser(ctx context.Context, userID string) ([]*Order, error) {
	rows, err := s.db.QueryContext(ctx, s.bind(`SELECT `+orderColumns+` FROM orders WHERE user_id = ? ORDER BY created_at DESC, id`), userID)
	if err != nil {
		return nil, err
	}
	var orders []*Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		orders = append(orders, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, o := range orders {
		if err := s.loadOrderItems(ctx, o); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func (s *sqlDB) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }
func (s *sqlDB) Close() error                   { return s.db.Close() }
