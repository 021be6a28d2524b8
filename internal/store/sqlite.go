package store

import (
	"context"
	"database/sql"
	"errors"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLite DB
type SQLiteDB struct {
	*sqlDB
	path string
}

func NewSQLiteDB(path string) (*SQLiteDB, error) {
	d, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// a single connection serializes writers and keeps the foreign_keys pragma
	d.SetMaxOpenConns(1)
	s := &SQLiteDB{
		sqlDB: &sqlDB{
			db: d,
			upsertCart: `INSERT INTO cart_items(id,user_id,item_id,quantity,created_at) VALUES(?,?,?,1,?)
				ON CONFLICT(user_id,item_id) DO UPDATE SET quantity = quantity + 1
				RETURNING id,user_id,item_id,quantity,created_at`,
			isUnique: isSQLiteUnique,
		},
		path: path,
	}
	if err := s.Init(context.Background()); err != nil {
		d.Close()
		return nil, err
	}
	return s, nil
}

func isSQLiteUnique(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}

func (s *SQLiteDB) Init(ctx context.Context) error {
	queries := []string{
		`PRAGMA foreign_keys = ON;`,
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			password TEXT NOT NULL,
			permissions TEXT NOT NULL DEFAULT '',
			reset_token TEXT,
			reset_token_expiry INTEGER,
			created_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS items (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			image TEXT NOT NULL DEFAULT '',
			large_image TEXT NOT NULL DEFAULT '',
			price INTEGER NOT NULL CHECK (price >= 0),
			owner_id TEXT NOT NULL REFERENCES users(id),
			created_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS cart_items (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			item_id TEXT NOT NULL REFERENCES items(id) ON DELETE CASCADE,
			quantity INTEGER NOT NULL CHECK (quantity >= 1),
			created_at INTEGER NOT NULL,
			UNIQUE (user_id, item_id)
		);`,
		`CREATE TABLE IF NOT EXISTS orders (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id),
			total INTEGER NOT NULL,
			charge_id TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS order_items (
			id TEXT PRIMARY KEY,
			order_id TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
			item_id TEXT NOT NULL,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			image TEXT NOT NULL DEFAULT '',
			large_image TEXT NOT NULL DEFAULT '',
			price INTEGER NOT NULL,
			quantity INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS orders_user_id_idx ON orders(user_id);`,
		`CREATE INDEX IF NOT EXISTS order_items_order_id_idx ON order_items(order_id);`,
	}
	for _, q := range queries {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}
