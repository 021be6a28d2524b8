package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

type PostgresDB struct {
	*sqlDB
	dsn string
}

// NewPostgresDB connects to an already migrated database.
func NewPostgresDB(dsn string) (*PostgresDB, error) {
	d, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	p := &PostgresDB{
		sqlDB: &sqlDB{
			db:       d,
			numbered: true,
			upsertCart: `INSERT INTO cart_items(id,user_id,item_id,quantity,created_at) VALUES(?,?,?,1,?)
				ON CONFLICT (user_id,item_id) DO UPDATE SET quantity = cart_items.quantity + 1
				RETURNING id,user_id,item_id,quantity,created_at`,
			isUnique: isPostgresUnique,
		},
		dsn: dsn,
	}
	if err := p.Init(context.Background()); err != nil {
		d.Close()
		return nil, err
	}
	return p, nil
}

func isPostgresUnique(err error) bool {
	var pe *pq.Error
	return errors.As(err, &pe) && pe.Code == "23505"
}

// Init relies on migrations to create tables; it just verifies connectivity.
func (p *PostgresDB) Init(ctx context.Context) error {
	return p.db.PingContext(ctx)
}
