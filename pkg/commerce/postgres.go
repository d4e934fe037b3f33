package commerce

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS fez_orders (
    id         BIGINT PRIMARY KEY,
    status     TEXT NOT NULL,
    doc        JSONB NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS fez_order_notes (
    id         BIGSERIAL PRIMARY KEY,
    order_id   BIGINT NOT NULL REFERENCES fez_orders(id) ON DELETE CASCADE,
    note       TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS fez_order_notes_order_id_idx ON fez_order_notes(order_id);
`

// PostgresStore keeps orders as JSONB documents with a separate notes table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres opens a pgx-backed database/sql pool and pings it.
func NewPostgres(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

// NewPostgresWithDB wraps an existing pool.
func NewPostgresWithDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the tables if they do not exist.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, postgresSchema); err != nil {
		return fmt.Errorf("migrating order schema: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close releases the pool.
func (p *PostgresStore) Close() error {
	return p.db.Close()
}

// Put inserts or replaces an order document.
func (p *PostgresStore) Put(ctx context.Context, order *Order) error {
	doc, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("encoding order %d: %w", order.ID, err)
	}
	_, err = p.db.ExecContext(ctx,
		`INSERT INTO fez_orders (id, status, doc) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status, doc = EXCLUDED.doc, updated_at = now()`,
		order.ID, string(order.Status), doc)
	return err
}

// GetOrder loads an order document.
func (p *PostgresStore) GetOrder(ctx context.Context, id int64) (*Order, error) {
	var doc []byte
	err := p.db.QueryRowContext(ctx, `SELECT doc FROM fez_orders WHERE id = $1`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrOrderNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	var o Order
	if err := json.Unmarshal(doc, &o); err != nil {
		return nil, fmt.Errorf("decoding order %d: %w", id, err)
	}
	return &o, nil
}

// SaveOrder replaces the document of an existing order.
func (p *PostgresStore) SaveOrder(ctx context.Context, order *Order) error {
	doc, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("encoding order %d: %w", order.ID, err)
	}
	res, err := p.db.ExecContext(ctx,
		`UPDATE fez_orders SET status = $2, doc = $3, updated_at = now() WHERE id = $1`,
		order.ID, string(order.Status), doc)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %d", ErrOrderNotFound, order.ID)
	}
	return nil
}

// AddNote appends a note row.
func (p *PostgresStore) AddNote(ctx context.Context, id int64, note string) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO fez_order_notes (order_id, note) SELECT id, $2 FROM fez_orders WHERE id = $1`,
		id, note)
	return err
}

// Notes returns the notes of an order, oldest first.
func (p *PostgresStore) Notes(ctx context.Context, id int64) ([]Note, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT note, created_at FROM fez_order_notes WHERE order_id = $1 ORDER BY id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Note{}
	for rows.Next() {
		var n Note
		if err := rows.Scan(&n.Text, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

var _ OrderStore = (*PostgresStore)(nil)
