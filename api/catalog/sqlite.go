package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ValentinKolb/idemkv/lib/naturalkey"
	"github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS products (
	id          TEXT PRIMARY KEY,
	tenant_id   TEXT NOT NULL,
	sku         TEXT NOT NULL,
	name        TEXT NOT NULL,
	price_cents INTEGER NOT NULL,
	created_at  INTEGER NOT NULL,
	UNIQUE (tenant_id, sku)
)`

// SQLiteRepository stores products in a SQLite file.
// Unique violations are reported as naturalkey.ErrConflict.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository opens or creates the database at path.
func NewSQLiteRepository(path string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite allows a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode = WAL", "PRAGMA busy_timeout = 5000"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, sqliteSchema)
	return err
}

func (r *SQLiteRepository) Insert(ctx context.Context, p *Product) (*Product, error) {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO products (id, tenant_id, sku, name, price_cents, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.TenantID, p.SKU, p.Name, p.PriceCents, p.CreatedAt.UnixNano())
	if err != nil {
		var e sqlite3.Error
		if errors.As(err, &e) && e.ExtendedCode == sqlite3.ErrConstraintUnique {
			return nil, fmt.Errorf("sku %q: %w", p.SKU, naturalkey.ErrConflict)
		}
		return nil, err
	}
	return p, nil
}

func (r *SQLiteRepository) FindBySKU(ctx context.Context, tenant, sku string) (*Product, error) {
	return r.findOne(ctx, `SELECT id, tenant_id, sku, name, price_cents, created_at FROM products WHERE tenant_id = ? AND sku = ?`, tenant, sku)
}

func (r *SQLiteRepository) FindByID(ctx context.Context, tenant, id string) (*Product, error) {
	return r.findOne(ctx, `SELECT id, tenant_id, sku, name, price_cents, created_at FROM products WHERE tenant_id = ? AND id = ?`, tenant, id)
}

func (r *SQLiteRepository) findOne(ctx context.Context, query string, args ...any) (*Product, error) {
	var p Product
	var createdAt int64
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&p.ID, &p.TenantID, &p.SKU, &p.Name, &p.PriceCents, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.CreatedAt = time.Unix(0, createdAt).UTC()
	return &p, nil
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}
