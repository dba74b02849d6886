package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ProductsSKUConstraint is the unique constraint on (tenant_id, sku).
const ProductsSKUConstraint = "products_tenant_sku_key"

const postgresSchema = `
CREATE TABLE IF NOT EXISTS products (
	id          TEXT PRIMARY KEY,
	tenant_id   TEXT NOT NULL,
	sku         TEXT NOT NULL,
	name        TEXT NOT NULL,
	price_cents BIGINT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL,
	CONSTRAINT ` + ProductsSKUConstraint + ` UNIQUE (tenant_id, sku)
)`

// PostgresRepository stores products in Postgres. Unique violations surface as *pgconn.PgError.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository connects to dsn.
func NewPostgresRepository(ctx context.Context, dsn string) (*PostgresRepository, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return &PostgresRepository{pool: pool}, nil
}

func (r *PostgresRepository) Migrate(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, postgresSchema)
	return err
}

func (r *PostgresRepository) Insert(ctx context.Context, p *Product) (*Product, error) {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO products (id, tenant_id, sku, name, price_cents, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		p.ID, p.TenantID, p.SKU, p.Name, p.PriceCents, p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *PostgresRepository) FindBySKU(ctx context.Context, tenant, sku string) (*Product, error) {
	return r.findOne(ctx, `SELECT id, tenant_id, sku, name, price_cents, created_at FROM products WHERE tenant_id = $1 AND sku = $2`, tenant, sku)
}

func (r *PostgresRepository) FindByID(ctx context.Context, tenant, id string) (*Product, error) {
	return r.findOne(ctx, `SELECT id, tenant_id, sku, name, price_cents, created_at FROM products WHERE tenant_id = $1 AND id = $2`, tenant, id)
}

func (r *PostgresRepository) findOne(ctx context.Context, query string, args ...any) (*Product, error) {
	var p Product
	err := r.pool.QueryRow(ctx, query, args...).Scan(&p.ID, &p.TenantID, &p.SKU, &p.Name, &p.PriceCents, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}
