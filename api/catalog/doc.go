// Package catalog is a small product catalog served over HTTP.
//
// Products are identified by a uuid and unique per (tenant, sku). Creation runs behind the
// idempotency middleware, so retries with the same Idempotency-Key replay the first answer,
// and through the natural-key resolver, so concurrent creates of one sku with different keys
// converge to a single row. The second case is answered with 200 and Upsert-Existing: true.
//
// Two repositories are provided: PostgresRepository on pgx and SQLiteRepository on
// database/sql with go-sqlite3.
package catalog
