// Package naturalkey turns natural-key uniqueness violations into "existing resource" results.
//
// Two requests creating the same domain entity (e.g. the same SKU of a tenant) with different
// idempotency tokens both reach the domain operation; the idempotency coordinator cannot tell
// them apart. The database's unique constraint decides the winner and the Resolver converts the
// loser's violation into the winner's entity, flagged as existing.
//
// Usage:
//
//	r := naturalkey.NewResolver(func(ctx context.Context, tenant, sku string) (*Product, error) {
//	    return repo.FindBySKU(ctx, tenant, sku)
//	})
//	p, existing, err := r.ResolveOrCreate(ctx, tenant, sku, func(ctx context.Context) (*Product, error) {
//	    return repo.Insert(ctx, newProduct)
//	})
//
// Handlers answer existing entities with 200 and the Upsert-Existing header instead of 201.
package naturalkey
