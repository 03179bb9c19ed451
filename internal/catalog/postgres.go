package catalog

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/brightwell/checkout/internal/domain"
)

// PostgresStore implements Store over the products/product_variants/
// variant_options tables.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a PostgreSQL-backed catalog store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// GetProduct returns the product with its variants and options.
func (s *PostgresStore) GetProduct(ctx context.Context, productID string) (*Product, error) {
	var p Product
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, base_price_cents, active FROM products WHERE id = $1`,
		productID,
	).Scan(&p.ID, &p.Name, &p.BasePriceCents, &p.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFound("catalog.get_product", "product", productID)
		}
		return nil, domain.Internal(err, "catalog.get_product", "failed to load product")
	}

	rows, err := s.pool.Query(ctx,
		`SELECT v.id, v.name, o.id, o.name, o.price_modifier_cents, o.stock
		 FROM product_variants v
		 JOIN variant_options o ON o.variant_id = v.id
		 WHERE v.product_id = $1
		 ORDER BY v.sort_order, o.sort_order`,
		productID,
	)
	if err != nil {
		return nil, domain.Internal(err, "catalog.get_product", "failed to load variants")
	}
	defer rows.Close()

	variantIndex := make(map[string]int)
	for rows.Next() {
		var variantID, variantName string
		var opt Option
		if err := rows.Scan(&variantID, &variantName, &opt.ID, &opt.Name, &opt.PriceModifierCents, &opt.Stock); err != nil {
			return nil, domain.Internal(err, "catalog.get_product", "failed to scan variant option")
		}
		i, ok := variantIndex[variantID]
		if !ok {
			p.Variants = append(p.Variants, Variant{ID: variantID, Name: variantName})
			i = len(p.Variants) - 1
			variantIndex[variantID] = i
		}
		p.Variants[i].Options = append(p.Variants[i].Options, opt)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, "catalog.get_product", "failed to read variants")
	}

	return &p, nil
}
