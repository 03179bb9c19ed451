// Package catalog is the read-only product collaborator. Checkout uses it
// to re-derive authoritative prices and availability at session-creation
// time; nothing in this subsystem writes to it.
package catalog

import "context"

// Option is a selectable value for a variant, carrying the price modifier
// added to the product's base price and its remaining stock.
type Option struct {
	ID                 string
	Name               string
	PriceModifierCents int64
	Stock              int32
}

// Variant is a configurable dimension of a product (size, grind, color).
type Variant struct {
	ID      string
	Name    string
	Options []Option
}

// Product is the authoritative catalog record for pricing.
type Product struct {
	ID             string
	Name           string
	BasePriceCents int64
	Active         bool
	Variants       []Variant
}

// Option lookup helper; returns nil if the variant or option is unknown.
func (p *Product) FindOption(variantID, optionID string) *Option {
	for _, v := range p.Variants {
		if v.ID != variantID {
			continue
		}
		for i := range v.Options {
			if v.Options[i].ID == optionID {
				return &v.Options[i]
			}
		}
	}
	return nil
}

// Store provides catalog lookups by product id.
type Store interface {
	// GetProduct returns the product with its variants and options, or
	// domain.ErrProductNotFound.
	GetProduct(ctx context.Context, productID string) (*Product, error)
}
