// Package pricing computes authoritative unit prices and stable line
// identities for cart lines. Pure functions, no I/O; every caller that
// matters (checkout session creation) feeds it catalog data rather than
// client-declared prices.
package pricing

import (
	"sort"
	"strings"

	"github.com/brightwell/checkout/internal/catalog"
	"github.com/brightwell/checkout/internal/domain"
)

// selectionSeparator joins variantID:optionID pairs inside a line id.
const selectionSeparator = "|"

// LinePrice returns the unit price in cents for a product with the given
// variant selections: base price plus the price modifier of each selected
// option. Variants with no selection are skipped; partial selection is
// valid while browsing and is rejected elsewhere, at the add-to-cart
// boundary.
func LinePrice(basePriceCents int64, variants []catalog.Variant, selections map[string]string) int64 {
	price := basePriceCents
	for _, v := range variants {
		optionID, ok := selections[v.ID]
		if !ok {
			continue
		}
		for _, opt := range v.Options {
			if opt.ID == optionID {
				price += opt.PriceModifierCents
				break
			}
		}
	}
	return price
}

// LineID derives the stable identity of a cart line from its product and
// variant selections. Selections are sorted by variant id, so permutations
// of the same selection set always collapse to the same id and their
// quantities merge instead of duplicating lines.
func LineID(productID string, selections map[string]string) string {
	if len(selections) == 0 {
		return productID
	}

	variantIDs := make([]string, 0, len(selections))
	for id := range selections {
		variantIDs = append(variantIDs, id)
	}
	sort.Strings(variantIDs)

	parts := make([]string, 0, len(selections)+1)
	parts = append(parts, productID)
	for _, id := range variantIDs {
		parts = append(parts, id+":"+selections[id])
	}
	return strings.Join(parts, selectionSeparator)
}

// MergeLine adds a line to a cart, summing quantities when the line id
// already exists. The returned slice preserves insertion order.
func MergeLine(lines []domain.CartLine, add domain.CartLine) []domain.CartLine {
	for i, l := range lines {
		if l.LineID == add.LineID {
			lines[i].Quantity += add.Quantity
			return lines
		}
	}
	return append(lines, add)
}
