package service

import (
	"context"
	"sync"

	"github.com/brightwell/checkout/internal/catalog"
	"github.com/brightwell/checkout/internal/domain"
	"github.com/brightwell/checkout/internal/pricing"
)

// cartService implements domain.CartService with an in-memory store
// keyed by browser session id. The cart is client-owned until checkout;
// prices held here are display-only and recomputed server-side at
// session creation.
type cartService struct {
	catalog catalog.Store

	mu    sync.Mutex
	carts map[string][]domain.CartLine
}

// NewCartService creates a new CartService instance.
func NewCartService(catalogStore catalog.Store) domain.CartService {
	return &cartService{
		catalog: catalogStore,
		carts:   make(map[string][]domain.CartLine),
	}
}

// Get returns the lines of the cart for the given browser session.
func (s *cartService) Get(ctx context.Context, cartSessionID string) ([]domain.CartLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines, ok := s.carts[cartSessionID]
	if !ok {
		return nil, domain.ErrCartNotFound
	}
	out := make([]domain.CartLine, len(lines))
	copy(out, lines)
	return out, nil
}

// Add merges a line into the cart. Partial variant selection is valid
// while browsing but rejected here, at the add-to-cart boundary.
func (s *cartService) Add(ctx context.Context, cartSessionID string, line domain.CartLine) ([]domain.CartLine, error) {
	if line.Quantity < 1 {
		return nil, domain.ErrInvalidQuantity
	}

	product, err := s.catalog.GetProduct(ctx, line.ProductID)
	if err != nil {
		return nil, err
	}
	if !product.Active {
		return nil, domain.ErrProductNotFound
	}

	for _, v := range product.Variants {
		optionID, ok := line.Selections[v.ID]
		if !ok {
			return nil, domain.ErrIncompleteSelection
		}
		if product.FindOption(v.ID, optionID) == nil {
			return nil, domain.Errorf(domain.EINVALID, "cart.add", "unknown option %q for %q", optionID, v.Name)
		}
	}

	line.LineID = pricing.LineID(line.ProductID, line.Selections)
	line.UnitPriceCents = pricing.LinePrice(product.BasePriceCents, product.Variants, line.Selections)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.carts[cartSessionID] = pricing.MergeLine(s.carts[cartSessionID], line)

	out := make([]domain.CartLine, len(s.carts[cartSessionID]))
	copy(out, s.carts[cartSessionID])
	return out, nil
}

// Clear removes all lines from the cart.
func (s *cartService) Clear(ctx context.Context, cartSessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.carts, cartSessionID)
	return nil
}
