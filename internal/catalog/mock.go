package catalog

import (
	"context"

	"github.com/brightwell/checkout/internal/domain"
)

// MockStore is an in-memory catalog for tests.
type MockStore struct {
	// Products maps product id to product.
	Products map[string]*Product

	// GetProductFunc allows customizing lookup behavior.
	GetProductFunc func(ctx context.Context, productID string) (*Product, error)
}

var _ Store = (*MockStore)(nil)

// NewMockStore creates an empty mock catalog.
func NewMockStore() *MockStore {
	return &MockStore{Products: make(map[string]*Product)}
}

// GetProduct returns the stored product or domain.ErrProductNotFound.
func (m *MockStore) GetProduct(ctx context.Context, productID string) (*Product, error) {
	if m.GetProductFunc != nil {
		return m.GetProductFunc(ctx, productID)
	}
	p, ok := m.Products[productID]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	return p, nil
}
