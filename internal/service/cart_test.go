package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightwell/checkout/internal/domain"
)

func TestCartAdd_PricesFromCatalog(t *testing.T) {
	cart := NewCartService(testCatalog())

	lines, err := cart.Add(context.Background(), "cart_abc", domain.CartLine{
		ProductID:  "coffee-blend",
		Selections: map[string]string{"grind": "espresso"},
		Quantity:   1,
		// Whatever the client claims is discarded.
		UnitPriceCents: 1,
	})
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, int64(120), lines[0].UnitPriceCents)
	assert.NotEmpty(t, lines[0].LineID)
}

func TestCartAdd_MergesSameSelection(t *testing.T) {
	cart := NewCartService(testCatalog())

	line := domain.CartLine{
		ProductID:  "coffee-blend",
		Selections: map[string]string{"grind": "whole"},
		Quantity:   2,
	}
	_, err := cart.Add(context.Background(), "cart_abc", line)
	require.NoError(t, err)

	line.Quantity = 3
	lines, err := cart.Add(context.Background(), "cart_abc", line)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, int32(5), lines[0].Quantity)
}

func TestCartAdd_DistinctSelectionsStaySeparate(t *testing.T) {
	cart := NewCartService(testCatalog())

	_, err := cart.Add(context.Background(), "cart_abc", domain.CartLine{
		ProductID:  "coffee-blend",
		Selections: map[string]string{"grind": "whole"},
		Quantity:   1,
	})
	require.NoError(t, err)

	lines, err := cart.Add(context.Background(), "cart_abc", domain.CartLine{
		ProductID:  "coffee-blend",
		Selections: map[string]string{"grind": "espresso"},
		Quantity:   1,
	})
	require.NoError(t, err)
	assert.Len(t, lines, 2)
}

func TestCartAdd_RejectsIncompleteSelection(t *testing.T) {
	cart := NewCartService(testCatalog())

	_, err := cart.Add(context.Background(), "cart_abc", domain.CartLine{
		ProductID: "coffee-blend",
		Quantity:  1,
	})
	require.ErrorIs(t, err, domain.ErrIncompleteSelection)
}

func TestCartAdd_RejectsUnknownOption(t *testing.T) {
	cart := NewCartService(testCatalog())

	_, err := cart.Add(context.Background(), "cart_abc", domain.CartLine{
		ProductID:  "coffee-blend",
		Selections: map[string]string{"grind": "turkish"},
		Quantity:   1,
	})
	require.Error(t, err)
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
}

func TestCartAdd_RejectsInvalidQuantity(t *testing.T) {
	cart := NewCartService(testCatalog())

	_, err := cart.Add(context.Background(), "cart_abc", domain.CartLine{
		ProductID:  "coffee-blend",
		Selections: map[string]string{"grind": "whole"},
		Quantity:   0,
	})
	require.ErrorIs(t, err, domain.ErrInvalidQuantity)
}

func TestCartGet_UnknownSession(t *testing.T) {
	cart := NewCartService(testCatalog())

	_, err := cart.Get(context.Background(), "cart_missing")
	require.ErrorIs(t, err, domain.ErrCartNotFound)
}

func TestCartClear(t *testing.T) {
	cart := NewCartService(testCatalog())

	_, err := cart.Add(context.Background(), "cart_abc", domain.CartLine{
		ProductID:  "coffee-blend",
		Selections: map[string]string{"grind": "whole"},
		Quantity:   1,
	})
	require.NoError(t, err)

	require.NoError(t, cart.Clear(context.Background(), "cart_abc"))
	_, err = cart.Get(context.Background(), "cart_abc")
	assert.ErrorIs(t, err, domain.ErrCartNotFound)

	// Clearing an already-empty session is fine.
	assert.NoError(t, cart.Clear(context.Background(), "cart_abc"))
}
