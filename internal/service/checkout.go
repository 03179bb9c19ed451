package service

import (
	"context"
	"log/slog"

	"github.com/brightwell/checkout/internal/billing"
	"github.com/brightwell/checkout/internal/catalog"
	"github.com/brightwell/checkout/internal/domain"
	"github.com/brightwell/checkout/internal/pricing"
	"github.com/brightwell/checkout/internal/telemetry"
)

// CheckoutConfig holds the provider-facing settings for session creation.
type CheckoutConfig struct {
	Currency string

	// SuccessURL is where the provider sends the buyer after payment.
	// Must contain the provider's session id placeholder so the
	// confirmation page can verify.
	SuccessURL string
	CancelURL  string
}

// checkoutService implements domain.CheckoutService.
type checkoutService struct {
	catalog  catalog.Store
	provider billing.Provider
	intents  domain.IntentStore
	config   CheckoutConfig
	logger   *slog.Logger
}

// NewCheckoutService creates a new CheckoutService instance.
func NewCheckoutService(
	catalogStore catalog.Store,
	provider billing.Provider,
	intents domain.IntentStore,
	config CheckoutConfig,
	logger *slog.Logger,
) domain.CheckoutService {
	return &checkoutService{
		catalog:  catalogStore,
		provider: provider,
		intents:  intents,
		config:   config,
		logger:   logger,
	}
}

// CreateSession re-validates the cart against the catalog, recomputes the
// authoritative total, opens a provider session and persists a pending
// intent keyed by the session id. Client-declared prices are ignored
// throughout; an inactive product or out-of-stock option rejects the
// whole request naming the offending line.
func (s *checkoutService) CreateSession(ctx context.Context, params domain.CreateSessionParams) (*domain.CheckoutSession, error) {
	if len(params.Lines) == 0 {
		countRejected("empty_cart")
		return nil, domain.ErrEmptyCart
	}

	intentLines := make([]domain.IntentLine, 0, len(params.Lines))
	providerItems := make([]billing.LineItem, 0, len(params.Lines))
	var totalCents int64

	for _, line := range params.Lines {
		if line.Quantity < 1 {
			countRejected("invalid_input")
			return nil, domain.ErrInvalidQuantity
		}

		lineID := pricing.LineID(line.ProductID, line.Selections)

		product, err := s.catalog.GetProduct(ctx, line.ProductID)
		if err != nil {
			if domain.IsCode(err, domain.ENOTFOUND) {
				countRejected("unavailable_item")
				return nil, domain.UnavailableItem(lineID, "product no longer exists")
			}
			return nil, err
		}
		if !product.Active {
			countRejected("unavailable_item")
			return nil, domain.UnavailableItem(lineID, "product is not available")
		}

		for variantID, optionID := range line.Selections {
			opt := product.FindOption(variantID, optionID)
			if opt == nil {
				countRejected("unavailable_item")
				return nil, domain.UnavailableItem(lineID, "selected option no longer exists")
			}
			if opt.Stock <= 0 {
				countRejected("unavailable_item")
				return nil, domain.UnavailableItem(lineID, "selected option is out of stock")
			}
		}

		unitPrice := pricing.LinePrice(product.BasePriceCents, product.Variants, line.Selections)
		totalCents += unitPrice * int64(line.Quantity)

		intentLines = append(intentLines, domain.IntentLine{
			LineID:         lineID,
			ProductID:      product.ID,
			ProductName:    product.Name,
			Selections:     line.Selections,
			Quantity:       line.Quantity,
			UnitPriceCents: unitPrice,
		})
		providerItems = append(providerItems, billing.LineItem{
			Name:            product.Name,
			UnitAmountCents: unitPrice,
			Quantity:        int64(line.Quantity),
		})
	}

	sess, err := s.provider.CreateCheckoutSession(ctx, billing.CreateSessionParams{
		LineItems:     providerItems,
		Currency:      s.config.Currency,
		CustomerEmail: params.GuestEmail,
		SuccessURL:    s.config.SuccessURL,
		CancelURL:     s.config.CancelURL,
	})
	if err != nil {
		return nil, domain.Internal(err, "checkout.create_session", "failed to open payment session")
	}

	// The intent must exist before the buyer can reach the provider's
	// payment page; the webhook for this session may beat the redirect.
	err = s.intents.Create(ctx, domain.PendingCheckoutIntent{
		ProviderSessionID: sess.ID,
		Lines:             intentLines,
		ShippingAddress:   params.ShippingAddress,
		TotalCents:        totalCents,
		Status:            domain.IntentStatusOpen,
		GuestEmail:        params.GuestEmail,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("checkout session created",
		"provider_session_id", sess.ID,
		"total_cents", totalCents,
		"lines", len(intentLines),
	)
	if telemetry.Business != nil {
		telemetry.Business.CheckoutSessionsStarted.WithLabelValues(s.config.Currency).Inc()
	}

	return &domain.CheckoutSession{
		ProviderSessionID: sess.ID,
		RedirectURL:       sess.URL,
		TotalCents:        totalCents,
	}, nil
}

func countRejected(reason string) {
	if telemetry.Business != nil {
		telemetry.Business.CheckoutRejected.WithLabelValues(reason).Inc()
	}
}
