package billing

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// MockProvider is a mock billing provider for testing.
// Simulates checkout session flows without calling the Stripe API.
type MockProvider struct {
	// CreateCheckoutSessionFunc allows customizing session creation behavior.
	CreateCheckoutSessionFunc func(ctx context.Context, params CreateSessionParams) (*Session, error)

	// GetCheckoutSessionFunc allows customizing session retrieval behavior.
	GetCheckoutSessionFunc func(ctx context.Context, sessionID string) (*Session, error)

	// VerifyWebhookSignatureFunc allows customizing webhook verification behavior.
	VerifyWebhookSignatureFunc func(payload []byte, signature string, secret string) error

	// Sessions stores created sessions for retrieval.
	Sessions map[string]*Session

	// CallLog tracks method calls for test assertions.
	CallLog []string
}

var _ Provider = (*MockProvider)(nil)

// NewMockProvider creates a new mock billing provider.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		Sessions: make(map[string]*Session),
		CallLog:  []string{},
	}
}

// CreateCheckoutSession creates a mock session. The default behavior
// records the requested total and returns an open, unpaid session.
func (m *MockProvider) CreateCheckoutSession(ctx context.Context, params CreateSessionParams) (*Session, error) {
	var total int64
	for _, li := range params.LineItems {
		total += li.UnitAmountCents * li.Quantity
	}
	m.CallLog = append(m.CallLog, fmt.Sprintf("CreateCheckoutSession(%d, %s)", total, params.Currency))

	if m.CreateCheckoutSessionFunc != nil {
		return m.CreateCheckoutSessionFunc(ctx, params)
	}

	sess := &Session{
		ID:               "cs_" + uuid.New().String(),
		URL:              "https://checkout.example.com/pay/" + uuid.New().String(),
		AmountTotalCents: total,
		PaymentStatus:    PaymentStatusUnpaid,
		Status:           SessionStatusOpen,
	}
	m.Sessions[sess.ID] = sess
	return sess, nil
}

// GetCheckoutSession returns a previously created session.
func (m *MockProvider) GetCheckoutSession(ctx context.Context, sessionID string) (*Session, error) {
	m.CallLog = append(m.CallLog, fmt.Sprintf("GetCheckoutSession(%s)", sessionID))

	if m.GetCheckoutSessionFunc != nil {
		return m.GetCheckoutSessionFunc(ctx, sessionID)
	}

	sess, ok := m.Sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// VerifyWebhookSignature accepts any signature by default.
func (m *MockProvider) VerifyWebhookSignature(payload []byte, signature string, secret string) error {
	m.CallLog = append(m.CallLog, "VerifyWebhookSignature")

	if m.VerifyWebhookSignatureFunc != nil {
		return m.VerifyWebhookSignatureFunc(payload, signature, secret)
	}
	return nil
}

// MarkPaid flips a stored session to paid/complete, simulating the buyer
// finishing payment on the provider's hosted page.
func (m *MockProvider) MarkPaid(sessionID string) {
	if sess, ok := m.Sessions[sessionID]; ok {
		sess.PaymentStatus = PaymentStatusPaid
		sess.Status = SessionStatusComplete
	}
}
