package payments

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v78"
)

type fakeStripeSessions struct {
	created *stripe.CheckoutSessionParams
	session *stripe.CheckoutSession
	err     error
}

func (f *fakeStripeSessions) New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	f.created = params
	return f.session, f.err
}

func (f *fakeStripeSessions) Get(string, *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	return f.session, f.err
}

func TestStripeCreateCheckoutSession(t *testing.T) {
	fake := &fakeStripeSessions{session: &stripe.CheckoutSession{
		ID:        "cs_test_1",
		URL:       "https://checkout.stripe.com/c/cs_test_1",
		ExpiresAt: time.Date(2026, 3, 1, 3, 0, 0, 0, time.UTC).Unix(),
	}}
	provider, err := NewStripeProvider(StripeConfig{
		SuccessURL: "https://shop.example/payments/stripe/return",
		CancelURL:  "https://shop.example/cart",
		sessions:   fake,
	})
	require.NoError(t, err)

	session, err := provider.CreateCheckoutSession(context.Background(), CheckoutRequest{
		OrderID:     "ord_1",
		OrderNumber: "HT-2026-000001",
		TxnRef:      "HT-2026-000001-1",
		Amount:      250_000,
		Currency:    "VND",
		Items:       []CheckoutLineItem{{Name: "Router", Quantity: 2, Amount: 125_000}},
	})
	require.NoError(t, err)

	assert.Equal(t, "cs_test_1", session.ID)
	assert.Equal(t, "https://checkout.stripe.com/c/cs_test_1", session.RedirectURL)
	require.NotNil(t, fake.created)
	assert.Equal(t, "HT-2026-000001-1", *fake.created.ClientReferenceID)
	assert.Equal(t, "https://shop.example/payments/stripe/return?session_id={CHECKOUT_SESSION_ID}", *fake.created.SuccessURL)
	require.Len(t, fake.created.LineItems, 1)
	assert.Equal(t, int64(250_000), *fake.created.LineItems[0].PriceData.UnitAmount)
	assert.Equal(t, "vnd", *fake.created.LineItems[0].PriceData.Currency)
}

func TestStripeVerifyReturnMapsPaymentStatus(t *testing.T) {
	fake := &fakeStripeSessions{session: &stripe.CheckoutSession{
		ID:                "cs_test_1",
		ClientReferenceID: "HT-2026-000001-1",
		AmountTotal:       250_000,
		PaymentStatus:     stripe.CheckoutSessionPaymentStatusPaid,
		Status:            stripe.CheckoutSessionStatusComplete,
		PaymentIntent:     &stripe.PaymentIntent{ID: "pi_1"},
	}}
	provider, err := NewStripeProvider(StripeConfig{sessions: fake})
	require.NoError(t, err)

	result, err := provider.VerifyReturn(context.Background(), map[string]string{"session_id": "cs_test_1"})
	require.NoError(t, err)
	assert.True(t, result.SignatureValid)
	assert.Equal(t, StatusSucceeded, result.Status)
	assert.Equal(t, "HT-2026-000001-1", result.TxnRef)
	assert.Equal(t, "pi_1", result.TransactionNo)

	fake.session.PaymentStatus = stripe.CheckoutSessionPaymentStatusUnpaid
	fake.session.Status = stripe.CheckoutSessionStatusExpired
	result, err = provider.VerifyReturn(context.Background(), map[string]string{"session_id": "cs_test_1"})
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, result.Status)

	_, err = provider.VerifyReturn(context.Background(), map[string]string{})
	assert.ErrorIs(t, err, ErrInvalidReturn)
}
