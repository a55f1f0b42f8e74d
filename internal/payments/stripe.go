package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
)

type stripeSessionAPI interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	Get(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// StripeConfig configures the Stripe Checkout provider.
type StripeConfig struct {
	APIKey     string
	SuccessURL string
	CancelURL  string
	Backends   *stripe.Backends
	Clock      func() time.Time
	Logger     func(ctx context.Context, event string, fields map[string]any)
	sessions   stripeSessionAPI
}

// StripeProvider creates Checkout sessions and reads them back on return.
type StripeProvider struct {
	sessions   stripeSessionAPI
	successURL string
	cancelURL  string
	clock      func() time.Time
	logger     func(context.Context, string, map[string]any)
}

// NewStripeProvider constructs a Stripe provider using the given configuration.
func NewStripeProvider(cfg StripeConfig) (*StripeProvider, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	sessions := cfg.sessions
	if sessions == nil {
		if apiKey == "" {
			return nil, errors.New("stripe: api key is required")
		}
		sessions = client.New(apiKey, cfg.Backends).CheckoutSessions
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &StripeProvider{
		sessions:   sessions,
		successURL: cfg.SuccessURL,
		cancelURL:  cfg.CancelURL,
		clock:      func() time.Time { return clock().UTC() },
		logger:     logger,
	}, nil
}

// CreateCheckoutSession creates a Stripe Checkout session whose client reference is the txn ref.
func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (CheckoutSession, error) {
	if req.Amount <= 0 {
		return CheckoutSession{}, errors.New("stripe: amount must be positive")
	}
	currency := strings.ToLower(defaultString(req.Currency, "vnd"))

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(withSessionPlaceholder(p.successURL)),
		CancelURL:         stripe.String(p.cancelURL),
		ClientReferenceID: stripe.String(req.TxnRef),
		Metadata: map[string]string{
			"orderId":     req.OrderID,
			"orderNumber": req.OrderNumber,
			"txnRef":      req.TxnRef,
		},
	}
	params.Context = ctx
	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		params.SetIdempotencyKey(key)
	}
	if req.Locale != "" {
		params.Locale = stripe.String(strings.ReplaceAll(strings.ToLower(req.Locale), "_", "-"))
	}

	// Line prices are pre-discount, so the order total is charged as a single line.
	params.LineItems = []*stripe.CheckoutSessionLineItemParams{{
		Quantity: stripe.Int64(1),
		PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
			Currency:   stripe.String(currency),
			UnitAmount: stripe.Int64(req.Amount),
			ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
				Name:        stripe.String(defaultString(req.OrderInfo, "Order "+req.OrderNumber)),
				Description: stripe.String(describeItems(req.Items)),
			},
		},
	}}

	session, err := p.sessions.New(params)
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("stripe: create checkout session: %w", err)
	}

	p.logger(ctx, "payments.stripe.session.created", map[string]any{
		"sessionId": session.ID,
		"txnRef":    req.TxnRef,
	})

	expiresAt := p.clock().Add(30 * time.Minute)
	if session.ExpiresAt != 0 {
		expiresAt = time.Unix(session.ExpiresAt, 0).UTC()
	}
	return CheckoutSession{
		ID:          session.ID,
		TxnRef:      req.TxnRef,
		RedirectURL: session.URL,
		ExpiresAt:   expiresAt,
	}, nil
}

// VerifyReturn loads the session named by session_id. The lookup is authenticated with the secret
// key, so a session that resolves is genuine.
func (p *StripeProvider) VerifyReturn(ctx context.Context, params map[string]string) (ReturnResult, error) {
	sessionID := strings.TrimSpace(params["session_id"])
	if sessionID == "" {
		return ReturnResult{}, fmt.Errorf("%w: session_id missing", ErrInvalidReturn)
	}
	lookup := &stripe.CheckoutSessionParams{}
	lookup.Context = ctx
	lookup.AddExpand("payment_intent")

	session, err := p.sessions.Get(sessionID, lookup)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode == 404 {
			return ReturnResult{TxnRef: params["txnRef"], SignatureValid: false, Status: StatusFailed}, nil
		}
		return ReturnResult{}, fmt.Errorf("stripe: lookup checkout session: %w", err)
	}

	result := ReturnResult{
		TxnRef:            session.ClientReferenceID,
		Amount:            session.AmountTotal,
		ResponseCode:      string(session.PaymentStatus),
		TransactionStatus: string(session.Status),
		PayDate:           time.Unix(session.Created, 0).UTC().Format(time.RFC3339),
		SecureHash:        session.ID,
		SignatureValid:    true,
		Status:            StatusPending,
	}
	if intent := session.PaymentIntent; intent != nil {
		result.TransactionNo = intent.ID
		if intent.PaymentMethod != nil {
			result.CardType = string(intent.PaymentMethod.Type)
		}
	}
	switch session.PaymentStatus {
	case stripe.CheckoutSessionPaymentStatusPaid, stripe.CheckoutSessionPaymentStatusNoPaymentRequired:
		result.Status = StatusSucceeded
	case stripe.CheckoutSessionPaymentStatusUnpaid:
		if session.Status == stripe.CheckoutSessionStatusExpired {
			result.Status = StatusFailed
		}
	}
	return result, nil
}

func withSessionPlaceholder(successURL string) string {
	if strings.Contains(successURL, "{CHECKOUT_SESSION_ID}") {
		return successURL
	}
	sep := "?"
	if strings.Contains(successURL, "?") {
		sep = "&"
	}
	return successURL + sep + "session_id={CHECKOUT_SESSION_ID}"
}

func describeItems(items []CheckoutLineItem) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		parts = append(parts, fmt.Sprintf("%s x%d", item.Name, max(item.Quantity, 1)))
	}
	if len(parts) == 0 {
		return "Order"
	}
	return strings.Join(parts, ", ")
}
