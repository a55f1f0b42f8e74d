// Package payments adapts external payment gateways (VNPay, Stripe Checkout) behind a common
// Provider contract selected by payment method.
package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Status enumerates the normalised gateway outcomes.
type Status string

const (
	// StatusPending indicates the gateway has not settled the payment yet.
	StatusPending Status = "pending"
	// StatusSucceeded indicates the gateway reports the payment as captured.
	StatusSucceeded Status = "succeeded"
	// StatusFailed indicates the gateway reports a failure.
	StatusFailed Status = "failed"
)

var (
	// ErrUnsupportedProvider is returned when the manager cannot locate a provider.
	ErrUnsupportedProvider = errors.New("payments: unsupported provider")
	// ErrInvalidReturn is returned when gateway return parameters cannot be interpreted.
	ErrInvalidReturn = errors.New("payments: invalid return parameters")
)

// CheckoutLineItem describes a single line shown on the gateway page.
type CheckoutLineItem struct {
	Name     string
	Quantity int64
	Amount   int64
}

// CheckoutRequest captures the payload required to start a gateway checkout.
type CheckoutRequest struct {
	OrderID        string
	OrderNumber    string
	TxnRef         string
	OrderInfo      string
	Amount         int64
	Currency       string
	ClientIP       string
	BankCode       string
	Locale         string
	IdempotencyKey string
	Items          []CheckoutLineItem
}

// CheckoutSession is the redirect the customer follows to pay.
type CheckoutSession struct {
	ID          string
	Provider    string
	TxnRef      string
	RedirectURL string
	ExpiresAt   time.Time
}

// ReturnResult normalises the gateway callback fields stored on the payment record.
type ReturnResult struct {
	Provider          string
	TxnRef            string
	Amount            int64
	ResponseCode      string
	BankCode          string
	CardType          string
	TransactionNo     string
	PayDate           string
	TransactionStatus string
	SecureHash        string
	SignatureValid    bool
	Status            Status
}

// Provider defines the contract for gateway adapters.
type Provider interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (CheckoutSession, error)
	VerifyReturn(ctx context.Context, params map[string]string) (ReturnResult, error)
}

// Manager routes calls to the provider registered for a payment method.
type Manager struct {
	providers map[string]Provider
}

// NewManager constructs a Manager over the supplied providers keyed by payment method.
func NewManager(providers map[string]Provider) (*Manager, error) {
	if len(providers) == 0 {
		return nil, errors.New("payments: at least one provider is required")
	}
	copyMap := make(map[string]Provider, len(providers))
	for k, v := range providers {
		key := normalizeKey(k)
		if key == "" || v == nil {
			return nil, fmt.Errorf("payments: invalid provider registration for key %q", k)
		}
		copyMap[key] = v
	}
	return &Manager{providers: copyMap}, nil
}

func (m *Manager) resolve(method string) (string, Provider, error) {
	if m == nil {
		return "", nil, errors.New("payments: manager is nil")
	}
	key := normalizeKey(method)
	if p, ok := m.providers[key]; ok {
		return key, p, nil
	}
	return "", nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, method)
}

// Supports reports whether a provider is registered for method.
func (m *Manager) Supports(method string) bool {
	_, _, err := m.resolve(method)
	return err == nil
}

// CreateCheckoutSession delegates to the provider registered for method.
func (m *Manager) CreateCheckoutSession(ctx context.Context, method string, req CheckoutRequest) (CheckoutSession, error) {
	key, provider, err := m.resolve(method)
	if err != nil {
		return CheckoutSession{}, err
	}
	session, err := provider.CreateCheckoutSession(ctx, req)
	if err != nil {
		return CheckoutSession{}, err
	}
	session.Provider = key
	return session, nil
}

// VerifyReturn delegates to the provider registered for method.
func (m *Manager) VerifyReturn(ctx context.Context, method string, params map[string]string) (ReturnResult, error) {
	key, provider, err := m.resolve(method)
	if err != nil {
		return ReturnResult{}, err
	}
	result, err := provider.VerifyReturn(ctx, params)
	if err != nil {
		return ReturnResult{}, err
	}
	result.Provider = key
	return result, nil
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}
