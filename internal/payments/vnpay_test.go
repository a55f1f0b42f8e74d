package payments

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVNPay(t *testing.T) *VNPayProvider {
	t.Helper()
	provider, err := NewVNPayProvider(VNPayConfig{
		TmnCode:    "HOMETECH",
		HashSecret: "SECRETKEY",
		PayURL:     "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html",
		ReturnURL:  "https://shop.example/payments/vnpay/return",
		Clock:      func() time.Time { return time.Date(2026, 3, 1, 2, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	return provider
}

func TestVNPayCreateCheckoutSignsSortedParams(t *testing.T) {
	provider := newTestVNPay(t)

	session, err := provider.CreateCheckoutSession(context.Background(), CheckoutRequest{
		TxnRef:    "HT-2026-000001-1",
		OrderInfo: "Thanh toan don hang HT-2026-000001",
		Amount:    1_500_000,
		ClientIP:  "10.0.0.7",
	})
	require.NoError(t, err)

	parsed, err := url.Parse(session.RedirectURL)
	require.NoError(t, err)
	query := parsed.Query()

	assert.Equal(t, "150000000", query.Get("vnp_Amount"))
	assert.Equal(t, "HOMETECH", query.Get("vnp_TmnCode"))
	assert.Equal(t, "20260301090000", query.Get("vnp_CreateDate"))
	assert.Equal(t, "20260301091500", query.Get("vnp_ExpireDate"))
	assert.Equal(t, "10.0.0.7", query.Get("vnp_IpAddr"))

	signed := map[string]string{}
	for key := range query {
		if key != "vnp_SecureHash" {
			signed[key] = query.Get(key)
		}
	}
	assert.Equal(t, provider.Sign(signed), query.Get("vnp_SecureHash"))
}

func TestVNPayVerifyReturn(t *testing.T) {
	provider := newTestVNPay(t)
	base := map[string]string{
		"vnp_TxnRef":            "HT-2026-000001-1",
		"vnp_Amount":            "150000000",
		"vnp_ResponseCode":      "00",
		"vnp_BankCode":          "NCB",
		"vnp_CardType":          "ATM",
		"vnp_TransactionNo":     "14000001",
		"vnp_PayDate":           "20260301091000",
		"vnp_TransactionStatus": "00",
	}

	t.Run("valid success", func(t *testing.T) {
		params := cloneParams(base)
		params["vnp_SecureHash"] = provider.Sign(base)
		result, err := provider.VerifyReturn(context.Background(), params)
		require.NoError(t, err)
		assert.True(t, result.SignatureValid)
		assert.Equal(t, StatusSucceeded, result.Status)
		assert.Equal(t, int64(1_500_000), result.Amount)
		assert.Equal(t, "NCB", result.BankCode)
	})

	t.Run("valid failure code", func(t *testing.T) {
		failed := cloneParams(base)
		failed["vnp_ResponseCode"] = "24"
		params := cloneParams(failed)
		params["vnp_SecureHash"] = provider.Sign(failed)
		result, err := provider.VerifyReturn(context.Background(), params)
		require.NoError(t, err)
		assert.True(t, result.SignatureValid)
		assert.Equal(t, StatusFailed, result.Status)
	})

	t.Run("tampered amount", func(t *testing.T) {
		params := cloneParams(base)
		params["vnp_SecureHash"] = provider.Sign(base)
		params["vnp_Amount"] = "100"
		result, err := provider.VerifyReturn(context.Background(), params)
		require.NoError(t, err)
		assert.False(t, result.SignatureValid)
		assert.Equal(t, StatusFailed, result.Status)
	})

	t.Run("missing txn ref", func(t *testing.T) {
		_, err := provider.VerifyReturn(context.Background(), map[string]string{})
		assert.ErrorIs(t, err, ErrInvalidReturn)
	})
}

func TestNewVNPayProviderValidatesConfig(t *testing.T) {
	_, err := NewVNPayProvider(VNPayConfig{PayURL: "https://example.com"})
	assert.Error(t, err)
	_, err = NewVNPayProvider(VNPayConfig{TmnCode: "A", HashSecret: "B", PayURL: "::bad"})
	assert.Error(t, err)
}

func cloneParams(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
