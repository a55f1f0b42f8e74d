package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	vnpayVersion       = "2.1.0"
	vnpayCommand       = "pay"
	vnpayOrderType     = "other"
	vnpayDateLayout    = "20060102150405"
	vnpaySuccessCode   = "00"
	vnpayDefaultExpiry = 15 * time.Minute
)

// VNPayConfig configures the VNPay redirect flow.
type VNPayConfig struct {
	TmnCode    string
	HashSecret string
	PayURL     string
	ReturnURL  string
	Expiry     time.Duration
	Clock      func() time.Time
	Logger     func(ctx context.Context, event string, fields map[string]any)
}

// VNPayProvider builds signed VNPay payment URLs and verifies return callbacks.
type VNPayProvider struct {
	tmnCode   string
	secret    []byte
	payURL    string
	returnURL string
	expiry    time.Duration
	clock     func() time.Time
	location  *time.Location
	logger    func(context.Context, string, map[string]any)
}

// NewVNPayProvider validates cfg and constructs the provider.
func NewVNPayProvider(cfg VNPayConfig) (*VNPayProvider, error) {
	if strings.TrimSpace(cfg.TmnCode) == "" || strings.TrimSpace(cfg.HashSecret) == "" {
		return nil, errors.New("vnpay: tmn code and hash secret are required")
	}
	if _, err := url.ParseRequestURI(cfg.PayURL); err != nil {
		return nil, fmt.Errorf("vnpay: invalid pay url: %w", err)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	expiry := cfg.Expiry
	if expiry <= 0 {
		expiry = vnpayDefaultExpiry
	}
	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	// VNPay timestamps are Indochina time.
	loc, err := time.LoadLocation("Asia/Ho_Chi_Minh")
	if err != nil {
		loc = time.FixedZone("ICT", 7*60*60)
	}
	return &VNPayProvider{
		tmnCode:   strings.TrimSpace(cfg.TmnCode),
		secret:    []byte(strings.TrimSpace(cfg.HashSecret)),
		payURL:    cfg.PayURL,
		returnURL: cfg.ReturnURL,
		expiry:    expiry,
		clock:     clock,
		location:  loc,
		logger:    logger,
	}, nil
}

// CreateCheckoutSession returns the signed redirect URL. vnp_Amount is expressed in hundredths of VND.
func (p *VNPayProvider) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (CheckoutSession, error) {
	if req.Amount <= 0 {
		return CheckoutSession{}, errors.New("vnpay: amount must be positive")
	}
	if strings.TrimSpace(req.TxnRef) == "" {
		return CheckoutSession{}, errors.New("vnpay: txn ref is required")
	}
	now := p.clock().In(p.location)
	expiresAt := now.Add(p.expiry)

	params := map[string]string{
		"vnp_Version":    vnpayVersion,
		"vnp_Command":    vnpayCommand,
		"vnp_TmnCode":    p.tmnCode,
		"vnp_Amount":     strconv.FormatInt(req.Amount*100, 10),
		"vnp_CurrCode":   "VND",
		"vnp_TxnRef":     req.TxnRef,
		"vnp_OrderInfo":  req.OrderInfo,
		"vnp_OrderType":  vnpayOrderType,
		"vnp_Locale":     defaultString(req.Locale, "vn"),
		"vnp_ReturnUrl":  p.returnURL,
		"vnp_IpAddr":     defaultString(req.ClientIP, "127.0.0.1"),
		"vnp_CreateDate": now.Format(vnpayDateLayout),
		"vnp_ExpireDate": expiresAt.Format(vnpayDateLayout),
	}
	if bank := strings.TrimSpace(req.BankCode); bank != "" {
		params["vnp_BankCode"] = bank
	}

	query := encodeSorted(params)
	signature := p.sign(query)
	redirect := p.payURL + "?" + query + "&vnp_SecureHash=" + signature

	p.logger(ctx, "payments.vnpay.url.created", map[string]any{
		"txnRef": req.TxnRef,
		"amount": req.Amount,
	})
	return CheckoutSession{
		ID:          req.TxnRef,
		TxnRef:      req.TxnRef,
		RedirectURL: redirect,
		ExpiresAt:   expiresAt.UTC(),
	}, nil
}

// VerifyReturn recomputes the signature over every vnp_ field except the hash fields.
func (p *VNPayProvider) VerifyReturn(ctx context.Context, params map[string]string) (ReturnResult, error) {
	txnRef := strings.TrimSpace(params["vnp_TxnRef"])
	if txnRef == "" {
		return ReturnResult{}, fmt.Errorf("%w: vnp_TxnRef missing", ErrInvalidReturn)
	}
	received := params["vnp_SecureHash"]
	signed := make(map[string]string, len(params))
	for key, value := range params {
		if !strings.HasPrefix(key, "vnp_") || key == "vnp_SecureHash" || key == "vnp_SecureHashType" {
			continue
		}
		if value == "" {
			continue
		}
		signed[key] = value
	}
	expected := p.sign(encodeSorted(signed))
	valid := received != "" && hmac.Equal([]byte(strings.ToLower(received)), []byte(expected))

	var amount int64
	if raw := params["vnp_Amount"]; raw != "" {
		if parsed, err := strconv.ParseInt(raw, 10, 64); err == nil {
			amount = parsed / 100
		}
	}

	result := ReturnResult{
		TxnRef:            txnRef,
		Amount:            amount,
		ResponseCode:      params["vnp_ResponseCode"],
		BankCode:          params["vnp_BankCode"],
		CardType:          params["vnp_CardType"],
		TransactionNo:     params["vnp_TransactionNo"],
		PayDate:           params["vnp_PayDate"],
		TransactionStatus: params["vnp_TransactionStatus"],
		SecureHash:        received,
		SignatureValid:    valid,
		Status:            StatusFailed,
	}
	if valid && result.ResponseCode == vnpaySuccessCode {
		result.Status = StatusSucceeded
	}
	if !valid {
		p.logger(ctx, "payments.vnpay.signature.invalid", map[string]any{"txnRef": txnRef})
	}
	return result, nil
}

// Sign exposes the signature used for a set of parameters. Tests use it to build valid callbacks.
func (p *VNPayProvider) Sign(params map[string]string) string {
	return p.sign(encodeSorted(params))
}

func (p *VNPayProvider) sign(data string) string {
	mac := hmac.New(sha512.New, p.secret)
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

// encodeSorted renders key=value pairs sorted by key with form encoding, the format VNPay hashes.
func encodeSorted(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, url.QueryEscape(key)+"="+url.QueryEscape(params[key]))
	}
	return strings.Join(parts, "&")
}

func defaultString(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}
