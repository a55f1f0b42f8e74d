package handlers

import (
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/hometech/api/internal/domain"
	"github.com/hometech/api/internal/platform/httpx"
	"github.com/hometech/api/internal/services"
)

// PaymentHandlers exposes gateway checkout and the gateway return endpoints.
type PaymentHandlers struct {
	payments services.PaymentService
}

// NewPaymentHandlers constructs payment handlers.
func NewPaymentHandlers(payments services.PaymentService) *PaymentHandlers {
	return &PaymentHandlers{payments: payments}
}

// Routes registers the /payments endpoints.
func (h *PaymentHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/vnpay/return", h.returnHandler(domain.PaymentMethodVNPay))
	r.Get("/stripe/return", h.returnHandler(domain.PaymentMethodStripe))
	r.Get("/{orderId}", h.get)
	r.Post("/{orderId}/checkout", h.checkout)
}

type paymentPayload struct {
	ID                string               `json:"id"`
	OrderID           string               `json:"orderId"`
	Method            domain.PaymentMethod `json:"method"`
	Amount            int64                `json:"amount"`
	Status            domain.PaymentStatus `json:"status"`
	OrderInfo         string               `json:"orderInfo,omitempty"`
	TxnRef            string               `json:"txnRef,omitempty"`
	ResponseCode      string               `json:"responseCode,omitempty"`
	BankCode          string               `json:"bankCode,omitempty"`
	CardType          string               `json:"cardType,omitempty"`
	TransactionNo     string               `json:"transactionNo,omitempty"`
	PayDate           string               `json:"payDate,omitempty"`
	TransactionStatus string               `json:"transactionStatus,omitempty"`
	UpdatedAt         string               `json:"updatedAt"`
}

type checkoutPayload struct {
	OrderID     string               `json:"orderId"`
	Method      domain.PaymentMethod `json:"method"`
	RedirectURL string               `json:"redirectUrl"`
	TxnRef      string               `json:"txnRef"`
}

func (h *PaymentHandlers) get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID, err := pathParam(r, "orderId")
	if err != nil {
		writeBadRequest(ctx, w, err.Error())
		return
	}
	payment, err := h.payments.GetPayment(ctx, orderID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteOK(w, "Payment", buildPaymentPayload(payment))
}

func (h *PaymentHandlers) checkout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID, err := pathParam(r, "orderId")
	if err != nil {
		writeBadRequest(ctx, w, err.Error())
		return
	}
	userID, err := requiredQuery(r, "userId")
	if err != nil {
		writeBadRequest(ctx, w, err.Error())
		return
	}
	query := r.URL.Query()
	redirect, err := h.payments.StartCheckout(ctx, services.StartCheckoutCommand{
		OrderID:  orderID,
		UserID:   userID,
		ClientIP: clientIP(r),
		BankCode: query.Get("bankCode"),
		Locale:   query.Get("locale"),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteOK(w, "Redirect the customer to the payment gateway", checkoutPayload{
		OrderID:     redirect.OrderID,
		Method:      redirect.Method,
		RedirectURL: redirect.RedirectURL,
		TxnRef:      redirect.TxnRef,
	})
}

// returnHandler records the gateway callback and reports the outcome. Redirecting the shopper is
// left to the frontend.
func (h *PaymentHandlers) returnHandler(method domain.PaymentMethod) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		params := make(map[string]string, len(r.URL.Query()))
		for key, values := range r.URL.Query() {
			if len(values) > 0 {
				params[key] = values[0]
			}
		}
		payment, err := h.payments.HandleReturn(ctx, method, params)
		if err != nil {
			writeServiceError(ctx, w, err)
			return
		}
		message := "Payment recorded"
		switch payment.Status {
		case domain.PaymentStatusSuccess:
			message = "Payment successful"
		case domain.PaymentStatusFailed:
			message = "Payment failed"
		case domain.PaymentStatusInvalidSignature:
			message = "Payment signature is invalid"
		}
		httpx.WriteOK(w, message, buildPaymentPayload(payment))
	}
}

func buildPaymentPayload(p domain.Payment) paymentPayload {
	return paymentPayload{
		ID:                p.ID,
		OrderID:           p.OrderID,
		Method:            p.Method,
		Amount:            p.Amount,
		Status:            p.Status,
		OrderInfo:         p.OrderInfo,
		TxnRef:            p.TxnRef,
		ResponseCode:      p.ResponseCode,
		BankCode:          p.BankCode,
		CardType:          p.CardType,
		TransactionNo:     p.TransactionNo,
		PayDate:           p.PayDate,
		TransactionStatus: p.TransactionStatus,
		UpdatedAt:         formatTime(p.UpdatedAt),
	}
}

func clientIP(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
