package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	domain "github.com/hometech/api/internal/domain"
	"github.com/hometech/api/internal/services"
)

type stubPaymentService struct {
	payment  domain.Payment
	err      error
	checkout services.StartCheckoutCommand
	params   map[string]string
	method   domain.PaymentMethod
}

func (s *stubPaymentService) GetPayment(_ context.Context, orderID string) (domain.Payment, error) {
	if s.err != nil {
		return domain.Payment{}, s.err
	}
	p := s.payment
	p.OrderID = orderID
	return p, nil
}

func (s *stubPaymentService) StartCheckout(_ context.Context, cmd services.StartCheckoutCommand) (services.CheckoutRedirect, error) {
	s.checkout = cmd
	if s.err != nil {
		return services.CheckoutRedirect{}, s.err
	}
	return services.CheckoutRedirect{
		OrderID:     cmd.OrderID,
		Method:      domain.PaymentMethodVNPay,
		RedirectURL: "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html?vnp_TxnRef=ref-1",
		TxnRef:      "ref-1",
	}, nil
}

func (s *stubPaymentService) HandleReturn(_ context.Context, method domain.PaymentMethod, params map[string]string) (domain.Payment, error) {
	s.method = method
	s.params = params
	if s.err != nil {
		return domain.Payment{}, s.err
	}
	return s.payment, nil
}

func newPaymentRouter(svc services.PaymentService) http.Handler {
	return NewRouter(WithPaymentRoutes(NewPaymentHandlers(svc).Routes))
}

func TestPaymentReturnMessages(t *testing.T) {
	cases := []struct {
		status  domain.PaymentStatus
		message string
	}{
		{domain.PaymentStatusSuccess, "Payment successful"},
		{domain.PaymentStatusFailed, "Payment failed"},
		{domain.PaymentStatusInvalidSignature, "Payment signature is invalid"},
		{domain.PaymentStatusPending, "Payment recorded"},
	}
	for _, tc := range cases {
		t.Run(string(tc.status), func(t *testing.T) {
			svc := &stubPaymentService{payment: domain.Payment{ID: "pay-1", OrderID: "order-1", Status: tc.status}}
			router := newPaymentRouter(svc)

			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/payments/vnpay/return?vnp_TxnRef=ref-1&vnp_ResponseCode=00", nil))

			env := decodeEnvelope(t, rr)
			if rr.Code != http.StatusOK || env.Message != tc.message {
				t.Fatalf("expected 200 %q, got %d %q", tc.message, rr.Code, env.Message)
			}
			if svc.method != domain.PaymentMethodVNPay || svc.params["vnp_TxnRef"] != "ref-1" || svc.params["vnp_ResponseCode"] != "00" {
				t.Fatalf("unexpected callback %s %v", svc.method, svc.params)
			}
		})
	}
}

func TestPaymentStripeReturnUsesStripeMethod(t *testing.T) {
	svc := &stubPaymentService{payment: domain.Payment{Status: domain.PaymentStatusSuccess}}
	rr := httptest.NewRecorder()
	newPaymentRouter(svc).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/payments/stripe/return?session_id=cs_test_1", nil))

	if rr.Code != http.StatusOK || svc.method != domain.PaymentMethodStripe {
		t.Fatalf("expected stripe return, got %d %s", rr.Code, svc.method)
	}
	if svc.params["session_id"] != "cs_test_1" {
		t.Fatalf("expected session id to be forwarded, got %v", svc.params)
	}
}

func TestPaymentCheckout(t *testing.T) {
	svc := &stubPaymentService{}
	router := newPaymentRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/payments/order-1/checkout?userId="+customerID+"&bankCode=NCB&locale=vn", nil)
	req.RemoteAddr = "203.0.113.7:51234"
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	env := decodeEnvelope(t, rr)
	if rr.Code != http.StatusOK {
		t.Fatalf("checkout: %d %s", rr.Code, rr.Body.String())
	}
	redirect := decodeData[checkoutPayload](t, env)
	if redirect.TxnRef != "ref-1" || redirect.OrderID != "order-1" {
		t.Fatalf("unexpected redirect %+v", redirect)
	}
	want := services.StartCheckoutCommand{OrderID: "order-1", UserID: customerID, ClientIP: "203.0.113.7", BankCode: "NCB", Locale: "vn"}
	if svc.checkout != want {
		t.Fatalf("expected %+v, got %+v", want, svc.checkout)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/payments/order-1/checkout", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without userId, got %d", rr.Code)
	}
}

func TestPaymentGetMapsServiceErrors(t *testing.T) {
	svc := &stubPaymentService{err: services.ErrPaymentNotFound}
	rr := httptest.NewRecorder()
	newPaymentRouter(svc).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/payments/order-9", nil))

	env := decodeEnvelope(t, rr)
	if rr.Code != http.StatusNotFound || env.Error != "payment_not_found" {
		t.Fatalf("expected payment_not_found, got %d %s", rr.Code, env.Error)
	}
}
