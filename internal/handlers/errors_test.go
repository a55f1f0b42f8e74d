package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hometech/api/internal/services"
)

func TestWriteServiceError(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		status  int
		code    string
		message string
	}{
		{"wrapped not found", fmt.Errorf("load: %w", services.ErrOrderNotFound), http.StatusNotFound, "order_not_found", "load: order not found"},
		{"bare kind", services.ErrNotFound, http.StatusNotFound, "not_found", "not found"},
		{"ownership", services.ErrOrderNotOwned, http.StatusForbidden, "forbidden", "order does not belong to the customer"},
		{"validation", services.ErrCartEmpty, http.StatusBadRequest, "cart_empty", "cart is empty"},
		{"quantity cap", services.ErrQuantityLimit, http.StatusBadRequest, "quantity_limit_exceeded", "quantity exceeds the per-line limit"},
		{"conflict", services.ErrCartConflict, http.StatusConflict, "conflict", "cart was modified concurrently"},
		{"unavailable", fmt.Errorf("%w: firestore down", services.ErrUnavailable), http.StatusServiceUnavailable, "unavailable", "service temporarily unavailable"},
		{"unexpected", errors.New("disk on fire"), http.StatusInternalServerError, "internal_error", "unexpected error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			writeServiceError(context.Background(), rr, tc.err)
			env := decodeEnvelope(t, rr)
			if rr.Code != tc.status || env.Error != tc.code || env.Message != tc.message {
				t.Fatalf("expected %d %s %q, got %d %s %q", tc.status, tc.code, tc.message, rr.Code, env.Error, env.Message)
			}
		})
	}
}

func TestWriteServiceErrorVoucherRejection(t *testing.T) {
	rr := httptest.NewRecorder()
	writeServiceError(context.Background(), rr, &services.VoucherError{Code: "SALE10", Reason: services.VoucherReasonBelowMinimum})

	env := decodeEnvelope(t, rr)
	if rr.Code != http.StatusBadRequest || env.Error != "voucher_rejected" {
		t.Fatalf("expected voucher_rejected, got %d %s", rr.Code, env.Error)
	}
	details := decodeData[voucherRejection](t, env)
	if details.Code != "SALE10" || details.Reason != services.VoucherReasonBelowMinimum {
		t.Fatalf("unexpected details %+v", details)
	}
}
