package handlers

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/hometech/api/internal/platform/httpx"
	"github.com/hometech/api/internal/platform/requestctx"
	"github.com/hometech/api/internal/services"
)

// errorCodes gives specific failures a stable code. Anything else falls back to its kind.
var errorCodes = []struct {
	err  error
	code string
}{
	{services.ErrCustomerNotFound, "customer_not_found"},
	{services.ErrProductNotFound, "product_not_found"},
	{services.ErrCartLineNotFound, "cart_line_not_found"},
	{services.ErrOrderNotFound, "order_not_found"},
	{services.ErrPaymentNotFound, "payment_not_found"},
	{services.ErrVoucherNotFound, "voucher_not_found"},
	{services.ErrCartEmpty, "cart_empty"},
	{services.ErrNoDeliveryAddress, "no_delivery_address"},
	{services.ErrInvalidPaymentMethod, "invalid_payment_method"},
	{services.ErrInvalidQuantity, "invalid_quantity"},
	{services.ErrQuantityLimit, "quantity_limit_exceeded"},
	{services.ErrOrderTooLarge, "order_too_large"},
	{services.ErrInvalidStatus, "invalid_status"},
	{services.ErrInvalidVoucher, "invalid_voucher"},
	{services.ErrCancelWindowExpired, "cancel_window_expired"},
	{services.ErrAlreadyCompleted, "order_already_completed"},
	{services.ErrInvalidTransition, "invalid_transition"},
	{services.ErrCheckoutConflict, "checkout_conflict"},
	{services.ErrVoucherCodeTaken, "voucher_code_taken"},
	{services.ErrPaymentNotPending, "payment_not_pending"},
}

type voucherRejection struct {
	Code   string                 `json:"code"`
	Reason services.VoucherReason `json:"reason"`
}

// writeServiceError maps the service error taxonomy onto the envelope and an HTTP status.
func writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	var voucherErr *services.VoucherError
	if errors.As(err, &voucherErr) {
		httpx.WriteError(ctx, w, httpx.NewError("voucher_rejected", voucherErr.Error(), http.StatusBadRequest).
			WithDetails(voucherRejection{Code: voucherErr.Code, Reason: voucherErr.Reason}))
		return
	}

	var status int
	var code string
	switch {
	case errors.Is(err, services.ErrValidation):
		status, code = http.StatusBadRequest, "invalid_request"
	case errors.Is(err, services.ErrUnauthorized):
		status, code = http.StatusForbidden, "forbidden"
	case errors.Is(err, services.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, services.ErrStateConflict):
		status, code = http.StatusConflict, "conflict"
	case errors.Is(err, services.ErrUnavailable):
		requestctx.Logger(ctx).Warn("dependency unavailable", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("unavailable", "service temporarily unavailable", http.StatusServiceUnavailable))
		return
	default:
		requestctx.Logger(ctx).Error("unexpected service error", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "unexpected error", http.StatusInternalServerError))
		return
	}

	for _, candidate := range errorCodes {
		if errors.Is(err, candidate.err) {
			code = candidate.code
			break
		}
	}
	httpx.WriteError(ctx, w, httpx.NewError(code, err.Error(), status))
}

func writeBadRequest(ctx context.Context, w http.ResponseWriter, message string) {
	httpx.WriteError(ctx, w, httpx.NewError("invalid_request", message, http.StatusBadRequest))
}
