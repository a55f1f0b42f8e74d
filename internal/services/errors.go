package services

import (
	"errors"
	"fmt"

	"github.com/hometech/api/internal/repositories"
)

// Error taxonomy shared by every service. Handlers map these kinds to HTTP status codes with errors.Is.
var (
	ErrNotFound      = errors.New("not found")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrValidation    = errors.New("validation failed")
	ErrVoucher       = errors.New("voucher rejected")
	ErrStateConflict = errors.New("state conflict")
	ErrUnavailable   = errors.New("service unavailable")
)

// kindError is a sentinel that also matches its taxonomy kind under errors.Is.
type kindError struct {
	kind error
	msg  string
}

func newKindError(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

func (e *kindError) Error() string        { return e.msg }
func (e *kindError) Is(target error) bool { return target == e.kind }

var (
	ErrCustomerNotFound = newKindError(ErrNotFound, "customer not found")
	ErrProductNotFound  = newKindError(ErrNotFound, "product not found")
	ErrCartLineNotFound = newKindError(ErrNotFound, "cart line not found")
	ErrOrderNotFound    = newKindError(ErrNotFound, "order not found")
	ErrPaymentNotFound  = newKindError(ErrNotFound, "payment not found")
	ErrVoucherNotFound  = newKindError(ErrNotFound, "voucher not found")

	ErrCartLineNotOwned = newKindError(ErrUnauthorized, "cart line does not belong to the customer")
	ErrOrderNotOwned    = newKindError(ErrUnauthorized, "order does not belong to the customer")

	ErrInvalidInput         = newKindError(ErrValidation, "invalid input")
	ErrInvalidQuantity      = newKindError(ErrValidation, "quantity must be at least 1")
	ErrQuantityLimit        = newKindError(ErrValidation, "quantity exceeds the per-line limit")
	ErrOrderTooLarge        = newKindError(ErrValidation, "order total exceeds the supported amount")
	ErrCartEmpty            = newKindError(ErrValidation, "cart is empty")
	ErrNoDeliveryAddress    = newKindError(ErrValidation, "customer has no delivery address")
	ErrInvalidPaymentMethod = newKindError(ErrValidation, "unsupported payment method")
	ErrInvalidStatus        = newKindError(ErrValidation, "unknown order status")
	ErrInvalidVoucher       = newKindError(ErrValidation, "invalid voucher definition")

	ErrCancelWindowExpired = newKindError(ErrStateConflict, "order can no longer be cancelled")
	ErrAlreadyCompleted    = newKindError(ErrStateConflict, "order is already completed")
	ErrInvalidTransition   = newKindError(ErrStateConflict, "order status transition not allowed")
	ErrCheckoutConflict    = newKindError(ErrStateConflict, "cart changed during checkout")
	ErrCartConflict        = newKindError(ErrStateConflict, "cart was modified concurrently")
	ErrVoucherCodeTaken    = newKindError(ErrStateConflict, "voucher code already exists")
	ErrPaymentNotPending   = newKindError(ErrStateConflict, "payment is not awaiting the gateway")
)

// VoucherReason enumerates why a voucher was rejected.
type VoucherReason string

const (
	VoucherReasonNotFound     VoucherReason = "not_found"
	VoucherReasonInactive     VoucherReason = "inactive"
	VoucherReasonExpired      VoucherReason = "expired"
	VoucherReasonExhausted    VoucherReason = "exhausted"
	VoucherReasonBelowMinimum VoucherReason = "below_minimum"
)

// VoucherError reports a voucher rejection together with a customer-facing message.
type VoucherError struct {
	Code   string
	Reason VoucherReason
}

func (e *VoucherError) Error() string {
	switch e.Reason {
	case VoucherReasonNotFound:
		return fmt.Sprintf("voucher %q does not exist", e.Code)
	case VoucherReasonInactive:
		return fmt.Sprintf("voucher %q is not active", e.Code)
	case VoucherReasonExpired:
		return fmt.Sprintf("voucher %q is outside its validity period", e.Code)
	case VoucherReasonExhausted:
		return fmt.Sprintf("voucher %q has reached its usage limit", e.Code)
	case VoucherReasonBelowMinimum:
		return fmt.Sprintf("order total is below the minimum required by voucher %q", e.Code)
	default:
		return fmt.Sprintf("voucher %q rejected", e.Code)
	}
}

// Is matches ErrVoucher so callers can branch on the taxonomy kind.
func (e *VoucherError) Is(target error) bool { return target == ErrVoucher }

// IsVoucherReason reports whether err is a VoucherError with the given reason.
func IsVoucherReason(err error, reason VoucherReason) bool {
	var voucherErr *VoucherError
	return errors.As(err, &voucherErr) && voucherErr.Reason == reason
}

// mapRepositoryError converts storage failures into the taxonomy. notFound is used for lookups that
// miss; conflicts surface as conflict.
func mapRepositoryError(err error, notFound error, conflict error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound() && notFound != nil:
			return &storageError{kind: notFound, cause: err}
		case repoErr.IsConflict() && conflict != nil:
			return &storageError{kind: conflict, cause: err}
		case repoErr.IsUnavailable():
			return &storageError{kind: ErrUnavailable, cause: err}
		}
	}
	return err
}

// storageError reports a translated repository failure. Its message is the taxonomy text only, so it
// is safe to show to customers. The repository error stays reachable through errors.As.
type storageError struct {
	kind  error
	cause error
}

func (e *storageError) Error() string   { return e.kind.Error() }
func (e *storageError) Unwrap() []error { return []error{e.kind, e.cause} }

func isRepoNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}
