package repositories

import (
	"errors"
	"fmt"
)

// VoucherUsageCode enumerates failure reasons for voucher usage updates.
type VoucherUsageCode string

const (
	// VoucherUsageExhausted indicates usedCount already reached usageLimit.
	VoucherUsageExhausted VoucherUsageCode = "voucher_usage_exhausted"
	// VoucherUsageInvalidInput indicates the caller supplied an empty voucher id.
	VoucherUsageInvalidInput VoucherUsageCode = "voucher_usage_invalid_input"
)

// VoucherUsageError is returned by VoucherRepository.IncrementUsage when the conditional update
// cannot be applied.
type VoucherUsageError struct {
	VoucherID string
	Code      VoucherUsageCode
	Message   string
}

// Error implements the error interface.
func (e *VoucherUsageError) Error() string {
	if e == nil {
		return ""
	}
	if e.VoucherID != "" {
		return fmt.Sprintf("voucher %s: %s", e.VoucherID, e.Message)
	}
	return e.Message
}

// NewVoucherUsageError constructs a typed voucher usage error.
func NewVoucherUsageError(code VoucherUsageCode, voucherID string, message string) *VoucherUsageError {
	if message == "" {
		message = string(code)
	}
	return &VoucherUsageError{VoucherID: voucherID, Code: code, Message: message}
}

// IsVoucherExhausted reports whether err is a usage-limit breach.
func IsVoucherExhausted(err error) bool {
	var usageErr *VoucherUsageError
	return errors.As(err, &usageErr) && usageErr.Code == VoucherUsageExhausted
}
