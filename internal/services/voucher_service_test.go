package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	domain "github.com/hometech/api/internal/domain"
)

func TestVoucherValidateReasons(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.createVoucher(t, percentVoucher("SALE10", 10, 1_000_000, 5))

	inactive := percentVoucher("PAUSED", 10, 0, 5)
	inactive.Active = false
	f.createVoucher(t, inactive)

	expired := percentVoucher("OLD", 10, 0, 5)
	expired.StartDate = baseTime.Add(-10 * 24 * time.Hour)
	expired.EndDate = baseTime.Add(-24 * time.Hour)
	f.createVoucher(t, expired)

	future := percentVoucher("SOON", 10, 0, 5)
	future.StartDate = baseTime.Add(24 * time.Hour)
	f.createVoucher(t, future)

	used := f.createVoucher(t, amountVoucher("ONCE", 50_000, 1))
	if _, err := f.vouchers.ApplyAndIncrement(ctx, used); err != nil {
		t.Fatalf("consume ONCE: %v", err)
	}

	tests := []struct {
		code     string
		subtotal int64
		reason   VoucherReason
	}{
		{"MISSING", 2_000_000, VoucherReasonNotFound},
		{"PAUSED", 2_000_000, VoucherReasonInactive},
		{"OLD", 2_000_000, VoucherReasonExpired},
		{"SOON", 2_000_000, VoucherReasonExpired},
		{"ONCE", 2_000_000, VoucherReasonExhausted},
		{"SALE10", 999_999, VoucherReasonBelowMinimum},
	}
	for _, tc := range tests {
		t.Run(tc.code, func(t *testing.T) {
			_, err := f.vouchers.Validate(ctx, tc.code, tc.subtotal, baseTime)
			if !IsVoucherReason(err, tc.reason) {
				t.Fatalf("expected reason %s, got %v", tc.reason, err)
			}
			if !errors.Is(err, ErrVoucher) {
				t.Fatalf("expected voucher error kind, got %v", err)
			}
		})
	}

	voucher, err := f.vouchers.Validate(ctx, " sale10 ", 1_000_000, baseTime)
	if err != nil {
		t.Fatalf("expected case-insensitive code to validate: %v", err)
	}
	if voucher.UsedCount != 0 {
		t.Fatalf("validate must not consume the voucher, usedCount=%d", voucher.UsedCount)
	}
}

func TestComputeDiscount(t *testing.T) {
	percent := func(p float64) *float64 { return &p }
	amount := func(a int64) *int64 { return &a }

	tests := []struct {
		name     string
		voucher  domain.Voucher
		subtotal int64
		want     int64
	}{
		{"percent", domain.Voucher{DiscountPercent: percent(10)}, 11_000_000, 1_100_000},
		{"percent rounds half away from zero", domain.Voucher{DiscountPercent: percent(15)}, 10_001, 1_500},
		{"percent rounds up at half", domain.Voucher{DiscountPercent: percent(50)}, 3, 2},
		{"fixed amount", domain.Voucher{DiscountAmount: amount(200_000)}, 1_000_000, 200_000},
		{"percent plus amount", domain.Voucher{DiscountPercent: percent(10), DiscountAmount: amount(50_000)}, 1_000_000, 150_000},
		{"clamped to subtotal", domain.Voucher{DiscountAmount: amount(5_000_000)}, 1_000_000, 1_000_000},
		{"hundred percent", domain.Voucher{DiscountPercent: percent(100)}, 750_000, 750_000},
		{"zero subtotal", domain.Voucher{DiscountAmount: amount(10_000)}, 0, 0},
		{"no discount configured", domain.Voucher{}, 1_000_000, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := ComputeDiscount(tc.voucher, tc.subtotal); got != tc.want {
				t.Fatalf("ComputeDiscount() = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestVoucherApplyNeverExceedsUsageLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.createVoucher(t, amountVoucher("FLASH", 100_000, 3))

	const attempts = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		exhausted int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.vouchers.Apply(ctx, "FLASH", 1_000_000)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case IsVoucherReason(err, VoucherReasonExhausted):
				exhausted++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 3 || exhausted != attempts-3 {
		t.Fatalf("expected 3 redemptions and %d rejections, got %d and %d", attempts-3, succeeded, exhausted)
	}
	voucher, err := f.vouchers.GetVoucher(ctx, "flash")
	if err != nil {
		t.Fatalf("get voucher: %v", err)
	}
	if voucher.UsedCount != voucher.UsageLimit {
		t.Fatalf("expected usedCount to stop at the limit, got %d/%d", voucher.UsedCount, voucher.UsageLimit)
	}
}

func TestVoucherApplyReturnsFinalTotal(t *testing.T) {
	f := newFixture(t)
	f.createVoucher(t, percentVoucher("SALE10", 10, 0, 10))

	result, err := f.vouchers.Apply(context.Background(), "sale10", 2_500_000)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if result.Discount != 250_000 || result.FinalTotal != 2_250_000 {
		t.Fatalf("unexpected application %+v", result)
	}
	if result.Voucher.UsedCount != 1 {
		t.Fatalf("expected usedCount 1, got %d", result.Voucher.UsedCount)
	}
}

func TestVoucherCRUD(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created := f.createVoucher(t, percentVoucher(" welcome ", 5, 0, 2))
	if created.Code != "WELCOME" {
		t.Fatalf("expected normalised code, got %q", created.Code)
	}

	_, err := f.vouchers.CreateVoucher(ctx, percentVoucher("Welcome", 5, 0, 2))
	expectErrorIs(t, err, ErrVoucherCodeTaken, ErrStateConflict)

	bad := percentVoucher("BROKEN", 150, 0, 0)
	bad.EndDate = bad.StartDate.Add(-time.Hour)
	_, err = f.vouchers.CreateVoucher(ctx, bad)
	expectErrorIs(t, err, ErrInvalidVoucher, ErrValidation)

	if _, err := f.vouchers.Apply(ctx, "WELCOME", 100_000); err != nil {
		t.Fatalf("apply: %v", err)
	}
	_, err = f.vouchers.UpdateVoucher(ctx, created.ID, percentVoucher("WELCOME", 5, 0, 0))
	expectErrorIs(t, err, ErrValidation)

	shrunk := percentVoucher("WELCOME", 5, 0, 1)
	updated, err := f.vouchers.UpdateVoucher(ctx, created.ID, shrunk)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.UsedCount != 1 || updated.UsageLimit != 1 || !updated.CreatedAt.Equal(created.CreatedAt) {
		t.Fatalf("update must keep usage history, got %+v", updated)
	}

	list, err := f.vouchers.ListVouchers(ctx)
	if err != nil || len(list) != 1 {
		t.Fatalf("expected one voucher, got %d (%v)", len(list), err)
	}

	if err := f.vouchers.DeleteVoucher(ctx, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	err = f.vouchers.DeleteVoucher(ctx, created.ID)
	expectErrorIs(t, err, ErrVoucherNotFound)
	_, err = f.vouchers.GetVoucher(ctx, "WELCOME")
	expectErrorIs(t, err, ErrNotFound)
}
