package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/hometech/api/internal/domain"
	"github.com/hometech/api/internal/repositories"
)

var errVoucherRepositoryRequired = errors.New("voucher service: repository is required")

// VoucherServiceDeps wires the voucher ledger.
type VoucherServiceDeps struct {
	Vouchers    repositories.VoucherRepository
	UnitOfWork  repositories.UnitOfWork
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(context.Context, string, map[string]any)
}

type voucherService struct {
	vouchers repositories.VoucherRepository
	unit     repositories.UnitOfWork
	now      func() time.Time
	newID    func() string
	logger   func(context.Context, string, map[string]any)
}

// NewVoucherService constructs the voucher ledger service.
func NewVoucherService(deps VoucherServiceDeps) (VoucherService, error) {
	if deps.Vouchers == nil {
		return nil, errVoucherRepositoryRequired
	}
	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &voucherService{
		vouchers: deps.Vouchers,
		unit:     unit,
		now:      func() time.Time { return clock().UTC() },
		newID:    idGen,
		logger:   logger,
	}, nil
}

// Validate checks the voucher in a fixed order: existence, active flag, validity window, remaining
// usage, then minimum order value. It never mutates the voucher.
func (s *voucherService) Validate(ctx context.Context, code string, subtotal int64, now time.Time) (domain.Voucher, error) {
	normalized := normalizeVoucherCode(code)
	if normalized == "" {
		return domain.Voucher{}, &VoucherError{Code: code, Reason: VoucherReasonNotFound}
	}
	voucher, err := s.vouchers.FindByCode(ctx, normalized)
	if err != nil {
		if isRepoNotFound(err) {
			return domain.Voucher{}, &VoucherError{Code: normalized, Reason: VoucherReasonNotFound}
		}
		return domain.Voucher{}, mapRepositoryError(err, nil, nil)
	}
	switch {
	case !voucher.Active:
		return domain.Voucher{}, &VoucherError{Code: voucher.Code, Reason: VoucherReasonInactive}
	case now.Before(voucher.StartDate) || now.After(voucher.EndDate):
		return domain.Voucher{}, &VoucherError{Code: voucher.Code, Reason: VoucherReasonExpired}
	case voucher.UsedCount >= voucher.UsageLimit:
		return domain.Voucher{}, &VoucherError{Code: voucher.Code, Reason: VoucherReasonExhausted}
	case subtotal < voucher.MinOrderValue:
		return domain.Voucher{}, &VoucherError{Code: voucher.Code, Reason: VoucherReasonBelowMinimum}
	}
	return voucher, nil
}

func (s *voucherService) ComputeDiscount(voucher domain.Voucher, subtotal int64) int64 {
	return ComputeDiscount(voucher, subtotal)
}

// ComputeDiscount adds the percentage part (rounded half away from zero) and the fixed part, then
// clamps the result to [0, subtotal].
func ComputeDiscount(voucher domain.Voucher, subtotal int64) int64 {
	if subtotal <= 0 {
		return 0
	}
	var discount int64
	if voucher.DiscountPercent != nil && *voucher.DiscountPercent > 0 {
		discount += int64(math.Round(float64(subtotal) * *voucher.DiscountPercent / 100))
	}
	if voucher.DiscountAmount != nil && *voucher.DiscountAmount > 0 {
		discount += *voucher.DiscountAmount
	}
	return min(max(discount, 0), subtotal)
}

func (s *voucherService) ApplyAndIncrement(ctx context.Context, voucher domain.Voucher) (domain.Voucher, error) {
	updated, err := s.vouchers.IncrementUsage(ctx, voucher.ID)
	if err != nil {
		switch {
		case repositories.IsVoucherExhausted(err):
			return domain.Voucher{}, &VoucherError{Code: voucher.Code, Reason: VoucherReasonExhausted}
		case isRepoNotFound(err):
			return domain.Voucher{}, &VoucherError{Code: voucher.Code, Reason: VoucherReasonNotFound}
		}
		return domain.Voucher{}, mapRepositoryError(err, nil, ErrCheckoutConflict)
	}
	s.logger(ctx, "voucher.redeemed", map[string]any{
		"voucherID": updated.ID,
		"code":      updated.Code,
		"usedCount": updated.UsedCount,
		"limit":     updated.UsageLimit,
	})
	return updated, nil
}

func (s *voucherService) Apply(ctx context.Context, code string, orderTotal int64) (VoucherApplication, error) {
	if orderTotal < 0 {
		return VoucherApplication{}, fmt.Errorf("%w: order total must not be negative", ErrInvalidInput)
	}
	var result VoucherApplication
	err := s.unit.RunInTx(ctx, func(txCtx context.Context) error {
		voucher, err := s.Validate(txCtx, code, orderTotal, s.now())
		if err != nil {
			return err
		}
		updated, err := s.ApplyAndIncrement(txCtx, voucher)
		if err != nil {
			return err
		}
		discount := ComputeDiscount(voucher, orderTotal)
		result = VoucherApplication{
			Voucher:    updated,
			Discount:   discount,
			FinalTotal: max(orderTotal-discount, 0),
		}
		return nil
	})
	if err != nil {
		return VoucherApplication{}, err
	}
	return result, nil
}

func (s *voucherService) ListVouchers(ctx context.Context) ([]domain.Voucher, error) {
	vouchers, err := s.vouchers.List(ctx)
	if err != nil {
		return nil, mapRepositoryError(err, nil, nil)
	}
	return vouchers, nil
}

func (s *voucherService) GetVoucher(ctx context.Context, code string) (domain.Voucher, error) {
	normalized := normalizeVoucherCode(code)
	if normalized == "" {
		return domain.Voucher{}, ErrInvalidInput
	}
	voucher, err := s.vouchers.FindByCode(ctx, normalized)
	if err != nil {
		return domain.Voucher{}, mapRepositoryError(err, ErrVoucherNotFound, nil)
	}
	return voucher, nil
}

func (s *voucherService) CreateVoucher(ctx context.Context, cmd VoucherCommand) (domain.Voucher, error) {
	if err := validateVoucherCommand(cmd); err != nil {
		return domain.Voucher{}, err
	}
	now := s.now()
	voucher := applyVoucherCommand(domain.Voucher{
		ID:        s.newID(),
		UsedCount: 0,
		CreatedAt: now,
	}, cmd)
	voucher.UpdatedAt = now

	if err := s.vouchers.Insert(ctx, voucher); err != nil {
		return domain.Voucher{}, mapRepositoryError(err, nil, ErrVoucherCodeTaken)
	}
	s.logger(ctx, "voucher.created", map[string]any{"voucherID": voucher.ID, "code": voucher.Code})
	return voucher, nil
}

func (s *voucherService) UpdateVoucher(ctx context.Context, voucherID string, cmd VoucherCommand) (domain.Voucher, error) {
	id := strings.TrimSpace(voucherID)
	if id == "" {
		return domain.Voucher{}, ErrInvalidInput
	}
	if err := validateVoucherCommand(cmd); err != nil {
		return domain.Voucher{}, err
	}

	var voucher domain.Voucher
	err := s.unit.RunInTx(ctx, func(txCtx context.Context) error {
		current, err := s.vouchers.FindByID(txCtx, id)
		if err != nil {
			return mapRepositoryError(err, ErrVoucherNotFound, nil)
		}
		if cmd.UsageLimit < current.UsedCount {
			return fmt.Errorf("%w: usageLimit %d is below usedCount %d", ErrInvalidVoucher, cmd.UsageLimit, current.UsedCount)
		}
		voucher = applyVoucherCommand(current, cmd)
		voucher.UpdatedAt = s.now()
		if err := s.vouchers.Update(txCtx, voucher); err != nil {
			if repositories.IsVoucherExhausted(err) {
				return fmt.Errorf("%w: usageLimit %d is below usedCount", ErrInvalidVoucher, cmd.UsageLimit)
			}
			return mapRepositoryError(err, ErrVoucherNotFound, ErrVoucherCodeTaken)
		}
		return nil
	})
	if err != nil {
		return domain.Voucher{}, err
	}
	s.logger(ctx, "voucher.updated", map[string]any{"voucherID": voucher.ID, "code": voucher.Code})
	return voucher, nil
}

func (s *voucherService) DeleteVoucher(ctx context.Context, voucherID string) error {
	id := strings.TrimSpace(voucherID)
	if id == "" {
		return ErrInvalidInput
	}
	if err := s.vouchers.Delete(ctx, id); err != nil {
		return mapRepositoryError(err, ErrVoucherNotFound, nil)
	}
	s.logger(ctx, "voucher.deleted", map[string]any{"voucherID": id})
	return nil
}

func validateVoucherCommand(cmd VoucherCommand) error {
	var problems []string
	if normalizeVoucherCode(cmd.Code) == "" {
		problems = append(problems, "code is required")
	}
	if p := cmd.DiscountPercent; p != nil && (*p < 0 || *p > 100 || math.IsNaN(*p)) {
		problems = append(problems, "discountPercent must be between 0 and 100")
	}
	if a := cmd.DiscountAmount; a != nil && *a < 0 {
		problems = append(problems, "discountAmount must not be negative")
	}
	hasPercent := cmd.DiscountPercent != nil && *cmd.DiscountPercent > 0
	hasAmount := cmd.DiscountAmount != nil && *cmd.DiscountAmount > 0
	if !hasPercent && !hasAmount {
		problems = append(problems, "discountPercent or discountAmount must be positive")
	}
	if cmd.MinOrderValue < 0 {
		problems = append(problems, "minOrderValue must not be negative")
	}
	if cmd.UsageLimit <= 0 {
		problems = append(problems, "usageLimit must be positive")
	}
	if cmd.StartDate.IsZero() || cmd.EndDate.IsZero() {
		problems = append(problems, "startDate and endDate are required")
	} else if cmd.EndDate.Before(cmd.StartDate) {
		problems = append(problems, "startDate must not be after endDate")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidVoucher, strings.Join(problems, "; "))
	}
	return nil
}

func applyVoucherCommand(voucher domain.Voucher, cmd VoucherCommand) domain.Voucher {
	voucher.Code = normalizeVoucherCode(cmd.Code)
	voucher.DiscountPercent = cmd.DiscountPercent
	voucher.DiscountAmount = cmd.DiscountAmount
	voucher.MinOrderValue = cmd.MinOrderValue
	voucher.UsageLimit = cmd.UsageLimit
	voucher.StartDate = cmd.StartDate.UTC()
	voucher.EndDate = cmd.EndDate.UTC()
	voucher.Active = cmd.Active
	return voucher
}

func normalizeVoucherCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
