package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/hometech/api/internal/domain"
	pfirestore "github.com/hometech/api/internal/platform/firestore"
	"github.com/hometech/api/internal/repositories"
)

const (
	voucherCollection     = "vouchers"
	voucherCodeCollection = "voucherCodes"
)

// VoucherRepository persists vouchers and a code index document per voucher so codes stay unique.
type VoucherRepository struct {
	provider *pfirestore.Provider
	vouchers *pfirestore.BaseRepository[voucherDocument]
	codes    *pfirestore.BaseRepository[voucherCodeDocument]
}

// NewVoucherRepository constructs a Firestore-backed voucher repository.
func NewVoucherRepository(provider *pfirestore.Provider) (*VoucherRepository, error) {
	if provider == nil {
		return nil, errors.New("voucher repository requires firestore provider")
	}
	return &VoucherRepository{
		provider: provider,
		vouchers: pfirestore.NewBaseRepository[voucherDocument](provider, voucherCollection),
		codes:    pfirestore.NewBaseRepository[voucherCodeDocument](provider, voucherCodeCollection),
	}, nil
}

// Insert creates the voucher and claims its code.
func (r *VoucherRepository) Insert(ctx context.Context, voucher domain.Voucher) error {
	return r.provider.RunInTx(ctx, func(ctx context.Context) error {
		if err := r.codes.Create(ctx, codeKey(voucher.Code), voucherCodeDocument{VoucherID: voucher.ID}); err != nil {
			return err
		}
		return r.vouchers.Create(ctx, voucher.ID, fromDomainVoucher(voucher))
	})
}

// Update overwrites the voucher, moving the code claim when the code changed.
func (r *VoucherRepository) Update(ctx context.Context, voucher domain.Voucher) error {
	return r.provider.RunInTx(ctx, func(ctx context.Context) error {
		current, err := r.vouchers.Get(ctx, voucher.ID)
		if err != nil {
			return err
		}
		if oldKey, newKey := codeKey(current.Data.Code), codeKey(voucher.Code); oldKey != newKey {
			if err := r.codes.Create(ctx, newKey, voucherCodeDocument{VoucherID: voucher.ID}); err != nil {
				return err
			}
			if err := r.codes.Delete(ctx, oldKey); err != nil {
				return err
			}
		}
		return r.vouchers.Set(ctx, voucher.ID, fromDomainVoucher(voucher))
	})
}

// Delete removes the voucher and releases its code.
func (r *VoucherRepository) Delete(ctx context.Context, voucherID string) error {
	return r.provider.RunInTx(ctx, func(ctx context.Context) error {
		current, err := r.vouchers.Get(ctx, voucherID)
		if err != nil {
			return err
		}
		if err := r.codes.Delete(ctx, codeKey(current.Data.Code)); err != nil {
			return err
		}
		return r.vouchers.Delete(ctx, voucherID, firestore.Exists)
	})
}

// FindByID loads a voucher by ID.
func (r *VoucherRepository) FindByID(ctx context.Context, voucherID string) (domain.Voucher, error) {
	doc, err := r.vouchers.Get(ctx, voucherID)
	if err != nil {
		return domain.Voucher{}, err
	}
	return toDomainVoucher(doc), nil
}

// FindByCode loads a voucher by its case-insensitive code.
func (r *VoucherRepository) FindByCode(ctx context.Context, code string) (domain.Voucher, error) {
	docs, err := r.vouchers.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("code", "==", codeKey(code)).Limit(1)
	})
	if err != nil {
		return domain.Voucher{}, err
	}
	if len(docs) == 0 {
		return domain.Voucher{}, notFoundError("vouchers.find_by_code")
	}
	return toDomainVoucher(docs[0]), nil
}

// List returns every voucher ordered by code.
func (r *VoucherRepository) List(ctx context.Context) ([]domain.Voucher, error) {
	docs, err := r.vouchers.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.OrderBy("code", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}
	vouchers := make([]domain.Voucher, 0, len(docs))
	for _, doc := range docs {
		vouchers = append(vouchers, toDomainVoucher(doc))
	}
	return vouchers, nil
}

// IncrementUsage reads and bumps usedCount inside a transaction. Callers already in a transaction
// must invoke it before issuing writes.
func (r *VoucherRepository) IncrementUsage(ctx context.Context, voucherID string) (domain.Voucher, error) {
	if strings.TrimSpace(voucherID) == "" {
		return domain.Voucher{}, repositories.NewVoucherUsageError(repositories.VoucherUsageInvalidInput, "", "voucher id is required")
	}

	var updated domain.Voucher
	err := r.provider.RunInTx(ctx, func(ctx context.Context) error {
		doc, err := r.vouchers.Get(ctx, voucherID)
		if err != nil {
			return err
		}
		if doc.Data.UsedCount >= doc.Data.UsageLimit {
			return repositories.NewVoucherUsageError(repositories.VoucherUsageExhausted, voucherID, "usage limit reached")
		}
		now := time.Now().UTC()
		if err := r.vouchers.Update(ctx, voucherID, []firestore.Update{
			{Path: "usedCount", Value: firestore.Increment(1)},
			{Path: "updatedAt", Value: now},
		}); err != nil {
			return err
		}
		updated = toDomainVoucher(doc)
		updated.UsedCount++
		updated.UpdatedAt = now
		return nil
	})
	if err != nil {
		var usageErr *repositories.VoucherUsageError
		if errors.As(err, &usageErr) {
			return domain.Voucher{}, usageErr
		}
		return domain.Voucher{}, err
	}
	return updated, nil
}

type voucherDocument struct {
	Code            string    `firestore:"code"`
	DiscountPercent *float64  `firestore:"discountPercent,omitempty"`
	DiscountAmount  *int64    `firestore:"discountAmount,omitempty"`
	MinOrderValue   int64     `firestore:"minOrderValue"`
	UsageLimit      int       `firestore:"usageLimit"`
	UsedCount       int       `firestore:"usedCount"`
	StartDate       time.Time `firestore:"startDate"`
	EndDate         time.Time `firestore:"endDate"`
	Active          bool      `firestore:"active"`
	CreatedAt       time.Time `firestore:"createdAt"`
	UpdatedAt       time.Time `firestore:"updatedAt"`
}

type voucherCodeDocument struct {
	VoucherID string `firestore:"voucherId"`
}

func codeKey(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func fromDomainVoucher(v domain.Voucher) voucherDocument {
	return voucherDocument{
		Code:            codeKey(v.Code),
		DiscountPercent: v.DiscountPercent,
		DiscountAmount:  v.DiscountAmount,
		MinOrderValue:   v.MinOrderValue,
		UsageLimit:      v.UsageLimit,
		UsedCount:       v.UsedCount,
		StartDate:       v.StartDate.UTC(),
		EndDate:         v.EndDate.UTC(),
		Active:          v.Active,
		CreatedAt:       v.CreatedAt.UTC(),
		UpdatedAt:       v.UpdatedAt.UTC(),
	}
}

func toDomainVoucher(doc pfirestore.Document[voucherDocument]) domain.Voucher {
	return domain.Voucher{
		ID:              doc.ID,
		Code:            doc.Data.Code,
		DiscountPercent: doc.Data.DiscountPercent,
		DiscountAmount:  doc.Data.DiscountAmount,
		MinOrderValue:   doc.Data.MinOrderValue,
		UsageLimit:      doc.Data.UsageLimit,
		UsedCount:       doc.Data.UsedCount,
		StartDate:       doc.Data.StartDate.UTC(),
		EndDate:         doc.Data.EndDate.UTC(),
		Active:          doc.Data.Active,
		CreatedAt:       doc.Data.CreatedAt.UTC(),
		UpdatedAt:       doc.Data.UpdatedAt.UTC(),
	}
}
