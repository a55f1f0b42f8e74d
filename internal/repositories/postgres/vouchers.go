package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	domain "github.com/hometech/api/internal/domain"
	ppostgres "github.com/hometech/api/internal/platform/postgres"
	"github.com/hometech/api/internal/repositories"
)

type voucherRepository struct{ db *ppostgres.Provider }

const voucherColumns = `id, code, discount_percent, discount_amount, min_order_value, usage_limit, used_count,
	start_date, end_date, active, created_at, updated_at`

func (r voucherRepository) Insert(ctx context.Context, v domain.Voucher) error {
	_, err := r.db.DB(ctx).Exec(ctx, `
		INSERT INTO vouchers (`+voucherColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		v.ID, strings.ToUpper(v.Code), v.DiscountPercent, v.DiscountAmount, v.MinOrderValue, v.UsageLimit, v.UsedCount,
		v.StartDate, v.EndDate, v.Active, v.CreatedAt, v.UpdatedAt)
	return ppostgres.WrapError("vouchers.insert", err)
}

// Update leaves used_count to IncrementUsage and refuses a usage limit below the current count, so an
// admin edit can never roll back a concurrent redemption.
func (r voucherRepository) Update(ctx context.Context, v domain.Voucher) error {
	tag, err := r.db.DB(ctx).Exec(ctx, `
		UPDATE vouchers SET code = $2, discount_percent = $3, discount_amount = $4, min_order_value = $5,
			usage_limit = $6, start_date = $7, end_date = $8, active = $9, updated_at = $10
		WHERE id = $1 AND used_count <= $6`,
		v.ID, strings.ToUpper(v.Code), v.DiscountPercent, v.DiscountAmount, v.MinOrderValue,
		v.UsageLimit, v.StartDate, v.EndDate, v.Active, v.UpdatedAt)
	if err != nil {
		return ppostgres.WrapError("vouchers.update", err)
	}
	if tag.RowsAffected() == 0 {
		if _, findErr := r.FindByID(ctx, v.ID); findErr != nil {
			return findErr
		}
		return repositories.NewVoucherUsageError(repositories.VoucherUsageExhausted, v.ID, "usage limit below used count")
	}
	return nil
}

func (r voucherRepository) Delete(ctx context.Context, voucherID string) error {
	tag, err := r.db.DB(ctx).Exec(ctx, `DELETE FROM vouchers WHERE id = $1`, voucherID)
	if err != nil {
		return ppostgres.WrapError("vouchers.delete", err)
	}
	if tag.RowsAffected() == 0 {
		return ppostgres.NotFound("vouchers.delete", "voucher %s not found", voucherID)
	}
	return nil
}

// FindByID locks the row inside a transaction so a read-modify-write cannot interleave with
// IncrementUsage.
func (r voucherRepository) FindByID(ctx context.Context, voucherID string) (domain.Voucher, error) {
	query := `SELECT ` + voucherColumns + ` FROM vouchers WHERE id = $1`
	if r.db.InTx(ctx) {
		query += ` FOR UPDATE`
	}
	v, err := scanVoucher(r.db.DB(ctx).QueryRow(ctx, query, voucherID))
	return v, ppostgres.WrapError("vouchers.get", err)
}

func (r voucherRepository) FindByCode(ctx context.Context, code string) (domain.Voucher, error) {
	v, err := scanVoucher(r.db.DB(ctx).QueryRow(ctx,
		`SELECT `+voucherColumns+` FROM vouchers WHERE code = $1`, strings.ToUpper(strings.TrimSpace(code))))
	return v, ppostgres.WrapError("vouchers.find_by_code", err)
}

func (r voucherRepository) List(ctx context.Context) ([]domain.Voucher, error) {
	rows, err := r.db.DB(ctx).Query(ctx, `SELECT `+voucherColumns+` FROM vouchers ORDER BY code`)
	if err != nil {
		return nil, ppostgres.WrapError("vouchers.list", err)
	}
	vouchers, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Voucher, error) {
		return scanVoucher(row)
	})
	return vouchers, ppostgres.WrapError("vouchers.list", err)
}

// IncrementUsage relies on a single conditional UPDATE so concurrent redemptions never exceed the limit.
func (r voucherRepository) IncrementUsage(ctx context.Context, voucherID string) (domain.Voucher, error) {
	if strings.TrimSpace(voucherID) == "" {
		return domain.Voucher{}, repositories.NewVoucherUsageError(repositories.VoucherUsageInvalidInput, "", "voucher id is required")
	}
	v, err := scanVoucher(r.db.DB(ctx).QueryRow(ctx, `
		UPDATE vouchers SET used_count = used_count + 1, updated_at = now()
		WHERE id = $1 AND used_count < usage_limit
		RETURNING `+voucherColumns, voucherID))
	if err == nil {
		return v, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.Voucher{}, ppostgres.WrapError("vouchers.increment_usage", err)
	}
	if _, findErr := r.FindByID(ctx, voucherID); findErr != nil {
		return domain.Voucher{}, findErr
	}
	return domain.Voucher{}, repositories.NewVoucherUsageError(repositories.VoucherUsageExhausted, voucherID, "usage limit reached")
}

func scanVoucher(row pgx.Row) (domain.Voucher, error) {
	var v domain.Voucher
	err := row.Scan(&v.ID, &v.Code, &v.DiscountPercent, &v.DiscountAmount, &v.MinOrderValue, &v.UsageLimit, &v.UsedCount,
		&v.StartDate, &v.EndDate, &v.Active, &v.CreatedAt, &v.UpdatedAt)
	return v, err
}
