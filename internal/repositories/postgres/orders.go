package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	domain "github.com/hometech/api/internal/domain"
	ppostgres "github.com/hometech/api/internal/platform/postgres"
	"github.com/hometech/api/internal/repositories"
)

type orderRepository struct{ db *ppostgres.Provider }

const orderColumns = `id, order_number, user_id, status, payment_method, items, subtotal, discount, total_amount,
	voucher_id, voucher_code, delivery_address, created_at, updated_at, confirmed_at, shipped_at, completed_at,
	cancelled_at, cancelled_by`

type orderItemJSON struct {
	ProductID   string `json:"productId"`
	ProductName string `json:"productName"`
	Quantity    int    `json:"quantity"`
	UnitPrice   int64  `json:"unitPrice"`
}

type addressJSON struct {
	RecipientName string `json:"recipientName"`
	Phone         string `json:"phone"`
	Street        string `json:"street"`
	Ward          string `json:"ward"`
	District      string `json:"district"`
	City          string `json:"city"`
}

func (r orderRepository) Insert(ctx context.Context, o domain.Order) error {
	items := make([]orderItemJSON, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, orderItemJSON(item))
	}
	_, err := r.db.DB(ctx).Exec(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		o.ID, o.OrderNumber, o.UserID, string(o.Status), string(o.PaymentMethod), items, o.Subtotal, o.Discount,
		o.TotalAmount, o.VoucherID, o.VoucherCode, addressJSON(o.DeliveryAddress), o.CreatedAt, o.UpdatedAt,
		o.ConfirmedAt, o.ShippedAt, o.CompletedAt, o.CancelledAt, o.CancelledBy)
	return ppostgres.WrapError("orders.insert", err)
}

func (r orderRepository) Update(ctx context.Context, o domain.Order) error {
	tag, err := r.db.DB(ctx).Exec(ctx, `
		UPDATE orders SET status = $2, payment_method = $3, updated_at = $4, confirmed_at = $5, shipped_at = $6,
			completed_at = $7, cancelled_at = $8, cancelled_by = $9
		WHERE id = $1`,
		o.ID, string(o.Status), string(o.PaymentMethod), o.UpdatedAt, o.ConfirmedAt, o.ShippedAt,
		o.CompletedAt, o.CancelledAt, o.CancelledBy)
	if err != nil {
		return ppostgres.WrapError("orders.update", err)
	}
	if tag.RowsAffected() == 0 {
		return ppostgres.NotFound("orders.update", "order %s not found", o.ID)
	}
	return nil
}

// FindByID locks the row when called inside a transaction so concurrent status changes serialise.
func (r orderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	if r.db.InTx(ctx) {
		query += ` FOR UPDATE`
	}
	o, err := scanOrder(r.db.DB(ctx).QueryRow(ctx, query, orderID))
	return o, ppostgres.WrapError("orders.get", err)
}

func (r orderRepository) List(ctx context.Context, filter repositories.OrderListFilter) ([]domain.Order, error) {
	where, args := orderWhere(filter)
	query := `SELECT ` + orderColumns + ` FROM orders` + where + ` ORDER BY created_at DESC, id DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	rows, err := r.db.DB(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, ppostgres.WrapError("orders.list", err)
	}
	orders, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Order, error) {
		return scanOrder(row)
	})
	return orders, ppostgres.WrapError("orders.list", err)
}

func (r orderRepository) Count(ctx context.Context, filter repositories.OrderListFilter) (int64, error) {
	where, args := orderWhere(filter)
	var count int64
	err := r.db.DB(ctx).QueryRow(ctx, `SELECT count(*) FROM orders`+where, args...).Scan(&count)
	return count, ppostgres.WrapError("orders.count", err)
}

func orderWhere(filter repositories.OrderListFilter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		clauses = append(clauses, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}
	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func scanOrder(row pgx.Row) (domain.Order, error) {
	var (
		o             domain.Order
		status        string
		paymentMethod string
		items         []orderItemJSON
		address       addressJSON
	)
	err := row.Scan(&o.ID, &o.OrderNumber, &o.UserID, &status, &paymentMethod, &items, &o.Subtotal, &o.Discount,
		&o.TotalAmount, &o.VoucherID, &o.VoucherCode, &address, &o.CreatedAt, &o.UpdatedAt, &o.ConfirmedAt,
		&o.ShippedAt, &o.CompletedAt, &o.CancelledAt, &o.CancelledBy)
	if err != nil {
		return domain.Order{}, err
	}
	o.Status = domain.OrderStatus(status)
	o.PaymentMethod = domain.PaymentMethod(paymentMethod)
	o.DeliveryAddress = domain.DeliveryAddress(address)
	o.Items = make([]domain.OrderItem, 0, len(items))
	for _, item := range items {
		o.Items = append(o.Items, domain.OrderItem(item))
	}
	return o, nil
}

type paymentRepository struct{ db *ppostgres.Provider }

const paymentColumns = `id, order_id, method, amount, status, order_info, txn_ref, response_code, bank_code, card_type,
	transaction_no, pay_date, transaction_status, secure_hash, created_at, updated_at`

func (r paymentRepository) Insert(ctx context.Context, p domain.Payment) error {
	_, err := r.db.DB(ctx).Exec(ctx, `
		INSERT INTO payments (`+paymentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		p.ID, p.OrderID, string(p.Method), p.Amount, string(p.Status), p.OrderInfo, p.TxnRef, p.ResponseCode,
		p.BankCode, p.CardType, p.TransactionNo, p.PayDate, p.TransactionStatus, p.SecureHash, p.CreatedAt, p.UpdatedAt)
	return ppostgres.WrapError("payments.insert", err)
}

func (r paymentRepository) Update(ctx context.Context, p domain.Payment) error {
	tag, err := r.db.DB(ctx).Exec(ctx, `
		UPDATE payments SET status = $2, txn_ref = $3, response_code = $4, bank_code = $5, card_type = $6,
			transaction_no = $7, pay_date = $8, transaction_status = $9, secure_hash = $10, updated_at = $11
		WHERE id = $1`,
		p.ID, string(p.Status), p.TxnRef, p.ResponseCode, p.BankCode, p.CardType, p.TransactionNo, p.PayDate,
		p.TransactionStatus, p.SecureHash, p.UpdatedAt)
	if err != nil {
		return ppostgres.WrapError("payments.update", err)
	}
	if tag.RowsAffected() == 0 {
		return ppostgres.NotFound("payments.update", "payment %s not found", p.ID)
	}
	return nil
}

func (r paymentRepository) FindByOrder(ctx context.Context, orderID string) (domain.Payment, error) {
	p, err := scanPayment(r.db.DB(ctx).QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE order_id = $1`, orderID))
	return p, ppostgres.WrapError("payments.find_by_order", err)
}

func (r paymentRepository) FindByTxnRef(ctx context.Context, txnRef string) (domain.Payment, error) {
	if txnRef == "" {
		return domain.Payment{}, ppostgres.NotFound("payments.find_by_txn_ref", "empty transaction reference")
	}
	p, err := scanPayment(r.db.DB(ctx).QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE txn_ref = $1`, txnRef))
	return p, ppostgres.WrapError("payments.find_by_txn_ref", err)
}

func scanPayment(row pgx.Row) (domain.Payment, error) {
	var (
		p      domain.Payment
		method string
		status string
	)
	err := row.Scan(&p.ID, &p.OrderID, &method, &p.Amount, &status, &p.OrderInfo, &p.TxnRef, &p.ResponseCode,
		&p.BankCode, &p.CardType, &p.TransactionNo, &p.PayDate, &p.TransactionStatus, &p.SecureHash,
		&p.CreatedAt, &p.UpdatedAt)
	p.Method = domain.PaymentMethod(method)
	p.Status = domain.PaymentStatus(status)
	return p, err
}

type counterRepository struct{ db *ppostgres.Provider }

func (r counterRepository) Next(ctx context.Context, counterID string, step int64) (int64, error) {
	if step <= 0 {
		step = 1
	}
	var next int64
	err := r.db.DB(ctx).QueryRow(ctx, `
		INSERT INTO counters (id, current_value, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (id) DO UPDATE SET current_value = counters.current_value + EXCLUDED.current_value, updated_at = now()
		RETURNING current_value`, counterID, step).Scan(&next)
	return next, ppostgres.WrapError("counters.next", err)
}
