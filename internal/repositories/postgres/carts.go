package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	domain "github.com/hometech/api/internal/domain"
	ppostgres "github.com/hometech/api/internal/platform/postgres"
)

type cartRepository struct{ db *ppostgres.Provider }

const cartLineColumns = `id, cart_id, product_id, quantity, created_at, updated_at`

func (r cartRepository) FindByUser(ctx context.Context, userID string) (domain.Cart, error) {
	var cart domain.Cart
	err := r.db.DB(ctx).QueryRow(ctx, `SELECT id, user_id, created_at, updated_at FROM carts WHERE user_id = $1`, userID).
		Scan(&cart.ID, &cart.UserID, &cart.CreatedAt, &cart.UpdatedAt)
	return cart, ppostgres.WrapError("carts.find_by_user", err)
}

func (r cartRepository) Create(ctx context.Context, cart domain.Cart) error {
	_, err := r.db.DB(ctx).Exec(ctx,
		`INSERT INTO carts (id, user_id, created_at, updated_at) VALUES ($1, $2, $3, $4)`,
		cart.ID, cart.UserID, cart.CreatedAt, cart.UpdatedAt)
	return ppostgres.WrapError("carts.create", err)
}

func (r cartRepository) ListLines(ctx context.Context, cartID string) ([]domain.CartLine, error) {
	rows, err := r.db.DB(ctx).Query(ctx, `SELECT `+cartLineColumns+` FROM cart_lines WHERE cart_id = $1 ORDER BY created_at, id`, cartID)
	if err != nil {
		return nil, ppostgres.WrapError("cart_lines.list", err)
	}
	lines, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.CartLine, error) {
		return scanCartLine(row)
	})
	return lines, ppostgres.WrapError("cart_lines.list", err)
}

// FindLine and FindLineByProduct lock the line inside a transaction. Quantity changes are
// read-modify-write, so two tabs adding the same product serialise on the row.
func (r cartRepository) FindLine(ctx context.Context, lineID string) (domain.CartLine, error) {
	line, err := scanCartLine(r.db.DB(ctx).QueryRow(ctx, r.lineQuery(ctx, `id = $1`), lineID))
	return line, ppostgres.WrapError("cart_lines.get", err)
}

func (r cartRepository) FindLineByProduct(ctx context.Context, cartID string, productID string) (domain.CartLine, error) {
	line, err := scanCartLine(r.db.DB(ctx).QueryRow(ctx, r.lineQuery(ctx, `cart_id = $1 AND product_id = $2`), cartID, productID))
	return line, ppostgres.WrapError("cart_lines.find_by_product", err)
}

func (r cartRepository) lineQuery(ctx context.Context, where string) string {
	query := `SELECT ` + cartLineColumns + ` FROM cart_lines WHERE ` + where
	if r.db.InTx(ctx) {
		query += ` FOR UPDATE`
	}
	return query
}

func (r cartRepository) InsertLine(ctx context.Context, line domain.CartLine) error {
	_, err := r.db.DB(ctx).Exec(ctx, `
		INSERT INTO cart_lines (id, cart_id, product_id, quantity, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		line.ID, line.CartID, line.ProductID, line.Quantity, line.CreatedAt, line.UpdatedAt)
	return ppostgres.WrapError("cart_lines.insert", err)
}

func (r cartRepository) UpdateLine(ctx context.Context, line domain.CartLine) error {
	tag, err := r.db.DB(ctx).Exec(ctx,
		`UPDATE cart_lines SET quantity = $2, updated_at = $3 WHERE id = $1`,
		line.ID, line.Quantity, line.UpdatedAt)
	if err != nil {
		return ppostgres.WrapError("cart_lines.update", err)
	}
	if tag.RowsAffected() == 0 {
		return ppostgres.NotFound("cart_lines.update", "cart line %s not found", line.ID)
	}
	return nil
}

func (r cartRepository) DeleteLine(ctx context.Context, lineID string) error {
	tag, err := r.db.DB(ctx).Exec(ctx, `DELETE FROM cart_lines WHERE id = $1`, lineID)
	if err != nil {
		return ppostgres.WrapError("cart_lines.delete", err)
	}
	if tag.RowsAffected() == 0 {
		return ppostgres.NotFound("cart_lines.delete", "cart line %s not found", lineID)
	}
	return nil
}

// ClearLines reports a conflict when fewer rows than requested were deleted, which happens when a
// concurrent checkout already consumed the cart.
func (r cartRepository) ClearLines(ctx context.Context, cartID string, lineIDs []string) error {
	if len(lineIDs) == 0 {
		return nil
	}
	tag, err := r.db.DB(ctx).Exec(ctx, `DELETE FROM cart_lines WHERE cart_id = $1 AND id = ANY($2)`, cartID, lineIDs)
	if err != nil {
		return ppostgres.WrapError("cart_lines.clear", err)
	}
	if tag.RowsAffected() != int64(len(lineIDs)) {
		return ppostgres.Conflict("cart_lines.clear", "cart %s changed concurrently", cartID)
	}
	return nil
}

func scanCartLine(row pgx.Row) (domain.CartLine, error) {
	var l domain.CartLine
	err := row.Scan(&l.ID, &l.CartID, &l.ProductID, &l.Quantity, &l.CreatedAt, &l.UpdatedAt)
	return l, err
}
