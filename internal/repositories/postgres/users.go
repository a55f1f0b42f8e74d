package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	domain "github.com/hometech/api/internal/domain"
	ppostgres "github.com/hometech/api/internal/platform/postgres"
)

type userRepository struct{ db *ppostgres.Provider }

const userColumns = `id, role, display_name, email, phone, is_active, created_at, updated_at`

func (r userRepository) FindByID(ctx context.Context, userID string) (domain.User, error) {
	row := r.db.DB(ctx).QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID)
	user, err := scanUser(row)
	return user, ppostgres.WrapError("users.get", err)
}

func (r userRepository) ListByRole(ctx context.Context, role domain.UserRole) ([]domain.User, error) {
	rows, err := r.db.DB(ctx).Query(ctx, `SELECT `+userColumns+` FROM users WHERE role = $1 AND is_active ORDER BY id`, string(role))
	if err != nil {
		return nil, ppostgres.WrapError("users.list_by_role", err)
	}
	users, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.User, error) {
		return scanUser(row)
	})
	return users, ppostgres.WrapError("users.list_by_role", err)
}

func scanUser(row pgx.Row) (domain.User, error) {
	var (
		user domain.User
		role string
	)
	err := row.Scan(&user.ID, &role, &user.DisplayName, &user.Email, &user.Phone, &user.Active, &user.CreatedAt, &user.UpdatedAt)
	user.Role = domain.UserRole(role)
	return user, err
}

type addressRepository struct{ db *ppostgres.Provider }

func (r addressRepository) ListByUser(ctx context.Context, userID string) ([]domain.Address, error) {
	rows, err := r.db.DB(ctx).Query(ctx, `
		SELECT id, user_id, recipient_name, phone, street, ward, district, city, created_at, updated_at
		FROM addresses
		WHERE user_id = $1
		ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, ppostgres.WrapError("addresses.list", err)
	}
	addresses, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Address, error) {
		var a domain.Address
		err := row.Scan(&a.ID, &a.UserID, &a.RecipientName, &a.Phone, &a.Street, &a.Ward, &a.District, &a.City, &a.CreatedAt, &a.UpdatedAt)
		return a, err
	})
	return addresses, ppostgres.WrapError("addresses.list", err)
}

type catalogRepository struct{ db *ppostgres.Provider }

const productColumns = `id, COALESCE(category_id, ''), name, description, price, stock, hidden, created_at, updated_at`

func (r catalogRepository) FindProduct(ctx context.Context, productID string) (domain.Product, error) {
	row := r.db.DB(ctx).QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, productID)
	product, err := scanProduct(row)
	return product, ppostgres.WrapError("products.get", err)
}

func (r catalogRepository) FindProducts(ctx context.Context, productIDs []string) (map[string]domain.Product, error) {
	products := make(map[string]domain.Product, len(productIDs))
	if len(productIDs) == 0 {
		return products, nil
	}
	rows, err := r.db.DB(ctx).Query(ctx, `SELECT `+productColumns+` FROM products WHERE id = ANY($1)`, productIDs)
	if err != nil {
		return nil, ppostgres.WrapError("products.get_many", err)
	}
	list, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Product, error) {
		return scanProduct(row)
	})
	if err != nil {
		return nil, ppostgres.WrapError("products.get_many", err)
	}
	for _, product := range list {
		products[product.ID] = product
	}
	return products, nil
}

func (r catalogRepository) FindCategory(ctx context.Context, categoryID string) (domain.Category, error) {
	var category domain.Category
	err := r.db.DB(ctx).QueryRow(ctx, `SELECT id, name FROM categories WHERE id = $1`, categoryID).
		Scan(&category.ID, &category.Name)
	return category, ppostgres.WrapError("categories.get", err)
}

func scanProduct(row pgx.Row) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.CategoryID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.Hidden, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}
