// Package postgres implements the repository registry on PostgreSQL using pgx.
package postgres

import (
	"context"
	"errors"

	ppostgres "github.com/hometech/api/internal/platform/postgres"
	"github.com/hometech/api/internal/repositories"
)

// Registry bundles the Postgres repositories behind repositories.Registry.
type Registry struct {
	db *ppostgres.Provider
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry wraps provider.
func NewRegistry(provider *ppostgres.Provider) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("postgres registry requires provider")
	}
	return &Registry{db: provider}, nil
}

func (r *Registry) Close(ctx context.Context) error { return r.db.Close(ctx) }
func (r *Registry) Ping(ctx context.Context) error  { return r.db.Ping(ctx) }

// RunInTx runs fn in a database transaction.
func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.db.RunInTx(ctx, fn)
}

func (r *Registry) Users() repositories.UserRepository        { return userRepository{r.db} }
func (r *Registry) Addresses() repositories.AddressRepository { return addressRepository{r.db} }
func (r *Registry) Catalog() repositories.CatalogRepository   { return catalogRepository{r.db} }
func (r *Registry) Carts() repositories.CartRepository        { return cartRepository{r.db} }
func (r *Registry) Vouchers() repositories.VoucherRepository  { return voucherRepository{r.db} }
func (r *Registry) Orders() repositories.OrderRepository      { return orderRepository{r.db} }
func (r *Registry) Payments() repositories.PaymentRepository  { return paymentRepository{r.db} }
func (r *Registry) Counters() repositories.CounterRepository  { return counterRepository{r.db} }
