// Package firestore implements the repository registry on Cloud Firestore.
package firestore

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	pfirestore "github.com/hometech/api/internal/platform/firestore"
	"github.com/hometech/api/internal/repositories"
)

// Registry bundles the Firestore repositories behind repositories.Registry.
type Registry struct {
	provider  *pfirestore.Provider
	users     *UserRepository
	addresses *AddressRepository
	catalog   *CatalogRepository
	carts     *CartRepository
	vouchers  *VoucherRepository
	orders    *OrderRepository
	payments  *PaymentRepository
	counters  *CounterRepository
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry builds every repository on top of provider.
func NewRegistry(provider *pfirestore.Provider) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("firestore registry requires provider")
	}
	reg := &Registry{provider: provider}
	var err error
	if reg.users, err = NewUserRepository(provider); err != nil {
		return nil, err
	}
	if reg.addresses, err = NewAddressRepository(provider); err != nil {
		return nil, err
	}
	if reg.catalog, err = NewCatalogRepository(provider); err != nil {
		return nil, err
	}
	if reg.carts, err = NewCartRepository(provider); err != nil {
		return nil, err
	}
	if reg.vouchers, err = NewVoucherRepository(provider); err != nil {
		return nil, err
	}
	if reg.orders, err = NewOrderRepository(provider); err != nil {
		return nil, err
	}
	if reg.payments, err = NewPaymentRepository(provider); err != nil {
		return nil, err
	}
	if reg.counters, err = NewCounterRepository(provider); err != nil {
		return nil, err
	}
	return reg, nil
}

// Close releases the Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	return r.provider.Close(ctx)
}

// Ping issues a point read against a sentinel document. A missing document still proves connectivity.
func (r *Registry) Ping(ctx context.Context) error {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return err
	}
	_, err = client.Collection("healthz").Doc("ping").Get(ctx)
	if err != nil && status.Code(err) != codes.NotFound {
		return pfirestore.WrapError("healthz.ping", err)
	}
	return nil
}

// RunInTx runs fn inside a Firestore transaction.
func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.provider.RunInTx(ctx, fn)
}

func (r *Registry) Users() repositories.UserRepository        { return r.users }
func (r *Registry) Addresses() repositories.AddressRepository { return r.addresses }
func (r *Registry) Catalog() repositories.CatalogRepository   { return r.catalog }
func (r *Registry) Carts() repositories.CartRepository        { return r.carts }
func (r *Registry) Vouchers() repositories.VoucherRepository  { return r.vouchers }
func (r *Registry) Orders() repositories.OrderRepository      { return r.orders }
func (r *Registry) Payments() repositories.PaymentRepository  { return r.payments }
func (r *Registry) Counters() repositories.CounterRepository  { return r.counters }

func notFoundError(op string) error {
	return pfirestore.NotFound(op, "no matching document")
}

func isNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}
