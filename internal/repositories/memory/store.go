// Package memory provides an in-process repository registry used by tests and local development.
// Transactions serialise on a single mutex and roll back by restoring a snapshot of the state.
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	domain "github.com/hometech/api/internal/domain"
	"github.com/hometech/api/internal/repositories"
)

type txKey struct{}

type state struct {
	users      map[string]domain.User
	addresses  map[string]domain.Address
	categories map[string]domain.Category
	products   map[string]domain.Product
	carts      map[string]domain.Cart
	lines      map[string]domain.CartLine
	vouchers   map[string]domain.Voucher
	orders     map[string]domain.Order
	payments   map[string]domain.Payment
	counters   map[string]int64
}

func newState() *state {
	return &state{
		users:      make(map[string]domain.User),
		addresses:  make(map[string]domain.Address),
		categories: make(map[string]domain.Category),
		products:   make(map[string]domain.Product),
		carts:      make(map[string]domain.Cart),
		lines:      make(map[string]domain.CartLine),
		vouchers:   make(map[string]domain.Voucher),
		orders:     make(map[string]domain.Order),
		payments:   make(map[string]domain.Payment),
		counters:   make(map[string]int64),
	}
}

func (s *state) clone() *state {
	orders := make(map[string]domain.Order, len(s.orders))
	for id, order := range s.orders {
		orders[id] = cloneOrder(order)
	}
	return &state{
		users:      maps.Clone(s.users),
		addresses:  maps.Clone(s.addresses),
		categories: maps.Clone(s.categories),
		products:   maps.Clone(s.products),
		carts:      maps.Clone(s.carts),
		lines:      maps.Clone(s.lines),
		vouchers:   maps.Clone(s.vouchers),
		orders:     orders,
		payments:   maps.Clone(s.payments),
		counters:   maps.Clone(s.counters),
	}
}

// Store is an in-memory implementation of repositories.Registry.
type Store struct {
	mu    sync.Mutex
	state *state
}

var _ repositories.Registry = (*Store)(nil)

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{state: newState()}
}

// RunInTx executes fn while holding the store lock. Any error restores the state captured before fn ran.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if fn == nil {
		return nil
	}
	if s.inTx(ctx) {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state.clone()
	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		s.state = snapshot
		return err
	}
	return nil
}

// Close implements repositories.Registry.
func (s *Store) Close(context.Context) error { return nil }

// Ping implements repositories.Registry.
func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Users() repositories.UserRepository        { return userRepository{s} }
func (s *Store) Addresses() repositories.AddressRepository { return addressRepository{s} }
func (s *Store) Catalog() repositories.CatalogRepository   { return catalogRepository{s} }
func (s *Store) Carts() repositories.CartRepository        { return cartRepository{s} }
func (s *Store) Vouchers() repositories.VoucherRepository  { return voucherRepository{s} }
func (s *Store) Orders() repositories.OrderRepository      { return orderRepository{s} }
func (s *Store) Payments() repositories.PaymentRepository  { return paymentRepository{s} }
func (s *Store) Counters() repositories.CounterRepository  { return counterRepository{s} }

// PutUser seeds a user account.
func (s *Store) PutUser(user domain.User) {
	_ = s.with(context.Background(), func(st *state) error {
		st.users[user.ID] = user
		return nil
	})
}

// PutAddress seeds a delivery address.
func (s *Store) PutAddress(addr domain.Address) {
	_ = s.with(context.Background(), func(st *state) error {
		st.addresses[addr.ID] = addr
		return nil
	})
}

// PutCategory seeds a catalog category.
func (s *Store) PutCategory(category domain.Category) {
	_ = s.with(context.Background(), func(st *state) error {
		st.categories[category.ID] = category
		return nil
	})
}

// PutProduct seeds or replaces a catalog product.
func (s *Store) PutProduct(product domain.Product) {
	_ = s.with(context.Background(), func(st *state) error {
		st.products[product.ID] = product
		return nil
	})
}

func (s *Store) inTx(ctx context.Context) bool {
	owner, ok := ctx.Value(txKey{}).(*Store)
	return ok && owner == s
}

// with runs fn against the live state, taking the lock unless ctx already belongs to a transaction
// on this store.
func (s *Store) with(ctx context.Context, fn func(st *state) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if s.inTx(ctx) {
		return fn(s.state)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.state)
}

// Error implements repositories.RepositoryError for the memory store.
type Error struct {
	op       string
	msg      string
	notFound bool
	conflict bool
}

func (e *Error) Error() string       { return fmt.Sprintf("memory.%s: %s", e.op, e.msg) }
func (e *Error) IsNotFound() bool    { return e != nil && e.notFound }
func (e *Error) IsConflict() bool    { return e != nil && e.conflict }
func (e *Error) IsUnavailable() bool { return false }

func notFound(op, format string, args ...any) error {
	return &Error{op: op, msg: fmt.Sprintf(format, args...), notFound: true}
}

func conflict(op, format string, args ...any) error {
	return &Error{op: op, msg: fmt.Sprintf(format, args...), conflict: true}
}

func cloneOrder(order domain.Order) domain.Order {
	order.Items = slices.Clone(order.Items)
	return order
}
