package repositories

import (
	"context"

	domain "github.com/hometech/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error
	Ping(ctx context.Context) error

	Users() UserRepository
	Addresses() AddressRepository
	Catalog() CatalogRepository
	Carts() CartRepository
	Vouchers() VoucherRepository
	Orders() OrderRepository
	Payments() PaymentRepository
	Counters() CounterRepository
	UnitOfWork
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork allows grouping repository operations in a transactional boundary. Repositories called
// with the context handed to fn participate in the same transaction.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// UserRepository resolves user accounts. Identity management lives outside this service.
type UserRepository interface {
	FindByID(ctx context.Context, userID string) (domain.User, error)
	ListByRole(ctx context.Context, role domain.UserRole) ([]domain.User, error)
}

// AddressRepository lists registered delivery addresses ordered by registration time.
type AddressRepository interface {
	ListByUser(ctx context.Context, userID string) ([]domain.Address, error)
}

// CatalogRepository is the read-only product/category lookup.
type CatalogRepository interface {
	FindProduct(ctx context.Context, productID string) (domain.Product, error)
	// FindProducts returns the products that exist among productIDs keyed by ID.
	FindProducts(ctx context.Context, productIDs []string) (map[string]domain.Product, error)
	FindCategory(ctx context.Context, categoryID string) (domain.Category, error)
}

// CartRepository persists cart headers and their lines as separate records.
type CartRepository interface {
	FindByUser(ctx context.Context, userID string) (domain.Cart, error)
	Create(ctx context.Context, cart domain.Cart) error
	ListLines(ctx context.Context, cartID string) ([]domain.CartLine, error)
	FindLine(ctx context.Context, lineID string) (domain.CartLine, error)
	FindLineByProduct(ctx context.Context, cartID string, productID string) (domain.CartLine, error)
	InsertLine(ctx context.Context, line domain.CartLine) error
	UpdateLine(ctx context.Context, line domain.CartLine) error
	DeleteLine(ctx context.Context, lineID string) error
	// ClearLines deletes the given lines of a cart and reports a conflict when any of them is
	// already gone, so two checkouts of the same cart cannot both commit.
	ClearLines(ctx context.Context, cartID string, lineIDs []string) error
}

// VoucherRepository stores voucher definitions and their usage counters.
type VoucherRepository interface {
	Insert(ctx context.Context, voucher domain.Voucher) error
	Update(ctx context.Context, voucher domain.Voucher) error
	Delete(ctx context.Context, voucherID string) error
	FindByID(ctx context.Context, voucherID string) (domain.Voucher, error)
	FindByCode(ctx context.Context, code string) (domain.Voucher, error)
	List(ctx context.Context) ([]domain.Voucher, error)
	// IncrementUsage atomically bumps usedCount when it is still below usageLimit and returns the
	// updated voucher. A limit breach yields a *VoucherUsageError with VoucherUsageExhausted.
	IncrementUsage(ctx context.Context, voucherID string) (domain.Voucher, error)
}

// OrderRepository persists orders together with their items and address snapshot.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) error
	Update(ctx context.Context, order domain.Order) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) ([]domain.Order, error)
	Count(ctx context.Context, filter OrderListFilter) (int64, error)
}

// PaymentRepository stores the 1:1 payment record of each order.
type PaymentRepository interface {
	Insert(ctx context.Context, payment domain.Payment) error
	Update(ctx context.Context, payment domain.Payment) error
	FindByOrder(ctx context.Context, orderID string) (domain.Payment, error)
	FindByTxnRef(ctx context.Context, txnRef string) (domain.Payment, error)
}

// CounterRepository provides transaction-safe sequence numbers.
type CounterRepository interface {
	Next(ctx context.Context, counterID string, step int64) (int64, error)
}

// OrderListFilter narrows order queries. Empty fields match everything; results are newest first.
type OrderListFilter struct {
	UserID string
	Status *domain.OrderStatus
	Limit  int
}
