package services

import (
	"context"
	"time"

	domain "github.com/hometech/api/internal/domain"
)

// CartService manages the per-customer cart. Every mutation is ownership checked and transactional.
type CartService interface {
	AddItem(ctx context.Context, cmd AddCartItemCommand) (CartItem, error)
	IncreaseQuantity(ctx context.Context, userID string, lineID string) (CartItem, error)
	// DecreaseQuantity returns nil when the line dropped below one and was deleted.
	DecreaseQuantity(ctx context.Context, userID string, lineID string) (*CartItem, error)
	RemoveItem(ctx context.Context, userID string, lineID string) error
	ListItems(ctx context.Context, userID string) ([]CartItem, error)
}

// VoucherService validates, prices and redeems vouchers and exposes admin CRUD.
type VoucherService interface {
	Validate(ctx context.Context, code string, subtotal int64, now time.Time) (domain.Voucher, error)
	ComputeDiscount(voucher domain.Voucher, subtotal int64) int64
	// ApplyAndIncrement redeems the voucher once. It is the only path that mutates usedCount.
	ApplyAndIncrement(ctx context.Context, voucher domain.Voucher) (domain.Voucher, error)
	Apply(ctx context.Context, code string, orderTotal int64) (VoucherApplication, error)

	ListVouchers(ctx context.Context) ([]domain.Voucher, error)
	GetVoucher(ctx context.Context, code string) (domain.Voucher, error)
	CreateVoucher(ctx context.Context, cmd VoucherCommand) (domain.Voucher, error)
	UpdateVoucher(ctx context.Context, voucherID string, cmd VoucherCommand) (domain.Voucher, error)
	DeleteVoucher(ctx context.Context, voucherID string) error
}

// OrderService runs the order pipeline and the order lifecycle.
type OrderService interface {
	CreateOrder(ctx context.Context, cmd CreateOrderCommand) (domain.Order, error)
	PreviewOrder(ctx context.Context, userID string, voucherCode string) (OrderPreview, error)

	UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus) (domain.Order, error)
	CancelByUser(ctx context.Context, userID string, orderID string) (domain.Order, error)
	CancelByAdmin(ctx context.Context, orderID string) (domain.Order, error)
	CanCancel(ctx context.Context, orderID string) (bool, error)

	GetOrder(ctx context.Context, orderID string) (domain.Order, error)
	ListOrders(ctx context.Context, query OrderQuery) ([]domain.Order, error)
	CountOrders(ctx context.Context, query OrderQuery) ([]domain.OrderStatusCount, error)
}

// PaymentService starts gateway checkouts and records gateway callbacks.
type PaymentService interface {
	GetPayment(ctx context.Context, orderID string) (domain.Payment, error)
	StartCheckout(ctx context.Context, cmd StartCheckoutCommand) (CheckoutRedirect, error)
	HandleReturn(ctx context.Context, method domain.PaymentMethod, params map[string]string) (domain.Payment, error)
}

// Notifier delivers order notifications. Callers treat failures as non-fatal.
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// AddCartItemCommand adds quantity units of a product to the customer's cart.
type AddCartItemCommand struct {
	UserID    string
	ProductID string
	Quantity  int
}

// CartItem is a cart line joined with its catalog product.
type CartItem struct {
	Line    domain.CartLine
	Product domain.Product
}

// LineTotal returns the current price of the line.
func (i CartItem) LineTotal() int64 {
	return i.Product.Price * int64(i.Line.Quantity)
}

// VoucherApplication is the outcome of redeeming a voucher against an arbitrary total.
type VoucherApplication struct {
	Voucher    domain.Voucher
	Discount   int64
	FinalTotal int64
}

// VoucherCommand carries the admin-editable voucher fields.
type VoucherCommand struct {
	Code            string
	DiscountPercent *float64
	DiscountAmount  *int64
	MinOrderValue   int64
	UsageLimit      int
	StartDate       time.Time
	EndDate         time.Time
	Active          bool
}

// CreateOrderCommand places an order from the customer's cart.
type CreateOrderCommand struct {
	UserID        string
	VoucherCode   string
	PaymentMethod string
}

// OrderPreview reports the totals an order would have without persisting anything.
type OrderPreview struct {
	Items          []domain.OrderItem
	Subtotal       int64
	Discount       int64
	FinalTotal     int64
	VoucherValid   bool
	VoucherMessage string
}

// OrderQuery narrows order listings and counts.
type OrderQuery struct {
	UserID string
	Status *domain.OrderStatus
	Limit  int
}

// StartCheckoutCommand requests a gateway redirect for an order.
type StartCheckoutCommand struct {
	OrderID  string
	UserID   string
	ClientIP string
	BankCode string
	Locale   string
}

// CheckoutRedirect is where the customer should be sent to pay.
type CheckoutRedirect struct {
	OrderID     string
	Method      domain.PaymentMethod
	RedirectURL string
	TxnRef      string
}

// NotificationType enumerates order notification kinds.
type NotificationType string

const (
	NotificationOrderPlaced    NotificationType = "order.placed"
	NotificationOrderNew       NotificationType = "order.new"
	NotificationStatusChanged  NotificationType = "order.status_changed"
	NotificationOrderCancelled NotificationType = "order.cancelled"
)

// Notification is a single message addressed to one user.
type Notification struct {
	Type        NotificationType
	RecipientID string
	OrderID     string
	OrderNumber string
	Status      domain.OrderStatus
	Title       string
	Message     string
	OccurredAt  time.Time
}
