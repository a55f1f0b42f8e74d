package domain

import (
	"strings"
	"time"
)

// UserRole tags a user record as a shopper or a back-office operator.
type UserRole string

const (
	// UserRoleCustomer identifies shoppers that own carts and orders.
	UserRoleCustomer UserRole = "customer"
	// UserRoleAdmin identifies back-office operators that receive order notifications.
	UserRoleAdmin UserRole = "admin"
)

// User is the single account entity shared by customers and admins.
type User struct {
	ID          string
	Role        UserRole
	DisplayName string
	Email       string
	Phone       string
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsAdmin reports whether the user carries the admin role.
func (u User) IsAdmin() bool {
	return u.Role == UserRoleAdmin
}

// Address is a delivery address registered by a user. The earliest registered address is used
// when placing orders.
type Address struct {
	ID            string
	UserID        string
	RecipientName string
	Phone         string
	Street        string
	Ward          string
	District      string
	City          string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Category groups catalog products.
type Category struct {
	ID   string
	Name string
}

// Product is a read-only catalog entry. Price is expressed in whole VND.
type Product struct {
	ID          string
	CategoryID  string
	Name        string
	Description string
	Price       int64
	Stock       int
	Hidden      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Cart is owned 1:1 by a customer. Lines are stored separately and reference the cart by ID.
type Cart struct {
	ID        string
	UserID    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CartLine holds a single (product, quantity) pair inside a cart.
type CartLine struct {
	ID        string
	CartID    string
	ProductID string
	Quantity  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Voucher is a globally shared discount code with a usage counter.
type Voucher struct {
	ID              string
	Code            string
	DiscountPercent *float64
	DiscountAmount  *int64
	MinOrderValue   int64
	UsageLimit      int
	UsedCount       int
	StartDate       time.Time
	EndDate         time.Time
	Active          bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Remaining returns how many redemptions are still available.
func (v Voucher) Remaining() int {
	if v.UsedCount >= v.UsageLimit {
		return 0
	}
	return v.UsageLimit - v.UsedCount
}

// OrderStatus enumerates order lifecycle states.
type OrderStatus string

const (
	// OrderStatusWaitingConfirmation is the initial state of a freshly placed order.
	OrderStatusWaitingConfirmation OrderStatus = "WAITING_CONFIRMATION"
	// OrderStatusConfirmed indicates an admin accepted the order.
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	// OrderStatusShipped indicates the parcel left the warehouse.
	OrderStatusShipped OrderStatus = "SHIPPED"
	// OrderStatusCompleted indicates the order was delivered. Terminal.
	OrderStatusCompleted OrderStatus = "COMPLETED"
	// OrderStatusCancelled indicates the order was cancelled. Terminal.
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// OrderStatuses lists every status in lifecycle order.
var OrderStatuses = []OrderStatus{
	OrderStatusWaitingConfirmation,
	OrderStatusConfirmed,
	OrderStatusShipped,
	OrderStatusCompleted,
	OrderStatusCancelled,
}

// ParseOrderStatus normalises the input and reports whether it names a known status.
func ParseOrderStatus(value string) (OrderStatus, bool) {
	candidate := OrderStatus(strings.ToUpper(strings.TrimSpace(value)))
	for _, status := range OrderStatuses {
		if status == candidate {
			return status, true
		}
	}
	return "", false
}

// IsTerminal reports whether no further transitions are possible.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// PaymentMethod enumerates supported payment methods.
type PaymentMethod string

const (
	// PaymentMethodCOD is cash on delivery.
	PaymentMethodCOD PaymentMethod = "COD"
	// PaymentMethodVNPay redirects the customer to the VNPay gateway.
	PaymentMethodVNPay PaymentMethod = "VNPAY"
	// PaymentMethodStripe redirects the customer to a Stripe Checkout session.
	PaymentMethodStripe PaymentMethod = "STRIPE"
)

// ParsePaymentMethod normalises the input and reports whether it names a supported method.
func ParsePaymentMethod(value string) (PaymentMethod, bool) {
	switch PaymentMethod(strings.ToUpper(strings.TrimSpace(value))) {
	case PaymentMethodCOD:
		return PaymentMethodCOD, true
	case PaymentMethodVNPay:
		return PaymentMethodVNPay, true
	case PaymentMethodStripe:
		return PaymentMethodStripe, true
	default:
		return "", false
	}
}

// IsElectronic reports whether the method settles through an external gateway.
func (m PaymentMethod) IsElectronic() bool {
	return m != PaymentMethodCOD
}

// PaymentStatus enumerates payment record states.
type PaymentStatus string

const (
	// PaymentStatusPending marks cash-on-delivery payments collected at handover.
	PaymentStatusPending PaymentStatus = "PENDING"
	// PaymentStatusAwaitingPayment marks electronic payments waiting for the gateway callback.
	PaymentStatusAwaitingPayment PaymentStatus = "AWAITING_PAYMENT"
	// PaymentStatusSuccess marks a gateway-confirmed payment.
	PaymentStatusSuccess PaymentStatus = "SUCCESS"
	// PaymentStatusFailed marks a gateway-rejected payment.
	PaymentStatusFailed PaymentStatus = "FAILED"
	// PaymentStatusInvalidSignature marks a callback whose signature did not verify.
	PaymentStatusInvalidSignature PaymentStatus = "INVALID_SIGNATURE"
)

// DeliveryAddress is the immutable address snapshot stored on an order.
type DeliveryAddress struct {
	RecipientName string
	Phone         string
	Street        string
	Ward          string
	District      string
	City          string
}

// FullAddress joins the non-blank address parts with ", " or returns "-" when all are blank.
func (a DeliveryAddress) FullAddress() string {
	parts := make([]string, 0, 4)
	for _, part := range []string{a.Street, a.Ward, a.District, a.City} {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, ", ")
}

// SnapshotAddress copies the registered address into an order snapshot.
func SnapshotAddress(addr Address) DeliveryAddress {
	return DeliveryAddress{
		RecipientName: addr.RecipientName,
		Phone:         addr.Phone,
		Street:        addr.Street,
		Ward:          addr.Ward,
		District:      addr.District,
		City:          addr.City,
	}
}

// OrderItem captures a purchased product with the unit price frozen at order time.
type OrderItem struct {
	ProductID   string
	ProductName string
	Quantity    int
	UnitPrice   int64
}

// LineTotal returns unit price multiplied by quantity.
func (i OrderItem) LineTotal() int64 {
	return i.UnitPrice * int64(i.Quantity)
}

// Order is the persisted purchase snapshot.
type Order struct {
	ID              string
	OrderNumber     string
	UserID          string
	Status          OrderStatus
	PaymentMethod   PaymentMethod
	Items           []OrderItem
	Subtotal        int64
	Discount        int64
	TotalAmount     int64
	VoucherID       *string
	VoucherCode     *string
	DeliveryAddress DeliveryAddress
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ConfirmedAt     *time.Time
	ShippedAt       *time.Time
	CompletedAt     *time.Time
	CancelledAt     *time.Time
	CancelledBy     *string
}

// Payment is the 1:1 payment record for an order.
type Payment struct {
	ID                string
	OrderID           string
	Method            PaymentMethod
	Amount            int64
	Status            PaymentStatus
	OrderInfo         string
	TxnRef            string
	ResponseCode      string
	BankCode          string
	CardType          string
	TransactionNo     string
	PayDate           string
	TransactionStatus string
	SecureHash        string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// OrderStatusCount aggregates order counts per status.
type OrderStatusCount struct {
	Status OrderStatus
	Count  int64
}

// HealthStatus enumerates readiness outcomes.
type HealthStatus string

const (
	// HealthStatusOK indicates the dependency responded normally.
	HealthStatusOK HealthStatus = "ok"
	// HealthStatusDegraded indicates the dependency returned an error.
	HealthStatusDegraded HealthStatus = "degraded"
	// HealthStatusError indicates the dependency timed out or was cancelled.
	HealthStatusError HealthStatus = "error"
)

// HealthCheck is the outcome of probing one dependency.
type HealthCheck struct {
	Status    HealthStatus
	Detail    string
	Latency   time.Duration
	CheckedAt time.Time
}

// HealthReport aggregates dependency checks.
type HealthReport struct {
	Status      HealthStatus
	Checks      map[string]HealthCheck
	GeneratedAt time.Time
}
