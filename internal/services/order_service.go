package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/hometech/api/internal/domain"
	"github.com/hometech/api/internal/repositories"
)

const (
	orderCounterID      = "orders"
	defaultCancelWindow = 30 * time.Minute
	defaultOrderPrefix  = "HT"
	maxOrderListLimit   = 500
)

// allowedTransitions is the forward-only lifecycle table used by UpdateStatus.
var allowedTransitions = map[domain.OrderStatus][]domain.OrderStatus{
	domain.OrderStatusWaitingConfirmation: {domain.OrderStatusConfirmed, domain.OrderStatusCancelled},
	domain.OrderStatusConfirmed:           {domain.OrderStatusShipped},
	domain.OrderStatusShipped:             {domain.OrderStatusCompleted},
}

// OrderServiceDeps wires the order pipeline and lifecycle.
type OrderServiceDeps struct {
	Orders       repositories.OrderRepository
	Payments     repositories.PaymentRepository
	Carts        repositories.CartRepository
	Catalog      repositories.CatalogRepository
	Users        repositories.UserRepository
	Addresses    repositories.AddressRepository
	Counters     repositories.CounterRepository
	Vouchers     VoucherService
	Notifier     Notifier
	UnitOfWork   repositories.UnitOfWork
	Clock        func() time.Time
	IDGenerator  func() string
	Logger       func(context.Context, string, map[string]any)
	CancelWindow time.Duration
	NumberPrefix string
	Currency     string
}

type orderService struct {
	orders       repositories.OrderRepository
	payments     repositories.PaymentRepository
	carts        repositories.CartRepository
	catalog      repositories.CatalogRepository
	users        repositories.UserRepository
	addresses    repositories.AddressRepository
	counters     repositories.CounterRepository
	vouchers     VoucherService
	notifier     Notifier
	unitOfWork   repositories.UnitOfWork
	clock        func() time.Time
	newID        func() string
	logger       func(context.Context, string, map[string]any)
	cancelWindow time.Duration
	prefix       string
	currency     string
}

// NewOrderService constructs the order service with dependency validation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	switch {
	case deps.Orders == nil:
		return nil, errors.New("order service: order repository is required")
	case deps.Payments == nil:
		return nil, errors.New("order service: payment repository is required")
	case deps.Carts == nil:
		return nil, errors.New("order service: cart repository is required")
	case deps.Catalog == nil:
		return nil, errors.New("order service: catalog repository is required")
	case deps.Users == nil:
		return nil, errors.New("order service: user repository is required")
	case deps.Addresses == nil:
		return nil, errors.New("order service: address repository is required")
	case deps.Counters == nil:
		return nil, errors.New("order service: counter repository is required")
	case deps.Vouchers == nil:
		return nil, errors.New("order service: voucher service is required")
	}

	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	window := deps.CancelWindow
	if window <= 0 {
		window = defaultCancelWindow
	}
	prefix := strings.TrimSpace(deps.NumberPrefix)
	if prefix == "" {
		prefix = defaultOrderPrefix
	}
	currency := strings.ToUpper(strings.TrimSpace(deps.Currency))
	if currency == "" {
		currency = "VND"
	}

	return &orderService{
		orders:       deps.Orders,
		payments:     deps.Payments,
		carts:        deps.Carts,
		catalog:      deps.Catalog,
		users:        deps.Users,
		addresses:    deps.Addresses,
		counters:     deps.Counters,
		vouchers:     deps.Vouchers,
		notifier:     deps.Notifier,
		unitOfWork:   unit,
		clock:        func() time.Time { return clock().UTC() },
		newID:        idGen,
		logger:       logger,
		cancelWindow: window,
		prefix:       prefix,
		currency:     currency,
	}, nil
}

// checkoutSnapshot is the read side of the pipeline shared by preview and create.
type checkoutSnapshot struct {
	customer domain.User
	cart     domain.Cart
	lineIDs  []string
	items    []domain.OrderItem
	address  domain.DeliveryAddress
	subtotal int64
}

// snapshot resolves the customer, cart, first registered address and current prices. It only reads.
func (s *orderService) snapshot(ctx context.Context, userID string) (checkoutSnapshot, error) {
	customer, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return checkoutSnapshot{}, mapRepositoryError(err, ErrCustomerNotFound, nil)
	}
	cart, err := s.carts.FindByUser(ctx, userID)
	if err != nil {
		if isRepoNotFound(err) {
			return checkoutSnapshot{}, ErrCartEmpty
		}
		return checkoutSnapshot{}, mapRepositoryError(err, nil, nil)
	}
	lines, err := s.carts.ListLines(ctx, cart.ID)
	if err != nil {
		return checkoutSnapshot{}, mapRepositoryError(err, nil, nil)
	}
	if len(lines) == 0 {
		return checkoutSnapshot{}, ErrCartEmpty
	}

	addresses, err := s.addresses.ListByUser(ctx, userID)
	if err != nil {
		return checkoutSnapshot{}, mapRepositoryError(err, nil, nil)
	}
	if len(addresses) == 0 {
		return checkoutSnapshot{}, ErrNoDeliveryAddress
	}

	products, err := s.catalog.FindProducts(ctx, productIDs(lines))
	if err != nil {
		return checkoutSnapshot{}, mapRepositoryError(err, nil, nil)
	}

	snap := checkoutSnapshot{
		customer: customer,
		cart:     cart,
		lineIDs:  make([]string, 0, len(lines)),
		items:    make([]domain.OrderItem, 0, len(lines)),
		address:  domain.SnapshotAddress(addresses[0]),
	}
	for _, line := range lines {
		product, ok := products[line.ProductID]
		if !ok {
			return checkoutSnapshot{}, fmt.Errorf("%w: %s", ErrProductNotFound, line.ProductID)
		}
		if line.Quantity < 1 || line.Quantity > MaxLineQuantity {
			return checkoutSnapshot{}, fmt.Errorf("%w: line %s holds %d", ErrQuantityLimit, line.ID, line.Quantity)
		}
		if product.Price > 0 && int64(line.Quantity) > (math.MaxInt64-snap.subtotal)/product.Price {
			return checkoutSnapshot{}, ErrOrderTooLarge
		}
		item := domain.OrderItem{
			ProductID:   product.ID,
			ProductName: product.Name,
			Quantity:    line.Quantity,
			UnitPrice:   product.Price,
		}
		snap.items = append(snap.items, item)
		snap.lineIDs = append(snap.lineIDs, line.ID)
		snap.subtotal += item.LineTotal()
	}
	return snap, nil
}

func (s *orderService) CreateOrder(ctx context.Context, cmd CreateOrderCommand) (domain.Order, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return domain.Order{}, ErrInvalidInput
	}
	method := domain.PaymentMethodCOD
	if raw := strings.TrimSpace(cmd.PaymentMethod); raw != "" {
		parsed, ok := domain.ParsePaymentMethod(raw)
		if !ok {
			return domain.Order{}, fmt.Errorf("%w: %s", ErrInvalidPaymentMethod, raw)
		}
		method = parsed
	}
	voucherCode := normalizeVoucherCode(cmd.VoucherCode)

	now := s.clock()
	// The sequence is drawn before the transaction so document stores see all reads before writes.
	// A rolled back order leaves a gap in the numbering.
	orderNumber, err := s.generateOrderNumber(ctx, now)
	if err != nil {
		return domain.Order{}, mapRepositoryError(err, nil, nil)
	}

	var (
		order    domain.Order
		customer domain.User
	)
	err = s.runInTx(ctx, func(txCtx context.Context) error {
		snap, err := s.snapshot(txCtx, userID)
		if err != nil {
			return err
		}
		customer = snap.customer

		var (
			discount  int64
			voucherID *string
			codeRef   *string
		)
		if voucherCode != "" {
			voucher, err := s.vouchers.Validate(txCtx, voucherCode, snap.subtotal, now)
			if err != nil {
				return err
			}
			discount = s.vouchers.ComputeDiscount(voucher, snap.subtotal)
			if _, err := s.vouchers.ApplyAndIncrement(txCtx, voucher); err != nil {
				return err
			}
			voucherID = &voucher.ID
			codeRef = &voucher.Code
		}

		order = domain.Order{
			ID:              s.newID(),
			OrderNumber:     orderNumber,
			UserID:          userID,
			Status:          domain.OrderStatusWaitingConfirmation,
			PaymentMethod:   method,
			Items:           snap.items,
			Subtotal:        snap.subtotal,
			Discount:        discount,
			TotalAmount:     max(snap.subtotal-discount, 0),
			VoucherID:       voucherID,
			VoucherCode:     codeRef,
			DeliveryAddress: snap.address,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := s.orders.Insert(txCtx, order); err != nil {
			return mapRepositoryError(err, nil, ErrCheckoutConflict)
		}

		payment := domain.Payment{
			ID:        s.newID(),
			OrderID:   order.ID,
			Method:    method,
			Amount:    order.TotalAmount,
			Status:    initialPaymentStatus(method),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.payments.Insert(txCtx, payment); err != nil {
			return mapRepositoryError(err, nil, ErrCheckoutConflict)
		}

		// Clearing the cart is the commit point: a concurrent checkout of the same lines fails here.
		if err := s.carts.ClearLines(txCtx, snap.cart.ID, snap.lineIDs); err != nil {
			return mapRepositoryError(err, ErrCheckoutConflict, ErrCheckoutConflict)
		}
		return nil
	})
	if err != nil {
		s.logger(ctx, "order.create.rejected", map[string]any{
			"userID":      userID,
			"voucherCode": voucherCode,
			"error":       err.Error(),
		})
		return domain.Order{}, err
	}

	s.logger(ctx, "order.created", map[string]any{
		"orderID":     order.ID,
		"orderNumber": order.OrderNumber,
		"userID":      userID,
		"total":       order.TotalAmount,
		"discount":    order.Discount,
		"method":      string(method),
	})

	s.notify(ctx, orderPlacedNotification(order, s.currency, now))
	s.notifyAdmins(ctx, order, customer.DisplayName, now)
	return order, nil
}

func (s *orderService) PreviewOrder(ctx context.Context, userID string, voucherCode string) (OrderPreview, error) {
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return OrderPreview{}, ErrInvalidInput
	}
	snap, err := s.snapshot(ctx, uid)
	if err != nil {
		return OrderPreview{}, err
	}

	preview := OrderPreview{
		Items:      snap.items,
		Subtotal:   snap.subtotal,
		FinalTotal: snap.subtotal,
	}
	code := normalizeVoucherCode(voucherCode)
	if code == "" {
		return preview, nil
	}

	voucher, err := s.vouchers.Validate(ctx, code, snap.subtotal, s.clock())
	if err != nil {
		if errors.Is(err, ErrVoucher) {
			preview.VoucherMessage = err.Error()
			return preview, nil
		}
		return OrderPreview{}, err
	}
	preview.Discount = s.vouchers.ComputeDiscount(voucher, snap.subtotal)
	preview.FinalTotal = max(snap.subtotal-preview.Discount, 0)
	preview.VoucherValid = true
	preview.VoucherMessage = fmt.Sprintf("Voucher %s applied", voucher.Code)
	return preview, nil
}

func (s *orderService) UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus) (domain.Order, error) {
	target, ok := domain.ParseOrderStatus(string(status))
	if !ok {
		return domain.Order{}, fmt.Errorf("%w: %s", ErrInvalidStatus, status)
	}
	if target == domain.OrderStatusCancelled {
		return s.cancel(ctx, orderID, "", domain.UserRoleAdmin, func(order domain.Order, _ time.Time) error {
			if order.Status != domain.OrderStatusWaitingConfirmation && order.Status != domain.OrderStatusCancelled {
				return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, target)
			}
			return nil
		})
	}

	var (
		order   domain.Order
		changed bool
	)
	err := s.runInTx(ctx, func(txCtx context.Context) error {
		current, err := s.loadOrder(txCtx, orderID)
		if err != nil {
			return err
		}
		order = current
		if current.Status == target {
			return nil
		}
		if !transitionAllowed(current.Status, target) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, target)
		}
		now := s.clock()
		order.Status = target
		order.UpdatedAt = now
		switch target {
		case domain.OrderStatusConfirmed:
			order.ConfirmedAt = &now
		case domain.OrderStatusShipped:
			order.ShippedAt = &now
		case domain.OrderStatusCompleted:
			order.CompletedAt = &now
		}
		if err := s.orders.Update(txCtx, order); err != nil {
			return mapRepositoryError(err, ErrOrderNotFound, ErrStateConflict)
		}
		changed = true
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	if changed {
		s.logger(ctx, "order.status.changed", map[string]any{
			"orderID": order.ID,
			"status":  string(order.Status),
		})
		s.notify(ctx, statusNotification(order, order.UpdatedAt))
	}
	return order, nil
}

func (s *orderService) CancelByUser(ctx context.Context, userID string, orderID string) (domain.Order, error) {
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return domain.Order{}, ErrInvalidInput
	}
	return s.cancel(ctx, orderID, uid, domain.UserRoleCustomer, func(order domain.Order, now time.Time) error {
		if order.UserID != uid {
			return ErrOrderNotOwned
		}
		if !s.canCancel(order, now) {
			return ErrCancelWindowExpired
		}
		return nil
	})
}

func (s *orderService) CancelByAdmin(ctx context.Context, orderID string) (domain.Order, error) {
	return s.cancel(ctx, orderID, "", domain.UserRoleAdmin, func(order domain.Order, _ time.Time) error {
		if order.Status == domain.OrderStatusCompleted {
			return ErrAlreadyCompleted
		}
		return nil
	})
}

// cancel runs check against the locked order and cancels it. Cancelling a cancelled order is a no-op.
func (s *orderService) cancel(ctx context.Context, orderID string, actorID string, role domain.UserRole, check func(domain.Order, time.Time) error) (domain.Order, error) {
	var (
		order   domain.Order
		changed bool
	)
	err := s.runInTx(ctx, func(txCtx context.Context) error {
		current, err := s.loadOrder(txCtx, orderID)
		if err != nil {
			return err
		}
		now := s.clock()
		if err := check(current, now); err != nil {
			return err
		}
		order = current
		if current.Status == domain.OrderStatusCancelled {
			return nil
		}
		by := string(role)
		order.Status = domain.OrderStatusCancelled
		order.CancelledAt = &now
		order.CancelledBy = &by
		order.UpdatedAt = now
		if err := s.orders.Update(txCtx, order); err != nil {
			return mapRepositoryError(err, ErrOrderNotFound, ErrStateConflict)
		}
		changed = true
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	if changed {
		s.logger(ctx, "order.cancelled", map[string]any{
			"orderID": order.ID,
			"by":      string(role),
			"actorID": actorID,
		})
		s.notify(ctx, cancelledNotification(order, order.UpdatedAt))
	}
	return order, nil
}

func (s *orderService) CanCancel(ctx context.Context, orderID string) (bool, error) {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return false, err
	}
	return s.canCancel(order, s.clock()), nil
}

func (s *orderService) canCancel(order domain.Order, now time.Time) bool {
	return order.Status == domain.OrderStatusWaitingConfirmation && now.Sub(order.CreatedAt) <= s.cancelWindow
}

func (s *orderService) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	return s.loadOrder(ctx, orderID)
}

func (s *orderService) ListOrders(ctx context.Context, query OrderQuery) ([]domain.Order, error) {
	filter, err := orderFilter(query)
	if err != nil {
		return nil, err
	}
	orders, err := s.orders.List(ctx, filter)
	if err != nil {
		return nil, mapRepositoryError(err, nil, nil)
	}
	return orders, nil
}

// CountOrders returns one entry for the requested status, or one entry per status when none is given.
func (s *orderService) CountOrders(ctx context.Context, query OrderQuery) ([]domain.OrderStatusCount, error) {
	statuses := domain.OrderStatuses
	if query.Status != nil {
		statuses = []domain.OrderStatus{*query.Status}
	}
	counts := make([]domain.OrderStatusCount, 0, len(statuses))
	for _, status := range statuses {
		q := query
		q.Status = &status
		q.Limit = 0
		filter, err := orderFilter(q)
		if err != nil {
			return nil, err
		}
		count, err := s.orders.Count(ctx, filter)
		if err != nil {
			return nil, mapRepositoryError(err, nil, nil)
		}
		counts = append(counts, domain.OrderStatusCount{Status: status, Count: count})
	}
	return counts, nil
}

func orderFilter(query OrderQuery) (repositories.OrderListFilter, error) {
	if query.Limit < 0 || query.Limit > maxOrderListLimit {
		return repositories.OrderListFilter{}, fmt.Errorf("%w: limit must be between 0 and %d", ErrInvalidInput, maxOrderListLimit)
	}
	filter := repositories.OrderListFilter{
		UserID: strings.TrimSpace(query.UserID),
		Limit:  query.Limit,
	}
	if query.Status != nil {
		status, ok := domain.ParseOrderStatus(string(*query.Status))
		if !ok {
			return repositories.OrderListFilter{}, fmt.Errorf("%w: %s", ErrInvalidStatus, *query.Status)
		}
		filter.Status = &status
	}
	return filter, nil
}

func (s *orderService) loadOrder(ctx context.Context, orderID string) (domain.Order, error) {
	id := strings.TrimSpace(orderID)
	if id == "" {
		return domain.Order{}, ErrInvalidInput
	}
	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return domain.Order{}, mapRepositoryError(err, ErrOrderNotFound, nil)
	}
	return order, nil
}

func transitionAllowed(from, to domain.OrderStatus) bool {
	for _, candidate := range allowedTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

func initialPaymentStatus(method domain.PaymentMethod) domain.PaymentStatus {
	if method.IsElectronic() {
		return domain.PaymentStatusAwaitingPayment
	}
	return domain.PaymentStatusPending
}

func (s *orderService) generateOrderNumber(ctx context.Context, now time.Time) (string, error) {
	seq, err := s.counters.Next(ctx, orderCounterID, 1)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%04d-%06d", s.prefix, now.Year(), seq), nil
}

func (s *orderService) runInTx(ctx context.Context, fn func(context.Context) error) error {
	return s.unitOfWork.RunInTx(ctx, fn)
}

// notify delivers best-effort notifications. Failures are logged and never returned.
func (s *orderService) notify(ctx context.Context, notification Notification) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, notification); err != nil {
		s.logger(ctx, "order.notification.failed", map[string]any{
			"type":      string(notification.Type),
			"order":     notification.OrderID,
			"recipient": notification.RecipientID,
			"error":     err.Error(),
		})
	}
}

func (s *orderService) notifyAdmins(ctx context.Context, order domain.Order, customerName string, at time.Time) {
	if s.notifier == nil {
		return
	}
	admins, err := s.users.ListByRole(ctx, domain.UserRoleAdmin)
	if err != nil {
		s.logger(ctx, "order.notification.failed", map[string]any{
			"type":  string(NotificationOrderNew),
			"order": order.ID,
			"error": err.Error(),
		})
		return
	}
	for _, admin := range admins {
		s.notify(ctx, newOrderNotification(order, admin.ID, customerName, s.currency, at))
	}
}
