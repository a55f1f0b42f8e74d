package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	domain "github.com/hometech/api/internal/domain"
	"github.com/hometech/api/internal/repositories/memory"
)

const (
	customerID      = "cust-1"
	otherCustomerID = "cust-2"
	adminID         = "admin-1"
	fridgeID        = "prod-fridge"
	fanID           = "prod-fan"
	hiddenID        = "prod-hidden"
)

var baseTime = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type captureNotifier struct {
	mu   sync.Mutex
	sent []Notification
	err  error
}

func (n *captureNotifier) Notify(_ context.Context, notification Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, notification)
	return nil
}

func (n *captureNotifier) Sent() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notification(nil), n.sent...)
}

func (n *captureNotifier) Reset() {
	n.mu.Lock()
	n.sent = nil
	n.mu.Unlock()
}

type fixture struct {
	store    *memory.Store
	clock    *fakeClock
	notifier *captureNotifier
	events   *eventLog
	carts    CartService
	vouchers VoucherService
	orders   OrderService
}

type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) log(_ context.Context, event string, _ map[string]any) {
	l.mu.Lock()
	l.events = append(l.events, event)
	l.mu.Unlock()
}

func (l *eventLog) Contains(event string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.events {
		if e == event {
			return true
		}
	}
	return false
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.NewStore()
	store.PutUser(domain.User{ID: customerID, Role: domain.UserRoleCustomer, DisplayName: "Nguyen Van A", Active: true})
	store.PutUser(domain.User{ID: otherCustomerID, Role: domain.UserRoleCustomer, DisplayName: "Tran Thi B", Active: true})
	store.PutUser(domain.User{ID: adminID, Role: domain.UserRoleAdmin, DisplayName: "Shop Admin", Active: true})
	store.PutAddress(domain.Address{
		ID:            "addr-1",
		UserID:        customerID,
		RecipientName: "Nguyen Van A",
		Phone:         "0901234567",
		Street:        "12 Le Loi",
		Ward:          "Ben Nghe",
		District:      "District 1",
		City:          "Ho Chi Minh City",
		CreatedAt:     baseTime.Add(-48 * time.Hour),
	})
	store.PutProduct(domain.Product{ID: fridgeID, Name: "Inverter Fridge", Price: 10_000_000, Stock: 5})
	store.PutProduct(domain.Product{ID: fanID, Name: "Stand Fan", Price: 500_000, Stock: 20})
	store.PutProduct(domain.Product{ID: hiddenID, Name: "Discontinued Kettle", Price: 300_000, Hidden: true})

	clock := &fakeClock{now: baseTime}
	notifier := &captureNotifier{}
	events := &eventLog{}

	var seq int
	var seqMu sync.Mutex
	idGen := func() string {
		seqMu.Lock()
		defer seqMu.Unlock()
		seq++
		return fmt.Sprintf("id-%03d", seq)
	}

	carts, err := NewCartService(CartServiceDeps{
		Carts:       store.Carts(),
		Catalog:     store.Catalog(),
		Users:       store.Users(),
		UnitOfWork:  store,
		Clock:       clock.Now,
		IDGenerator: idGen,
		Logger:      events.log,
	})
	if err != nil {
		t.Fatalf("new cart service: %v", err)
	}
	vouchers, err := NewVoucherService(VoucherServiceDeps{
		Vouchers:    store.Vouchers(),
		UnitOfWork:  store,
		Clock:       clock.Now,
		IDGenerator: idGen,
		Logger:      events.log,
	})
	if err != nil {
		t.Fatalf("new voucher service: %v", err)
	}
	orders, err := NewOrderService(OrderServiceDeps{
		Orders:      store.Orders(),
		Payments:    store.Payments(),
		Carts:       store.Carts(),
		Catalog:     store.Catalog(),
		Users:       store.Users(),
		Addresses:   store.Addresses(),
		Counters:    store.Counters(),
		Vouchers:    vouchers,
		Notifier:    notifier,
		UnitOfWork:  store,
		Clock:       clock.Now,
		IDGenerator: idGen,
		Logger:      events.log,
	})
	if err != nil {
		t.Fatalf("new order service: %v", err)
	}

	return &fixture{
		store:    store,
		clock:    clock,
		notifier: notifier,
		events:   events,
		carts:    carts,
		vouchers: vouchers,
		orders:   orders,
	}
}

func (f *fixture) addToCart(t *testing.T, userID, productID string, qty int) CartItem {
	t.Helper()
	item, err := f.carts.AddItem(context.Background(), AddCartItemCommand{UserID: userID, ProductID: productID, Quantity: qty})
	if err != nil {
		t.Fatalf("add %s to cart: %v", productID, err)
	}
	return item
}

func (f *fixture) createVoucher(t *testing.T, cmd VoucherCommand) domain.Voucher {
	t.Helper()
	voucher, err := f.vouchers.CreateVoucher(context.Background(), cmd)
	if err != nil {
		t.Fatalf("create voucher %s: %v", cmd.Code, err)
	}
	return voucher
}

func percentVoucher(code string, percent float64, minOrder int64, limit int) VoucherCommand {
	return VoucherCommand{
		Code:            code,
		DiscountPercent: &percent,
		MinOrderValue:   minOrder,
		UsageLimit:      limit,
		StartDate:       baseTime.Add(-24 * time.Hour),
		EndDate:         baseTime.Add(30 * 24 * time.Hour),
		Active:          true,
	}
}

func amountVoucher(code string, amount int64, limit int) VoucherCommand {
	return VoucherCommand{
		Code:           code,
		DiscountAmount: &amount,
		UsageLimit:     limit,
		StartDate:      baseTime.Add(-24 * time.Hour),
		EndDate:        baseTime.Add(30 * 24 * time.Hour),
		Active:         true,
	}
}

func expectErrorIs(t *testing.T, err error, targets ...error) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error matching %v, got nil", targets)
	}
	for _, target := range targets {
		if !errors.Is(err, target) {
			t.Fatalf("expected error %v to match %v", err, target)
		}
	}
}
