package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/hometech/api/internal/domain"
	"github.com/hometech/api/internal/repositories/memory"
	"github.com/hometech/api/internal/services"
)

const (
	customerID      = "cust-1"
	otherCustomerID = "cust-2"
	fridgeID        = "prod-fridge"
	fanID           = "prod-fan"
)

var baseTime = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type apiFixture struct {
	store    *memory.Store
	clock    *testClock
	vouchers services.VoucherService
	router   chi.Router
}

type fixtureOptions struct {
	createMiddlewares []func(http.Handler) http.Handler
}

func newAPIFixture(t *testing.T, opts ...func(*fixtureOptions)) *apiFixture {
	t.Helper()

	var options fixtureOptions
	for _, opt := range opts {
		opt(&options)
	}

	store := memory.NewStore()
	store.PutUser(domain.User{ID: customerID, Role: domain.UserRoleCustomer, DisplayName: "Nguyen Van A", Active: true})
	store.PutUser(domain.User{ID: otherCustomerID, Role: domain.UserRoleCustomer, DisplayName: "Tran Thi B", Active: true})
	store.PutUser(domain.User{ID: "admin-1", Role: domain.UserRoleAdmin, DisplayName: "Shop Admin", Active: true})
	store.PutAddress(domain.Address{
		ID:            "addr-1",
		UserID:        customerID,
		RecipientName: "Nguyen Van A",
		Phone:         "0901234567",
		Street:        "12 Le Loi",
		District:      "District 1",
		City:          "Ho Chi Minh City",
		CreatedAt:     baseTime.Add(-time.Hour),
	})
	store.PutProduct(domain.Product{
		ID:          fridgeID,
		Name:        "Inverter Fridge",
		Description: `<p>Quiet <b>inverter</b> compressor</p><script>alert(1)</script>`,
		Price:       10_000_000,
		Stock:       5,
	})
	store.PutProduct(domain.Product{ID: fanID, Name: "Stand Fan", Price: 500_000, Stock: 20})

	clock := &testClock{now: baseTime}
	var seq int
	var seqMu sync.Mutex
	idGen := func() string {
		seqMu.Lock()
		defer seqMu.Unlock()
		seq++
		return fmt.Sprintf("id-%03d", seq)
	}

	carts, err := services.NewCartService(services.CartServiceDeps{
		Carts:       store.Carts(),
		Catalog:     store.Catalog(),
		Users:       store.Users(),
		UnitOfWork:  store,
		Clock:       clock.Now,
		IDGenerator: idGen,
	})
	if err != nil {
		t.Fatalf("cart service: %v", err)
	}
	vouchers, err := services.NewVoucherService(services.VoucherServiceDeps{
		Vouchers:    store.Vouchers(),
		UnitOfWork:  store,
		Clock:       clock.Now,
		IDGenerator: idGen,
	})
	if err != nil {
		t.Fatalf("voucher service: %v", err)
	}
	orders, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:      store.Orders(),
		Payments:    store.Payments(),
		Carts:       store.Carts(),
		Catalog:     store.Catalog(),
		Users:       store.Users(),
		Addresses:   store.Addresses(),
		Counters:    store.Counters(),
		Vouchers:    vouchers,
		UnitOfWork:  store,
		Clock:       clock.Now,
		IDGenerator: idGen,
	})
	if err != nil {
		t.Fatalf("order service: %v", err)
	}

	router := NewRouter(
		WithCartRoutes(NewCartHandlers(carts).Routes),
		WithOrderRoutes(NewOrderHandlers(orders, WithCreateMiddlewares(options.createMiddlewares...)).Routes),
		WithVoucherRoutes(NewVoucherHandlers(vouchers).Routes),
	)

	return &apiFixture{store: store, clock: clock, vouchers: vouchers, router: router}
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func (f *apiFixture) do(t *testing.T, method, target string, body io.Reader) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return f.serve(t, req)
}

func (f *apiFixture) serve(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr, decodeEnvelope(t, rr)
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope %q: %v", rr.Body.String(), err)
	}
	if env.Success == (rr.Code >= http.StatusBadRequest) {
		t.Fatalf("success=%v does not match status %d", env.Success, rr.Code)
	}
	return env
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(env.Data, &out); err != nil {
		t.Fatalf("decode data %s: %v", string(env.Data), err)
	}
	return out
}

func (f *apiFixture) addToCart(t *testing.T, userID, productID string, qty int) cartItemPayload {
	t.Helper()
	target := fmt.Sprintf("/cart/add?userId=%s&productId=%s", userID, productID)
	if qty > 0 {
		target += fmt.Sprintf("&quantity=%d", qty)
	}
	rr, env := f.do(t, http.MethodPost, target, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("add to cart: status %d %s", rr.Code, rr.Body.String())
	}
	return decodeData[cartItemPayload](t, env)
}

func (f *apiFixture) createPercentVoucher(t *testing.T, code string, percent float64, limit int) domain.Voucher {
	t.Helper()
	voucher, err := f.vouchers.CreateVoucher(context.Background(), services.VoucherCommand{
		Code:            code,
		DiscountPercent: &percent,
		UsageLimit:      limit,
		StartDate:       baseTime.Add(-24 * time.Hour),
		EndDate:         baseTime.Add(30 * 24 * time.Hour),
		Active:          true,
	})
	if err != nil {
		t.Fatalf("create voucher: %v", err)
	}
	return voucher
}
