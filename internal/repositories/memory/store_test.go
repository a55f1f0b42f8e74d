package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	domain "github.com/hometech/api/internal/domain"
	"github.com/hometech/api/internal/repositories"
)

func TestRunInTxRollsBackOnError(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.RunInTx(ctx, func(txCtx context.Context) error {
		if err := store.Vouchers().Insert(txCtx, domain.Voucher{ID: "v1", Code: "SALE10", UsageLimit: 1}); err != nil {
			return err
		}
		if _, err := store.Counters().Next(txCtx, "orders", 1); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	if _, err := store.Vouchers().FindByID(ctx, "v1"); err == nil {
		t.Fatalf("expected voucher insert to be rolled back")
	}
	next, err := store.Counters().Next(ctx, "orders", 1)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if next != 1 {
		t.Fatalf("expected counter to restart at 1, got %d", next)
	}
}

func TestRunInTxIsReentrant(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	err := store.RunInTx(ctx, func(outer context.Context) error {
		return store.RunInTx(outer, func(inner context.Context) error {
			return store.Carts().Create(inner, domain.Cart{ID: "c1", UserID: "u1"})
		})
	})
	if err != nil {
		t.Fatalf("RunInTx: %v", err)
	}
	if _, err := store.Carts().FindByUser(ctx, "u1"); err != nil {
		t.Fatalf("expected cart to be committed: %v", err)
	}
}

func TestIncrementUsageNeverExceedsLimit(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	const limit = 5
	if err := store.Vouchers().Insert(ctx, domain.Voucher{ID: "v1", Code: "LIMITED", UsageLimit: limit}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		exhausted int
	)
	for i := 0; i < limit+7; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Vouchers().IncrementUsage(ctx, "v1")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case repositories.IsVoucherExhausted(err):
				exhausted++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != limit {
		t.Fatalf("expected %d successful increments, got %d", limit, succeeded)
	}
	if exhausted != 7 {
		t.Fatalf("expected 7 exhausted errors, got %d", exhausted)
	}
	voucher, err := store.Vouchers().FindByID(ctx, "v1")
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if voucher.UsedCount != limit {
		t.Fatalf("expected usedCount %d, got %d", limit, voucher.UsedCount)
	}
}

func TestClearLinesConflictsWhenLineMissing(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	carts := store.Carts()
	if err := carts.InsertLine(ctx, domain.CartLine{ID: "l1", CartID: "c1", ProductID: "p1", Quantity: 1}); err != nil {
		t.Fatalf("InsertLine: %v", err)
	}
	if err := carts.ClearLines(ctx, "c1", []string{"l1"}); err != nil {
		t.Fatalf("first ClearLines: %v", err)
	}

	err := carts.ClearLines(ctx, "c1", []string{"l1"})
	var repoErr repositories.RepositoryError
	if !errors.As(err, &repoErr) || !repoErr.IsConflict() {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestVoucherCodesAreUniqueIgnoringCase(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	if err := store.Vouchers().Insert(ctx, domain.Voucher{ID: "v1", Code: "SALE"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	err := store.Vouchers().Insert(ctx, domain.Voucher{ID: "v2", Code: "sale"})
	var repoErr repositories.RepositoryError
	if !errors.As(err, &repoErr) || !repoErr.IsConflict() {
		t.Fatalf("expected conflict, got %v", err)
	}

	found, err := store.Vouchers().FindByCode(ctx, "Sale")
	if err != nil || found.ID != "v1" {
		t.Fatalf("expected v1 by code, got %#v err=%v", found, err)
	}
}

func TestOrderListNewestFirstWithFilters(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	base := time.Date(2026, time.May, 1, 8, 0, 0, 0, time.UTC)
	orders := []domain.Order{
		{ID: "o1", UserID: "u1", Status: domain.OrderStatusWaitingConfirmation, CreatedAt: base},
		{ID: "o2", UserID: "u1", Status: domain.OrderStatusConfirmed, CreatedAt: base.Add(time.Hour)},
		{ID: "o3", UserID: "u2", Status: domain.OrderStatusWaitingConfirmation, CreatedAt: base.Add(2 * time.Hour)},
	}
	for _, order := range orders {
		if err := store.Orders().Insert(ctx, order); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	list, err := store.Orders().List(ctx, repositories.OrderListFilter{UserID: "u1"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 || list[0].ID != "o2" || list[1].ID != "o1" {
		t.Fatalf("unexpected order list %#v", list)
	}

	waiting := domain.OrderStatusWaitingConfirmation
	count, err := store.Orders().Count(ctx, repositories.OrderListFilter{Status: &waiting})
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 waiting orders, got %d", count)
	}
}
