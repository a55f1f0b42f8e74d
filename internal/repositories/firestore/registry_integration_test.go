//go:build integration

package firestore

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	domain "github.com/hometech/api/internal/domain"
	pconfig "github.com/hometech/api/internal/platform/config"
	pfirestore "github.com/hometech/api/internal/platform/firestore"
	"github.com/hometech/api/internal/repositories"
)

const firestoreEmulatorImage = "gcr.io/google.com/cloudsdktool/cloud-sdk:emulators"

func newEmulatorRegistry(t *testing.T, projectID string) *Registry {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test skipped in short mode")
	}
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skip("docker not available: " + err.Error())
	}
	ensureDockerDaemon(t)

	port := freePort(t)
	endpoint := fmt.Sprintf("127.0.0.1:%d", port)
	containerID := startFirestoreEmulator(t, port)
	t.Cleanup(func() { stopContainer(containerID) })
	waitForEndpoint(t, endpoint, 30*time.Second)

	provider := pfirestore.NewProvider(pconfig.FirestoreConfig{ProjectID: projectID, EmulatorHost: endpoint})
	t.Cleanup(func() { _ = provider.Close(context.Background()) })

	reg, err := NewRegistry(provider)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	return reg
}

func TestCounterRepositoryIntegration(t *testing.T) {
	reg := newEmulatorRegistry(t, "counter-test")
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	const workers = 16
	results := make([]int64, workers)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(idx int) {
			defer wg.Done()
			value, err := reg.Counters().Next(ctx, "orders:2026", 1)
			if err != nil {
				t.Errorf("next(%d): %v", idx, err)
				return
			}
			results[idx] = value
		}(i)
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i] < results[j] })
	for i, val := range results {
		if expected := int64(i + 1); val != expected {
			t.Fatalf("expected sequence %d at position %d, got %d", expected, i, val)
		}
	}
}

func TestVoucherIncrementUsageIntegration(t *testing.T) {
	reg := newEmulatorRegistry(t, "voucher-test")
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	const limit = 3
	voucher := domain.Voucher{ID: "v-1", Code: "freeship", UsageLimit: limit, Active: true}
	if err := reg.Vouchers().Insert(ctx, voucher); err != nil {
		t.Fatalf("insert voucher: %v", err)
	}
	if err := reg.Vouchers().Insert(ctx, domain.Voucher{ID: "v-2", Code: "FREESHIP"}); err == nil {
		t.Fatalf("expected duplicate code to be rejected")
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < limit+4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := reg.Vouchers().IncrementUsage(ctx, "v-1")
			if err != nil && !repositories.IsVoucherExhausted(err) {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if succeeded != limit {
		t.Fatalf("expected %d successful increments, got %d", limit, succeeded)
	}
	stored, err := reg.Vouchers().FindByCode(ctx, "FreeShip")
	if err != nil {
		t.Fatalf("find by code: %v", err)
	}
	if stored.UsedCount != limit {
		t.Fatalf("expected usedCount %d, got %d", limit, stored.UsedCount)
	}
}

func TestCheckoutTransactionIntegration(t *testing.T) {
	reg := newEmulatorRegistry(t, "checkout-test")
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	now := time.Date(2026, time.June, 1, 9, 0, 0, 0, time.UTC)
	if err := reg.Carts().Create(ctx, domain.Cart{ID: "cart-1", UserID: "u-1", CreatedAt: now, UpdatedAt: now}); err != nil {
		t.Fatalf("create cart: %v", err)
	}
	line := domain.CartLine{ID: "line-1", CartID: "cart-1", ProductID: "p-1", Quantity: 2, CreatedAt: now, UpdatedAt: now}
	if err := reg.Carts().InsertLine(ctx, line); err != nil {
		t.Fatalf("insert line: %v", err)
	}

	err := reg.RunInTx(ctx, func(ctx context.Context) error {
		lines, err := reg.Carts().ListLines(ctx, "cart-1")
		if err != nil {
			return err
		}
		if len(lines) != 1 {
			return fmt.Errorf("expected 1 line, got %d", len(lines))
		}
		order := domain.Order{
			ID:          "o-1",
			OrderNumber: "HT-2026-000001",
			UserID:      "u-1",
			Status:      domain.OrderStatusWaitingConfirmation,
			Items:       []domain.OrderItem{{ProductID: "p-1", ProductName: "Desk lamp", Quantity: 2, UnitPrice: 150000}},
			Subtotal:    300000,
			TotalAmount: 300000,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := reg.Orders().Insert(ctx, order); err != nil {
			return err
		}
		return reg.Carts().ClearLines(ctx, "cart-1", []string{lines[0].ID})
	})
	if err != nil {
		t.Fatalf("checkout transaction: %v", err)
	}

	order, err := reg.Orders().FindByID(ctx, "o-1")
	if err != nil {
		t.Fatalf("find order: %v", err)
	}
	if len(order.Items) != 1 || order.Items[0].LineTotal() != 300000 {
		t.Fatalf("unexpected order items %#v", order.Items)
	}
	lines, err := reg.Carts().ListLines(ctx, "cart-1")
	if err != nil {
		t.Fatalf("list lines: %v", err)
	}
	if len(lines) != 0 {
		t.Fatalf("expected cart to be empty, got %d lines", len(lines))
	}

	if err := reg.Carts().ClearLines(ctx, "cart-1", []string{"line-1"}); err == nil {
		t.Fatalf("expected clearing a removed line to fail")
	}
	count, err := reg.Orders().Count(ctx, repositories.OrderListFilter{UserID: "u-1"})
	if err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 order, got %d", count)
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	addr, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("unable to allocate port: %v", err)
	}
	defer addr.Close()
	return addr.Addr().(*net.TCPAddr).Port
}

func startFirestoreEmulator(t *testing.T, port int) string {
	t.Helper()
	args := []string{
		"run", "-d", "--rm",
		"-p", fmt.Sprintf("%d:8080", port),
		firestoreEmulatorImage,
		"gcloud", "beta", "emulators", "firestore", "start",
		"--host-port=0.0.0.0:8080",
		"--quiet",
	}
	out, err := exec.Command("docker", args...).CombinedOutput()
	if err != nil {
		t.Fatalf("failed to start firestore emulator: %v - %s", err, string(out))
	}
	id := strings.TrimSpace(string(out))
	if id == "" {
		t.Fatalf("docker returned empty container id")
	}
	if len(id) > 12 {
		id = id[:12]
	}
	return id
}

func stopContainer(id string) {
	if id == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = exec.CommandContext(ctx, "docker", "stop", id).Run()
}

func waitForEndpoint(t *testing.T, endpoint string, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", endpoint, 500*time.Millisecond)
		if err == nil {
			conn.Close()
			return
		}
		lastErr = err
		time.Sleep(250 * time.Millisecond)
	}
	if lastErr == nil {
		lastErr = errors.New("timeout waiting for endpoint")
	}
	t.Fatalf("emulator did not become ready: %v", lastErr)
}

func ensureDockerDaemon(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := exec.CommandContext(ctx, "docker", "info").Run(); err != nil {
		t.Skip("docker daemon unavailable: " + err.Error())
	}
}
