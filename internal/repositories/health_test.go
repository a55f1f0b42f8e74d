package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/hometech/api/internal/domain"
)

func TestReadinessMonitorCollectSuccess(t *testing.T) {
	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	monitor, err := NewReadinessMonitor([]DependencyCheck{
		{Name: "postgres", Check: func(context.Context) error { return nil }},
		{Name: "redis", Check: func(context.Context) error { return nil }},
	}, WithMonitorClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("NewReadinessMonitor: %v", err)
	}

	report := monitor.Collect(context.Background())
	if report.Status != domain.HealthStatusOK {
		t.Fatalf("expected ok, got %s", report.Status)
	}
	if len(report.Checks) != 2 {
		t.Fatalf("expected 2 checks, got %d", len(report.Checks))
	}
	if report.GeneratedAt != now {
		t.Fatalf("expected generatedAt %s, got %s", now, report.GeneratedAt)
	}
}

func TestReadinessMonitorCollectDegradedAndTimeout(t *testing.T) {
	monitor, err := NewReadinessMonitor([]DependencyCheck{
		{Name: "firestore", Check: func(context.Context) error { return errors.New("boom") }},
		{Name: "redis", Timeout: 5 * time.Millisecond, Check: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}},
	})
	if err != nil {
		t.Fatalf("NewReadinessMonitor: %v", err)
	}

	report := monitor.Collect(context.Background())
	if report.Status != domain.HealthStatusError {
		t.Fatalf("expected error status, got %s", report.Status)
	}
	if got := report.Checks["firestore"]; got.Status != domain.HealthStatusDegraded || got.Detail != "boom" {
		t.Fatalf("unexpected firestore check %#v", got)
	}
	if got := report.Checks["redis"]; got.Status != domain.HealthStatusError || got.Detail != "timeout" {
		t.Fatalf("unexpected redis check %#v", got)
	}
}

func TestNewReadinessMonitorValidatesChecks(t *testing.T) {
	if _, err := NewReadinessMonitor(nil); err == nil {
		t.Fatalf("expected error for empty checks")
	}
	if _, err := NewReadinessMonitor([]DependencyCheck{{Name: "x"}}); err == nil {
		t.Fatalf("expected error for missing check function")
	}
}
