package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	domain "github.com/hometech/api/internal/domain"
)

const defaultCheckTimeout = 1500 * time.Millisecond

// DependencyCheck names a backend and the function used to ping it.
type DependencyCheck struct {
	Name    string
	Timeout time.Duration
	Check   func(context.Context) error
}

// ReadinessMonitor runs dependency checks concurrently and folds them into one report.
type ReadinessMonitor struct {
	checks  []DependencyCheck
	timeout time.Duration
	now     func() time.Time
}

// MonitorOption customises a ReadinessMonitor.
type MonitorOption func(*ReadinessMonitor)

// WithCheckTimeout sets the timeout used by checks that do not declare their own.
func WithCheckTimeout(timeout time.Duration) MonitorOption {
	return func(p *ReadinessMonitor) {
		if timeout > 0 {
			p.timeout = timeout
		}
	}
}

// WithMonitorClock injects a clock, mainly for tests.
func WithMonitorClock(clock func() time.Time) MonitorOption {
	return func(p *ReadinessMonitor) {
		if clock != nil {
			p.now = clock
		}
	}
}

// NewReadinessMonitor validates the check set and builds a monitor.
func NewReadinessMonitor(checks []DependencyCheck, opts ...MonitorOption) (*ReadinessMonitor, error) {
	if len(checks) == 0 {
		return nil, errors.New("readiness monitor: at least one dependency check is required")
	}
	for _, check := range checks {
		if strings.TrimSpace(check.Name) == "" {
			return nil, errors.New("readiness monitor: dependency check missing name")
		}
		if check.Check == nil {
			return nil, fmt.Errorf("readiness monitor: dependency %s missing check function", check.Name)
		}
	}

	monitor := &ReadinessMonitor{
		checks:  append([]DependencyCheck(nil), checks...),
		timeout: defaultCheckTimeout,
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(monitor)
		}
	}
	return monitor, nil
}

// Collect runs every check and returns the aggregated report. The report status is the worst
// individual status.
func (p *ReadinessMonitor) Collect(ctx context.Context) domain.HealthReport {
	results := make(map[string]domain.HealthCheck, len(p.checks))
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)

	for _, check := range p.checks {
		wg.Add(1)
		go func(check DependencyCheck) {
			defer wg.Done()
			result := p.run(ctx, check)
			mu.Lock()
			results[check.Name] = result
			mu.Unlock()
		}(check)
	}
	wg.Wait()

	status := domain.HealthStatusOK
	for _, result := range results {
		switch result.Status {
		case domain.HealthStatusError:
			status = domain.HealthStatusError
		case domain.HealthStatusDegraded:
			if status == domain.HealthStatusOK {
				status = domain.HealthStatusDegraded
			}
		}
	}

	return domain.HealthReport{
		Status:      status,
		Checks:      results,
		GeneratedAt: p.now(),
	}
}

func (p *ReadinessMonitor) run(ctx context.Context, check DependencyCheck) domain.HealthCheck {
	timeout := check.Timeout
	if timeout <= 0 {
		timeout = p.timeout
	}
	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := p.now()
	err := check.Check(checkCtx)
	end := p.now()

	result := domain.HealthCheck{
		Status:    domain.HealthStatusOK,
		Detail:    "ok",
		Latency:   end.Sub(start),
		CheckedAt: end,
	}
	switch {
	case err == nil && checkCtx.Err() == nil:
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(checkCtx.Err(), context.DeadlineExceeded):
		result.Status = domain.HealthStatusError
		result.Detail = "timeout"
	case errors.Is(err, context.Canceled) || checkCtx.Err() != nil:
		result.Status = domain.HealthStatusError
		result.Detail = "cancelled"
	default:
		result.Status = domain.HealthStatusDegraded
		result.Detail = err.Error()
	}
	return result
}
