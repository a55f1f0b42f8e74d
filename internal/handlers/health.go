package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	domain "github.com/hometech/api/internal/domain"
	"github.com/hometech/api/internal/platform/httpx"
)

// ReadinessChecker reports the state of backing dependencies.
type ReadinessChecker interface {
	Collect(ctx context.Context) domain.HealthReport
}

// BuildInfo describes the running binary.
type BuildInfo struct {
	Version     string
	CommitSHA   string
	Environment string
	StartedAt   time.Time
}

// HealthHandlers serves liveness and readiness checks.
type HealthHandlers struct {
	build     BuildInfo
	readiness ReadinessChecker
	clock     func() time.Time
}

// HealthOption customises HealthHandlers.
type HealthOption func(*HealthHandlers)

// WithHealthBuildInfo sets the build metadata reported by /healthz.
func WithHealthBuildInfo(info BuildInfo) HealthOption {
	return func(h *HealthHandlers) {
		h.build = info
	}
}

// WithReadiness sets the dependency checker used by /readyz.
func WithReadiness(readiness ReadinessChecker) HealthOption {
	return func(h *HealthHandlers) {
		h.readiness = readiness
	}
}

// WithHealthClock overrides the time source.
func WithHealthClock(clock func() time.Time) HealthOption {
	return func(h *HealthHandlers) {
		if clock != nil {
			h.clock = clock
		}
	}
}

// NewHealthHandlers constructs health handlers. Without a checker /readyz reports ready.
func NewHealthHandlers(opts ...HealthOption) *HealthHandlers {
	h := &HealthHandlers{clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	if h.build.StartedAt.IsZero() {
		h.build.StartedAt = h.clock()
	}
	return h
}

type healthPayload struct {
	Status      domain.HealthStatus           `json:"status"`
	Version     string                        `json:"version,omitempty"`
	CommitSHA   string                        `json:"commitSha,omitempty"`
	Environment string                        `json:"environment,omitempty"`
	Uptime      string                        `json:"uptime"`
	Timestamp   string                        `json:"timestamp"`
	Checks      map[string]healthCheckPayload `json:"checks,omitempty"`
	Details     []string                      `json:"details,omitempty"`
}

type healthCheckPayload struct {
	Status    domain.HealthStatus `json:"status"`
	Detail    string              `json:"detail,omitempty"`
	LatencyMS int64               `json:"latencyMs"`
}

// Healthz reports that the process is serving.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteOK(w, "ok", h.basePayload(domain.HealthStatusOK))
}

// Readyz checks dependencies and answers 503 when any of them is not healthy.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	if h.readiness == nil {
		httpx.WriteOK(w, "ready", h.basePayload(domain.HealthStatusOK))
		return
	}

	report := h.readiness.Collect(r.Context())
	payload := h.basePayload(report.Status)
	payload.Checks = make(map[string]healthCheckPayload, len(report.Checks))
	for name, check := range report.Checks {
		payload.Checks[name] = healthCheckPayload{
			Status:    check.Status,
			Detail:    check.Detail,
			LatencyMS: check.Latency.Milliseconds(),
		}
		if check.Status != domain.HealthStatusOK {
			payload.Details = append(payload.Details, name+": "+check.Detail)
		}
	}
	sort.Strings(payload.Details)

	if report.Status != domain.HealthStatusOK {
		httpx.WriteError(r.Context(), w, httpx.NewError("not_ready", "dependencies are not ready", http.StatusServiceUnavailable).WithDetails(payload))
		return
	}
	httpx.WriteOK(w, "ready", payload)
}

func (h *HealthHandlers) basePayload(status domain.HealthStatus) healthPayload {
	now := h.clock().UTC()
	return healthPayload{
		Status:      status,
		Version:     h.build.Version,
		CommitSHA:   h.build.CommitSHA,
		Environment: h.build.Environment,
		Uptime:      now.Sub(h.build.StartedAt).Round(time.Second).String(),
		Timestamp:   now.Format(time.RFC3339),
	}
}
