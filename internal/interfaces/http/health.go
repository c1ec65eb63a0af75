package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"sort"
	"time"

	"github.com/sawpanic/tokenrisk/internal/resilience"
)

// Pinger is a dependency with a liveness probe (Redis, Postgres).
type Pinger interface {
	Ping(ctx context.Context) error
}

// Describer is an optional Pinger extension whose summary replaces "ok" in a
// passing check.
type Describer interface {
	Describe() string
}

// BreakerSource reports circuit breaker states.
type BreakerSource interface {
	Status() []resilience.BreakerStatus
}

// HealthHandler provides system health status endpoint
type HealthHandler struct {
	breakers  BreakerSource
	checks    map[string]Pinger
	startTime time.Time
	version   string
	timeout   time.Duration
}

// NewHealthHandler creates a new health handler. breakers may be nil.
func NewHealthHandler(breakers BreakerSource, checks map[string]Pinger, version string) *HealthHandler {
	return &HealthHandler{
		breakers:  breakers,
		checks:    checks,
		startTime: time.Now(),
		version:   version,
		timeout:   2 * time.Second,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string                     `json:"status"` // "healthy" or "degraded"
	Timestamp time.Time                  `json:"timestamp"`
	Uptime    string                     `json:"uptime"`
	Version   string                     `json:"version"`
	System    SystemInfo                 `json:"system"`
	Breakers  []resilience.BreakerStatus `json:"breakers"`
	Checks    map[string]CheckResult     `json:"checks"`
}

// SystemInfo provides system-level information
type SystemInfo struct {
	GoVersion     string `json:"go_version"`
	NumGoroutines int    `json:"num_goroutines"`
	MemAlloc      uint64 `json:"mem_alloc_bytes"`
	NumGC         uint32 `json:"num_gc"`
}

// CheckResult represents individual health check results
type CheckResult struct {
	Status   string        `json:"status"` // "pass", "warn", "fail"
	Message  string        `json:"message"`
	Duration time.Duration `json:"duration"`
}

// ServeHTTP implements the health check endpoint
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	response := h.Gather(r.Context())

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// Gather collects all health information. Cache tiers fail open, so a
// failing check degrades the service rather than taking it down.
func (h *HealthHandler) Gather(ctx context.Context) HealthResponse {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Version:   h.version,
		System:    systemInfo(),
		Breakers:  []resilience.BreakerStatus{},
		Checks:    make(map[string]CheckResult),
	}

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		res := h.probe(ctx, h.checks[name])
		response.Checks[name] = res
		if res.Status != "pass" {
			response.Status = "degraded"
		}
	}

	if h.breakers != nil {
		response.Breakers = h.breakers.Status()
		open := 0
		for _, b := range response.Breakers {
			if b.State == resilience.StateOpen {
				open++
			}
		}
		check := CheckResult{Status: "pass", Message: "All circuit breakers closed"}
		if open > 0 {
			check = CheckResult{Status: "warn", Message: fmt.Sprintf("%d/%d circuit breakers open", open, len(response.Breakers))}
			response.Status = "degraded"
		}
		response.Checks["circuit_breakers"] = check
	}

	return response
}

func (h *HealthHandler) probe(ctx context.Context, p Pinger) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	start := time.Now()
	if err := p.Ping(ctx); err != nil {
		return CheckResult{Status: "fail", Message: err.Error(), Duration: time.Since(start)}
	}
	msg := "ok"
	if d, ok := p.(Describer); ok {
		msg = d.Describe()
	}
	return CheckResult{Status: "pass", Message: msg, Duration: time.Since(start)}
}

func systemInfo() SystemInfo {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	return SystemInfo{
		GoVersion:     runtime.Version(),
		NumGoroutines: runtime.NumGoroutine(),
		MemAlloc:      memStats.Alloc,
		NumGC:         memStats.NumGC,
	}
}
