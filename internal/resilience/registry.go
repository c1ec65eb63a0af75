package resilience

import (
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
)

// Registry hands out one Executor per name so that a tripped breaker never
// affects another collaborator.
type Registry struct {
	mu        sync.RWMutex
	defaults  Settings
	overrides map[string]Settings
	executors map[string]*Executor
	listeners []StateListener
}

// NewRegistry creates a registry. Overrides are keyed by executor name and
// merged over defaults field by field.
func NewRegistry(defaults Settings, overrides map[string]Settings, listeners ...StateListener) *Registry {
	return &Registry{
		defaults:  defaults.WithDefaults(),
		overrides: overrides,
		executors: make(map[string]*Executor),
		listeners: listeners,
	}
}

// Get returns the executor for name, creating it on first use.
func (r *Registry) Get(name string) *Executor {
	r.mu.RLock()
	ex, ok := r.executors[name]
	r.mu.RUnlock()
	if ok {
		return ex
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if ex, ok := r.executors[name]; ok {
		return ex
	}
	ex = NewExecutor(name, r.settingsFor(name), r.notify)
	r.executors[name] = ex
	return ex
}

func (r *Registry) settingsFor(name string) Settings {
	s := r.defaults
	o, ok := r.overrides[name]
	if !ok {
		return s
	}
	if o.Policy.MaxRetries != 0 {
		s.Policy.MaxRetries = o.Policy.MaxRetries
	}
	if o.Policy.BackoffBase != 0 {
		s.Policy.BackoffBase = o.Policy.BackoffBase
	}
	if o.Policy.BackoffCap != 0 {
		s.Policy.BackoffCap = o.Policy.BackoffCap
	}
	if o.Policy.CallTimeout != 0 {
		s.Policy.CallTimeout = o.Policy.CallTimeout
	}
	if o.Breaker.FailureThreshold != 0 {
		s.Breaker.FailureThreshold = o.Breaker.FailureThreshold
	}
	if o.Breaker.Window != 0 {
		s.Breaker.Window = o.Breaker.Window
	}
	if o.Breaker.Cooldown != 0 {
		s.Breaker.Cooldown = o.Breaker.Cooldown
	}
	return s
}

func (r *Registry) notify(name string, from, to State) {
	ev := log.Info()
	if to == StateOpen {
		ev = log.Warn()
	}
	ev.Str("breaker", name).
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("Circuit breaker state changed")

	for _, l := range r.listeners {
		l(name, from, to)
	}
}

// BreakerStatus is a point-in-time view of one breaker.
type BreakerStatus struct {
	Name                string `json:"name"`
	State               State  `json:"state"`
	Requests            uint32 `json:"requests"`
	TotalFailures       uint32 `json:"total_failures"`
	ConsecutiveFailures uint32 `json:"consecutive_failures"`
}

// Status reports every executor created so far, sorted by name.
func (r *Registry) Status() []BreakerStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]BreakerStatus, 0, len(r.executors))
	for name, ex := range r.executors {
		c := ex.Counts()
		out = append(out, BreakerStatus{
			Name:                name,
			State:               ex.State(),
			Requests:            c.Requests,
			TotalFailures:       c.TotalFailures,
			ConsecutiveFailures: c.ConsecutiveFailures,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
