package engine

import "sync/atomic"

// Phase names a stage of one analysis.
type Phase string

const (
	PhaseCacheLookup     Phase = "cache_lookup"
	PhaseBaseSecurity    Phase = "base_security"
	PhaseExternalData    Phase = "external_data"
	PhaseDerivedAnalysis Phase = "derived_analysis"
	PhaseScoring         Phase = "scoring"
	PhaseCacheWrite      Phase = "cache_write"
	PhaseComplete        Phase = "complete"
)

// Observer is told when each phase starts. It is called synchronously on the
// analysis goroutine and must not block.
type Observer interface {
	OnPhase(p Phase)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(p Phase)

func (f ObserverFunc) OnPhase(p Phase) { f(p) }

// ChannelObserver buffers phases for a slow consumer and drops them when the
// buffer is full.
type ChannelObserver struct {
	ch      chan Phase
	dropped atomic.Int64
}

// NewChannelObserver creates an observer with the given buffer size.
func NewChannelObserver(buffer int) *ChannelObserver {
	if buffer <= 0 {
		buffer = 8
	}
	return &ChannelObserver{ch: make(chan Phase, buffer)}
}

func (o *ChannelObserver) OnPhase(p Phase) {
	select {
	case o.ch <- p:
	default:
		o.dropped.Add(1)
	}
}

// Phases is the receive side. It is closed by Close.
func (o *ChannelObserver) Phases() <-chan Phase { return o.ch }

// Dropped reports how many phases were discarded.
func (o *ChannelObserver) Dropped() int64 { return o.dropped.Load() }

// Close ends the stream. OnPhase must not be called afterwards.
func (o *ChannelObserver) Close() { close(o.ch) }
