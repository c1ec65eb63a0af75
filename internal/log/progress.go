package log

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/tokenrisk/internal/engine"
)

// PipelineSteps is the full phase sequence of a computed analysis.
var PipelineSteps = []engine.Phase{
	engine.PhaseCacheLookup,
	engine.PhaseBaseSecurity,
	engine.PhaseExternalData,
	engine.PhaseDerivedAnalysis,
	engine.PhaseScoring,
	engine.PhaseCacheWrite,
	engine.PhaseComplete,
}

// StepLogger prints one line per analysis phase and keeps per-phase timings.
// It implements engine.Observer.
type StepLogger struct {
	mu        sync.Mutex
	out       io.Writer
	steps     []engine.Phase
	current   int
	startTime time.Time
	stepStart time.Time
	stepTimes map[engine.Phase]time.Duration
	order     []engine.Phase
	now       func() time.Time
}

// NewStepLogger creates a step logger writing to out.
func NewStepLogger(out io.Writer, steps []engine.Phase) *StepLogger {
	now := time.Now()
	return &StepLogger{
		out:       out,
		steps:     steps,
		current:   -1,
		startTime: now,
		stepStart: now,
		stepTimes: make(map[engine.Phase]time.Duration, len(steps)),
		now:       time.Now,
	}
}

// OnPhase closes the running step and starts p.
func (sl *StepLogger) OnPhase(p engine.Phase) {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	now := sl.now()
	sl.closeStep(now)

	idx := sl.indexOf(p)
	if idx == -1 {
		log.Warn().Str("phase", string(p)).Msg("Unknown pipeline step")
		return
	}
	sl.current = idx
	sl.stepStart = now
	sl.order = append(sl.order, p)

	if p == engine.PhaseComplete {
		fmt.Fprintf(sl.out, "%s %s (%s)\n", bar(len(sl.steps), len(sl.steps)), p, now.Sub(sl.startTime).Round(time.Millisecond))
		return
	}
	fmt.Fprintf(sl.out, "%s %s\n", bar(idx+1, len(sl.steps)), p)
}

// Fail reports the step that was running when the analysis failed.
func (sl *StepLogger) Fail(err error) {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	fmt.Fprintf(sl.out, "failed during %s: %v\n", sl.currentName(), err)
	log.Debug().
		Str("failed_step", sl.currentName()).
		Int("completed_steps", len(sl.stepTimes)).
		Int("total_steps", len(sl.steps)).
		Err(err).
		Msg("Pipeline failed")
}

// Durations returns the recorded time of each finished step.
func (sl *StepLogger) Durations() map[engine.Phase]time.Duration {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	out := make(map[engine.Phase]time.Duration, len(sl.stepTimes))
	for k, v := range sl.stepTimes {
		out[k] = v
	}
	return out
}

// Seen returns phases in the order they were reported.
func (sl *StepLogger) Seen() []engine.Phase {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	return append([]engine.Phase(nil), sl.order...)
}

func (sl *StepLogger) closeStep(now time.Time) {
	if sl.current < 0 {
		return
	}
	sl.stepTimes[sl.steps[sl.current]] = now.Sub(sl.stepStart)
}

func (sl *StepLogger) indexOf(p engine.Phase) int {
	for i, s := range sl.steps {
		if s == p {
			return i
		}
	}
	return -1
}

func (sl *StepLogger) currentName() string {
	if sl.current >= 0 && sl.current < len(sl.steps) {
		return string(sl.steps[sl.current])
	}
	return "unknown"
}

// bar renders "[###----] 3/7".
func bar(done, total int) string {
	if total <= 0 {
		return ""
	}
	if done > total {
		done = total
	}
	return fmt.Sprintf("[%s%s] %d/%d", strings.Repeat("#", done), strings.Repeat("-", total-done), done, total)
}
