package log

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/tokenrisk/internal/engine"
)

func TestStepLoggerTracksPhases(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStepLogger(&buf, PipelineSteps)

	clock := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	sl.now = func() time.Time { return clock }
	sl.startTime, sl.stepStart = clock, clock

	for _, p := range []engine.Phase{engine.PhaseCacheLookup, engine.PhaseBaseSecurity, engine.PhaseExternalData} {
		sl.OnPhase(p)
		clock = clock.Add(100 * time.Millisecond)
	}
	sl.OnPhase(engine.PhaseComplete)

	out := buf.String()
	assert.Contains(t, out, "[#------] 1/7 cache_lookup")
	assert.Contains(t, out, "[###----] 3/7 external_data")
	assert.Contains(t, out, "[#######] 7/7 complete (300ms)")

	d := sl.Durations()
	assert.Equal(t, 100*time.Millisecond, d[engine.PhaseBaseSecurity])
	assert.Equal(t, 100*time.Millisecond, d[engine.PhaseExternalData])
	assert.Equal(t, []engine.Phase{engine.PhaseCacheLookup, engine.PhaseBaseSecurity, engine.PhaseExternalData, engine.PhaseComplete}, sl.Seen())
}

func TestStepLoggerIgnoresUnknownAndReportsFailure(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStepLogger(&buf, PipelineSteps)

	sl.OnPhase(engine.Phase("warmup"))
	assert.Empty(t, sl.Seen())

	sl.OnPhase(engine.PhaseBaseSecurity)
	sl.Fail(errors.New("rpc down"))
	require.Contains(t, buf.String(), "failed during base_security: rpc down")
}

func TestBar(t *testing.T) {
	assert.Equal(t, "[##--] 2/4", bar(2, 4))
	assert.Equal(t, "[####] 4/4", bar(9, 4))
	assert.Equal(t, "", bar(1, 0))
}
