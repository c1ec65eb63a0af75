package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/tokenrisk/internal/domain/token"
	"github.com/sawpanic/tokenrisk/internal/persistence"
)

func TestRootCommandTree(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"serve", "analyze", "health", "prune", "recent"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
}

func TestAnalyzeRejectsInvalidAddress(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"analyze", "definitely-not-base58!"})

	err := root.Execute()
	require.Error(t, err)
	assert.ErrorIs(t, err, token.ErrInvalidAddress)
}

func TestInvalidLogLevel(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"--log-level", "chatty", "prune"})
	assert.Error(t, root.Execute())
	logLevel = "info"
}

func TestRenderScore(t *testing.T) {
	s := &token.SuperTokenScore{
		TokenAddress:    "So11111111111111111111111111111111111111112",
		TokenName:       "Wrapped SOL",
		TokenSymbol:     "SOL",
		SuperScore:      91,
		GlobalRiskLevel: token.UltraSafe,
		Recommendation:  "Low risk",
		ScoreBreakdown:  token.ScoreBreakdown{BaseSecurityScore: 95, NewWalletScore: 40},
		AllRedFlags:     []token.Flag{{Category: "holders", Severity: "HIGH", Message: "Top holder owns 40%"}},
		AnalyzedAt:      time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		Cached:          true,
		Fallback:        true,
	}

	var buf bytes.Buffer
	require.NoError(t, renderScore(&buf, s))
	out := buf.String()

	assert.Contains(t, out, "Wrapped SOL (SOL)")
	assert.Contains(t, out, "91 / 100")
	assert.Contains(t, out, "ULTRA_SAFE")
	assert.Contains(t, out, "stale fallback")
	assert.Contains(t, out, "[HIGH] holders")
	assert.Contains(t, out, "Top holder owns 40%")
}

func TestBreakdownRowsLowestFirst(t *testing.T) {
	rows := breakdownRows(token.ScoreBreakdown{BaseSecurityScore: 95, NewWalletScore: 40})
	require.NotEmpty(t, rows)
	assert.Equal(t, 0, rows[0].value)
	for i := 1; i < len(rows); i++ {
		assert.LessOrEqual(t, rows[i-1].value, rows[i].value)
	}
	last := rows[len(rows)-1]
	assert.Equal(t, "baseSecurityScore", last.name)
	assert.Equal(t, 95, last.value)
}

func TestRenderRecent(t *testing.T) {
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	require.NoError(t, renderRecent(&buf, recentReport{
		Scores: []persistence.ScoreRecord{
			{TokenAddress: "mintA", SuperScore: 88, GlobalRiskLevel: "SAFE", AnalyzedAt: at},
			{TokenAddress: "mintB", SuperScore: 12, GlobalRiskLevel: "SCAM", LowConfidence: true, AnalyzedAt: at},
		},
		Totals: map[string]int64{"SCAM": 1, "SAFE": 4},
	}))
	out := buf.String()

	assert.Contains(t, out, "mintA")
	assert.Contains(t, out, "SCAM (low confidence)")
	assert.Contains(t, out, "2024-06-01T12:00:00Z")
	totals := out[strings.Index(out, "RISK LEVEL"):]
	assert.Less(t, strings.Index(totals, "SAFE"), strings.Index(totals, "SCAM"))
}

func TestTotalsOrder(t *testing.T) {
	got := totalsOrder(map[string]int64{"SCAM": 1, "SAFE": 2, "ULTRA_SAFE": 3, "LEGACY": 4})
	assert.Equal(t, []string{"ULTRA_SAFE", "SAFE", "SCAM", "LEGACY"}, got)
}

func TestRecentRejectsNonPositiveLimit(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"recent", "--limit", "0"})
	assert.Error(t, root.Execute())
}
