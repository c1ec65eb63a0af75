package application

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/tokenrisk/internal/config"
	"github.com/sawpanic/tokenrisk/internal/domain/token"
	"github.com/sawpanic/tokenrisk/internal/persistence/postgres"
)

func TestBuildWithInProcessTiers(t *testing.T) {
	cfg := config.Default()

	svc, err := Build(context.Background(), cfg, WithRegisterer(prometheus.NewRegistry()), WithVersion("v-test"))
	require.NoError(t, err)
	defer svc.Close()

	require.NotNil(t, svc.Engine)
	require.NotNil(t, svc.Health)
	assert.Nil(t, svc.Scores)

	health := svc.Health.Gather(context.Background())
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "v-test", health.Version)
	assert.NotContains(t, health.Checks, "redis")
	assert.NotContains(t, health.Checks, "postgres")
}

func TestBuildFallsBackWhenRedisUnreachable(t *testing.T) {
	cfg := config.Default()
	cfg.Redis.Enabled = true
	cfg.Redis.Addr = "127.0.0.1:1"

	svc, err := Build(context.Background(), cfg, WithRegisterer(prometheus.NewRegistry()))
	require.NoError(t, err)
	defer svc.Close()

	assert.NotContains(t, svc.Health.Gather(context.Background()).Checks, "redis")
}

func TestPruneWithoutDurableStore(t *testing.T) {
	svc, err := Build(context.Background(), config.Default(), WithRegisterer(prometheus.NewRegistry()))
	require.NoError(t, err)
	defer svc.Close()

	n, err := svc.Prune(context.Background(), 24*time.Hour)
	assert.ErrorIs(t, err, ErrNoDurableStore)
	assert.Zero(t, n)

	_, err = svc.Recent(context.Background(), 10)
	assert.ErrorIs(t, err, ErrNoDurableStore)
	_, err = svc.RiskLevelCounts(context.Background())
	assert.ErrorIs(t, err, ErrNoDurableStore)
}

func TestDurableQueries(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()
	svc := &Service{Scores: postgres.NewScoresRepo(sqlx.NewDb(mockDB, "postgres"), time.Second)}
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM token_scores ORDER BY analyzed_at DESC LIMIT \$1`).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"token_address", "super_score", "global_risk_level", "low_confidence", "payload", "analyzed_at", "updated_at"}).
			AddRow("mintA", 77, "SAFE", false, []byte(`{}`), at, at))
	mock.ExpectQuery(`GROUP BY global_risk_level`).
		WillReturnRows(sqlmock.NewRows([]string{"global_risk_level", "count"}).AddRow("SAFE", 1))

	recs, err := svc.Recent(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, 77, recs[0].SuperScore)

	totals, err := svc.RiskLevelCounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"SAFE": 1}, totals)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestServerRoutesToEngine(t *testing.T) {
	svc, err := Build(context.Background(), config.Default(), WithRegisterer(prometheus.NewRegistry()))
	require.NoError(t, err)
	defer svc.Close()

	h := svc.Server().Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/tokens/not-a-mint/score", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBuildFetchersSkipsDisabledProviders(t *testing.T) {
	cfg := config.Default()
	p := cfg.Providers[token.ProviderBirdeye]
	p.Disabled = true
	cfg.Providers[token.ProviderBirdeye] = p
	delete(cfg.Providers, token.ProviderSolscan)

	f := buildFetchers(cfg, nil)
	assert.NotNil(t, f.RugCheck)
	assert.NotNil(t, f.DexScreener)
	assert.NotNil(t, f.Jupiter)
	assert.Nil(t, f.Birdeye)
	assert.Nil(t, f.Solscan)
	assert.Equal(t, 3, enabledProviders(cfg))
}
