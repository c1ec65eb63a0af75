package dexscreener

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/tokenrisk/internal/domain/token"
)

const mint = token.Address("7GCihgDB8fe6KNjn2MYtkzZcRjQy3t9GHdC8uHYmW2hr")

const pairsJSON = `{
  "schemaVersion": "1.0.0",
  "pairs": [
    {
      "dexId": "orca", "pairAddress": "small",
      "baseToken": {"address": "7GCihgDB8fe6KNjn2MYtkzZcRjQy3t9GHdC8uHYmW2hr", "name": "Popcat", "symbol": "POPCAT"},
      "quoteToken": {"address": "So11111111111111111111111111111111111111112", "symbol": "SOL"},
      "priceUsd": "0.5", "liquidity": {"usd": 1000}
    },
    {
      "dexId": "raydium", "pairAddress": "big",
      "baseToken": {"address": "So11111111111111111111111111111111111111112", "name": "Wrapped SOL", "symbol": "SOL"},
      "quoteToken": {"address": "7GCihgDB8fe6KNjn2MYtkzZcRjQy3t9GHdC8uHYmW2hr", "name": "Popcat", "symbol": "POPCAT"},
      "priceNative": "0.0033", "priceUsd": "0.51",
      "txns": {"h1": {"buys": 40, "sells": 30}, "h24": {"buys": 900, "sells": 700}},
      "volume": {"h1": 12000, "h24": 350000.5},
      "priceChange": {"h1": -1.2, "h6": 3, "h24": 12.5},
      "liquidity": {"usd": 2500000},
      "fdv": 500000000, "marketCap": 480000000,
      "pairCreatedAt": 1700000000000,
      "info": {"websites": [{"url": "https://popcat.example"}], "socials": [{"type": "twitter", "url": "https://x.com/popcat"}]}
    }
  ]
}`

func TestFetch_PicksMostLiquidPair(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/latest/dex/tokens/"+mint.String(), r.URL.Path)
		_, _ = w.Write([]byte(pairsJSON))
	}))
	defer srv.Close()

	data, err := New(srv.URL).Fetch(context.Background(), mint)
	require.NoError(t, err)

	assert.Equal(t, 2, data.PairCount)
	assert.Equal(t, "big", *data.PairAddress)
	assert.Equal(t, "POPCAT", *data.Symbol, "subject token is taken from the side matching the mint")
	assert.Equal(t, "SOL", *data.QuoteSymbol)
	assert.Equal(t, 0.51, *data.PriceUSD)
	assert.Equal(t, 2500000.0, *data.LiquidityUSD)
	assert.Equal(t, 350000.5, *data.Volume.H24)
	assert.Nil(t, data.Volume.M5)
	assert.Equal(t, 12.5, *data.PriceChange.H24)
	assert.Equal(t, token.TxnCounts{Buys: 40, Sells: 30}, *data.TxnsH1)
	require.NotNil(t, data.PairCreatedAt)
	assert.Equal(t, int64(1700000000), data.PairCreatedAt.Unix())
	assert.Equal(t, []string{"https://popcat.example"}, data.Websites)
	assert.Equal(t, []string{"https://x.com/popcat"}, data.Socials)
}

func TestFetch_NoPairs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"schemaVersion":"1.0.0","pairs":null}`))
	}))
	defer srv.Close()

	data, err := New(srv.URL).Fetch(context.Background(), mint)
	require.NoError(t, err)
	assert.Zero(t, data.PairCount)
	assert.Nil(t, data.PriceUSD)
}
