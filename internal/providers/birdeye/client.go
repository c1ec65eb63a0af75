// Package birdeye fetches token overviews from the Birdeye public API.
package birdeye

import (
	"context"
	"errors"
	"net/url"

	"github.com/sawpanic/tokenrisk/internal/domain/token"
	"github.com/sawpanic/tokenrisk/internal/providers"
	"github.com/sawpanic/tokenrisk/internal/providers/httpjson"
)

const DefaultBaseURL = "https://public-api.birdeye.so"

type Client struct {
	http *httpjson.Client
}

func New(baseURL, apiKey string, opts ...httpjson.Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{http: httpjson.New(httpjson.Config{
		Provider: token.ProviderBirdeye,
		BaseURL:  baseURL,
		Headers: map[string]string{
			"X-API-KEY": apiKey,
			"x-chain":   "solana",
		},
	}, opts...)}
}

type overviewResponse struct {
	Success bool `json:"success"`
	Data    *struct {
		Price                 httpjson.Number `json:"price"`
		Liquidity             httpjson.Number `json:"liquidity"`
		MC                    httpjson.Number `json:"mc"`
		MarketCap             httpjson.Number `json:"marketCap"`
		V24hUSD               httpjson.Number `json:"v24hUSD"`
		Holder                httpjson.Number `json:"holder"`
		UniqueWallet24h       httpjson.Number `json:"uniqueWallet24h"`
		Trade24h              httpjson.Number `json:"trade24h"`
		Buy24h                httpjson.Number `json:"buy24h"`
		Sell24h               httpjson.Number `json:"sell24h"`
		PriceChange24hPercent httpjson.Number `json:"priceChange24hPercent"`
	} `json:"data"`
}

// Fetch returns the token overview for addr.
func (c *Client) Fetch(ctx context.Context, addr token.Address) (*token.BirdeyeData, error) {
	var resp overviewResponse
	if err := c.http.GetJSON(ctx, "/defi/token_overview", url.Values{"address": {addr.String()}}, &resp); err != nil {
		return nil, err
	}
	if !resp.Success || resp.Data == nil {
		return nil, &providers.ProviderError{
			Provider: token.ProviderBirdeye,
			Kind:     providers.KindNotFound,
			Err:      errors.New("overview unavailable"),
		}
	}

	d := resp.Data
	mc := d.MC
	if !mc.Set {
		mc = d.MarketCap
	}
	return &token.BirdeyeData{
		Price:            d.Price.Ptr(),
		LiquidityUSD:     d.Liquidity.Ptr(),
		MarketCap:        mc.Ptr(),
		Volume24hUSD:     d.V24hUSD.Ptr(),
		Holders:          d.Holder.IntPtr(),
		UniqueWallets24h: d.UniqueWallet24h.IntPtr(),
		Trades24h:        d.Trade24h.IntPtr(),
		Buys24h:          d.Buy24h.IntPtr(),
		Sells24h:         d.Sell24h.IntPtr(),
		PriceChange24h:   d.PriceChange24hPercent.Ptr(),
	}, nil
}
