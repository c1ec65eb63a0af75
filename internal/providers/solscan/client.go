// Package solscan fetches token metadata from the Solscan Pro API.
package solscan

import (
	"context"
	"errors"
	"math"
	"net/url"
	"time"

	"github.com/sawpanic/tokenrisk/internal/domain/token"
	"github.com/sawpanic/tokenrisk/internal/providers"
	"github.com/sawpanic/tokenrisk/internal/providers/httpjson"
)

const DefaultBaseURL = "https://pro-api.solscan.io"

type Client struct {
	http *httpjson.Client
}

func New(baseURL, apiKey string, opts ...httpjson.Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{http: httpjson.New(httpjson.Config{
		Provider: token.ProviderSolscan,
		BaseURL:  baseURL,
		Headers:  map[string]string{"token": apiKey},
	}, opts...)}
}

type metaResponse struct {
	Success bool `json:"success"`
	Data    *struct {
		Name        string          `json:"name"`
		Symbol      string          `json:"symbol"`
		Decimals    *int            `json:"decimals"`
		Holder      httpjson.Number `json:"holder"`
		Supply      httpjson.Number `json:"supply"`
		Price       httpjson.Number `json:"price"`
		MarketCap   httpjson.Number `json:"market_cap"`
		CreatedTime int64           `json:"created_time"`
		Creator     string          `json:"creator"`
	} `json:"data"`
}

// Fetch returns the token metadata for addr. Supply is converted to whole
// tokens when decimals are known.
func (c *Client) Fetch(ctx context.Context, addr token.Address) (*token.SolscanData, error) {
	var resp metaResponse
	if err := c.http.GetJSON(ctx, "/v2.0/token/meta", url.Values{"address": {addr.String()}}, &resp); err != nil {
		return nil, err
	}
	if !resp.Success || resp.Data == nil {
		return nil, &providers.ProviderError{
			Provider: token.ProviderSolscan,
			Kind:     providers.KindNotFound,
			Err:      errors.New("token meta unavailable"),
		}
	}

	d := resp.Data
	out := &token.SolscanData{
		Holders:   d.Holder.IntPtr(),
		Decimals:  d.Decimals,
		MarketCap: d.MarketCap.Ptr(),
		Price:     d.Price.Ptr(),
	}
	if d.Name != "" {
		out.Name = &d.Name
	}
	if d.Symbol != "" {
		out.Symbol = &d.Symbol
	}
	if d.Creator != "" {
		out.Creator = &d.Creator
	}
	if d.CreatedTime > 0 {
		at := time.Unix(d.CreatedTime, 0).UTC()
		out.CreatedAt = &at
	}
	if d.Supply.Set {
		supply := d.Supply.Value
		if d.Decimals != nil {
			supply /= math.Pow10(*d.Decimals)
		}
		out.Supply = &supply
	}
	return out, nil
}
