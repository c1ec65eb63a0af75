// Package dexscreener fetches pair data from the DexScreener API.
package dexscreener

import (
	"context"
	"time"

	"github.com/sawpanic/tokenrisk/internal/domain/token"
	"github.com/sawpanic/tokenrisk/internal/providers/httpjson"
)

const DefaultBaseURL = "https://api.dexscreener.com"

type Client struct {
	http *httpjson.Client
}

func New(baseURL string, opts ...httpjson.Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{http: httpjson.New(httpjson.Config{
		Provider: token.ProviderDexScreener,
		BaseURL:  baseURL,
	}, opts...)}
}

type tokenRef struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
}

type txns struct {
	Buys  int `json:"buys"`
	Sells int `json:"sells"`
}

type window struct {
	M5  httpjson.Number `json:"m5"`
	H1  httpjson.Number `json:"h1"`
	H6  httpjson.Number `json:"h6"`
	H24 httpjson.Number `json:"h24"`
}

func (w window) toDomain() token.Window {
	return token.Window{M5: w.M5.Ptr(), H1: w.H1.Ptr(), H6: w.H6.Ptr(), H24: w.H24.Ptr()}
}

type pair struct {
	DexID       string          `json:"dexId"`
	PairAddress string          `json:"pairAddress"`
	BaseToken   tokenRef        `json:"baseToken"`
	QuoteToken  tokenRef        `json:"quoteToken"`
	PriceNative httpjson.Number `json:"priceNative"`
	PriceUSD    httpjson.Number `json:"priceUsd"`
	Txns        struct {
		H1  *txns `json:"h1"`
		H24 *txns `json:"h24"`
	} `json:"txns"`
	Volume      window `json:"volume"`
	PriceChange window `json:"priceChange"`
	Liquidity   *struct {
		USD httpjson.Number `json:"usd"`
	} `json:"liquidity"`
	FDV           httpjson.Number `json:"fdv"`
	MarketCap     httpjson.Number `json:"marketCap"`
	PairCreatedAt int64           `json:"pairCreatedAt"`
	Info          *struct {
		Websites []struct {
			URL string `json:"url"`
		} `json:"websites"`
		Socials []struct {
			Type string `json:"type"`
			URL  string `json:"url"`
		} `json:"socials"`
	} `json:"info"`
}

func (p pair) liquidity() float64 {
	if p.Liquidity == nil {
		return 0
	}
	return p.Liquidity.USD.Value
}

type tokensResponse struct {
	Pairs []pair `json:"pairs"`
}

// Fetch returns the most liquid pair for addr. A token with no pairs is
// reported as data with PairCount zero rather than an error.
func (c *Client) Fetch(ctx context.Context, addr token.Address) (*token.DexScreenerData, error) {
	var resp tokensResponse
	if err := c.http.GetJSON(ctx, "/latest/dex/tokens/"+addr.String(), nil, &resp); err != nil {
		return nil, err
	}
	return resp.toDomain(addr), nil
}

func (r tokensResponse) toDomain(addr token.Address) *token.DexScreenerData {
	out := &token.DexScreenerData{PairCount: len(r.Pairs)}
	if len(r.Pairs) == 0 {
		return out
	}

	best := r.Pairs[0]
	for _, p := range r.Pairs[1:] {
		if p.liquidity() > best.liquidity() {
			best = p
		}
	}

	subject, quote := best.BaseToken, best.QuoteToken
	if best.QuoteToken.Address == addr.String() {
		subject, quote = quote, subject
	}

	out.PairAddress = strPtr(best.PairAddress)
	out.DexID = strPtr(best.DexID)
	out.Name = strPtr(subject.Name)
	out.Symbol = strPtr(subject.Symbol)
	out.QuoteSymbol = strPtr(quote.Symbol)
	out.PriceUSD = best.PriceUSD.Ptr()
	out.PriceNative = best.PriceNative.Ptr()
	if best.Liquidity != nil {
		out.LiquidityUSD = best.Liquidity.USD.Ptr()
	}
	out.MarketCap = best.MarketCap.Ptr()
	out.FDV = best.FDV.Ptr()
	out.Volume = best.Volume.toDomain()
	out.PriceChange = best.PriceChange.toDomain()
	if best.Txns.H1 != nil {
		out.TxnsH1 = &token.TxnCounts{Buys: best.Txns.H1.Buys, Sells: best.Txns.H1.Sells}
	}
	if best.Txns.H24 != nil {
		out.TxnsH24 = &token.TxnCounts{Buys: best.Txns.H24.Buys, Sells: best.Txns.H24.Sells}
	}
	if best.PairCreatedAt > 0 {
		at := time.UnixMilli(best.PairCreatedAt).UTC()
		out.PairCreatedAt = &at
	}
	if best.Info != nil {
		for _, w := range best.Info.Websites {
			if w.URL != "" {
				out.Websites = append(out.Websites, w.URL)
			}
		}
		for _, s := range best.Info.Socials {
			if s.URL != "" {
				out.Socials = append(out.Socials, s.URL)
			}
		}
	}
	return out
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
