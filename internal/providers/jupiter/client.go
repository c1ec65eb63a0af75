// Package jupiter quotes SOL-to-token swaps through the Jupiter aggregator to
// measure price impact at several trade sizes.
package jupiter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/sawpanic/tokenrisk/internal/domain/token"
	"github.com/sawpanic/tokenrisk/internal/providers"
	"github.com/sawpanic/tokenrisk/internal/providers/httpjson"
)

const (
	DefaultBaseURL = "https://quote-api.jup.ag"

	// WrappedSOL is the input mint for every quote.
	WrappedSOL = "So11111111111111111111111111111111111111112"

	lamportsPerSOL = 1_000_000_000
)

// DefaultSizes are the trade sizes, in SOL, quoted for every token.
var DefaultSizes = []float64{1, 10, 100}

type Client struct {
	http  *httpjson.Client
	sizes []float64
}

func New(baseURL string, sizes []float64, opts ...httpjson.Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if len(sizes) == 0 {
		sizes = DefaultSizes
	}
	return &Client{
		http:  httpjson.New(httpjson.Config{Provider: token.ProviderJupiter, BaseURL: baseURL}, opts...),
		sizes: sizes,
	}
}

type quoteResponse struct {
	OutAmount      httpjson.Number `json:"outAmount"`
	PriceImpactPct httpjson.Number `json:"priceImpactPct"`
	RoutePlan      []struct {
		Percent int `json:"percent"`
	} `json:"routePlan"`
}

// Fetch quotes every configured size. A 400 from the quote endpoint means no
// route exists, which is data (Routable=false), not a provider failure. Any
// other failure on any size fails the whole fetch.
func (c *Client) Fetch(ctx context.Context, addr token.Address) (*token.JupiterData, error) {
	out := &token.JupiterData{}
	routable := true

	for _, size := range c.sizes {
		q := url.Values{
			"inputMint":   {WrappedSOL},
			"outputMint":  {addr.String()},
			"amount":      {strconv.FormatUint(uint64(size*lamportsPerSOL), 10)},
			"slippageBps": {"50"},
		}

		var resp quoteResponse
		err := c.http.GetJSON(ctx, "/v6/quote", q, &resp)
		if err != nil {
			var pe *providers.ProviderError
			if errors.As(err, &pe) && pe.Kind == providers.KindStatus && pe.StatusCode == http.StatusBadRequest {
				routable = false
				break
			}
			return nil, fmt.Errorf("quote %.0f SOL: %w", size, err)
		}

		out.Quotes = append(out.Quotes, token.JupiterQuote{
			InputSOL:       size,
			OutAmount:      resp.OutAmount.Value,
			PriceImpactPct: resp.PriceImpactPct.Value * 100,
			RouteHops:      len(resp.RoutePlan),
		})
	}

	out.Routable = &routable
	return out, nil
}
