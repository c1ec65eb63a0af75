// Package rugcheck fetches rug-risk reports from the RugCheck API.
package rugcheck

import (
	"context"
	"sort"
	"time"

	"github.com/sawpanic/tokenrisk/internal/domain/token"
	"github.com/sawpanic/tokenrisk/internal/providers/httpjson"
)

// DefaultBaseURL is the public RugCheck API.
const DefaultBaseURL = "https://api.rugcheck.xyz"

type Client struct {
	http *httpjson.Client
}

// New creates a RugCheck client. An empty baseURL uses DefaultBaseURL.
func New(baseURL, apiKey string, opts ...httpjson.Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{http: httpjson.New(httpjson.Config{
		Provider: token.ProviderRugCheck,
		BaseURL:  baseURL,
		Headers:  map[string]string{"Authorization": bearer(apiKey)},
	}, opts...)}
}

func bearer(key string) string {
	if key == "" {
		return ""
	}
	return "Bearer " + key
}

type reportResponse struct {
	Score           *int  `json:"score"`
	ScoreNormalised *int  `json:"score_normalised"`
	Rugged          *bool `json:"rugged"`
	Risks           []struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Level       string `json:"level"`
		Score       int    `json:"score"`
	} `json:"risks"`
	Lockers map[string]struct {
		Type       string          `json:"type"`
		UnlockDate int64           `json:"unlockDate"`
		USDCLocked httpjson.Number `json:"usdcLocked"`
	} `json:"lockers"`
	Markets []struct {
		LP *struct {
			LPLockedPct httpjson.Number `json:"lpLockedPct"`
		} `json:"lp"`
	} `json:"markets"`
	TotalHolders          *int    `json:"totalHolders"`
	GraphInsidersDetected *int    `json:"graphInsidersDetected"`
	Creator               *string `json:"creator"`
}

// Fetch returns the RugCheck report for addr.
func (c *Client) Fetch(ctx context.Context, addr token.Address) (*token.RugCheckData, error) {
	var resp reportResponse
	if err := c.http.GetJSON(ctx, "/v1/tokens/"+addr.String()+"/report", nil, &resp); err != nil {
		return nil, err
	}
	return resp.toDomain(), nil
}

func (r reportResponse) toDomain() *token.RugCheckData {
	out := &token.RugCheckData{
		Score:            r.Score,
		ScoreNormalised:  r.ScoreNormalised,
		Rugged:           r.Rugged,
		TotalHolders:     r.TotalHolders,
		InsidersDetected: r.GraphInsidersDetected,
		Creator:          r.Creator,
	}

	for _, risk := range r.Risks {
		out.Risks = append(out.Risks, token.RugCheckRisk{
			Name:        risk.Name,
			Description: risk.Description,
			Level:       risk.Level,
			Score:       risk.Score,
		})
	}

	ids := make([]string, 0, len(r.Lockers))
	for id := range r.Lockers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		l := r.Lockers[id]
		locker := token.RugCheckLocker{Type: l.Type, USDLocked: l.USDCLocked.Value}
		if l.UnlockDate > 0 {
			at := time.Unix(l.UnlockDate, 0).UTC()
			locker.UnlockAt = &at
		}
		out.Lockers = append(out.Lockers, locker)
	}

	// The most liquid market comes first.
	for _, m := range r.Markets {
		if m.LP != nil && m.LP.LPLockedPct.Set {
			out.LPLockedPercent = m.LP.LPLockedPct.Ptr()
			break
		}
	}
	return out
}
