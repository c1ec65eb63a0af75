// Package providers defines the collaborators the risk engine talks to: the
// chain RPC and the five market-data providers.
package providers

import (
	"context"
	"errors"
	"fmt"

	"github.com/sawpanic/tokenrisk/internal/domain/token"
)

// ChainRPC reads token state from the chain. Implementations are expected to
// be rate limited.
type ChainRPC interface {
	GetAuthorities(ctx context.Context, addr token.Address) (*token.AuthorityState, error)
	GetHolderDistribution(ctx context.Context, addr token.Address) (*token.HolderDistribution, error)
	GetLiquidityPools(ctx context.Context, addr token.Address) ([]token.LiquidityPool, error)
	GetTransactionSample(ctx context.Context, addr token.Address) (*token.TransactionSample, error)
}

type RugCheckFetcher interface {
	Fetch(ctx context.Context, addr token.Address) (*token.RugCheckData, error)
}

type DexScreenerFetcher interface {
	Fetch(ctx context.Context, addr token.Address) (*token.DexScreenerData, error)
}

type BirdeyeFetcher interface {
	Fetch(ctx context.Context, addr token.Address) (*token.BirdeyeData, error)
}

type SolscanFetcher interface {
	Fetch(ctx context.Context, addr token.Address) (*token.SolscanData, error)
}

type JupiterFetcher interface {
	Fetch(ctx context.Context, addr token.Address) (*token.JupiterData, error)
}

// Fetchers groups the five providers. A nil fetcher is treated as always
// unavailable.
type Fetchers struct {
	RugCheck    RugCheckFetcher
	DexScreener DexScreenerFetcher
	Birdeye     BirdeyeFetcher
	Solscan     SolscanFetcher
	Jupiter     JupiterFetcher
}

// ErrorKind classifies provider failures.
type ErrorKind string

const (
	KindTransport ErrorKind = "transport"
	KindStatus    ErrorKind = "http_status"
	KindTimeout   ErrorKind = "timeout"
	KindDecode    ErrorKind = "decode"
	KindNotFound  ErrorKind = "not_found"
	KindRateLimit ErrorKind = "rate_limit"
)

// ErrUnavailable matches every ProviderError via errors.Is.
var ErrUnavailable = errors.New("provider unavailable")

// ProviderError is how adapters report that a provider could not serve a
// request. The engine treats every kind the same way; the kind only decides
// whether a retry can help.
type ProviderError struct {
	Provider   string
	Kind       ErrorKind
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider %s %s (status %d): %v", e.Provider, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("provider %s %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

func (e *ProviderError) Is(target error) bool { return target == ErrUnavailable }

// NotFound reports that the provider answered but does not know the token.
func (e *ProviderError) NotFound() bool { return e.Kind == KindNotFound }

// Retryable reports whether another attempt may succeed.
func (e *ProviderError) Retryable() bool {
	switch e.Kind {
	case KindTransport, KindTimeout, KindRateLimit:
		return true
	case KindStatus:
		return e.StatusCode == 429 || e.StatusCode >= 500
	default:
		return false
	}
}
