// Package token holds the value types shared by every stage of the token risk
// pipeline: addresses, flags, the base security report, provider datums and the
// final SuperTokenScore.
package token

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
)

// publicKeyLength is the decoded size of a Solana public key.
const publicKeyLength = 32

// ErrInvalidAddress is matched with errors.Is for any address validation failure.
var ErrInvalidAddress = errors.New("invalid token address")

// Address is a validated Solana mint address.
type Address string

// AddressError describes why an input failed validation.
type AddressError struct {
	Input  string
	Reason string
}

func (e *AddressError) Error() string {
	return fmt.Sprintf("invalid token address %q: %s", e.Input, e.Reason)
}

// Is lets callers match any AddressError against ErrInvalidAddress.
func (e *AddressError) Is(target error) bool {
	return target == ErrInvalidAddress
}

// ParseAddress trims and validates a mint address. The address must be base58
// and decode to exactly 32 bytes.
func ParseAddress(raw string) (Address, error) {
	addr := strings.TrimSpace(raw)
	if addr == "" {
		return "", &AddressError{Input: raw, Reason: "empty"}
	}
	if len(addr) < 32 || len(addr) > 44 {
		return "", &AddressError{Input: raw, Reason: fmt.Sprintf("length %d outside 32-44", len(addr))}
	}

	decoded, err := base58.Decode(addr)
	if err != nil {
		return "", &AddressError{Input: raw, Reason: "not base58"}
	}
	if len(decoded) != publicKeyLength {
		return "", &AddressError{Input: raw, Reason: fmt.Sprintf("decodes to %d bytes", len(decoded))}
	}

	return Address(addr), nil
}

// String returns the address as a plain string.
func (a Address) String() string {
	return string(a)
}

// CacheKey is the fast-path cache key for the address.
func (a Address) CacheKey() string {
	return "score:" + string(a)
}
