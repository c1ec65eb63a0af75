// Package solana implements the chain RPC collaborator on top of a Solana
// JSON-RPC node.
package solana

import (
	"context"
	"errors"
	"fmt"
	"encoding/binary"
	"sort"
	"strconv"
	"strings"
	"time"

	bin "github.com/gagliardetto/binary"
	sol "github.com/gagliardetto/solana-go"
	tokenprog "github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/tokenrisk/internal/domain/token"
	"github.com/sawpanic/tokenrisk/internal/ratelimit"
)

const (
	DefaultEndpoint = rpc.MainNetBeta_RPC

	// LimiterKey is the rate limiter key for RPC calls.
	LimiterKey = "solana-rpc"

	// Incinerator is the conventional burn address; LP tokens sent here are gone.
	Incinerator = "1nc1nerator11111111111111111111111111111111"

	// RaydiumAMMv4 is the program owning Raydium constant-product pools.
	RaydiumAMMv4 = "675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8"

	// TokenMetadataProgram owns the Metaplex metadata account of each mint.
	TokenMetadataProgram = "metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s"

	metadataKeyV1       = 4
	maxMetadataString   = 200
	raydiumPoolSize     = 752
	raydiumBaseMintOff  = 400
	raydiumQuoteMintOff = 432
	raydiumLPMintOff    = 464
	publicKeyLen        = 32
	signaturesPageLimit = 1000
)

// Config tunes how much chain data is sampled per analysis.
type Config struct {
	Endpoint          string   `yaml:"endpoint"`
	TopHolders        int      `yaml:"top_holders"`
	HolderAgeSample   int      `yaml:"holder_age_sample"`
	EarliestTxns      int      `yaml:"earliest_txns"`
	RecentTxns        int      `yaml:"recent_txns"`
	MaxSignaturePages int      `yaml:"max_signature_pages"`
	LockerOwners      []string `yaml:"locker_owners"`
}

func (c Config) withDefaults() Config {
	if c.Endpoint == "" {
		c.Endpoint = DefaultEndpoint
	}
	if c.TopHolders <= 0 {
		c.TopHolders = 20
	}
	if c.HolderAgeSample <= 0 {
		c.HolderAgeSample = 10
	}
	if c.EarliestTxns <= 0 {
		c.EarliestTxns = 20
	}
	if c.RecentTxns <= 0 {
		c.RecentTxns = 30
	}
	if c.MaxSignaturePages <= 0 {
		c.MaxSignaturePages = 5
	}
	return c
}

// Client reads mint, holder, pool and transaction data from an RPC node.
type Client struct {
	rpc     *rpc.Client
	cfg     Config
	limiter *ratelimit.Limiter
	lockers map[string]struct{}
}

// New creates a client. limiter may be nil.
func New(cfg Config, limiter *ratelimit.Limiter) *Client {
	cfg = cfg.withDefaults()
	lockers := make(map[string]struct{}, len(cfg.LockerOwners))
	for _, o := range cfg.LockerOwners {
		lockers[o] = struct{}{}
	}
	return &Client{
		rpc:     rpc.New(cfg.Endpoint),
		cfg:     cfg,
		limiter: limiter,
		lockers: lockers,
	}
}

func (c *Client) wait(ctx context.Context) error {
	if err := c.limiter.Wait(ctx, LimiterKey); err != nil {
		return fmt.Errorf("rpc rate limit: %w", err)
	}
	return nil
}

func mintKey(addr token.Address) (sol.PublicKey, error) {
	pk, err := sol.PublicKeyFromBase58(addr.String())
	if err != nil {
		return sol.PublicKey{}, fmt.Errorf("mint %s: %w", addr, err)
	}
	return pk, nil
}

// GetAuthorities decodes the SPL mint account and, when present, the name and
// symbol from its Metaplex metadata account.
func (c *Client) GetAuthorities(ctx context.Context, addr token.Address) (*token.AuthorityState, error) {
	pk, err := mintKey(addr)
	if err != nil {
		return nil, err
	}
	mint, err := c.mintAccount(ctx, pk)
	if err != nil {
		return nil, err
	}

	out := &token.AuthorityState{Supply: mint.Supply, Decimals: mint.Decimals}
	if mint.MintAuthority != nil {
		s := mint.MintAuthority.String()
		out.MintAuthority = &s
	}
	if mint.FreezeAuthority != nil {
		s := mint.FreezeAuthority.String()
		out.FreezeAuthority = &s
	}

	if out.Name, out.Symbol, err = c.tokenMetadata(ctx, pk); err != nil {
		log.Debug().Err(err).Str("token", addr.String()).Msg("Token metadata lookup failed")
	}
	return out, nil
}

// MetadataAddress derives the Metaplex metadata PDA for mint.
func MetadataAddress(mint sol.PublicKey) (sol.PublicKey, error) {
	program := sol.MustPublicKeyFromBase58(TokenMetadataProgram)
	pda, _, err := sol.FindProgramAddress([][]byte{[]byte("metadata"), program.Bytes(), mint.Bytes()}, program)
	return pda, err
}

func (c *Client) tokenMetadata(ctx context.Context, mint sol.PublicKey) (name, symbol string, err error) {
	pda, err := MetadataAddress(mint)
	if err != nil {
		return "", "", fmt.Errorf("derive metadata address: %w", err)
	}
	if err := c.wait(ctx); err != nil {
		return "", "", err
	}
	info, err := c.rpc.GetAccountInfo(ctx, pda)
	if err != nil {
		return "", "", fmt.Errorf("get metadata account %s: %w", pda, err)
	}
	if info == nil || info.Value == nil {
		return "", "", fmt.Errorf("metadata account %s: %w", pda, rpc.ErrNotFound)
	}
	return decodeMetadata(info.Value.Data.GetBinary())
}

// decodeMetadata reads the name and symbol of a Metaplex MetadataV1 account:
// key, update authority, mint, then borsh strings padded with NULs.
func decodeMetadata(data []byte) (name, symbol string, err error) {
	dec := bin.NewBorshDecoder(data)
	key, err := dec.ReadUint8()
	if err != nil {
		return "", "", fmt.Errorf("decode metadata key: %w", err)
	}
	if key != metadataKeyV1 {
		return "", "", fmt.Errorf("unexpected metadata key %d", key)
	}
	if _, err := dec.ReadNBytes(2 * publicKeyLen); err != nil {
		return "", "", fmt.Errorf("decode metadata header: %w", err)
	}
	if name, err = readPaddedString(dec); err != nil {
		return "", "", fmt.Errorf("decode metadata name: %w", err)
	}
	if symbol, err = readPaddedString(dec); err != nil {
		return "", "", fmt.Errorf("decode metadata symbol: %w", err)
	}
	return name, symbol, nil
}

func readPaddedString(dec *bin.Decoder) (string, error) {
	n, err := dec.ReadUint32(binary.LittleEndian)
	if err != nil {
		return "", err
	}
	if n > maxMetadataString {
		return "", fmt.Errorf("string length %d exceeds %d", n, maxMetadataString)
	}
	raw, err := dec.ReadNBytes(int(n))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(strings.TrimRight(string(raw), "\x00")), nil
}

func (c *Client) mintAccount(ctx context.Context, pk sol.PublicKey) (*tokenprog.Mint, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	info, err := c.rpc.GetAccountInfo(ctx, pk)
	if err != nil {
		return nil, fmt.Errorf("get mint account %s: %w", pk, err)
	}
	if info == nil || info.Value == nil {
		return nil, fmt.Errorf("mint account %s: %w", pk, rpc.ErrNotFound)
	}

	var mint tokenprog.Mint
	if err := bin.NewBinDecoder(info.Value.Data.GetBinary()).Decode(&mint); err != nil {
		return nil, fmt.Errorf("decode mint %s: %w", pk, err)
	}
	return &mint, nil
}

// GetHolderDistribution returns the largest token accounts with their owners
// and, for the top HolderAgeSample, the slot and time of their earliest
// observed activity.
func (c *Client) GetHolderDistribution(ctx context.Context, addr token.Address) (*token.HolderDistribution, error) {
	pk, err := mintKey(addr)
	if err != nil {
		return nil, err
	}

	supply, err := c.tokenSupply(ctx, pk)
	if err != nil {
		return nil, err
	}

	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	largest, err := c.rpc.GetTokenLargestAccounts(ctx, pk, rpc.CommitmentFinalized)
	if err != nil {
		return nil, fmt.Errorf("get largest accounts: %w", err)
	}

	dist := &token.HolderDistribution{TotalSupply: supply}
	keys := make([]sol.PublicKey, 0, len(largest.Value))
	for i, acct := range largest.Value {
		if i >= c.cfg.TopHolders {
			break
		}
		amount := parseUI(acct.UiAmountString)
		h := token.Holder{Address: acct.Address.String(), Amount: amount}
		if supply > 0 {
			h.Percent = amount / supply * 100
		}
		dist.Holders = append(dist.Holders, h)
		keys = append(keys, acct.Address)
	}

	owners, err := c.owners(ctx, keys)
	if err != nil {
		log.Debug().Err(err).Str("token", addr.String()).Msg("Holder owner lookup failed")
	}
	for i := range dist.Holders {
		if o, ok := owners[dist.Holders[i].Address]; ok {
			dist.Holders[i].Owner = o
		}
	}

	for i := range dist.Holders {
		if i >= c.cfg.HolderAgeSample {
			break
		}
		slot, at, err := c.earliestActivity(ctx, keys[i], 1)
		if err != nil {
			log.Debug().Err(err).Str("account", dist.Holders[i].Address).Msg("Holder age lookup failed")
			continue
		}
		dist.Holders[i].FirstSlot = slot
		dist.Holders[i].FirstSeen = at
	}
	return dist, nil
}

func (c *Client) tokenSupply(ctx context.Context, pk sol.PublicKey) (float64, error) {
	if err := c.wait(ctx); err != nil {
		return 0, err
	}
	res, err := c.rpc.GetTokenSupply(ctx, pk, rpc.CommitmentFinalized)
	if err != nil {
		return 0, fmt.Errorf("get token supply %s: %w", pk, err)
	}
	if res == nil || res.Value == nil {
		return 0, fmt.Errorf("token supply %s: %w", pk, rpc.ErrNotFound)
	}
	return parseUI(res.Value.UiAmountString), nil
}

// owners maps token account addresses to their owning wallets.
func (c *Client) owners(ctx context.Context, accounts []sol.PublicKey) (map[string]string, error) {
	out := make(map[string]string, len(accounts))
	if len(accounts) == 0 {
		return out, nil
	}
	if err := c.wait(ctx); err != nil {
		return out, err
	}
	res, err := c.rpc.GetMultipleAccounts(ctx, accounts...)
	if err != nil {
		return out, fmt.Errorf("get token accounts: %w", err)
	}
	for i, acct := range res.Value {
		if acct == nil || i >= len(accounts) {
			continue
		}
		var ta tokenprog.Account
		if err := bin.NewBinDecoder(acct.Data.GetBinary()).Decode(&ta); err != nil {
			continue
		}
		out[accounts[i].String()] = ta.Owner.String()
	}
	return out, nil
}

// earliestActivity walks signature pages backwards and returns the oldest
// one seen. When every page is full the result is a lower bound on age.
func (c *Client) earliestActivity(ctx context.Context, pk sol.PublicKey, maxPages int) (*uint64, *time.Time, error) {
	sigs, err := c.walkSignatures(ctx, pk, maxPages)
	if err != nil {
		return nil, nil, err
	}
	if len(sigs) == 0 {
		return nil, nil, nil
	}
	oldest := sigs[len(sigs)-1]
	slot := oldest.Slot
	return &slot, blockTime(oldest.BlockTime), nil
}

// walkSignatures returns signatures newest first across up to maxPages pages.
func (c *Client) walkSignatures(ctx context.Context, pk sol.PublicKey, maxPages int) ([]*rpc.TransactionSignature, error) {
	limit := signaturesPageLimit
	var all []*rpc.TransactionSignature
	var before sol.Signature

	for page := 0; page < maxPages; page++ {
		if err := c.wait(ctx); err != nil {
			return all, err
		}
		opts := &rpc.GetSignaturesForAddressOpts{Limit: &limit, Commitment: rpc.CommitmentFinalized}
		if page > 0 {
			opts.Before = before
		}
		sigs, err := c.rpc.GetSignaturesForAddressWithOpts(ctx, pk, opts)
		if err != nil {
			return all, fmt.Errorf("get signatures for %s: %w", pk, err)
		}
		all = append(all, sigs...)
		if len(sigs) < limit {
			break
		}
		before = sigs[len(sigs)-1].Signature
	}
	return all, nil
}

// GetLiquidityPools finds Raydium AMM v4 pools quoting the mint on either side
// and measures how much of each pool's LP supply is burned or held by a
// configured locker.
func (c *Client) GetLiquidityPools(ctx context.Context, addr token.Address) ([]token.LiquidityPool, error) {
	pk, err := mintKey(addr)
	if err != nil {
		return nil, err
	}
	program := sol.MustPublicKeyFromBase58(RaydiumAMMv4)

	var pools []token.LiquidityPool
	for _, offset := range []uint64{raydiumBaseMintOff, raydiumQuoteMintOff} {
		if err := c.wait(ctx); err != nil {
			return nil, err
		}
		accounts, err := c.rpc.GetProgramAccountsWithOpts(ctx, program, &rpc.GetProgramAccountsOpts{
			Filters: []rpc.RPCFilter{
				{DataSize: raydiumPoolSize},
				{Memcmp: &rpc.RPCFilterMemcmp{Offset: offset, Bytes: sol.Base58(pk.Bytes())}},
			},
		})
		if err != nil {
			return nil, fmt.Errorf("get raydium pools: %w", err)
		}

		for _, acct := range accounts {
			data := acct.Account.Data.GetBinary()
			if len(data) < raydiumLPMintOff+publicKeyLen {
				continue
			}
			lpMint := sol.PublicKeyFromBytes(data[raydiumLPMintOff : raydiumLPMintOff+publicKeyLen])
			pool, err := c.lpState(ctx, acct.Pubkey, lpMint)
			if err != nil {
				return nil, err
			}
			pools = append(pools, pool)
		}
	}
	return pools, nil
}

func (c *Client) lpState(ctx context.Context, poolKey, lpMint sol.PublicKey) (token.LiquidityPool, error) {
	pool := token.LiquidityPool{
		Address: poolKey.String(),
		Program: RaydiumAMMv4,
		LPMint:  lpMint.String(),
	}

	supply, err := c.tokenSupply(ctx, lpMint)
	if err != nil {
		return pool, err
	}
	pool.LPSupply = supply
	if supply == 0 {
		pool.BurnedPercent = 100
		return pool, nil
	}

	if err := c.wait(ctx); err != nil {
		return pool, err
	}
	largest, err := c.rpc.GetTokenLargestAccounts(ctx, lpMint, rpc.CommitmentFinalized)
	if err != nil {
		return pool, fmt.Errorf("get lp holders: %w", err)
	}

	keys := make([]sol.PublicKey, 0, len(largest.Value))
	amounts := make(map[string]float64, len(largest.Value))
	for _, a := range largest.Value {
		keys = append(keys, a.Address)
		amounts[a.Address.String()] = parseUI(a.UiAmountString)
	}
	owners, err := c.owners(ctx, keys)
	if err != nil {
		return pool, err
	}

	for acct, owner := range owners {
		share := amounts[acct] / supply * 100
		switch {
		case owner == Incinerator:
			pool.BurnedPercent += share
		case c.isLocker(owner):
			pool.LockedPercent += share
		}
	}
	return pool, nil
}

func (c *Client) isLocker(owner string) bool {
	_, ok := c.lockers[owner]
	return ok
}

// GetTransactionSample returns the earliest transactions touching the mint
// (which reveal the creator and launch-time buyers) and the most recent ones.
func (c *Client) GetTransactionSample(ctx context.Context, addr token.Address) (*token.TransactionSample, error) {
	pk, err := mintKey(addr)
	if err != nil {
		return nil, err
	}

	sigs, err := c.walkSignatures(ctx, pk, c.cfg.MaxSignaturePages)
	if err != nil && len(sigs) == 0 {
		return nil, err
	}
	sample := &token.TransactionSample{}
	if len(sigs) == 0 {
		return sample, nil
	}

	recent := sigs
	if len(recent) > c.cfg.RecentTxns {
		recent = recent[:c.cfg.RecentTxns]
	}
	earliest := sigs
	if len(earliest) > c.cfg.EarliestTxns {
		earliest = earliest[len(earliest)-c.cfg.EarliestTxns:]
	}

	complete := len(sigs) < c.cfg.MaxSignaturePages*signaturesPageLimit
	if complete {
		slot := sigs[len(sigs)-1].Slot
		sample.CreationSlot = &slot
	}

	if sample.Earliest, err = c.transactions(ctx, pk, earliest); err != nil {
		return nil, err
	}
	if sample.Recent, err = c.transactions(ctx, pk, recent); err != nil {
		return nil, err
	}
	if complete && len(sample.Earliest) > 0 {
		sample.Creator = sample.Earliest[0].Signer
	}
	return sample, nil
}

// transactions loads and summarizes sigs, returned in ascending slot order.
func (c *Client) transactions(ctx context.Context, mint sol.PublicKey, sigs []*rpc.TransactionSignature) ([]token.Transaction, error) {
	version := uint64(0)
	out := make([]token.Transaction, 0, len(sigs))

	for _, s := range sigs {
		if err := c.wait(ctx); err != nil {
			return out, err
		}
		res, err := c.rpc.GetTransaction(ctx, s.Signature, &rpc.GetTransactionOpts{
			Encoding:                       sol.EncodingBase64,
			Commitment:                     rpc.CommitmentFinalized,
			MaxSupportedTransactionVersion: &version,
		})
		if err != nil {
			if errors.Is(err, rpc.ErrNotFound) {
				continue
			}
			return out, fmt.Errorf("get transaction %s: %w", s.Signature, err)
		}
		out = append(out, summarize(mint, s, res))
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Slot < out[j].Slot })
	return out, nil
}

func summarize(mint sol.PublicKey, sig *rpc.TransactionSignature, res *rpc.GetTransactionResult) token.Transaction {
	tx := token.Transaction{
		Signature: sig.Signature.String(),
		Slot:      sig.Slot,
		BlockTime: blockTime(sig.BlockTime),
		Side:      token.SideUnknown,
		Failed:    sig.Err != nil,
	}
	if res == nil || res.Transaction == nil {
		return tx
	}
	parsed, err := res.Transaction.GetTransaction()
	if err != nil || parsed == nil || len(parsed.Message.AccountKeys) == 0 {
		return tx
	}
	signer := parsed.Message.AccountKeys[0]
	tx.Signer = signer.String()

	if res.Meta == nil {
		return tx
	}
	pre := ownerBalance(res.Meta.PreTokenBalances, mint, signer)
	post := ownerBalance(res.Meta.PostTokenBalances, mint, signer)
	switch delta := post - pre; {
	case delta > 0:
		tx.Side, tx.Amount = token.SideBuy, delta
	case delta < 0:
		tx.Side, tx.Amount = token.SideSell, -delta
	}
	return tx
}

func ownerBalance(balances []rpc.TokenBalance, mint, owner sol.PublicKey) float64 {
	var total float64
	for _, b := range balances {
		if !b.Mint.Equals(mint) || b.Owner == nil || !b.Owner.Equals(owner) || b.UiTokenAmount == nil {
			continue
		}
		total += parseUI(b.UiTokenAmount.UiAmountString)
	}
	return total
}

func blockTime(t *sol.UnixTimeSeconds) *time.Time {
	if t == nil {
		return nil
	}
	at := t.Time().UTC()
	return &at
}

func parseUI(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
