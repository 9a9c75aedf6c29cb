package application

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"strings"

	"chainsync/internal/domain"
)

const unknownTokenField = "UNKNOWN"

// TokenSet is the deduplicated set of token contracts surfaced while processing
// one block. It is owned by the fetch loop driver.
type TokenSet struct {
	seen  map[string]struct{}
	order []string
}

func NewTokenSet() *TokenSet {
	return &TokenSet{seen: make(map[string]struct{})}
}

func (s *TokenSet) Add(addresses ...string) {
	for _, address := range addresses {
		key := strings.ToLower(strings.TrimSpace(address))
		if key == "" {
			continue
		}
		if _, ok := s.seen[key]; ok {
			continue
		}
		s.seen[key] = struct{}{}
		s.order = append(s.order, key)
	}
}

func (s *TokenSet) Addresses() []string {
	return append([]string(nil), s.order...)
}

func (s *TokenSet) Len() int {
	return len(s.order)
}

type TokenDiscovery struct {
	chain  domain.Chain
	reader TokenReader
	store  TokenStore
	gate   *Gate
	logger *slog.Logger
}

func NewTokenDiscovery(chain domain.Chain, reader TokenReader, store TokenStore, gate *Gate, logger *slog.Logger) (*TokenDiscovery, error) {
	if reader == nil || store == nil || gate == nil {
		return nil, errors.New("token discovery dependencies must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TokenDiscovery{
		chain:  chain,
		reader: reader,
		store:  store,
		gate:   gate,
		logger: logger.With("component", "token_discovery", "chain", chain.String()),
	}, nil
}

// Discover records metadata for every address of set the store does not know yet.
// It returns the number of new tokens recorded.
func (d *TokenDiscovery) Discover(ctx context.Context, set *TokenSet) (int, error) {
	if set == nil || set.Len() == 0 {
		return 0, nil
	}
	recorded := 0
	for _, address := range set.Addresses() {
		exists, err := d.store.TokenMetadataExists(ctx, d.chain, address)
		if err != nil {
			return recorded, err
		}
		if exists {
			continue
		}
		var metadata domain.TokenMetadata
		if err := d.gate.Do(ctx, func(ctx context.Context) error {
			metadata = d.read(ctx, address)
			return nil
		}); err != nil {
			return recorded, err
		}
		if err := d.store.SaveTokenMetadata(ctx, metadata); err != nil {
			return recorded, err
		}
		recorded++
		d.logger.Debug("token recorded", "address", address, "symbol", metadata.Symbol)
	}
	return recorded, nil
}

// read falls back per field so one failing call never drops the others.
func (d *TokenDiscovery) read(ctx context.Context, address string) domain.TokenMetadata {
	metadata := domain.TokenMetadata{
		Chain:        d.chain,
		TokenAddress: address,
		Name:         unknownTokenField,
		Symbol:       unknownTokenField,
		TotalSupply:  "0",
		Verified:     true,
	}
	if name, err := d.reader.TokenName(ctx, address); err == nil {
		metadata.Name = name
	} else {
		d.logger.Debug("token name unavailable", "address", address, "error", err)
	}
	if symbol, err := d.reader.TokenSymbol(ctx, address); err == nil {
		metadata.Symbol = symbol
	} else {
		d.logger.Debug("token symbol unavailable", "address", address, "error", err)
	}
	if decimals, err := d.reader.TokenDecimals(ctx, address); err == nil {
		metadata.Decimals = decimals
	} else {
		d.logger.Debug("token decimals unavailable", "address", address, "error", err)
	}
	if supply, err := d.reader.TokenTotalSupply(ctx, address); err == nil && supply != nil {
		metadata.TotalSupply = new(big.Int).Set(supply).String()
	} else {
		d.logger.Debug("token supply unavailable", "address", address, "error", err)
	}
	return metadata
}
