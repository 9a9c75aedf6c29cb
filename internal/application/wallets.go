package application

import (
	"context"
	"errors"
	"strings"
	"sync"

	"chainsync/internal/domain"

	"github.com/google/uuid"
)

const (
	exchangeNonceThreshold = 10_000
	exchangeFanInThreshold = 500
)

// WalletTagger decides whether an address behaves like an exchange and which
// person it belongs to.
type WalletTagger struct {
	directory WalletDirectory
	registry  map[string]struct{}
	newID     func() string

	// fanIn remembers addresses whose sender count already crossed the
	// threshold; the store only grows so the decision never reverts.
	fanIn sync.Map
}

func NewWalletTagger(directory WalletDirectory, knownExchanges []string) (*WalletTagger, error) {
	if directory == nil {
		return nil, errors.New("wallet directory is required")
	}
	registry := make(map[string]struct{}, len(knownExchanges))
	for _, address := range knownExchanges {
		if key := strings.ToLower(strings.TrimSpace(address)); key != "" {
			registry[key] = struct{}{}
		}
	}
	return &WalletTagger{
		directory: directory,
		registry:  registry,
		newID:     func() string { return uuid.NewString() },
	}, nil
}

func (t *WalletTagger) Tag(ctx context.Context, chain domain.Chain, address string, nonce uint64, fallback domain.WalletType) (domain.WalletType, error) {
	if _, ok := t.registry[strings.ToLower(address)]; ok {
		return domain.WalletTypeExchange, nil
	}
	known, err := t.directory.IsKnownExchange(ctx, chain, address)
	if err != nil {
		return "", err
	}
	if known {
		return domain.WalletTypeExchange, nil
	}
	if nonce > exchangeNonceThreshold {
		return domain.WalletTypeExchange, nil
	}
	key := fanInKey(chain, address)
	if _, ok := t.fanIn.Load(key); ok {
		return domain.WalletTypeExchange, nil
	}
	senders, err := t.directory.DistinctSenders(ctx, chain, address, exchangeFanInThreshold+1)
	if err != nil {
		return "", err
	}
	if senders > exchangeFanInThreshold {
		t.fanIn.Store(key, struct{}{})
		return domain.WalletTypeExchange, nil
	}
	return fallback, nil
}

func fanInKey(chain domain.Chain, address string) string {
	return chain.String() + ":" + strings.ToLower(address)
}

// PersonID groups every exchange address under one shared entity and keeps any
// id already assigned to other addresses.
func (t *WalletTagger) PersonID(ctx context.Context, chain domain.Chain, address string, walletType domain.WalletType) (string, error) {
	if walletType == domain.WalletTypeExchange {
		return "EXCHANGE_" + address, nil
	}
	id, ok, err := t.directory.PersonID(ctx, chain, address)
	if err != nil {
		return "", err
	}
	if ok && id != "" {
		return id, nil
	}
	return t.newID(), nil
}

// WalletRecorder snapshots an address' account state and stores it with its tag.
type WalletRecorder struct {
	client ChainClient
	gate   *Gate
	tagger *WalletTagger
	sink   Sink
}

func NewWalletRecorder(client ChainClient, gate *Gate, tagger *WalletTagger, sink Sink) (*WalletRecorder, error) {
	if client == nil || gate == nil || tagger == nil || sink == nil {
		return nil, errors.New("wallet recorder dependencies must not be nil")
	}
	return &WalletRecorder{client: client, gate: gate, tagger: tagger, sink: sink}, nil
}

func (r *WalletRecorder) Record(ctx context.Context, address string) error {
	if strings.TrimSpace(address) == "" {
		return nil
	}
	chain := r.client.Chain()
	account, err := Gated(ctx, r.gate, func(ctx context.Context) (domain.Account, error) {
		return r.client.Account(ctx, address)
	})
	if err != nil {
		return err
	}
	fallback := domain.WalletTypeWallet
	if account.IsContract {
		fallback = domain.WalletTypeSmartContract
	}
	walletType, err := r.tagger.Tag(ctx, chain, address, account.Nonce, fallback)
	if err != nil {
		return err
	}
	personID, err := r.tagger.PersonID(ctx, chain, address, walletType)
	if err != nil {
		return err
	}
	balance := "0"
	if account.Balance != nil {
		balance = account.Balance.String()
	}
	if err := r.sink.SaveWallet(ctx, domain.Wallet{
		Chain:    chain,
		Address:  address,
		Balance:  balance,
		Nonce:    account.Nonce,
		Type:     walletType,
		PersonID: personID,
	}); err != nil {
		return err
	}
	return r.sink.SaveOwner(ctx, domain.Owner{
		Chain:      chain,
		Address:    address,
		PersonID:   personID,
		PersonalID: "0",
	})
}
