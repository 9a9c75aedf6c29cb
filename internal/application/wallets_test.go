package application

import (
	"context"
	"math/big"
	"testing"

	"chainsync/internal/domain"
)

func TestWalletTaggerHeuristics(t *testing.T) {
	directory := &fakeDirectory{
		exchanges: map[string]bool{"0xtagged": true},
		senders:   map[string]uint64{"0xhot": 501, "0xbusy": 500},
	}
	tagger, err := NewWalletTagger(directory, []string{"0xREGISTRY"})
	if err != nil {
		t.Fatalf("new tagger: %v", err)
	}
	cases := []struct {
		address  string
		nonce    uint64
		fallback domain.WalletType
		want     domain.WalletType
	}{
		{"0xregistry", 0, domain.WalletTypeWallet, domain.WalletTypeExchange},
		{"0xtagged", 0, domain.WalletTypeWallet, domain.WalletTypeExchange},
		{"0xnonce", 10_001, domain.WalletTypeWallet, domain.WalletTypeExchange},
		{"0xnonce", 10_000, domain.WalletTypeWallet, domain.WalletTypeWallet},
		{"0xhot", 1, domain.WalletTypeWallet, domain.WalletTypeExchange},
		{"0xbusy", 1, domain.WalletTypeSmartContract, domain.WalletTypeSmartContract},
	}
	for _, tc := range cases {
		got, err := tagger.Tag(context.Background(), domain.ChainEthereum, tc.address, tc.nonce, tc.fallback)
		if err != nil {
			t.Fatalf("tag %s: %v", tc.address, err)
		}
		if got != tc.want {
			t.Errorf("%s: expected %s, got %s", tc.address, tc.want, got)
		}
	}
}

func TestWalletTaggerBoundsAndRemembersFanIn(t *testing.T) {
	directory := &fakeDirectory{senders: map[string]uint64{"0xhot": 90_000, "0xquiet": 3}}
	tagger, err := NewWalletTagger(directory, nil)
	if err != nil {
		t.Fatalf("new tagger: %v", err)
	}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		got, err := tagger.Tag(ctx, domain.ChainEthereum, "0xhot", 0, domain.WalletTypeWallet)
		if err != nil || got != domain.WalletTypeExchange {
			t.Fatalf("expected exchange, got %s (%v)", got, err)
		}
	}
	if n := directory.senderQueries.Load(); n != 1 {
		t.Errorf("expected one sender count for a known fan-in exchange, got %d", n)
	}
	if limit := directory.lastLimit.Load(); limit != exchangeFanInThreshold+1 {
		t.Errorf("expected count bounded at %d, got %d", exchangeFanInThreshold+1, limit)
	}

	for i := 0; i < 2; i++ {
		if got, _ := tagger.Tag(ctx, domain.ChainEthereum, "0xquiet", 0, domain.WalletTypeWallet); got != domain.WalletTypeWallet {
			t.Errorf("expected wallet, got %s", got)
		}
	}
	if n := directory.senderQueries.Load(); n != 3 {
		t.Errorf("expected below-threshold addresses to be counted each time, got %d queries", n)
	}
	if got, _ := tagger.Tag(ctx, domain.ChainBSC, "0xhot", 0, domain.WalletTypeWallet); got != domain.WalletTypeExchange {
		t.Errorf("expected exchange on bsc too, got %s", got)
	}
	if n := directory.senderQueries.Load(); n != 4 {
		t.Errorf("expected the remembered decision to be per chain, got %d queries", n)
	}
}

func TestWalletTaggerPersonID(t *testing.T) {
	directory := &fakeDirectory{persons: map[string]string{"0xknown": "person-1"}}
	tagger, err := NewWalletTagger(directory, nil)
	if err != nil {
		t.Fatalf("new tagger: %v", err)
	}
	tagger.newID = func() string { return "fresh" }
	ctx := context.Background()

	if id, _ := tagger.PersonID(ctx, domain.ChainEthereum, "0xcex", domain.WalletTypeExchange); id != "EXCHANGE_0xcex" {
		t.Errorf("expected exchange id, got %s", id)
	}
	if id, _ := tagger.PersonID(ctx, domain.ChainEthereum, "0xknown", domain.WalletTypeWallet); id != "person-1" {
		t.Errorf("expected existing id, got %s", id)
	}
	if id, _ := tagger.PersonID(ctx, domain.ChainEthereum, "0xnew", domain.WalletTypeWallet); id != "fresh" {
		t.Errorf("expected fresh id, got %s", id)
	}
}

func TestWalletRecorderStoresWalletAndOwner(t *testing.T) {
	chain := newFakeChain(domain.ChainEthereum, 0)
	chain.accounts["0xcontract"] = domain.Account{Address: "0xcontract", Balance: big.NewInt(77), Nonce: 1, IsContract: true}
	gate, _ := NewGate(1, nil)
	tagger, _ := NewWalletTagger(&fakeDirectory{}, nil)
	sink := &memorySink{}
	recorder, err := NewWalletRecorder(chain, gate, tagger, sink)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	if err := recorder.Record(context.Background(), "0xcontract"); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := recorder.Record(context.Background(), ""); err != nil {
		t.Fatalf("record empty: %v", err)
	}
	if len(sink.wallets) != 1 || len(sink.owners) != 1 {
		t.Fatalf("expected one wallet and one owner, got %d and %d", len(sink.wallets), len(sink.owners))
	}
	wallet := sink.wallets[0]
	if wallet.Type != domain.WalletTypeSmartContract || wallet.Balance != "77" || wallet.Nonce != 1 {
		t.Errorf("unexpected wallet %+v", wallet)
	}
	if sink.owners[0].PersonID != wallet.PersonID || sink.owners[0].PersonName != "" {
		t.Errorf("unexpected owner %+v", sink.owners[0])
	}
}
