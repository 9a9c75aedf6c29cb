package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"chainsync/internal/domain"
)

type fakeRows struct {
	transactions []domain.TransactionRecord
	tokens       map[string]bool
	existsCalls  int
	pingErr      error
}

func (f *fakeRows) SaveTransaction(ctx context.Context, record domain.TransactionRecord) error {
	f.transactions = append(f.transactions, record)
	return nil
}
func (f *fakeRows) SaveTokenTransfers(ctx context.Context, transfers []domain.TokenTransfer) error {
	return nil
}
func (f *fakeRows) SaveContractCall(ctx context.Context, call domain.ContractCall) error { return nil }
func (f *fakeRows) SaveMoneyFlows(ctx context.Context, flows []domain.MoneyFlow) error   { return nil }
func (f *fakeRows) SaveWallet(ctx context.Context, wallet domain.Wallet) error           { return nil }
func (f *fakeRows) SaveOwner(ctx context.Context, owner domain.Owner) error              { return nil }
func (f *fakeRows) TokenMetadataExists(ctx context.Context, chain domain.Chain, address string) (bool, error) {
	f.existsCalls++
	return f.tokens[address], nil
}
func (f *fakeRows) SaveTokenMetadata(ctx context.Context, metadata domain.TokenMetadata) error {
	if f.tokens == nil {
		f.tokens = make(map[string]bool)
	}
	f.tokens[metadata.TokenAddress] = true
	return nil
}
func (f *fakeRows) IsKnownExchange(ctx context.Context, chain domain.Chain, address string) (bool, error) {
	return false, nil
}
func (f *fakeRows) DistinctSenders(ctx context.Context, chain domain.Chain, address string, limit uint64) (uint64, error) {
	return 0, nil
}
func (f *fakeRows) PersonID(ctx context.Context, chain domain.Chain, address string) (string, bool, error) {
	return "", false, nil
}
func (f *fakeRows) Ping(ctx context.Context) error { return f.pingErr }

type fakeCheckpoints struct {
	last map[domain.Chain]uint64
	err  error
}

func (f *fakeCheckpoints) LastSyncedBlock(ctx context.Context, chain domain.Chain) (uint64, bool, error) {
	block, ok := f.last[chain]
	return block, ok, nil
}
func (f *fakeCheckpoints) SetLastSyncedBlock(ctx context.Context, chain domain.Chain, block uint64) error {
	if f.err != nil {
		return f.err
	}
	if f.last == nil {
		f.last = make(map[domain.Chain]uint64)
	}
	f.last[chain] = block
	return nil
}
func (f *fakeCheckpoints) Ping(ctx context.Context) error { return nil }

type fakePublisher struct {
	transactions []string
	checkpoints  []uint64
	err          error
}

func (f *fakePublisher) PublishTransaction(ctx context.Context, record domain.TransactionRecord) error {
	if f.err != nil {
		return f.err
	}
	f.transactions = append(f.transactions, record.Hash)
	return nil
}
func (f *fakePublisher) PublishCheckpoint(ctx context.Context, chain domain.Chain, block uint64) error {
	if f.err != nil {
		return f.err
	}
	f.checkpoints = append(f.checkpoints, block)
	return nil
}

type fakeCache struct {
	keys map[string]bool
}

func (c *fakeCache) Exists(ctx context.Context, key string) (bool, error) { return c.keys[key], nil }
func (c *fakeCache) Mark(ctx context.Context, key string, ttl time.Duration) error {
	c.keys[key] = true
	return nil
}

func TestRepositoryPublishesAfterWriting(t *testing.T) {
	rows := &fakeRows{}
	publisher := &fakePublisher{}
	repo, err := NewRepository(rows, &fakeCheckpoints{}, publisher, nil)
	if err != nil {
		t.Fatalf("new repository: %v", err)
	}
	ctx := context.Background()
	if err := repo.SaveTransaction(ctx, domain.TransactionRecord{Chain: domain.ChainEthereum, Hash: "0x1"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := repo.SetLastSyncedBlock(ctx, domain.ChainEthereum, 10); err != nil {
		t.Fatalf("checkpoint: %v", err)
	}
	if len(rows.transactions) != 1 || len(publisher.transactions) != 1 {
		t.Errorf("expected row and message, got %d and %d", len(rows.transactions), len(publisher.transactions))
	}
	if len(publisher.checkpoints) != 1 || publisher.checkpoints[0] != 10 {
		t.Errorf("expected checkpoint 10 published, got %v", publisher.checkpoints)
	}
	block, ok, _ := repo.LastSyncedBlock(ctx, domain.ChainEthereum)
	if !ok || block != 10 {
		t.Errorf("expected checkpoint 10, got %d", block)
	}
}

func TestRepositoryCheckpointFailureSkipsPublish(t *testing.T) {
	publisher := &fakePublisher{}
	checkpoints := &fakeCheckpoints{err: errors.New("disk full")}
	repo, _ := NewRepository(&fakeRows{}, checkpoints, publisher, nil)
	if err := repo.SetLastSyncedBlock(context.Background(), domain.ChainBSC, 3); !errors.Is(err, checkpoints.err) {
		t.Fatalf("expected checkpoint error, got %v", err)
	}
	if len(publisher.checkpoints) != 0 {
		t.Errorf("expected nothing published, got %v", publisher.checkpoints)
	}
}

func TestRepositoryCheckpointPublishFailureIsNotFatal(t *testing.T) {
	repo, _ := NewRepository(&fakeRows{}, &fakeCheckpoints{}, &fakePublisher{err: errors.New("broker down")}, nil)
	if err := repo.SetLastSyncedBlock(context.Background(), domain.ChainBSC, 3); err != nil {
		t.Errorf("expected checkpoint to succeed, got %v", err)
	}
}

func TestRepositoryTransactionPublishFailureIsFatal(t *testing.T) {
	publisher := &fakePublisher{err: errors.New("broker down")}
	repo, _ := NewRepository(&fakeRows{}, &fakeCheckpoints{}, publisher, nil)
	if err := repo.SaveTransaction(context.Background(), domain.TransactionRecord{Hash: "0x1"}); !errors.Is(err, publisher.err) {
		t.Errorf("expected publish error, got %v", err)
	}
}

func TestCachedRepositoryShortCircuitsKnownTokens(t *testing.T) {
	rows := &fakeRows{tokens: map[string]bool{"0xaaaa": true}}
	base, _ := NewRepository(rows, &fakeCheckpoints{}, nil, nil)
	cached := &CachedRepository{Repository: base, cache: &fakeCache{keys: map[string]bool{}}, ttl: time.Minute}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		exists, err := cached.TokenMetadataExists(ctx, domain.ChainEthereum, "0xaaaa")
		if err != nil || !exists {
			t.Fatalf("expected known token, got %v (%v)", exists, err)
		}
	}
	if rows.existsCalls != 1 {
		t.Errorf("expected one store lookup, got %d", rows.existsCalls)
	}

	if err := cached.SaveTokenMetadata(ctx, domain.TokenMetadata{Chain: domain.ChainEthereum, TokenAddress: "0xbbbb"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if exists, _ := cached.TokenMetadataExists(ctx, domain.ChainEthereum, "0xBBBB"); !exists {
		t.Errorf("expected saved token to be cached")
	}
	if rows.existsCalls != 1 {
		t.Errorf("expected cache hit for saved token, got %d store lookups", rows.existsCalls)
	}
}

func TestNewCachedRepositoryWithoutRedis(t *testing.T) {
	base, _ := NewRepository(&fakeRows{}, &fakeCheckpoints{}, nil, nil)
	cached, err := NewCachedRepository(base, CacheConfig{})
	if err != nil {
		t.Fatalf("new cached repository: %v", err)
	}
	if cached.cache != nil {
		t.Errorf("expected cache to be disabled")
	}
	if exists, err := cached.TokenMetadataExists(context.Background(), domain.ChainEthereum, "0x1"); err != nil || exists {
		t.Errorf("expected passthrough miss, got %v (%v)", exists, err)
	}
}
