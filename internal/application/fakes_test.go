package application

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"chainsync/internal/domain"
)

type fakeChain struct {
	chain    domain.Chain
	tip      uint64
	blocks   map[uint64]domain.Block
	receipts map[string]domain.Receipt
	accounts map[string]domain.Account

	receiptErr error
	delay      time.Duration

	inFlight    atomic.Int64
	maxInFlight atomic.Int64
	receiptHits atomic.Int64
	tipHits     atomic.Int64
}

func newFakeChain(chain domain.Chain, tip uint64) *fakeChain {
	return &fakeChain{
		chain:    chain,
		tip:      tip,
		blocks:   make(map[uint64]domain.Block),
		receipts: make(map[string]domain.Receipt),
		accounts: make(map[string]domain.Account),
	}
}

// addBlock creates a block at height with count simple value transfers.
func (c *fakeChain) addBlock(height uint64, count int) domain.Block {
	block := domain.Block{Number: height, Hash: fmt.Sprintf("0xblock%d", height)}
	for i := 0; i < count; i++ {
		block.Transactions = append(block.Transactions, domain.Transaction{
			Chain:       c.chain,
			Hash:        fmt.Sprintf("0x%d-%d", height, i),
			BlockNumber: height,
			From:        "0x1111111111111111111111111111111111111111",
			To:          "0x2222222222222222222222222222222222222222",
			Value:       big.NewInt(1),
		})
	}
	c.blocks[height] = block
	return block
}

func (c *fakeChain) enter() func() {
	current := c.inFlight.Add(1)
	for {
		peak := c.maxInFlight.Load()
		if current <= peak || c.maxInFlight.CompareAndSwap(peak, current) {
			break
		}
	}
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	return func() { c.inFlight.Add(-1) }
}

func (c *fakeChain) Chain() domain.Chain { return c.chain }

func (c *fakeChain) LatestHeight(ctx context.Context) (uint64, error) {
	c.tipHits.Add(1)
	return c.tip, nil
}

func (c *fakeChain) Block(ctx context.Context, height uint64) (domain.Block, error) {
	defer c.enter()()
	block, ok := c.blocks[height]
	if !ok {
		return domain.Block{}, ErrBlockNotFound
	}
	return block, nil
}

func (c *fakeChain) Receipt(ctx context.Context, tx domain.Transaction) (domain.Receipt, error) {
	defer c.enter()()
	c.receiptHits.Add(1)
	if c.receiptErr != nil {
		return domain.Receipt{}, c.receiptErr
	}
	if receipt, ok := c.receipts[tx.Hash]; ok {
		return receipt, nil
	}
	return domain.Receipt{TxHash: tx.Hash, Status: domain.ReceiptSuccess}, nil
}

func (c *fakeChain) Account(ctx context.Context, address string) (domain.Account, error) {
	defer c.enter()()
	if account, ok := c.accounts[address]; ok {
		return account, nil
	}
	return domain.Account{Address: address, Balance: big.NewInt(0)}, nil
}

type memorySink struct {
	mu           sync.Mutex
	transactions []domain.TransactionRecord
	transfers    []domain.TokenTransfer
	calls        []domain.ContractCall
	flows        []domain.MoneyFlow
	wallets      []domain.Wallet
	owners       []domain.Owner
	err          error
}

func (s *memorySink) SaveTransaction(ctx context.Context, record domain.TransactionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.transactions = append(s.transactions, record)
	return nil
}

func (s *memorySink) SaveTokenTransfers(ctx context.Context, transfers []domain.TokenTransfer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transfers = append(s.transfers, transfers...)
	return nil
}

func (s *memorySink) SaveContractCall(ctx context.Context, call domain.ContractCall) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call)
	return nil
}

func (s *memorySink) SaveMoneyFlows(ctx context.Context, flows []domain.MoneyFlow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flows = append(s.flows, flows...)
	return nil
}

func (s *memorySink) SaveWallet(ctx context.Context, wallet domain.Wallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wallets = append(s.wallets, wallet)
	return nil
}

func (s *memorySink) SaveOwner(ctx context.Context, owner domain.Owner) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.owners = append(s.owners, owner)
	return nil
}

func (s *memorySink) transactionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.transactions)
}

type memoryProgress struct {
	mu      sync.Mutex
	last    map[domain.Chain]uint64
	history []uint64
}

func newMemoryProgress() *memoryProgress {
	return &memoryProgress{last: make(map[domain.Chain]uint64)}
}

func (p *memoryProgress) LastSyncedBlock(ctx context.Context, chain domain.Chain) (uint64, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	block, ok := p.last[chain]
	return block, ok, nil
}

func (p *memoryProgress) SetLastSyncedBlock(ctx context.Context, chain domain.Chain, block uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.last[chain] = block
	p.history = append(p.history, block)
	return nil
}

type memoryTokens struct {
	mu       sync.Mutex
	existing map[string]bool
	saved    []domain.TokenMetadata
}

func (s *memoryTokens) TokenMetadataExists(ctx context.Context, chain domain.Chain, address string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.existing[address], nil
}

func (s *memoryTokens) SaveTokenMetadata(ctx context.Context, metadata domain.TokenMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.existing == nil {
		s.existing = make(map[string]bool)
	}
	s.existing[metadata.TokenAddress] = true
	s.saved = append(s.saved, metadata)
	return nil
}

type fakeTokenReader struct {
	calls  atomic.Int64
	broken bool
}

var errTokenCall = errors.New("execution reverted")

func (r *fakeTokenReader) TokenName(ctx context.Context, address string) (string, error) {
	r.calls.Add(1)
	if r.broken {
		return "", errTokenCall
	}
	return "Token " + address[len(address)-4:], nil
}

func (r *fakeTokenReader) TokenSymbol(ctx context.Context, address string) (string, error) {
	r.calls.Add(1)
	if r.broken {
		return "", errTokenCall
	}
	return "TKN", nil
}

func (r *fakeTokenReader) TokenDecimals(ctx context.Context, address string) (uint8, error) {
	r.calls.Add(1)
	if r.broken {
		return 0, errTokenCall
	}
	return 18, nil
}

func (r *fakeTokenReader) TokenTotalSupply(ctx context.Context, address string) (*big.Int, error) {
	r.calls.Add(1)
	if r.broken {
		return nil, errTokenCall
	}
	return big.NewInt(1_000_000), nil
}

type fakeDirectory struct {
	exchanges     map[string]bool
	senders       map[string]uint64
	persons       map[string]string
	senderQueries atomic.Int64
	lastLimit     atomic.Uint64
}

func (d *fakeDirectory) IsKnownExchange(ctx context.Context, chain domain.Chain, address string) (bool, error) {
	return d.exchanges[address], nil
}

func (d *fakeDirectory) DistinctSenders(ctx context.Context, chain domain.Chain, address string, limit uint64) (uint64, error) {
	d.senderQueries.Add(1)
	d.lastLimit.Store(limit)
	return min(d.senders[address], limit), nil
}

func (d *fakeDirectory) PersonID(ctx context.Context, chain domain.Chain, address string) (string, bool, error) {
	id, ok := d.persons[address]
	return id, ok, nil
}

type recordingGauge struct {
	mu     sync.Mutex
	values []int64
}

func (g *recordingGauge) OnGateInFlight(inFlight int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.values = append(g.values, inFlight)
}

type fetchHarness struct {
	chain    *fakeChain
	sink     *memorySink
	progress *memoryProgress
	tokens   *memoryTokens
	gate     *Gate
}

func newFetchHarness(chain *fakeChain, capacity int) *fetchHarness {
	gate, err := NewGate(capacity, nil)
	if err != nil {
		panic(err)
	}
	return &fetchHarness{
		chain:    chain,
		sink:     &memorySink{},
		progress: newMemoryProgress(),
		tokens:   &memoryTokens{},
		gate:     gate,
	}
}

func (h *fetchHarness) fetcher(cfg FetcherConfig) (*Fetcher, error) {
	tagger, err := NewWalletTagger(&fakeDirectory{}, nil)
	if err != nil {
		return nil, err
	}
	wallets, err := NewWalletRecorder(h.chain, h.gate, tagger, h.sink)
	if err != nil {
		return nil, err
	}
	discovery, err := NewTokenDiscovery(h.chain.chain, &fakeTokenReader{}, h.tokens, h.gate, nil)
	if err != nil {
		return nil, err
	}
	return NewFetcher(h.chain, h.sink, h.progress, discovery, wallets, h.gate, nil, nil, cfg)
}
