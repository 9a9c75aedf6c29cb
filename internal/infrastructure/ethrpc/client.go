package ethrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"chainsync/internal/domain"
	"chainsync/internal/infrastructure/retry"
	"chainsync/internal/infrastructure/tokenabi"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Client reads blocks, receipts, accounts and ERC20 metadata from an EVM
// JSON-RPC endpoint.
type Client struct {
	url        string
	chain      domain.Chain
	httpClient *http.Client
	policy     retry.Policy
	idCounter  uint64
}

type Config struct {
	URL     string
	Chain   domain.Chain
	Timeout time.Duration
	Retry   retry.Policy
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("rpc url is required")
	}
	if !cfg.Chain.IsEVM() {
		return nil, fmt.Errorf("chain %s is not served over evm json-rpc", cfg.Chain)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.DefaultPolicy()
	}
	return &Client{
		url:        cfg.URL,
		chain:      cfg.Chain,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		policy:     cfg.Retry,
	}, nil
}

func (c *Client) Chain() domain.Chain {
	return c.chain
}

func (c *Client) LatestHeight(ctx context.Context) (uint64, error) {
	var result hexutil.Uint64
	if err := c.call(ctx, "eth_blockNumber", []any{}, &result); err != nil {
		return 0, err
	}
	return uint64(result), nil
}

func (c *Client) Block(ctx context.Context, height uint64) (domain.Block, error) {
	var raw json.RawMessage
	if err := c.call(ctx, "eth_getBlockByNumber", []any{hexutil.EncodeUint64(height), true}, &raw); err != nil {
		return domain.Block{}, err
	}
	if isNull(raw) {
		return domain.Block{}, domain.ErrBlockNotFound
	}
	var block rpcBlock
	if err := json.Unmarshal(raw, &block); err != nil {
		return domain.Block{}, fmt.Errorf("decode block %d: %w", height, err)
	}

	out := domain.Block{
		Number:       uint64(block.Number),
		Hash:         strings.ToLower(block.Hash),
		Transactions: make([]domain.Transaction, 0, len(block.Transactions)),
	}
	for _, tx := range block.Transactions {
		out.Transactions = append(out.Transactions, tx.toDomain(c.chain, out.Number))
	}
	return out, nil
}

func (c *Client) Receipt(ctx context.Context, tx domain.Transaction) (domain.Receipt, error) {
	var raw json.RawMessage
	if err := c.call(ctx, "eth_getTransactionReceipt", []any{tx.Hash}, &raw); err != nil {
		return domain.Receipt{}, err
	}
	if isNull(raw) {
		return domain.Receipt{}, fmt.Errorf("receipt for %s not found", tx.Hash)
	}
	var receipt rpcReceipt
	if err := json.Unmarshal(raw, &receipt); err != nil {
		return domain.Receipt{}, fmt.Errorf("decode receipt %s: %w", tx.Hash, err)
	}
	return receipt.toDomain(tx.Hash), nil
}

func (c *Client) Account(ctx context.Context, address string) (domain.Account, error) {
	var balance hexutil.Big
	if err := c.call(ctx, "eth_getBalance", []any{address, "latest"}, &balance); err != nil {
		return domain.Account{}, err
	}
	var nonce hexutil.Uint64
	if err := c.call(ctx, "eth_getTransactionCount", []any{address, "latest"}, &nonce); err != nil {
		return domain.Account{}, err
	}
	var code hexutil.Bytes
	if err := c.call(ctx, "eth_getCode", []any{address, "latest"}, &code); err != nil {
		return domain.Account{}, err
	}
	return domain.Account{
		Address:    address,
		Balance:    balance.ToInt(),
		Nonce:      uint64(nonce),
		IsContract: len(code) > 0,
	}, nil
}

func (c *Client) TokenName(ctx context.Context, address string) (string, error) {
	output, err := c.callToken(ctx, address, tokenabi.MethodName)
	if err != nil {
		return "", err
	}
	return tokenabi.String(tokenabi.MethodName, output)
}

func (c *Client) TokenSymbol(ctx context.Context, address string) (string, error) {
	output, err := c.callToken(ctx, address, tokenabi.MethodSymbol)
	if err != nil {
		return "", err
	}
	return tokenabi.String(tokenabi.MethodSymbol, output)
}

func (c *Client) TokenDecimals(ctx context.Context, address string) (uint8, error) {
	output, err := c.callToken(ctx, address, tokenabi.MethodDecimals)
	if err != nil {
		return 0, err
	}
	return tokenabi.Decimals(output)
}

func (c *Client) TokenTotalSupply(ctx context.Context, address string) (*big.Int, error) {
	output, err := c.callToken(ctx, address, tokenabi.MethodTotalSupply)
	if err != nil {
		return nil, err
	}
	return tokenabi.TotalSupply(output)
}

func (c *Client) callToken(ctx context.Context, address, method string) ([]byte, error) {
	data, err := tokenabi.Pack(method)
	if err != nil {
		return nil, err
	}
	call := map[string]any{
		"to":   address,
		"data": hexutil.Encode(data),
	}
	var output hexutil.Bytes
	if err := c.call(ctx, "eth_call", []any{call, "latest"}, &output); err != nil {
		return nil, err
	}
	return output, nil
}

type rpcBlock struct {
	Number       hexutil.Uint64   `json:"number"`
	Hash         string           `json:"hash"`
	Transactions []rpcTransaction `json:"transactions"`
}

type rpcTransaction struct {
	Hash  string         `json:"hash"`
	From  string         `json:"from"`
	To    *string        `json:"to"`
	Value *hexutil.Big   `json:"value"`
	Input hexutil.Bytes  `json:"input"`
	Nonce hexutil.Uint64 `json:"nonce"`
}

func (t rpcTransaction) toDomain(chain domain.Chain, height uint64) domain.Transaction {
	to := ""
	if t.To != nil {
		to = strings.ToLower(*t.To)
	}
	value := new(big.Int)
	if t.Value != nil {
		value = t.Value.ToInt()
	}
	return domain.Transaction{
		Chain:       chain,
		Hash:        strings.ToLower(t.Hash),
		BlockNumber: height,
		From:        strings.ToLower(t.From),
		To:          to,
		Value:       value,
		Input:       t.Input,
		Nonce:       uint64(t.Nonce),
	}
}

type rpcReceipt struct {
	Status *hexutil.Uint64 `json:"status"`
	Logs   []rpcLog        `json:"logs"`
}

type rpcLog struct {
	Address  string         `json:"address"`
	Topics   []common.Hash  `json:"topics"`
	Data     hexutil.Bytes  `json:"data"`
	LogIndex hexutil.Uint64 `json:"logIndex"`
}

func (r rpcReceipt) toDomain(hash string) domain.Receipt {
	// Only an explicit status of 1 counts as success; pre-Byzantium receipts
	// carry a post-state root instead and are treated as failed.
	status := domain.ReceiptFailed
	if r.Status != nil && *r.Status == 1 {
		status = domain.ReceiptSuccess
	}
	logs := make([]domain.Log, 0, len(r.Logs))
	for _, log := range r.Logs {
		logs = append(logs, domain.Log{
			Address: strings.ToLower(log.Address),
			Topics:  log.Topics,
			Data:    log.Data,
			Index:   uint32(log.LogIndex),
		})
	}
	return domain.Receipt{TxHash: hash, Status: status, Logs: logs}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// reverted reports errors a retry cannot fix.
func (e *rpcError) reverted() bool {
	return e.Code == 3 || strings.Contains(strings.ToLower(e.Message), "revert")
}

func (c *Client) call(ctx context.Context, method string, params []any, result any) error {
	return retry.Do(ctx, c.policy, func() error {
		return c.callOnce(ctx, method, params, result)
	})
}

func (c *Client) callOnce(ctx context.Context, method string, params []any, result any) error {
	id := atomic.AddUint64(&c.idCounter, 1)
	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      id,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return retry.Permanent(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return retry.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return retry.CheckStatus(resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return retry.Permanent(fmt.Errorf("%s: decode response: %w", method, err))
	}
	if decoded.Error != nil {
		if decoded.Error.reverted() {
			return retry.Permanent(decoded.Error)
		}
		return decoded.Error
	}
	if result == nil {
		return nil
	}
	if len(decoded.Result) == 0 {
		return retry.Permanent(fmt.Errorf("%s: rpc result is empty", method))
	}
	if err := json.Unmarshal(decoded.Result, result); err != nil {
		return retry.Permanent(fmt.Errorf("%s: decode result: %w", method, err))
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
