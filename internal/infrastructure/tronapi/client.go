// Package tronapi reads blocks, receipts, accounts and TRC20 metadata from a
// TRON full node HTTP API.
package tronapi

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
	"time"

	"chainsync/internal/domain"
	"chainsync/internal/infrastructure/retry"
	"chainsync/internal/infrastructure/tokenabi"

	"github.com/ethereum/go-ethereum/common"
)

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	policy     retry.Policy
}

type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Retry   retry.Policy
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("tron api url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.DefaultPolicy()
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		policy:     cfg.Retry,
	}, nil
}

func (c *Client) Chain() domain.Chain {
	return domain.ChainTron
}

func (c *Client) LatestHeight(ctx context.Context) (uint64, error) {
	var block tronBlock
	if err := c.post(ctx, "/wallet/getnowblock", nil, &block); err != nil {
		return 0, err
	}
	return block.Header.RawData.Number, nil
}

func (c *Client) Block(ctx context.Context, height uint64) (domain.Block, error) {
	var block tronBlock
	if err := c.post(ctx, "/wallet/getblockbynum", map[string]any{"num": height}, &block); err != nil {
		return domain.Block{}, err
	}
	if block.BlockID == "" {
		return domain.Block{}, domain.ErrBlockNotFound
	}
	out := domain.Block{
		Number:       height,
		Hash:         block.BlockID,
		Transactions: make([]domain.Transaction, 0, len(block.Transactions)),
	}
	for _, tx := range block.Transactions {
		out.Transactions = append(out.Transactions, tx.toDomain(height))
	}
	return out, nil
}

func (c *Client) Receipt(ctx context.Context, tx domain.Transaction) (domain.Receipt, error) {
	var info transactionInfo
	if err := c.post(ctx, "/wallet/gettransactioninfobyid", map[string]any{"value": tx.Hash}, &info); err != nil {
		return domain.Receipt{}, err
	}
	receipt := domain.Receipt{TxHash: tx.Hash, Status: domain.ReceiptSuccess}
	if info.failed() {
		receipt.Status = domain.ReceiptFailed
	}
	for i, log := range info.Logs {
		entry := domain.Log{
			Address: ToHex(log.Address),
			Data:    common.FromHex(log.Data),
			Index:   uint32(i),
		}
		for _, topic := range log.Topics {
			entry.Topics = append(entry.Topics, common.HexToHash(topic))
		}
		receipt.Logs = append(receipt.Logs, entry)
	}
	return receipt, nil
}

// Account reads the TRX balance. TRON has no account nonce.
func (c *Client) Account(ctx context.Context, address string) (domain.Account, error) {
	nodeAddress := FromHex(address)
	var account struct {
		Balance uint64 `json:"balance"`
	}
	if err := c.post(ctx, "/wallet/getaccount", map[string]any{"address": nodeAddress, "visible": false}, &account); err != nil {
		return domain.Account{}, err
	}
	var contract struct {
		Bytecode string `json:"bytecode"`
	}
	if err := c.post(ctx, "/wallet/getcontract", map[string]any{"value": nodeAddress, "visible": false}, &contract); err != nil {
		return domain.Account{}, err
	}
	return domain.Account{
		Address:    address,
		Balance:    new(big.Int).SetUint64(account.Balance),
		IsContract: contract.Bytecode != "",
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
	selector, err := tokenabi.Signature(method)
	if err != nil {
		return nil, err
	}
	nodeAddress := FromHex(address)
	request := map[string]any{
		"owner_address":     nodeAddress,
		"contract_address":  nodeAddress,
		"function_selector": selector,
		"parameter":         "",
		"visible":           false,
	}
	var response struct {
		ConstantResult []string `json:"constant_result"`
		Result         struct {
			Result  bool   `json:"result"`
			Message string `json:"message"`
		} `json:"result"`
	}
	if err := c.post(ctx, "/wallet/triggerconstantcontract", request, &response); err != nil {
		return nil, err
	}
	if !response.Result.Result || len(response.ConstantResult) == 0 {
		return nil, fmt.Errorf("%s on %s failed: %s", selector, address, decodeMessage(response.Result.Message))
	}
	return common.FromHex(response.ConstantResult[0]), nil
}

type tronBlock struct {
	BlockID string `json:"blockID"`
	Header  struct {
		RawData struct {
			Number uint64 `json:"number"`
		} `json:"raw_data"`
	} `json:"block_header"`
	Transactions []tronTransaction `json:"transactions"`
}

type tronTransaction struct {
	TxID    string `json:"txID"`
	RawData struct {
		Contract []struct {
			Type      string `json:"type"`
			Parameter struct {
				Value contractValue `json:"value"`
			} `json:"parameter"`
		} `json:"contract"`
	} `json:"raw_data"`
}

type contractValue struct {
	OwnerAddress    string `json:"owner_address"`
	ToAddress       string `json:"to_address"`
	ContractAddress string `json:"contract_address"`
	Amount          uint64 `json:"amount"`
	CallValue       uint64 `json:"call_value"`
	Data            string `json:"data"`
}

// toDomain maps the first contract of a transaction. TRX transfers carry an
// amount, smart contract calls carry call_value and calldata.
func (t tronTransaction) toDomain(height uint64) domain.Transaction {
	tx := domain.Transaction{
		Chain:       domain.ChainTron,
		Hash:        t.TxID,
		BlockNumber: height,
		Value:       new(big.Int),
	}
	if len(t.RawData.Contract) == 0 {
		return tx
	}
	contract := t.RawData.Contract[0]
	value := contract.Parameter.Value
	tx.From = ToHex(value.OwnerAddress)
	switch contract.Type {
	case "TriggerSmartContract":
		tx.To = ToHex(value.ContractAddress)
		tx.Value.SetUint64(value.CallValue)
		tx.Input = common.FromHex(value.Data)
	case "TransferContract":
		tx.To = ToHex(value.ToAddress)
		tx.Value.SetUint64(value.Amount)
	default:
		if value.ToAddress != "" {
			tx.To = ToHex(value.ToAddress)
		} else if value.ContractAddress != "" {
			tx.To = ToHex(value.ContractAddress)
		}
	}
	return tx
}

type transactionInfo struct {
	ID      string `json:"id"`
	Result  string `json:"result"`
	Receipt struct {
		Result string `json:"result"`
	} `json:"receipt"`
	Logs []struct {
		Address string   `json:"address"`
		Topics  []string `json:"topics"`
		Data    string   `json:"data"`
	} `json:"log"`
}

func (i transactionInfo) failed() bool {
	if strings.EqualFold(i.Result, "FAILED") {
		return true
	}
	return i.Receipt.Result != "" && !strings.EqualFold(i.Receipt.Result, "SUCCESS")
}

// decodeMessage renders the hex-encoded error message the node returns.
func decodeMessage(message string) string {
	raw := common.FromHex(message)
	if len(raw) == 0 {
		return message
	}
	return string(raw)
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	var payload []byte
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = encoded
	}
	raw, err := retry.DoValue(ctx, c.policy, func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return nil, retry.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("TRON-PRO-API-KEY", c.apiKey)
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		if err := retry.CheckStatus(resp.StatusCode, strings.TrimSpace(string(data))); err != nil {
			return nil, err
		}
		return data, nil
	})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
