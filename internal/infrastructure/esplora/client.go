// Package esplora reads Bitcoin blocks from an Esplora-compatible REST API.
package esplora

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"chainsync/internal/domain"
	"chainsync/internal/infrastructure/retry"
)

// pageSize is the number of transactions Esplora returns per block page.
const pageSize = 25

type Client struct {
	baseURL    string
	httpClient *http.Client
	policy     retry.Policy
}

type Config struct {
	BaseURL string
	Timeout time.Duration
	Retry   retry.Policy
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("esplora base url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.DefaultPolicy()
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		policy:     cfg.Retry,
	}, nil
}

func (c *Client) Chain() domain.Chain {
	return domain.ChainBitcoin
}

func (c *Client) LatestHeight(ctx context.Context) (uint64, error) {
	body, err := c.get(ctx, "/blocks/tip/height")
	if err != nil {
		return 0, err
	}
	height, err := strconv.ParseUint(strings.TrimSpace(string(body)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("decode tip height: %w", err)
	}
	return height, nil
}

// Block fetches every page of the block's transactions.
func (c *Client) Block(ctx context.Context, height uint64) (domain.Block, error) {
	body, err := c.get(ctx, fmt.Sprintf("/block-height/%d", height))
	if err != nil {
		var status *retry.StatusError
		if errors.As(err, &status) && status.Code == http.StatusNotFound {
			return domain.Block{}, domain.ErrBlockNotFound
		}
		return domain.Block{}, err
	}
	hash := strings.TrimSpace(string(body))
	if hash == "" {
		return domain.Block{}, domain.ErrBlockNotFound
	}

	var header blockHeader
	if err := c.getJSON(ctx, "/block/"+hash, &header); err != nil {
		return domain.Block{}, err
	}

	// Electrs answers a start index at or past tx_count with 404, so paging
	// stops on the count rather than on a short page.
	block := domain.Block{Number: height, Hash: hash}
	block.Transactions = make([]domain.Transaction, 0, header.TxCount)
	for start := 0; start < header.TxCount; start += pageSize {
		path := fmt.Sprintf("/block/%s/txs", hash)
		if start > 0 {
			path = fmt.Sprintf("%s/%d", path, start)
		}
		var page []esploraTx
		if err := c.getJSON(ctx, path, &page); err != nil {
			return domain.Block{}, err
		}
		for _, tx := range page {
			block.Transactions = append(block.Transactions, tx.toDomain(height))
		}
		if len(page) == 0 {
			break
		}
	}
	return block, nil
}

// Receipt is synthesised: a transaction served inside a block is confirmed and
// Bitcoin has no event logs.
func (c *Client) Receipt(ctx context.Context, tx domain.Transaction) (domain.Receipt, error) {
	return domain.Receipt{TxHash: tx.Hash, Status: domain.ReceiptSuccess}, nil
}

// Account reports the confirmed balance; the transaction count stands in for a nonce.
func (c *Client) Account(ctx context.Context, address string) (domain.Account, error) {
	var stats addressStats
	if err := c.getJSON(ctx, "/address/"+address, &stats); err != nil {
		return domain.Account{}, err
	}
	funded := new(big.Int).SetUint64(stats.ChainStats.FundedTxoSum)
	spent := new(big.Int).SetUint64(stats.ChainStats.SpentTxoSum)
	return domain.Account{
		Address: address,
		Balance: funded.Sub(funded, spent),
		Nonce:   stats.ChainStats.TxCount,
	}, nil
}

type blockHeader struct {
	TxCount int `json:"tx_count"`
}

type esploraTx struct {
	TxID string `json:"txid"`
	Vin  []struct {
		Prevout *struct {
			Address string `json:"scriptpubkey_address"`
		} `json:"prevout"`
	} `json:"vin"`
	Vout []struct {
		Address string `json:"scriptpubkey_address"`
		Value   uint64 `json:"value"`
	} `json:"vout"`
}

// toDomain takes the first input address as sender, the first output address
// as recipient, and the sum of all outputs as value.
func (t esploraTx) toDomain(height uint64) domain.Transaction {
	tx := domain.Transaction{
		Chain:       domain.ChainBitcoin,
		Hash:        t.TxID,
		BlockNumber: height,
		Value:       new(big.Int),
	}
	for _, in := range t.Vin {
		if in.Prevout != nil && in.Prevout.Address != "" {
			tx.From = in.Prevout.Address
			break
		}
	}
	for _, out := range t.Vout {
		if tx.To == "" && out.Address != "" {
			tx.To = out.Address
		}
		tx.Value.Add(tx.Value, new(big.Int).SetUint64(out.Value))
	}
	return tx
}

type addressStats struct {
	ChainStats struct {
		FundedTxoSum uint64 `json:"funded_txo_sum"`
		SpentTxoSum  uint64 `json:"spent_txo_sum"`
		TxCount      uint64 `json:"tx_count"`
	} `json:"chain_stats"`
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	body, err := c.get(ctx, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	return retry.DoValue(ctx, c.policy, func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return nil, retry.Permanent(err)
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		if err := retry.CheckStatus(resp.StatusCode, strings.TrimSpace(string(body))); err != nil {
			return nil, err
		}
		return body, nil
	})
}
