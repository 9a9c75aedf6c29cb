package esplora

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"chainsync/internal/domain"
	"chainsync/internal/infrastructure/retry"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := NewClient(Config{BaseURL: server.URL + "/", Retry: retry.Policy{MaxAttempts: 2, Step: time.Millisecond}})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func txPage(prefix string, n int) []map[string]any {
	page := make([]map[string]any, 0, n)
	for i := 0; i < n; i++ {
		page = append(page, map[string]any{
			"txid": fmt.Sprintf("%s%d", prefix, i),
			"vin":  []map[string]any{{"prevout": nil}, {"prevout": map[string]any{"scriptpubkey_address": "bc1qsender"}}},
			"vout": []map[string]any{
				{"value": 1000},
				{"scriptpubkey_address": "bc1qrecipient", "value": 2500},
			},
		})
	}
	return page
}

func TestLatestHeight(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/blocks/tip/height" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte("840000\n"))
	}))
	height, err := client.LatestHeight(context.Background())
	if err != nil || height != 840000 {
		t.Errorf("expected 840000, got %d (%v)", height, err)
	}
}

func TestBlockFollowsPages(t *testing.T) {
	var paths []string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		switch r.URL.Path {
		case "/block-height/7":
			_, _ = w.Write([]byte("00000000abc"))
		case "/block/00000000abc":
			_, _ = w.Write([]byte(`{"id":"00000000abc","height":7,"tx_count":28}`))
		case "/block/00000000abc/txs":
			_ = json.NewEncoder(w).Encode(txPage("a", 25))
		case "/block/00000000abc/txs/25":
			_ = json.NewEncoder(w).Encode(txPage("b", 3))
		default:
			http.NotFound(w, r)
		}
	}))

	block, err := client.Block(context.Background(), 7)
	if err != nil {
		t.Fatalf("block: %v", err)
	}
	if len(block.Transactions) != 28 {
		t.Fatalf("expected 28 transactions, got %d (paths %v)", len(block.Transactions), paths)
	}
	tx := block.Transactions[27]
	if tx.Hash != "b2" || tx.From != "bc1qsender" || tx.To != "bc1qrecipient" {
		t.Errorf("unexpected transaction %+v", tx)
	}
	if tx.Value.Int64() != 3500 || tx.BlockNumber != 7 || tx.Chain != domain.ChainBitcoin {
		t.Errorf("expected 3500 sats at height 7, got %s at %d", tx.Value, tx.BlockNumber)
	}
}

// electrsBlock serves a block of n transactions the way electrs does,
// answering 404 for a start index at or past the end.
func electrsBlock(t *testing.T, n int) (http.Handler, *[]string) {
	t.Helper()
	var paths []string
	all := txPage("t", n)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		switch {
		case r.URL.Path == "/block-height/9":
			_, _ = w.Write([]byte("00000000def"))
		case r.URL.Path == "/block/00000000def":
			_, _ = fmt.Fprintf(w, `{"id":"00000000def","height":9,"tx_count":%d}`, n)
		case strings.HasPrefix(r.URL.Path, "/block/00000000def/txs"):
			start := 0
			if rest := strings.TrimPrefix(r.URL.Path, "/block/00000000def/txs"); rest != "" {
				if _, err := fmt.Sscanf(rest, "/%d", &start); err != nil {
					http.Error(w, "bad start", http.StatusBadRequest)
					return
				}
			}
			if start >= n && start > 0 {
				http.Error(w, "start index out of range", http.StatusNotFound)
				return
			}
			end := min(start+pageSize, n)
			_ = json.NewEncoder(w).Encode(all[start:end])
		default:
			http.NotFound(w, r)
		}
	}), &paths
}

func TestBlockWithExactMultipleOfPageSize(t *testing.T) {
	for _, n := range []int{25, 50, 1} {
		handler, paths := electrsBlock(t, n)
		block, err := newTestClient(t, handler).Block(context.Background(), 9)
		if err != nil {
			t.Fatalf("block with %d txs: %v (paths %v)", n, err, *paths)
		}
		if len(block.Transactions) != n {
			t.Errorf("expected %d transactions, got %d", n, len(block.Transactions))
		}
		wantPages := (n + pageSize - 1) / pageSize
		if got := len(*paths) - 2; got != wantPages {
			t.Errorf("block with %d txs: expected %d page requests, got %d (%v)", n, wantPages, got, *paths)
		}
	}
}

func TestBlockWithoutTransactions(t *testing.T) {
	handler, paths := electrsBlock(t, 0)
	block, err := newTestClient(t, handler).Block(context.Background(), 9)
	if err != nil {
		t.Fatalf("block: %v", err)
	}
	if len(block.Transactions) != 0 || len(*paths) != 2 {
		t.Errorf("expected no page requests for an empty block, got %v", *paths)
	}
}

func TestBlockNotFound(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Block not found", http.StatusNotFound)
	}))
	if _, err := client.Block(context.Background(), 99_999_999); !errors.Is(err, domain.ErrBlockNotFound) {
		t.Errorf("expected ErrBlockNotFound, got %v", err)
	}
}

func TestAccountBalance(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/address/") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"chain_stats":{"funded_txo_sum":5000,"spent_txo_sum":1200,"tx_count":9}}`))
	}))
	account, err := client.Account(context.Background(), "bc1qsender")
	if err != nil {
		t.Fatalf("account: %v", err)
	}
	if account.Balance.Int64() != 3800 || account.Nonce != 9 || account.IsContract {
		t.Errorf("unexpected account %+v", account)
	}
}

func TestReceiptIsSynthesised(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("receipt must not call the api")
	}))
	receipt, err := client.Receipt(context.Background(), domain.Transaction{Hash: "abc"})
	if err != nil || !receipt.Succeeded() || len(receipt.Logs) != 0 {
		t.Errorf("unexpected receipt %+v (%v)", receipt, err)
	}
}
