package ethrpc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"chainsync/internal/domain"
	"chainsync/internal/infrastructure/retry"

	"github.com/ethereum/go-ethereum/common"
)

type rpcCall struct {
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
	ID     uint64            `json:"id"`
}

func newRPCServer(t *testing.T, results map[string]string) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		var call rpcCall
		if err := json.NewDecoder(r.Body).Decode(&call); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		result, ok := results[call.Method]
		if !ok {
			_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32601,"message":"method not found"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":` + result + `}`))
	}))
	t.Cleanup(server.Close)
	return server, &hits
}

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	client, err := NewClient(Config{URL: url, Chain: domain.ChainEthereum, Retry: retry.Policy{MaxAttempts: 2, Step: time.Millisecond}})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestNewClientValidates(t *testing.T) {
	if _, err := NewClient(Config{Chain: domain.ChainEthereum}); err == nil {
		t.Errorf("expected error without url")
	}
	if _, err := NewClient(Config{URL: "http://node", Chain: domain.ChainBitcoin}); err == nil {
		t.Errorf("expected error for non-evm chain")
	}
}

func TestLatestHeight(t *testing.T) {
	server, _ := newRPCServer(t, map[string]string{"eth_blockNumber": `"0x10d4f"`})
	height, err := newTestClient(t, server.URL).LatestHeight(context.Background())
	if err != nil {
		t.Fatalf("latest height: %v", err)
	}
	if height != 68943 {
		t.Errorf("expected 68943, got %d", height)
	}
}

func TestBlockDecodesTransactions(t *testing.T) {
	server, _ := newRPCServer(t, map[string]string{"eth_getBlockByNumber": `{
		"number":"0x64","hash":"0xABC",
		"transactions":[
			{"hash":"0xAA","from":"0x1111111111111111111111111111111111111111","to":"0x2222222222222222222222222222222222222222","value":"0xde0b6b3a7640000","input":"0xa9059cbb","nonce":"0x7"},
			{"hash":"0xBB","from":"0x1111111111111111111111111111111111111111","to":null,"value":"0x0","input":"0x6080","nonce":"0x8"}
		]}`})
	block, err := newTestClient(t, server.URL).Block(context.Background(), 100)
	if err != nil {
		t.Fatalf("block: %v", err)
	}
	if block.Number != 100 || len(block.Transactions) != 2 {
		t.Fatalf("unexpected block %+v", block)
	}
	first := block.Transactions[0]
	if first.Hash != "0xaa" || first.Value.String() != "1000000000000000000" || first.Nonce != 7 || len(first.Input) != 4 {
		t.Errorf("unexpected transaction %+v", first)
	}
	if first.BlockNumber != 100 || first.Chain != domain.ChainEthereum {
		t.Errorf("expected block 100 on eth, got %d on %s", first.BlockNumber, first.Chain)
	}
	if block.Transactions[1].To != "" {
		t.Errorf("expected contract creation to have empty recipient")
	}
}

func TestBlockNotFound(t *testing.T) {
	server, _ := newRPCServer(t, map[string]string{"eth_getBlockByNumber": `null`})
	_, err := newTestClient(t, server.URL).Block(context.Background(), 1)
	if !errors.Is(err, domain.ErrBlockNotFound) {
		t.Errorf("expected ErrBlockNotFound, got %v", err)
	}
}

func TestReceiptDecodesLogs(t *testing.T) {
	topic := common.HexToHash("0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef")
	server, _ := newRPCServer(t, map[string]string{"eth_getTransactionReceipt": `{
		"status":"0x0",
		"logs":[{"address":"0xAAAA000000000000000000000000000000000000","topics":["` + topic.Hex() + `"],"data":"0x01","logIndex":"0x3"}]}`})
	receipt, err := newTestClient(t, server.URL).Receipt(context.Background(), domain.Transaction{Hash: "0xaa"})
	if err != nil {
		t.Fatalf("receipt: %v", err)
	}
	if receipt.Succeeded() {
		t.Errorf("expected failed receipt")
	}
	if len(receipt.Logs) != 1 || receipt.Logs[0].Index != 3 || receipt.Logs[0].Topics[0] != topic {
		t.Errorf("unexpected logs %+v", receipt.Logs)
	}
	if receipt.Logs[0].Address != "0xaaaa000000000000000000000000000000000000" {
		t.Errorf("expected lowercase address, got %s", receipt.Logs[0].Address)
	}
}

func TestReceiptStatus(t *testing.T) {
	cases := map[string]struct {
		body    string
		success bool
	}{
		"success":       {`{"status":"0x1","logs":[]}`, true},
		"reverted":      {`{"status":"0x0","logs":[]}`, false},
		"pre-byzantium": {`{"root":"0x` + strings.Repeat("ab", 32) + `","logs":[]}`, false},
	}
	for name, tc := range cases {
		server, _ := newRPCServer(t, map[string]string{"eth_getTransactionReceipt": tc.body})
		receipt, err := newTestClient(t, server.URL).Receipt(context.Background(), domain.Transaction{Hash: "0xbb"})
		if err != nil {
			t.Fatalf("%s: receipt: %v", name, err)
		}
		if receipt.Succeeded() != tc.success {
			t.Errorf("%s: expected success=%v", name, tc.success)
		}
	}
}

func TestAccount(t *testing.T) {
	server, _ := newRPCServer(t, map[string]string{
		"eth_getBalance":          `"0x2a"`,
		"eth_getTransactionCount": `"0x5"`,
		"eth_getCode":             `"0x6080"`,
	})
	account, err := newTestClient(t, server.URL).Account(context.Background(), "0x1")
	if err != nil {
		t.Fatalf("account: %v", err)
	}
	if account.Balance.Int64() != 42 || account.Nonce != 5 || !account.IsContract {
		t.Errorf("unexpected account %+v", account)
	}
}

func TestTokenMetadata(t *testing.T) {
	decimals := `"0x` + common.Bytes2Hex(common.LeftPadBytes([]byte{6}, 32)) + `"`
	server, _ := newRPCServer(t, map[string]string{"eth_call": decimals})
	got, err := newTestClient(t, server.URL).TokenDecimals(context.Background(), "0xtoken")
	if err != nil {
		t.Fatalf("decimals: %v", err)
	}
	if got != 6 {
		t.Errorf("expected 6, got %d", got)
	}
}

func TestRetriesServerErrors(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":"0x1"}`))
	}))
	defer server.Close()

	height, err := newTestClient(t, server.URL).LatestHeight(context.Background())
	if err != nil {
		t.Fatalf("latest height: %v", err)
	}
	if height != 1 || hits.Load() != 2 {
		t.Errorf("expected height 1 after 2 hits, got %d after %d", height, hits.Load())
	}
}

func TestDoesNotRetryDecodeFailures(t *testing.T) {
	server, hits := newRPCServer(t, map[string]string{"eth_blockNumber": `{"not":"hex"}`})
	if _, err := newTestClient(t, server.URL).LatestHeight(context.Background()); err == nil {
		t.Fatalf("expected decode error")
	}
	if hits.Load() != 1 {
		t.Errorf("expected a single attempt, got %d", hits.Load())
	}
}

func TestDoesNotRetryReverts(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":3,"message":"execution reverted"}}`))
	}))
	defer server.Close()

	if _, err := newTestClient(t, server.URL).TokenName(context.Background(), "0xtoken"); err == nil {
		t.Fatalf("expected revert error")
	}
	if hits.Load() != 1 {
		t.Errorf("expected a single attempt, got %d", hits.Load())
	}
}
