package streaming

import (
	"encoding/json"
	"testing"
)

func TestEncodeRejectsIncompleteMessages(t *testing.T) {
	cases := map[string]Message{
		"missing type":    {Chain: "eth"},
		"missing chain":   {Type: MessageTypeCheckpoint, BlockNumber: 1},
		"missing tx hash": {Type: MessageTypeTransaction, Chain: "eth"},
		"unknown type":    {Type: "reorg", Chain: "eth"},
	}
	for name, msg := range cases {
		if _, err := Encode(msg); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestDecodeTransaction(t *testing.T) {
	payload, err := Encode(Message{
		Type:        MessageTypeTransaction,
		Chain:       "bsc",
		BlockNumber: 42,
		TxHash:      "0xabc",
		Category:    "swap",
		Details:     json.RawMessage(`{"user":"0x1"}`),
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	msg, err := Decode(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.Chain != "bsc" || msg.BlockNumber != 42 || msg.Category != "swap" {
		t.Errorf("unexpected message %+v", msg)
	}
	if string(msg.Details) != `{"user":"0x1"}` {
		t.Errorf("expected details to survive, got %s", msg.Details)
	}
}

func TestDecodeRejectsMissingChain(t *testing.T) {
	if _, err := Decode([]byte(`{"type":"checkpoint","block_number":5}`)); err == nil {
		t.Errorf("expected error for missing chain")
	}
}
