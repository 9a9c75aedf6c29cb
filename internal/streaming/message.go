package streaming

import (
	"encoding/json"
	"errors"
)

type MessageType string

const (
	MessageTypeTransaction MessageType = "transaction"
	MessageTypeCheckpoint  MessageType = "checkpoint"
)

// Message is the envelope published for every classified transaction and
// every checkpoint advance.
type Message struct {
	Type        MessageType     `json:"type"`
	Chain       string          `json:"chain"`
	TraceID     string          `json:"trace_id,omitempty"`
	BlockNumber uint64          `json:"block_number"`
	TxHash      string          `json:"tx_hash,omitempty"`
	From        string          `json:"from,omitempty"`
	To          string          `json:"to,omitempty"`
	Value       string          `json:"value,omitempty"`
	Sensitivity uint8           `json:"sensitivity,omitempty"`
	Category    string          `json:"category,omitempty"`
	Details     json.RawMessage `json:"details,omitempty"`
}

func Encode(msg Message) ([]byte, error) {
	if err := validate(msg); err != nil {
		return nil, err
	}
	return json.Marshal(msg)
}

func Decode(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	if err := validate(msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}

func validate(msg Message) error {
	switch msg.Type {
	case MessageTypeTransaction:
		if msg.TxHash == "" {
			return errors.New("tx_hash is required for transaction messages")
		}
	case MessageTypeCheckpoint:
	case "":
		return errors.New("message type is required")
	default:
		return errors.New("unknown message type " + string(msg.Type))
	}
	if msg.Chain == "" {
		return errors.New("chain is required")
	}
	return nil
}
