package domain

import "github.com/ethereum/go-ethereum/common"

type ReceiptStatus uint8

const (
	ReceiptFailed ReceiptStatus = iota
	ReceiptSuccess
)

// Receipt is the execution outcome of a transaction.
type Receipt struct {
	TxHash string
	Status ReceiptStatus
	Logs   []Log
}

// Log is an event emitted during execution.
type Log struct {
	Address string
	Topics  []common.Hash
	Data    []byte
	Index   uint32
}

func (r Receipt) Succeeded() bool {
	return r.Status == ReceiptSuccess
}

// Topic0 returns the event signature topic, if any.
func (l Log) Topic0() (common.Hash, bool) {
	if len(l.Topics) == 0 {
		return common.Hash{}, false
	}
	return l.Topics[0], true
}
