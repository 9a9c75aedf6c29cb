package domain

import (
	"errors"
	"math/big"
)

var ErrBlockNotFound = errors.New("block not found")

// Transaction is a chain transaction as delivered by a chain client.
// To is empty for contract creations.
type Transaction struct {
	Chain       Chain
	Hash        string
	BlockNumber uint64
	From        string
	To          string
	Value       *big.Int
	Input       []byte
	Nonce       uint64
}

// Block is the ordered transaction list of one height.
type Block struct {
	Number       uint64
	Hash         string
	Transactions []Transaction
}

func (t Transaction) HasValue() bool {
	return t.Value != nil && t.Value.Sign() > 0
}
