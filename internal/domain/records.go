package domain

import (
	"encoding/json"
	"math/big"
	"time"
)

// Sensitivity scores how large a native value movement is. Lower is more sensitive.
type Sensitivity uint8

const (
	SensitivityRed    Sensitivity = 1
	SensitivityYellow Sensitivity = 2
	SensitivityGreen  Sensitivity = 3
)

// TransactionRecord is the persisted, classified form of a transaction.
type TransactionRecord struct {
	Chain       Chain
	Hash        string
	BlockNumber uint64
	From        string
	To          string
	Value       string
	Sensitivity Sensitivity
	Category    Kind
	Details     json.RawMessage
}

type WalletType string

const (
	WalletTypeWallet        WalletType = "wallet"
	WalletTypeExchange      WalletType = "exchange"
	WalletTypeSmartContract WalletType = "smart_contract"
)

// Account is the on-chain state of an address at the time it was seen.
type Account struct {
	Address    string
	Balance    *big.Int
	Nonce      uint64
	IsContract bool
}

type Wallet struct {
	Chain    Chain
	Address  string
	Balance  string
	Nonce    uint64
	Type     WalletType
	PersonID string
}

// Owner links an address to the person or entity that controls it.
type Owner struct {
	Chain      Chain
	Address    string
	PersonName string
	PersonID   string
	PersonalID string
}

type TokenTransfer struct {
	Chain        Chain
	TxHash       string
	BlockNumber  uint64
	LogIndex     uint32
	TokenAddress string
	From         string
	To           string
	Amount       string
}

type TokenMetadata struct {
	Chain        Chain
	TokenAddress string
	Name         string
	Symbol       string
	Decimals     uint8
	TotalSupply  string
	Verified     bool
}

type ContractCall struct {
	Chain           Chain
	TxHash          string
	ContractAddress string
	Method          string
	MethodName      string
	Category        Kind
}

type MoneyFlow struct {
	Chain  Chain
	TxHash string
	From   string
	To     string
	Amount string
	Asset  string
}

// SyncState is the durable checkpoint of a chain.
type SyncState struct {
	Chain           Chain
	LastSyncedBlock uint64
	UpdatedAt       time.Time
}
