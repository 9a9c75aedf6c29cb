package clickhouse

import (
	"time"

	"chainsync/internal/domain"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS transactions (
		chain LowCardinality(String),
		tx_hash String,
		block_number UInt64,
		from_addr String,
		to_addr String,
		value String,
		sensitivity UInt8,
		category LowCardinality(String),
		details String,
		inserted_at DateTime64(3)
	) ENGINE = ReplacingMergeTree(inserted_at)
	ORDER BY (chain, tx_hash)`,
	`CREATE TABLE IF NOT EXISTS token_transfers (
		chain LowCardinality(String),
		tx_hash String,
		block_number UInt64,
		log_index UInt32,
		token_address String,
		from_addr String,
		to_addr String,
		amount String
	) ENGINE = ReplacingMergeTree
	ORDER BY (chain, tx_hash, log_index)`,
	`CREATE TABLE IF NOT EXISTS contract_calls (
		chain LowCardinality(String),
		tx_hash String,
		contract_address String,
		method String,
		method_name String,
		category LowCardinality(String)
	) ENGINE = ReplacingMergeTree
	ORDER BY (chain, tx_hash)`,
	`CREATE TABLE IF NOT EXISTS money_flows (
		chain LowCardinality(String),
		tx_hash String,
		from_addr String,
		to_addr String,
		amount String,
		asset String
	) ENGINE = ReplacingMergeTree
	ORDER BY (chain, tx_hash, asset, from_addr, to_addr)`,
	`CREATE TABLE IF NOT EXISTS wallet_info (
		chain LowCardinality(String),
		address String,
		balance String,
		nonce UInt64,
		wallet_type LowCardinality(String),
		person_id String,
		updated_at DateTime64(3)
	) ENGINE = ReplacingMergeTree(updated_at)
	ORDER BY (chain, address)`,
	`CREATE TABLE IF NOT EXISTS owner_info (
		chain LowCardinality(String),
		address String,
		person_name String,
		person_id String,
		personal_id String,
		updated_at DateTime64(3)
	) ENGINE = ReplacingMergeTree(updated_at)
	ORDER BY (chain, address)`,
	`CREATE TABLE IF NOT EXISTS token_metadata (
		chain LowCardinality(String),
		token_address String,
		name String,
		symbol String,
		decimals UInt8,
		total_supply String,
		is_verified UInt8,
		updated_at DateTime64(3)
	) ENGINE = ReplacingMergeTree(updated_at)
	ORDER BY (chain, token_address)`,
	`CREATE TABLE IF NOT EXISTS address_tags (
		chain LowCardinality(String),
		address String,
		tag LowCardinality(String),
		updated_at DateTime64(3)
	) ENGINE = ReplacingMergeTree(updated_at)
	ORDER BY (chain, address, tag)`,
	`CREATE TABLE IF NOT EXISTS sync_state (
		chain LowCardinality(String),
		last_synced_block UInt64,
		updated_at DateTime64(3)
	) ENGINE = ReplacingMergeTree(updated_at)
	ORDER BY chain`,
}

const (
	insertTransaction   = `INSERT INTO transactions (chain, tx_hash, block_number, from_addr, to_addr, value, sensitivity, category, details, inserted_at)`
	insertTokenTransfer = `INSERT INTO token_transfers (chain, tx_hash, block_number, log_index, token_address, from_addr, to_addr, amount)`
	insertContractCall  = `INSERT INTO contract_calls (chain, tx_hash, contract_address, method, method_name, category)`
	insertMoneyFlow     = `INSERT INTO money_flows (chain, tx_hash, from_addr, to_addr, amount, asset)`
	insertWallet        = `INSERT INTO wallet_info (chain, address, balance, nonce, wallet_type, person_id, updated_at)`
	insertOwner         = `INSERT INTO owner_info (chain, address, person_name, person_id, personal_id, updated_at)`
	insertTokenMetadata = `INSERT INTO token_metadata (chain, token_address, name, symbol, decimals, total_supply, is_verified, updated_at)`
	insertAddressTag    = `INSERT INTO address_tags (chain, address, tag, updated_at)`
	insertSyncState     = `INSERT INTO sync_state (chain, last_synced_block, updated_at)`
)

// distinctSendersQuery stops reading once limit distinct senders are found.
const distinctSendersQuery = `SELECT count() FROM (
	SELECT DISTINCT from_addr FROM transactions WHERE chain = ? AND to_addr = ? LIMIT ?
)`

func transactionRow(record domain.TransactionRecord, now time.Time) []any {
	details := string(record.Details)
	if details == "" {
		details = "{}"
	}
	return []any{
		record.Chain.String(),
		record.Hash,
		record.BlockNumber,
		record.From,
		record.To,
		record.Value,
		uint8(record.Sensitivity),
		string(record.Category),
		details,
		now,
	}
}

func tokenTransferRow(transfer domain.TokenTransfer) []any {
	return []any{
		transfer.Chain.String(),
		transfer.TxHash,
		transfer.BlockNumber,
		transfer.LogIndex,
		transfer.TokenAddress,
		transfer.From,
		transfer.To,
		transfer.Amount,
	}
}

func contractCallRow(call domain.ContractCall) []any {
	return []any{
		call.Chain.String(),
		call.TxHash,
		call.ContractAddress,
		call.Method,
		call.MethodName,
		string(call.Category),
	}
}

func moneyFlowRow(flow domain.MoneyFlow) []any {
	return []any{
		flow.Chain.String(),
		flow.TxHash,
		flow.From,
		flow.To,
		flow.Amount,
		flow.Asset,
	}
}

func walletRow(wallet domain.Wallet, now time.Time) []any {
	return []any{
		wallet.Chain.String(),
		wallet.Address,
		wallet.Balance,
		wallet.Nonce,
		string(wallet.Type),
		wallet.PersonID,
		now,
	}
}

func ownerRow(owner domain.Owner, now time.Time) []any {
	return []any{
		owner.Chain.String(),
		owner.Address,
		owner.PersonName,
		owner.PersonID,
		owner.PersonalID,
		now,
	}
}

func tokenMetadataRow(metadata domain.TokenMetadata, now time.Time) []any {
	verified := uint8(0)
	if metadata.Verified {
		verified = 1
	}
	return []any{
		metadata.Chain.String(),
		metadata.TokenAddress,
		metadata.Name,
		metadata.Symbol,
		metadata.Decimals,
		metadata.TotalSupply,
		verified,
		now,
	}
}
