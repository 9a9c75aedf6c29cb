// Package classify derives the semantic category of a transaction from its
// call data, native value and receipt logs.
package classify

import (
	"strings"

	"chainsync/internal/domain"
)

// Classify maps a transaction and its receipt to exactly one category.
// Predicates are evaluated in precedence order and the first match wins.
func Classify(tx domain.Transaction, receipt domain.Receipt) domain.Category {
	if !receipt.Succeeded() {
		return domain.Failed{}
	}
	e := newEvaluation(tx, receipt)
	if c, ok := e.approve(); ok {
		return c
	}
	if c, ok := e.nft.get(e.detectNFT); ok {
		return c
	}
	if c, ok := e.liquidity.get(e.detectLiquidity); ok {
		return c
	}
	if c, ok := e.swap.get(e.detectSwap); ok {
		return c
	}
	if c, ok := e.stake.get(e.detectStake); ok {
		return c
	}
	if c, ok := e.withdraw.get(e.detectWithdraw); ok {
		return c
	}
	if c, ok := e.deposit.get(e.detectDeposit); ok {
		return c
	}
	if c, ok := e.bridge.get(e.detectBridge); ok {
		return c
	}
	if c, ok := e.erc20Transfer(); ok {
		return c
	}
	if c, ok := e.nativeTransfer(); ok {
		return c
	}
	return domain.Other{}
}

// memo caches one predicate result so exclusions never re-run a detector.
type memo[T any] struct {
	done  bool
	value T
	ok    bool
}

func (m *memo[T]) get(detect func() (T, bool)) (T, bool) {
	if !m.done {
		m.value, m.ok = detect()
		m.done = true
	}
	return m.value, m.ok
}

type evaluation struct {
	tx        domain.Transaction
	receipt   domain.Receipt
	user      string
	target    string
	transfers []transfer

	nft       memo[domain.NftTransfer]
	liquidity memo[domain.LiquidityPool]
	swap      memo[domain.Swap]
	stake     memo[domain.Stake]
	withdraw  memo[domain.Withdraw]
	deposit   memo[domain.Deposit]
	bridge    memo[domain.Bridge]
}

func newEvaluation(tx domain.Transaction, receipt domain.Receipt) *evaluation {
	return &evaluation{
		tx:        tx,
		receipt:   receipt,
		user:      normalizeAddress(tx.From),
		target:    normalizeAddress(tx.To),
		transfers: tokenTransfers(receipt),
	}
}

func (e *evaluation) isNFT() bool {
	_, ok := e.nft.get(e.detectNFT)
	return ok
}

func (e *evaluation) isLiquidity() bool {
	_, ok := e.liquidity.get(e.detectLiquidity)
	return ok
}

func (e *evaluation) isSwap() bool {
	_, ok := e.swap.get(e.detectSwap)
	return ok
}

func (e *evaluation) isBridge() bool {
	_, ok := e.bridge.get(e.detectBridge)
	return ok
}

func (e *evaluation) isStake() bool {
	_, ok := e.stake.get(e.detectStake)
	return ok
}

func (e *evaluation) isWithdraw() bool {
	_, ok := e.withdraw.get(e.detectWithdraw)
	return ok
}

func (e *evaluation) isDeposit() bool {
	_, ok := e.deposit.get(e.detectDeposit)
	return ok
}

// approve matches a single standalone allowance grant by the sender.
func (e *evaluation) approve() (domain.Approve, bool) {
	var grants []domain.Approve
	for _, log := range e.receipt.Logs {
		if len(log.Topics) != 3 || log.Topics[0] != approvalEvent {
			continue
		}
		owner := topicAddress(log.Topics[1])
		if owner != e.user {
			continue
		}
		grants = append(grants, domain.Approve{
			Token:   normalizeAddress(log.Address),
			Owner:   owner,
			Spender: topicAddress(log.Topics[2]),
			Amount:  wordAmount(log.Data),
		})
	}
	if len(grants) != 1 {
		return domain.Approve{}, false
	}
	grant := grants[0]
	for _, t := range e.transfers {
		if t.token == grant.Token && t.from == e.user {
			return domain.Approve{}, false
		}
	}
	if e.isNFT() || e.isLiquidity() || e.isSwap() || e.isStake() || e.isWithdraw() || e.isDeposit() || e.isBridge() {
		return domain.Approve{}, false
	}
	return grant, true
}

func (e *evaluation) detectNFT() (domain.NftTransfer, bool) {
	for _, log := range e.receipt.Logs {
		topic0, ok := log.Topic0()
		if !ok {
			continue
		}
		switch {
		case topic0 == transferEvent && len(log.Topics) == 4:
			return domain.NftTransfer{
				Contract: normalizeAddress(log.Address),
				Standard: "erc721",
				From:     topicAddress(log.Topics[1]),
				To:       topicAddress(log.Topics[2]),
			}, true
		case topic0 == transferSingleEvent || topic0 == transferBatchEvent:
			nft := domain.NftTransfer{
				Contract: normalizeAddress(log.Address),
				Standard: "erc1155",
			}
			if len(log.Topics) >= 4 {
				nft.From = topicAddress(log.Topics[2])
				nft.To = topicAddress(log.Topics[3])
			}
			return nft, true
		}
	}
	return domain.NftTransfer{}, false
}

func (e *evaluation) erc20Transfer() (domain.Erc20Transfer, bool) {
	var qualifying []transfer
	for _, t := range e.transfers {
		if t.from == zeroAddress || t.to == zeroAddress {
			continue
		}
		qualifying = append(qualifying, t)
	}
	if len(qualifying) != 1 {
		return domain.Erc20Transfer{}, false
	}
	t := qualifying[0]
	if t.from != e.user && t.to != e.user {
		return domain.Erc20Transfer{}, false
	}
	if e.tx.HasValue() {
		return domain.Erc20Transfer{}, false
	}
	return domain.Erc20Transfer{Token: t.token, From: t.from, To: t.to, Amount: t.amount}, true
}

func (e *evaluation) nativeTransfer() (domain.NativeTransfer, bool) {
	if !e.tx.HasValue() || strings.TrimSpace(e.tx.To) == "" {
		return domain.NativeTransfer{}, false
	}
	if hasWrapOrUnwrap(e.receipt) {
		return domain.NativeTransfer{}, false
	}
	return domain.NativeTransfer{From: e.tx.From, To: e.tx.To, Amount: e.tx.Value}, true
}
