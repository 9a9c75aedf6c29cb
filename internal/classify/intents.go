package classify

import (
	"math/big"

	"chainsync/internal/domain"
)

// hardExcluded covers the categories that outrank every selector-driven intent.
func (e *evaluation) hardExcluded() bool {
	return e.isSwap() || e.isBridge() || e.isLiquidity() || e.isNFT()
}

func (e *evaluation) detectStake() (domain.Stake, bool) {
	if e.target == "" || !hasSelector(e.tx.Input, stakeSelectors) {
		return domain.Stake{}, false
	}
	if e.hardExcluded() {
		return domain.Stake{}, false
	}
	sent, received, ok := e.inflowToTarget()
	if !ok {
		return domain.Stake{}, false
	}
	return domain.Stake{User: e.user, Contract: e.target, Sent: sent, Received: received}, true
}

func (e *evaluation) detectWithdraw() (domain.Withdraw, bool) {
	if e.target == "" || !hasSelector(e.tx.Input, withdrawSelectors) {
		return domain.Withdraw{}, false
	}
	if e.hardExcluded() {
		return domain.Withdraw{}, false
	}
	received, burned, ok := e.outflowFromTarget()
	if !ok {
		return domain.Withdraw{}, false
	}
	return domain.Withdraw{User: e.user, Contract: e.target, Received: received, Burned: burned}, true
}

func (e *evaluation) detectDeposit() (domain.Deposit, bool) {
	if e.target == "" || !hasSelector(e.tx.Input, depositSelectors) {
		return domain.Deposit{}, false
	}
	if e.hardExcluded() || e.isStake() || e.isWithdraw() {
		return domain.Deposit{}, false
	}
	deposited, received, ok := e.inflowToTarget()
	if !ok {
		return domain.Deposit{}, false
	}
	return domain.Deposit{User: e.user, Contract: e.target, Deposited: deposited, Received: received}, true
}

// inflowToTarget finds value moving from the sender into the called contract,
// plus an optional receipt token minted to the sender.
func (e *evaluation) inflowToTarget() (domain.AssetAmount, *domain.AssetAmount, bool) {
	if e.tx.HasValue() {
		return domain.AssetAmount{Asset: domain.NativeAsset(), Amount: new(big.Int).Set(e.tx.Value)}, nil, true
	}
	var (
		sent     domain.AssetAmount
		found    bool
		received *domain.AssetAmount
	)
	for _, t := range e.transfers {
		if t.from == e.user && t.to == e.target {
			sent = domain.AssetAmount{Asset: domain.TokenAsset(t.token), Amount: t.amount}
			found = true
			continue
		}
		if t.from == zeroAddress && t.to == e.user {
			received = &domain.AssetAmount{Asset: domain.TokenAsset(t.token), Amount: t.amount}
		}
	}
	if !found {
		return domain.AssetAmount{}, nil, false
	}
	return sent, received, true
}

// outflowFromTarget finds value returned by the called contract to the sender,
// plus an optional receipt token burned by the sender.
func (e *evaluation) outflowFromTarget() (domain.AssetAmount, *domain.AssetAmount, bool) {
	var (
		received domain.AssetAmount
		found    bool
		burned   *domain.AssetAmount
	)
	for _, log := range e.receipt.Logs {
		if topic0, ok := log.Topic0(); ok && topic0 == unwrapEvent {
			received = domain.AssetAmount{Asset: domain.NativeAsset(), Amount: wordAmount(log.Data)}
			found = true
		}
	}
	for _, t := range e.transfers {
		if t.from == e.target && t.to == e.user {
			received = domain.AssetAmount{Asset: domain.TokenAsset(t.token), Amount: t.amount}
			found = true
			continue
		}
		if t.from == e.user && t.to == zeroAddress {
			burned = &domain.AssetAmount{Asset: domain.TokenAsset(t.token), Amount: t.amount}
		}
	}
	if !found {
		return domain.AssetAmount{}, nil, false
	}
	return received, burned, true
}
