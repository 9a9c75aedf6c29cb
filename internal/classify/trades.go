package classify

import (
	"math/big"

	"chainsync/internal/domain"
)

func (e *evaluation) detectSwap() (domain.Swap, bool) {
	sent, received := balanceDeltas(e.tx, e.receipt, e.user).net()
	if !hasDistinctLegs(sent, received) {
		return domain.Swap{}, false
	}
	return domain.Swap{
		User:     e.user,
		Sent:     sortedAmounts(sent),
		Received: sortedAmounts(received),
	}, true
}

func (e *evaluation) detectLiquidity() (domain.LiquidityPool, bool) {
	pool, ok := liquidityShape(tokenFlows(e.transfers, e.user))
	if !ok {
		return domain.LiquidityPool{}, false
	}
	if e.isBridge() {
		return domain.LiquidityPool{}, false
	}
	if swap, ok := e.swap.get(e.detectSwap); ok && !explainsSwap(pool, swap) {
		return domain.LiquidityPool{}, false
	}
	return pool, true
}

// liquidityShape recognises two tokens in for one out (add) or one in for two out (remove).
func liquidityShape(f flows) (domain.LiquidityPool, bool) {
	switch {
	case len(f.received) == 1 && len(f.sent) == 2:
		lp := sortedAmounts(f.received)[0]
		legs := sortedAmounts(f.sent)
		return domain.LiquidityPool{
			Action:   domain.LiquidityAdd,
			Pool:     lp.Asset.Token,
			Token0:   legs[0].Asset.Token,
			Token1:   legs[1].Asset.Token,
			Amount0:  legs[0].Amount,
			Amount1:  legs[1].Amount,
			LPAmount: lp.Amount,
		}, true
	case len(f.sent) == 1 && len(f.received) == 2:
		lp := sortedAmounts(f.sent)[0]
		legs := sortedAmounts(f.received)
		return domain.LiquidityPool{
			Action:   domain.LiquidityRemove,
			Pool:     lp.Asset.Token,
			Token0:   legs[0].Asset.Token,
			Token1:   legs[1].Asset.Token,
			Amount0:  legs[0].Amount,
			Amount1:  legs[1].Amount,
			LPAmount: lp.Amount,
		}, true
	default:
		return domain.LiquidityPool{}, false
	}
}

// explainsSwap is true when every netted swap leg is one of the pool's token legs,
// i.e. the balance change is the liquidity operation itself.
func explainsSwap(pool domain.LiquidityPool, swap domain.Swap) bool {
	var in, out map[string]bool
	switch pool.Action {
	case domain.LiquidityAdd:
		out = map[string]bool{pool.Token0: true, pool.Token1: true}
		in = map[string]bool{pool.Pool: true}
	default:
		out = map[string]bool{pool.Pool: true}
		in = map[string]bool{pool.Token0: true, pool.Token1: true}
	}
	for _, leg := range swap.Sent {
		if leg.Asset.Native || !out[leg.Asset.Token] {
			return false
		}
	}
	for _, leg := range swap.Received {
		if leg.Asset.Native || !in[leg.Asset.Token] {
			return false
		}
	}
	return true
}

// detectBridge looks at the first bridge event only and requires value to have
// moved from the sender into its emitter.
func (e *evaluation) detectBridge() (domain.Bridge, bool) {
	var (
		contract  string
		signature string
		found     bool
	)
	for _, log := range e.receipt.Logs {
		topic0, ok := log.Topic0()
		if !ok {
			continue
		}
		if sig, known := bridgeEvents[topic0]; known {
			contract = normalizeAddress(log.Address)
			signature = sig
			found = true
			break
		}
	}
	if !found {
		return domain.Bridge{}, false
	}
	bridge := domain.Bridge{User: e.user, Contract: contract, Event: signature}
	for _, t := range e.transfers {
		if t.from == e.user && t.to == contract {
			bridge.Asset = domain.TokenAsset(t.token)
			bridge.Amount = t.amount
			return bridge, true
		}
	}
	if e.tx.HasValue() && e.target == contract {
		bridge.Asset = domain.NativeAsset()
		bridge.Amount = new(big.Int).Set(e.tx.Value)
		return bridge, true
	}
	return domain.Bridge{}, false
}
