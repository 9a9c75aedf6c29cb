package classify

import (
	"math/big"
	"sort"

	"chainsync/internal/domain"
)

// flows accumulates what one party sent and received per asset.
type flows struct {
	sent     map[domain.Asset]*big.Int
	received map[domain.Asset]*big.Int
}

func newFlows() flows {
	return flows{
		sent:     make(map[domain.Asset]*big.Int),
		received: make(map[domain.Asset]*big.Int),
	}
}

func (f flows) send(asset domain.Asset, amount *big.Int) {
	accumulate(f.sent, asset, amount)
}

func (f flows) receive(asset domain.Asset, amount *big.Int) {
	accumulate(f.received, asset, amount)
}

func accumulate(side map[domain.Asset]*big.Int, asset domain.Asset, amount *big.Int) {
	total, ok := side[asset]
	if !ok {
		total = new(big.Int)
		side[asset] = total
	}
	if amount != nil {
		total.Add(total, amount)
	}
}

// net subtracts received from sent per asset; assets that cancel out are dropped.
func (f flows) net() (sent, received map[domain.Asset]*big.Int) {
	sent = make(map[domain.Asset]*big.Int)
	received = make(map[domain.Asset]*big.Int)
	for asset, out := range f.sent {
		in := f.received[asset]
		if in == nil {
			in = new(big.Int)
		}
		if diff := new(big.Int).Sub(out, in); diff.Sign() > 0 {
			sent[asset] = diff
		}
	}
	for asset, in := range f.received {
		out := f.sent[asset]
		if out == nil {
			out = new(big.Int)
		}
		if diff := new(big.Int).Sub(in, out); diff.Sign() > 0 {
			received[asset] = diff
		}
	}
	return sent, received
}

// tokenFlows collects the ERC20 legs touching user, without netting.
func tokenFlows(transfers []transfer, user string) flows {
	f := newFlows()
	for _, t := range transfers {
		if t.from == user {
			f.send(domain.TokenAsset(t.token), t.amount)
		}
		if t.to == user {
			f.receive(domain.TokenAsset(t.token), t.amount)
		}
	}
	return f
}

// balanceDeltas adds native value and wrap/unwrap legs to the token flows of user.
func balanceDeltas(tx domain.Transaction, receipt domain.Receipt, user string) flows {
	f := newFlows()
	if tx.HasValue() {
		f.send(domain.NativeAsset(), tx.Value)
	}
	for _, log := range receipt.Logs {
		topic0, ok := log.Topic0()
		if !ok {
			continue
		}
		switch {
		case topic0 == transferEvent && len(log.Topics) == 3:
			from := topicAddress(log.Topics[1])
			to := topicAddress(log.Topics[2])
			token := domain.TokenAsset(log.Address)
			amount := wordAmount(log.Data)
			if from == user {
				f.send(token, amount)
			}
			if to == user {
				f.receive(token, amount)
			}
		case topic0 == unwrapEvent:
			f.receive(domain.NativeAsset(), wordAmount(log.Data))
		case topic0 == wrapEvent:
			f.send(domain.NativeAsset(), wordAmount(log.Data))
		}
	}
	return f
}

// hasDistinctLegs reports whether both sides are populated and some sent asset
// differs from some received asset.
func hasDistinctLegs(sent, received map[domain.Asset]*big.Int) bool {
	if len(sent) == 0 || len(received) == 0 {
		return false
	}
	for s := range sent {
		for r := range received {
			if s != r {
				return true
			}
		}
	}
	return false
}

// sortedAmounts orders legs with the native asset first, then by token address.
func sortedAmounts(side map[domain.Asset]*big.Int) []domain.AssetAmount {
	out := make([]domain.AssetAmount, 0, len(side))
	for asset, amount := range side {
		out = append(out, domain.AssetAmount{Asset: asset, Amount: new(big.Int).Set(amount)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Asset.Native != out[j].Asset.Native {
			return out[i].Asset.Native
		}
		return out[i].Asset.Token < out[j].Asset.Token
	})
	return out
}
