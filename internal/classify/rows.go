package classify

import (
	"encoding/json"
	"fmt"
	"math/big"

	"chainsync/internal/domain"
)

// TokenAddresses lists the distinct token contracts that emitted a fungible
// Transfer event, in log order.
func TokenAddresses(receipt domain.Receipt) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, t := range tokenTransfers(receipt) {
		if _, ok := seen[t.token]; ok {
			continue
		}
		seen[t.token] = struct{}{}
		out = append(out, t.token)
	}
	return out
}

// TokenTransfers converts the fungible Transfer events of a receipt into rows,
// mints and burns included.
func TokenTransfers(tx domain.Transaction, receipt domain.Receipt) []domain.TokenTransfer {
	transfers := tokenTransfers(receipt)
	if len(transfers) == 0 {
		return nil
	}
	rows := make([]domain.TokenTransfer, 0, len(transfers))
	for _, t := range transfers {
		rows = append(rows, domain.TokenTransfer{
			Chain:        tx.Chain,
			TxHash:       tx.Hash,
			BlockNumber:  tx.BlockNumber,
			LogIndex:     t.index,
			TokenAddress: t.token,
			From:         t.from,
			To:           t.to,
			Amount:       t.amount.String(),
		})
	}
	return rows
}

// ContractCall describes the invoked method when the call data carries a selector.
func ContractCall(tx domain.Transaction, category domain.Category) (domain.ContractCall, bool) {
	if tx.To == "" {
		return domain.ContractCall{}, false
	}
	selector, ok := MethodSelector(tx.Input)
	if !ok {
		return domain.ContractCall{}, false
	}
	name, _ := MethodName(selector)
	return domain.ContractCall{
		Chain:           tx.Chain,
		TxHash:          tx.Hash,
		ContractAddress: tx.To,
		Method:          selector.Hex(),
		MethodName:      name,
		Category:        category.Kind(),
	}, true
}

// MoneyFlows derives directed value movements from a category payload.
func MoneyFlows(tx domain.Transaction, category domain.Category) []domain.MoneyFlow {
	var out []domain.MoneyFlow
	add := func(from, to string, asset domain.Asset, amount *big.Int) {
		if amount == nil {
			return
		}
		out = append(out, domain.MoneyFlow{
			Chain:  tx.Chain,
			TxHash: tx.Hash,
			From:   from,
			To:     to,
			Amount: amount.String(),
			Asset:  asset.String(),
		})
	}

	switch c := category.(type) {
	case domain.NativeTransfer:
		add(c.From, c.To, domain.NativeAsset(), c.Amount)
	case domain.Erc20Transfer:
		add(c.From, c.To, domain.TokenAsset(c.Token), c.Amount)
	case domain.Swap:
		counterparty := normalizeAddress(tx.To)
		for _, leg := range c.Sent {
			add(c.User, counterparty, leg.Asset, leg.Amount)
		}
		for _, leg := range c.Received {
			add(counterparty, c.User, leg.Asset, leg.Amount)
		}
	case domain.LiquidityPool:
		user := normalizeAddress(tx.From)
		if c.Action == domain.LiquidityAdd {
			add(user, c.Pool, domain.TokenAsset(c.Token0), c.Amount0)
			add(user, c.Pool, domain.TokenAsset(c.Token1), c.Amount1)
			add(zeroAddress, user, domain.TokenAsset(c.Pool), c.LPAmount)
		} else {
			add(user, c.Pool, domain.TokenAsset(c.Pool), c.LPAmount)
			add(c.Pool, user, domain.TokenAsset(c.Token0), c.Amount0)
			add(c.Pool, user, domain.TokenAsset(c.Token1), c.Amount1)
		}
	case domain.Stake:
		add(c.User, c.Contract, c.Sent.Asset, c.Sent.Amount)
		if c.Received != nil {
			add(zeroAddress, c.User, c.Received.Asset, c.Received.Amount)
		}
	case domain.Deposit:
		add(c.User, c.Contract, c.Deposited.Asset, c.Deposited.Amount)
		if c.Received != nil {
			add(zeroAddress, c.User, c.Received.Asset, c.Received.Amount)
		}
	case domain.Withdraw:
		add(c.Contract, c.User, c.Received.Asset, c.Received.Amount)
		if c.Burned != nil {
			add(c.User, zeroAddress, c.Burned.Asset, c.Burned.Amount)
		}
	case domain.Bridge:
		add(c.User, c.Contract, c.Asset, c.Amount)
	}
	return out
}

// Details encodes the variant payload for storage.
func Details(category domain.Category) (json.RawMessage, error) {
	switch category.(type) {
	case domain.Failed, domain.Other:
		return json.RawMessage(`{}`), nil
	}
	payload, err := json.Marshal(category)
	if err != nil {
		return nil, fmt.Errorf("encode %s details: %w", category.Kind(), err)
	}
	return payload, nil
}
