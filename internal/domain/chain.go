package domain

import (
	"fmt"
	"strings"
)

// Chain identifies one of the supported networks.
type Chain string

const (
	ChainEthereum Chain = "eth"
	ChainBSC      Chain = "bsc"
	ChainBitcoin  Chain = "btc"
	ChainTron     Chain = "tron"
)

func ParseChain(raw string) (Chain, error) {
	switch Chain(strings.ToLower(strings.TrimSpace(raw))) {
	case ChainEthereum:
		return ChainEthereum, nil
	case ChainBSC:
		return ChainBSC, nil
	case ChainBitcoin:
		return ChainBitcoin, nil
	case ChainTron:
		return ChainTron, nil
	default:
		return "", fmt.Errorf("unknown chain %q", raw)
	}
}

func (c Chain) String() string {
	return string(c)
}

// SafetyLag is the distance behind the tip a live sync starts from.
func (c Chain) SafetyLag() uint64 {
	switch c {
	case ChainEthereum, ChainBSC:
		return 10
	case ChainTron:
		return 20
	default:
		return 0
	}
}

func (c Chain) IsUTXO() bool {
	return c == ChainBitcoin
}

func (c Chain) IsEVM() bool {
	return c == ChainEthereum || c == ChainBSC
}

// NativeDecimals is the number of decimals of the chain's base unit.
func (c Chain) NativeDecimals() int {
	switch c {
	case ChainBitcoin:
		return 8
	case ChainTron:
		return 6
	default:
		return 18
	}
}
