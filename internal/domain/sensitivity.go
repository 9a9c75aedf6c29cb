package domain

import "math/big"

// ScoreSensitivity grades a native value by whole-coin thresholds that differ per chain.
func ScoreSensitivity(chain Chain, value *big.Int) Sensitivity {
	if value == nil || value.Sign() <= 0 {
		return SensitivityGreen
	}
	yellow, red := sensitivityThresholds(chain)
	unit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(chain.NativeDecimals())), nil)
	switch {
	case value.Cmp(new(big.Int).Mul(big.NewInt(red), unit)) > 0:
		return SensitivityRed
	case value.Cmp(new(big.Int).Mul(big.NewInt(yellow), unit)) > 0:
		return SensitivityYellow
	default:
		return SensitivityGreen
	}
}

func sensitivityThresholds(chain Chain) (yellow, red int64) {
	switch chain {
	case ChainBitcoin:
		return 10, 100
	case ChainTron:
		return 10_000, 100_000
	default:
		return 100, 1000
	}
}
