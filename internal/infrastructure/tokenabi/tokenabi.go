// Package tokenabi encodes and decodes the read-only ERC20/TRC20 metadata calls.
package tokenabi

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const (
	MethodName        = "name"
	MethodSymbol      = "symbol"
	MethodDecimals    = "decimals"
	MethodTotalSupply = "totalSupply"
)

const erc20JSON = `[
	{"constant":true,"inputs":[],"name":"name","outputs":[{"name":"","type":"string"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"string"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"totalSupply","outputs":[{"name":"","type":"uint256"}],"type":"function"}
]`

var erc20 = mustParse(erc20JSON)

func mustParse(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("parse erc20 abi: %v", err))
	}
	return parsed
}

var ErrEmptyResult = errors.New("empty call result")

// Pack returns the calldata for a metadata method.
func Pack(method string) ([]byte, error) {
	return erc20.Pack(method)
}

// Signature returns the canonical signature of a metadata method, e.g. "name()".
func Signature(method string) (string, error) {
	m, ok := erc20.Methods[method]
	if !ok {
		return "", fmt.Errorf("unknown method %q", method)
	}
	return m.Sig, nil
}

// String decodes a name or symbol result. Tokens that return bytes32 instead
// of a dynamic string are accepted.
func String(method string, output []byte) (string, error) {
	if len(output) == 0 {
		return "", ErrEmptyResult
	}
	values, err := erc20.Unpack(method, output)
	if err == nil && len(values) == 1 {
		if s, ok := values[0].(string); ok {
			return s, nil
		}
	}
	if len(output) == 32 {
		return string(bytes.TrimRight(output, "\x00")), nil
	}
	if err == nil {
		err = fmt.Errorf("unexpected %s output", method)
	}
	return "", err
}

func Decimals(output []byte) (uint8, error) {
	if len(output) == 0 {
		return 0, ErrEmptyResult
	}
	values, err := erc20.Unpack(MethodDecimals, output)
	if err != nil {
		return 0, err
	}
	decimals, ok := values[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("unexpected decimals type %T", values[0])
	}
	return decimals, nil
}

func TotalSupply(output []byte) (*big.Int, error) {
	if len(output) == 0 {
		return nil, ErrEmptyResult
	}
	values, err := erc20.Unpack(MethodTotalSupply, output)
	if err != nil {
		return nil, err
	}
	supply, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected totalSupply type %T", values[0])
	}
	return supply, nil
}
