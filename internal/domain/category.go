package domain

import (
	"math/big"
	"strings"
)

// Kind is the stable tag of a category variant.
type Kind string

const (
	KindFailed         Kind = "failed"
	KindApprove        Kind = "approve"
	KindNftTransfer    Kind = "nft_transfer"
	KindLiquidityPool  Kind = "liquidity_pool"
	KindSwap           Kind = "swap"
	KindStake          Kind = "stake"
	KindWithdraw       Kind = "withdraw"
	KindDeposit        Kind = "deposit"
	KindBridge         Kind = "bridge"
	KindErc20Transfer  Kind = "erc20_transfer"
	KindNativeTransfer Kind = "native_transfer"
	KindOther          Kind = "other"
)

// Category is the semantic classification of a transaction.
// The variant set is closed: only types in this package implement it.
type Category interface {
	Kind() Kind
	category()
}

// Asset is either the chain's native coin or a token contract.
type Asset struct {
	Native bool   `json:"native"`
	Token  string `json:"token,omitempty"`
}

func NativeAsset() Asset {
	return Asset{Native: true}
}

func TokenAsset(address string) Asset {
	return Asset{Token: strings.ToLower(address)}
}

func (a Asset) String() string {
	if a.Native {
		return "native"
	}
	return a.Token
}

type AssetAmount struct {
	Asset  Asset    `json:"asset"`
	Amount *big.Int `json:"amount"`
}

type Failed struct{}

type Approve struct {
	Token   string   `json:"token"`
	Owner   string   `json:"owner"`
	Spender string   `json:"spender"`
	Amount  *big.Int `json:"amount"`
}

type NftTransfer struct {
	Contract string `json:"contract"`
	Standard string `json:"standard"`
	From     string `json:"from,omitempty"`
	To       string `json:"to,omitempty"`
}

type LiquidityAction string

const (
	LiquidityAdd    LiquidityAction = "add"
	LiquidityRemove LiquidityAction = "remove"
)

type LiquidityPool struct {
	Action   LiquidityAction `json:"action"`
	Pool     string          `json:"pool"`
	Token0   string          `json:"token0"`
	Token1   string          `json:"token1"`
	Amount0  *big.Int        `json:"amount0"`
	Amount1  *big.Int        `json:"amount1"`
	LPAmount *big.Int        `json:"lp_amount"`
}

type Swap struct {
	User     string        `json:"user"`
	Sent     []AssetAmount `json:"sent"`
	Received []AssetAmount `json:"received"`
}

type Stake struct {
	User     string       `json:"user"`
	Contract string       `json:"contract"`
	Sent     AssetAmount  `json:"sent"`
	Received *AssetAmount `json:"received,omitempty"`
}

type Withdraw struct {
	User     string       `json:"user"`
	Contract string       `json:"contract"`
	Received AssetAmount  `json:"received"`
	Burned   *AssetAmount `json:"burned,omitempty"`
}

type Deposit struct {
	User      string       `json:"user"`
	Contract  string       `json:"contract"`
	Deposited AssetAmount  `json:"deposited"`
	Received  *AssetAmount `json:"received,omitempty"`
}

type Bridge struct {
	User     string   `json:"user"`
	Contract string   `json:"contract"`
	Asset    Asset    `json:"asset"`
	Amount   *big.Int `json:"amount"`
	Event    string   `json:"event"`
}

type Erc20Transfer struct {
	Token  string   `json:"token"`
	From   string   `json:"from"`
	To     string   `json:"to"`
	Amount *big.Int `json:"amount"`
}

type NativeTransfer struct {
	From   string   `json:"from"`
	To     string   `json:"to"`
	Amount *big.Int `json:"amount"`
}

type Other struct{}

func (Failed) Kind() Kind         { return KindFailed }
func (Approve) Kind() Kind        { return KindApprove }
func (NftTransfer) Kind() Kind    { return KindNftTransfer }
func (LiquidityPool) Kind() Kind  { return KindLiquidityPool }
func (Swap) Kind() Kind           { return KindSwap }
func (Stake) Kind() Kind          { return KindStake }
func (Withdraw) Kind() Kind       { return KindWithdraw }
func (Deposit) Kind() Kind        { return KindDeposit }
func (Bridge) Kind() Kind         { return KindBridge }
func (Erc20Transfer) Kind() Kind  { return KindErc20Transfer }
func (NativeTransfer) Kind() Kind { return KindNativeTransfer }
func (Other) Kind() Kind          { return KindOther }

func (Failed) category()         {}
func (Approve) category()        {}
func (NftTransfer) category()    {}
func (LiquidityPool) category()  {}
func (Swap) category()           {}
func (Stake) category()          {}
func (Withdraw) category()       {}
func (Deposit) category()        {}
func (Bridge) category()         {}
func (Erc20Transfer) category()  {}
func (NativeTransfer) category() {}
func (Other) category()          {}
