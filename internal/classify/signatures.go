package classify

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// Selector is the leading four bytes of a method signature hash.
type Selector [4]byte

func (s Selector) Hex() string {
	return hexutil.Encode(s[:])
}

var (
	transferEvent       = EventID("Transfer(address,address,uint256)")
	approvalEvent       = EventID("Approval(address,address,uint256)")
	wrapEvent           = EventID("Deposit(address,uint256)")
	unwrapEvent         = EventID("Withdrawal(address,uint256)")
	transferSingleEvent = EventID("TransferSingle(address,address,address,uint256,uint256)")
	transferBatchEvent  = EventID("TransferBatch(address,address,address,uint256[],uint256[])")
)

var bridgeEvents = eventTable(
	"Deposit(address,uint256)",
	"Deposit(address,address,uint256)",
	"Send(address,uint256,uint64)",
	"Locked(address,uint256)",
	"MessageSent(bytes)",
)

var (
	stakeSelectors = selectorTable(
		"stake(uint256)",
		"deposit(uint256)",
		"deposit(address,uint256,address,uint16)",
		"submit(address)",
		"lock(uint256)",
	)
	withdrawSelectors = selectorTable(
		"withdraw(uint256)",
		"withdraw(address,uint256)",
		"unstake(uint256)",
		"redeem(uint256)",
		"exit()",
	)
	depositSelectors = selectorTable(
		"deposit(uint256)",
		"deposit(address,uint256)",
		"deposit(address,uint256,address)",
		"supply(address,uint256,address,uint16)",
		"mint(uint256)",
	)
)

// knownMethods names the selectors recorded on contract-call rows.
var knownMethods = mergeTables(
	stakeSelectors,
	withdrawSelectors,
	depositSelectors,
	selectorTable(
		"transfer(address,uint256)",
		"transferFrom(address,address,uint256)",
		"approve(address,uint256)",
		"safeTransferFrom(address,address,uint256)",
		"safeTransferFrom(address,address,uint256,bytes)",
		"setApprovalForAll(address,bool)",
		"swapExactTokensForTokens(uint256,uint256,address[],address,uint256)",
		"swapTokensForExactTokens(uint256,uint256,address[],address,uint256)",
		"swapExactETHForTokens(uint256,address[],address,uint256)",
		"swapExactTokensForETH(uint256,uint256,address[],address,uint256)",
		"addLiquidity(address,address,uint256,uint256,uint256,uint256,address,uint256)",
		"addLiquidityETH(address,uint256,uint256,uint256,address,uint256)",
		"removeLiquidity(address,address,uint256,uint256,uint256,address,uint256)",
		"removeLiquidityETH(address,uint256,uint256,uint256,address,uint256)",
		"multicall(bytes[])",
		"execute(bytes,bytes[],uint256)",
		"deposit()",
		"withdraw()",
	),
)

// EventID is the topic0 of an event with the given canonical signature.
func EventID(signature string) common.Hash {
	return crypto.Keccak256Hash([]byte(signature))
}

// SelectorOf returns the method selector of a canonical signature.
func SelectorOf(signature string) Selector {
	var s Selector
	copy(s[:], crypto.Keccak256([]byte(signature))[:4])
	return s
}

// MethodSelector extracts the selector from call data.
func MethodSelector(input []byte) (Selector, bool) {
	var s Selector
	if len(input) < 4 {
		return s, false
	}
	copy(s[:], input[:4])
	return s, true
}

// MethodName resolves a selector to its canonical signature when it is known.
func MethodName(s Selector) (string, bool) {
	name, ok := knownMethods[s]
	return name, ok
}

func hasSelector(input []byte, table map[Selector]string) bool {
	s, ok := MethodSelector(input)
	if !ok {
		return false
	}
	_, ok = table[s]
	return ok
}

func selectorTable(signatures ...string) map[Selector]string {
	table := make(map[Selector]string, len(signatures))
	for _, sig := range signatures {
		table[SelectorOf(sig)] = sig
	}
	return table
}

func eventTable(signatures ...string) map[common.Hash]string {
	table := make(map[common.Hash]string, len(signatures))
	for _, sig := range signatures {
		table[EventID(sig)] = sig
	}
	return table
}

func mergeTables(tables ...map[Selector]string) map[Selector]string {
	merged := make(map[Selector]string)
	for _, table := range tables {
		for selector, sig := range table {
			if _, ok := merged[selector]; !ok {
				merged[selector] = sig
			}
		}
	}
	return merged
}
