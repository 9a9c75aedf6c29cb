package classify

import (
	"math/big"
	"strings"

	"chainsync/internal/domain"

	"github.com/ethereum/go-ethereum/common"
)

const zeroAddress = "0x0000000000000000000000000000000000000000"

// transfer is a fungible token Transfer event (three topics).
type transfer struct {
	token  string
	from   string
	to     string
	amount *big.Int
	index  uint32
}

func tokenTransfers(receipt domain.Receipt) []transfer {
	var out []transfer
	for _, log := range receipt.Logs {
		if len(log.Topics) != 3 || log.Topics[0] != transferEvent {
			continue
		}
		out = append(out, transfer{
			token:  normalizeAddress(log.Address),
			from:   topicAddress(log.Topics[1]),
			to:     topicAddress(log.Topics[2]),
			amount: wordAmount(log.Data),
			index:  log.Index,
		})
	}
	return out
}

func hasWrapOrUnwrap(receipt domain.Receipt) bool {
	for _, log := range receipt.Logs {
		topic0, ok := log.Topic0()
		if !ok {
			continue
		}
		if topic0 == wrapEvent || topic0 == unwrapEvent {
			return true
		}
	}
	return false
}

// topicAddress takes the low 20 bytes of an indexed topic.
func topicAddress(topic common.Hash) string {
	return strings.ToLower(common.BytesToAddress(topic.Bytes()).Hex())
}

// wordAmount decodes the first 32-byte word of log data as an unsigned integer.
func wordAmount(data []byte) *big.Int {
	if len(data) > 32 {
		data = data[:32]
	}
	return new(big.Int).SetBytes(data)
}

func normalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}
