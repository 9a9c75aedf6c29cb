package tronapi

import "strings"

// tronPrefix is the network byte the node prepends to 20-byte account hashes.
const tronPrefix = "41"

// ToHex converts a node address ("41" + 40 hex chars, or bare 40 hex chars)
// into the lowercase 0x form used by the rest of the pipeline.
func ToHex(address string) string {
	address = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(address), "0x"))
	if len(address) == 42 && strings.HasPrefix(address, tronPrefix) {
		address = address[2:]
	}
	if len(address) != 40 {
		return address
	}
	return "0x" + address
}

// FromHex converts a 0x address back to the node's hex form.
func FromHex(address string) string {
	address = strings.ToLower(strings.TrimSpace(address))
	if strings.HasPrefix(address, "0x") && len(address) == 42 {
		return tronPrefix + address[2:]
	}
	return address
}
