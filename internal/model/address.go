package model

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// AddressKey normalizes a hex address to the lower-cased map key used in price sets.
func AddressKey(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if !common.IsHexAddress(raw) {
		return "", false
	}
	return strings.ToLower(common.HexToAddress(raw).Hex()), true
}
