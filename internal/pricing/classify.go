package pricing

import (
	"math"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"tagScope/internal/contracts"
	"tagScope/internal/model"
)

// CurveToken is a bonding-curve token ready for the two-round protocol.
type CurveToken struct {
	Key     string
	Address common.Address
	Version int
}

// ImportToken is an imported token priced from a known pair.
type ImportToken struct {
	Key     string
	Address common.Address
	Pair    common.Address
}

// SupplyToken is any token whose total supply is read directly.
type SupplyToken struct {
	Key     string
	Address common.Address
}

// Worklists are the two disjoint pricing strategies.
type Worklists struct {
	BondingCurve []CurveToken
	Imported     []ImportToken
}

// Empty reports whether there is nothing to price.
func (w Worklists) Empty() bool {
	return len(w.BondingCurve) == 0 && len(w.Imported) == 0
}

// ClampVersion maps a raw version onto the pool table: floor it, fall back to
// the default when absent or not finite, then clamp into [MinVersion, MaxVersion].
func ClampVersion(v model.Version) int {
	if !v.Valid || math.IsNaN(v.Value) || math.IsInf(v.Value, 0) {
		return contracts.DefaultVersion
	}
	f := math.Floor(v.Value)
	if f < contracts.MinVersion {
		return contracts.MinVersion
	}
	if f > contracts.MaxVersion {
		return contracts.MaxVersion
	}
	return int(f)
}

// Classify partitions descriptors into the bonding-curve and imported worklists.
// Descriptors without a valid address, and imported ones without a valid pair,
// are dropped; an address that is not 20-byte hex counts as missing.
// Repeated addresses keep their first occurrence.
func Classify(descs []model.TokenDescriptor) Worklists {
	var out Worklists
	seen := make(map[string]struct{}, len(descs))
	for _, d := range descs {
		addr, ok := parseAddress(d.Address)
		if !ok {
			continue
		}
		key := addressKey(addr)
		if _, dup := seen[key]; dup {
			continue
		}
		if d.IsImport {
			pair, ok := parseAddress(d.PairAddress)
			if !ok {
				continue
			}
			seen[key] = struct{}{}
			out.Imported = append(out.Imported, ImportToken{Key: key, Address: addr, Pair: pair})
			continue
		}
		seen[key] = struct{}{}
		out.BondingCurve = append(out.BondingCurve, CurveToken{Key: key, Address: addr, Version: ClampVersion(d.Version)})
	}
	return out
}

// ClassifySupplyTokens returns every descriptor with a valid address, whatever
// its kind. Imported tokens without a pair still have a readable supply.
func ClassifySupplyTokens(descs []model.TokenDescriptor) []SupplyToken {
	var out []SupplyToken
	seen := make(map[string]struct{}, len(descs))
	for _, d := range descs {
		addr, ok := parseAddress(d.Address)
		if !ok {
			continue
		}
		key := addressKey(addr)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, SupplyToken{Key: key, Address: addr})
	}
	return out
}

func parseAddress(raw string) (common.Address, bool) {
	raw = strings.TrimSpace(raw)
	if !common.IsHexAddress(raw) {
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}

func addressKey(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}
