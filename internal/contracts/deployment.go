package contracts

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

const (
	// MinVersion and MaxVersion bound the bonding-curve pool table.
	MinVersion = 1
	MaxVersion = 6
	// DefaultVersion is used when a descriptor carries no usable version.
	DefaultVersion = 2
)

// bscPools are the BSC mainnet pool contracts, indexed by version-1.
var bscPools = [MaxVersion]string{
	"0xa77253Ac630502A35A6FcD210A01f613D33ba7cD",
	"0x3DC52C69C3C8be568372E16d50E9F3FEc796610c",
	"0xc9FaA3c05a5178C380d9C28Edffa38d90D606F22",
	"0x0476571a77Cc8Fc28796935Cf173c265F2021448",
	"0x2cAbfDE43f93422fFb070f0Fa03d2951dbBC7749",
	"0x201308B193bC0Aa81Ac540A7D3B3ADb530a39861",
}

const (
	bscWrappedNative = "0xbb4CdB9CBd36B01bD1cBaEBF2De08d9173bc095c"
	bscFactory       = "0xcA143Ce32Fe78f1f7019d7d551a6402fC5350c73"
)

// Deployment holds the fixed contract addresses pricing reads from.
type Deployment struct {
	Pools         [MaxVersion]common.Address
	WrappedNative common.Address
	Factory       common.Address
}

// BSCMainnet returns the source deployment on BSC mainnet.
func BSCMainnet() Deployment {
	var d Deployment
	for i, addr := range bscPools {
		d.Pools[i] = common.HexToAddress(addr)
	}
	d.WrappedNative = common.HexToAddress(bscWrappedNative)
	d.Factory = common.HexToAddress(bscFactory)
	return d
}

// WithOverrides replaces addresses with the given hex strings; empty values keep the current address.
func (d Deployment) WithOverrides(pools []string, wrappedNative, factory string) (Deployment, error) {
	if len(pools) > MaxVersion {
		return d, fmt.Errorf("at most %d pool addresses, got %d", MaxVersion, len(pools))
	}
	for i, raw := range pools {
		if raw == "" {
			continue
		}
		if !common.IsHexAddress(raw) {
			return d, fmt.Errorf("invalid pool address for version %d: %s", i+1, raw)
		}
		d.Pools[i] = common.HexToAddress(raw)
	}
	if wrappedNative != "" {
		if !common.IsHexAddress(wrappedNative) {
			return d, fmt.Errorf("invalid wrapped native address: %s", wrappedNative)
		}
		d.WrappedNative = common.HexToAddress(wrappedNative)
	}
	if factory != "" {
		if !common.IsHexAddress(factory) {
			return d, fmt.Errorf("invalid factory address: %s", factory)
		}
		d.Factory = common.HexToAddress(factory)
	}
	return d, nil
}

// VersionPool returns the pool contract for an already clamped version.
func (d Deployment) VersionPool(version int) common.Address {
	return d.Pools[version-MinVersion]
}
