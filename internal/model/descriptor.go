package model

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// TokenDescriptor identifies a token to price and how to price it.
type TokenDescriptor struct {
	Address     string  `json:"token" yaml:"token"`
	Version     Version `json:"version" yaml:"version"`
	IsImport    bool    `json:"isImport" yaml:"isImport"`
	PairAddress string  `json:"pair,omitempty" yaml:"pair,omitempty"`
}

// Version is an optional, loosely typed curve version as delivered by upstream payloads.
// It accepts a JSON number, a numeric string or null.
type Version struct {
	Value float64
	Valid bool
}

// VersionOf returns a present version.
func VersionOf(v float64) Version {
	return Version{Value: v, Valid: true}
}

// MarshalJSON encodes absent or non-finite versions as null.
func (v Version) MarshalJSON() ([]byte, error) {
	if !v.Valid || math.IsNaN(v.Value) || math.IsInf(v.Value, 0) {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, v.Value, 'f', -1, 64), nil
}

// UnmarshalJSON decodes a number, numeric string or null. Anything else is treated as absent.
func (v *Version) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if strings.HasPrefix(raw, `"`) {
		unquoted, err := strconv.Unquote(raw)
		if err != nil {
			return fmt.Errorf("decode version %s: %w", raw, err)
		}
		raw = unquoted
	}
	*v = parseVersion(raw)
	return nil
}

// UnmarshalYAML decodes a scalar version node.
func (v *Version) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("version must be a scalar, got kind %d", node.Kind)
	}
	if node.Tag == "!!null" {
		*v = Version{}
		return nil
	}
	*v = parseVersion(node.Value)
	return nil
}

func parseVersion(raw string) Version {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return Version{}
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return Version{}
	}
	return VersionOf(f)
}

// ParseDescriptor parses the command-line form of a descriptor:
//
//	0xToken            bonding-curve token, default version
//	0xToken:3          bonding-curve token at version 3
//	0xToken@0xPair     imported token priced from its pair
//
// Addresses are not validated here; classification drops invalid ones.
func ParseDescriptor(raw string) (TokenDescriptor, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return TokenDescriptor{}, fmt.Errorf("empty token descriptor")
	}
	if token, pair, ok := strings.Cut(raw, "@"); ok {
		if pair == "" {
			return TokenDescriptor{}, fmt.Errorf("descriptor %q: missing pair after @", raw)
		}
		return TokenDescriptor{Address: token, IsImport: true, PairAddress: pair}, nil
	}
	if token, version, ok := strings.Cut(raw, ":"); ok {
		f, err := strconv.ParseFloat(version, 64)
		if err != nil {
			return TokenDescriptor{}, fmt.Errorf("descriptor %q: invalid version: %w", raw, err)
		}
		return TokenDescriptor{Address: token, Version: VersionOf(f)}, nil
	}
	return TokenDescriptor{Address: raw}, nil
}
