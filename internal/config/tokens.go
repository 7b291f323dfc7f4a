package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"gopkg.in/yaml.v3"

	"tagScope/internal/model"
)

// LoadDescriptors collects descriptors from flag values and an optional JSON or YAML file.
// File entries come first.
func LoadDescriptors(flagTokens []string, file string) ([]model.TokenDescriptor, error) {
	var out []model.TokenDescriptor
	if file != "" {
		fromFile, err := ReadDescriptorFile(file)
		if err != nil {
			return nil, err
		}
		out = append(out, fromFile...)
	}
	for _, raw := range flagTokens {
		d, err := model.ParseDescriptor(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// ReadDescriptorFile reads a list of descriptors. Files ending in .yaml or .yml
// are YAML; anything else is JSON.
func ReadDescriptorFile(path string) ([]model.TokenDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tokens file: %w", err)
	}

	var out []model.TokenDescriptor
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &out)
	default:
		err = jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(data, &out)
	}
	if err != nil {
		return nil, fmt.Errorf("decode tokens file %s: %w", path, err)
	}
	return out, nil
}
