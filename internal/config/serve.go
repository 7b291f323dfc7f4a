package config

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ServeConfig holds configuration for the HTTP API.
type ServeConfig struct {
	Chain       ChainConfig
	Quote       QuoteConfig
	Feed        FeedConfig
	Addr        string
	CORSOrigins []string
	LogLevel    string
}

// LoadServe merges config file, environment variables, and flags into ServeConfig.
func LoadServe(cfgFile string, flags *pflag.FlagSet) (ServeConfig, error) {
	v, err := newViper(cfgFile, flags, func(v *viper.Viper) {
		v.SetDefault("addr", ":8080")
		v.SetDefault("cors-origins", "*")
	})
	if err != nil {
		return ServeConfig{}, err
	}

	cfg := ServeConfig{
		Chain:       chainConfig(v),
		Quote:       quoteConfig(v),
		Feed:        feedConfig(v),
		Addr:        v.GetString("addr"),
		CORSOrigins: getStringSlice(v, "cors-origins"),
		LogLevel:    v.GetString("log-level"),
	}
	if err := cfg.Chain.Validate(); err != nil {
		return ServeConfig{}, err
	}
	if err := cfg.Quote.Validate(); err != nil {
		return ServeConfig{}, err
	}
	return cfg, nil
}
