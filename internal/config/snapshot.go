package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// SnapshotConfig holds configuration for the marketcaps and rewards commands.
type SnapshotConfig struct {
	Chain       ChainConfig
	Quote       QuoteConfig
	Feed        FeedConfig
	Sort        string
	Pages       int
	Concurrency int
	Out         string
	PGDSN       string
	StateName   string
	MinInterval time.Duration
	LogLevel    string
}

// LoadSnapshot merges config file, environment variables, and flags into SnapshotConfig.
func LoadSnapshot(cfgFile string, flags *pflag.FlagSet) (SnapshotConfig, error) {
	v, err := newViper(cfgFile, flags, func(v *viper.Viper) {
		v.SetDefault("sort", "marketcap")
		v.SetDefault("pages", 1)
		v.SetDefault("concurrency", 8)
	})
	if err != nil {
		return SnapshotConfig{}, err
	}

	cfg := SnapshotConfig{
		Chain:       chainConfig(v),
		Quote:       quoteConfig(v),
		Feed:        feedConfig(v),
		Sort:        v.GetString("sort"),
		Pages:       v.GetInt("pages"),
		Concurrency: v.GetInt("concurrency"),
		Out:         v.GetString("out"),
		PGDSN:       v.GetString("pg-dsn"),
		StateName:   v.GetString("state-name"),
		MinInterval: v.GetDuration("min-interval"),
		LogLevel:    v.GetString("log-level"),
	}
	if err := cfg.Chain.Validate(); err != nil {
		return SnapshotConfig{}, err
	}
	if err := cfg.Quote.Validate(); err != nil {
		return SnapshotConfig{}, err
	}
	if cfg.Pages <= 0 {
		return SnapshotConfig{}, fmt.Errorf("pages must be positive")
	}
	if cfg.MinInterval > 0 && cfg.PGDSN == "" {
		return SnapshotConfig{}, fmt.Errorf("min-interval needs pg-dsn: snapshot state is kept in Postgres")
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return cfg, nil
}
