package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"tagScope/internal/chain"
	"tagScope/internal/config"
	"tagScope/internal/contracts"
	"tagScope/internal/feedapi"
	"tagScope/internal/metrics"
	"tagScope/internal/pricing"
	"tagScope/internal/quote"
)

func main() {
	root := &cobra.Command{
		Use:          "tagscope",
		Short:        "On-chain token pricing and market caps for the TagAI feed",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(newPricesCmd(), newSuppliesCmd(), newMarketCapsCmd(), newRewardsCmd(), newServeCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

func addChainFlags(fs *pflag.FlagSet) {
	fs.String("rpc", "", "BSC RPC URL")
	fs.String("batch-mode", config.BatchModeMulticall, "batch executor (multicall, rpc-batch)")
	fs.Int("max-calls-per-batch", 500, "calls per multicall chunk")
	fs.String("multicall", chain.DefaultMulticallAddress, "Multicall3 address")
	fs.String("pools", "", "pool addresses for versions 1..6 (comma-separated, empty keeps default)")
	fs.String("wrapped-native", "", "wrapped base-currency token address override")
	fs.String("factory", "", "DEX factory address override")
}

func addQuoteFlags(fs *pflag.FlagSet) {
	fs.String("quote-source", config.QuoteCoinGecko, "base-currency quote source (coingecko, static)")
	fs.String("coingecko-url", quote.DefaultCoinGeckoURL, "CoinGecko API base URL")
	fs.String("coin-id", quote.DefaultCoinID, "CoinGecko coin id of the base currency")
	fs.Float64("base-price", 0, "static base-currency USD price")
	fs.Duration("quote-timeout", 10*time.Second, "quote request timeout")
}

func addFeedFlags(fs *pflag.FlagSet) {
	fs.String("api-url", feedapi.DefaultBaseURL, "feed API base URL")
	fs.Duration("api-timeout", 15*time.Second, "feed API request timeout")
	fs.Float64("api-rate", 5, "feed API requests per second (0 disables throttling)")
	fs.Int("api-burst", 5, "feed API burst size")
	fs.Int("max-retries", 3, "maximum feed API retry attempts")
	fs.Duration("retry-backoff", 500*time.Millisecond, "initial feed API retry backoff")
}

// newResolver dials the RPC endpoint and wires the configured batch executor.
// The returned close func releases the RPC client.
func newResolver(ctx context.Context, cfg config.ChainConfig, logger *zap.Logger) (*pricing.Resolver, func(), error) {
	deployment, err := contracts.BSCMainnet().WithOverrides(cfg.Pools, cfg.WrappedNative, cfg.Factory)
	if err != nil {
		return nil, nil, err
	}

	client, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect rpc: %w", err)
	}

	var reader chain.BatchReader
	switch cfg.BatchMode {
	case config.BatchModeRPC:
		reader = chain.NewRPCBatchReader(client, logger)
	default:
		addr := cfg.MulticallAddress
		if addr == "" {
			addr = chain.DefaultMulticallAddress
		}
		if !common.IsHexAddress(addr) {
			client.Close()
			return nil, nil, fmt.Errorf("invalid multicall address: %s", addr)
		}
		reader = chain.NewMulticallReader(client, common.HexToAddress(addr), cfg.MaxCallsPerBatch, logger)
	}

	metrics.MustRegister(prometheus.DefaultRegisterer)
	return pricing.NewResolver(reader, deployment, logger), client.Close, nil
}

func newQuoteSource(cfg config.QuoteConfig, logger *zap.Logger) quote.Source {
	if cfg.Source == config.QuoteStatic {
		return quote.StaticSource(cfg.StaticPrice)
	}
	return quote.NewCoinGeckoSource(cfg.CoinGeckoURL, cfg.CoinID, cfg.Timeout, logger)
}

func newFeedClient(cfg config.FeedConfig, logger *zap.Logger) *feedapi.Client {
	return feedapi.NewClient(feedapi.Options{
		BaseURL:      cfg.BaseURL,
		Timeout:      cfg.Timeout,
		RateLimit:    cfg.RateLimit,
		Burst:        cfg.Burst,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}, logger)
}

// writeJSON writes v as indented JSON to path, or to stdout when path is empty.
func writeJSON(path string, v interface{}) error {
	data, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	data = append(data, '\n')
	if path == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
