package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tagScope/internal/config"
	"tagScope/internal/model"
	"tagScope/internal/pricing"
)

func newPricesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prices",
		Short: "Resolve unit prices (and optionally supplies) for token descriptors",
		Long: "Resolve unit prices in the base currency.\n\n" +
			"Descriptors are given as --tokens entries (0xToken, 0xToken:version, 0xToken@0xPair)\n" +
			"or as a JSON/YAML list in --tokens-file.",
		RunE: runPrices,
	}
	addTokenFlags(cmd)
	cmd.Flags().Bool("with-supply", false, "also report total supplies")
	return cmd
}

func newSuppliesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "supplies",
		Short: "Read total supplies for token descriptors",
		RunE:  runSupplies,
	}
	addTokenFlags(cmd)
	return cmd
}

func addTokenFlags(cmd *cobra.Command) {
	addChainFlags(cmd.Flags())
	cmd.Flags().StringSlice("tokens", nil, "token descriptors (comma-separated)")
	cmd.Flags().String("tokens-file", "", "JSON or YAML descriptor list")
	cmd.Flags().String("out", "", "output JSON path (stdout when empty)")
}

func runPrices(cmd *cobra.Command, _ []string) error {
	return withTokens(cmd, func(ctx context.Context, cfg config.PricesConfig, descs []model.TokenDescriptor, r *pricing.Resolver, logger *zap.Logger) error {
		if !cfg.WithSupply {
			prices, err := r.ResolvePrices(ctx, descs)
			if err != nil {
				return err
			}
			logger.Info("prices resolved", zap.Int("descriptors", len(descs)), zap.Int("prices", len(prices)))
			return writeJSON(cfg.Out, map[string]map[string]float64{"prices": prices})
		}
		set, err := r.ResolvePricesAndSupplies(ctx, descs)
		if err != nil {
			return err
		}
		logger.Info("prices resolved",
			zap.Int("descriptors", len(descs)),
			zap.Int("prices", len(set.Prices)),
			zap.Int("supplies", len(set.Supplies)),
		)
		return writeJSON(cfg.Out, set)
	})
}

func runSupplies(cmd *cobra.Command, _ []string) error {
	return withTokens(cmd, func(ctx context.Context, cfg config.PricesConfig, descs []model.TokenDescriptor, r *pricing.Resolver, logger *zap.Logger) error {
		supplies, err := r.ResolveSupplies(ctx, descs)
		if err != nil {
			return err
		}
		logger.Info("supplies resolved", zap.Int("descriptors", len(descs)), zap.Int("supplies", len(supplies)))
		return writeJSON(cfg.Out, map[string]map[string]float64{"supplies": supplies})
	})
}

type tokensFunc func(ctx context.Context, cfg config.PricesConfig, descs []model.TokenDescriptor, r *pricing.Resolver, logger *zap.Logger) error

// withTokens loads config and descriptors, wires a resolver and runs fn.
func withTokens(cmd *cobra.Command, fn tokensFunc) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	descs, err := config.LoadDescriptors(cfg.Tokens, cfg.TokensFile)
	if err != nil {
		return fmt.Errorf("load descriptors: %w", err)
	}
	if len(descs) == 0 {
		return fmt.Errorf("no token descriptors given (use --tokens or --tokens-file)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	resolver, closeClient, err := newResolver(ctx, cfg.Chain, logger)
	if err != nil {
		return err
	}
	defer closeClient()

	logger.Debug("resolve start",
		zap.String("rpc", cfg.Chain.RPCURL),
		zap.String("batch_mode", cfg.Chain.BatchMode),
		zap.Int("descriptors", len(descs)),
	)
	return fn(ctx, cfg, descs, resolver, logger)
}
