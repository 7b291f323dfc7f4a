package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tagScope/internal/config"
	"tagScope/internal/feedapi"
	"tagScope/internal/model"
	"tagScope/internal/snapshot"
	"tagScope/internal/storage"
	"tagScope/internal/storage/postgres"
)

func newMarketCapsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "marketcaps",
		Short: "Snapshot community market caps in USD",
		RunE:  runMarketCaps,
	}
	addSnapshotFlags(cmd, "./data/marketcaps.jsonl")
	cmd.Flags().String("sort", string(feedapi.SortMarketCap), "community listing (new, trending, marketcap)")
	return cmd
}

func newRewardsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rewards",
		Short: "Snapshot agent curation rewards in USD",
		RunE:  runRewards,
	}
	addSnapshotFlags(cmd, "./data/agent_rewards.jsonl")
	return cmd
}

func addSnapshotFlags(cmd *cobra.Command, out string) {
	addChainFlags(cmd.Flags())
	addQuoteFlags(cmd.Flags())
	addFeedFlags(cmd.Flags())
	cmd.Flags().Int("pages", 1, "listing pages to read")
	cmd.Flags().Int("concurrency", 8, "concurrent feed API requests for per-agent reads")
	cmd.Flags().String("out", out, "output JSONL path (empty disables)")
	cmd.Flags().String("pg-dsn", "", "Postgres DSN (optional)")
	cmd.Flags().String("state-name", "", "snapshot state key (defaults to the command name)")
	cmd.Flags().Duration("min-interval", 0, "skip when the last recorded snapshot is newer than this (requires --pg-dsn)")
}

func runMarketCaps(cmd *cobra.Command, _ []string) error {
	return runSnapshot(cmd, "marketcaps",
		func(ctx context.Context, b *snapshot.Builder, cfg config.SnapshotConfig) ([]model.MarketCapRecord, error) {
			sort, err := feedapi.ParseSort(cfg.Sort)
			if err != nil {
				return nil, err
			}
			return b.MarketCaps(ctx, sort, 1, cfg.Pages)
		},
		func(s *postgres.Store) storage.Sink[model.MarketCapRecord] {
			return storage.SinkFunc[model.MarketCapRecord](s.UpsertMarketCaps)
		},
	)
}

func runRewards(cmd *cobra.Command, _ []string) error {
	return runSnapshot(cmd, "rewards",
		func(ctx context.Context, b *snapshot.Builder, cfg config.SnapshotConfig) ([]model.AgentRewardTotal, error) {
			return b.AgentRewards(ctx, 1, cfg.Pages)
		},
		func(s *postgres.Store) storage.Sink[model.AgentRewardTotal] {
			return storage.SinkFunc[model.AgentRewardTotal](s.UpsertAgentRewards)
		},
	)
}

// runSnapshot builds one snapshot and writes it to the JSONL file and, when a
// DSN is configured, to Postgres together with the snapshot state.
func runSnapshot[T any](
	cmd *cobra.Command,
	name string,
	build func(context.Context, *snapshot.Builder, config.SnapshotConfig) ([]T, error),
	pgSink func(*postgres.Store) storage.Sink[T],
) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadSnapshot(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	stateName := cfg.StateName
	if stateName == "" {
		stateName = name
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var sinks storage.Fanout[T]
	if cfg.Out != "" {
		sinks = append(sinks, storage.NewJSONLWriter[T](cfg.Out))
	}

	var store *postgres.Store
	if cfg.PGDSN != "" {
		store, err = postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		if err := store.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		if cfg.MinInterval > 0 {
			last, ok, err := store.LoadState(ctx, stateName)
			if err != nil {
				return fmt.Errorf("load state: %w", err)
			}
			if ok && time.Since(time.Unix(last, 0)) < cfg.MinInterval {
				logger.Info("snapshot skipped, last one is recent",
					zap.String("state", stateName),
					zap.Time("last", time.Unix(last, 0)),
					zap.Duration("min_interval", cfg.MinInterval),
				)
				return nil
			}
		}
		sinks = append(sinks, pgSink(store))
	}
	if len(sinks) == 0 {
		return fmt.Errorf("no output configured (set --out or --pg-dsn)")
	}

	resolver, closeClient, err := newResolver(ctx, cfg.Chain, logger)
	if err != nil {
		return err
	}
	defer closeClient()

	builder := snapshot.NewBuilder(
		newFeedClient(cfg.Feed, logger),
		resolver,
		newQuoteSource(cfg.Quote, logger),
		cfg.Concurrency,
		logger,
	)

	logger.Info(name+" start",
		zap.String("rpc", cfg.Chain.RPCURL),
		zap.String("api", cfg.Feed.BaseURL),
		zap.Int("pages", cfg.Pages),
		zap.String("out", cfg.Out),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
	)

	startedAt := time.Now()
	records, err := build(ctx, builder, cfg)
	if err != nil {
		return fmt.Errorf("build %s: %w", name, err)
	}
	if err := sinks.Put(ctx, records); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	if store != nil {
		if err := store.SaveState(ctx, stateName, startedAt.Unix()); err != nil {
			return fmt.Errorf("save state: %w", err)
		}
	}

	logger.Info(name+" done", zap.Int("records", len(records)), zap.Duration("elapsed", time.Since(startedAt)))
	return nil
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}
