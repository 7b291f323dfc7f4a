package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tagScope/internal/config"
	"tagScope/internal/server"
	"tagScope/internal/snapshot"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the pricing and valuation HTTP API",
		RunE:  runServe,
	}
	addChainFlags(cmd.Flags())
	addQuoteFlags(cmd.Flags())
	addFeedFlags(cmd.Flags())
	cmd.Flags().String("addr", ":8080", "listen address")
	cmd.Flags().StringSlice("cors-origins", []string{"*"}, "allowed CORS origins")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadServe(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	resolver, closeClient, err := newResolver(ctx, cfg.Chain, logger)
	if err != nil {
		return err
	}
	defer closeClient()

	builder := snapshot.NewBuilder(
		newFeedClient(cfg.Feed, logger),
		resolver,
		newQuoteSource(cfg.Quote, logger),
		4,
		logger,
	)

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.New(resolver, builder, cfg.CORSOrigins, logger),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server start", zap.String("addr", cfg.Addr), zap.Strings("cors_origins", cfg.CORSOrigins))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}
