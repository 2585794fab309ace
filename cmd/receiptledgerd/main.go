package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tlacroix/receiptledger/internal/accounts"
	"github.com/tlacroix/receiptledger/internal/common"
	"github.com/tlacroix/receiptledger/internal/extract"
	"github.com/tlacroix/receiptledger/internal/ledger"
	"github.com/tlacroix/receiptledger/internal/pipeline"
	"github.com/tlacroix/receiptledger/internal/rasterize"
	"github.com/tlacroix/receiptledger/internal/server"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Extractor.Require(); err != nil {
		logger.Error("extractor configuration incomplete", "error", err)
		os.Exit(1)
	}
	// Ledger credentials may arrive later through the admin surface;
	// they are re-validated at the point of use.

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	resolver, err := accounts.NewResolver()
	if err != nil {
		logger.Error("failed to load accounts table", "error", err)
		os.Exit(1)
	}

	store := common.NewStore(cfg.Ledger)
	ledgerClient := ledger.NewClient(store, logger)
	session := ledger.NewSessionManager(ledgerClient, store, logger)

	raster := rasterize.New(cfg.Raster, logger)
	extractor := extract.NewClient(cfg.Extractor, logger)

	processor := pipeline.NewProcessor(raster, extractor, resolver, ledgerClient, session, logger)
	svc := server.NewService(processor, store, logger)

	srv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           svc.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("receiptledgerd listening", "addr", cfg.Server.HTTPAddr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http serve error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}
