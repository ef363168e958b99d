package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/danielpatrickdp/spiral-state/internal/blobstore"
	"github.com/danielpatrickdp/spiral-state/internal/config"
	"github.com/danielpatrickdp/spiral-state/internal/lifecycle"
	"github.com/danielpatrickdp/spiral-state/internal/rpc"
	"github.com/danielpatrickdp/spiral-state/internal/state"
)

// #region main
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	logger, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(2)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Error("stated exited", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}
// #endregion main

// #region run
func run(cfg config.Config, logger *zap.Logger) error {
	blobs, err := blobstore.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer blobs.Close()

	host := lifecycle.NewHost(blobs,
		lifecycle.WithSlot(cfg.Slot),
		lifecycle.WithLogger(logger),
		lifecycle.WithAuditDB(blobs.DB()),
	)
	// A corrupt snapshot aborts the start; the blob stays in place for inspection.
	if err := host.Start(context.Background()); err != nil {
		if errors.Is(err, state.ErrCorruptState) {
			return fmt.Errorf("refusing to start over corrupt snapshot in %s: %w", cfg.DBPath, err)
		}
		return err
	}

	lis, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Addr, err)
	}
	srv := rpc.NewServer(host, logger)
	srv.SetServing(true)

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(sigCtx)
	g.Go(func() error {
		return srv.Serve(lis)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown requested")
		srv.Stop()
		return nil
	})
	serveErr := g.Wait()

	// Serving has stopped; persist even if it stopped on an error.
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := host.Shutdown(ctx); err != nil {
		return errors.Join(serveErr, fmt.Errorf("shutdown: %w", err))
	}
	if serveErr != nil {
		return serveErr
	}
	logger.Info("stated stopped cleanly")
	return nil
}
// #endregion run
