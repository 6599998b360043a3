package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	natsconn "github.com/wehubfusion/Ariadne/internal/nats"
	"github.com/wehubfusion/Ariadne/pkg/messaging"
	"github.com/wehubfusion/Ariadne/pkg/server"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the extraction endpoints over HTTP",
	Long: `Serves /notion/page, /notion/database and /notion/search.

When a NATS URL is configured the request/reply worker runs in the same
process and shares the gateway with the HTTP handlers.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Answer extraction requests from NATS",
	Args:  cobra.NoArgs,
	RunE:  runWorker,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	service := newService()
	srv := server.New(service, cfg.HTTP.Addr, logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(srv.ListenAndServe)
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("Shutting down HTTP server")
		return srv.Shutdown(shutdownCtx)
	})

	if cfg.NATS.URL != "" {
		g.Go(func() error {
			return serveNATS(ctx, messaging.NewWorker(service, logger))
		})
	}

	return g.Wait()
}

func runWorker(cmd *cobra.Command, args []string) error {
	if cfg.NATS.URL == "" {
		return fmt.Errorf("NATS URL is not configured, set ARIADNE_NATS_URL")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return serveNATS(ctx, messaging.NewWorker(newService(), logger))
}

// serveNATS runs worker until ctx ends, then drains it
func serveNATS(ctx context.Context, worker *messaging.Worker) error {
	conn, err := natsconn.Connect(ctx, natsconn.DefaultConnectionConfig(cfg.NATS.URL), logger)
	if err != nil {
		return err
	}

	if err := worker.Start(ctx, messaging.WrapConn(conn), cfg.NATS.Subject, cfg.NATS.Queue); err != nil {
		conn.Close()
		return err
	}

	<-ctx.Done()
	logger.Info("Stopping worker")
	if err := worker.Stop(); err != nil {
		logger.Warn("Error draining subscription", zap.Error(err))
	}
	return natsconn.Close(conn)
}
