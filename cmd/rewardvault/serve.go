package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"rewardvault/gateway/middleware"
	"rewardvault/gateway/routes"
)

const (
	sweepInterval   = time.Minute
	shutdownTimeout = 10 * time.Second
)

func newServeCommand(a *app) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve read-only views and resolve registry requests until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if listen == "" {
				listen = a.cfg.Gateway.ListenAddress
			}
			return a.withNode(cmd, false, func(ctx context.Context, n *node) error {
				return serve(ctx, a, n, listen)
			})
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (defaults to the gateway configuration)")
	return cmd
}

func serve(parent context.Context, a *app, n *node, listen string) error {
	logger := a.logger.With("component", "gateway")
	limiter := middleware.NewRateLimiter(middleware.RateLimit{
		RatePerSecond: a.cfg.Gateway.RatePerSecond,
		Burst:         a.cfg.Gateway.Burst,
	}, logger)
	obs, err := middleware.NewObservability(middleware.ObservabilityConfig{
		ServiceName: a.cfg.Log.Service,
		LogRequests: true,
	}, prometheus.DefaultRegisterer, logger)
	if err != nil {
		return err
	}

	handler := routes.New(routes.Config{
		Views:          n.engine,
		Balances:       n.ledger,
		RateLimiter:    limiter,
		Observability:  obs,
		MetricsHandler: promhttp.Handler(),
	})
	server := &http.Server{
		Addr:         listen,
		Handler:      handler,
		ReadTimeout:  a.cfg.Gateway.ReadTimeout,
		WriteTimeout: a.cfg.Gateway.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	listener, err := net.Listen("tcp", listen)
	if err != nil {
		return err
	}

	stopSweep := make(chan struct{})
	defer close(stopSweep)
	go limiter.RunSweeper(sweepInterval, stopSweep)

	regDone := make(chan error, 1)
	go func() { regDone <- n.registry.Run(ctx) }()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("gateway listening", "address", listener.Addr().String())
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		runErr = err
	case err := <-regDone:
		runErr = err
		regDone = nil
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(parent), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", "error", err)
	}
	if regDone != nil {
		if err := <-regDone; err != nil && runErr == nil {
			runErr = err
		}
	}
	return runErr
}
