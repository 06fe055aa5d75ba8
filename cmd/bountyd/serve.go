package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/cyl19970726/Code3/container"
	"github.com/cyl19970726/Code3/handlers"
)

const shutdownGrace = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and metrics endpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		c, err := container.NewContainer(ctx, configPath)
		if err != nil {
			return err
		}
		defer c.Close()

		router := handlers.NewRouter(c.BountyService, handlers.RouterOptions{
			Logger:            c.Logger,
			Health:            c.HealthService,
			Metrics:           c.Metrics.Handler(),
			AuthMaxSkew:       c.Config.AuthMaxSkew,
			RateLimitCapacity: c.Config.RateLimitCapacity,
			RateLimitRefill:   c.Config.RateLimitRefill,
			StreamHeartbeat:   15 * time.Second,
			EnableFaucet:      c.Config.EnableFaucet,
		})
		if c.Config.EnableFaucet {
			c.Logger.Warn("development faucet enabled")
		}

		srv := &http.Server{
			Addr:              c.Config.HTTPAddr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			c.Logger.Info("http server listening", "addr", c.Config.HTTPAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			c.Logger.Info("shutting down http server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
		return g.Wait()
	},
}
