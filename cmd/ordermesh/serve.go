package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/ordermesh"
	"github.com/hupe1980/ordermesh/server"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd(g *globals) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the Turn API over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := ordermesh.New(ctx, cfg, g.options(cmd.ErrOrStderr())...)
			if err != nil {
				return err
			}
			defer app.Close()

			log := app.Logger.WithComponent("server")
			srv := server.New(app.Engine, func(o *server.Options) {
				o.RateLimit = cfg.Server.RateLimit
				o.RateBurst = cfg.Server.RateBurst
				o.Logger = log
			}).HTTPServer(cfg.Server.Addr, cfg.Server.ReadTimeout, cfg.Server.WriteTimeout)

			g, gctx := errgroup.WithContext(ctx)

			if cfg.Session.JanitorInterval > 0 && cfg.Session.IdleTimeout > 0 {
				g.Go(func() error {
					<-app.Engine.StartJanitor(gctx, cfg.Session.JanitorInterval, cfg.Session.IdleTimeout)
					return nil
				})
			}

			g.Go(func() error {
				log.Info("server.listening", "addr", cfg.Server.Addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})

			g.Go(func() error {
				<-gctx.Done()
				log.Info("server.shutdown")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})

			return g.Wait()
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}
