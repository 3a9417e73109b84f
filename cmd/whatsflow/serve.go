package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/casfuk/whatsapp-flow-builder-sub001/internal/cli"
	"github.com/casfuk/whatsapp-flow-builder-sub001/internal/presentation/tui"
	httpAdapter "github.com/casfuk/whatsapp-flow-builder-sub001/pkg/adapters/http"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Starts the engine as a JSON API over HTTP. Wait steps are scheduled in-process
and re-armed from the session store on boot. When WhatsApp credentials are
configured, messages are delivered through the Cloud API; with
http.webhook_flow set, inbound messages arrive on /webhooks/whatsapp.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp(cmd, cli.BuildOptions{Schedule: true})
		if err != nil {
			return err
		}
		defer app.Close()
		cfg := app.Config

		if n, err := app.Scheduler.Recover(cmd.Context(), app.Sessions, app.Flows); err != nil {
			app.Logger.Warn("failed to recover waits", "err", err)
		} else if n > 0 {
			app.Logger.Info("waits recovered", "count", n)
		}

		opts := []httpAdapter.Option{
			httpAdapter.WithLogger(app.Logger),
			httpAdapter.WithSanitizer(app.Sanitizer),
		}
		if cfg.HTTP.Metrics {
			opts = append(opts, httpAdapter.WithMetrics(app.Metrics.Handler()))
		}
		if cfg.HTTP.WebhookFlow != "" {
			opts = append(opts, httpAdapter.WithWebhook(httpAdapter.Webhook{
				Flow:        cfg.HTTP.WebhookFlow,
				VerifyToken: cfg.WhatsApp.VerifyToken,
				AppSecret:   cfg.WhatsApp.AppSecret,
			}))
		}
		srv := &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           httpAdapter.NewHandler(app.Engine, app.Flows, opts...),
			ReadHeaderTimeout: 10 * time.Second,
		}

		if isTerminal(os.Stdout) {
			tui.PrintBanner(cmd.OutOrStdout())
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)
		go func() {
			app.Logger.Info("server listening", "addr", srv.Addr, "flows", cfg.Flows.Dir, "store", cfg.Store.Driver, "whatsapp", app.WhatsApp != nil)
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(shutdown)

		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("server error: %w", err)

		case sig := <-shutdown:
			app.Logger.Info("shutting down", "signal", sig.String())

			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				app.Logger.Error("graceful shutdown did not complete", "timeout", shutdownTimeout, "err", err)
				return srv.Close()
			}
			app.Logger.Info("server stopped gracefully")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", ":8080", "address to listen on")
	_ = v.BindPFlag("http.addr", serveCmd.Flags().Lookup("addr"))
}
