package cmd

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

	"github.com/mohsenfayyazi/billder/handlers"
	"github.com/mohsenfayyazi/billder/logger"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the billing dashboard",
		Example: `  # Listen on PORT from the environment
  billder serve

  # Listen on another address
  billder serve --addr :8081`,
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, _ := cmd.Flags().GetString("addr")
			return runServe(cmd.Context(), a, addr)
		},
	}
	cmd.Flags().String("addr", "", "listen address (default :PORT)")
	return cmd
}

func runServe(ctx context.Context, a *App, addr string) error {
	log := logger.WithComponent("serve")
	if addr == "" {
		addr = a.Config.Addr()
	}

	dash := handlers.NewDashboard(a.Config, a.Store, a.Hub, handlers.WithHTTPClient(a.HTTP))
	router, err := handlers.NewRouter(dash)
	if err != nil {
		return fmt.Errorf("failed to build router: %w", err)
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", addr).
			Str("api_url", a.Config.APIURL).
			Bool("stripe", a.Config.StripeJSEnabled()).
			Msg("dashboard listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down dashboard")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
