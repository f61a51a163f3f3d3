package cli

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

	"github.com/anl331/vid-clipper/internal/api"
	"github.com/anl331/vid-clipper/internal/config"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP job daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}
}

func serve() error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	server := api.NewServer(
		a.manager, a.store, a.cache,
		config.DefaultJobOptions(a.cfg.OpenRouterModel),
		a.logger,
	)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.cfg.Port),
		Handler: server.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("listening", "addr", httpServer.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case sig := <-sigCh:
		a.logger.Info("shutting down", "signal", sig.String())
	}

	a.manager.StopAll()
	a.manager.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(ctx)
}
