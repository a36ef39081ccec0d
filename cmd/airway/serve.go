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

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/kingrea/airway/internal/httpapi"
	"github.com/kingrea/airway/internal/logbook"
)

const shutdownTimeout = 5 * time.Second

func serveCmd(projectDir *string) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve sessions, classifiers and recommendations over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(*projectDir)
			if err != nil {
				return err
			}
			if addr == "" {
				addr = e.cfg.ServerAddr()
			}
			return serve(cmd.Context(), e, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default: server.addr from .airway/config.yaml)")
	return cmd
}

func newServer(e *env) *httpapi.Server {
	opts := []httpapi.Option{
		httpapi.WithCatalog(e.catalog),
		httpapi.WithLogbook(e.log),
	}
	if e.assistant != nil {
		opts = append(opts, httpapi.WithAssistant(e.assistant))
	}
	if !e.cfg.Strict() {
		opts = append(opts, httpapi.WithUnchecked())
	}
	return httpapi.New(opts...)
}

func serve(ctx context.Context, e *env, addr string) error {
	gin.SetMode(gin.ReleaseMode)
	server := &http.Server{
		Addr:              addr,
		Handler:           newServer(e).Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// Chat replies stream for as long as the configured chat timeout.
		WriteTimeout: e.cfg.ChatTimeout() + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		e.log.Info("Server listening on %s", addr)
		fmt.Printf("airway listening on %s\n", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil {
			e.log.Error("Server failed: %v", err)
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	return shutdown(server, e.log)
}

func shutdown(server *http.Server, lb *logbook.Logbook) error {
	lb.Info("Server shutting down")
	fmt.Fprintln(os.Stderr, "shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		lb.Error("Graceful shutdown failed: %v", err)
		return fmt.Errorf("serve: graceful shutdown: %w", err)
	}
	return nil
}
