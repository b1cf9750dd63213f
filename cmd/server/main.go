package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
)

func main() {
	run := func() int {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			_, _ = fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}

		cfg, err := parseConfig(os.Environ())
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
		log := newLogger(cfg.Development)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		srv, err := newServer(ctx, cfg, log)
		if err != nil {
			log.Error("didn't wire server", "err", err)
			return 1
		}

		errc := make(chan error, 1)
		go func() {
			log.Info("starting server", "addr", srv.Addr, "development", cfg.Development)
			errc <- srv.ListenAndServe()
		}()

		select {
		case err = <-errc:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("server failed", "err", err)
				return 1
			}
			return 0
		case <-ctx.Done():
		}

		log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeoutOrDefault())
		defer cancel()
		if err = srv.Shutdown(shutdownCtx); err != nil {
			log.Error("didn't shut down gracefully", "err", err)
			return 1
		}

		return 0
	}
	os.Exit(run())
}

func newLogger(development bool) *slog.Logger {
	if development {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, nil))
}
