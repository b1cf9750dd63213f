package server

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
)

// New returns a new HTTP server.
// It should be started with http.Server's ListenAndServe.
// Swagger UI is served only when development is true.
func New(cfg *Config, deployer Deployer, development bool, log *slog.Logger) *http.Server {
	addr := net.JoinHostPort(cfg.host(), strconv.Itoa(cfg.port()))

	subLogger := log.With("component", "server")
	subLogLogger := slog.NewLogLogger(subLogger.Handler(), slog.LevelError)

	h := newHandler(&handlerParams{
		deployer:    deployer,
		webhookPath:     cfg.webhookPath(),
		pipelineTimeout: cfg.pipelineTimeout(),
		development:     development,
	}, subLogger)

	return &http.Server{
		Addr:              addr,
		ErrorLog:          subLogLogger,
		Handler:           h,
		ReadHeaderTimeout: cfg.readHeaderTimeout(),
	}
}
