// The graft server is a reverse proxy that rewrites HTML and XML responses
// with the configured element and directive rules.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"graft/internal/config"
	"graft/internal/health"
	"graft/internal/logging"
	"graft/internal/proxy"
)

var version string = "<dev>"

func main() {
	var configFile string
	var addr string
	var logLevel string

	flag.StringVar(&configFile, "config", "config.json", "Path to configuration file")
	flag.StringVar(&addr, "addr", ":8080", "Address to listen on")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	logging.Setup(os.Stdout, logLevel)

	cfg, err := config.Load(configFile)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	healthServer := health.New(cfg.HealthPort)
	go func() {
		if err := healthServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Health server failed", "error", err)
		}
	}()

	proxyServer, err := proxy.New(cfg, version)
	if err != nil {
		slog.Error("Failed to create proxy server", "error", err)
		os.Exit(1)
	}
	healthServer.MarkReady(proxyServer)

	server := &http.Server{
		Addr:              addr,
		Handler:           proxyServer,
		ReadHeaderTimeout: time.Duration(cfg.RequestTimeout) * time.Second,
	}

	go func() {
		slog.Info("Starting server", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for {
		sig := <-sigChan
		switch sig {
		case syscall.SIGHUP:
			slog.Info("Reloading configuration")
			newCfg, err := config.Load(configFile)
			if err != nil {
				slog.Error("Failed to reload configuration", "error", err)
				continue
			}
			if err := proxyServer.UpdateConfig(newCfg); err != nil {
				slog.Error("Failed to update proxy configuration", "error", err)
				continue
			}
			slog.Info("Configuration reloaded successfully", "rules", proxyServer.RuleCount())
		case syscall.SIGINT, syscall.SIGTERM:
			slog.Info("Shutting down server")
			healthServer.MarkNotReady()
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				slog.Error("Server shutdown failed", "error", err)
				os.Exit(1)
			}
			if err := healthServer.Stop(); err != nil {
				slog.Error("Health server shutdown failed", "error", err)
			}
			return
		}
	}
}
