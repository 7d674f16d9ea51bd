package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Tyrowin/callroom/internal/registry"
	"github.com/Tyrowin/callroom/internal/relay"
	"github.com/Tyrowin/callroom/internal/server"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "relay server terminated: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	config, err := server.LoadConfig()
	if err != nil {
		return exitConfig, err
	}
	server.SetConfig(config)

	logger := server.NewLogger(config.LogLevel, os.Stdout)
	slog.SetDefault(logger)

	router := relay.NewRouter(registry.New(), logger.With("component", "relay"))
	hub := server.NewHub(router, logger.With("component", "hub"))
	go hub.Run()

	httpServer := server.CreateServer(config.Addr, server.SetupRoutes(hub))

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.StartServer(httpServer)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		_ = hub.Shutdown(config.ShutdownTimeout)
		if err != nil {
			return exitRuntime, fmt.Errorf("http server: %w", err)
		}
		return exitOK, nil
	case sig := <-quit:
		logger.Info("received signal, shutting down", "signal", sig.String())
	}

	if err := server.ShutdownServer(httpServer, config.ShutdownTimeout); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	if err := hub.Shutdown(config.ShutdownTimeout); err != nil {
		return exitRuntime, fmt.Errorf("hub shutdown: %w", err)
	}
	return exitOK, nil
}
