package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"raftlab/internal/config"
	"raftlab/internal/logging"
	"raftlab/internal/microservices/tcp"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := errors.Join(cfg.Validate(), cfg.ValidateAPI()); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Setup(os.Stdout, cfg.LogFormat, cfg.LogLevel)

	server := tcp.NewServer(cfg.APIAddr, tcp.Options{
		MaxWorkers:   cfg.APIMaxWorkers,
		AcceptRate:   cfg.APIAcceptRate,
		WriteTimeout: cfg.APIWriteTimeout,
		Linger:       cfg.APILinger,
		Logger:       logger,
	})

	// Bind before announcing so a taken port fails fast
	if err := server.Listen(); err != nil {
		logger.Error("api_bind_failed", "addr", cfg.APIAddr, "error", err.Error())
		os.Exit(1)
	}
	logger.Info("api_server_listening",
		"addr", server.ListenAddr().String(),
		"max_workers", cfg.APIMaxWorkers,
		"accept_rate", cfg.APIAcceptRate,
	)

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Serve in goroutine
	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Serve(context.Background())
	}()

	select {
	case sig := <-sigChan:
		logger.Info("received_shutdown_signal", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), cfg.APIShutdownTimeout)
		defer cancel()
		if err := server.Stop(ctx); err != nil {
			logger.Warn("api_server_stop_incomplete", "error", err.Error())
		}
		if err := <-errChan; err != nil && !errors.Is(err, tcp.ErrServerClosed) {
			logger.Error("api_server_error", "error", err.Error())
		}
		logger.Info("api_server_stopped_gracefully")
	case err := <-errChan:
		if err == nil || errors.Is(err, tcp.ErrServerClosed) {
			return
		}
		logger.Error("api_server_error", "error", err.Error())
		os.Exit(1)
	}
}
