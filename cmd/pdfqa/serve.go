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
	"go.uber.org/zap"

	"github.com/liliang-cn/pdfqa/internal/api"
	"github.com/liliang-cn/pdfqa/internal/config"
	"github.com/liliang-cn/pdfqa/internal/gateway"
	"github.com/liliang-cn/pdfqa/internal/logger"
	"github.com/liliang-cn/pdfqa/internal/repository"
	"github.com/liliang-cn/pdfqa/internal/service"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the session HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
	return cmd
}

func runServe() error {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	log, err := logger.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync()

	// Initialize transcript journal
	db, err := repository.NewDB(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()
	sessionRepo := repository.NewSessionRepository(db)

	client := gateway.NewClient(gateway.Options{
		ProcessTimeout: cfg.Backend.ProcessTimeout,
		AskTimeout:     cfg.Backend.AskTimeout,
	}, log)

	manager, err := service.NewManager(service.ManagerConfig{
		Defaults:        cfg.BackendDefaults(),
		TTL:             cfg.Session.TTL,
		CleanupInterval: cfg.Session.CleanupInterval,
		MaxUploadBytes:  cfg.Upload.MaxBytes,
	}, client, sessionRepo, log)
	if err != nil {
		return fmt.Errorf("failed to create session manager: %w", err)
	}

	// Setup router
	router := api.SetupRouter(manager, log, api.RouterConfig{
		APIKey:       cfg.Server.APIKey,
		AllowOrigins: cfg.Server.AllowOrigins,
	})

	// Processing may take up to the process timeout, so writes must outlast it
	srv := &http.Server{
		Addr:         cfg.Address(),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.Backend.ProcessTimeout + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Starting pdfqa server",
			zap.String("address", cfg.Address()),
			zap.String("backend", cfg.BackendDefaults().EndpointURL),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	case <-quit:
	}

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("Server exited")
	return nil
}
