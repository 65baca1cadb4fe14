package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/liliang-cn/pdfqa/internal/config"
	"github.com/liliang-cn/pdfqa/internal/console"
	"github.com/liliang-cn/pdfqa/internal/gateway"
	"github.com/liliang-cn/pdfqa/internal/logger"
	"github.com/liliang-cn/pdfqa/internal/repository"
	"github.com/liliang-cn/pdfqa/internal/service"
	"github.com/liliang-cn/pdfqa/internal/settings"
)

func chatCmd() *cobra.Command {
	var (
		file      string
		noJournal bool
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive session in the terminal",
		Long: `Start an interactive session in the terminal.

Examples:
  pdfqa chat                          # Open a PDF with /open
  pdfqa chat -f report.pdf            # Start with report.pdf selected
  BACKEND_URL=http://gpu:8000 pdfqa chat`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(file, noJournal)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "PDF to select on start")
	cmd.Flags().BoolVar(&noJournal, "no-journal", false, "Do not record the session in the database")

	return cmd
}

func runChat(file string, noJournal bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Console output belongs to the REPL, so logs only go to the file
	log, err := logger.NewWithConsole(cfg.Log, nil)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync()

	store, err := settings.NewStore(cfg.BackendDefaults())
	if err != nil {
		return err
	}

	opts := service.ControllerOptions{
		Settings: store,
		Gateway: gateway.NewClient(gateway.Options{
			ProcessTimeout: cfg.Backend.ProcessTimeout,
			AskTimeout:     cfg.Backend.AskTimeout,
		}, log),
		MaxUploadBytes: cfg.Upload.MaxBytes,
		Logger:         log,
	}
	if !noJournal {
		db, err := repository.NewDB(cfg.Database.Path)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer db.Close()
		opts.Journal = repository.NewSessionRepository(db)
	}

	ctrl, err := service.NewController(opts)
	if err != nil {
		return err
	}
	log.Info("Chat session started", zap.String("session_id", ctrl.ID()))

	ctx := context.Background()
	repl := console.New(ctrl, os.Stdin, os.Stdout)
	if file != "" {
		repl.Handle(ctx, "/open "+file)
	}
	return repl.Run(ctx)
}
