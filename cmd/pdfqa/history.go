package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/liliang-cn/pdfqa/internal/config"
	"github.com/liliang-cn/pdfqa/internal/console"
	"github.com/liliang-cn/pdfqa/internal/repository"
)

func historyCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [session-id]",
		Short: "List journaled sessions or show one transcript",
		Long: `List journaled sessions or show one transcript.

Examples:
  pdfqa history              # Most recently active sessions
  pdfqa history -n 50        # Up to 50 sessions
  pdfqa history <session-id> # Transcript of one session`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			db, err := repository.NewDB(cfg.Database.Path)
			if err != nil {
				return fmt.Errorf("failed to initialize database: %w", err)
			}
			defer db.Close()
			repo := repository.NewSessionRepository(db)

			if len(args) == 1 {
				return showTranscript(repo, args[0])
			}
			return listSessions(repo, limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of sessions to list")

	return cmd
}

func listSessions(repo *repository.SessionRepository, limit int) error {
	sessions, err := repo.List(limit)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Println("No sessions recorded.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDOCUMENT\tSTATUS\tUPDATED")
	for _, s := range sessions {
		doc := s.DocumentName
		if doc == "" {
			doc = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.ID, doc, s.Status, s.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	questions, err := repo.CountQuestions()
	if err != nil {
		return err
	}
	color.New(color.FgBlue).Printf("%d questions asked in total\n", questions)
	return nil
}

func showTranscript(repo *repository.SessionRepository, id string) error {
	rec, err := repo.Get(id)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("session %s not found", id)
	}

	messages, err := repo.GetMessages(id)
	if err != nil {
		return err
	}

	doc := rec.DocumentName
	if doc == "" {
		doc = "none"
	}
	color.New(color.Bold).Printf("Session %s\n", rec.ID)
	fmt.Printf("Document: %s  Status: %s\n\n", doc, rec.Status)
	if len(messages) == 0 {
		fmt.Println("No messages.")
		return nil
	}
	console.PrintTranscript(os.Stdout, messages)
	return nil
}
