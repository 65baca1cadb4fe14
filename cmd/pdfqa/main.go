// Package main provides the pdfqa CLI entrypoint.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version    = "0.1.0"
	configPath string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "pdfqa",
		Short: "Ask questions about a PDF through a processing backend",
		Long: `pdfqa uploads a PDF to a question-answering backend and keeps a chat
session about it.

Usage modes:
  pdfqa serve      Run the HTTP API for browser and programmatic clients
  pdfqa chat       Start an interactive terminal session
  pdfqa history    Inspect journaled sessions and transcripts`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(
		serveCmd(),
		chatCmd(),
		historyCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
