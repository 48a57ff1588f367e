package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ayusman/wave/internal/config"
	"github.com/ayusman/wave/internal/log"
)

// Version is the application version.
const Version = "0.3.0"

var rootCmd = &cobra.Command{
	Use:           "wave",
	Short:         "Static hand gesture recognition",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits 1 on any error.
func Execute() {
	// Ctrl+C and SIGTERM end the run cleanly
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "wave:", err)
		stop()
		os.Exit(1)
	}
}

// loadConfig resolves the configuration for cmd and sets up logging.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(config.Options{Flags: cmd.Flags()})
	if err != nil {
		return config.Config{}, err
	}
	if _, err := log.Setup(log.Options{Level: cfg.LogLevel, File: cfg.LogFile}); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}
