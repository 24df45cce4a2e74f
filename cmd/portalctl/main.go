package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"student-portal/app"
	"student-portal/config"
	"student-portal/db"
	"student-portal/logger"
	"student-portal/services/kafka"

	"github.com/spf13/cobra"
)

var Version = "dev"

// env is the state shared by every subcommand.
type env struct {
	cfg      *config.Config
	app      *app.App
	logLevel string
}

func (e *env) open(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	e.cfg = cfg

	level := e.logLevel
	if level == "" {
		level = cfg.LogLevel
	}
	logger.Default().SetLevel(logger.ParseLevel(level))

	if err := db.InitDB(); err != nil {
		return err
	}
	e.app, err = app.New(cfg, db.DB)
	return err
}

func (e *env) close(cmd *cobra.Command, args []string) {
	if e.app != nil {
		e.app.Close()
	}
	if err := kafka.Close(); err != nil {
		logger.Warn("closing kafka producer: %v", err)
	}
	if db.DB != nil {
		db.DB.Close()
	}
	logger.Default().Sync()
}

func main() {
	e := &env{}
	rootCmd := &cobra.Command{
		Use:               "portalctl",
		Short:             "Student portal payments from the terminal",
		Version:           Version,
		SilenceUsage:      true,
		PersistentPreRunE: e.open,
		PersistentPostRun: e.close,
	}
	rootCmd.PersistentFlags().StringVar(&e.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	// Add subcommands
	rootCmd.AddCommand(loginCmd(e))
	rootCmd.AddCommand(logoutCmd(e))
	rootCmd.AddCommand(whoamiCmd(e))
	rootCmd.AddCommand(headsCmd(e))
	rootCmd.AddCommand(payCmd(e))
	rootCmd.AddCommand(statusCmd(e))
	rootCmd.AddCommand(instructionsCmd(e))
	rootCmd.AddCommand(reportCmd(e))
	rootCmd.AddCommand(eventsCmd(e))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
