package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/mixelka/mailarchive/internal/attachment"
	"github.com/mixelka/mailarchive/internal/config"
	"github.com/mixelka/mailarchive/internal/database"
	"github.com/mixelka/mailarchive/internal/formatter"
)

// app holds what every command needs once configuration is loaded
type app struct {
	cfg         *config.Config
	logger      *slog.Logger
	db          *database.DB
	attachments *attachment.Store
	formatter   *formatter.TextFormatter
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	var logLevel string

	rootCmd := &cobra.Command{
		Use:           "mailarchive",
		Short:         "Archive mail from IMAP or mbox into SQLite and search it",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			return a.open(cmd.Context(), cfg)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error); overrides LOG_LEVEL")

	rootCmd.AddCommand(
		newFetchCmd(a),
		newWatchCmd(a),
		newImportMboxCmd(a),
		newListCmd(a),
		newShowCmd(a),
		newSearchCmd(a),
		newQueryCmd(a),
		newCommentCmd(a),
		newAttachmentsCmd(a),
		newFixAttachmentFilenamesCmd(a),
	)
	return rootCmd
}

func (a *app) open(ctx context.Context, cfg *config.Config) error {
	a.cfg = cfg
	a.logger = setupLogger(cfg.LogLevel, cfg.LogFormat)
	a.formatter = formatter.NewTextFormatter()

	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	a.db = db

	store, err := attachment.NewStore(cfg.AttachmentsDir, db, a.logger)
	if err != nil {
		db.Close()
		return err
	}
	a.attachments = store
	return nil
}

func (a *app) close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

func setupLogger(level, format string) *slog.Logger {
	var handler slog.Handler
	logLevel := parseLevel(level)

	if format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: logLevel,
		})
	} else {
		// Pretty colored output for console; stdout carries command output
		handler = tint.NewHandler(os.Stderr, &tint.Options{
			Level:      logLevel,
			TimeFormat: time.DateTime,
		})
	}

	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
