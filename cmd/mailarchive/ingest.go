package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/mixelka/mailarchive/internal/email"
	"github.com/mixelka/mailarchive/internal/ingest"
	"github.com/mixelka/mailarchive/internal/telegram"
)

func newFetchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "Archive unseen and recent messages from the IMAP mailbox",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			coordinator, err := a.coordinator()
			if err != nil {
				return err
			}
			outcomes, err := a.fetchIMAP(cmd.Context(), coordinator)
			printSummary(cmd, outcomes)
			return err
		},
	}
}

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Fetch from the IMAP mailbox every POLL_INTERVAL until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			coordinator, err := a.coordinator()
			if err != nil {
				return err
			}
			if a.cfg.MetricsAddr != "" {
				go a.serveMetrics(ctx)
			}

			poller := email.NewPoller(a.cfg.PollInterval, a.logger)
			err = poller.Run(ctx, func(ctx context.Context) error {
				_, err := a.fetchIMAP(ctx, coordinator)
				return err
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}

func newImportMboxCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import-mbox <path>",
		Short: "Archive every message of an mbox file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			coordinator, err := a.coordinator()
			if err != nil {
				return err
			}
			mailbox, err := email.OpenMbox(args[0], a.logger)
			if err != nil {
				return err
			}
			outcomes, err := coordinator.FetchNew(cmd.Context(), mailbox, time.Time{})
			printSummary(cmd, outcomes)
			return err
		},
	}
}

func (a *app) coordinator() (*ingest.Coordinator, error) {
	c := ingest.NewCoordinator(a.db, a.attachments, a.logger)
	if a.cfg.TelegramEnabled() {
		n, err := telegram.NewNotifier(telegram.NotifierConfig{
			Token:   a.cfg.TelegramToken,
			ChatID:  a.cfg.TelegramChatID,
			TopicID: a.cfg.TelegramTopicID,
		}, a.logger)
		if err != nil {
			return nil, err
		}
		c.SetNotifier(n)
		a.logger.Info("telegram notifications enabled", "chat_id", a.cfg.TelegramChatID)
	}
	return c, nil
}

// fetchIMAP runs one fetch over a fresh IMAP session
func (a *app) fetchIMAP(ctx context.Context, coordinator *ingest.Coordinator) ([]ingest.Outcome, error) {
	if !a.cfg.IMAPEnabled() {
		return nil, fmt.Errorf("IMAP_USERNAME and IMAP_PASSWORD are required")
	}
	server, err := email.ResolveServer(a.cfg.IMAPServer, a.cfg.IMAPUsername)
	if err != nil {
		return nil, err
	}

	client := email.NewClient(email.ClientConfig{
		Username:    a.cfg.IMAPUsername,
		Password:    a.cfg.IMAPPassword,
		Server:      server,
		Mailbox:     a.cfg.IMAPMailbox,
		DialTimeout: a.cfg.IMAPDialTimeout,
	}, a.logger)
	if err := client.Connect(ctx); err != nil {
		return nil, err
	}
	defer client.Close()

	return coordinator.FetchNew(ctx, client, ingest.SinceDate(time.Now(), a.cfg.FetchLookback))
}

func (a *app) serveMetrics(ctx context.Context) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: a.cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	a.logger.Info("serving metrics", "addr", a.cfg.MetricsAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		a.logger.Error("metrics server failed", "error", err)
	}
}

func printSummary(cmd *cobra.Command, outcomes []ingest.Outcome) {
	fmt.Fprintf(cmd.OutOrStdout(), "archived %d, duplicate %d, parse failed %d, parts failed %d\n",
		ingest.Count(outcomes, ingest.StatusArchived),
		ingest.Count(outcomes, ingest.StatusDuplicate),
		ingest.Count(outcomes, ingest.StatusParseFailed),
		ingest.Count(outcomes, ingest.StatusPartsFailed),
	)
	for _, o := range outcomes {
		if o.Status == ingest.StatusParseFailed {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s: %v\n", o.ID, o.Err)
		}
	}
}
