package email

import (
	"context"
	"log/slog"
	"time"
)

// Poller repeats a mailbox sweep on a fixed interval
type Poller struct {
	interval time.Duration
	logger   *slog.Logger
}

// NewPoller creates a new poller
func NewPoller(interval time.Duration, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Poller{interval: interval, logger: logger.With("component", "poller")}
}

// Run calls sweep immediately and then once per interval until ctx is
// done. Sweep errors are logged and the next sweep still runs.
func (p *Poller) Run(ctx context.Context, sweep func(context.Context) error) error {
	p.logger.Info("using polling", "interval", p.interval)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := sweep(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.logger.Error("sweep failed", "error", err)
		}

		select {
		case <-ctx.Done():
			p.logger.Info("polling stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
