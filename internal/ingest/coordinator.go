package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mixelka/mailarchive/internal/database"
	"github.com/mixelka/mailarchive/internal/parser"
	"github.com/mixelka/mailarchive/pkg/models"
)

// Mailbox is a source of raw messages
type Mailbox interface {
	ListCandidateIDs(ctx context.Context, since time.Time) ([]string, error)
	FetchRaw(ctx context.Context, id string) ([]byte, error)
}

// RecordStore persists archived messages
type RecordStore interface {
	MessageExists(ctx context.Context, id string) (bool, error)
	CreateMessage(ctx context.Context, msg *models.ArchivedMessage) error
}

// AttachmentStore persists message parts
type AttachmentStore interface {
	Store(ctx context.Context, ownerID, filename string, payload []byte) (string, error)
}

// Notifier is told about every batch that archived something
type Notifier interface {
	NotifyBatch(ctx context.Context, outcomes []Outcome) error
}

// Status is the result of processing one message id
type Status string

const (
	StatusArchived    Status = "archived"
	StatusDuplicate   Status = "duplicate"
	StatusParseFailed Status = "parse-failed"
	StatusPartsFailed Status = "parts-failed"
)

// Outcome reports what happened to one message id
type Outcome struct {
	ID      string
	Status  Status
	Subject string
	Parts   int
	Err     error
}

// Coordinator moves new messages from a mailbox into the archive
type Coordinator struct {
	records     RecordStore
	attachments AttachmentStore
	notifier    Notifier
	logger      *slog.Logger
}

// NewCoordinator creates a new coordinator
func NewCoordinator(records RecordStore, attachments AttachmentStore, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		records:     records,
		attachments: attachments,
		logger:      logger.With("component", "ingest"),
	}
}

// SetNotifier sets the batch notifier
func (c *Coordinator) SetNotifier(n Notifier) {
	c.notifier = n
}

// FetchNew archives every candidate message not archived yet. Messages that
// fail to parse are reported and skipped. Mailbox and record store errors
// stop the batch and are returned with the outcomes collected so far. Part
// storage failures keep the record, mark the message parts-failed and are
// returned as an error once the batch is done.
func (c *Coordinator) FetchNew(ctx context.Context, mailbox Mailbox, since time.Time) ([]Outcome, error) {
	logger := c.logger.With("run", uuid.NewString())
	start := time.Now()
	defer func() { metricFetchDuration.Observe(time.Since(start).Seconds()) }()

	ids, err := mailbox.ListCandidateIDs(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	logger.Info("fetching messages", "candidates", len(ids), "since", since)

	outcomes := make([]Outcome, 0, len(ids))
	var partErrs []error
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}

		outcome, err := c.archive(ctx, logger, mailbox, id)
		if err != nil {
			return outcomes, err
		}
		outcomes = append(outcomes, outcome)
		recordOutcome(outcome)
		if outcome.Status == StatusPartsFailed {
			partErrs = append(partErrs, outcome.Err)
		}
	}

	logger.Info("fetch finished", summaryAttrs(outcomes)...)
	c.notify(ctx, logger, outcomes)

	if len(partErrs) > 0 {
		return outcomes, errors.Join(partErrs...)
	}
	return outcomes, nil
}

func (c *Coordinator) archive(ctx context.Context, logger *slog.Logger, mailbox Mailbox, id string) (Outcome, error) {
	logger = logger.With("id", id)

	exists, err := c.records.MessageExists(ctx, id)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to check message %s: %w", id, err)
	}
	if exists {
		logger.Debug("skipping archived message")
		return Outcome{ID: id, Status: StatusDuplicate}, nil
	}

	raw, err := mailbox.FetchRaw(ctx, id)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to fetch message %s: %w", id, err)
	}

	res, err := parser.Parse(id, raw)
	if err != nil {
		logger.Warn("failed to parse message", "error", err)
		return Outcome{ID: id, Status: StatusParseFailed, Err: err}, nil
	}

	if err := c.records.CreateMessage(ctx, res.Message); err != nil {
		if errors.Is(err, database.ErrAlreadyExists) {
			logger.Debug("message archived concurrently")
			return Outcome{ID: id, Status: StatusDuplicate}, nil
		}
		return Outcome{}, fmt.Errorf("failed to archive message %s: %w", id, err)
	}

	outcome := Outcome{ID: id, Status: StatusArchived, Subject: res.Message.SubjectOrEmpty()}
	var failed []error
	for _, part := range res.Parts {
		stored, err := c.attachments.Store(ctx, id, part.Filename, part.Payload)
		if err != nil {
			logger.Error("failed to store part", "filename", part.Filename, "error", err)
			failed = append(failed, fmt.Errorf("part %q: %w", part.Filename, err))
			continue
		}
		logger.Debug("part stored", "filename", stored, "kind", part.Kind, "size", len(part.Payload))
		outcome.Parts++
	}

	if len(failed) > 0 {
		outcome.Status = StatusPartsFailed
		outcome.Err = fmt.Errorf("message %s archived but %d of %d parts not stored: %w",
			id, len(failed), len(res.Parts), errors.Join(failed...))
		return outcome, nil
	}

	logger.Info("message archived", "subject", outcome.Subject, "parts", outcome.Parts)
	return outcome, nil
}

func (c *Coordinator) notify(ctx context.Context, logger *slog.Logger, outcomes []Outcome) {
	if c.notifier == nil || Count(outcomes, StatusArchived)+Count(outcomes, StatusPartsFailed) == 0 {
		return
	}
	if err := c.notifier.NotifyBatch(ctx, outcomes); err != nil {
		logger.Warn("failed to send notification", "error", err)
	}
}

// Count returns how many outcomes have the given status
func Count(outcomes []Outcome, status Status) int {
	n := 0
	for _, o := range outcomes {
		if o.Status == status {
			n++
		}
	}
	return n
}

func summaryAttrs(outcomes []Outcome) []any {
	return []any{
		"archived", Count(outcomes, StatusArchived),
		"duplicate", Count(outcomes, StatusDuplicate),
		"parse_failed", Count(outcomes, StatusParseFailed),
		"parts_failed", Count(outcomes, StatusPartsFailed),
	}
}

// SinceDate returns the start of the day lookback before now. IMAP SINCE
// compares dates only.
func SinceDate(now time.Time, lookback time.Duration) time.Time {
	t := now.Add(-lookback)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
