package telegram

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/mixelka/mailarchive/internal/formatter"
	"github.com/mixelka/mailarchive/internal/ingest"
)

type sender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// Notifier posts fetch summaries to a Telegram chat
type Notifier struct {
	bot     sender
	chatID  int64
	topicID int
	logger  *slog.Logger
}

// NotifierConfig holds the chat a notifier posts to
type NotifierConfig struct {
	Token   string
	ChatID  int64
	TopicID int
}

// NewNotifier creates a new Telegram notifier
func NewNotifier(cfg NotifierConfig, logger *slog.Logger) (*Notifier, error) {
	if cfg.ChatID == 0 {
		return nil, fmt.Errorf("telegram chat id is required")
	}

	tgBot, err := bot.New(cfg.Token, bot.WithSkipGetMe())
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	return newNotifier(tgBot, cfg, logger), nil
}

func newNotifier(s sender, cfg NotifierConfig, logger *slog.Logger) *Notifier {
	return &Notifier{
		bot:     s,
		chatID:  cfg.ChatID,
		topicID: cfg.TopicID,
		logger:  logger.With("component", "telegram_notifier"),
	}
}

// NotifyBatch sends one summary message for a fetch
func (n *Notifier) NotifyBatch(ctx context.Context, outcomes []ingest.Outcome) error {
	text := formatter.FormatBatch(outcomes)
	if _, err := n.sendMessage(ctx, text); err != nil {
		return fmt.Errorf("failed to send summary: %w", err)
	}
	n.logger.Debug("summary sent", "chat_id", n.chatID, "outcomes", len(outcomes))
	return nil
}

// sendMessage sends a message to the configured chat and topic
func (n *Notifier) sendMessage(ctx context.Context, text string) (*models.Message, error) {
	params := &bot.SendMessageParams{
		ChatID:    n.chatID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	}

	if n.topicID != 0 {
		params.MessageThreadID = n.topicID
	}

	return n.bot.SendMessage(ctx, params)
}
