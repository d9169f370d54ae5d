package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mixelka/mailarchive/internal/query"
	"github.com/mixelka/mailarchive/pkg/models"
)

const messageColumns = `id, subject, fromheader, toheader, date, body, allheaders, comment`

// CreateMessage archives a message (ignores if already exists)
func (db *DB) CreateMessage(ctx context.Context, msg *models.ArchivedMessage) error {
	query := `
		INSERT OR IGNORE INTO mailarchive (` + messageColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := db.ExecContext(ctx, query,
		msg.ID,
		msg.Subject,
		msg.FromHeader,
		msg.ToHeader,
		msg.Date,
		msg.Body,
		msg.AllHeaders,
		msg.Comment,
	)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}

	// Check if row was actually inserted (not ignored due to duplicate)
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrAlreadyExists
	}
	return nil
}

// MessageExists checks whether a message with the given ID is archived
func (db *DB) MessageExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM mailarchive WHERE id = ?)`, id)
	if err != nil {
		return false, fmt.Errorf("failed to check message: %w", err)
	}
	return exists, nil
}

// GetMessageByID returns a message by ID
func (db *DB) GetMessageByID(ctx context.Context, id string) (*models.ArchivedMessage, error) {
	var msg models.ArchivedMessage
	query := `SELECT ` + messageColumns + ` FROM mailarchive WHERE id = ?`
	err := db.GetContext(ctx, &msg, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return &msg, nil
}

// ListMessages returns one page of messages, newest first. Pages start at 1.
func (db *DB) ListMessages(ctx context.Context, page, perPage int) ([]models.ArchivedMessage, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		return nil, fmt.Errorf("invalid page size %d", perPage)
	}

	var msgs []models.ArchivedMessage
	query := `
		SELECT ` + messageColumns + ` FROM mailarchive
		ORDER BY date DESC, id DESC
		LIMIT ? OFFSET ?
	`
	err := db.SelectContext(ctx, &msgs, query, perPage, perPage*(page-1))
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return msgs, nil
}

// CountMessages returns the number of archived messages
func (db *DB) CountMessages(ctx context.Context) (int, error) {
	var count int
	err := db.GetContext(ctx, &count, `SELECT COUNT(*) FROM mailarchive`)
	if err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return count, nil
}

// SearchMessages returns messages matching the predicate, newest first.
// A limit of 0 returns every match.
func (db *DB) SearchMessages(ctx context.Context, pred query.Node, limit int) ([]models.ArchivedMessage, error) {
	where, args, err := query.ToSQL(pred)
	if err != nil {
		return nil, fmt.Errorf("failed to compile search: %w", err)
	}

	stmt := `SELECT ` + messageColumns + ` FROM mailarchive WHERE ` + where + ` ORDER BY date DESC, id DESC`
	if limit > 0 {
		stmt += ` LIMIT ?`
		args = append(args, limit)
	}

	var msgs []models.ArchivedMessage
	if err := db.SelectContext(ctx, &msgs, stmt, args...); err != nil {
		return nil, fmt.Errorf("failed to search messages: %w", err)
	}
	return msgs, nil
}

// UpdateMessageComment replaces the comment of a message
func (db *DB) UpdateMessageComment(ctx context.Context, id, comment string) error {
	result, err := db.ExecContext(ctx, `UPDATE mailarchive SET comment = ? WHERE id = ?`, comment, id)
	if err != nil {
		return fmt.Errorf("failed to update comment: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetAdjacentMessages returns the messages archived just before (older) and
// just after (newer) the given one by date. Either may be nil.
func (db *DB) GetAdjacentMessages(ctx context.Context, id string) (older, newer *models.ArchivedMessage, err error) {
	msg, err := db.GetMessageByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	olderQuery := `
		SELECT ` + messageColumns + ` FROM mailarchive
		WHERE date < ? OR (date = ? AND id < ?)
		ORDER BY date DESC, id DESC
		LIMIT 1
	`
	newerQuery := `
		SELECT ` + messageColumns + ` FROM mailarchive
		WHERE date > ? OR (date = ? AND id > ?)
		ORDER BY date ASC, id ASC
		LIMIT 1
	`

	if older, err = db.getOptional(ctx, olderQuery, msg.Date, msg.Date, msg.ID); err != nil {
		return nil, nil, err
	}
	if newer, err = db.getOptional(ctx, newerQuery, msg.Date, msg.Date, msg.ID); err != nil {
		return nil, nil, err
	}
	return older, newer, nil
}

// ListAllMessageIDs returns every archived message ID
func (db *DB) ListAllMessageIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := db.SelectContext(ctx, &ids, `SELECT id FROM mailarchive ORDER BY id`); err != nil {
		return nil, fmt.Errorf("failed to list message ids: %w", err)
	}
	return ids, nil
}

func (db *DB) getOptional(ctx context.Context, query string, args ...any) (*models.ArchivedMessage, error) {
	var msg models.ArchivedMessage
	err := db.GetContext(ctx, &msg, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return &msg, nil
}
