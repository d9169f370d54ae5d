package database

import (
	"context"
	"fmt"
	"time"

	"github.com/mixelka/mailarchive/pkg/models"
)

// CreateAttachment records a stored attachment
func (db *DB) CreateAttachment(ctx context.Context, att *models.Attachment) error {
	query := `
		INSERT OR IGNORE INTO attachments (owner_id, filename, size, created_at)
		VALUES (?, ?, ?, ?)
	`
	now := models.NewTimestamp(time.Now())
	result, err := db.ExecContext(ctx, query, att.OwnerID, att.Filename, att.Size, now)
	if err != nil {
		return fmt.Errorf("failed to create attachment: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrAlreadyExists
	}

	att.CreatedAt = now
	return nil
}

// ListAttachments returns the attachments of a message, in storage order
func (db *DB) ListAttachments(ctx context.Context, ownerID string) ([]models.Attachment, error) {
	var atts []models.Attachment
	query := `
		SELECT owner_id, filename, size, created_at FROM attachments
		WHERE owner_id = ?
		ORDER BY created_at, rowid
	`
	if err := db.SelectContext(ctx, &atts, query, ownerID); err != nil {
		return nil, fmt.Errorf("failed to list attachments: %w", err)
	}
	return atts, nil
}

// AttachmentExists checks whether a message already has an attachment with this name
func (db *DB) AttachmentExists(ctx context.Context, ownerID, filename string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM attachments WHERE owner_id = ? AND filename = ?)`
	if err := db.GetContext(ctx, &exists, query, ownerID, filename); err != nil {
		return false, fmt.Errorf("failed to check attachment: %w", err)
	}
	return exists, nil
}

// RenameAttachment changes the recorded name of an attachment
func (db *DB) RenameAttachment(ctx context.Context, ownerID, oldName, newName string) error {
	query := `UPDATE attachments SET filename = ? WHERE owner_id = ? AND filename = ?`
	result, err := db.ExecContext(ctx, query, newName, ownerID, oldName)
	if err != nil {
		return fmt.Errorf("failed to rename attachment: %w", err)
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
