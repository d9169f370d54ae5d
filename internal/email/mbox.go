package email

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	mboxlib "github.com/emersion/go-mbox"
)

// MboxMailbox serves the messages of an mbox file. Message ids are the
// hex SHA-256 of the raw message, so importing a file twice is harmless.
type MboxMailbox struct {
	path     string
	ids      []string
	messages map[string][]byte
	logger   *slog.Logger
}

// OpenMbox reads every message of the mbox file at path
func OpenMbox(path string, logger *slog.Logger) (*MboxMailbox, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open mbox: %w", err)
	}
	defer file.Close()

	return ReadMbox(path, file, logger)
}

// ReadMbox reads every message from r. name is used in logs only.
func ReadMbox(name string, r io.Reader, logger *slog.Logger) (*MboxMailbox, error) {
	m := &MboxMailbox{
		path:     name,
		messages: make(map[string][]byte),
		logger:   logger.With("component", "mbox", "path", name),
	}

	reader := mboxlib.NewReader(r)
	for idx := 0; ; idx++ {
		msgReader, err := reader.NextMessage()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("message %d: %w", idx, err)
		}

		raw, err := io.ReadAll(msgReader)
		if err != nil {
			return nil, fmt.Errorf("message %d read: %w", idx, err)
		}

		id := MessageHash(raw)
		if _, dup := m.messages[id]; dup {
			m.logger.Debug("duplicate message in mbox", "index", idx, "id", id)
			continue
		}
		m.ids = append(m.ids, id)
		m.messages[id] = raw
	}

	m.logger.Info("mbox loaded", "messages", len(m.ids))
	return m, nil
}

// MessageHash returns the id an mbox message is archived under
func MessageHash(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// ListCandidateIDs returns every message in file order. An mbox file has
// no seen flags, so since does not narrow the result.
func (m *MboxMailbox) ListCandidateIDs(ctx context.Context, since time.Time) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]string(nil), m.ids...), nil
}

// FetchRaw returns the raw message with the given id
func (m *MboxMailbox) FetchRaw(ctx context.Context, id string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, ok := m.messages[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMessageNotFound, id)
	}
	return raw, nil
}
