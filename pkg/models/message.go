package models

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// ArchivedMessage represents an archived email message
type ArchivedMessage struct {
	ID         string    `db:"id"`         // UID assigned by the source mailbox
	Subject    *string   `db:"subject"`    // nil when the header is absent
	FromHeader *string   `db:"fromheader"` // Decoded From header
	ToHeader   *string   `db:"toheader"`   // Decoded To header
	Date       Timestamp `db:"date"`       // From the Date header
	Body       *string   `db:"body"`       // First text/plain part, nil if none
	AllHeaders string    `db:"allheaders"` // "Name: Value" lines in original order
	Comment    string    `db:"comment"`    // User annotation
}

// SubjectOrEmpty returns the subject, or "" when the header was absent
func (m *ArchivedMessage) SubjectOrEmpty() string {
	return deref(m.Subject)
}

// FromOrEmpty returns the From header, or "" when it was absent
func (m *ArchivedMessage) FromOrEmpty() string {
	return deref(m.FromHeader)
}

// ToOrEmpty returns the To header, or "" when it was absent
func (m *ArchivedMessage) ToOrEmpty() string {
	return deref(m.ToHeader)
}

// BodyOrEmpty returns the body, or "" when no text/plain part was found
func (m *ArchivedMessage) BodyOrEmpty() string {
	return deref(m.Body)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Timestamp is a point in time persisted as integer microseconds since the epoch
type Timestamp struct {
	time.Time
}

// NewTimestamp wraps t, normalized to UTC
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC()}
}

// Value implements driver.Valuer
func (t Timestamp) Value() (driver.Value, error) {
	return t.UnixMicro(), nil
}

// Scan implements sql.Scanner
func (t *Timestamp) Scan(src any) error {
	switch v := src.(type) {
	case int64:
		t.Time = time.UnixMicro(v).UTC()
	case nil:
		t.Time = time.Time{}
	default:
		return fmt.Errorf("cannot scan %T into Timestamp", src)
	}
	return nil
}
