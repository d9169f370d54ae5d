package models

// PartKind classifies a storable message part
type PartKind string

const (
	PartAttachment      PartKind = "attachment"
	PartInlineReference PartKind = "inline-reference"
)

// MessagePart is a part extracted from a message for the attachment store
type MessagePart struct {
	Index       int      // Zero-based traversal index in the MIME tree
	Filename    string   // Normalized filename
	Kind        PartKind // attachment or inline-reference
	ContentType string   // Lower-case media type, e.g. image/png
	ContentID   string   // Content-ID without angle brackets
	Payload     []byte   // Decoded payload
	Referenced  bool     // An HTML part of the message links to it via cid:
}

// Attachment describes a stored attachment
type Attachment struct {
	OwnerID   string    `db:"owner_id"` // ArchivedMessage ID
	Filename  string    `db:"filename"`
	Size      int64     `db:"size"`
	CreatedAt Timestamp `db:"created_at"`
}
