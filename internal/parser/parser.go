package parser

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-message/textproto"

	"github.com/mixelka/mailarchive/internal/decode"
	"github.com/mixelka/mailarchive/pkg/models"
)

// ErrMalformedMessage is returned when raw bytes cannot become a record:
// the top-level header is unreadable or the Date header is missing or
// unparsable.
var ErrMalformedMessage = errors.New("malformed message")

// Result is everything extracted from one raw message.
type Result struct {
	Message *models.ArchivedMessage
	Parts   []models.MessagePart
	Tree    *Tree
}

// Parse turns raw message bytes into an archive record and its storable parts.
func Parse(id string, raw []byte) (*Result, error) {
	tree, err := buildTree(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	root := tree.Root()

	date, err := parseDate(root.Header.Get("Date"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	msg := &models.ArchivedMessage{
		ID:         id,
		Subject:    decodedField(root, "Subject"),
		FromHeader: decodedField(root, "From"),
		ToHeader:   decodedField(root, "To"),
		Date:       models.NewTimestamp(date),
		Body:       findBody(tree),
		AllHeaders: allHeaders(root),
		Comment:    "",
	}

	return &Result{
		Message: msg,
		Parts:   extractParts(tree),
		Tree:    tree,
	}, nil
}

func decodedField(n *Node, key string) *string {
	if !n.Header.Has(key) {
		return nil
	}
	v := unfold(n.Header.Get(key))
	return decode.Header(&v)
}

// findBody returns the first text/plain entity in document order. A
// base64-encoded message/rfc822 entity ends the search.
func findBody(tree *Tree) *string {
	rootCharset := decode.ResolveCharset(tree.Root().Header, decode.DefaultCharset)
	for i := range tree.Nodes {
		n := &tree.Nodes[i]
		if n.IsEncapsulatedBase64() {
			return nil
		}
		if n.ContentType() == "text/plain" {
			charset := decode.ResolveCharset(n.Header, rootCharset)
			payload := n.Payload()
			if payload == nil {
				payload = []byte{}
			}
			return decode.Body(payload, charset)
		}
	}
	return nil
}

func allHeaders(n *Node) string {
	var lines []string
	fields := n.Header.Fields()
	for fields.Next() {
		lines = append(lines, rawKey(fields)+": "+decode.HeaderString(unfold(fields.Value())))
	}
	return strings.Join(lines, "\n")
}

// rawKey returns the header name as it was written, falling back to the
// canonical key.
func rawKey(fields textproto.HeaderFields) string {
	raw, err := fields.Raw()
	if err != nil {
		return fields.Key()
	}
	name, _, ok := strings.Cut(string(raw), ":")
	if !ok {
		return fields.Key()
	}
	if name = strings.TrimSpace(name); name == "" {
		return fields.Key()
	}
	return name
}

func unfold(v string) string {
	v = strings.ReplaceAll(v, "\r\n", "")
	v = strings.ReplaceAll(v, "\n", "")
	return strings.TrimSpace(v)
}

var fallbackDateLayouts = []string{
	"Mon, 2 Jan 2006 15:04:05 -0700 (MST)",
	"Mon, 2 Jan 2006 15:04 -0700 (MST)",
	"Mon Jan _2 15:04:05 2006",
	"Mon Jan _2 15:04:05 -0700 2006",
	"2 Jan 2006 15:04:05",
	"Mon, 2 Jan 2006 15:04:05",
	time.RFC3339,
}

// obsoleteZones are the RFC 822 zone names. Parsing them as layouts would
// give them a zero offset.
var obsoleteZones = map[string]string{
	"UT":  "+0000",
	"GMT": "+0000",
	"Z":   "+0000",
	"EST": "-0500",
	"EDT": "-0400",
	"CST": "-0600",
	"CDT": "-0500",
	"MST": "-0700",
	"MDT": "-0600",
	"PST": "-0800",
	"PDT": "-0700",
}

// numericZone rewrites a trailing RFC 822 zone name, bare or in a comment,
// to its numeric offset. A name following a numeric offset is dropped.
func numericZone(v string) string {
	fields := strings.Fields(v)
	if len(fields) < 2 {
		return v
	}
	last := len(fields) - 1
	offset, ok := obsoleteZones[strings.ToUpper(strings.Trim(fields[last], "()"))]
	if !ok {
		return v
	}
	if isNumericOffset(fields[last-1]) {
		return strings.Join(fields[:last], " ")
	}
	fields[last] = offset
	return strings.Join(fields, " ")
}

func isNumericOffset(s string) bool {
	if len(s) != 5 || (s[0] != '+' && s[0] != '-') {
		return false
	}
	for _, c := range s[1:] {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// parseDate accepts RFC 5322 dates plus the common deviations seen in
// archived mail.
func parseDate(v string) (time.Time, error) {
	v = strings.Join(strings.Fields(unfold(v)), " ")
	if v == "" {
		return time.Time{}, errors.New("missing Date header")
	}

	v = numericZone(v)

	var h mail.Header
	h.Set("Date", v)
	if t, err := h.Date(); err == nil {
		return t.UTC(), nil
	}
	for _, layout := range fallbackDateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparsable Date header %q", v)
}
