package decode

import (
	"bytes"
	"io"
	"mime"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/emersion/go-message"
	gmcharset "github.com/emersion/go-message/charset"
	"golang.org/x/text/encoding/unicode"
)

// DefaultCharset is used when neither the part nor the caller names one.
const DefaultCharset = "us-ascii"

var wordDecoder = &mime.WordDecoder{CharsetReader: charsetReader}

// charsetReader never fails: unknown charsets degrade to lossy ASCII.
func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	b, err := io.ReadAll(input)
	if err != nil {
		return nil, err
	}
	return strings.NewReader(Bytes(b, charset)), nil
}

// Header decodes RFC 2047 encoded-words in a raw header value and joins
// them with the surrounding plain text. A nil value stays nil.
func Header(raw *string) *string {
	if raw == nil {
		return nil
	}
	s := HeaderString(*raw)
	return &s
}

// HeaderString is Header for values known to be present.
func HeaderString(raw string) string {
	decoded, err := wordDecoder.DecodeHeader(raw)
	if err != nil {
		decoded = raw
	}
	return validUTF8([]byte(decoded))
}

// Body decodes payload bytes with the named charset. A nil payload stays nil.
func Body(b []byte, charset string) *string {
	if b == nil {
		return nil
	}
	s := Bytes(b, charset)
	return &s
}

// Bytes decodes b with the named charset, replacing anything undecodable
// with U+FFFD.
func Bytes(b []byte, charset string) string {
	switch strings.ToLower(strings.TrimSpace(charset)) {
	case "", "us-ascii", "ascii", "ansi_x3.4-1968", "iso646-us", "646":
		return asciiLossy(b)
	case "utf-8", "utf8":
		return validUTF8(b)
	}

	r, err := gmcharset.Reader(charset, bytes.NewReader(b))
	if err != nil {
		return asciiLossy(b)
	}
	out, err := io.ReadAll(r)
	if err != nil && len(out) == 0 {
		return asciiLossy(b)
	}
	return validUTF8(out)
}

var looseCharset = regexp.MustCompile(`(?i)charset\s*=\s*"?([A-Za-z0-9._:+\-]+)`)

// ResolveCharset picks the charset for a part: the Content-Type charset
// parameter, then a charset attribute recovered from a Content-Type value
// that does not parse cleanly, then fallback, then us-ascii.
func ResolveCharset(h message.Header, fallback string) string {
	if _, params, err := h.ContentType(); err == nil {
		if cs := params["charset"]; cs != "" {
			return strings.ToLower(cs)
		}
	}
	if m := looseCharset.FindStringSubmatch(h.Get("Content-Type")); m != nil {
		return strings.ToLower(m[1])
	}
	if fallback != "" {
		return strings.ToLower(fallback)
	}
	return DefaultCharset
}

func asciiLossy(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b))
	for _, c := range b {
		if c >= utf8.RuneSelf {
			sb.WriteRune(utf8.RuneError)
			continue
		}
		sb.WriteByte(c)
	}
	return sb.String()
}

func validUTF8(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	out, err := unicode.UTF8.NewDecoder().Bytes(b)
	if err != nil {
		return strings.ToValidUTF8(string(b), "�")
	}
	return string(out)
}
