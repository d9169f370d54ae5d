package parser

import (
	"errors"
	"fmt"
	"mime"
	"regexp"
	"strings"

	"github.com/mixelka/mailarchive/internal/decode"
	"github.com/mixelka/mailarchive/internal/filename"
	"github.com/mixelka/mailarchive/pkg/models"
)

// InvalidEncapsulatedPayload replaces the payload of a message/rfc822
// attachment that was sent base64-encoded.
const InvalidEncapsulatedPayload = "Invalid attachment: message/rfc822 parts can not be base64 encoded!"

// extensions maps media types to the file extension used for synthesized
// part names.
var extensions = map[string]string{
	"application/json":              "json",
	"application/msword":            "doc",
	"application/octet-stream":      "bin",
	"application/pdf":               "pdf",
	"application/pgp-signature":     "asc",
	"application/pkcs7-signature":   "p7s",
	"application/postscript":        "ps",
	"application/rtf":               "rtf",
	"application/vnd.ms-excel":      "xls",
	"application/vnd.ms-powerpoint": "ppt",
	"application/x-gzip":            "gz",
	"application/x-tar":             "tar",
	"application/xml":               "xml",
	"application/zip":               "zip",
	"audio/mpeg":                    "mp3",
	"audio/wav":                     "wav",
	"image/bmp":                     "bmp",
	"image/gif":                     "gif",
	"image/jpeg":                    "jpeg",
	"image/png":                     "png",
	"image/svg+xml":                 "svg",
	"image/tiff":                    "tiff",
	"image/webp":                    "webp",
	"message/rfc822":                "eml",
	"text/calendar":                 "ics",
	"text/css":                      "css",
	"text/csv":                      "csv",
	"text/html":                     "html",
	"text/markdown":                 "md",
	"text/plain":                    "txt",
	"text/x-diff":                   "diff",
	"text/x-patch":                  "patch",
	"text/xml":                      "xml",
	"video/mp4":                     "mp4",
	"video/mpeg":                    "mpeg",

	"application/vnd.openxmlformats-officedocument.presentationml.presentation": "pptx",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":         "xlsx",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   "docx",
	"application/vnd.oasis.opendocument.text":                                   "odt",
	"application/vnd.oasis.opendocument.spreadsheet":                            "ods",
}

// extensionFor resolves an extension through the table, then the subtype,
// then the raw type.
func extensionFor(contentType string) string {
	if ext, ok := extensions[contentType]; ok {
		return ext
	}
	if i := strings.LastIndex(contentType, "/"); i >= 0 {
		if sub := contentType[i+1:]; sub != "" {
			return sub
		}
	}
	if contentType != "" {
		return contentType
	}
	return "_"
}

func extractParts(tree *Tree) []models.MessagePart {
	referenced := referencedContentIDs(tree)

	var parts []models.MessagePart
	for i := range tree.Nodes {
		n := &tree.Nodes[i]
		ct := n.ContentType()

		switch {
		case dispositionType(n) == "attachment":
			part := models.MessagePart{
				Index:       i,
				Filename:    partFilename(n, i),
				Kind:        models.PartAttachment,
				ContentType: ct,
				ContentID:   n.ContentID(),
			}
			if n.IsEncapsulatedBase64() {
				part.Payload = []byte(InvalidEncapsulatedPayload)
			} else {
				part.Payload = n.Payload()
			}
			part.Referenced = part.ContentID != "" && referenced[part.ContentID]
			parts = append(parts, part)
		case n.ContentID() != "":
			cid := n.ContentID()
			parts = append(parts, models.MessagePart{
				Index:       i,
				Filename:    partFilename(n, i),
				Kind:        models.PartInlineReference,
				ContentType: ct,
				ContentID:   cid,
				Payload:     n.Payload(),
				Referenced:  referenced[cid],
			})
		}
	}
	return parts
}

func dispositionType(n *Node) string {
	cd := strings.TrimSpace(n.Header.Get("Content-Disposition"))
	if cd == "" {
		return ""
	}
	token, _, _ := strings.Cut(cd, ";")
	return strings.ToLower(strings.TrimSpace(token))
}

// partFilename uses the declared filename when one survives normalization
// and synthesizes unnamed-part-{index}.{ext} otherwise.
func partFilename(n *Node, index int) string {
	if raw, ok := declaredFilename(n); ok {
		if name := filename.Normalize(decode.HeaderString(raw)); name != "" {
			return name
		}
	}
	return filename.Normalize(fmt.Sprintf("unnamed-part-%d.%s", index, extensionFor(n.ContentType())))
}

var looseParam = map[string]*regexp.Regexp{
	"filename": regexp.MustCompile(`(?i)(?:^|;)\s*filename\s*=\s*(?:"([^"]*)"|([^;]+))`),
	"name":     regexp.MustCompile(`(?i)(?:^|;)\s*name\s*=\s*(?:"([^"]*)"|([^;]+))`),
}

func declaredFilename(n *Node) (string, bool) {
	if v, ok := headerParam(n.Header.Get("Content-Disposition"), "filename"); ok {
		return v, true
	}
	return headerParam(n.Header.Get("Content-Type"), "name")
}

// headerParam reads a parameter, including RFC 2231 continuations, and
// falls back to a lenient scan when the header value does not parse.
func headerParam(value, key string) (string, bool) {
	if value == "" {
		return "", false
	}
	_, params, err := mime.ParseMediaType(value)
	if err == nil || errors.Is(err, mime.ErrInvalidMediaParameter) {
		if v, ok := params[key]; ok {
			return v, true
		}
		if err == nil {
			return "", false
		}
	}
	m := looseParam[key].FindStringSubmatch(value)
	if m == nil {
		return "", false
	}
	if m[1] != "" {
		return m[1], true
	}
	return strings.TrimSpace(m[2]), true
}
