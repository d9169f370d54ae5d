package parser

import (
	"regexp"
	"strings"
)

// referenceHeaders are the header lines that identify a message or the
// messages it answers.
var referenceHeaders = []string{"message-id", "in-reply-to", "references"}

// ReferenceExtractor finds message identifiers in reconstructed headers.
type ReferenceExtractor struct {
	idRegex *regexp.Regexp
}

// NewReferenceExtractor creates a new reference extractor
func NewReferenceExtractor() *ReferenceExtractor {
	return &ReferenceExtractor{
		idRegex: regexp.MustCompile(`<([^<>\s]+)>`),
	}
}

// Extract returns the unique message identifiers, without angle brackets,
// in the order they appear in Message-ID, In-Reply-To and References lines.
func (e *ReferenceExtractor) Extract(allHeaders string) []string {
	var ids []string
	seen := make(map[string]bool)

	for _, line := range strings.Split(allHeaders, "\n") {
		name, value, ok := strings.Cut(line, ":")
		if !ok || !isReferenceHeader(name) {
			continue
		}
		for _, match := range e.idRegex.FindAllStringSubmatch(value, -1) {
			id := strings.TrimSpace(match[1])
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			ids = append(ids, id)
		}
	}

	return ids
}

func isReferenceHeader(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, h := range referenceHeaders {
		if name == h {
			return true
		}
	}
	return false
}
