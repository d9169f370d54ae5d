package query

import (
	"errors"
	"strings"
	"unicode"
)

// ErrUnterminatedQuote is returned by Split for an unbalanced quote.
var ErrUnterminatedQuote = errors.New("unterminated quote")

// Split breaks a query string into terms on whitespace. Single and double
// quotes group words into one term; a backslash outside single quotes
// escapes the next character.
func Split(s string) ([]string, error) {
	var (
		terms   []string
		cur     strings.Builder
		inTerm  bool
		quote   rune
		escaped bool
	)

	for _, r := range s {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\' && quote != '\'':
			escaped = true
			inTerm = true
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '"' || r == '\'':
			quote = r
			inTerm = true
		case unicode.IsSpace(r):
			if inTerm {
				terms = append(terms, cur.String())
				cur.Reset()
				inTerm = false
			}
		default:
			cur.WriteRune(r)
			inTerm = true
		}
	}

	if quote != 0 || escaped {
		return nil, ErrUnterminatedQuote
	}
	if inTerm {
		terms = append(terms, cur.String())
	}
	return terms, nil
}
