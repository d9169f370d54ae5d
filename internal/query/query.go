package query

import (
	"errors"
	"fmt"
	"strings"
)

// OrKeyword separates clauses. It is matched case-sensitively.
const OrKeyword = "or"

// ErrUnknownField is returned when a predicate names a field with no column.
var ErrUnknownField = errors.New("unknown search field")

// Field is a searchable attribute of an archived message.
type Field string

const (
	FieldSubject    Field = "subject"
	FieldFrom       Field = "from"
	FieldTo         Field = "to"
	FieldBody       Field = "body"
	FieldAllHeaders Field = "allheaders"
	FieldComment    Field = "comment"
)

// DefaultFields are searched when the caller does not choose.
var DefaultFields = []Field{FieldBody, FieldAllHeaders, FieldComment}

// columns is the closed set of fields that may reach SQL.
var columns = map[Field]string{
	FieldSubject:    "subject",
	FieldFrom:       "fromheader",
	FieldTo:         "toheader",
	FieldBody:       "body",
	FieldAllHeaders: "allheaders",
	FieldComment:    "comment",
}

// ParseField resolves a field name, accepting column names as aliases.
func ParseField(name string) (Field, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for f, col := range columns {
		if name == string(f) || name == col {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownField, name)
}

// ParseFields resolves a comma separated field list.
func ParseFields(list string) ([]Field, error) {
	var fields []Field
	for _, name := range strings.Split(list, ",") {
		if strings.TrimSpace(name) == "" {
			continue
		}
		f, err := ParseField(name)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return fields, nil
}

// Group is a disjunction of clauses, each clause a conjunction of terms.
type Group [][]string

// Compile splits terms into clauses on the literal "or".
func Compile(terms []string) Group {
	group := Group{{}}
	for _, term := range terms {
		if term == OrKeyword {
			group = append(group, []string{})
			continue
		}
		last := len(group) - 1
		group[last] = append(group[last], term)
	}
	return group
}

// Empty reports whether no clause holds a term.
func (g Group) Empty() bool {
	for _, clause := range g {
		if len(clause) > 0 {
			return false
		}
	}
	return true
}

// Predicate builds the matching tree over fields. Every term must occur in
// at least one field for its clause to match; any matching clause matches
// the group. Empty clauses are dropped and a group without terms becomes
// None.
func (g Group) Predicate(fields ...Field) Node {
	if len(fields) == 0 {
		fields = DefaultFields
	}

	var clauses []Node
	for _, clause := range g {
		if len(clause) == 0 {
			continue
		}
		terms := make([]Node, 0, len(clause))
		for _, term := range clause {
			likes := make([]Node, 0, len(fields))
			for _, f := range fields {
				likes = append(likes, Like{Field: f, Term: term})
			}
			terms = append(terms, Or(likes))
		}
		clauses = append(clauses, And(terms))
	}

	if len(clauses) == 0 {
		return None{}
	}
	if len(clauses) == 1 {
		return clauses[0]
	}
	return Or(clauses)
}
