package query

import (
	"fmt"
	"strings"
)

// Node is a predicate over a message's searchable fields.
type Node interface {
	node()
}

// And matches when every child matches.
type And []Node

// Or matches when any child matches.
type Or []Node

// Like matches when Field contains Term, ignoring case. Term is literal.
type Like struct {
	Field Field
	Term  string
}

// None matches nothing.
type None struct{}

func (And) node()  {}
func (Or) node()   {}
func (Like) node() {}
func (None) node() {}

// Fields gives Match access to a record's searchable text.
type Fields interface {
	FieldValue(f Field) string
}

// FieldMap is a Fields backed by a map.
type FieldMap map[Field]string

// FieldValue implements Fields.
func (m FieldMap) FieldValue(f Field) string {
	return m[f]
}

// Match evaluates n against rec the way ToSQL would in the store.
func Match(n Node, rec Fields) bool {
	switch v := n.(type) {
	case And:
		for _, c := range v {
			if !Match(c, rec) {
				return false
			}
		}
		return true
	case Or:
		for _, c := range v {
			if Match(c, rec) {
				return true
			}
		}
		return false
	case Like:
		return strings.Contains(strings.ToLower(rec.FieldValue(v.Field)), strings.ToLower(v.Term))
	}
	return false
}

// ToSQL lowers n into a WHERE fragment with bound arguments. Terms never
// appear in the SQL text.
func ToSQL(n Node) (string, []any, error) {
	var sb strings.Builder
	var args []any
	if err := writeSQL(&sb, &args, n); err != nil {
		return "", nil, err
	}
	return sb.String(), args, nil
}

func writeSQL(sb *strings.Builder, args *[]any, n Node) error {
	switch v := n.(type) {
	case And:
		return writeJoined(sb, args, []Node(v), " AND ", "1 = 1")
	case Or:
		return writeJoined(sb, args, []Node(v), " OR ", "0 = 1")
	case Like:
		col, ok := columns[v.Field]
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownField, v.Field)
		}
		sb.WriteString("LOWER(COALESCE(" + col + ", '')) LIKE ? ESCAPE '\\'")
		*args = append(*args, "%"+escapeLike(strings.ToLower(v.Term))+"%")
		return nil
	case None:
		sb.WriteString("0 = 1")
		return nil
	}
	return fmt.Errorf("unsupported predicate node %T", n)
}

func writeJoined(sb *strings.Builder, args *[]any, nodes []Node, sep, empty string) error {
	if len(nodes) == 0 {
		sb.WriteString(empty)
		return nil
	}
	sb.WriteByte('(')
	for i, c := range nodes {
		if i > 0 {
			sb.WriteString(sep)
		}
		if err := writeSQL(sb, args, c); err != nil {
			return err
		}
	}
	sb.WriteByte(')')
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
