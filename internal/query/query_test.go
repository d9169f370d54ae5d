package query

import (
	"errors"
	"reflect"
	"testing"
)

func TestCompile(t *testing.T) {
	tests := []struct {
		name  string
		terms []string
		want  Group
	}{
		{"empty", nil, Group{{}}},
		{"single", []string{"a"}, Group{{"a"}}},
		{"and", []string{"a", "b"}, Group{{"a", "b"}}},
		{"or", []string{"a", "b", "or", "c"}, Group{{"a", "b"}, {"c"}}},
		{"uppercase OR is a term", []string{"a", "OR", "c"}, Group{{"a", "OR", "c"}}},
		{"leading or", []string{"or", "a"}, Group{{}, {"a"}}},
		{"trailing or", []string{"a", "or"}, Group{{"a"}, {}}},
		{"double or", []string{"a", "or", "or", "b"}, Group{{"a"}, {}, {"b"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compile(tt.terms)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Compile(%v) = %v, want %v", tt.terms, got, tt.want)
			}
		})
	}
}

func TestPredicate_Shape(t *testing.T) {
	got := Compile([]string{"a", "b", "or", "c"}).Predicate(FieldBody, FieldAllHeaders)
	want := Or{
		And{
			Or{Like{FieldBody, "a"}, Like{FieldAllHeaders, "a"}},
			Or{Like{FieldBody, "b"}, Like{FieldAllHeaders, "b"}},
		},
		And{
			Or{Like{FieldBody, "c"}, Like{FieldAllHeaders, "c"}},
		},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Predicate() = %#v, want %#v", got, want)
	}
}

func TestPredicate_EmptyGroupMatchesNothing(t *testing.T) {
	for _, terms := range [][]string{nil, {"or"}, {"or", "or"}} {
		n := Compile(terms).Predicate()
		if _, ok := n.(None); !ok {
			t.Errorf("Predicate(%v) = %#v, want None", terms, n)
		}
		if Match(n, FieldMap{FieldBody: "anything"}) {
			t.Errorf("None matched a record for %v", terms)
		}
	}
}

func TestMatch(t *testing.T) {
	pred := Compile([]string{"a", "b", "or", "c"}).Predicate(FieldBody, FieldAllHeaders)

	tests := []struct {
		name string
		rec  FieldMap
		want bool
	}{
		{"body has a and b", FieldMap{FieldBody: "xAx yBy"}, true},
		{"a and b across fields", FieldMap{FieldBody: "alpha", FieldAllHeaders: "beta"}, true},
		{"headers has c", FieldMap{FieldAllHeaders: "Subject: C"}, true},
		{"only a", FieldMap{FieldBody: "alpha"}, false},
		{"c in comment is not searched", FieldMap{FieldComment: "c"}, false},
		{"nothing", FieldMap{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Match(pred, tt.rec); got != tt.want {
				t.Errorf("Match() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestToSQL(t *testing.T) {
	where, args, err := ToSQL(Compile([]string{"a", "or", "50%_off"}).Predicate(FieldBody, FieldComment))
	if err != nil {
		t.Fatalf("ToSQL() error = %v", err)
	}

	wantWhere := `((LOWER(COALESCE(body, '')) LIKE ? ESCAPE '\' OR LOWER(COALESCE(comment, '')) LIKE ? ESCAPE '\')) OR ` +
		`((LOWER(COALESCE(body, '')) LIKE ? ESCAPE '\' OR LOWER(COALESCE(comment, '')) LIKE ? ESCAPE '\'))`
	if where != "("+wantWhere+")" {
		t.Errorf("where = %s\nwant   (%s)", where, wantWhere)
	}

	wantArgs := []any{"%a%", "%a%", `%50\%\_off%`, `%50\%\_off%`}
	if !reflect.DeepEqual(args, wantArgs) {
		t.Errorf("args = %v, want %v", args, wantArgs)
	}
}

func TestToSQL_EscapesAndLowercases(t *testing.T) {
	_, args, err := ToSQL(Like{Field: FieldSubject, Term: `C:\Temp`})
	if err != nil {
		t.Fatalf("ToSQL() error = %v", err)
	}
	if args[0] != `%c:\\temp%` {
		t.Errorf("arg = %q", args[0])
	}
}

func TestToSQL_None(t *testing.T) {
	where, args, err := ToSQL(None{})
	if err != nil || where != "0 = 1" || len(args) != 0 {
		t.Errorf("ToSQL(None) = %q, %v, %v", where, args, err)
	}
}

func TestToSQL_UnknownField(t *testing.T) {
	_, _, err := ToSQL(Like{Field: "id; DROP TABLE mailarchive", Term: "x"})
	if !errors.Is(err, ErrUnknownField) {
		t.Errorf("ToSQL() error = %v, want ErrUnknownField", err)
	}
}

func TestParseFields(t *testing.T) {
	got, err := ParseFields("body, fromheader,Comment")
	if err != nil {
		t.Fatalf("ParseFields() error = %v", err)
	}
	want := []Field{FieldBody, FieldFrom, FieldComment}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseFields() = %v, want %v", got, want)
	}

	if _, err := ParseFields("body,nope"); !errors.Is(err, ErrUnknownField) {
		t.Errorf("ParseFields() error = %v, want ErrUnknownField", err)
	}
}

func TestSplit(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"  a  b ", []string{"a", "b"}},
		{`"hello world" or x`, []string{"hello world", "or", "x"}},
		{`it's fine`, nil},
		{`'a "b"' c`, []string{`a "b"`, "c"}},
		{`a\ b`, []string{"a b"}},
		{`""`, []string{""}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Split(tt.in)
			if tt.want == nil && tt.in != "" {
				if !errors.Is(err, ErrUnterminatedQuote) {
					t.Errorf("Split(%q) error = %v, want ErrUnterminatedQuote", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Split(%q) error = %v", tt.in, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Split(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
