package archive

import (
	"context"
	"errors"
	"testing"

	"github.com/mixelka/mailarchive/internal/query"
	"github.com/mixelka/mailarchive/pkg/models"
)

type memSearcher struct {
	msgs     []models.ArchivedMessage
	searches int
	err      error
}

func (s *memSearcher) SearchMessages(_ context.Context, pred query.Node, _ int) ([]models.ArchivedMessage, error) {
	s.searches++
	if s.err != nil {
		return nil, s.err
	}
	var out []models.ArchivedMessage
	for _, m := range s.msgs {
		if query.Match(pred, query.FieldMap{query.FieldAllHeaders: m.AllHeaders}) {
			out = append(out, m)
		}
	}
	return out, nil
}

func TestRelated(t *testing.T) {
	s := &memSearcher{msgs: []models.ArchivedMessage{
		{ID: "c", AllHeaders: "Message-ID: <root@example.org>\n"},
		{ID: "a", AllHeaders: "Message-ID: <reply@example.org>\nIn-Reply-To: <root@example.org>\n"},
		{ID: "b", AllHeaders: "Message-ID: <second@example.org>\nReferences: <root@example.org> <reply@example.org>\n"},
		{ID: "z", AllHeaders: "Message-ID: <other@example.org>\n"},
	}}

	got, err := Related(context.Background(), s, &s.msgs[1])
	if err != nil {
		t.Fatalf("Related() error = %v", err)
	}
	if len(got) != 2 || got[0].ID != "b" || got[1].ID != "c" {
		t.Errorf("Related() = %v, want [b c]", got)
	}
	if s.searches != 2 {
		t.Errorf("searches = %d, want one per identifier", s.searches)
	}
}

func TestRelated_NoReferences(t *testing.T) {
	s := &memSearcher{}
	got, err := Related(context.Background(), s, &models.ArchivedMessage{ID: "x", AllHeaders: "Subject: hi\n"})
	if err != nil || len(got) != 0 || s.searches != 0 {
		t.Errorf("Related() = %v, %v after %d searches", got, err, s.searches)
	}
}

func TestRelated_SearchError(t *testing.T) {
	searchErr := errors.New("database is locked")
	s := &memSearcher{err: searchErr}
	_, err := Related(context.Background(), s, &models.ArchivedMessage{ID: "x", AllHeaders: "Message-ID: <m@x>\n"})
	if !errors.Is(err, searchErr) {
		t.Errorf("Related() error = %v, want search error", err)
	}
}
