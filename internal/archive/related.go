package archive

import (
	"context"
	"fmt"
	"sort"

	"github.com/mixelka/mailarchive/internal/parser"
	"github.com/mixelka/mailarchive/internal/query"
	"github.com/mixelka/mailarchive/pkg/models"
)

// Searcher runs compiled predicates against the archive
type Searcher interface {
	SearchMessages(ctx context.Context, pred query.Node, limit int) ([]models.ArchivedMessage, error)
}

// Related returns the other archived messages whose headers carry one of
// the message identifiers of msg, sorted by id.
func Related(ctx context.Context, s Searcher, msg *models.ArchivedMessage) ([]models.ArchivedMessage, error) {
	refs := parser.NewReferenceExtractor().Extract(msg.AllHeaders)

	found := make(map[string]models.ArchivedMessage)
	for _, ref := range refs {
		pred := query.Compile([]string{ref}).Predicate(query.FieldAllHeaders)
		msgs, err := s.SearchMessages(ctx, pred, 0)
		if err != nil {
			return nil, fmt.Errorf("failed to search references of %s: %w", msg.ID, err)
		}
		for _, m := range msgs {
			if m.ID != msg.ID {
				found[m.ID] = m
			}
		}
	}

	related := make([]models.ArchivedMessage, 0, len(found))
	for _, m := range found {
		related = append(related, m)
	}
	sort.Slice(related, func(i, j int) bool { return related[i].ID < related[j].ID })
	return related, nil
}
