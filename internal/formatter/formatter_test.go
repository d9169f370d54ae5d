package formatter

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mixelka/mailarchive/internal/ingest"
	"github.com/mixelka/mailarchive/pkg/models"
)

func strPtr(s string) *string { return &s }

func testMessages() []models.ArchivedMessage {
	return []models.ArchivedMessage{
		{
			ID:         "7",
			Subject:    strPtr("Quarterly\n report"),
			FromHeader: strPtr("Alice <alice@example.org>"),
			Date:       models.NewTimestamp(time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)),
			Body:       strPtr("Numbers are\nattached."),
		},
		{
			ID:   "8",
			Date: models.NewTimestamp(time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC)),
		},
	}
}

func TestWriteList(t *testing.T) {
	f := NewTextFormatter()

	tests := []struct {
		name   string
		format string
		want   []string
	}{
		{"table", FormatTable, []string{"ID", "SUBJECT", "2024-03-01 09:30", "Quarterly report"}},
		{"list", FormatList, []string{"7  2024-03-01 09:30  Alice <alice@example.org>", "    Numbers are attached.", "8  2024-03-02 10:00"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sb strings.Builder
			if err := f.WriteList(&sb, testMessages(), tt.format); err != nil {
				t.Fatalf("WriteList() error = %v", err)
			}
			for _, want := range tt.want {
				if !strings.Contains(sb.String(), want) {
					t.Errorf("output missing %q:\n%s", want, sb.String())
				}
			}
		})
	}

	if err := f.WriteList(&strings.Builder{}, nil, "csv"); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("WriteList(csv) error = %v, want ErrUnknownFormat", err)
	}
}

func TestWriteMessage(t *testing.T) {
	msgs := testMessages()
	msgs[0].Comment = "follow up"

	var sb strings.Builder
	err := NewTextFormatter().WriteMessage(&sb, MessageView{
		Message:     &msgs[0],
		Attachments: []models.Attachment{{OwnerID: "7", Filename: "q1.pdf", Size: 2048}},
		Newer:       &msgs[1],
		Related:     []models.ArchivedMessage{msgs[1]},
	})
	if err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}

	out := sb.String()
	for _, want := range []string{"Subject: Quarterly\n report", "Comment: follow up", "Numbers are\nattached.\n", "q1.pdf", "2.0 kB", "Related:", "Newer:   8"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Older:") {
		t.Error("output shows an older message that does not exist")
	}

	sb.Reset()
	if err := NewTextFormatter().WriteMessage(&sb, MessageView{Message: &msgs[1]}); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}
	if !strings.Contains(sb.String(), "(no text body)") {
		t.Errorf("message without body = %q", sb.String())
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in     string
		maxLen int
		want   string
	}{
		{"short", 10, "short"},
		{"ровно пять", 5, "ровн…"},
		{"abcdef", 3, "ab…"},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.maxLen); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.maxLen, got, tt.want)
		}
	}
}

func TestFormatBatch(t *testing.T) {
	outcomes := []ingest.Outcome{
		{ID: "1", Status: ingest.StatusArchived, Subject: "a <b> & c", Parts: 2},
		{ID: "2", Status: ingest.StatusDuplicate},
		{ID: "3", Status: ingest.StatusParseFailed},
		{ID: "4", Status: ingest.StatusPartsFailed, Subject: "broken", Parts: 1},
	}

	got := FormatBatch(outcomes)
	for _, want := range []string{
		"<b>Archived 2 messages</b>",
		"<i>1 could not be parsed</i>",
		"<code>1</code> a &lt;b&gt; &amp; c (2 parts)",
		"<code>4</code> broken (1 part) <b>parts failed</b>",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("FormatBatch() missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "<code>2</code>") {
		t.Error("duplicates should not be listed")
	}
}

func TestFormatBatch_Limit(t *testing.T) {
	var outcomes []ingest.Outcome
	for i := 0; i < 200; i++ {
		outcomes = append(outcomes, ingest.Outcome{
			ID:      strings.Repeat("x", 10),
			Status:  ingest.StatusArchived,
			Subject: strings.Repeat("s", 60),
		})
	}
	got := FormatBatch(outcomes)
	if len(got) > maxBatchLength {
		t.Errorf("len = %d, want at most %d", len(got), maxBatchLength)
	}
	if !strings.Contains(got, "more</i>") {
		t.Error("truncated summary should say how many are left")
	}
}
