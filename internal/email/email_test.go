package email

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-imap"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestResolveServer(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		username   string
		want       string
		wantErr    bool
	}{
		{"configured with port", "mail.example.org:143", "x@example.org", "mail.example.org:143", false},
		{"configured without port", "mail.example.org", "", "mail.example.org:993", false},
		{"known provider", "", "Someone@GMail.com", "imap.gmail.com:993", false},
		{"bridge provider", "", "me@proton.me", "127.0.0.1:1143", false},
		{"invalid username", "", "not-an-address", "", true},
		{"empty domain", "", "user@", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveServer(tt.configured, tt.username)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ResolveServer() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ResolveServer() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSearchCriteria(t *testing.T) {
	since := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	c := SearchCriteria(since)

	if len(c.Or) != 1 {
		t.Fatalf("Or = %d pairs, want 1", len(c.Or))
	}
	unseen, recent := c.Or[0][0], c.Or[0][1]
	if len(unseen.WithoutFlags) != 1 || unseen.WithoutFlags[0] != imap.SeenFlag {
		t.Errorf("unseen criteria = %+v", unseen)
	}
	if !recent.Since.Equal(since) {
		t.Errorf("since = %v, want %v", recent.Since, since)
	}
}

const testMbox = "From alice@example.org Mon Jan  1 00:00:00 2024\n" +
	"Subject: one\n" +
	"Date: Mon, 01 Jan 2024 00:00:00 +0000\n" +
	"\n" +
	"first\n" +
	"\n" +
	"From bob@example.org Tue Jan  2 00:00:00 2024\n" +
	"Subject: two\n" +
	"Date: Tue, 02 Jan 2024 00:00:00 +0000\n" +
	"\n" +
	"second\n" +
	"\n" +
	"From alice@example.org Mon Jan  1 00:00:00 2024\n" +
	"Subject: one\n" +
	"Date: Mon, 01 Jan 2024 00:00:00 +0000\n" +
	"\n" +
	"first\n" +
	"\n"

func TestMboxMailbox(t *testing.T) {
	ctx := context.Background()
	m, err := ReadMbox("test.mbox", strings.NewReader(testMbox), discardLogger())
	if err != nil {
		t.Fatalf("ReadMbox() error = %v", err)
	}

	ids, err := m.ListCandidateIDs(ctx, time.Now())
	if err != nil {
		t.Fatalf("ListCandidateIDs() error = %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("ListCandidateIDs() = %d ids, want 2 (duplicate dropped)", len(ids))
	}

	raw, err := m.FetchRaw(ctx, ids[1])
	if err != nil {
		t.Fatalf("FetchRaw() error = %v", err)
	}
	if !strings.Contains(string(raw), "Subject: two") {
		t.Errorf("FetchRaw() = %q", raw)
	}
	if MessageHash(raw) != ids[1] {
		t.Errorf("id is not the content hash")
	}

	if _, err := m.FetchRaw(ctx, "nope"); !errors.Is(err, ErrMessageNotFound) {
		t.Errorf("FetchRaw(nope) error = %v, want ErrMessageNotFound", err)
	}
}

func TestPoller(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := 0
	p := NewPoller(time.Millisecond, discardLogger())
	err := p.Run(ctx, func(context.Context) error {
		calls++
		if calls == 3 {
			cancel()
			return nil
		}
		return errors.New("transient")
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
	if calls != 3 {
		t.Errorf("sweeps = %d, want 3", calls)
	}
}

func TestClient_NotConnected(t *testing.T) {
	c := NewClient(ClientConfig{Username: "a@example.org"}, discardLogger())
	ctx := context.Background()

	if _, err := c.ListCandidateIDs(ctx, time.Now()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("ListCandidateIDs() error = %v, want ErrNotConnected", err)
	}
	if _, err := c.FetchRaw(ctx, "12"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("FetchRaw() error = %v, want ErrNotConnected", err)
	}
	if _, err := c.FetchRaw(ctx, "abc"); err == nil {
		t.Error("FetchRaw(abc) should reject a non-numeric UID")
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
