package config

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/mixelka/mailarchive/internal/query"
)

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DatabasePath != "./data/mailarchive.db" || cfg.IMAPMailbox != "INBOX" {
		t.Errorf("defaults = %+v", cfg)
	}
	if cfg.PollInterval != 5*time.Minute || cfg.FetchLookback != 72*time.Hour {
		t.Errorf("durations = %s, %s", cfg.PollInterval, cfg.FetchLookback)
	}
	if got := cfg.Fields(); len(got) != 3 || got[0] != query.FieldBody {
		t.Errorf("Fields() = %v", got)
	}
	if cfg.TelegramEnabled() || cfg.IMAPEnabled() {
		t.Error("optional integrations should be off by default")
	}
}

func TestLoad_Env(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("SEARCH_FIELDS", "subject, from")
	t.Setenv("POLL_INTERVAL", "30s")
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("TELEGRAM_CHAT_ID", "-100123")
	t.Setenv("IMAP_USERNAME", "me@example.org")
	t.Setenv("IMAP_PASSWORD", "secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := cfg.Fields(); len(got) != 2 || got[0] != query.FieldSubject || got[1] != query.FieldFrom {
		t.Errorf("Fields() = %v", got)
	}
	if cfg.PollInterval != 30*time.Second {
		t.Errorf("PollInterval = %s", cfg.PollInterval)
	}
	if !cfg.TelegramEnabled() || cfg.TelegramChatID != -100123 {
		t.Errorf("telegram = %v, %d", cfg.TelegramEnabled(), cfg.TelegramChatID)
	}
	if !cfg.IMAPEnabled() {
		t.Error("IMAPEnabled() = false")
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"unknown field", map[string]string{"SEARCH_FIELDS": "body,cc"}, "SEARCH_FIELDS"},
		{"zero page size", map[string]string{"MAX_PER_PAGE": "0"}, "MAX_PER_PAGE"},
		{"token without chat", map[string]string{"TELEGRAM_BOT_TOKEN": "123:abc"}, "TELEGRAM_CHAT_ID"},
		{"log format", map[string]string{"LOG_FORMAT": "xml"}, "LOG_FORMAT"},
		{"bad duration", map[string]string{"POLL_INTERVAL": "soon"}, "failed to parse config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chdir(t, t.TempDir())
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatal(err)
		}
	})
}
