package formatter

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/mixelka/mailarchive/internal/ingest"
)

// maxBatchLength leaves room under the Telegram message limit
const maxBatchLength = 4000

// FormatBatch renders a fetch summary as Telegram HTML
func FormatBatch(outcomes []ingest.Outcome) string {
	var sb strings.Builder

	archived := ingest.Count(outcomes, ingest.StatusArchived) + ingest.Count(outcomes, ingest.StatusPartsFailed)
	fmt.Fprintf(&sb, "<b>Archived %s %s</b>\n", humanize.Comma(int64(archived)), plural(archived, "message", "messages"))
	if n := ingest.Count(outcomes, ingest.StatusParseFailed); n > 0 {
		fmt.Fprintf(&sb, "<i>%d could not be parsed</i>\n", n)
	}
	sb.WriteString("\n")

	shown := 0
	for _, o := range outcomes {
		if o.Status != ingest.StatusArchived && o.Status != ingest.StatusPartsFailed {
			continue
		}
		line := fmt.Sprintf("<code>%s</code> %s", EscapeHTML(o.ID), EscapeHTML(truncate(oneLine(o.Subject), 80)))
		if o.Parts > 0 {
			line += fmt.Sprintf(" (%d %s)", o.Parts, plural(o.Parts, "part", "parts"))
		}
		if o.Status == ingest.StatusPartsFailed {
			line += " <b>parts failed</b>"
		}
		if sb.Len()+len(line)+1 > maxBatchLength-40 {
			fmt.Fprintf(&sb, "<i>... and %d more</i>", archived-shown)
			break
		}
		sb.WriteString(line)
		sb.WriteString("\n")
		shown++
	}

	return strings.TrimRight(sb.String(), "\n")
}

// EscapeHTML escapes HTML special characters for Telegram
func EscapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
