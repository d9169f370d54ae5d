package formatter

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"github.com/mixelka/mailarchive/pkg/models"
)

// ErrUnknownFormat is returned for a listing format other than table or list
var ErrUnknownFormat = errors.New("unknown format")

// Listing formats
const (
	FormatTable = "table"
	FormatList  = "list"
)

const dateLayout = "2006-01-02 15:04"

// TextFormatter renders archived messages for the terminal
type TextFormatter struct {
	subjectWidth int
	excerptLen   int
}

// NewTextFormatter creates a new text formatter
func NewTextFormatter() *TextFormatter {
	return &TextFormatter{
		subjectWidth: 60,
		excerptLen:   200,
	}
}

// MessageView is everything shown for a single message
type MessageView struct {
	Message     *models.ArchivedMessage
	Attachments []models.Attachment
	Older       *models.ArchivedMessage
	Newer       *models.ArchivedMessage
	Related     []models.ArchivedMessage
}

// WriteList writes messages in the given format
func (f *TextFormatter) WriteList(w io.Writer, msgs []models.ArchivedMessage, format string) error {
	switch format {
	case FormatTable:
		return f.writeTable(w, msgs)
	case FormatList:
		return f.writeLines(w, msgs)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

func (f *TextFormatter) writeTable(w io.Writer, msgs []models.ArchivedMessage) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tFROM\tSUBJECT")
	for i := range msgs {
		m := &msgs[i]
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			m.ID,
			m.Date.Format(dateLayout),
			oneLine(truncate(m.FromOrEmpty(), 30)),
			oneLine(truncate(m.SubjectOrEmpty(), f.subjectWidth)),
		)
	}
	return tw.Flush()
}

func (f *TextFormatter) writeLines(w io.Writer, msgs []models.ArchivedMessage) error {
	for i := range msgs {
		m := &msgs[i]
		_, err := fmt.Fprintf(w, "%s  %s  %s\n    %s\n",
			m.ID, m.Date.Format(dateLayout), oneLine(m.FromOrEmpty()), oneLine(m.SubjectOrEmpty()))
		if err != nil {
			return err
		}
		if excerpt := f.Excerpt(m.BodyOrEmpty()); excerpt != "" {
			if _, err := fmt.Fprintf(w, "    %s\n", excerpt); err != nil {
				return err
			}
		}
	}
	return nil
}

// WriteMessage writes headers, body, comment, attachments and navigation of one message
func (f *TextFormatter) WriteMessage(w io.Writer, v MessageView) error {
	var sb strings.Builder
	m := v.Message

	fmt.Fprintf(&sb, "ID:      %s\n", m.ID)
	fmt.Fprintf(&sb, "Date:    %s\n", m.Date.Format(dateLayout))
	fmt.Fprintf(&sb, "From:    %s\n", m.FromOrEmpty())
	fmt.Fprintf(&sb, "To:      %s\n", m.ToOrEmpty())
	fmt.Fprintf(&sb, "Subject: %s\n", m.SubjectOrEmpty())
	if m.Comment != "" {
		fmt.Fprintf(&sb, "Comment: %s\n", m.Comment)
	}
	sb.WriteString("\n")

	if m.Body == nil {
		sb.WriteString("(no text body)\n")
	} else {
		sb.WriteString(*m.Body)
		if !strings.HasSuffix(*m.Body, "\n") {
			sb.WriteString("\n")
		}
	}

	if len(v.Attachments) > 0 {
		sb.WriteString("\nAttachments:\n")
		sb.WriteString(f.FormatAttachments(v.Attachments))
	}

	if len(v.Related) > 0 {
		sb.WriteString("\nRelated:\n")
		for i := range v.Related {
			r := &v.Related[i]
			fmt.Fprintf(&sb, "  %s  %s  %s\n", r.ID, r.Date.Format(dateLayout), oneLine(r.SubjectOrEmpty()))
		}
	}

	if v.Older != nil || v.Newer != nil {
		sb.WriteString("\n")
		if v.Older != nil {
			fmt.Fprintf(&sb, "Older:   %s  %s\n", v.Older.ID, oneLine(v.Older.SubjectOrEmpty()))
		}
		if v.Newer != nil {
			fmt.Fprintf(&sb, "Newer:   %s  %s\n", v.Newer.ID, oneLine(v.Newer.SubjectOrEmpty()))
		}
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

// FormatAttachments lists attachments with human readable sizes
func (f *TextFormatter) FormatAttachments(atts []models.Attachment) string {
	var sb strings.Builder
	for _, a := range atts {
		size := uint64(0)
		if a.Size > 0 {
			size = uint64(a.Size)
		}
		fmt.Fprintf(&sb, "  %-40s %8s\n", a.Filename, humanize.Bytes(size))
	}
	return sb.String()
}

// Excerpt returns the first characters of a body on a single line
func (f *TextFormatter) Excerpt(body string) string {
	return truncate(oneLine(body), f.excerptLen)
}

// oneLine collapses all whitespace runs into single spaces
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncate truncates text to maxLen characters
func truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = 100
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-1]) + "…"
}
