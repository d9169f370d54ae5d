package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mixelka/mailarchive/internal/archive"
	"github.com/mixelka/mailarchive/internal/database"
	"github.com/mixelka/mailarchive/internal/formatter"
	"github.com/mixelka/mailarchive/internal/query"
)

func newListCmd(a *app) *cobra.Command {
	var page, perPage int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List archived messages, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			page = max(page, 1)
			if perPage <= 0 || perPage > a.cfg.MaxPerPage {
				perPage = a.cfg.MaxPerPage
			}
			msgs, err := a.db.ListMessages(ctx, page, perPage)
			if err != nil {
				return err
			}
			total, err := a.db.CountMessages(ctx)
			if err != nil {
				return err
			}
			if err := a.formatter.WriteList(cmd.OutOrStdout(), msgs, formatter.FormatTable); err != nil {
				return err
			}
			pages := (total + perPage - 1) / perPage
			fmt.Fprintf(cmd.OutOrStdout(), "\npage %d of %d, %d messages\n", page, max(pages, 1), total)
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&perPage, "max", 0, "messages per page (default MAX_PER_PAGE)")
	return cmd
}

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one archived message with its attachments, related messages and neighbours",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			msg, err := a.db.GetMessageByID(ctx, args[0])
			if errors.Is(err, database.ErrNotFound) {
				return fmt.Errorf("message %s is not archived", args[0])
			}
			if err != nil {
				return err
			}

			view := formatter.MessageView{Message: msg}
			if view.Attachments, err = a.attachments.List(ctx, msg.ID); err != nil {
				return err
			}
			if view.Older, view.Newer, err = a.db.GetAdjacentMessages(ctx, msg.ID); err != nil {
				return err
			}
			if view.Related, err = archive.Related(ctx, a.db, msg); err != nil {
				return err
			}
			return a.formatter.WriteMessage(cmd.OutOrStdout(), view)
		},
	}
}

func newSearchCmd(a *app) *cobra.Command {
	var fields string

	cmd := &cobra.Command{
		Use:   "search <terms...>",
		Short: "Search archived messages; 'or' separates alternatives",
		Long: "Every term of a clause must occur in one of the searched fields. A single\n" +
			"argument is split shell style, so quoted phrases stay together.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			selected, err := a.searchFields(fields)
			if err != nil {
				return err
			}
			return a.runQuery(cmd, args, selected, a.cfg.MaxPerPage, formatter.FormatList)
		},
	}
	cmd.Flags().StringVar(&fields, "fields", "", "comma separated fields (default SEARCH_FIELDS)")
	return cmd
}

func newQueryCmd(a *app) *cobra.Command {
	var (
		fields string
		limit  int
		format string
	)

	cmd := &cobra.Command{
		Use:   "query <terms...>",
		Short: "Print matching messages for scripts",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			selected, err := a.searchFields(fields)
			if err != nil {
				return err
			}
			return a.runQuery(cmd, args, selected, limit, format)
		},
	}
	cmd.Flags().StringVar(&fields, "fields", "", "comma separated fields (default SEARCH_FIELDS)")
	cmd.Flags().IntVar(&limit, "max", 0, "maximum number of messages, 0 for all")
	cmd.Flags().StringVar(&format, "format", formatter.FormatTable, "output format: table or list")
	return cmd
}

func (a *app) searchFields(flag string) ([]query.Field, error) {
	if flag == "" {
		return a.cfg.Fields(), nil
	}
	return query.ParseFields(flag)
}

func (a *app) runQuery(cmd *cobra.Command, args []string, fields []query.Field, limit int, format string) error {
	terms := args
	if len(args) == 1 {
		split, err := query.Split(args[0])
		if err != nil {
			return err
		}
		terms = split
	}

	group := query.Compile(terms)
	if group.Empty() {
		return fmt.Errorf("no search terms")
	}
	a.logger.Debug("searching", "group", group, "fields", fields)

	msgs, err := a.db.SearchMessages(cmd.Context(), group.Predicate(fields...), limit)
	if err != nil {
		return err
	}
	return a.formatter.WriteList(cmd.OutOrStdout(), msgs, format)
}

func newCommentCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "comment <id> <text...>",
		Short: "Set the comment of an archived message; an empty text clears it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			comment := strings.Join(args[1:], " ")
			if err := a.db.UpdateMessageComment(cmd.Context(), args[0], comment); err != nil {
				if errors.Is(err, database.ErrNotFound) {
					return fmt.Errorf("message %s is not archived", args[0])
				}
				return err
			}
			a.logger.Info("comment updated", "id", args[0])
			return nil
		},
	}
}

func newAttachmentsCmd(a *app) *cobra.Command {
	var paths bool

	cmd := &cobra.Command{
		Use:   "attachments <id>",
		Short: "List the stored attachments of a message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			atts, err := a.attachments.List(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !paths {
				fmt.Fprint(cmd.OutOrStdout(), a.formatter.FormatAttachments(atts))
				return nil
			}
			for _, att := range atts {
				p, err := a.attachments.Path(att.OwnerID, att.Filename)
				if err != nil {
					a.logger.Warn("attachment has an unsafe name", "filename", att.Filename, "error", err)
					continue
				}
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&paths, "paths", false, "print file paths instead of names and sizes")
	return cmd
}

func newFixAttachmentFilenamesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "fix-attachment-filenames",
		Short: "Re-normalize stored attachment names of every archived message",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ids, err := a.db.ListAllMessageIDs(ctx)
			if err != nil {
				return err
			}
			renamed, err := a.attachments.FixFilenames(ctx, ids)
			fmt.Fprintf(cmd.OutOrStdout(), "renamed %d attachments of %d messages\n", renamed, len(ids))
			return err
		},
	}
}
