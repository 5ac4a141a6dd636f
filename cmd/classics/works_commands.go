package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/japaniel/classics/pkg/connector"
	"github.com/japaniel/classics/pkg/db"
	"github.com/spf13/cobra"
)

func newInitCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the catalog database and corpus directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := ctx.openCatalog(); err != nil {
				return err
			}
			if _, err := ctx.openCorpus(); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Database initialized at %s\n", ctx.cfg.Storage.DatabasePath)
			fmt.Fprintf(out, "Corpus directory ready at %s\n", ctx.cfg.Storage.CorpusDir)
			return nil
		},
	}
}

func newFetchCommand(ctx *commandContext) *cobra.Command {
	var (
		library    string
		query      string
		maxResults int
	)
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Search a library and catalog new public-domain works",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.archive(cmd.Context(), false, 0)
			if err != nil {
				return err
			}
			if maxResults <= 0 {
				maxResults = ctx.cfg.Search.MaxResults
			}
			res, err := a.Fetch(cmd.Context(), library, query, maxResults)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if res.Found == 0 {
				fmt.Fprintf(out, "No results for %q in %s.\n", query, library)
				return nil
			}
			fmt.Fprintf(out, "Found %d results, cataloged %d new works.\n", res.Found, res.Added)
			return nil
		},
	}
	cmd.Flags().StringVarP(&library, "library", "l", connector.GutenbergName, "Library to search ("+connector.GoogleBooksName+" or "+connector.GutenbergName+")")
	cmd.Flags().StringVarP(&query, "query", "q", "", "Search query")
	cmd.Flags().IntVarP(&maxResults, "max", "n", 0, "Maximum number of results (default from config)")
	_ = cmd.MarkFlagRequired("query")
	return cmd
}

func newFindCommand(ctx *commandContext) *cobra.Command {
	var title, author, status string
	cmd := &cobra.Command{
		Use:   "find",
		Short: "Find cataloged works by title, author or status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := db.Filter{Title: title, Author: author}
			if status != "" {
				f.Status = db.Status(status)
				if !f.Status.Valid() {
					return fmt.Errorf("unknown status %q", status)
				}
			}
			catalog, err := ctx.openCatalog()
			if err != nil {
				return err
			}
			works, err := catalog.Find(cmd.Context(), f)
			if err != nil {
				return err
			}
			printWorks(cmd, works, false)
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "Title contains")
	cmd.Flags().StringVar(&author, "author", "", "Author contains")
	cmd.Flags().StringVar(&status, "status", "", "Exact status (candidate, reviewing, selected, excluded)")
	return cmd
}

func newListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all works in download priority order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := ctx.openCatalog()
			if err != nil {
				return err
			}
			works, err := catalog.ListByViews(cmd.Context())
			if err != nil {
				return err
			}
			printWorks(cmd, works, true)
			return nil
		},
	}
}

func newUpdateCommand(ctx *commandContext) *cobra.Command {
	var status, notes string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change the status or notes of a work",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid work id %q", args[0])
			}
			var u db.WorkUpdate
			if cmd.Flags().Changed("status") {
				s := db.Status(status)
				u.Status = &s
			}
			if cmd.Flags().Changed("notes") {
				u.Notes = &notes
			}
			catalog, err := ctx.openCatalog()
			if err != nil {
				return err
			}
			ok, err := catalog.Update(cmd.Context(), id, u)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("work %d: %w", id, db.ErrNotFound)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated work %d.\n", id)
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "New status (candidate, reviewing, selected, excluded)")
	cmd.Flags().StringVar(&notes, "notes", "", "Curator notes")
	return cmd
}

func printWorks(cmd *cobra.Command, works []db.Work, ranked bool) {
	out := cmd.OutOrStdout()
	if len(works) == 0 {
		fmt.Fprintln(out, "No works found.")
		return
	}
	headers := []string{"ID", "Title", "Author", "Year", "Library", "Status", "Views", "Added"}
	numeric := []int{0, 3, 6}
	if ranked {
		headers = append([]string{"Rank"}, headers...)
		numeric = []int{0, 1, 4, 7}
	}
	rows := make([][]string, 0, len(works))
	for i, w := range works {
		year := ""
		if w.PublicationYear != nil {
			year = strconv.Itoa(*w.PublicationYear)
		}
		added := ""
		if !w.AddedAt.IsZero() {
			added = humanize.Time(w.AddedAt)
		}
		row := []string{
			strconv.FormatInt(w.ID, 10),
			w.Title,
			w.Author,
			year,
			w.SourceLibrary,
			string(w.Status),
			strconv.Itoa(w.Views),
			added,
		}
		if ranked {
			row = append([]string{strconv.Itoa(i + 1)}, row...)
		}
		rows = append(rows, row)
	}
	fmt.Fprintln(out, renderTable(headers, rows, numeric...))
}

// describeErr shortens an error for a table cell.
func describeErr(err error) string {
	var msg string
	switch {
	case errors.Is(err, connector.ErrUnknownLibrary):
		msg = "unsupported library"
	case errors.Is(err, connector.ErrNoText):
		msg = "no downloadable text"
	default:
		msg = err.Error()
	}
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	return "failed: " + msg
}
