package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/wikindex/internal/config"
	"github.com/Aman-CERP/wikindex/internal/entry"
	"github.com/Aman-CERP/wikindex/internal/output"
	"github.com/Aman-CERP/wikindex/internal/search"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	wiki     string
	language string
	kind     string
	offset   int
	limit    int
	format   string // "text", "json"
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search the index",
		Long: `Search the published index. Words are matched against page text,
extracted attachment text, object fields and the name, container, author
and creator fields. With no query every document matches, which combined
with the filters lists what is indexed.

Examples:
  wikindex search "release notes"
  wikindex search budget --kind attachment --wiki finance
  wikindex search --lang fr --limit 20
  wikindex search onboarding --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runSearch(cmd.Context(), cmd, cfg, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.wiki, "wiki", "w", "", "Restrict to one wiki")
	cmd.Flags().StringVarP(&opts.language, "lang", "l", "", "Restrict to one language (\"default\" for the primary version)")
	cmd.Flags().StringVarP(&opts.kind, "kind", "k", "", "Restrict to one kind: page, attachment, object")
	cmd.Flags().IntVar(&opts.offset, "offset", 0, "Number of results to skip")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", search.DefaultLimit, "Maximum number of results")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, cfg *config.Config, text string, opts searchOptions) error {
	if opts.format != "text" && opts.format != "json" {
		return fmt.Errorf("unknown format %q (want text or json)", opts.format)
	}

	a, err := openApp(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer a.Close()

	slog.Info("search_started", slog.String("query", text), slog.Int("limit", opts.limit))
	page, err := a.search.Search(ctx, search.Query{
		Text:     text,
		Wiki:     opts.wiki,
		Language: opts.language,
		Kind:     opts.kind,
		Offset:   opts.offset,
		Limit:    opts.limit,
	})
	if err != nil {
		return err
	}
	slog.Info("search_complete", slog.Uint64("total", page.Total), slog.Int("results", len(page.Results)))

	if opts.format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(page)
	}
	formatSearchText(output.New(cmd.OutOrStdout()), page)
	return nil
}

func formatSearchText(w *output.Writer, page *search.Page) {
	if len(page.Results) == 0 {
		w.Statusf("", "No results for %q", page.Query.Text)
		return
	}

	w.Heading(fmt.Sprintf("%d of %d results", len(page.Results), page.Total))
	for i, r := range page.Results {
		rank := page.Query.Offset + i + 1
		w.Statusf(fmt.Sprintf("%3d.", rank), "%s %s", w.Bold(r.Key.String()), w.Dim(fmt.Sprintf("(%s, %.3f)", r.Kind, r.Score)))
		switch r.Kind {
		case entry.KindAttachment:
			detail := r.MIMEType
			if r.URL != "" {
				detail += "  " + r.URL
			}
			w.Status("", detail)
		case entry.KindObject:
			w.Status("", "class "+r.Class)
		}
		if r.Author != "" {
			w.Statusf("", "by %s, modified %s", r.Author, r.Modified.Format("2006-01-02"))
		}
	}
}
