package cmd

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/wikindex/internal/async"
	"github.com/Aman-CERP/wikindex/internal/config"
	"github.com/Aman-CERP/wikindex/internal/output"
	"github.com/Aman-CERP/wikindex/internal/search"
)

// statusInfo is what `wikindex status` reports.
type statusInfo struct {
	Path string `json:"path"`
	*search.Stats
	WriterLocked      bool `json:"writer_locked"`
	RebuildIncomplete bool `json:"rebuild_incomplete"`
}

func newStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index size and per-namespace counts",
		Long: `Display information about the index:
  - Number of documents, per namespace and per kind
  - Current view generation
  - Whether another process holds the writer lock
  - Whether a previous rebuild was interrupted`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runStatus(cmd.Context(), cmd, cfg, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runStatus(ctx context.Context, cmd *cobra.Command, cfg *config.Config, jsonOutput bool) error {
	info, err := collectStatus(ctx, cfg)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	renderStatus(output.New(cmd.OutOrStdout()), info)
	return nil
}

func collectStatus(ctx context.Context, cfg *config.Config) (*statusInfo, error) {
	a, err := openApp(ctx, cfg, false)
	if err != nil {
		return nil, err
	}
	defer a.Close()

	stats, err := a.search.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return &statusInfo{
		Path:              cfg.Index.Paths[0],
		Stats:             stats,
		WriterLocked:      a.store.IsLockedByOther(),
		RebuildIncomplete: async.HasIncompleteLock(a.dataDir()),
	}, nil
}

func renderStatus(w *output.Writer, info *statusInfo) {
	w.Heading("Index")
	w.Field("path", 10, info.Path)
	w.Field("documents", 10, info.Documents)
	w.Field("generation", 10, info.Generation)
	w.Field("published", 10, info.PublishedAt.Format(time.RFC3339))

	if len(info.Namespaces) > 0 {
		w.Newline()
		w.Heading("Namespaces")
		for _, ns := range sortedKeys(info.Namespaces) {
			w.Field(ns, 10, info.Namespaces[ns])
		}
	}
	if len(info.Kinds) > 0 {
		w.Newline()
		w.Heading("Kinds")
		for _, k := range sortedKeys(info.Kinds) {
			w.Field(k, 10, info.Kinds[k])
		}
	}

	if info.WriterLocked {
		w.Newline()
		w.Warning("another process holds the writer lock (is 'wikindex serve' running?)")
	}
	if info.RebuildIncomplete {
		w.Newline()
		w.Warning("a previous rebuild did not finish; run 'wikindex rebuild'")
	}
}

func sortedKeys(m map[string]uint64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
