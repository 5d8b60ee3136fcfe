package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/wikindex/internal/config"
	"github.com/Aman-CERP/wikindex/internal/output"
	"github.com/Aman-CERP/wikindex/internal/rebuild"
)

// rebuildOutput is the --json form of a rebuild report.
type rebuildOutput struct {
	*rebuild.Report
	Queued     int      `json:"queued"`
	Documents  uint64   `json:"documents"`
	Generation uint64   `json:"generation"`
	Duration   string   `json:"duration"`
	Errors     []string `json:"errors,omitempty"`
}

func newRebuildCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "rebuild",
		Short: "Clear the index and re-index all wiki content",
		Long: `Clear the index, enumerate every namespace of the content source,
queue each page, translation, attachment and object, then drain the
queue once so the index is fully populated when the command returns.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runRebuild(ctx, cmd, cfg, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the report as JSON")

	return cmd
}

func runRebuild(ctx context.Context, cmd *cobra.Command, cfg *config.Config, jsonOutput bool) error {
	a, err := openApp(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer a.Close()

	start := time.Now()
	report, rebuildErr := a.rebuilder().Rebuild(ctx)
	if report == nil {
		return rebuildErr
	}
	docs, _ := a.store.DocCount()
	view := a.store.Current()

	slog.Info("rebuild_command_complete",
		slog.Int("queued", report.Total()),
		slog.Uint64("documents", docs),
		slog.Bool("failed", report.Failed))

	if jsonOutput {
		out := rebuildOutput{
			Report:     report,
			Queued:     report.Total(),
			Documents:  docs,
			Generation: view.Generation,
			Duration:   time.Since(start).Round(time.Millisecond).String(),
		}
		for _, name := range report.Names() {
			for _, e := range report.Namespaces[name].Errors {
				out.Errors = append(out.Errors, fmt.Sprintf("%s: %v", name, e))
			}
		}
		if rebuildErr != nil {
			out.Errors = append(out.Errors, rebuildErr.Error())
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return err
		}
		return rebuildErr
	}

	w := output.New(cmd.OutOrStdout())
	w.Heading("Rebuild report")
	for _, name := range report.Names() {
		nr := report.Namespaces[name]
		w.Statusf("", "%-20s units=%d translations=%d attachments=%d objects=%d failed=%d partial=%d",
			name, nr.Units, nr.Translations, nr.Attachments, nr.Objects, nr.Failed, nr.Partial)
		for _, e := range nr.Errors {
			w.Warningf("%s: %v", name, e)
		}
	}
	w.Newline()
	if rebuildErr != nil {
		w.Errorf("rebuild failed after queueing %d entries: %v", report.Total(), rebuildErr)
		return rebuildErr
	}
	if n := report.FailedUnits(); n > 0 {
		w.Warningf("%d units skipped", n)
	}
	if n := report.PartialUnits(); n > 0 {
		w.Warningf("%d units queued without some attachments, translations or objects", n)
	}
	w.Successf("queued %d entries, index holds %d documents (generation %d) in %s",
		report.Total(), docs, view.Generation, time.Since(start).Round(time.Millisecond))
	return nil
}
