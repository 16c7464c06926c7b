package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pders01/roster/internal/storage"
	"github.com/pders01/roster/internal/timeline"
)

var (
	flagForce  bool
	flagDryRun bool
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Fetch every source once and write the snapshot files",
	Long: `Fetch, normalize and sort every member's articles, then write
articles.json and users.json to the snapshot directory.

Exits non-zero when the run fails or the snapshot cannot be written.
Intended for scheduled invocation.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a := newApp(cfg)
		defer a.Close()
		a.manager.SetForceRefresh(flagForce)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		report, err := a.generator.Run(ctx, storage.TriggerGenerate, !flagDryRun)
		if report != nil {
			printReport(cmd.OutOrStdout(), report, a.snapshots.Dir())
		}
		if err != nil {
			return fmt.Errorf("generation failed: %w", err)
		}
		return nil
	},
}

func init() {
	generateCmd.Flags().BoolVar(&flagForce, "force", false, "ignore ETag/Last-Modified and refetch everything")
	generateCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "aggregate without writing the snapshot files")
}

func printReport(w io.Writer, report *timeline.Report, dir string) {
	fmt.Fprintln(w, successStyle.Render(fmt.Sprintf("✓ %d articles from %d sources in %s",
		len(report.Articles), report.Sources, report.Duration.Round(time.Millisecond))))

	for _, f := range report.Failures {
		fmt.Fprintf(w, "  %s %s\n", errorStyle.Render("✗"), f.URL)
		fmt.Fprintf(w, "    %s\n", mutedStyle.Render(f.Error))
	}

	switch {
	case report.Persisted:
		fmt.Fprintln(w, mutedStyle.Render("snapshot written to "+dir))
	case flagDryRun:
		fmt.Fprintln(w, warnStyle.Render("dry run, nothing written"))
	}
	fmt.Fprintln(w, mutedStyle.Render("run "+report.RunID))
}
