package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pders01/roster/internal/storage"
)

var (
	flagRuns   int
	flagForget []string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recent runs, failing sources and the snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()

		snapshots := storage.NewSnapshots(cfg.Snapshot.Dir)
		fmt.Fprintln(w, headerStyle.Render("Snapshot"))
		if info, err := os.Stat(snapshots.ArticlesPath()); err == nil {
			articles, _, loadErr := snapshots.LoadArticles()
			if loadErr != nil {
				fmt.Fprintf(w, "  %s\n", errorStyle.Render(loadErr.Error()))
			} else {
				fmt.Fprintf(w, "  %d articles, written %s\n", len(articles), info.ModTime().Format(time.RFC3339))
			}
		} else {
			fmt.Fprintf(w, "  %s\n", mutedStyle.Render("none yet"))
		}

		store, err := storage.NewStore(cfg.Database.Path, cfg.Database.Timeout)
		if err != nil {
			return fmt.Errorf("database busy or unreadable (is `roster serve` running?): %w", err)
		}
		defer store.Close()

		for _, url := range flagForget {
			if err := store.DeleteSource(url); err != nil {
				return fmt.Errorf("forgetting %s: %w", url, err)
			}
			fmt.Fprintf(w, "%s forgot %s\n", successStyle.Render("✓"), url)
		}

		runs, err := store.RecentRuns(flagRuns)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, headerStyle.Render("Runs"))
		if len(runs) == 0 {
			fmt.Fprintf(w, "  %s\n", mutedStyle.Render("none recorded"))
		}
		for _, run := range runs {
			mark := successStyle.Render("✓")
			if run.Error != "" {
				mark = errorStyle.Render("✗")
			} else if len(run.FailedSources) > 0 {
				mark = warnStyle.Render("!")
			}
			fmt.Fprintf(w, "  %s %s  %-8s %4d articles  %d/%d sources ok  %s\n",
				mark,
				run.StartedAt.Local().Format("2006-01-02 15:04:05"),
				run.Trigger,
				run.Articles,
				run.Sources-len(run.FailedSources),
				run.Sources,
				mutedStyle.Render(run.Duration.Round(time.Millisecond).String()),
			)
			if run.Error != "" {
				fmt.Fprintf(w, "    %s\n", errorStyle.Render(run.Error))
			}
		}

		sources, err := store.GetAllSources()
		if err != nil {
			return err
		}
		fmt.Fprintln(w, headerStyle.Render("Failing sources"))
		failing := 0
		for _, s := range sources {
			if s.ConsecutiveFailures == 0 {
				continue
			}
			failing++
			fmt.Fprintf(w, "  %s %s (%d in a row)\n", errorStyle.Render("✗"), s.URL, s.ConsecutiveFailures)
			fmt.Fprintf(w, "    %s\n", mutedStyle.Render(s.LastError))
		}
		if failing == 0 {
			fmt.Fprintf(w, "  %s\n", mutedStyle.Render(fmt.Sprintf("none of %d", len(sources))))
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().IntVar(&flagRuns, "runs", 10, "number of recent runs to show")
	statusCmd.Flags().StringSliceVar(&flagForget, "forget", nil, "drop the cached state of a source URL before reporting")
}
