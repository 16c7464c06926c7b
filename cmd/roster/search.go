package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pders01/roster/internal/search"
	"github.com/pders01/roster/internal/storage"
)

var flagSearchLimit int

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the last generated timeline",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		snapshots := storage.NewSnapshots(cfg.Snapshot.Dir)
		articles, ok, err := snapshots.LoadArticles()
		if err != nil {
			return fmt.Errorf("reading snapshot: %w", err)
		}
		if !ok {
			return fmt.Errorf("no snapshot in %s; run `roster generate` first", snapshots.Dir())
		}

		engine, err := search.NewBleveEngine()
		if err != nil {
			return fmt.Errorf("creating search index: %w", err)
		}
		defer engine.Close()

		if err := engine.Index(articles); err != nil {
			return err
		}

		query := strings.Join(args, " ")
		results, err := engine.Search(query, flagSearchLimit)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		if len(results) == 0 {
			fmt.Fprintln(w, mutedStyle.Render("no matches for "+query))
			return nil
		}
		for _, r := range results {
			a := r.Article
			fmt.Fprintf(w, "%s  %s\n", headerStyle.Render(a.Title), mutedStyle.Render(fmt.Sprintf("%.2f", r.Score)))
			fmt.Fprintf(w, "  %s · %s · %s\n", a.Author, a.SiteName, a.PubDate.Format("2006-01-02"))
			fmt.Fprintf(w, "  %s\n", mutedStyle.Render(a.Link))
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().IntVarP(&flagSearchLimit, "limit", "n", 10, "maximum number of results")
}
