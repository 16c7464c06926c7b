package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/pders01/roster/internal/config"
	"github.com/pders01/roster/internal/storage"
)

const wordWrapWidth = 80

var flagActiveOnly bool

var membersCmd = &cobra.Command{
	Use:   "members",
	Short: "List and validate the member directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		members, err := config.LoadMembers(cfg.Directory.Path)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		shown := 0
		for _, m := range members {
			if flagActiveOnly && !m.Tenure.Active() {
				continue
			}
			printMemberLine(w, m)
			shown++
		}
		fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("%d of %d members", shown, len(members))))
		return nil
	},
}

var memberCmd = &cobra.Command{
	Use:   "member <name>",
	Short: "Show one member's profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		members, err := config.LoadMembers(cfg.Directory.Path)
		if err != nil {
			return err
		}

		for _, m := range members {
			if m.Name == args[0] {
				return printMember(cmd.OutOrStdout(), m)
			}
		}
		return fmt.Errorf("member %q not found", args[0])
	},
}

func init() {
	membersCmd.Flags().BoolVar(&flagActiveOnly, "active", false, "only members without a recorded departure")
}

func formatTenure(t storage.Tenure) string {
	start, end := "?", "present"
	if t.Start != nil {
		start = fmt.Sprintf("%04d-%02d", t.Start.Year, t.Start.Month)
	}
	if t.End != nil {
		end = fmt.Sprintf("%04d-%02d", t.End.Year, t.End.Month)
	}
	return start + " → " + end
}

func printMemberLine(w io.Writer, m storage.Member) {
	status := successStyle.Render("●")
	if !m.Tenure.Active() {
		status = mutedStyle.Render("○")
	}
	fmt.Fprintf(w, "%s %s  %s  %s  %s\n",
		status,
		headerStyle.Render(m.Name),
		mutedStyle.Render(formatTenure(m.Tenure)),
		tagStyle.Render(strings.Join(m.Tags, ", ")),
		mutedStyle.Render(fmt.Sprintf("%d sources", len(m.Sources))),
	)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func printMember(w io.Writer, m storage.Member) error {
	fmt.Fprintln(w, headerStyle.Render(m.Name))
	for _, locale := range sortedKeys(m.DisplayNames) {
		fmt.Fprintf(w, "%s%s\n", labelStyle.Render("name."+locale), m.DisplayNames[locale])
	}
	fmt.Fprintf(w, "%s%s\n", labelStyle.Render("tenure"), formatTenure(m.Tenure))
	if len(m.Tags) > 0 {
		fmt.Fprintf(w, "%s%s\n", labelStyle.Render("tags"), tagStyle.Render(strings.Join(m.Tags, ", ")))
	}
	if m.Avatar != "" {
		fmt.Fprintf(w, "%s%s\n", labelStyle.Render("avatar"), m.Avatar)
	}
	for _, service := range sortedKeys(m.Social) {
		fmt.Fprintf(w, "%s%s\n", labelStyle.Render(service), m.Social[service])
	}
	for _, src := range m.Sources {
		fmt.Fprintf(w, "%s%s\n", labelStyle.Render("source"), src)
	}

	if strings.TrimSpace(m.Description) == "" {
		return nil
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(wordWrapWidth),
	)
	if err != nil {
		return fmt.Errorf("creating markdown renderer: %w", err)
	}
	out, err := r.Render(m.Description)
	if err != nil {
		return fmt.Errorf("rendering description: %w", err)
	}
	fmt.Fprint(w, out)
	return nil
}
