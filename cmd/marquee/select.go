package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/spf13/cobra"

	"github.com/mmcdole/marquee/internal/domain"
	"github.com/mmcdole/marquee/internal/selector"
	"github.com/mmcdole/marquee/internal/tui/styles"
)

func newSelectCmd() *cobra.Command {
	var (
		userID string
		match  string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "select",
		Short: "Run one slide selection and print the result",
		Long: `Runs the selector once, exactly as a rebuild would, and prints the
chosen items. Shuffle history is updated as it would be for a real load.`,
		Example: `  # Show what the next rotation would contain
  marquee select

  # Only list selected items whose title looks like "dune"
  marquee select --match dune`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(userID)
			if err != nil {
				return err
			}
			defer a.Close()

			res := a.selector.Select(cmd.Context(), a.session)
			items := res.Items
			if match != "" {
				items = rankByMatch(items, match)
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{
					"source":      res.Source,
					"planned":     res.Planned,
					"resumeCount": res.ResumeCount,
					"poolSize":    res.PoolSize,
					"shuffled":    res.Shuffled,
					"items":       items,
				})
			}
			printSelection(os.Stdout, res, items)
			return nil
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "User ID to select for (defaults to the configured user)")
	cmd.Flags().StringVarP(&match, "match", "m", "", "Fuzzy filter on item titles")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")

	return cmd
}

// rankByMatch keeps the items whose title fuzzy-matches query, best first
func rankByMatch(items []domain.MediaItem, query string) []domain.MediaItem {
	titles := make([]string, len(items))
	for i, it := range items {
		titles[i] = it.DisplayTitle()
	}

	matches := fuzzy.RankFindFold(query, titles)
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Distance < matches[j].Distance
	})

	out := make([]domain.MediaItem, 0, len(matches))
	for _, m := range matches {
		out = append(out, items[m.OriginalIndex])
	}
	return out
}

func printSelection(w io.Writer, res selector.Result, items []domain.MediaItem) {
	header := lipgloss.JoinHorizontal(lipgloss.Top,
		styles.BadgeStyle.Render(res.Source),
		" ",
		styles.DimBadgeStyle.Render(fmt.Sprintf("%d planned", res.Planned)),
		" ",
		styles.DimBadgeStyle.Render(fmt.Sprintf("pool %d", res.PoolSize)),
	)
	fmt.Fprintln(w, header)
	fmt.Fprintln(w)

	if len(items) == 0 {
		fmt.Fprintln(w, styles.DimStyle.Render("  no items"))
		return
	}

	for i, it := range items {
		marker := " "
		if i < res.ResumeCount {
			marker = styles.InProgressDot
		}
		line := fmt.Sprintf("%s %2d  %s", marker, i+1, styles.TitleStyle.Render(styles.Truncate(it.DisplayTitle(), 60)))
		meta := []string{it.Type}
		if it.Year > 0 {
			meta = append(meta, fmt.Sprint(it.Year))
		}
		fmt.Fprintln(w, line+"  "+styles.SubtitleStyle.Render(strings.Join(meta, " · "))+"  "+styles.DimStyle.Render(it.ID))
	}
}
