package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/mmcdole/marquee/internal/listgen"
	"github.com/mmcdole/marquee/internal/tui/styles"
)

func newListgenCmd() *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "listgen",
		Short: "Write per-user list files for active users",
		Long: `Builds list_<userId>.txt for every user with an active session.
Each list guarantees a share of every item type and avoids items used in
recent lists. Without --once it keeps refreshing on listgen.refresh.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp("")
			if err != nil {
				return err
			}
			defer a.Close()

			gen := listgen.New(a.client, a.kv, listgenOptions(a), a.logger)
			if !once {
				a.logger.Info("list generator running", "dir", a.cfg.Listgen.Dir, "refresh", a.cfg.Listgen.Refresh)
				return gen.Run(cmd.Context())
			}

			written, err := gen.RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			users := make([]string, 0, len(written))
			for u := range written {
				users = append(users, u)
			}
			sort.Strings(users)
			for _, u := range users {
				fmt.Fprintf(os.Stdout, "%s %s %s\n",
					styles.SuccessStyle.Render(styles.PlayedChar),
					listgen.ListPath(a.cfg.Listgen.Dir, u),
					styles.DimStyle.Render(fmt.Sprintf("(%d items)", written[u])))
			}
			if len(users) == 0 {
				fmt.Fprintln(os.Stdout, styles.DimStyle.Render("no active users"))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "Update the lists once and exit")
	return cmd
}

func listgenOptions(a *app) listgen.Options {
	c := a.cfg.Listgen
	return listgen.Options{
		Dir:              c.Dir,
		QueryString:      c.QueryString,
		ItemLimit:        c.ItemLimit,
		GuaranteePerType: c.GuaranteePerType,
		HistoryLimit:     c.HistoryLimit,
		Refresh:          c.Refresh,
	}
}
