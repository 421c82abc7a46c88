package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jobops/jobops/internal/query"
	"github.com/jobops/jobops/internal/types"
	"github.com/jobops/jobops/internal/ui"
)

var statsCmd = &cobra.Command{
	Use:     "stats",
	GroupID: "views",
	Short:   "Show pipeline statistics",
	Long: `Show totals per status, applications in the last 7 days, weekly
velocity for the last 6 weeks, and stale applications.`,
	Run: func(cmd *cobra.Command, args []string) {
		a := mustOpenApp(cmd, appOptions{})
		defer a.Close()

		in := query.Compute(a.store.Jobs(), now())
		if jsonOutput {
			printJSON(in)
			return
		}

		st := in.Stats
		fmt.Printf("\n%s Pipeline\n\n", ui.RenderAccent("📊"))
		fmt.Printf("  Total:      %d\n", st.Total)
		fmt.Printf("  Active:     %d\n", st.Active)
		fmt.Printf("  Interview:  %d\n", st.Interview)
		fmt.Printf("  Offer:      %d\n", st.Offer)
		fmt.Printf("  Rejected:   %d\n", st.Rejected)
		fmt.Printf("  Last 7 days: %d\n", in.Recent)

		fmt.Printf("\n%s Weekly velocity\n\n", ui.RenderAccent("📈"))
		peak := 0
		for _, b := range in.Velocity {
			peak = max(peak, b.Value)
		}
		for _, b := range in.Velocity {
			fmt.Printf("  %-7s %s %d\n", b.Name, bar(b.Value, peak, 30), b.Value)
		}

		fmt.Printf("\n%s Breakdown\n\n", ui.RenderAccent("🧮"))
		for _, b := range in.Breakdown {
			fmt.Printf("  %-10s %d\n", ui.RenderStatus(types.Status(b.Name)), b.Value)
		}

		if len(in.Stale) > 0 {
			fmt.Printf("\n%s %d stale (no update in %d+ days)\n", ui.RenderWarn("⚠"), len(in.Stale), query.StaleAfterDays+1)
			for _, j := range in.Stale {
				fmt.Printf("  %s  %s, last updated %s\n", shortID(j.ID), j.Company, j.LastUpdated)
			}
		}
		fmt.Println()
	},
}

var agendaCmd = &cobra.Command{
	Use:     "agenda",
	GroupID: "views",
	Short:   "Show upcoming follow-ups and recent activity",
	Run: func(cmd *cobra.Command, args []string) {
		a := mustOpenApp(cmd, appOptions{})
		defer a.Close()

		t := now()
		jobs := a.store.Jobs()
		upcoming := query.Upcoming(jobs, t)
		var overdue []types.JobApplication
		for _, j := range jobs {
			if j.NextAction != "" && query.IsOverdue(j.NextActionDate, t) &&
				j.Status != types.StatusArchived && j.Status != types.StatusRejected {
				overdue = append(overdue, j)
			}
		}
		history := query.History(jobs)
		limit, _ := cmd.Flags().GetInt("limit")
		if limit > 0 && len(history) > limit {
			history = history[:limit]
		}

		if jsonOutput {
			printJSON(map[string]any{"overdue": nonNil(overdue), "upcoming": nonNil(upcoming), "history": history})
			return
		}

		if len(overdue) > 0 {
			fmt.Printf("\n%s Overdue\n\n", ui.RenderFail("⏰"))
			for _, j := range overdue {
				fmt.Printf("  %s  %-20s %s\n", ui.RenderFail(j.NextActionDate), j.Company, j.NextAction)
			}
		}
		fmt.Printf("\n%s Upcoming\n\n", ui.RenderAccent("📅"))
		if len(upcoming) == 0 {
			fmt.Println(ui.RenderMuted("  Nothing scheduled."))
		}
		for _, j := range upcoming {
			fmt.Printf("  %s  %-20s %s\n", j.NextActionDate, j.Company, j.NextAction)
		}
		fmt.Printf("\n%s Recent activity\n\n", ui.RenderAccent("🕘"))
		for _, j := range history {
			fmt.Printf("  %s  %-20s %s\n", j.LastUpdated, j.Company, ui.RenderStatus(j.Status))
		}
		fmt.Println()
	},
}

var boardCmd = &cobra.Command{
	Use:     "board",
	GroupID: "views",
	Short:   "Show applications as status columns",
	Run: func(cmd *cobra.Command, args []string) {
		a := mustOpenApp(cmd, appOptions{})
		defer a.Close()

		cols := query.Board(a.store.Jobs())
		if jsonOutput {
			printJSON(cols)
			return
		}

		headers := make([]string, len(cols))
		height := 0
		for i, c := range cols {
			headers[i] = fmt.Sprintf("%s (%d)", c.Status, len(c.Jobs))
			height = max(height, len(c.Jobs))
		}
		rows := make([][]string, height)
		for r := range rows {
			rows[r] = make([]string, len(cols))
			for i, c := range cols {
				if r < len(c.Jobs) {
					rows[r][i] = ui.Truncate(c.Jobs[r].Company, 18) + "\n" + ui.RenderMuted(ui.Truncate(c.Jobs[r].Role, 18))
				}
			}
		}
		fmt.Println(ui.Table(headers, rows))
	},
}

func bar(v, peak, width int) string {
	if peak == 0 {
		return ""
	}
	n := v * width / peak
	return ui.RenderAccent(strings.Repeat("█", n)) + strings.Repeat(" ", width-n)
}

func nonNil(jobs []types.JobApplication) []types.JobApplication {
	if jobs == nil {
		return []types.JobApplication{}
	}
	return jobs
}

func init() {
	agendaCmd.Flags().Int("limit", 10, "Recent activity entries to show (0 for all)")
	rootCmd.AddCommand(statsCmd, agendaCmd, boardCmd)
}
