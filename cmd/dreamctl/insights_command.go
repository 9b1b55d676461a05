package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"dreamdecode/pkg/insights"
)

func newInsightsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "insights",
		Short: "Compute health score, mood trend, symbols and alerts",
		RunE: func(cmd *cobra.Command, args []string) error {
			dreams, err := ctx.loadDreams(cmd)
			if err != nil {
				return err
			}
			report := insights.Compute(dreams, time.Now(), insights.DefaultWeights())
			if ctx.jsonFlag {
				return writeJSON(cmd, report)
			}
			if report.TotalDreams == 0 {
				return errNoDreams
			}
			printReport(cmd.OutOrStdout(), report)
			return nil
		},
	}
}

func printReport(out io.Writer, r insights.Report) {
	fmt.Fprintf(out, "Dreams:       %d (%d this week, %d active days)\n", r.TotalDreams, r.RecentCount, r.ActiveDays)
	fmt.Fprintf(out, "Health score: %d\n", r.HealthScore)
	fmt.Fprintf(out, "Mood trend:   %s\n", r.Trend)

	if len(r.Distribution) > 0 {
		rows := make([][]string, 0, len(r.Distribution))
		for _, share := range r.Distribution {
			rows = append(rows, []string{
				strings.TrimSpace(share.Emoji + " " + string(share.Mood)),
				strconv.Itoa(share.Count),
				fmt.Sprintf("%.0f%%", share.Share*100),
			})
		}
		fmt.Fprintln(out, renderTable([]string{"Mood", "Dreams", "Share"}, rows, []columnAlignment{alignLeft, alignRight, alignRight}))
	}

	if len(r.TopSymbols) > 0 {
		rows := make([][]string, 0, len(r.TopSymbols))
		for _, s := range r.TopSymbols {
			rows = append(rows, []string{
				strings.TrimSpace(s.Emoji + " " + s.Name),
				strconv.Itoa(s.OccurrenceCount),
				s.FirstSeen.Local().Format("2006-01-02"),
			})
		}
		fmt.Fprintln(out, renderTable([]string{"Symbol", "Seen", "First seen"}, rows, []columnAlignment{alignLeft, alignRight, alignLeft}))
	}

	for _, a := range r.Alerts {
		fmt.Fprintf(out, "! %s: %s\n", a.Title, a.Description)
	}
}
