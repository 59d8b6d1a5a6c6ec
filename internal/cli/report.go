package cli

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/runnerr0/testpilot/internal/aggregate"
	"github.com/runnerr0/testpilot/internal/report"
)

// Execute implements the go-flags Commander interface for ReportCommand.
func (c *ReportCommand) Execute(args []string) error {
	s, err := openSession(c.globals, c.store)
	if err != nil {
		return err
	}
	defer s.close()

	return c.executeWithSession(context.Background(), s)
}

func (c *ReportCommand) executeWithSession(ctx context.Context, s *session) error {
	if c.Top < 0 {
		return fmt.Errorf("--top must be positive, got %d", c.Top)
	}

	svc := report.NewService(s.store, s.study, s.cfg, s.logger)
	res, err := svc.Generate(ctx, report.Request{Concluded: c.Concluded, TopN: c.Top})
	if err != nil {
		return err
	}

	if c.globals != nil && c.globals.JSON {
		return printJSON(res)
	}
	printReportHuman(res)
	return nil
}

func printReportHuman(res *report.Result) {
	rep := res.Report

	fmt.Printf("Test Pilot Report (%s)\n", rep.Study)
	fmt.Println("========================")
	fmt.Printf("Run ID:        %s\n", res.RunID)
	if res.Pruned > 0 {
		fmt.Printf("Pruned:        %d events older than %s\n", res.Pruned, formatTime(res.Cutoff))
	}
	fmt.Printf("Events:        %d processed", rep.Processed)
	if rep.Malformed > 0 || rep.Unknown > 0 {
		fmt.Printf(", %d malformed, %d unknown", rep.Malformed, rep.Unknown)
	}
	fmt.Println()

	if rep.Processed == 0 {
		fmt.Println()
		fmt.Println("No events recorded.")
		return
	}

	fmt.Printf("Range:         %s to %s\n", formatTime(rep.First), formatTime(rep.End))

	span := rep.Totals.Span()
	fmt.Println()
	fmt.Println("Activity:")
	for _, row := range []struct {
		state aggregate.State
		d     time.Duration
	}{
		{aggregate.Active, rep.Totals.Active},
		{aggregate.Idle, rep.Totals.Idle},
		{aggregate.Off, rep.Totals.Off},
	} {
		fmt.Printf("  %-8s %12s  %5.1f%%\n", row.state, row.d.Round(time.Second), percent(row.d, span))
	}

	if len(rep.Counters) > 0 {
		names := make([]string, 0, len(rep.Counters))
		for name := range rep.Counters {
			names = append(names, name)
		}
		sort.Strings(names)

		fmt.Println()
		fmt.Println("Counters:      first / current / max")
		for _, name := range names {
			ctr := rep.Counters[name]
			fmt.Printf("  %-12s %6d %9d %5d\n", name, ctr.First, ctr.Current, ctr.Max)
		}
	}

	if len(rep.Frequencies) > 0 {
		fmt.Println()
		fmt.Printf("Top interactions (%d of %d):\n", len(rep.Frequencies), rep.DistinctPairs)
		for i, f := range rep.Frequencies {
			label := f.Item
			if f.SubItem != "" {
				label += " / " + f.SubItem
			}
			fmt.Printf("  %2d. %-40s %d\n", i+1, label, f.Count)
		}
	}

	if rep.Session.Windows > 0 || rep.Session.Tabs > 0 || rep.Session.RestoredTabs > 0 {
		fmt.Println()
		fmt.Printf("Session:       %d windows, %d tabs, %d restored tabs\n",
			rep.Session.Windows, rep.Session.Tabs, rep.Session.RestoredTabs)
	}

	if len(rep.CodeCounts) > 0 {
		fmt.Println()
		fmt.Println("Events by code:")
		for _, cc := range rep.CodeCounts {
			fmt.Printf("  %-28s %d\n", cc.Display, cc.Count)
		}
	}
}

func percent(d, total time.Duration) float64 {
	if total <= 0 {
		return 0
	}
	return float64(d) / float64(total) * 100
}
