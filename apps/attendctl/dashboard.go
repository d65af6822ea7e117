package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"text/tabwriter"
	"time"

	"github.com/AlriyanKhan/Ai-attendance/core/attendance"
)

const clearScreen = "\033[H\033[2J"

var nowFunc = time.Now // mockable

func (cli *commandLine) printView(v attendance.View) error {
	if v.Err != "" {
		fmt.Fprintf(cli.out, "!! %s\n\n", v.Err)
	}
	if v.Loading {
		fmt.Fprintln(cli.out, "Loading…")
		return nil
	}

	s := v.Stats
	s.TodayAttendance = attendance.CountToday(v.Rows, nowFunc())
	fmt.Fprintf(cli.out, "Total: %d  Today: %d  Avg confidence: %.1f%%  Active users: %d\n\n",
		s.TotalAttendance, s.TodayAttendance, s.AverageConfidence*100, s.ActiveUsers)

	w := tabwriter.NewWriter(cli.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tTIME\tCONFIDENCE\tSTATUS")
	for _, r := range v.Rows {
		fmt.Fprintf(w, "%s\t%s\t%.1f%%\t%s\n", r.Name, r.Timestamp.Local().Format("2006-01-02 15:04:05"), r.Confidence*100, r.Status)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "\nUpdated %s\n", v.UpdatedAt.Local().Format("15:04:05"))
	return nil
}

// dashboard renders every pushed view until interrupted.
func (cli *commandLine) dashboard(ctx context.Context, once bool) error {
	if once {
		v, err := cli.client.Dashboard(ctx)
		if err != nil {
			return err
		}
		return cli.printView(v)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	return cli.client.StreamDashboard(ctx, func(v attendance.View) error {
		fmt.Fprint(cli.out, clearScreen)
		return cli.printView(v)
	})
}
