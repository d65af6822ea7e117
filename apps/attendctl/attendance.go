package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/AlriyanKhan/Ai-attendance/core/attendance"
	"github.com/AlriyanKhan/Ai-attendance/core/capture"
)

func (cli *commandLine) printOutcome(out attendance.Outcome) {
	fmt.Fprintln(cli.out, out.Message)
	if out.Record != nil {
		r := out.Record
		fmt.Fprintf(cli.out, "%s  %s  %.1f%%  %s\n", r.Label(), r.Timestamp.Local().Format("2006-01-02 15:04:05"), r.Confidence*100, r.Status())
	}
	if out.Insight != "" {
		fmt.Fprintf(cli.out, "\nInsights:\n%s\n", out.Insight)
	}
}

// ask reads an answer among `choices`, the first one being the default.
func (cli *commandLine) ask(question string, choices ...string) (string, error) {
	for {
		fmt.Fprintf(cli.out, "%s [%s] ", question, strings.Join(choices, "/"))
		line, err := cli.in.ReadString('\n')
		answer := strings.ToLower(strings.TrimSpace(line))
		if answer == "" && err == nil {
			return choices[0], nil
		}
		for _, c := range choices {
			if answer == c || (answer != "" && strings.HasPrefix(c, answer)) {
				return c, nil
			}
		}
		if err != nil {
			return "", err
		}
	}
}

// capture snapshots the camera until the user confirms a frame, then submits it.
func (cli *commandLine) capture(ctx context.Context) error {
	surface := capture.NewSurface(cli.camera)
	if err := surface.Start(ctx); err != nil {
		return err
	}
	defer surface.Stop()

	for {
		if _, ok := surface.Payload(); !ok {
			p, err := surface.Capture(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cli.out, "Captured %s (%d KB)\n", p.ContentType, (len(p.Data)+1023)/1024)
		}

		answer, err := cli.ask("Submit this snapshot?", "submit", "retake", "quit")
		if err != nil {
			return err
		}
		switch answer {
		case "retake":
			surface.Retake()
			continue
		case "quit":
			return errAborted
		}

		p, _ := surface.Payload()
		out, err := cli.client.SubmitLive(ctx, p)
		if err != nil {
			return err
		}
		cli.printOutcome(out)
		surface.Clear()
		return nil
	}
}

func (cli *commandLine) upload(ctx context.Context, u capture.Upload) error {
	if u.Filename != "" {
		u.Filename = filepath.Base(u.Filename)
	}
	out, err := cli.client.Upload(ctx, u)
	if err != nil {
		return err
	}
	cli.printOutcome(out)
	return nil
}

func (cli *commandLine) records(ctx context.Context, limit int) error {
	records, err := cli.client.Records(ctx, limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(cli.out, "No attendance records yet")
		return nil
	}
	w := tabwriter.NewWriter(cli.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tTIME\tCONFIDENCE\tSTATUS")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%.1f%%\t%s\n", r.Label(), r.Timestamp.Local().Format("2006-01-02 15:04:05"), r.Confidence*100, r.Status())
	}
	return w.Flush()
}

func (cli *commandLine) bootstrap(ctx context.Context) error {
	created, err := cli.client.Bootstrap(ctx)
	if err != nil {
		return err
	}
	if created {
		fmt.Fprintln(cli.out, "attendance collection initialized")
	} else {
		fmt.Fprintln(cli.out, "attendance collection already initialized")
	}
	return nil
}
