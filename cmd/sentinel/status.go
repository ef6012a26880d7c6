package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v3"

	"github.com/rxtech-lab/kline-sentinel/internal/api"
	"github.com/rxtech-lab/kline-sentinel/internal/processor"
)

type statusReport struct {
	Subscriptions api.SubscriptionsResponse
	Processors    []processor.Status
}

func statusAction(ctx context.Context, cmd *cli.Command) error {
	report, err := fetchStatus(ctx, cmd.String("addr"))
	if err != nil {
		return err
	}

	renderStatus(cmd.Root().Writer, report)

	return nil
}

func fetchStatus(ctx context.Context, addr string) (statusReport, error) {
	client := resty.New().SetBaseURL(addr).SetTimeout(10 * time.Second)

	var report statusReport

	resp, err := client.R().SetContext(ctx).SetResult(&report.Subscriptions).Get("/v1/subscriptions")
	if err != nil {
		return report, fmt.Errorf("failed to query subscriptions: %w", err)
	}

	if resp.IsError() {
		return report, fmt.Errorf("failed to query subscriptions: %s", resp.Status())
	}

	resp, err = client.R().SetContext(ctx).SetResult(&report.Processors).Get("/v1/processors")
	if err != nil {
		return report, fmt.Errorf("failed to query processors: %w", err)
	}

	if resp.IsError() {
		return report, fmt.Errorf("failed to query processors: %s", resp.Status())
	}

	return report, nil
}

func renderStatus(w io.Writer, report statusReport) {
	fmt.Fprintf(w, "Symbols: %s\n", strings.Join(report.Subscriptions.Symbols, ", "))
	fmt.Fprintf(w, "Active channels: %d\n\n", len(report.Subscriptions.Channels))

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Processor", "Window", "Rules", "Close", "Volume", "Open Time"})

	for _, status := range report.Processors {
		rules := make([]string, 0, len(status.EnabledRules))
		for _, kind := range status.EnabledRules {
			rules = append(rules, string(kind))
		}

		row := table.Row{status.ID.String(), fmt.Sprintf("%d/%d", status.WindowLength, status.Config.MaxWindow()), strings.Join(rules, ","), "-", "-", "-"}
		if status.Latest != nil {
			row[3] = status.Latest.Close.String()
			row[4] = status.Latest.Volume.String()
			row[5] = status.Latest.OpenTime.Format(time.RFC3339)
		}

		t.AppendRow(row)
	}

	t.AppendFooter(table.Row{"Total", len(report.Processors)})
	t.Render()
}
