// Package report renders the aggregated benchmark results: a flat
// text table for the terminal, CSV for downstream analysis, and an
// optional HTML percentile chart.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/obulab/obu-bench/internal/client"
	"github.com/obulab/obu-bench/internal/stats"
)

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// WriteTable renders the flat summary table:
// protocol, count, p50, p90, p95, p99, error-rate, bytes.
func WriteTable(w io.Writer, snaps []stats.Snapshot) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PROTOCOL\tCOUNT\tP50(ms)\tP90(ms)\tP95(ms)\tP99(ms)\tERR%\tBYTES")
	for _, s := range snaps {
		fmt.Fprintf(tw, "%s\t%d\t%.1f\t%.1f\t%.1f\t%.1f\t%.2f\t%d\n",
			s.Protocol, s.Count,
			ms(s.P50), ms(s.P90), ms(s.P95), ms(s.P99),
			s.ErrorRate()*100, s.Bytes)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	return writeErrorBreakdown(w, snaps)
}

// writeErrorBreakdown lists per-class error counts under the table,
// one line per protocol that saw failures.
func writeErrorBreakdown(w io.Writer, snaps []stats.Snapshot) error {
	for _, s := range snaps {
		if len(s.Errors) == 0 {
			continue
		}
		classes := make([]string, 0, len(s.Errors))
		for c := range s.Errors {
			classes = append(classes, string(c))
		}
		sort.Strings(classes)
		if _, err := fmt.Fprintf(w, "errors[%s]:", s.Protocol); err != nil {
			return err
		}
		for _, c := range classes {
			fmt.Fprintf(w, " %s=%d", c, s.Errors[client.Class(c)])
		}
		fmt.Fprintln(w)
	}
	return nil
}

// WriteCSV emits the same flat table as CSV.
func WriteCSV(w io.Writer, snaps []stats.Snapshot) error {
	cw := csv.NewWriter(w)
	header := []string{"protocol", "count", "p50_ms", "p90_ms", "p95_ms", "p99_ms", "error_rate", "bytes"}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, s := range snaps {
		row := []string{
			s.Protocol,
			strconv.FormatInt(s.Count, 10),
			strconv.FormatFloat(ms(s.P50), 'f', 3, 64),
			strconv.FormatFloat(ms(s.P90), 'f', 3, 64),
			strconv.FormatFloat(ms(s.P95), 'f', 3, 64),
			strconv.FormatFloat(ms(s.P99), 'f', 3, 64),
			strconv.FormatFloat(s.ErrorRate(), 'f', 4, 64),
			strconv.FormatInt(s.Bytes, 10),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteChart renders an HTML bar chart of the latency percentiles per
// protocol.
func WriteChart(w io.Writer, snaps []stats.Snapshot) error {
	bar := charts.NewBar()
	bar.SetGlobalOptions(charts.WithTitleOpts(opts.Title{
		Title:    "Light-status fetch latency by protocol",
		Subtitle: "percentiles in milliseconds",
	}))

	labels := make([]string, 0, len(snaps))
	p50 := make([]opts.BarData, 0, len(snaps))
	p90 := make([]opts.BarData, 0, len(snaps))
	p95 := make([]opts.BarData, 0, len(snaps))
	p99 := make([]opts.BarData, 0, len(snaps))
	for _, s := range snaps {
		labels = append(labels, s.Protocol)
		p50 = append(p50, opts.BarData{Value: ms(s.P50)})
		p90 = append(p90, opts.BarData{Value: ms(s.P90)})
		p95 = append(p95, opts.BarData{Value: ms(s.P95)})
		p99 = append(p99, opts.BarData{Value: ms(s.P99)})
	}
	bar.SetXAxis(labels).
		AddSeries("p50", p50).
		AddSeries("p90", p90).
		AddSeries("p95", p95).
		AddSeries("p99", p99)
	return bar.Render(w)
}
