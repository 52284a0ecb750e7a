// Package output renders run progress and the final summary to the console.
package output

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/Blodie/locust-stages/internal/perf/metrics"
)

// ColorScheme holds the colors used by the console reporter.
type ColorScheme struct {
	Header  *color.Color
	Label   *color.Color
	Value   *color.Color
	Success *color.Color
	Failure *color.Color
}

// DefaultColorScheme returns the default colors.
func DefaultColorScheme() *ColorScheme {
	return &ColorScheme{
		Header:  color.New(color.FgCyan, color.Bold),
		Label:   color.New(color.FgYellow),
		Value:   color.New(color.FgWhite),
		Success: color.New(color.FgGreen),
		Failure: color.New(color.FgRed, color.Bold),
	}
}

// NoColorScheme returns the default scheme with every color disabled.
func NoColorScheme() *ColorScheme {
	scheme := DefaultColorScheme()
	scheme.Header.DisableColor()
	scheme.Label.DisableColor()
	scheme.Value.DisableColor()
	scheme.Success.DisableColor()
	scheme.Failure.DisableColor()
	return scheme
}

// Console implements the run reporter: periodic progress blocks while the
// test runs and a summary table after it. Colors are dropped automatically
// when the writer is not a terminal.
type Console struct {
	name   string
	writer io.Writer
	scheme *ColorScheme
}

// ConsoleConfig configures a Console.
type ConsoleConfig struct {
	// Name of the run, shown in the header.
	Name string

	// Writer defaults to stdout.
	Writer io.Writer

	// NoColor forces plain output even on a terminal.
	NoColor bool
}

// NewConsole creates a console reporter.
func NewConsole(cfg ConsoleConfig) *Console {
	if cfg.Writer == nil {
		cfg.Writer = os.Stdout
	}

	scheme := DefaultColorScheme()
	if cfg.NoColor || !writerIsTerminal(cfg.Writer) {
		scheme = NoColorScheme()
	}

	return &Console{
		name:   cfg.Name,
		writer: cfg.Writer,
		scheme: scheme,
	}
}

func writerIsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

// Progress prints one periodic stats block with run-duration stamps.
func (c *Console) Progress(snap *metrics.Snapshot, requests []metrics.RequestStats, stageIndex, stageCount int) {
	now := snap.StartTime.Add(snap.Elapsed)

	c.scheme.Header.Fprintf(c.writer, "=== %s ===\n", c.name)
	c.printStamp("started", snap.StartTime)
	c.printStamp("now", now)
	c.line("elapsed", snap.Elapsed.Round(time.Second).String())
	c.line("stage", fmt.Sprintf("%d/%d", stageIndex+1, stageCount))
	c.line("active users", fmt.Sprintf("%d", snap.ActiveVUs))
	c.printCounters(snap)
	c.printRequests(requests)
	fmt.Fprintln(c.writer)
}

// Summary prints the final run report.
func (c *Console) Summary(snap *metrics.Snapshot, requests []metrics.RequestStats) {
	c.scheme.Header.Fprintf(c.writer, "=== %s: summary ===\n", c.name)
	c.printStamp("started", snap.StartTime)
	c.line("duration", snap.Elapsed.Round(time.Second).String())
	c.printCounters(snap)
	c.printLatency(snap.Latency)
	c.printRequests(requests)
}

func (c *Console) printStamp(label string, t time.Time) {
	c.line(label, t.Format("2006-01-02 15:04:05"))
}

func (c *Console) line(label, value string) {
	c.scheme.Label.Fprintf(c.writer, "%-14s", label)
	c.scheme.Value.Fprintln(c.writer, value)
}

func (c *Console) printCounters(snap *metrics.Snapshot) {
	c.line("requests", fmt.Sprintf("%d (%.1f/s)", snap.TotalRequests, snap.RPS))
	c.scheme.Label.Fprintf(c.writer, "%-14s", "outcomes")
	c.scheme.Success.Fprintf(c.writer, "%d ok", snap.SuccessRequests)
	fmt.Fprint(c.writer, " / ")
	failures := c.scheme.Success
	if snap.FailedRequests > 0 {
		failures = c.scheme.Failure
	}
	failures.Fprintf(c.writer, "%d failed (%.2f%%)\n", snap.FailedRequests, snap.ErrorRate*100)
}

func (c *Console) printLatency(lat metrics.LatencyStats) {
	if lat.Count == 0 {
		return
	}
	c.line("latency", fmt.Sprintf("avg %s  p50 %s  p95 %s  p99 %s  max %s",
		round(lat.Mean), round(lat.P50), round(lat.P95), round(lat.P99), round(lat.Max)))
}

func (c *Console) printRequests(requests []metrics.RequestStats) {
	if len(requests) == 0 {
		return
	}
	c.scheme.Label.Fprintf(c.writer, "%-14s\n", "per request")
	for _, r := range requests {
		style := c.scheme.Success
		if r.Failures > 0 {
			style = c.scheme.Failure
		}
		fmt.Fprintf(c.writer, "  %-48s %7d reqs  ", r.Name, r.Count)
		style.Fprintf(c.writer, "%d failed", r.Failures)
		fmt.Fprintf(c.writer, "  p95 %s\n", round(r.Latency.P95))
	}
}

func round(d time.Duration) time.Duration {
	return d.Round(time.Millisecond)
}
