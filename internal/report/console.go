package report

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/stampede-load/stampede/internal/metrics"
)

// Console prints a human-readable run summary. Colors are used only when
// writing to a terminal.
type Console struct {
	w     io.Writer
	quiet bool

	good      *color.Color
	bad       *color.Color
	warn      *color.Color
	heading   *color.Color
	highlight *color.Color
}

// NewConsole creates a summary printer for w. quiet reduces output to the
// verdict line.
func NewConsole(w io.Writer, quiet bool) *Console {
	c := &Console{
		w:         w,
		quiet:     quiet,
		good:      color.New(color.FgGreen, color.Bold),
		bad:       color.New(color.FgRed, color.Bold),
		warn:      color.New(color.FgYellow, color.Bold),
		heading:   color.New(color.Bold),
		highlight: color.New(color.FgCyan),
	}
	if !writerIsTerminal(w) {
		c.good.DisableColor()
		c.bad.DisableColor()
		c.warn.DisableColor()
		c.heading.DisableColor()
		c.highlight.DisableColor()
	}
	return c
}

func writerIsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// PrintSummary renders the run result.
func (c *Console) PrintSummary(r *RunResult) {
	if c.quiet {
		if r.Passed {
			fmt.Fprintln(c.w, c.good.Sprint("PASSED"))
		} else {
			fmt.Fprintln(c.w, c.bad.Sprint("FAILED"))
		}
		return
	}

	verdict := c.good.Sprint("passed ✓")
	if !r.Passed {
		verdict = c.bad.Sprint("failed ✗")
	}

	rule := strings.Repeat("─", 56)
	fmt.Fprintln(c.w)
	fmt.Fprintln(c.w, c.highlight.Sprint(rule))
	fmt.Fprintf(c.w, "%s - %s\n", c.heading.Sprint(displayName(r)), verdict)
	fmt.Fprintln(c.w, c.highlight.Sprint(rule))
	fmt.Fprintln(c.w)

	fmt.Fprintf(c.w, "Run ID:      %s\n", r.RunID)
	fmt.Fprintf(c.w, "Duration:    %s\n", formatDuration(r.Elapsed))
	fmt.Fprintf(c.w, "Iterations:  %d\n", r.Iterations)
	fmt.Fprintf(c.w, "Requests:    %d (%.1f/s)\n", r.Requests, r.RequestRate)
	fmt.Fprintln(c.w)

	c.printMetrics(r)
	c.printThresholds(r)
}

func (c *Console) printMetrics(r *RunResult) {
	fmt.Fprintln(c.w, c.heading.Sprint("Metrics:"))
	for _, name := range r.MetricNames() {
		m := r.Metrics[name]
		switch m.Kind {
		case metrics.KindCounter:
			fmt.Fprintf(c.w, "  %-28s total=%.0f  rate=%.2f/s\n", name, m.Total, m.PerSecond)
		case metrics.KindRate:
			line := fmt.Sprintf("  %-28s %.2f%% of %d", name, m.Fraction*100, m.Count)
			if m.Count > 0 && m.Fraction < 1 {
				line = c.warn.Sprint(line)
			}
			fmt.Fprintln(c.w, line)
		case metrics.KindTrend:
			fmt.Fprintf(c.w, "  %-28s min=%.1fms med=%.1fms p95=%.1fms max=%.1fms (n=%d)\n",
				name, m.Min, m.Med, m.P95, m.Max, m.Count)
		}
	}
	fmt.Fprintln(c.w)
}

func (c *Console) printThresholds(r *RunResult) {
	if len(r.Thresholds) == 0 {
		return
	}
	fmt.Fprintln(c.w, c.heading.Sprint("Thresholds:"))
	for _, t := range r.Thresholds {
		mark := c.good.Sprint("✓")
		if !t.Passed {
			mark = c.bad.Sprint("✗")
		}
		line := fmt.Sprintf("  %s %s: %s", mark, t.Metric, t.Expression)
		if t.Value != "" {
			line += fmt.Sprintf(" (actual: %s)", t.Value)
		}
		if !t.Passed && t.Message != "" {
			line += " - " + t.Message
		}
		fmt.Fprintln(c.w, line)
	}
	fmt.Fprintln(c.w)
}

func displayName(r *RunResult) string {
	if r.Name != "" {
		return r.Name
	}
	return "load test"
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	m := int(d.Minutes())
	s := d.Seconds() - float64(m)*60
	return fmt.Sprintf("%dm%.0fs", m, s)
}
