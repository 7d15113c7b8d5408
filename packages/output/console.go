package output

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/sarathm09/vibranium/packages/core/compiler"
	"github.com/sarathm09/vibranium/packages/core/runner"
)

// formatValue formats a value for display, truncating or summarizing large values
func formatValue(v any, maxLen int) string {
	switch val := v.(type) {
	case []any:
		return fmt.Sprintf("[array with %d items]", len(val))
	case map[string]any:
		return fmt.Sprintf("{object with %d keys}", len(val))
	}
	str := fmt.Sprintf("%v", v)
	if len(str) > maxLen {
		return str[:maxLen] + "..."
	}
	return str
}

type ConsoleFormatter struct {
	writer  io.Writer
	verbose bool
	noColor bool
}

type ConsoleOption func(*ConsoleFormatter)

func NewConsoleFormatter(opts ...ConsoleOption) *ConsoleFormatter {
	f := &ConsoleFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.noColor {
		color.NoColor = true
	}
	return f
}

func WithWriter(w io.Writer) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.writer = w
	}
}

func WithVerbose(v bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.verbose = v
	}
}

func WithNoColor(nc bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.noColor = nc
	}
}

func (f *ConsoleFormatter) FormatJob(job *runner.JobResult) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	fmt.Fprintf(f.writer, "\n%s\n", bold("Job "+job.ID))

	collection := ""
	for _, s := range job.Scenarios {
		if s == nil {
			continue
		}
		if s.Collection != collection {
			collection = s.Collection
			fmt.Fprintf(f.writer, "\n%s\n", bold(collection))
		}

		switch s.Status {
		case runner.ScenarioError:
			fmt.Fprintf(f.writer, "  %s %s (%s)\n", yellow("-"), s.Name, s.Message)
			continue
		case runner.ScenarioFailed:
			fmt.Fprintf(f.writer, "  %s %s %s\n", red("✗"), s.Name, cyan(fmt.Sprintf("(%dms)", s.Duration.Milliseconds())))
		default:
			fmt.Fprintf(f.writer, "  %s %s %s\n", green("✓"), s.Name, cyan(fmt.Sprintf("(%dms)", s.Duration.Milliseconds())))
		}
		if s.Message != "" {
			fmt.Fprintf(f.writer, "      %s %s\n", red("→"), s.Message)
		}

		for _, r := range s.Endpoints {
			symbol := green("✓")
			if !r.Passed {
				symbol = red("✗")
			}
			name := r.Ref.Endpoint
			if r.Repeat > 0 {
				name = fmt.Sprintf("%s #%d", name, r.Repeat+1)
			}
			suffix := fmt.Sprintf("(%dms)", r.Duration.Milliseconds())
			if r.Cached {
				suffix = "(cached)"
			}
			fmt.Fprintf(f.writer, "    %s %s %s\n", symbol, name, cyan(suffix))

			if f.verbose {
				fmt.Fprintf(f.writer, "        %s %s -> %d\n", r.Method, r.URL, r.StatusCode)
			}
			if r.Passed {
				continue
			}

			failed := r.FailedAssertions()
			if len(failed) == 0 && r.Message != "" {
				fmt.Fprintf(f.writer, "        %s %s\n", red("→"), r.Message)
			}
			for _, a := range failed {
				fmt.Fprintf(f.writer, "        %s %s\n", red("→"), a.Test)
				fmt.Fprintf(f.writer, "          Expected: %s\n", formatValue(a.Expected, 100))
				fmt.Fprintf(f.writer, "          Obtained: %s\n", formatValue(a.Obtained, 100))
				if a.Message != "" {
					fmt.Fprintf(f.writer, "          %s\n", a.Message)
				}
			}
		}
	}

	failed := job.EndpointsExecuted - job.EndpointsPassed
	fmt.Fprintf(f.writer, "\n")
	fmt.Fprintf(f.writer, "Endpoints:  ")
	if job.EndpointsPassed > 0 {
		fmt.Fprintf(f.writer, "%s, ", green(fmt.Sprintf("%d passed", job.EndpointsPassed)))
	}
	if failed > 0 {
		fmt.Fprintf(f.writer, "%s, ", red(fmt.Sprintf("%d failed", failed)))
	}
	fmt.Fprintf(f.writer, "%d total\n", job.EndpointsExecuted)
	fmt.Fprintf(f.writer, "Assertions: %d/%d passed\n", job.AssertionsPassed, job.AssertionsProcessed)
	if job.Summary.Total > 0 {
		l := job.Summary.Latency
		fmt.Fprintf(f.writer, "Latency:    p50 %s  p95 %s  p99 %s\n",
			l.P50.Round(time.Microsecond), l.P95.Round(time.Microsecond), l.P99.Round(time.Microsecond))
	}
	fmt.Fprintf(f.writer, "Time:       %dms\n", job.Duration.Milliseconds())
	fmt.Fprintf(f.writer, "\n")
}

func (f *ConsoleFormatter) FormatError(err error) {
	red := color.New(color.FgRed).SprintFunc()
	fmt.Fprintf(f.writer, "%s %v\n", red("Error:"), err)
}

func (f *ConsoleFormatter) FormatHeader(version string) {
	bold := color.New(color.Bold).SprintFunc()
	fmt.Fprintf(f.writer, "%s %s\n", bold("vibranium"), version)
}

// FormatTree prints compiled collections, scenarios and endpoints.
func (f *ConsoleFormatter) FormatTree(nodes []*compiler.Node) {
	bold := color.New(color.Bold).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	for _, c := range nodes {
		fmt.Fprintf(f.writer, "%s\n", bold(c.Name))
		for i, s := range c.Children {
			branch, indent := "├── ", "│   "
			if i == len(c.Children)-1 {
				branch, indent = "└── ", "    "
			}
			fmt.Fprintf(f.writer, "%s%s\n", branch, cyan(s.Name))
			for j, e := range s.Children {
				leaf := "├── "
				if j == len(s.Children)-1 {
					leaf = "└── "
				}
				fmt.Fprintf(f.writer, "%s%s%s\n", indent, leaf, e.Name)
			}
		}
	}
}
