package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sarathm09/vibranium/packages/core/runner"
)

// Formatter renders job results.
type Formatter interface {
	FormatJob(job *runner.JobResult)
	FormatError(err error)
	FormatHeader(version string)
}

// Flushable is implemented by formatters that write once all jobs are in.
type Flushable interface {
	Flush(totalDuration time.Duration) error
}

// Formats lists the accepted --output values.
var Formats = []string{"console", "json", "junit"}

// New returns the formatter for format writing to w.
func New(format string, w io.Writer, verbose, noColor bool) (Formatter, error) {
	switch strings.ToLower(format) {
	case "", "console":
		return NewConsoleFormatter(WithWriter(w), WithVerbose(verbose), WithNoColor(noColor)), nil
	case "json":
		return NewJSONFormatter(JSONWithWriter(w)), nil
	case "junit":
		return NewJUnitFormatter(JUnitWithWriter(w)), nil
	}
	return nil, fmt.Errorf("unknown output format %q (supported: %s)", format, strings.Join(Formats, ", "))
}
