package output

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sarathm09/vibranium/packages/core/runner"
)

// JUnit XML structures

// JUnitTestSuites is the root element
type JUnitTestSuites struct {
	XMLName    xml.Name         `xml:"testsuites"`
	Name       string           `xml:"name,attr,omitempty"`
	Tests      int              `xml:"tests,attr"`
	Failures   int              `xml:"failures,attr"`
	Errors     int              `xml:"errors,attr"`
	Skipped    int              `xml:"skipped,attr"`
	Time       float64          `xml:"time,attr"`
	Timestamp  string           `xml:"timestamp,attr,omitempty"`
	TestSuites []JUnitTestSuite `xml:"testsuite"`
}

// JUnitTestSuite is one scenario
type JUnitTestSuite struct {
	XMLName   xml.Name        `xml:"testsuite"`
	Name      string          `xml:"name,attr"`
	Tests     int             `xml:"tests,attr"`
	Failures  int             `xml:"failures,attr"`
	Errors    int             `xml:"errors,attr"`
	Skipped   int             `xml:"skipped,attr"`
	Time      float64         `xml:"time,attr"`
	Timestamp string          `xml:"timestamp,attr,omitempty"`
	TestCases []JUnitTestCase `xml:"testcase"`
}

// JUnitTestCase is one endpoint execution
type JUnitTestCase struct {
	XMLName   xml.Name      `xml:"testcase"`
	Name      string        `xml:"name,attr"`
	ClassName string        `xml:"classname,attr"`
	Time      float64       `xml:"time,attr"`
	Failure   *JUnitFailure `xml:"failure,omitempty"`
	Error     *JUnitError   `xml:"error,omitempty"`
	Skipped   *JUnitSkipped `xml:"skipped,omitempty"`
}

type JUnitFailure struct {
	Message string `xml:"message,attr,omitempty"`
	Type    string `xml:"type,attr,omitempty"`
	Content string `xml:",chardata"`
}

type JUnitError struct {
	Message string `xml:"message,attr,omitempty"`
	Type    string `xml:"type,attr,omitempty"`
	Content string `xml:",chardata"`
}

type JUnitSkipped struct {
	Message string `xml:"message,attr,omitempty"`
}

// JUnitFormatter formats job results as JUnit XML
type JUnitFormatter struct {
	writer     io.Writer
	testSuites []JUnitTestSuite
}

type JUnitOption func(*JUnitFormatter)

func NewJUnitFormatter(opts ...JUnitOption) *JUnitFormatter {
	f := &JUnitFormatter{
		writer:     os.Stdout,
		testSuites: make([]JUnitTestSuite, 0),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JUnitWithWriter(w io.Writer) JUnitOption {
	return func(f *JUnitFormatter) {
		f.writer = w
	}
}

func (f *JUnitFormatter) FormatJob(job *runner.JobResult) {
	for _, s := range job.Scenarios {
		if s == nil {
			continue
		}
		className := s.Collection + "." + s.Name
		suite := JUnitTestSuite{
			Name:      className,
			Time:      s.Duration.Seconds(),
			Timestamp: s.StartedAt.Format(time.RFC3339),
			TestCases: make([]JUnitTestCase, 0, len(s.Endpoints)),
		}

		if s.Status == runner.ScenarioError {
			suite.Tests = 1
			suite.Skipped = 1
			suite.TestCases = append(suite.TestCases, JUnitTestCase{
				Name:      s.Name,
				ClassName: className,
				Skipped:   &JUnitSkipped{Message: s.Message},
			})
			f.testSuites = append(f.testSuites, suite)
			continue
		}

		if len(s.Endpoints) == 0 && s.Message != "" {
			suite.Tests = 1
			suite.Errors = 1
			suite.TestCases = append(suite.TestCases, JUnitTestCase{
				Name:      s.Name,
				ClassName: className,
				Error:     &JUnitError{Message: s.Message, Type: "ScenarioError"},
			})
			f.testSuites = append(f.testSuites, suite)
			continue
		}

		for _, r := range s.Endpoints {
			name := r.Ref.Endpoint
			if r.Repeat > 0 {
				name = fmt.Sprintf("%s #%d", name, r.Repeat+1)
			}
			tc := JUnitTestCase{
				Name:      name,
				ClassName: className,
				Time:      r.Duration.Seconds(),
			}
			suite.Tests++

			switch {
			case r.Passed:
			case r.State == runner.StateFailed:
				suite.Errors++
				tc.Error = &JUnitError{
					Message: r.Message,
					Type:    string(r.FailedAt),
				}
			default:
				suite.Failures++
				var failureMsg strings.Builder
				for _, a := range r.FailedAssertions() {
					fmt.Fprintf(&failureMsg, "%s: expected %v, obtained %v. %s\n",
						a.Test, a.Expected, a.Obtained, a.Message)
				}
				tc.Failure = &JUnitFailure{
					Message: "Assertion failed",
					Type:    "AssertionError",
					Content: failureMsg.String(),
				}
			}
			suite.TestCases = append(suite.TestCases, tc)
		}

		f.testSuites = append(f.testSuites, suite)
	}
}

func (f *JUnitFormatter) FormatError(err error) {
	// Errors are included in individual test cases
}

func (f *JUnitFormatter) FormatHeader(version string) {
	// No header needed for JUnit XML
}

// Flush writes the accumulated JUnit XML output
func (f *JUnitFormatter) Flush(totalDuration time.Duration) error {
	var totalTests, totalFailures, totalErrors, totalSkipped int
	for _, suite := range f.testSuites {
		totalTests += suite.Tests
		totalFailures += suite.Failures
		totalErrors += suite.Errors
		totalSkipped += suite.Skipped
	}

	suites := JUnitTestSuites{
		Name:       "vibranium",
		Tests:      totalTests,
		Failures:   totalFailures,
		Errors:     totalErrors,
		Skipped:    totalSkipped,
		Time:       totalDuration.Seconds(),
		Timestamp:  time.Now().Format(time.RFC3339),
		TestSuites: f.testSuites,
	}

	fmt.Fprintf(f.writer, "<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	encoder := xml.NewEncoder(f.writer)
	encoder.Indent("", "  ")
	return encoder.Encode(suites)
}
