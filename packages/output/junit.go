package output

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/calvale/webwalk/packages/core/runner"
	"github.com/calvale/webwalk/packages/webclient"
)

// JUnitTestSuites is the root element.
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

// JUnitTestSuite is one walk.
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

// JUnitTestCase is one step.
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

// JUnitFormatter accumulates run results and writes JUnit XML on Flush.
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

func (f *JUnitFormatter) FormatResult(result *runner.RunResult) {
	name := result.Walk
	if name == "" {
		name = result.File
	}
	suite := JUnitTestSuite{
		Name:      name,
		Tests:     len(result.Steps),
		Skipped:   result.Skipped,
		Time:      result.Duration.Seconds(),
		Timestamp: time.Now().Format(time.RFC3339),
		TestCases: make([]JUnitTestCase, 0, len(result.Steps)),
	}

	for _, s := range result.Steps {
		tc := JUnitTestCase{
			Name:      s.Name,
			ClassName: result.File,
			Time:      s.Duration.Seconds(),
		}

		if s.Skipped {
			tc.Skipped = &JUnitSkipped{
				Message: s.SkipReason,
			}
		} else if s.Error != nil {
			suite.Errors++
			tc.Error = &JUnitError{
				Message: s.Error.Error(),
				Type:    errorKind(s.Error),
			}
		} else if !s.Passed {
			tc.Failure = &JUnitFailure{
				Message: "expectations failed",
				Type:    "AssertionError",
				Content: failureDetails(s),
			}
		}

		suite.TestCases = append(suite.TestCases, tc)
	}

	// Steps with a transport or application error count as errors, not
	// assertion failures.
	suite.Failures = result.Failed - suite.Errors

	f.testSuites = append(f.testSuites, suite)
}

func (f *JUnitFormatter) FormatError(err error) {
	// Errors are included in individual test cases.
}

func (f *JUnitFormatter) FormatHeader(version string) {
	// No header in JUnit XML.
}

// Flush writes the accumulated JUnit XML.
func (f *JUnitFormatter) Flush(totalDuration time.Duration) error {
	var totalTests, totalFailures, totalErrors, totalSkipped int
	for _, suite := range f.testSuites {
		totalTests += suite.Tests
		totalFailures += suite.Failures
		totalErrors += suite.Errors
		totalSkipped += suite.Skipped
	}

	suites := JUnitTestSuites{
		Name:       "webwalk",
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

// failureDetails collects the failed assertion lines and db check
// messages of one step.
func failureDetails(s *runner.StepResult) string {
	var b strings.Builder
	for _, a := range s.Assertions {
		if !a.Passed {
			fmt.Fprintf(&b, "%s: %s\n", a.Assertion.Raw, a.Message)
		}
	}
	if s.DBCheck != nil && !s.DBCheck.Passed {
		for _, msg := range s.DBCheck.Failures {
			fmt.Fprintf(&b, "db %s: %s\n", s.DBCheck.Query, msg)
		}
	}
	return b.String()
}

func errorKind(err error) string {
	var (
		te *webclient.TransportError
		se *webclient.StatusError
		fe *webclient.FaultError
		de *webclient.DecodeError
	)
	switch {
	case errors.As(err, &te):
		return "TransportError"
	case errors.As(err, &fe):
		return "FaultError"
	case errors.As(err, &se):
		return "StatusError"
	case errors.As(err, &de):
		return "DecodeError"
	}
	return "Error"
}
