package report

import (
	"encoding/xml"
	"fmt"
	"io"
	"time"
)

// JUnitTestSuites is the root element of JUnit XML output.
type JUnitTestSuites struct {
	XMLName  xml.Name         `xml:"testsuites"`
	Name     string           `xml:"name,attr"`
	Tests    int              `xml:"tests,attr"`
	Failures int              `xml:"failures,attr"`
	Errors   int              `xml:"errors,attr"`
	Time     string           `xml:"time,attr"`
	Suites   []JUnitTestSuite `xml:"testsuite"`
}

// JUnitTestSuite is one batch.
type JUnitTestSuite struct {
	Name      string          `xml:"name,attr"`
	Tests     int             `xml:"tests,attr"`
	Failures  int             `xml:"failures,attr"`
	Errors    int             `xml:"errors,attr"`
	Skipped   int             `xml:"skipped,attr"`
	Time      string          `xml:"time,attr"`
	Timestamp string          `xml:"timestamp,attr"`
	ID        string          `xml:"id,attr,omitempty"`
	Cases     []JUnitTestCase `xml:"testcase"`
}

// JUnitTestCase is one step.
type JUnitTestCase struct {
	Name      string        `xml:"name,attr"`
	Classname string        `xml:"classname,attr"`
	Time      string        `xml:"time,attr"`
	Failure   *JUnitFailure `xml:"failure,omitempty"`
	Skipped   *JUnitSkipped `xml:"skipped,omitempty"`
	SystemOut string        `xml:"system-out,omitempty"`
}

// JUnitFailure is a failed step.
type JUnitFailure struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Content string `xml:",chardata"`
}

// JUnitSkipped is a step that was not reached.
type JUnitSkipped struct {
	Message string `xml:"message,attr"`
}

// FormatJUnit writes the result as JUnit XML. batchFile is used as the
// classname of every case.
func FormatJUnit(w io.Writer, result *RunResult, batchFile string) error {
	failures, skipped, errors := 0, 0, 0
	cases := make([]JUnitTestCase, 0, len(result.Steps))

	for _, step := range result.Steps {
		tc := JUnitTestCase{
			Name:      fmt.Sprintf("step[%d]: %s", step.Index, step.Label),
			Classname: batchFile,
			Time:      seconds(step.Duration),
			SystemOut: step.Output,
		}
		switch {
		case step.Skipped:
			skipped++
			tc.Skipped = &JUnitSkipped{Message: "not run after an earlier failure"}
		case !step.Passed:
			failures++
			tc.Failure = &JUnitFailure{
				Message: step.Error,
				Type:    failureType(step),
				Content: step.Error,
			}
		}
		cases = append(cases, tc)
	}

	// A run that ended before any step, such as a chain that failed to
	// build, is reported as a single error case.
	if len(cases) == 0 && result.Error != "" {
		errors = 1
		cases = append(cases, JUnitTestCase{
			Name:      "setup",
			Classname: batchFile,
			Time:      "0.000",
			Failure:   &JUnitFailure{Message: result.Error, Type: "SetupError", Content: result.Error},
		})
	}

	total := seconds(result.Duration)
	suites := JUnitTestSuites{
		Name:     "hiltest",
		Tests:    len(result.Steps),
		Failures: failures,
		Errors:   errors,
		Time:     total,
		Suites: []JUnitTestSuite{{
			Name:      result.Batch,
			Tests:     len(result.Steps),
			Failures:  failures,
			Errors:    errors,
			Skipped:   skipped,
			Time:      total,
			Timestamp: result.Started.UTC().Format(time.RFC3339),
			ID:        result.Session,
			Cases:     cases,
		}},
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(suites); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

func seconds(s float64) string {
	return fmt.Sprintf("%.3f", s)
}

func failureType(step StepResult) string {
	if step.TimedOut {
		return "Timeout"
	}
	return "StepFailure"
}
