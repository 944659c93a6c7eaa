package report

import (
	"encoding/xml"
	"fmt"
	"strings"
)

// JUnit XML structures, in the subset CI servers read.

type junitSuites struct {
	XMLName  xml.Name     `xml:"testsuites"`
	Name     string       `xml:"name,attr"`
	Tests    int          `xml:"tests,attr"`
	Failures int          `xml:"failures,attr"`
	Errors   int          `xml:"errors,attr"`
	Skipped  int          `xml:"skipped,attr"`
	Time     string       `xml:"time,attr"`
	Suites   []junitSuite `xml:"testsuite"`
}

type junitSuite struct {
	Name       string          `xml:"name,attr"`
	Tests      int             `xml:"tests,attr"`
	Failures   int             `xml:"failures,attr"`
	Errors     int             `xml:"errors,attr"`
	Skipped    int             `xml:"skipped,attr"`
	Time       string          `xml:"time,attr"`
	Timestamp  string          `xml:"timestamp,attr"`
	Properties []junitProperty `xml:"properties>property,omitempty"`
	Cases      []junitCase     `xml:"testcase"`
}

type junitProperty struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

type junitCase struct {
	Name      string        `xml:"name,attr"`
	ClassName string        `xml:"classname,attr"`
	File      string        `xml:"file,attr,omitempty"`
	Time      string        `xml:"time,attr"`
	Failure   *junitProblem `xml:"failure,omitempty"`
	Error     *junitProblem `xml:"error,omitempty"`
	Skipped   *junitSkipped `xml:"skipped,omitempty"`
	SystemOut string        `xml:"system-out,omitempty"`
}

type junitProblem struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Body    string `xml:",chardata"`
}

type junitSkipped struct {
	Message string `xml:"message,attr,omitempty"`
}

// BuildJUnit converts a report into a JUnit document: one suite per run, one
// test case per flow. The step log goes to system-out.
func BuildJUnit(r *Report) ([]byte, error) {
	suite := junitSuite{
		Name:      r.Runner.Name,
		Time:      seconds(r.Duration),
		Timestamp: r.StartTime.Format("2006-01-02T15:04:05"),
		Properties: []junitProperty{
			{Name: "runId", Value: r.RunID},
			{Name: "driver", Value: r.Runner.Driver},
		},
	}
	if r.Runner.Server != "" {
		suite.Properties = append(suite.Properties, junitProperty{Name: "server", Value: r.Runner.Server})
	}

	for _, f := range r.Flows {
		tc := junitCase{
			Name:      f.Name,
			ClassName: suite.Name,
			File:      f.File,
			Time:      seconds(f.Duration),
			SystemOut: stepLog(f),
		}

		switch f.Status {
		case StatusFailed:
			tc.Failure = flowProblem(f)
			suite.Failures++
		case StatusErrored:
			tc.Error = flowProblem(f)
			suite.Errors++
		case StatusSkipped:
			tc.Skipped = &junitSkipped{Message: f.Error}
			suite.Skipped++
		}

		suite.Cases = append(suite.Cases, tc)
		suite.Tests++
	}

	doc := junitSuites{
		Name:     suite.Name,
		Tests:    suite.Tests,
		Failures: suite.Failures,
		Errors:   suite.Errors,
		Skipped:  suite.Skipped,
		Time:     suite.Time,
		Suites:   []junitSuite{suite},
	}

	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), append(out, '\n')...), nil
}

// WriteJUnit writes the JUnit document for r to path.
func WriteJUnit(path string, r *Report) error {
	data, err := BuildJUnit(r)
	if err != nil {
		return err
	}
	return atomicWrite(path, data)
}

// flowProblem describes the first failing command of a flow.
func flowProblem(f Flow) *junitProblem {
	p := &junitProblem{Message: f.Error, Type: "error"}
	if f.SessionError != "" {
		p.Type = "session_not_created"
		p.Body = f.SessionError
		return p
	}
	for _, c := range f.Commands {
		if c.Error != nil && (c.Status == StatusFailed || c.Status == StatusErrored) {
			p.Type = c.Error.Code
			p.Message = c.Error.Message
			p.Body = fmt.Sprintf("step %d: %s\n%s", c.Index+1, c.Description, c.Error.Message)
			break
		}
	}
	return p
}

// stepLog renders one line per command.
func stepLog(f Flow) string {
	var b strings.Builder
	for _, c := range f.Commands {
		fmt.Fprintf(&b, "[%s] %d. %s (%dms)\n", c.Status, c.Index+1, c.Description, c.Duration)
		if c.Error != nil {
			fmt.Fprintf(&b, "    %s\n", c.Error.Message)
		}
	}
	if f.Teardown != nil && f.Teardown.Error != "" {
		fmt.Fprintf(&b, "teardown: %s\n", f.Teardown.Error)
	}
	return b.String()
}

func seconds(ms int64) string {
	return fmt.Sprintf("%.3f", float64(ms)/1000)
}
