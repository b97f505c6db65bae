// Package report presents the outcome of a run: progress on the console while it happens,
// a summary at the end, and optionally a spreadsheet of every request made.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/tripsuite/booking-contract-tests/apitest"
	"github.com/tripsuite/booking-contract-tests/framework"
)

// SlowRequestThreshold is the duration above which a request is flagged as slow.
const SlowRequestThreshold = 300 * time.Millisecond

type palette struct {
	failed  *color.Color
	skipped *color.Color
	passed  *color.Color
	heading *color.Color
}

func newPalette(noColor bool) palette {
	p := palette{
		failed:  color.New(color.FgRed, color.Bold),
		skipped: color.New(color.FgYellow),
		passed:  color.New(color.FgGreen),
		heading: color.New(color.Bold),
	}
	if noColor {
		for _, c := range []*color.Color{p.failed, p.skipped, p.passed, p.heading} {
			c.DisableColor()
		}
	}
	return p
}

// ConsoleTestLogger writes the progress of each test as it runs.
type ConsoleTestLogger struct {
	DebugOutputOnFailure bool
	DebugOutputOnSuccess bool

	out    io.Writer
	colors palette
}

func NewConsoleTestLogger(out io.Writer, noColor bool) *ConsoleTestLogger {
	return &ConsoleTestLogger{out: out, colors: newPalette(noColor)}
}

func (c *ConsoleTestLogger) TestStarted(id framework.TestID) {
	fmt.Fprintf(c.out, "[%s]\n", id)
}

func (c *ConsoleTestLogger) TestInfo(id framework.TestID, message string) {
	for _, line := range strings.Split(message, "\n") {
		fmt.Fprintf(c.out, "  %s\n", line)
	}
}

func (c *ConsoleTestLogger) TestError(id framework.TestID, err error) {
	for _, line := range strings.Split(err.Error(), "\n") {
		fmt.Fprintf(c.out, "  %s\n", c.colors.failed.Sprint(line))
	}
}

func (c *ConsoleTestLogger) TestFinished(id framework.TestID, failed bool, debugOutput framework.CapturedOutput) {
	if failed {
		fmt.Fprintf(c.out, "  %s\n", c.colors.failed.Sprintf("FAILED: %s", id))
	}
	if len(debugOutput) > 0 &&
		((failed && c.DebugOutputOnFailure) || (!failed && c.DebugOutputOnSuccess)) {
		debugOutput.Dump(c.out, "    DEBUG ")
	}
}

func (c *ConsoleTestLogger) TestSkipped(id framework.TestID, reason string) {
	if reason == "" {
		fmt.Fprintf(c.out, "  %s\n", c.colors.skipped.Sprintf("SKIPPED: %s", id))
	} else {
		fmt.Fprintf(c.out, "  %s\n", c.colors.skipped.Sprintf("SKIPPED: %s (%s)", id, reason))
	}
}

// Summary is the totals of a run.
type Summary struct {
	Tests        int
	Passed       int
	Failed       int
	Skipped      int
	Requests     int
	SlowRequests int
	Duration     time.Duration
}

func Summarize(results framework.Results, records []apitest.Record) Summary {
	s := Summary{
		Tests:    len(results.Tests),
		Passed:   results.Passed(),
		Failed:   len(results.Failures),
		Skipped:  len(results.Skipped),
		Requests: len(records),
		Duration: results.Duration,
	}
	for _, r := range records {
		if r.Result.Duration > SlowRequestThreshold {
			s.SlowRequests++
		}
	}
	return s
}

// PrintResults writes the summary of a run, followed by the failed and skipped tests.
func PrintResults(out io.Writer, results framework.Results, records []apitest.Record, noColor bool) {
	colors := newPalette(noColor)
	s := Summarize(results, records)

	fmt.Fprintln(out)
	colors.heading.Fprintln(out, "Test summary")
	fmt.Fprintf(out, "  Total:    %d\n", s.Tests)
	fmt.Fprintf(out, "  Passed:   %s\n", colors.passed.Sprint(s.Passed))
	if s.Failed > 0 {
		fmt.Fprintf(out, "  Failed:   %s\n", colors.failed.Sprint(s.Failed))
	} else {
		fmt.Fprintf(out, "  Failed:   %d\n", s.Failed)
	}
	fmt.Fprintf(out, "  Skipped:  %d\n", s.Skipped)
	fmt.Fprintf(out, "  Requests: %d (%d slower than %s)\n", s.Requests, s.SlowRequests, SlowRequestThreshold)
	fmt.Fprintf(out, "  Duration: %s\n", s.Duration.Round(time.Millisecond))

	if len(results.Failures) > 0 {
		fmt.Fprintln(out)
		colors.failed.Fprintln(out, "FAILED TESTS:")
		for _, f := range results.Failures {
			fmt.Fprintf(out, "  %s\n", f.TestID)
			for _, e := range f.Errors {
				for _, line := range strings.Split(e.Error(), "\n") {
					fmt.Fprintf(out, "    %s\n", line)
				}
			}
		}
	}
	if len(results.Skipped) > 0 {
		fmt.Fprintln(out)
		colors.skipped.Fprintln(out, "SKIPPED TESTS:")
		for _, r := range results.Skipped {
			if r.SkipReason == "" {
				fmt.Fprintf(out, "  %s\n", r.TestID)
			} else {
				fmt.Fprintf(out, "  %s (%s)\n", r.TestID, r.SkipReason)
			}
		}
	}

	fmt.Fprintln(out)
	if results.OK() {
		colors.passed.Fprintln(out, "All tests passed")
	} else {
		colors.failed.Fprintf(out, "%d of %d tests failed\n", s.Failed, s.Tests)
	}
}
