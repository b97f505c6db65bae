package framework

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingTestLogger struct {
	events []string
}

func (r *recordingTestLogger) TestStarted(id TestID) {
	r.events = append(r.events, "started "+id.String())
}

func (r *recordingTestLogger) TestInfo(id TestID, message string) {
	r.events = append(r.events, "info "+id.String()+": "+message)
}

func (r *recordingTestLogger) TestError(id TestID, err error) {
	r.events = append(r.events, "error "+id.String())
}

func (r *recordingTestLogger) TestFinished(id TestID, failed bool, _ CapturedOutput) {
	r.events = append(r.events, fmt.Sprintf("finished %s failed=%t", id, failed))
}

func (r *recordingTestLogger) TestSkipped(id TestID, reason string) {
	r.events = append(r.events, "skipped "+id.String()+" ("+reason+")")
}

func TestRunContinuesAfterFailureAndPanic(t *testing.T) {
	logger := &recordingTestLogger{}
	var ranLast bool

	results := Run(nil, logger, func(c *Context) {
		c.Run("a", func(c *Context) {
			c.Errorf("bad status %d", 500)
		})
		c.Run("b", func(c *Context) {
			panic(errors.New("boom"))
		})
		c.Run("c", func(c *Context) {
			c.FailNow()
		})
		c.Run("d", func(c *Context) {
			ranLast = true
		})
	})

	assert.True(t, ranLast)
	assert.False(t, results.OK())
	require.Len(t, results.Tests, 4)
	require.Len(t, results.Failures, 3)
	assert.Equal(t, "a", results.Failures[0].TestID.String())
	assert.EqualError(t, results.Failures[0].Errors[0], "bad status 500")
	assert.Contains(t, results.Failures[1].Errors[0].Error(), "unexpected panic in test: boom")
	assert.EqualError(t, results.Failures[2].Errors[0], "test failed with no failure message")
	assert.Equal(t, 1, results.Passed())
}

func TestSkipWithReason(t *testing.T) {
	logger := &recordingTestLogger{}
	results := Run(nil, logger, func(c *Context) {
		c.Run("group", func(c *Context) {
			c.Run("dependent", func(c *Context) {
				c.SkipWithReason("no booking_id")
			})
		})
	})

	assert.True(t, results.OK())
	require.Len(t, results.Skipped, 1)
	assert.Equal(t, "group/dependent", results.Skipped[0].TestID.String())
	assert.Equal(t, "no booking_id", results.Skipped[0].SkipReason)
	assert.Contains(t, logger.events, "skipped group/dependent (no booking_id)")
}

func TestFilterExcludesTests(t *testing.T) {
	var filters RegexFilters
	require.NoError(t, filters.MustNotMatch.Set("rate limit"))
	var ran []string

	results := Run(filters.AsFilter, nil, func(c *Context) {
		c.Run("car", func(c *Context) {
			c.Run("list cars", func(c *Context) { ran = append(ran, "list") })
			c.Run("rate limit", func(c *Context) { ran = append(ran, "probe") })
		})
	})

	assert.Equal(t, []string{"list"}, ran)
	assert.Len(t, results.Tests, 2)
}

func TestInfofIsLoggedAndCaptured(t *testing.T) {
	logger := &recordingTestLogger{}
	var captured CapturedOutput
	Run(nil, logger, func(c *Context) {
		c.Run("x", func(c *Context) {
			c.Infof("status %d", 201)
			captured = c.debugLogger.Output()
		})
	})

	assert.Contains(t, logger.events, "info x: status 201")
	require.Len(t, captured, 1)
	assert.Equal(t, "status 201", captured[0].Message)
}

func TestDeferredFunctionsRunInReverseOrder(t *testing.T) {
	var order []int
	Run(nil, nil, func(c *Context) {
		c.Run("x", func(c *Context) {
			c.Defer(func() { order = append(order, 1) })
			c.Defer(func() { order = append(order, 2) })
			c.FailNow()
		})
	})
	assert.Equal(t, []int{2, 1}, order)
}
