package framework

import (
	"errors"
	"fmt"
	"runtime/debug"
	"time"
)

type environment struct {
	results    Results
	testLogger TestLogger
	filter     Filter
}

// Context is the framework-level state of a single test or group of tests. It accumulates
// failures and debug output for that test, and reports them to the TestLogger when the test
// finishes.
type Context struct {
	env         *environment
	id          TestID
	debugLogger CapturingLogger
	failed      bool
	skipped     bool
	skipReason  string
	errors      []error
	deferred    []func()
}

// Run executes the top-level action and returns the accumulated results of it and of every
// subtest it started.
func Run(
	filter Filter,
	testLogger TestLogger,
	action func(*Context),
) Results {
	if testLogger == nil {
		testLogger = nullTestLogger{}
	}
	env := &environment{
		filter:     filter,
		testLogger: testLogger,
	}
	started := time.Now()
	c := &Context{env: env}
	c.run(action)
	env.results.Duration = time.Since(started)
	return env.results
}

func (c *Context) run(action func(*Context)) {
	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			if !c.skipped {
				c.failed = true
				var addError error
				if _, ok := r.(*Context); ok {
					if len(c.errors) == 0 {
						addError = errors.New("test failed with no failure message")
					}
				} else {
					addError = fmt.Errorf("unexpected panic in test: %+v\n%s", r, string(debug.Stack()))
				}
				if addError != nil {
					c.errors = append(c.errors, addError)
					c.env.testLogger.TestError(c.id, addError)
				}
			}
		}
		for i := len(c.deferred) - 1; i >= 0; i-- {
			c.deferred[i]()
		}
		if len(c.id.Path) == 0 {
			return
		}
		result := TestResult{
			TestID:     c.id,
			Errors:     c.errors,
			Skipped:    c.skipped,
			SkipReason: c.skipReason,
			Duration:   time.Since(started),
		}
		c.env.results.Tests = append(c.env.results.Tests, result)
		switch {
		case c.skipped:
			c.env.results.Skipped = append(c.env.results.Skipped, result)
		case c.failed:
			c.env.results.Failures = append(c.env.results.Failures, result)
		}
	}()

	action(c)
}

// ID returns the full identifier of this test.
func (c *Context) ID() TestID {
	return c.id
}

// Run starts a subtest. A failure or panic inside the subtest is recorded for that subtest
// only; the caller continues with its next step.
func (c *Context) Run(name string, action func(*Context)) {
	id := c.id.Plus(name)

	c.env.testLogger.TestStarted(id)
	if c.env.filter != nil && !c.env.filter(id) {
		c.env.testLogger.TestSkipped(id, "excluded by filter parameters")
		return
	}
	c1 := &Context{
		id:  id,
		env: c.env,
	}
	c1.run(action)
	if c1.skipped {
		c.env.testLogger.TestSkipped(id, c1.skipReason)
	} else {
		c.env.testLogger.TestFinished(id, c1.failed, c1.debugLogger.Output())
	}
}

// Errorf records a failure without stopping the test.
func (c *Context) Errorf(format string, args ...interface{}) {
	c.failed = true
	err := fmt.Errorf(format, args...)
	c.errors = append(c.errors, err)
	c.env.testLogger.TestError(c.id, err)
}

// FailNow stops the test immediately. It must be called from the goroutine running the test.
func (c *Context) FailNow() {
	panic(c)
}

// Failed reports whether the test has failed so far.
func (c *Context) Failed() bool {
	return c.failed
}

func (c *Context) Skip() {
	c.skipped = true
	panic(c)
}

func (c *Context) SkipWithReason(reason string) {
	c.skipReason = reason
	c.Skip()
}

// Defer schedules a function to run when the test finishes, whether it passed or not.
func (c *Context) Defer(fn func()) {
	c.deferred = append(c.deferred, fn)
}

// Debug adds a message to the test's captured debug output.
func (c *Context) Debug(message string, args ...interface{}) {
	c.debugLogger.Printf(message, args...)
}

// Infof adds a message to the captured debug output and also passes it to the TestLogger
// immediately, for output that should be visible whatever the debug settings are.
func (c *Context) Infof(message string, args ...interface{}) {
	c.debugLogger.Printf(message, args...)
	c.env.testLogger.TestInfo(c.id, fmt.Sprintf(message, args...))
}

func (c *Context) DebugLogger() Logger {
	return &c.debugLogger
}
