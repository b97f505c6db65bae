package apitest

import (
	"context"
	"fmt"
	"time"

	"github.com/tripsuite/booking-contract-tests/client"
	"github.com/tripsuite/booking-contract-tests/framework"
	"github.com/tripsuite/booking-contract-tests/probe"
)

// Env is the per-service state shared by the tests of one suite.
type Env struct {
	Context  context.Context
	Client   *client.Client
	Recorder *Recorder
	// Sleeper and ProbeDelay are used by probe cases that do not set their own delay. A zero
	// ProbeDelay means no delay.
	Sleeper    probe.Sleeper
	ProbeDelay time.Duration
}

type environment struct {
	Env
	vars *Vars
}

// T represents a test or subtest in a service suite.
//
// It implements the same basic functionality as Go's testing.T, but in an environment that is
// outside of the Go test runner. To make test assertions, you can use the assert and require
// packages, passing the *T as if it were a *testing.T.
//
// Every T created from the same NewT call shares one set of captured variables, so that a
// case can use what an earlier case in the suite captured.
type T struct {
	context *framework.Context
	env     *environment
}

// NewT creates the root T for a suite, with an empty set of variables.
func NewT(c *framework.Context, env Env) *T {
	if env.Context == nil {
		env.Context = context.Background()
	}
	return &T{context: c, env: &environment{Env: env, vars: NewVars()}}
}

// Errorf is called by assertions to log a test failure. It does not cause an immediate exit.
func (t *T) Errorf(format string, args ...interface{}) {
	t.context.Errorf(format, args...)
}

// FailNow is called by assertions when a test should fail and immediately exit. The methods in
// the require package call FailNow.
func (t *T) FailNow() {
	t.context.FailNow()
}

// Run runs a subtest. This is equivalent to the Run method of testing.T.
func (t *T) Run(name string, action func(*T)) {
	t.context.Run(name, func(c *framework.Context) {
		action(&T{context: c, env: t.env})
	})
}

// Debug logs some debug output for the test. The output will be passed to the test logger at
// the end of the test.
func (t *T) Debug(format string, args ...interface{}) {
	t.context.Debug(format, args...)
}

// Infof logs output that is always shown, such as the status and body of each response.
func (t *T) Infof(format string, args ...interface{}) {
	t.context.Infof(format, args...)
}

// Skip stops the test and records it as skipped.
func (t *T) Skip(format string, args ...interface{}) {
	reason := fmt.Sprintf(format, args...)
	t.context.Debug("skipped: %s", reason)
	t.context.SkipWithReason(reason)
}

func (t *T) ID() framework.TestID {
	return t.context.ID()
}

func (t *T) Client() *client.Client {
	return t.env.Client
}

func (t *T) Vars() *Vars {
	return t.env.vars
}

func (t *T) logger() framework.Logger {
	return t.context.DebugLogger()
}
