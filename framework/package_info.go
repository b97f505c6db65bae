// Package framework contains the low-level implementation of test harness infrastructure
// that is not specific to any one booking service.
//
// The general model is:
//
// 1. A test run is a tree of named tests. Each test gets a Context, which is similar to Go's
// *testing.T but works outside of the Go test runner: it accumulates failures, can be skipped
// with a reason, and recovers from panics so that one failing test never stops the others.
//
// 2. Each test captures its own debug output, which a TestLogger can print when the test fails
// or when all output was requested.
//
// 3. Filters select which tests run, based on the slash-separated test ID.
//
// The code that knows what is being tested (the apitest and bookingtests packages) builds on
// top of this.
package framework
