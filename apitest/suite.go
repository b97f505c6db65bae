// Package apitest runs declarative suites of API cases against a service.
//
// Cases in a suite run strictly in order, because later cases use identifiers captured from
// the responses to earlier ones. A case whose inputs were never captured is skipped rather
// than sent with a placeholder in it, and a failing or panicking case never stops the rest
// of the suite.
package apitest

import (
	"sort"
	"time"

	"github.com/tripsuite/booking-contract-tests/client"
	"github.com/tripsuite/booking-contract-tests/probe"
)

// RunSuite runs every case of the suite as a subtest named after the suite.
func RunSuite(t *T, suite Suite) {
	name := suite.Name
	if name == "" {
		name = suite.Service
	}
	t.Run(name, func(t *T) {
		for _, c := range suite.Cases {
			c := c
			t.Run(c.Name, func(t *T) { RunCase(t, c) })
		}
	})
}

// RunCase executes one case in the current test.
func RunCase(t *T, c Case) {
	for _, name := range c.requiredVars() {
		if !t.Vars().Has(name) {
			t.Skip("%q was not captured by an earlier case", name)
		}
	}
	if c.authMode() == AuthToken && c.Token == "" && !t.Client().HasToken() {
		t.Skip("no bearer token is configured")
	}

	expect, err := client.ParseExpectation(c.Expect)
	if err != nil {
		t.Errorf("%s", err)
		return
	}
	req := c.buildRequest(t.Vars(), expect)

	if c.Probe != nil {
		runProbe(t, c, req)
		return
	}

	result := t.Client().Execute(t.env.Context, req, t.logger())
	t.env.Recorder.Add(Record{
		TestID:  t.ID().String(),
		Service: t.Client().Endpoint().Name,
		Result:  result,
		Time:    time.Now(),
	})
	if result.StatusCode != 0 {
		t.Infof("%s %s -> %d %s", result.Method, req.Path, result.StatusCode, result.Text)
	}

	if !result.Pass {
		t.Errorf("%s", result.ErrorMessage)
		return
	}

	for _, name := range sortedKeys(c.Capture) {
		path := c.Capture[name]
		value, ok := lookupPath(result.Body, path)
		if !ok || value.IsNull() || (value.IsString() && value.StringValue() == "") {
			t.Errorf("response has no value at %q to capture as %q", path, name)
			continue
		}
		t.Vars().Set(name, value)
		t.Debug("captured %s = %s", name, value.JSONString())
	}

	if len(c.Assert) > 0 {
		env := assertionEnv(result, t.Vars())
		for _, a := range c.Assert {
			if err := evaluateAssertion(a, env); err != nil {
				t.Errorf("%s", err)
			}
		}
	}
}

func runProbe(t *T, c Case, req client.Request) {
	config := probe.Config{
		Count:           c.Probe.Count,
		Delay:           t.env.ProbeDelay,
		ExpectLimit:     c.Probe.ExpectLimit,
		RejectionStatus: c.Probe.RejectionStatus,
		Sleeper:         t.env.Sleeper,
	}
	if config.Delay == 0 {
		config.Delay = -1
	}
	if c.Probe.DelayMS.IsDefined() {
		config.Delay = time.Duration(c.Probe.DelayMS.IntValue()) * time.Millisecond
		if config.Delay == 0 {
			config.Delay = -1
		}
	}

	report := probe.Run(t.env.Context, t.Client(), req, config, infoLogger{t})
	for _, a := range report.Attempts {
		t.env.Recorder.Add(Record{
			TestID:  t.ID().String(),
			Service: t.Client().Endpoint().Name,
			Attempt: a.Number,
			Result:  a.Result,
			Time:    a.Started,
		})
	}
	t.Infof("%d of %d requests allowed, %d rejected with status %d",
		report.Allowed(), len(report.Attempts), report.Rejected(), report.Config.RejectionStatus)
	for _, p := range report.Problems() {
		t.Errorf("%s", p)
	}
}

// infoLogger passes probe progress to the test logger as it happens.
type infoLogger struct {
	t *T
}

func (l infoLogger) Printf(format string, args ...interface{}) {
	l.t.Infof(format, args...)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
