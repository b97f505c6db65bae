// Package probe sends the same request repeatedly at a fixed spacing to observe a
// service's rate limiting.
package probe

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/tripsuite/booking-contract-tests/client"
	"github.com/tripsuite/booking-contract-tests/framework"
)

const (
	DefaultCount           = 5
	DefaultDelay           = time.Second
	DefaultRejectionStatus = http.StatusTooManyRequests
)

// Config controls a probe. Zero values mean the defaults.
type Config struct {
	Count int
	Delay time.Duration
	// ExpectLimit, if positive, is the number of attempts the service should allow before it
	// starts rejecting them with RejectionStatus.
	ExpectLimit     int
	RejectionStatus int
	Sleeper         Sleeper
}

func (c Config) withDefaults() Config {
	if c.Count <= 0 {
		c.Count = DefaultCount
	}
	if c.Delay < 0 {
		c.Delay = 0
	} else if c.Delay == 0 {
		c.Delay = DefaultDelay
	}
	if c.RejectionStatus == 0 {
		c.RejectionStatus = DefaultRejectionStatus
	}
	if c.Sleeper == nil {
		c.Sleeper = RealSleeper()
	}
	return c
}

// Attempt is the outcome of one iteration.
type Attempt struct {
	Number int
	Result client.Result
	// Started is when the request was sent.
	Started time.Time
}

// Outcome is how the attempt is described in the log.
func (a Attempt) Outcome() string {
	r := a.Result
	switch {
	case r.StatusCode == 0:
		return "Network Error " + r.ErrorMessage
	case r.StatusCode >= 200 && r.StatusCode < 300:
		return "Success"
	case r.Detail != "":
		return fmt.Sprintf("Error %d %s", r.StatusCode, r.Detail)
	default:
		return fmt.Sprintf("Error %d", r.StatusCode)
	}
}

// Report is the full result of a probe.
type Report struct {
	Config   Config
	Attempts []Attempt
	// Interrupted is set if the context was cancelled before all attempts were made.
	Interrupted bool
}

// Allowed counts the attempts that got a 2xx response.
func (r Report) Allowed() int {
	n := 0
	for _, a := range r.Attempts {
		if a.Result.StatusCode >= 200 && a.Result.StatusCode < 300 {
			n++
		}
	}
	return n
}

// Rejected counts the attempts that got the rejection status.
func (r Report) Rejected() int {
	n := 0
	for _, a := range r.Attempts {
		if a.Result.StatusCode == r.Config.RejectionStatus {
			n++
		}
	}
	return n
}

// Problems lists everything that makes the probe count as failed. A non-2xx response is
// never a problem in itself, since observing rejections is the point; only transport
// failures and, if ExpectLimit was set, a mismatch with the expected pattern are.
func (r Report) Problems() []string {
	var problems []string
	if r.Interrupted {
		problems = append(problems, fmt.Sprintf("probe interrupted after %d of %d attempts", len(r.Attempts), r.Config.Count))
	}
	for _, a := range r.Attempts {
		if a.Result.IsTransportFailure() {
			problems = append(problems, fmt.Sprintf("request %d: %s", a.Number, a.Result.ErrorMessage))
		}
	}
	if r.Config.ExpectLimit > 0 {
		for _, a := range r.Attempts {
			if a.Result.IsTransportFailure() || r.Config.attemptPasses(a.Number, a.Result.StatusCode) {
				continue
			}
			if a.Number <= r.Config.ExpectLimit {
				problems = append(problems, fmt.Sprintf("request %d: expected success within the limit of %d, got %d",
					a.Number, r.Config.ExpectLimit, a.Result.StatusCode))
			} else {
				problems = append(problems, fmt.Sprintf("request %d: expected status %d beyond the limit of %d, got %d",
					a.Number, r.Config.RejectionStatus, r.Config.ExpectLimit, a.Result.StatusCode))
			}
		}
	}
	return problems
}

// attemptPasses says whether one attempt got the status it should have. With no expected
// limit only a 2xx passes; otherwise attempts beyond the limit pass on the rejection status.
func (c Config) attemptPasses(number, status int) bool {
	success := status >= 200 && status < 300
	if c.ExpectLimit <= 0 || number <= c.ExpectLimit {
		return success
	}
	return status == c.RejectionStatus
}

// Run sends req Count times, strictly in sequence, sleeping Delay after each attempt. It
// always returns one Attempt per request sent and never fails on a non-2xx response. Each
// attempt's Result.Pass is set from its status, but the probe as a whole is judged by
// Problems.
func Run(ctx context.Context, c *client.Client, req client.Request, config Config, logger framework.Logger) Report {
	if logger == nil {
		logger = framework.NullLogger()
	}
	config = config.withDefaults()
	report := Report{Config: config}
	// every status is informative here
	req.Expect = client.ExpectClass(1, 2, 3, 4, 5)

	for i := 1; i <= config.Count; i++ {
		attempt := Attempt{Number: i, Started: time.Now()}
		attempt.Result = c.Execute(ctx, req, framework.NullLogger())
		if !attempt.Result.IsTransportFailure() {
			attempt.Result.Pass = config.attemptPasses(i, attempt.Result.StatusCode)
		}
		report.Attempts = append(report.Attempts, attempt)
		logger.Printf("Request %d: %s", i, attempt.Outcome())

		if err := config.Sleeper.Sleep(ctx, config.Delay); err != nil {
			if i < config.Count {
				report.Interrupted = true
				logger.Printf("Probe interrupted: %s", err)
			}
			break
		}
	}
	return report
}
