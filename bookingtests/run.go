// Package bookingtests holds the built-in contract suites for the booking services, and the
// entry point that runs them.
package bookingtests

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tripsuite/booking-contract-tests/apitest"
	"github.com/tripsuite/booking-contract-tests/auth"
	"github.com/tripsuite/booking-contract-tests/client"
	"github.com/tripsuite/booking-contract-tests/framework"
	"github.com/tripsuite/booking-contract-tests/probe"
	"github.com/tripsuite/booking-contract-tests/servicedef"
)

// MintedTokenTTL is how long a token minted from the configured secret stays valid.
const MintedTokenTTL = time.Hour

// Options are the optional parts of a run.
type Options struct {
	Context context.Context
	// Token is the bearer token to send; see ResolveToken. Cases that need one are skipped
	// if it is empty.
	Token string
	// Suites run after the built-in suite of the service they name.
	Suites      []apitest.Suite
	SkipBuiltIn bool
	// Sleeper is used between probe attempts.
	Sleeper    probe.Sleeper
	HTTPClient *http.Client
	// Recorder receives every request made. If nil, a new one is created.
	Recorder *apitest.Recorder
}

// RunTestSuite runs the suites of each service in turn, in the order the services are given.
// It returns the test results and the log of every request that was made.
func RunTestSuite(
	cfg *servicedef.Config,
	services []servicedef.ServiceEndpoint,
	filter framework.Filter,
	testLogger framework.TestLogger,
	options Options,
) (framework.Results, []apitest.Record) {
	recorder := options.Recorder
	if recorder == nil {
		recorder = apitest.NewRecorder()
	}
	results := framework.Run(filter, testLogger, func(c *framework.Context) {
		for _, service := range services {
			suites := suitesFor(service.Name, options)
			if len(suites) == 0 {
				continue
			}
			env := apitest.Env{
				Context: options.Context,
				Client: client.New(service, client.Config{
					Token:      options.Token,
					ClientID:   cfg.ClientID,
					Timeout:    cfg.RequestTimeout,
					HTTPClient: options.HTTPClient,
				}),
				Recorder:   recorder,
				Sleeper:    options.Sleeper,
				ProbeDelay: cfg.ProbeDelay,
			}
			for _, suite := range suites {
				// each suite starts with no captured variables
				apitest.RunSuite(apitest.NewT(c, env), suite)
			}
		}
	})
	return results, recorder.Records()
}

func suitesFor(service string, options Options) []apitest.Suite {
	var ret []apitest.Suite
	if !options.SkipBuiltIn {
		if s, ok := SuiteFor(service); ok {
			ret = append(ret, s)
		}
	}
	for _, s := range options.Suites {
		if s.Service == service {
			ret = append(ret, s)
		}
	}
	return ret
}

// CheckSuiteServices returns an error if a suite names a service that is not configured.
func CheckSuiteServices(cfg *servicedef.Config, suites []apitest.Suite) error {
	for _, s := range suites {
		if _, ok := cfg.Service(s.Service); !ok {
			name := s.Name
			if name == "" {
				name = s.Service
			}
			return fmt.Errorf("suite %q is for service %q, which is not configured", name, s.Service)
		}
	}
	return nil
}

// ResolveToken decides which bearer token a run sends: the configured token if there is one,
// or else a token for the test user minted with the configured secret. It returns an empty
// string if neither is configured.
func ResolveToken(cfg *servicedef.Config, now time.Time) (string, error) {
	if cfg.Token != "" {
		return cfg.Token, nil
	}
	if cfg.TokenSecret == "" {
		return "", nil
	}
	token, err := auth.Mint(cfg.TokenSecret, auth.Claims{
		UserID:    TestUserID,
		Email:     TestUserEmail,
		FirstName: "John",
		LastName:  "Doe",
	}, MintedTokenTTL, now)
	if err != nil {
		return "", fmt.Errorf("cannot mint a token from the configured secret: %w", err)
	}
	return token, nil
}

// ServiceStatus is the outcome of checking that one service is reachable.
type ServiceStatus struct {
	Endpoint servicedef.ServiceEndpoint
	Info     client.ServiceInfo
	Err      error
}

// CheckServices requests the docs page of each service, reporting progress to output.
func CheckServices(
	ctx context.Context,
	cfg *servicedef.Config,
	services []servicedef.ServiceEndpoint,
	timeout time.Duration,
	output io.Writer,
) []ServiceStatus {
	if output == nil {
		output = io.Discard
	}
	statuses := make([]ServiceStatus, 0, len(services))
	for _, service := range services {
		c := client.New(service, client.Config{ClientID: cfg.ClientID, Timeout: cfg.RequestTimeout})
		info, err := c.QueryServiceInfo(ctx, "/docs", timeout, output)
		if err != nil {
			fmt.Fprintf(output, "  %s is not reachable: %s\n", service.Name, err)
		}
		statuses = append(statuses, ServiceStatus{Endpoint: service, Info: info, Err: err})
	}
	return statuses
}
