package bookingtests

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tripsuite/booking-contract-tests/apitest"
	"github.com/tripsuite/booking-contract-tests/auth"
	"github.com/tripsuite/booking-contract-tests/framework"
	"github.com/tripsuite/booking-contract-tests/servicedef"
	"github.com/tripsuite/booking-contract-tests/stub"

	"github.com/launchdarkly/go-test-helpers/v2/httphelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type noSleep struct{}

func (noSleep) Sleep(ctx context.Context, d time.Duration) error { return nil }

// startStubs serves every stub service on a free port and returns a config pointing at them.
func startStubs(t *testing.T, options stub.Options) *servicedef.Config {
	var endpoints []servicedef.ServiceEndpoint
	for _, e := range servicedef.DefaultEndpoints() {
		endpoints = append(endpoints, servicedef.ServiceEndpoint{Name: e.Name, BaseURL: "http://127.0.0.1:0"})
	}
	servers, err := stub.New(options).Start(endpoints)
	require.NoError(t, err)
	t.Cleanup(func() { _ = servers.Close() })
	return &servicedef.Config{
		Services:       servers.Endpoints(),
		ClientID:       servicedef.DefaultClientID,
		RequestTimeout: 5 * time.Second,
		ProbeDelay:     time.Second,
	}
}

func failureMessages(results framework.Results) map[string][]string {
	ret := make(map[string][]string)
	for _, f := range results.Failures {
		for _, e := range f.Errors {
			ret[f.TestID.String()] = append(ret[f.TestID.String()], e.Error())
		}
	}
	return ret
}

func countCases() int {
	n := 0
	for _, s := range Suites() {
		n += len(s.Cases)
	}
	return n
}

func TestBuiltInSuitesPassAgainstStubs(t *testing.T) {
	cfg := startStubs(t, stub.Options{})

	results, records := RunTestSuite(cfg, cfg.Services, nil, nil, Options{Token: DevToken, Sleeper: noSleep{}})

	assert.Empty(t, failureMessages(results))
	assert.Empty(t, results.Skipped)
	assert.True(t, results.OK())
	// one result for each case plus one for each suite
	assert.Equal(t, countCases()+len(Suites()), results.Passed())

	var probeAttempts int
	for _, r := range records {
		if r.Attempt > 0 {
			probeAttempts++
		}
	}
	assert.Equal(t, 10+10+5, probeAttempts)
}

func TestSuitesRunInServiceOrder(t *testing.T) {
	cfg := startStubs(t, stub.Options{})

	_, records := RunTestSuite(cfg, cfg.Services, nil, nil, Options{Token: DevToken, Sleeper: noSleep{}})

	var services []string
	for _, r := range records {
		if len(services) == 0 || services[len(services)-1] != r.Service {
			services = append(services, r.Service)
		}
	}
	assert.Equal(t, []string{
		servicedef.FlightService,
		servicedef.CarBookingService,
		servicedef.HotelService,
		servicedef.TripService,
		servicedef.UserService,
		servicedef.FlightBookingService,
		servicedef.CarService,
	}, services)
}

func TestAuthCasesAreSkippedWithoutToken(t *testing.T) {
	cfg := startStubs(t, stub.Options{})
	services, err := cfg.Select([]string{servicedef.CarBookingService})
	require.NoError(t, err)

	results, _ := RunTestSuite(cfg, services, nil, nil, Options{Sleeper: noSleep{}})

	assert.Empty(t, failureMessages(results))
	skipped := make(map[string]string)
	for _, s := range results.Skipped {
		skipped[s.TestID.String()] = s.SkipReason
	}
	assert.Equal(t, "no bearer token is configured", skipped["car-booking/book car"])
	assert.Contains(t, skipped["car-booking/get booking"], `"booking_id" was not captured`)
	assert.NotContains(t, skipped, "car-booking/missing auth is rejected")
}

func TestMintedTokenIsAcceptedByVerifyingStub(t *testing.T) {
	cfg := startStubs(t, stub.Options{TokenSecret: testSecret})
	cfg.TokenSecret = testSecret
	token, err := ResolveToken(cfg, time.Now())
	require.NoError(t, err)

	services, err := cfg.Select([]string{servicedef.CarBookingService, servicedef.TripService})
	require.NoError(t, err)
	results, _ := RunTestSuite(cfg, services, nil, nil, Options{Token: token, Sleeper: noSleep{}})

	assert.Empty(t, failureMessages(results))
	assert.Empty(t, results.Skipped)
}

func TestDevTokenIsRejectedByVerifyingStub(t *testing.T) {
	cfg := startStubs(t, stub.Options{TokenSecret: testSecret})
	services, err := cfg.Select([]string{servicedef.HotelService})
	require.NoError(t, err)

	results, _ := RunTestSuite(cfg, services, nil, nil, Options{Token: DevToken, Sleeper: noSleep{}})

	failures := failureMessages(results)
	require.Contains(t, failures, "hotel/book hotel")
	assert.Contains(t, failures["hotel/book hotel"][0], "Invalid token signature")
}

func TestFilterSelectsCases(t *testing.T) {
	cfg := startStubs(t, stub.Options{})
	filter := framework.RegexFilters{}
	require.NoError(t, filter.MustMatch.Set("^flight/"))

	results, records := RunTestSuite(cfg, cfg.Services, filter.AsFilter, nil, Options{Token: DevToken, Sleeper: noSleep{}})

	assert.True(t, results.OK())
	for _, r := range records {
		assert.Equal(t, servicedef.FlightService, r.Service)
	}
	assert.NotEmpty(t, records)
}

func TestBareUnauthorizedResponsesFailRejectionCases(t *testing.T) {
	httphelpers.WithServer(httphelpers.HandlerWithStatus(401), func(server *httptest.Server) {
		cfg := &servicedef.Config{
			Services:       []servicedef.ServiceEndpoint{{Name: servicedef.CarBookingService, BaseURL: server.URL}},
			RequestTimeout: 5 * time.Second,
		}
		filter := framework.RegexFilters{}
		require.NoError(t, filter.MustMatch.Set("^car-booking/(invalid token|missing auth) is rejected$"))

		results, _ := RunTestSuite(cfg, cfg.Services, filter.AsFilter, nil, Options{Token: DevToken, Sleeper: noSleep{}})

		assert.Equal(t, map[string][]string{
			"car-booking/invalid token is rejected": {`assertion failed: detail != ""`},
			"car-booking/missing auth is rejected":  {`assertion failed: detail != ""`},
		}, failureMessages(results))
	})
}

func TestRejectedBookingsReturnNoIdentifier(t *testing.T) {
	handler := httphelpers.HandlerWithResponse(401, http.Header{"Content-Type": []string{"application/json"}},
		[]byte(`{"detail":"Not authenticated","booking_id":"b-1"}`))
	httphelpers.WithServer(handler, func(server *httptest.Server) {
		cfg := &servicedef.Config{
			Services:       []servicedef.ServiceEndpoint{{Name: servicedef.CarBookingService, BaseURL: server.URL}},
			RequestTimeout: 5 * time.Second,
		}
		filter := framework.RegexFilters{}
		require.NoError(t, filter.MustMatch.Set("^car-booking/missing auth is rejected$"))

		results, _ := RunTestSuite(cfg, cfg.Services, filter.AsFilter, nil, Options{Token: DevToken, Sleeper: noSleep{}})

		assert.Equal(t, map[string][]string{
			"car-booking/missing auth is rejected": {"assertion failed: body?.booking_id == nil"},
		}, failureMessages(results))
	})
}

func TestExtraSuitesRunAfterBuiltInSuite(t *testing.T) {
	cfg := startStubs(t, stub.Options{})
	services, err := cfg.Select([]string{servicedef.UserService})
	require.NoError(t, err)
	extra := apitest.Suite{
		Name:    "user signup",
		Service: servicedef.UserService,
		Cases: []apitest.Case{
			{
				Name: "sign up", Method: "POST", Path: "/signup",
				Body: ldvalue.ObjectBuild().
					Set("email", ldvalue.String("jane.roe@example.com")).
					Set("password", ldvalue.String("pw")).
					Build(),
				Expect:  apitest.StatusList{"201"},
				Capture: map[string]string{"user_id": "user_id"},
			},
			{
				Name: "sign up twice", Method: "POST", Path: "/signup",
				Body: ldvalue.ObjectBuild().
					Set("email", ldvalue.String("jane.roe@example.com")).
					Set("password", ldvalue.String("pw")).
					Build(),
				Expect: apitest.StatusList{"400"},
			},
		},
	}

	results, records := RunTestSuite(cfg, services, nil, nil, Options{Suites: []apitest.Suite{extra}, SkipBuiltIn: true, Sleeper: noSleep{}})

	assert.Empty(t, failureMessages(results))
	require.Len(t, records, 2)
	assert.Equal(t, "user signup/sign up", records[0].TestID)
}

func TestCheckSuiteServices(t *testing.T) {
	cfg := &servicedef.Config{Services: servicedef.DefaultEndpoints()}
	assert.NoError(t, CheckSuiteServices(cfg, Suites()))

	err := CheckSuiteServices(cfg, []apitest.Suite{{Name: "x", Service: "payments"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"payments"`)
}

func TestResolveToken(t *testing.T) {
	now := time.Date(2024, 7, 15, 8, 0, 0, 0, time.UTC)

	token, err := ResolveToken(&servicedef.Config{Token: "configured", TokenSecret: testSecret}, now)
	require.NoError(t, err)
	assert.Equal(t, "configured", token)

	token, err = ResolveToken(&servicedef.Config{}, now)
	require.NoError(t, err)
	assert.Equal(t, "", token)

	token, err = ResolveToken(&servicedef.Config{TokenSecret: testSecret}, now)
	require.NoError(t, err)
	claims, err := auth.Verify(token, testSecret, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, TestUserID, claims.UserID)
	assert.Equal(t, TestUserEmail, claims.Email)
	require.NotNil(t, claims.Expiry)
	assert.Equal(t, now.Add(MintedTokenTTL), claims.Expiry.UTC())
}

func TestDevTokenActsAsTestUser(t *testing.T) {
	claims, err := auth.Inspect(DevToken)
	require.NoError(t, err)
	assert.Equal(t, TestUserID, claims.UserID)
	assert.Equal(t, TestUserEmail, claims.Email)
	assert.Nil(t, claims.Expiry)
}

func TestCheckServices(t *testing.T) {
	cfg := startStubs(t, stub.Options{})
	services := append([]servicedef.ServiceEndpoint{}, cfg.Services[:2]...)
	services = append(services, servicedef.ServiceEndpoint{Name: "down", BaseURL: "http://127.0.0.1:1"})

	var out bytes.Buffer
	statuses := CheckServices(context.Background(), cfg, services, 200*time.Millisecond, &out)

	require.Len(t, statuses, 3)
	assert.NoError(t, statuses[0].Err)
	assert.NoError(t, statuses[1].Err)
	assert.Error(t, statuses[2].Err)
	assert.True(t, strings.Contains(out.String(), "down is not reachable"), out.String())
}
