package apitest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tripsuite/booking-contract-tests/client"
	"github.com/tripsuite/booking-contract-tests/framework"
	"github.com/tripsuite/booking-contract-tests/servicedef"

	"github.com/launchdarkly/go-test-helpers/v2/httphelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

var jsonHeaders = http.Header{"Content-Type": []string{"application/json"}}

type noSleep struct{ delays []time.Duration }

func (n *noSleep) Sleep(ctx context.Context, d time.Duration) error {
	n.delays = append(n.delays, d)
	return nil
}

func runTestSuite(server *httptest.Server, token string, suite Suite) (framework.Results, *Recorder) {
	recorder := NewRecorder()
	c := client.New(servicedef.ServiceEndpoint{Name: suite.Service, BaseURL: server.URL},
		client.Config{Token: token, ClientID: "test-client-id"})
	results := framework.Run(nil, nil, func(ctx *framework.Context) {
		t := NewT(ctx, Env{Client: c, Recorder: recorder, Sleeper: &noSleep{}, ProbeDelay: time.Second})
		RunSuite(t, suite)
	})
	return results, recorder
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

func bookingSuite() Suite {
	return Suite{
		Service: "car-booking",
		Cases: []Case{
			{
				Name: "book", Method: "POST", Path: "/car/book", Auth: AuthToken,
				Body:    ldvalue.ObjectBuild().Set("total", ldvalue.Float64(150)).Build(),
				Capture: map[string]string{"booking_id": "booking_id"},
			},
			{
				Name: "get", Path: "/cars/booking/{{booking_id}}", Auth: AuthToken,
				Assert: []string{`body.booking_id == vars.booking_id`},
			},
			{
				Name: "delete", Method: "DELETE", Path: "/cars/delete", Auth: AuthToken,
				Body:   ldvalue.ObjectBuild().Set("carid", ldvalue.String("{{booking_id}}")).Build(),
				Assert: []string{`body.deleted_booking_id == vars.booking_id`},
			},
		},
	}
}

func TestSuiteChainsCapturedValues(t *testing.T) {
	mux := http.NewServeMux()
	mux.Handle("POST /car/book", httphelpers.HandlerWithJSONResponse(map[string]string{"booking_id": "b/42"}, nil))
	getHandler, getRequests := httphelpers.RecordingHandler(
		httphelpers.HandlerWithJSONResponse(map[string]string{"booking_id": "b/42"}, nil))
	mux.Handle("GET /cars/booking/", getHandler)
	deleteHandler, deleteRequests := httphelpers.RecordingHandler(
		httphelpers.HandlerWithJSONResponse(map[string]string{"deleted_booking_id": "b/42"}, nil))
	mux.Handle("DELETE /cars/delete", deleteHandler)

	httphelpers.WithServer(mux, func(server *httptest.Server) {
		results, recorder := runTestSuite(server, "tok", bookingSuite())

		assert.Empty(t, failureMessages(results))
		assert.Empty(t, results.Skipped)
		assert.Equal(t, 4, results.Passed())

		get := <-getRequests
		assert.Equal(t, "/cars/booking/b%2F42", get.Request.URL.EscapedPath())
		del := <-deleteRequests
		assert.JSONEq(t, `{"carid":"b/42"}`, string(del.Body))

		records := recorder.Records()
		require.Len(t, records, 3)
		assert.Equal(t, "car-booking/book", records[0].TestID)
		assert.Equal(t, "car-booking", records[0].Service)
		assert.Equal(t, 0, records[0].Attempt)
		assert.Equal(t, "DELETE", records[2].Result.Method)
	})
}

func TestDependentCasesAreSkippedWhenCreateFails(t *testing.T) {
	mux := http.NewServeMux()
	mux.Handle("POST /car/book", httphelpers.HandlerWithResponse(500, jsonHeaders, []byte(`{"detail":"Database error"}`)))
	getHandler, getRequests := httphelpers.RecordingHandler(httphelpers.HandlerWithStatus(200))
	mux.Handle("/", getHandler)

	httphelpers.WithServer(mux, func(server *httptest.Server) {
		results, recorder := runTestSuite(server, "tok", bookingSuite())

		assert.Equal(t, map[string][]string{
			"car-booking/book": {"expected status 2xx, got 500: Database error"},
		}, failureMessages(results))
		require.Len(t, results.Skipped, 2)
		assert.Equal(t, "car-booking/get", results.Skipped[0].TestID.String())
		assert.Equal(t, `"booking_id" was not captured by an earlier case`, results.Skipped[0].SkipReason)
		assert.Equal(t, "car-booking/delete", results.Skipped[1].TestID.String())
		assert.Len(t, getRequests, 0)
		assert.Len(t, recorder.Records(), 1)
	})
}

func TestMissingCaptureFieldFailsCaseAndSkipsDependents(t *testing.T) {
	mux := http.NewServeMux()
	mux.Handle("POST /car/book", httphelpers.HandlerWithJSONResponse(map[string]string{"message": "ok"}, nil))

	httphelpers.WithServer(mux, func(server *httptest.Server) {
		results, _ := runTestSuite(server, "tok", bookingSuite())
		assert.Equal(t, map[string][]string{
			"car-booking/book": {`response has no value at "booking_id" to capture as "booking_id"`},
		}, failureMessages(results))
		assert.Len(t, results.Skipped, 2)
	})
}

func TestAuthCasesSkippedWithoutToken(t *testing.T) {
	httphelpers.WithServer(httphelpers.HandlerWithStatus(200), func(server *httptest.Server) {
		results, _ := runTestSuite(server, "", Suite{Service: "hotel", Cases: []Case{
			{Name: "book", Method: "POST", Path: "/hotel/book", Auth: AuthToken},
			{Name: "root", Path: "/"},
		}})
		require.Len(t, results.Skipped, 1)
		assert.Equal(t, "no bearer token is configured", results.Skipped[0].SkipReason)
		assert.True(t, results.OK())
	})
}

func TestRejectionCases(t *testing.T) {
	handler, requests := httphelpers.RecordingHandler(
		httphelpers.HandlerWithResponse(401, jsonHeaders, []byte(`{"detail":"Invalid token"}`)))
	httphelpers.WithServer(handler, func(server *httptest.Server) {
		results, recorder := runTestSuite(server, "tok", Suite{Service: "car-booking", Cases: []Case{
			{Name: "invalid token", Method: "POST", Path: "/car/book", Auth: AuthInvalid, Expect: StatusList{"401"},
				Assert: []string{`detail == "Invalid token"`}},
			{Name: "missing auth", Method: "POST", Path: "/car/book", Expect: StatusList{"4xx"}},
		}})
		assert.Empty(t, failureMessages(results))

		first := <-requests
		assert.Equal(t, "Bearer invalid-token", first.Request.Header.Get("Authorization"))
		second := <-requests
		assert.Empty(t, second.Request.Header.Get("Authorization"))

		records := recorder.Records()
		require.Len(t, records, 2)
		assert.True(t, records[0].Result.Pass)
		assert.Equal(t, "Invalid token", records[0].Result.Detail)
	})
}

func TestAssertionFailuresAreReported(t *testing.T) {
	handler := httphelpers.HandlerWithJSONResponse(map[string]interface{}{"count": 3}, nil)
	httphelpers.WithServer(handler, func(server *httptest.Server) {
		results, _ := runTestSuite(server, "", Suite{Service: "car", Cases: []Case{
			{Name: "list", Path: "/cars", Assert: []string{"status == 200", "body.count == 4", "status +"}},
		}})
		messages := failureMessages(results)["car/list"]
		require.Len(t, messages, 2)
		assert.Equal(t, "assertion failed: body.count == 4", messages[0])
		assert.Contains(t, messages[1], `compile assertion "status +"`)
	})
}

func TestRepeatedReadReturnsSameBody(t *testing.T) {
	handler := httphelpers.SequentialHandler(
		httphelpers.HandlerWithJSONResponse(map[string]interface{}{"id": "x", "total": 150}, nil),
		httphelpers.HandlerWithJSONResponse(map[string]interface{}{"total": 150, "id": "x"}, nil),
		httphelpers.HandlerWithJSONResponse(map[string]interface{}{"total": 151, "id": "x"}, nil),
	)
	httphelpers.WithServer(handler, func(server *httptest.Server) {
		results, _ := runTestSuite(server, "", Suite{Service: "hotel", Cases: []Case{
			{Name: "first", Path: "/hotels/booking/x", Capture: map[string]string{"first": "."}},
			{Name: "second", Path: "/hotels/booking/x", Assert: []string{"same(body, vars.first)"}},
			{Name: "third", Path: "/hotels/booking/x", Assert: []string{"same(body, vars.first)"}},
		}})
		assert.Equal(t, map[string][]string{
			"hotel/third": {"assertion failed: same(body, vars.first)"},
		}, failureMessages(results))
	})
}

func TestProbeCaseRecordsEveryAttempt(t *testing.T) {
	handler := httphelpers.SequentialHandler(
		httphelpers.HandlerWithStatus(200),
		httphelpers.HandlerWithStatus(200),
		httphelpers.HandlerWithResponse(429, jsonHeaders, []byte(`{"detail":"Rate limit exceeded"}`)),
	)
	httphelpers.WithServer(handler, func(server *httptest.Server) {
		results, recorder := runTestSuite(server, "", Suite{Service: "user", Cases: []Case{
			{Name: "rate limit", Method: "POST", Path: "/signin", Probe: &ProbeSpec{Count: 3, ExpectLimit: 2}},
		}})
		assert.True(t, results.OK())

		records := recorder.Records()
		require.Len(t, records, 3)
		for i, r := range records {
			assert.Equal(t, i+1, r.Attempt)
			assert.Equal(t, "user/rate limit", r.TestID)
			assert.True(t, r.Result.Pass, "attempt %d", r.Attempt)
		}
		assert.Equal(t, 429, records[2].Result.StatusCode)
	})
}

func TestProbeCaseRecordsRejectedAttemptsAsNotPassing(t *testing.T) {
	handler := httphelpers.SequentialHandler(
		httphelpers.HandlerWithStatus(200),
		httphelpers.HandlerWithResponse(429, jsonHeaders, []byte(`{"detail":"Rate limit exceeded"}`)),
	)
	httphelpers.WithServer(handler, func(server *httptest.Server) {
		results, recorder := runTestSuite(server, "", Suite{Service: "car", Cases: []Case{
			{Name: "rate limit", Path: "/cars", Probe: &ProbeSpec{Count: 2}},
		}})
		assert.True(t, results.OK())

		records := recorder.Records()
		require.Len(t, records, 2)
		assert.True(t, records[0].Result.Pass)
		assert.False(t, records[1].Result.Pass)
		assert.Equal(t, "Rate limit exceeded", records[1].Result.Detail)
	})
}

func TestProbeCaseDelays(t *testing.T) {
	for _, p := range []struct {
		name       string
		probeDelay time.Duration
		delayMS    ldvalue.OptionalInt
		expected   time.Duration
	}{
		{"configured delay", 250 * time.Millisecond, ldvalue.OptionalInt{}, 250 * time.Millisecond},
		{"zero configured delay", 0, ldvalue.OptionalInt{}, 0},
		{"case delay", time.Second, ldvalue.NewOptionalInt(20), 20 * time.Millisecond},
		{"zero case delay", time.Second, ldvalue.NewOptionalInt(0), 0},
	} {
		t.Run(p.name, func(t *testing.T) {
			httphelpers.WithServer(httphelpers.HandlerWithStatus(200), func(server *httptest.Server) {
				sleeper := &noSleep{}
				c := client.New(servicedef.ServiceEndpoint{Name: "car", BaseURL: server.URL}, client.Config{})
				results := framework.Run(nil, nil, func(ctx *framework.Context) {
					env := Env{Client: c, Recorder: NewRecorder(), Sleeper: sleeper, ProbeDelay: p.probeDelay}
					RunSuite(NewT(ctx, env), Suite{Service: "car", Cases: []Case{
						{Name: "rate limit", Path: "/cars", Probe: &ProbeSpec{Count: 2, DelayMS: p.delayMS}},
					}})
				})
				assert.True(t, results.OK())
				assert.Equal(t, []time.Duration{p.expected, p.expected}, sleeper.delays)
			})
		})
	}
}

func TestInvalidExpectationFailsCase(t *testing.T) {
	httphelpers.WithServer(httphelpers.HandlerWithStatus(200), func(server *httptest.Server) {
		results, recorder := runTestSuite(server, "", Suite{Service: "car", Cases: []Case{
			{Name: "bad", Path: "/", Expect: StatusList{"sometimes"}},
		}})
		assert.Equal(t, map[string][]string{"car/bad": {`invalid expected status "sometimes"`}}, failureMessages(results))
		assert.Empty(t, recorder.Records())
	})
}
