package bookingtests

import (
	"github.com/tripsuite/booking-contract-tests/apitest"
	"github.com/tripsuite/booking-contract-tests/servicedef"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

// Suites returns the built-in suites in the order they run.
func Suites() []apitest.Suite {
	return []apitest.Suite{
		flightCatalogueSuite(),
		carBookingSuite(),
		hotelSuite(),
		tripSuite(),
		userSuite(),
		flightBookingSuite(),
		carCatalogueSuite(),
	}
}

// SuiteFor returns the built-in suite of a service.
func SuiteFor(service string) (apitest.Suite, bool) {
	for _, s := range Suites() {
		if s.Service == service {
			return s, true
		}
	}
	return apitest.Suite{}, false
}

func expect(statuses ...string) apitest.StatusList {
	return apitest.StatusList(statuses)
}

// rejectedWithoutRecord checks that a refused create request explains itself and hands back
// no identifier for a record.
func rejectedWithoutRecord(idField string) []string {
	return []string{`detail != ""`, "body?." + idField + " == nil"}
}

func carBookingSuite() apitest.Suite {
	return apitest.Suite{
		Service: servicedef.CarBookingService,
		Cases: []apitest.Case{
			{
				Name:   "service info",
				Path:   "/",
				Assert: []string{`body.service == "Car Booking Service"`},
			},
			{
				Name:   "invalid token is rejected",
				Method: "POST",
				Path:   "/car/book",
				Auth:   apitest.AuthInvalid,
				Body:   carBookingRequest(),
				Expect: expect("401"),
				Assert: rejectedWithoutRecord("booking_id"),
			},
			{
				Name:   "missing auth is rejected",
				Method: "POST",
				Path:   "/car/book",
				Body:   carBookingRequest(),
				Expect: expect("401"),
				Assert: rejectedWithoutRecord("booking_id"),
			},
			{
				Name:    "book car",
				Method:  "POST",
				Path:    "/car/book",
				Auth:    apitest.AuthToken,
				Body:    carBookingRequest(),
				Expect:  expect("200", "201"),
				Capture: map[string]string{"booking_id": "booking_id"},
				Assert:  []string{`body.car.make == "Toyota"`},
			},
			{
				Name:    "get booking",
				Path:    "/cars/booking/{{booking_id}}",
				Auth:    apitest.AuthToken,
				Capture: map[string]string{"first_read": "."},
			},
			{
				Name:   "get booking again returns the same booking",
				Path:   "/cars/booking/{{booking_id}}",
				Auth:   apitest.AuthToken,
				Assert: []string{"same(body, vars.first_read)"},
			},
			{
				Name:   "delete booking",
				Method: "DELETE",
				Path:   "/cars/delete",
				Auth:   apitest.AuthToken,
				Body:   deleteRequest("carid"),
				Assert: []string{"body.deleted_booking_id == vars.booking_id"},
			},
			{
				Name:   "deleted booking is not found",
				Path:   "/cars/booking/{{booking_id}}",
				Auth:   apitest.AuthToken,
				Expect: expect("404"),
			},
		},
	}
}

func flightBookingSuite() apitest.Suite {
	return apitest.Suite{
		Service: servicedef.FlightBookingService,
		Cases: []apitest.Case{
			{
				Name:    "book flight",
				Method:  "POST",
				Path:    "/flights/book",
				Query:   map[string]string{"trip_id": testTripID},
				Auth:    apitest.AuthToken,
				Body:    testFlight,
				Expect:  expect("200", "201"),
				Capture: map[string]string{"booking_id": "booking_id"},
			},
			{
				Name:   "get booking",
				Path:   "/flights/booking/{{booking_id}}",
				Auth:   apitest.AuthToken,
				Assert: []string{"body.flight_details.booking_id == vars.booking_id"},
			},
			{
				Name:   "delete booking",
				Method: "DELETE",
				Path:   "/flights/delete",
				Auth:   apitest.AuthToken,
				Body:   deleteRequest("flightid"),
				Assert: []string{"body.deleted_booking_id == vars.booking_id"},
			},
			{
				Name:   "deleted booking is not found",
				Path:   "/flights/booking/{{booking_id}}",
				Auth:   apitest.AuthToken,
				Expect: expect("404"),
			},
			{
				Name:   "missing auth is rejected",
				Method: "POST",
				Path:   "/flights/book",
				Body:   testFlight,
				Expect: expect("401"),
				Assert: rejectedWithoutRecord("booking_id"),
			},
		},
	}
}

func hotelSuite() apitest.Suite {
	return apitest.Suite{
		Service: servicedef.HotelService,
		Cases: []apitest.Case{
			{
				Name:   "list hotels",
				Path:   "/hotels",
				Query:  map[string]string{"count": "3"},
				Assert: []string{"len(body) == 3"},
			},
			{
				Name:    "book hotel",
				Method:  "POST",
				Path:    "/hotel/book",
				Auth:    apitest.AuthToken,
				Body:    hotelBookingRequest(),
				Expect:  expect("200", "201"),
				Capture: map[string]string{"booking_id": "booking_id"},
				Assert:  []string{`body.hotel.name == "Azure Coast Retreat"`},
			},
			{
				Name: "get booking",
				Path: "/hotels/booking/{{booking_id}}",
				Auth: apitest.AuthToken,
			},
			{
				Name:   "delete booking",
				Method: "DELETE",
				Path:   "/hotels/delete",
				Auth:   apitest.AuthToken,
				Body:   deleteRequest("hotelid"),
				Assert: []string{"body.deleted_booking_id == vars.booking_id"},
			},
			{
				Name:   "missing auth is rejected",
				Method: "POST",
				Path:   "/hotel/book",
				Body:   hotelBookingRequest(),
				Expect: expect("401"),
				Assert: rejectedWithoutRecord("booking_id"),
			},
		},
	}
}

func tripSuite() apitest.Suite {
	return apitest.Suite{
		Service: servicedef.TripService,
		Cases: []apitest.Case{
			{
				Name: "service info",
				Path: "/",
			},
			{
				Name:    "create trip",
				Method:  "POST",
				Path:    "/trips/create",
				Auth:    apitest.AuthToken,
				Body:    testTrip,
				Capture: map[string]string{"trip_id": "tripid"},
			},
			{
				Name:   "create business trip",
				Method: "POST",
				Path:   "/trips/create",
				Auth:   apitest.AuthToken,
				Body:   businessTrip,
			},
			{
				Name:   "invalid trip is rejected",
				Method: "POST",
				Path:   "/trips/create",
				Auth:   apitest.AuthToken,
				Body:   invalidTrip,
				Expect: expect("4xx"),
			},
			{
				Name:   "missing auth is rejected",
				Method: "POST",
				Path:   "/trips/create",
				Body:   testTrip,
				Expect: expect("401"),
				Assert: rejectedWithoutRecord("tripid"),
			},
			{
				Name:   "update trip",
				Method: "POST",
				Path:   "/trips/update/{{trip_id}}",
				Auth:   apitest.AuthToken,
				Body:   businessTrip,
			},
			{
				Name:   "delete trip",
				Method: "DELETE",
				Path:   "/trips/delete/{{trip_id}}",
				Auth:   apitest.AuthToken,
			},
		},
	}
}

func userSuite() apitest.Suite {
	return apitest.Suite{
		Service: servicedef.UserService,
		Cases: []apitest.Case{
			{
				Name:    "sign in",
				Method:  "POST",
				Path:    "/signin",
				Body:    signInCredentials,
				Capture: map[string]string{"user_id": "user_id"},
				Assert:  []string{`body.token != ""`},
			},
			{
				Name:   "sign in with a wrong password is rejected",
				Method: "POST",
				Path:   "/signin",
				Body: ldvalue.ObjectBuild().
					Set("email", ldvalue.String(TestUserEmail)).
					Set("password", ldvalue.String("wrong-password")).
					Build(),
				Expect: expect("4xx"),
			},
			{
				Name:   "sign in rate limit",
				Method: "POST",
				Path:   "/signin",
				Body:   signInCredentials,
				Probe:  &apitest.ProbeSpec{Count: 10},
			},
		},
	}
}

func carCatalogueSuite() apitest.Suite {
	return apitest.Suite{
		Service: servicedef.CarService,
		Cases: []apitest.Case{
			{
				Name: "health",
				Path: "/health",
			},
			{
				Name:   "list cars",
				Path:   "/cars",
				Auth:   apitest.AuthToken,
				Assert: []string{"len(body) > 0"},
			},
			{
				Name:   "list cars by type",
				Path:   "/cars/Sedan",
				Auth:   apitest.AuthToken,
				Assert: []string{`all(body, {.type == "Sedan"})`},
			},
			{
				Name:   "unknown car type is not found",
				Path:   "/cars/Spaceship",
				Auth:   apitest.AuthToken,
				Expect: expect("404"),
			},
			{
				Name:  "list cars rate limit",
				Path:  "/cars",
				Auth:  apitest.AuthToken,
				Probe: &apitest.ProbeSpec{Count: 10},
			},
		},
	}
}

func flightCatalogueSuite() apitest.Suite {
	return apitest.Suite{
		Service: servicedef.FlightService,
		Cases: []apitest.Case{
			{
				Name:   "list flights",
				Path:   "/flights",
				Query:  map[string]string{"departure_date": "2023-10-01", "count": "5"},
				Assert: []string{"len(body) == 5"},
			},
			{
				Name:   "invalid departure date is rejected",
				Path:   "/flights",
				Query:  map[string]string{"departure_date": "01/10/2023"},
				Expect: expect("400"),
			},
			{
				Name:  "list flights rate limit",
				Path:  "/flights",
				Query: map[string]string{"departure_date": "2023-10-01", "count": "5"},
				Probe: &apitest.ProbeSpec{Count: 5},
			},
		},
	}
}
