package servicedef

import (
	"fmt"
	"net/url"
	"strings"
)

// Names of the booking services that have built-in suites.
const (
	FlightService        = "flight"
	CarBookingService    = "car-booking"
	HotelService         = "hotel"
	TripService          = "trip"
	UserService          = "user"
	FlightBookingService = "flight-booking"
	CarService           = "car"
)

// ServiceEndpoint identifies one remote service under test.
type ServiceEndpoint struct {
	Name    string `yaml:"name" json:"name"`
	BaseURL string `yaml:"url" json:"url"`
}

// URL joins the base URL and a path.
func (e ServiceEndpoint) URL(path string) string {
	if path == "" {
		return e.BaseURL
	}
	return e.BaseURL + "/" + strings.TrimPrefix(path, "/")
}

func (e ServiceEndpoint) String() string {
	return fmt.Sprintf("%s (%s)", e.Name, e.BaseURL)
}

func (e ServiceEndpoint) validate() error {
	if e.Name == "" {
		return fmt.Errorf("service with URL %q has no name", e.BaseURL)
	}
	u, err := url.Parse(e.BaseURL)
	if err != nil {
		return fmt.Errorf("service %s: invalid URL: %w", e.Name, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("service %s: URL %q must be an absolute http or https URL", e.Name, e.BaseURL)
	}
	return nil
}

// DefaultEndpoints returns the services at the addresses they listen on in a local
// development setup, in the order the built-in suites run.
func DefaultEndpoints() []ServiceEndpoint {
	return []ServiceEndpoint{
		{Name: FlightService, BaseURL: "http://127.0.0.1:8000"},
		{Name: CarBookingService, BaseURL: "http://127.0.0.1:8001"},
		{Name: HotelService, BaseURL: "http://127.0.0.1:8002"},
		{Name: TripService, BaseURL: "http://127.0.0.1:8003"},
		{Name: UserService, BaseURL: "http://127.0.0.1:8004"},
		{Name: FlightBookingService, BaseURL: "http://127.0.0.1:8006"},
		{Name: CarService, BaseURL: "http://127.0.0.1:8010"},
	}
}

// EnvVarName returns the environment variable that overrides the URL of a service,
// such as BOOKING_CAR_BOOKING_URL.
func EnvVarName(serviceName string) string {
	return "BOOKING_" + strings.ToUpper(strings.ReplaceAll(serviceName, "-", "_")) + "_URL"
}
