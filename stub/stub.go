// Package stub implements local stand-ins for the booking services.
//
// Each service keeps its state in memory and reproduces the observable contract of the real
// one: status codes, the {"detail": ...} error bodies, bearer authentication and the shared
// fixed-window rate limiter keyed by X-Client-ID. The stubs let the built-in suites run
// without the real services and databases.
package stub

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/tripsuite/booking-contract-tests/framework"
	"github.com/tripsuite/booking-contract-tests/servicedef"
)

// Options configures a Stub.
type Options struct {
	// TokenSecret is the HS256 secret shared with the clients. When it is at least 32 bytes
	// long, token signatures are verified; otherwise tokens are only decoded.
	TokenSecret string
	// Now is the clock used for rate-limit windows and token expiry. Defaults to time.Now.
	Now func() time.Time
	// Logger receives one line per request. Defaults to framework.NullLogger().
	Logger framework.Logger
}

// Stub holds the state of every stub service. Services share one user database and one
// rate limiter, the way the real services share their database and Redis instance.
type Stub struct {
	options      Options
	limiter      *fixedWindowLimiter
	users        *userStore
	trips        *tripStore
	bookings     map[string]*bookingStore
	signinSecret string
}

type serviceBuilder func(s *Stub) http.Handler

var services = map[string]serviceBuilder{
	servicedef.CarBookingService:    func(s *Stub) http.Handler { return s.bookingRouter(carBooking) },
	servicedef.FlightBookingService: func(s *Stub) http.Handler { return s.bookingRouter(flightBooking) },
	servicedef.HotelService:         (*Stub).hotelRouter,
	servicedef.TripService:          (*Stub).tripRouter,
	servicedef.UserService:          (*Stub).userRouter,
	servicedef.CarService:           (*Stub).carRouter,
	servicedef.FlightService:        (*Stub).flightRouter,
}

// ServiceNames returns the names of the services that have a stub.
func ServiceNames() []string {
	ret := make([]string, 0, len(services))
	for name := range services {
		ret = append(ret, name)
	}
	sort.Strings(ret)
	return ret
}

func New(options Options) *Stub {
	if options.Now == nil {
		options.Now = time.Now
	}
	if options.Logger == nil {
		options.Logger = framework.NullLogger()
	}
	s := &Stub{
		options: options,
		limiter: newFixedWindowLimiter(options.Now),
		users:   newUserStore(),
		trips:   newTripStore(),
		bookings: map[string]*bookingStore{
			carBooking.name:    newBookingStore(),
			flightBooking.name: newBookingStore(),
			hotelBooking.name:  newBookingStore(),
		},
	}
	if s.verifiesSignatures() {
		s.signinSecret = options.TokenSecret
	} else {
		s.signinSecret = randomSecret()
	}
	return s
}

// Handler returns the HTTP handler of one service.
func (s *Stub) Handler(service string) (http.Handler, error) {
	build, ok := services[service]
	if !ok {
		return nil, fmt.Errorf("no stub for service %q", service)
	}
	return build(s), nil
}

func (s *Stub) newRouter(service string) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger(service))
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = fmt.Fprintf(w, "<html><head><title>%s - Swagger UI</title></head><body></body></html>", service)
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeDetail(w, http.StatusNotFound, "Not Found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeDetail(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})
	return r
}

func (s *Stub) requestLogger(service string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			started := time.Now()
			next.ServeHTTP(ww, r)
			s.options.Logger.Printf("[%s] %s %s -> %d (%s)", service, r.Method, r.URL.RequestURI(),
				ww.Status(), time.Since(started).Round(time.Microsecond))
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// fieldError is one entry of a 422 response, in the format FastAPI uses.
type fieldError struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

func missingField(location, name string) fieldError {
	return fieldError{Loc: []string{location, name}, Msg: "Field required", Type: "missing"}
}

func writeValidationErrors(w http.ResponseWriter, errs []fieldError) {
	writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{"detail": errs})
}

func randomSecret() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
