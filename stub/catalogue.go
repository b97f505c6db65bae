package stub

import (
	"fmt"
	"hash/fnv"
	"math/rand"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tripsuite/booking-contract-tests/servicedef"
)

type carTemplate struct {
	make   string
	models []string
}

var carTemplates = map[string][]carTemplate{
	"Sedan":    {{"Toyota", []string{"Camry", "Corolla"}}, {"Honda", []string{"Accord", "Civic"}}},
	"SUV":      {{"Ford", []string{"Explorer", "Escape"}}, {"Jeep", []string{"Grand Cherokee", "Wrangler"}}},
	"Electric": {{"Tesla", []string{"Model 3", "Model Y"}}, {"Nissan", []string{"Leaf"}}},
	"Luxury":   {{"BMW", []string{"7 Series"}}, {"Mercedes-Benz", []string{"S-Class", "E-Class"}}},
	"Economy":  {{"Kia", []string{"Rio"}}, {"Hyundai", []string{"Accent"}}},
	"Minivan":  {{"Chrysler", []string{"Pacifica"}}, {"Honda", []string{"Odyssey"}}},
}

var carColours = []string{"Red", "Blue", "Black", "White", "Silver", "Green", "Gray", "Yellow"}

var carFeatures = []string{"GPS", "Air Conditioning", "Bluetooth", "Backup Camera", "Heated Seats", "Sunroof"}

func carTypes() []string {
	ret := make([]string, 0, len(carTemplates))
	for t := range carTemplates {
		ret = append(ret, t)
	}
	sort.Strings(ret)
	return ret
}

// seededRand returns a generator that produces the same data for the same key, so that the
// catalogue does not change between two identical requests.
func seededRand(key string) *rand.Rand {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return rand.New(rand.NewSource(int64(h.Sum64())))
}

func stableID(key string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String()
}

func makeCar(carType string, tmpl carTemplate, model string) map[string]interface{} {
	rnd := seededRand(carType + tmpl.make + model)
	seats, fuel := 5, "Petrol"
	switch carType {
	case "Minivan":
		seats = 7
	case "Electric":
		fuel = "Electric"
	}
	return map[string]interface{}{
		"_id":           stableID("car:" + tmpl.make + ":" + model),
		"make":          tmpl.make,
		"model":         model,
		"year":          2018 + rnd.Intn(7),
		"color":         []string{carColours[rnd.Intn(len(carColours))]},
		"seat":          seats,
		"type":          carType,
		"price_per_day": 30 + float64(rnd.Intn(12000))/100,
		"feature":       carFeatures[rnd.Intn(3)] + ", " + carFeatures[3+rnd.Intn(3)],
		"transmission":  []string{"Automatic", "Manual"}[rnd.Intn(2)],
		"fuel_type":     fuel,
		"available":     true,
		"rating":        float64(35+rnd.Intn(16)) / 10,
	}
}

func (s *Stub) carRouter() http.Handler {
	r := s.newRouter(servicedef.CarService)
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "Welcome to the car availability microservice!"})
	})
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "car-microservice", "version": "1.0.0"})
	})
	r.Group(func(r chi.Router) {
		r.Use(requireAPIKey)
		r.With(s.rateLimit(carLimit("/cars", 10))).Get("/cars", func(w http.ResponseWriter, r *http.Request) {
			var cars []map[string]interface{}
			for _, t := range carTypes() {
				for _, tmpl := range carTemplates[t] {
					cars = append(cars, makeCar(t, tmpl, tmpl.models[0]))
				}
			}
			if len(cars) > 20 {
				cars = cars[:20]
			}
			writeJSON(w, http.StatusOK, cars)
		})
		r.With(s.rateLimit(carLimit("/cars/{type}", 15))).Get("/cars/{carType}", func(w http.ResponseWriter, r *http.Request) {
			carType := chi.URLParam(r, "carType")
			templates, ok := carTemplates[carType]
			if !ok {
				writeDetail(w, http.StatusNotFound, fmt.Sprintf("Car type '%s' not found", carType))
				return
			}
			var cars []map[string]interface{}
			for _, tmpl := range templates {
				for _, m := range tmpl.models {
					cars = append(cars, makeCar(carType, tmpl, m))
				}
			}
			writeJSON(w, http.StatusOK, cars)
		})
		r.With(s.rateLimit(carLimit("/car-types", 20))).Get("/car-types", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, carTypes())
		})
	})
	return r
}

func carLimit(route string, limit int) limitRule {
	return limitRule{service: "car-service:" + route, limit: limit, window: time.Minute, allowAnonymous: true}
}

// intQuery parses an optional integer query parameter within [min, max].
func intQuery(q url.Values, name string, defaultValue, min, max int) (int, *fieldError) {
	raw := q.Get(name)
	if raw == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(raw)
	switch {
	case err != nil:
		return 0, &fieldError{Loc: []string{"query", name}, Msg: "Input should be a valid integer", Type: "int_parsing"}
	case n < min:
		return 0, &fieldError{Loc: []string{"query", name}, Msg: fmt.Sprintf("Input should be greater than or equal to %d", min), Type: "greater_than_equal"}
	case n > max:
		return 0, &fieldError{Loc: []string{"query", name}, Msg: fmt.Sprintf("Input should be less than or equal to %d", max), Type: "less_than_equal"}
	}
	return n, nil
}

var (
	airlines      = []string{"Delta", "United", "American Airlines", "Southwest", "JetBlue", "Alaska Airlines"}
	airportCodes  = []string{"LAX", "JFK", "ORD", "ATL", "DFW", "DEN", "SFO", "SEA", "MIA", "BOS"}
	aircraftTypes = []string{"Boeing 737", "Airbus A320", "Boeing 777", "Airbus A350", "Embraer E190"}
	flightStatus  = []string{"On Time", "On Time", "On Time", "Delayed"}
)

func makeFlight(date time.Time, index int) map[string]interface{} {
	rnd := seededRand(fmt.Sprintf("flight:%s:%d", date.Format("2006-01-02"), index))
	airline := airlines[rnd.Intn(len(airlines))]
	from := airportCodes[rnd.Intn(len(airportCodes))]
	to := from
	for to == from {
		to = airportCodes[rnd.Intn(len(airportCodes))]
	}
	departure := date.Add(time.Duration(rnd.Intn(24*60)) * time.Minute)
	duration := time.Duration(60+rnd.Intn(300)) * time.Minute
	arrival := departure.Add(duration)
	return map[string]interface{}{
		"airline":            airline,
		"flightNumber":       fmt.Sprintf("%s%d", airline[:2], 100+rnd.Intn(9900)),
		"departureAirport":   from,
		"destinationAirport": to,
		"departureTime":      departure.Format("2006-01-02T15:04:05"),
		"arrivalTime":        arrival.Format("2006-01-02T15:04:05"),
		"duration":           fmt.Sprintf("%dh %dm", int(duration.Hours()), int(duration.Minutes())%60),
		"numberOfStops":      0,
		"stops":              []interface{}{},
		"status":             flightStatus[rnd.Intn(len(flightStatus))],
		"aircraft":           aircraftTypes[rnd.Intn(len(aircraftTypes))],
		"gate":               fmt.Sprintf("%c%d", 'A'+rune(rnd.Intn(6)), 1+rnd.Intn(30)),
		"terminal":           string(rune('A' + rnd.Intn(5))),
		"meal":               rnd.Intn(10) < 7,
		"availableSeats":     map[string]int{"Economy": rnd.Intn(101), "Business": rnd.Intn(31), "First": rnd.Intn(11)},
		"prices": map[string]float64{
			"Economy":  50 + float64(rnd.Intn(40000))/100,
			"Business": 400 + float64(rnd.Intn(60000))/100,
			"First":    1000 + float64(rnd.Intn(150000))/100,
		},
		"bookingUrl": "#",
	}
}

func (s *Stub) flightRouter() http.Handler {
	r := s.newRouter(servicedef.FlightService)
	r.With(s.rateLimit(limitRule{service: "flight-service", limit: 10, window: time.Minute})).
		Get("/", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{
				"message": "Welcome to the Fake Flight Generator Microservice!",
				"docs":    "/docs",
			})
		})
	r.With(s.rateLimit(limitRule{service: "flight-service", limit: 5, window: time.Minute})).
		Get("/flights", func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			var errs []fieldError
			if q.Get("departure_date") == "" {
				errs = append(errs, missingField("query", "departure_date"))
			}
			count, countErr := intQuery(q, "count", 5, 1, 20)
			if countErr != nil {
				errs = append(errs, *countErr)
			}
			if errs != nil {
				writeValidationErrors(w, errs)
				return
			}
			date, err := time.Parse("2006-01-02", q.Get("departure_date"))
			if err != nil {
				writeDetail(w, http.StatusBadRequest, "Invalid date format. Please use YYYY-MM-DD.")
				return
			}
			flights := make([]map[string]interface{}, 0, count)
			for i := 0; i < count; i++ {
				flights = append(flights, makeFlight(date, i))
			}
			writeJSON(w, http.StatusOK, flights)
		})
	return r
}

var hotelVendors = []string{"Marriott", "Hilton", "Hyatt", "Sheraton", "Radisson", "Wyndham"}

var hotelNames = []string{"Azure Coast Retreat", "Harbor View Inn", "Grand Plaza", "Maple Court Suites", "Riverside Lodge"}

func makeHotel(city, state string, index int) map[string]interface{} {
	rnd := seededRand(fmt.Sprintf("hotel:%s:%s:%d", city, state, index))
	name := hotelNames[index%len(hotelNames)]
	return map[string]interface{}{
		"_id":         stableID(fmt.Sprintf("hotel:%s:%s:%d", city, state, index)),
		"name":        name,
		"vendor":      hotelVendors[rnd.Intn(len(hotelVendors))],
		"address":     fmt.Sprintf("%d Main Street", 100+rnd.Intn(900)),
		"city":        city,
		"state":       state,
		"country":     "USA",
		"description": fmt.Sprintf("%s in the heart of %s.", name, city),
		"rating":      float64(30+rnd.Intn(21)) / 10,
		"roomDetails": []map[string]interface{}{{
			"type":               "Deluxe King",
			"pricePerNight":      100 + float64(rnd.Intn(30000))/100,
			"mostPopular":        true,
			"cancellationPolicy": "Free cancellation up to 24 hours before check-in",
			"availableRooms":     rnd.Intn(20),
		}},
		"amenities": []string{"Free WiFi", "Pool", "Fitness Center"},
	}
}

func (s *Stub) hotelRouter() http.Handler {
	r := s.newRouter(servicedef.HotelService)
	s.addBookingRoutes(r, hotelBooking)
	r.Get("/hotels", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		count, countErr := intQuery(q, "count", 5, 1, 20)
		if countErr != nil {
			writeValidationErrors(w, []fieldError{*countErr})
			return
		}
		city, state := q.Get("city"), q.Get("state")
		if city == "" {
			city = "New York"
		}
		if state == "" {
			state = "NY"
		}
		hotels := make([]map[string]interface{}, 0, count)
		for i := 0; i < count; i++ {
			hotels = append(hotels, makeHotel(city, state, i))
		}
		writeJSON(w, http.StatusOK, hotels)
	})
	return r
}
