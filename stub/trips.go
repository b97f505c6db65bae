package stub

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tripsuite/booking-contract-tests/servicedef"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

type trip struct {
	userID string
	fields ldvalue.Value
}

type tripStore struct {
	trips map[string]trip
	lock  sync.Mutex
}

func newTripStore() *tripStore {
	return &tripStore{trips: make(map[string]trip)}
}

type tripField struct {
	name string
	kind string
}

var tripFields = []tripField{
	{"tripname", "string"},
	{"destination", "string"},
	{"startdate", "date"},
	{"enddate", "date"},
	{"travelers", "int"},
	{"budget", "number"},
	{"trip_status", "string"},
	{"description", "string"},
}

// validateTrip returns the FastAPI-style errors for a trip body.
func validateTrip(body ldvalue.Value) []fieldError {
	var errs []fieldError
	for _, f := range tripFields {
		v, ok := body.TryGetByKey(f.name)
		if !ok || v.IsNull() {
			errs = append(errs, missingField("body", f.name))
			continue
		}
		var valid bool
		var e fieldError
		switch f.kind {
		case "string":
			valid = v.IsString()
			e = fieldError{Msg: "Input should be a valid string", Type: "string_type"}
		case "date":
			if v.IsString() {
				_, err := time.Parse("2006-01-02", v.StringValue())
				valid = err == nil
			}
			e = fieldError{Msg: "Input should be a valid date", Type: "date_from_datetime_parsing"}
		case "int":
			valid = v.IsInt()
			e = fieldError{Msg: "Input should be a valid integer", Type: "int_type"}
		case "number":
			valid = v.IsNumber()
			e = fieldError{Msg: "Input should be a valid number", Type: "float_type"}
		}
		if !valid {
			e.Loc = []string{"body", f.name}
			errs = append(errs, e)
		}
	}
	return errs
}

func (s *Stub) tripRouter() http.Handler {
	r := s.newRouter(servicedef.TripService)
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "Trip Service is running!"})
	})
	r.Group(func(r chi.Router) {
		r.Use(s.requireUser)
		r.Post("/trips/create", func(w http.ResponseWriter, r *http.Request) {
			body, errs := readObject(r)
			if errs == nil {
				errs = validateTrip(body)
			}
			if errs != nil {
				writeValidationErrors(w, errs)
				return
			}
			id := uuid.NewString()
			s.trips.lock.Lock()
			s.trips.trips[id] = trip{userID: currentUser(r).UserID, fields: body}
			s.trips.lock.Unlock()
			writeJSON(w, http.StatusOK, map[string]string{"tripid": id})
		})
		r.Post("/trips/update/{tripID}", func(w http.ResponseWriter, r *http.Request) {
			id, ok := s.ownTrip(w, r)
			if !ok {
				return
			}
			body, errs := readObject(r)
			if errs == nil {
				errs = validateTrip(body)
			}
			if errs != nil {
				writeValidationErrors(w, errs)
				return
			}
			s.trips.lock.Lock()
			s.trips.trips[id] = trip{userID: currentUser(r).UserID, fields: body}
			s.trips.lock.Unlock()
			writeJSON(w, http.StatusOK, map[string]string{"message": "Trip updated successfully"})
		})
		r.Delete("/trips/delete/{tripID}", func(w http.ResponseWriter, r *http.Request) {
			id, ok := s.ownTrip(w, r)
			if !ok {
				return
			}
			s.trips.lock.Lock()
			delete(s.trips.trips, id)
			s.trips.lock.Unlock()
			writeJSON(w, http.StatusOK, map[string]string{"message": "Trip deleted successfully"})
		})
	})
	return r
}

// ownTrip finds the trip named in the path, writing an error if it is not the user's.
func (s *Stub) ownTrip(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "tripID")
	if _, err := uuid.Parse(id); err != nil {
		writeValidationErrors(w, []fieldError{{Loc: []string{"path", "tripid"}, Msg: "Input should be a valid UUID", Type: "uuid_parsing"}})
		return "", false
	}
	s.trips.lock.Lock()
	t, ok := s.trips.trips[id]
	s.trips.lock.Unlock()
	if !ok || t.userID != currentUser(r).UserID {
		writeDetail(w, http.StatusNotFound, "Trip not found or does not belong to the user")
		return "", false
	}
	return id, true
}
