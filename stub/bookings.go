package stub

import (
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tripsuite/booking-contract-tests/servicedef"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

// bookingKind describes how one of the booking services names its routes, fields and
// messages. Apart from those they behave the same.
type bookingKind struct {
	name  string
	title string

	bookPath   string
	getPath    string
	deletePath string

	// itemField is the request field holding the booked item. If empty the whole request
	// body is the item and the trip id comes from the query string.
	itemField     string
	responseField string
	detailsField  string
	idField       string
	// referencePrefix is empty for services that do not issue booking references.
	referencePrefix string
	requireTotal    bool

	bookedMessage    string
	retrievedMessage string
	notFound         string
	deleteNotFound   string
	deletedMessage   string

	limit *limitRule
	// extra endpoints listed by the root route, if any
	endpoints map[string]string
}

var carBooking = bookingKind{
	name:             servicedef.CarBookingService,
	title:            "Car Booking Service",
	bookPath:         "/car/book",
	getPath:          "/cars/booking/{bookingID}",
	deletePath:       "/cars/delete",
	itemField:        "car",
	responseField:    "car",
	detailsField:     "car_details",
	idField:          "carid",
	referencePrefix:  "BK",
	requireTotal:     true,
	bookedMessage:    "Car booked successfully",
	retrievedMessage: "User car booking retrieved successfully",
	notFound:         "Car booking not found",
	deleteNotFound:   "Car booking not found or does not belong to the user",
	deletedMessage:   "Car booking deleted successfully",
	endpoints: map[string]string{
		"book_car":       "POST /cars/book (requires authentication)",
		"get_booking":    "GET /cars/booking/{booking_id} (requires authentication)",
		"delete_booking": "DELETE /cars/delete (requires authentication)",
	},
}

var flightBooking = bookingKind{
	name:             servicedef.FlightBookingService,
	title:            "Flight Booking Service",
	bookPath:         "/flights/book",
	getPath:          "/flights/booking/{bookingID}",
	deletePath:       "/flights/delete",
	responseField:    "flight",
	detailsField:     "flight_details",
	idField:          "flightid",
	bookedMessage:    "Flight booked successfully",
	retrievedMessage: "User booking retrieved successfully",
	notFound:         "Flight details not found",
	deleteNotFound:   "Booking not found or does not belong to the user",
	deletedMessage:   "Booking deleted successfully",
	limit:            &limitRule{service: servicedef.FlightBookingService, limit: 5, window: time.Minute},
	endpoints: map[string]string{
		"book_flight":  "POST /flights/book (requires authentication)",
		"get_bookings": "GET /flights/bookings (requires authentication)",
	},
}

var hotelBooking = bookingKind{
	name:             servicedef.HotelService,
	title:            "Hotel Booking Service",
	bookPath:         "/hotel/book",
	getPath:          "/hotels/booking/{bookingID}",
	deletePath:       "/hotels/delete",
	itemField:        "hotel",
	responseField:    "hotel",
	detailsField:     "hotel_details",
	idField:          "hotelid",
	referencePrefix:  "HB",
	requireTotal:     true,
	bookedMessage:    "Hotel booked successfully",
	retrievedMessage: "User hotel booking retrieved successfully",
	notFound:         "Hotel booking not found",
	deleteNotFound:   "Hotel booking not found or does not belong to the user",
	deletedMessage:   "Hotel booking deleted successfully",
	endpoints: map[string]string{
		"book_hotel":     "POST /hotel/book (requires authentication)",
		"get_booking":    "GET /hotels/booking/{booking_id} (requires authentication)",
		"delete_booking": "DELETE /hotels/delete (requires authentication)",
	},
}

type booking struct {
	id        string
	reference string
	userID    string
	details   ldvalue.Value
}

type bookingStore struct {
	byID map[string]booking
	lock sync.Mutex
}

func newBookingStore() *bookingStore {
	return &bookingStore{byID: make(map[string]booking)}
}

func (b *bookingStore) add(bk booking) {
	b.lock.Lock()
	b.byID[bk.id] = bk
	b.lock.Unlock()
}

func (b *bookingStore) get(id, userID string) (booking, bool) {
	b.lock.Lock()
	defer b.lock.Unlock()
	bk, ok := b.byID[id]
	if !ok || bk.userID != userID {
		return booking{}, false
	}
	return bk, true
}

// remove deletes a booking of the user by id or by booking reference.
func (b *bookingStore) remove(idOrReference, userID string) bool {
	b.lock.Lock()
	defer b.lock.Unlock()
	for id, bk := range b.byID {
		if bk.userID == userID && (id == idOrReference || (bk.reference != "" && bk.reference == idOrReference)) {
			delete(b.byID, id)
			return true
		}
	}
	return false
}

func (s *Stub) bookingRouter(kind bookingKind) http.Handler {
	r := s.newRouter(kind.name)
	s.addBookingRoutes(r, kind)
	return r
}

func (s *Stub) addBookingRoutes(r chi.Router, kind bookingKind) {
	store := s.bookings[kind.name]

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"service":        kind.title,
			"version":        "1.0.0",
			"endpoints":      kind.endpoints,
			"authentication": "Bearer token required in Authorization header",
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(s.requireUser)
		if kind.limit != nil {
			r.Use(s.rateLimit(*kind.limit))
		}
		r.Post(kind.bookPath, func(w http.ResponseWriter, r *http.Request) {
			s.book(w, r, kind, store)
		})
		r.Get(kind.getPath, func(w http.ResponseWriter, r *http.Request) {
			bk, ok := store.get(chi.URLParam(r, "bookingID"), currentUser(r).UserID)
			if !ok {
				writeDetail(w, http.StatusNotFound, kind.notFound)
				return
			}
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"message":         kind.retrievedMessage,
				kind.detailsField: bk.details,
			})
		})
		r.Delete(kind.deletePath, func(w http.ResponseWriter, r *http.Request) {
			body, errs := readObject(r)
			if errs == nil {
				if id := body.GetByKey(kind.idField); !id.IsString() {
					errs = append(errs, missingField("body", kind.idField))
				}
			}
			if errs != nil {
				writeValidationErrors(w, errs)
				return
			}
			id := body.GetByKey(kind.idField).StringValue()
			user := currentUser(r)
			if !store.remove(id, user.UserID) {
				writeDetail(w, http.StatusNotFound, kind.deleteNotFound)
				return
			}
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"message":            kind.deletedMessage,
				"deleted_booking_id": id,
				"user_id":            user.UserID,
			})
		})
	})
}

func (s *Stub) book(w http.ResponseWriter, r *http.Request, kind bookingKind, store *bookingStore) {
	body, errs := readObject(r)
	if errs != nil {
		writeValidationErrors(w, errs)
		return
	}

	item := body
	tripID := ldvalue.String(r.URL.Query().Get("trip_id"))
	insurance := ldvalue.Null()
	total := ldvalue.Null()
	if kind.itemField != "" {
		item = body.GetByKey(kind.itemField)
		if item.Type() != ldvalue.ObjectType {
			errs = append(errs, missingField("body", kind.itemField))
		}
		total = body.GetByKey("total")
		if kind.requireTotal && !total.IsNumber() {
			errs = append(errs, missingField("body", "total"))
		}
		insurance = body.GetByKey("insurance")
		tripID = body.GetByKey("trip_id")
	}
	if errs != nil {
		writeValidationErrors(w, errs)
		return
	}
	if tripID.IsString() && tripID.StringValue() == "" {
		tripID = ldvalue.Null()
	}

	user := currentUser(r)
	now := s.options.Now().UTC()
	bk := booking{id: uuid.NewString(), userID: user.UserID}
	if kind.referencePrefix != "" {
		short := user.UserID
		if len(short) > 8 {
			short = short[:8]
		}
		bk.reference = kind.referencePrefix + now.Format("20060102150405") + short
	}
	bk.details = ldvalue.ObjectBuild().
		Set("booking_id", ldvalue.String(bk.id)).
		Set("userid", ldvalue.String(user.UserID)).
		Set("booking_reference", optionalString(bk.reference)).
		Set("booking_date", ldvalue.String(now.Format(time.RFC3339))).
		Set(kind.responseField, item).
		Set("insurance", insurance).
		Set("total_amount", total).
		Set("trip_id", tripID).
		Build()
	store.add(bk)

	response := map[string]interface{}{
		"message":           kind.bookedMessage,
		"booking_id":        bk.id,
		"user":              user,
		kind.responseField:  item,
		"booking_timestamp": now.Format(time.RFC3339),
	}
	if bk.reference != "" {
		response["booking_reference"] = bk.reference
	}
	writeJSON(w, http.StatusOK, response)
}

// readObject decodes a JSON object request body, or returns the 422 errors for it.
func readObject(r *http.Request) (ldvalue.Value, []fieldError) {
	data, err := io.ReadAll(r.Body)
	if err != nil || len(data) == 0 {
		return ldvalue.Null(), []fieldError{{Loc: []string{"body"}, Msg: "Field required", Type: "missing"}}
	}
	var value ldvalue.Value
	if err := json.Unmarshal(data, &value); err != nil {
		return ldvalue.Null(), []fieldError{{Loc: []string{"body"}, Msg: "JSON decode error", Type: "json_invalid"}}
	}
	if value.Type() != ldvalue.ObjectType {
		return ldvalue.Null(), []fieldError{{Loc: []string{"body"}, Msg: "Input should be a valid dictionary", Type: "dict_type"}}
	}
	return value, nil
}

func optionalString(s string) ldvalue.Value {
	if s == "" {
		return ldvalue.Null()
	}
	return ldvalue.String(s)
}
