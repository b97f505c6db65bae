package stub

import (
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/tripsuite/booking-contract-tests/auth"
	"github.com/tripsuite/booking-contract-tests/servicedef"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

// The account every fresh stub starts with. Its id matches the one in the development token
// the services were originally tested with.
const (
	SeedUserID   = "23cbc50e-8d1a-4924-b0e5-b31a83d44fb2"
	SeedEmail    = "john.doe@example.com"
	SeedPassword = "securepassword123"
)

type account struct {
	user         User
	passwordHash []byte
}

type userStore struct {
	byEmail map[string]account
	lock    sync.Mutex
}

func newUserStore() *userStore {
	u := &userStore{byEmail: make(map[string]account)}
	_ = u.add(User{UserID: SeedUserID, Email: SeedEmail, FirstName: "John", LastName: "Doe"}, SeedPassword)
	return u
}

func (u *userStore) add(user User, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return err
	}
	u.lock.Lock()
	u.byEmail[strings.ToLower(user.Email)] = account{user: user, passwordHash: hash}
	u.lock.Unlock()
	return nil
}

func (u *userStore) find(email string) (account, bool) {
	u.lock.Lock()
	defer u.lock.Unlock()
	a, ok := u.byEmail[strings.ToLower(email)]
	return a, ok
}

func (u *userStore) authenticate(email, password string) (User, bool) {
	a, ok := u.find(email)
	if !ok || bcrypt.CompareHashAndPassword(a.passwordHash, []byte(password)) != nil {
		return User{}, false
	}
	return a.user, true
}

func (s *Stub) issueToken(user User) (string, error) {
	return auth.Mint(s.signinSecret, auth.Claims{
		UserID:    user.UserID,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
	}, 0, s.options.Now())
}

// stringField returns a string field of a request body, or its default when absent.
func stringField(body ldvalue.Value, name, defaultValue string) string {
	if v := body.GetByKey(name); v.IsString() {
		return v.StringValue()
	}
	return defaultValue
}

func (s *Stub) userRouter() http.Handler {
	r := s.newRouter(servicedef.UserService)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "Welcome to the User Service!"})
	})

	r.Post("/signup", func(w http.ResponseWriter, r *http.Request) {
		body, errs := readObject(r)
		if errs != nil {
			writeValidationErrors(w, errs)
			return
		}
		user := User{
			UserID:    uuid.NewString(),
			Email:     stringField(body, "email", SeedEmail),
			FirstName: stringField(body, "fname", "John"),
			LastName:  stringField(body, "lname", "Doe"),
		}
		if _, exists := s.users.find(user.Email); exists {
			writeDetail(w, http.StatusBadRequest, "User already exists")
			return
		}
		if err := s.users.add(user, stringField(body, "password", SeedPassword)); err != nil {
			writeDetail(w, http.StatusInternalServerError, "Error creating user: "+err.Error())
			return
		}
		token, err := s.issueToken(user)
		if err != nil {
			writeDetail(w, http.StatusInternalServerError, "Error creating user: "+err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{
			"message": "User created successfully",
			"user_id": user.UserID,
			"token":   token,
		})
	})

	r.Post("/signin", func(w http.ResponseWriter, r *http.Request) {
		body, errs := readObject(r)
		if errs != nil {
			writeValidationErrors(w, errs)
			return
		}
		user, ok := s.users.authenticate(stringField(body, "email", SeedEmail), stringField(body, "password", SeedPassword))
		if !ok {
			writeDetail(w, http.StatusBadRequest, "Invalid email or password")
			return
		}
		token, err := s.issueToken(user)
		if err != nil {
			writeDetail(w, http.StatusInternalServerError, "Error signing in: "+err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"message": "Sign in successful",
			"user_id": user.UserID,
			"token":   token,
		})
	})

	return r
}
