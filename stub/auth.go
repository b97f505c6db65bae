package stub

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-jose/go-jose/v4/jwt"

	"github.com/tripsuite/booking-contract-tests/auth"
)

const minVerifiedSecretLength = 32

// User is the identity a booking is made for, as the services return it.
type User struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	FirstName string `json:"fname"`
	LastName  string `json:"lname"`
}

type userContextKey struct{}

func currentUser(r *http.Request) User {
	u, _ := r.Context().Value(userContextKey{}).(User)
	return u
}

func (s *Stub) verifiesSignatures() bool {
	return len(s.options.TokenSecret) >= minVerifiedSecretLength
}

// requireUser rejects requests without a usable bearer token and otherwise stores the
// token's user in the request context.
func (s *Stub) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			writeDetail(w, http.StatusUnauthorized, "Authorization header missing")
			return
		}
		parts := strings.Fields(header)
		if len(parts) != 2 {
			writeDetail(w, http.StatusUnauthorized, "Invalid authorization header format")
			return
		}
		if !strings.EqualFold(parts[0], "bearer") {
			writeDetail(w, http.StatusUnauthorized, "Invalid authentication scheme")
			return
		}
		claims, detail := s.checkToken(parts[1])
		if detail != "" {
			writeDetail(w, http.StatusUnauthorized, detail)
			return
		}
		ctx := context.WithValue(r.Context(), userContextKey{}, userFromClaims(claims))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// checkToken returns the claims of a token, or the detail message to reject it with.
func (s *Stub) checkToken(token string) (auth.Claims, string) {
	now := s.options.Now()
	if s.verifiesSignatures() {
		claims, err := auth.Verify(token, s.options.TokenSecret, now)
		switch {
		case err == nil:
		case errors.Is(err, jwt.ErrExpired):
			return claims, "Token has expired"
		default:
			if _, inspectErr := auth.Inspect(token); inspectErr == nil {
				return claims, "Invalid token signature"
			}
			return claims, "Invalid token: " + err.Error()
		}
		if claims.UserID == "" {
			return claims, "Invalid token: no user id"
		}
		return claims, ""
	}

	claims, err := auth.Inspect(token)
	if err != nil {
		return claims, "Invalid token: " + err.Error()
	}
	if claims.Expiry != nil && !now.Before(*claims.Expiry) {
		return claims, "Token has expired"
	}
	if claims.UserID == "" {
		return claims, "Invalid token: no user id"
	}
	return claims, ""
}

func userFromClaims(c auth.Claims) User {
	u := User{UserID: c.UserID, Email: c.Email, FirstName: c.FirstName, LastName: c.LastName}
	if u.FirstName == "" {
		u.FirstName, _, _ = strings.Cut(u.Email, "@")
	}
	return u
}

// requireAPIKey is the looser check of the catalogue services, which accept any bearer value.
func requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			writeDetail(w, http.StatusUnauthorized, "API key is missing")
			return
		}
		key, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			writeDetail(w, http.StatusUnauthorized, "Invalid authorization format. Use 'Bearer <api_key>'")
			return
		}
		if strings.TrimSpace(key) == "" {
			writeDetail(w, http.StatusUnauthorized, "Invalid API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}
