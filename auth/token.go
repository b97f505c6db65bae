// Package auth handles the bearer tokens that the booking services accept.
//
// The harness itself never needs to verify a token. It only needs to present one, and
// optionally to describe which user it acts as. Verification is provided for the stub
// services.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
)

// InvalidToken is a bearer value that no service can accept, because it is not a JWT at all.
const InvalidToken = "invalid-token"

// Signature algorithms we are willing to parse when we only decode a token.
var inspectAlgorithms = []jose.SignatureAlgorithm{
	jose.HS256, jose.HS384, jose.HS512,
	jose.RS256, jose.RS384, jose.RS512,
	jose.ES256, jose.ES384, jose.ES512,
}

var ErrMissingSecret = errors.New("a signing secret is required")

// Claims are the custom claims the booking services put in their tokens.
type Claims struct {
	UserID    string     `json:"userid,omitempty"`
	Email     string     `json:"email,omitempty"`
	FirstName string     `json:"fname,omitempty"`
	LastName  string     `json:"lname,omitempty"`
	Expiry    *time.Time `json:"-"`
}

// Some of the services issue user_id instead of userid.
type wireClaims struct {
	Claims
	AltUserID string `json:"user_id,omitempty"`
}

func (w wireClaims) resolve(registered jwt.Claims) Claims {
	c := w.Claims
	if c.UserID == "" {
		c.UserID = w.AltUserID
	}
	if c.UserID == "" {
		c.UserID = registered.Subject
	}
	if registered.Expiry != nil {
		t := registered.Expiry.Time()
		c.Expiry = &t
	}
	return c
}

func (c Claims) String() string {
	s := fmt.Sprintf("user %q", c.UserID)
	if c.Email != "" {
		s += fmt.Sprintf(" <%s>", c.Email)
	}
	if c.Expiry != nil {
		s += " expires " + c.Expiry.UTC().Format(time.RFC3339)
	}
	return s
}

// Inspect decodes the claims of a token without checking its signature.
func Inspect(token string) (Claims, error) {
	tok, err := jwt.ParseSigned(token, inspectAlgorithms)
	if err != nil {
		return Claims{}, fmt.Errorf("not a valid JWT: %w", err)
	}
	var registered jwt.Claims
	var custom wireClaims
	if err := tok.UnsafeClaimsWithoutVerification(&registered, &custom); err != nil {
		return Claims{}, fmt.Errorf("cannot decode token claims: %w", err)
	}
	return custom.resolve(registered), nil
}

// Mint creates an HS256 token signed with the services' shared secret. If ttl is zero the
// token does not expire.
func Mint(secret string, claims Claims, ttl time.Duration, now time.Time) (string, error) {
	if secret == "" {
		return "", ErrMissingSecret
	}
	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.HS256, Key: []byte(secret)},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return "", fmt.Errorf("cannot create token signer: %w", err)
	}
	registered := jwt.Claims{
		Subject:  claims.UserID,
		IssuedAt: jwt.NewNumericDate(now),
	}
	if ttl > 0 {
		registered.Expiry = jwt.NewNumericDate(now.Add(ttl))
	}
	claims.Expiry = nil
	raw, err := jwt.Signed(signer).Claims(registered).Claims(claims).Serialize()
	if err != nil {
		return "", fmt.Errorf("cannot sign token: %w", err)
	}
	return raw, nil
}

// Verify checks the signature and expiry of an HS256 token and returns its claims.
func Verify(token, secret string, now time.Time) (Claims, error) {
	if secret == "" {
		return Claims{}, ErrMissingSecret
	}
	tok, err := jwt.ParseSigned(token, []jose.SignatureAlgorithm{jose.HS256})
	if err != nil {
		return Claims{}, fmt.Errorf("not a valid JWT: %w", err)
	}
	var registered jwt.Claims
	var custom wireClaims
	if err := tok.Claims([]byte(secret), &registered, &custom); err != nil {
		return Claims{}, fmt.Errorf("bad signature: %w", err)
	}
	if err := registered.ValidateWithLeeway(jwt.Expected{Time: now}, 0); err != nil {
		return Claims{}, err
	}
	return custom.resolve(registered), nil
}
