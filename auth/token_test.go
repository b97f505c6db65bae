package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// the static token the services were originally smoke-tested with
const legacyToken = "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9." +
	"eyJ1c2VyaWQiOiIyM2NiYzUwZS04ZDFhLTQ5MjQtYjBlNS1iMzFhODNkNDRmYjIiLCJlbWFpbCI6ImpvaG4uZG9lQGV4YW1wbGUuY29tIn0." +
	"V4zVIh7NYP8QYNGX8BZCfbp6WtQ_CIW4lJP86G-iAv0"

var now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestInspectLegacyToken(t *testing.T) {
	c, err := Inspect(legacyToken)
	require.NoError(t, err)
	assert.Equal(t, "23cbc50e-8d1a-4924-b0e5-b31a83d44fb2", c.UserID)
	assert.Equal(t, "john.doe@example.com", c.Email)
	assert.Nil(t, c.Expiry)
	assert.Equal(t, `user "23cbc50e-8d1a-4924-b0e5-b31a83d44fb2" <john.doe@example.com>`, c.String())
}

func TestInspectRejectsInvalidToken(t *testing.T) {
	_, err := Inspect(InvalidToken)
	assert.Error(t, err)
}

func TestMintAndVerify(t *testing.T) {
	token, err := Mint(testSecret, Claims{UserID: "u-1", Email: "a@example.com", FirstName: "Ann"}, time.Hour, now)
	require.NoError(t, err)
	assert.Equal(t, 3, len(strings.Split(token, ".")))

	c, err := Verify(token, testSecret, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, "u-1", c.UserID)
	assert.Equal(t, "Ann", c.FirstName)
	require.NotNil(t, c.Expiry)
	assert.True(t, c.Expiry.Equal(now.Add(time.Hour)))

	inspected, err := Inspect(token)
	require.NoError(t, err)
	assert.Equal(t, c, inspected)
}

func TestVerifyFailures(t *testing.T) {
	token, err := Mint(testSecret, Claims{UserID: "u-1"}, time.Hour, now)
	require.NoError(t, err)

	_, err = Verify(token, strings.Repeat("x", 32), now)
	assert.Error(t, err, "wrong secret")

	_, err = Verify(token, testSecret, now.Add(2*time.Hour))
	assert.Error(t, err, "expired")

	_, err = Verify(legacyToken, "", now)
	assert.ErrorIs(t, err, ErrMissingSecret)

	_, err = Verify(InvalidToken, testSecret, now)
	assert.Error(t, err)
}

func TestMintRequiresSecret(t *testing.T) {
	_, err := Mint("", Claims{}, 0, now)
	assert.ErrorIs(t, err, ErrMissingSecret)
}
