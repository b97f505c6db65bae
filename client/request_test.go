package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultExpectationIsAny2xx(t *testing.T) {
	var e Expectation
	assert.True(t, e.Matches(200))
	assert.True(t, e.Matches(201))
	assert.True(t, e.Matches(204))
	assert.False(t, e.Matches(301))
	assert.False(t, e.Matches(401))
	assert.Equal(t, "2xx", e.String())
}

func TestExpectationStatusesAndClasses(t *testing.T) {
	e := Expectation{Statuses: []int{401}, Classes: []int{5}}
	assert.True(t, e.Matches(401))
	assert.False(t, e.Matches(403))
	assert.True(t, e.Matches(503))
	assert.Equal(t, "401 or 5xx", e.String())
}

func TestParseExpectation(t *testing.T) {
	e, err := ParseExpectation([]string{"201", "200", "4XX"})
	require.NoError(t, err)
	assert.Equal(t, Expectation{Statuses: []int{201, 200}, Classes: []int{4}}, e)
	assert.Equal(t, "200 or 201 or 4xx", e.String())

	_, err = ParseExpectation([]string{"ok"})
	assert.EqualError(t, err, `invalid expected status "ok"`)
	_, err = ParseExpectation([]string{"99"})
	assert.Error(t, err)
	_, err = ParseExpectation([]string{"9xx"})
	assert.Error(t, err)
}
