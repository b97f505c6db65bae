package stub

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func TestFixedWindowLimiter(t *testing.T) {
	clock := &fakeClock{now: time.Unix(6000, 0)}
	l := newFixedWindowLimiter(clock.Now)

	for i := 0; i < 3; i++ {
		assert.True(t, l.allow("svc", "a", 3, time.Minute), "request %d", i+1)
	}
	assert.False(t, l.allow("svc", "a", 3, time.Minute))
	assert.False(t, l.allow("svc", "a", 3, time.Minute))

	assert.True(t, l.allow("svc", "b", 3, time.Minute), "clients are counted separately")
	assert.True(t, l.allow("other", "a", 3, time.Minute), "services are counted separately")

	clock.now = clock.now.Add(59 * time.Second)
	assert.False(t, l.allow("svc", "a", 3, time.Minute), "same window")

	clock.now = clock.now.Add(time.Second)
	assert.True(t, l.allow("svc", "a", 3, time.Minute), "next window")
	assert.Len(t, l.counts, 1, "expired windows are dropped")
}

func TestFixedWindowsAreAlignedToTheEpoch(t *testing.T) {
	clock := &fakeClock{now: time.Unix(6059, 0)}
	l := newFixedWindowLimiter(clock.Now)

	assert.True(t, l.allow("svc", "a", 1, time.Minute))
	assert.False(t, l.allow("svc", "a", 1, time.Minute))

	clock.now = time.Unix(6060, 0)
	assert.True(t, l.allow("svc", "a", 1, time.Minute))
}
