package vehicle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBreaker_HalfOpenProbe(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	b := NewBreaker(2, time.Minute)
	b.now = func() time.Time { return now }

	assert.True(t, b.TryAcquire())
	b.OnFailure()
	assert.False(t, b.Open())
	b.OnFailure()
	assert.True(t, b.Open())
	assert.False(t, b.TryAcquire())

	now = now.Add(2 * time.Minute)
	assert.True(t, b.TryAcquire(), "one probe after the open window")
	assert.False(t, b.TryAcquire(), "only one probe at a time")

	b.OnFailure()
	assert.True(t, b.Open(), "failed probe re-opens")

	now = now.Add(2 * time.Minute)
	assert.True(t, b.TryAcquire())
	b.OnSuccess()
	assert.False(t, b.Open())
	assert.True(t, b.TryAcquire())
	assert.True(t, b.TryAcquire())
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b := NewBreaker(2, time.Minute)

	b.OnFailure()
	b.OnSuccess()
	b.OnFailure()
	assert.False(t, b.Open())
}

func TestBreaker_ReleaseFreesHalfOpenProbe(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	b := NewBreaker(1, time.Minute)
	b.now = func() time.Time { return now }

	b.OnFailure()
	now = now.Add(2 * time.Minute)
	assert.True(t, b.TryAcquire())
	assert.False(t, b.TryAcquire())

	b.Release()
	assert.True(t, b.TryAcquire(), "released slot lets the next probe out")
}
