package circuit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	b := New("sender", WithFailureThreshold(3))

	for i := 0; i < 2; i++ {
		fallback, change := b.RecordFailure()
		assert.False(t, fallback)
		assert.False(t, change.Opened)
	}
	require.False(t, b.IsOpen())

	fallback, change := b.RecordFailure()
	assert.True(t, fallback)
	assert.True(t, change.Opened)
	assert.True(t, b.IsOpen())
	assert.Equal(t, StateOpen, b.State())
}

func TestSuccessResetsTheFailureCount(t *testing.T) {
	b := New("sender", WithFailureThreshold(3))

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()

	// The streak starts over; two more failures must not open it.
	b.RecordFailure()
	fallback, change := b.RecordFailure()
	assert.False(t, fallback)
	assert.False(t, change.Opened)
	assert.False(t, b.IsOpen())
}

func TestFailureWhileOpenKeepsTheFallback(t *testing.T) {
	b := New("sender", WithFailureThreshold(1))

	_, change := b.RecordFailure()
	require.True(t, change.Opened)

	fallback, change := b.RecordFailure()
	assert.True(t, fallback)
	assert.False(t, change.Opened, "an already open circuit reports no transition")
}

func TestBreakerClosesAfterSuccesses(t *testing.T) {
	b := New("sender", WithFailureThreshold(1), WithSuccessThreshold(2))

	_, change := b.RecordFailure()
	require.True(t, change.Opened)

	primary, change := b.RecordSuccess()
	assert.False(t, primary)
	assert.False(t, change.Closed)

	primary, change = b.RecordSuccess()
	assert.True(t, primary)
	assert.True(t, change.Closed)
	assert.Equal(t, StateClosed, b.State())
}

func TestReset(t *testing.T) {
	b := New("sender", WithFailureThreshold(1))
	b.RecordFailure()
	require.True(t, b.IsOpen())

	b.Reset()
	assert.False(t, b.IsOpen())
	assert.Equal(t, "sender", b.Name())
}
