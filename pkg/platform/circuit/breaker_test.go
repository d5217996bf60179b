package circuit

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBreakerStartsClosed(t *testing.T) {
	b := New("redis-lock")

	assert.Equal(t, "redis-lock", b.Name())
	assert.Equal(t, StateClosed, b.State())
	assert.False(t, b.IsOpen())
}

// step is one recorded call against the primary lock backend: outcome 'F' is a
// failure, 'S' a success. The remaining fields are expected afterwards.
type step struct {
	outcome byte
	open    bool
	opened  bool
	closed  bool
}

func TestBreakerTransitions(t *testing.T) {
	tests := []struct {
		name      string
		failures  int
		successes int
		steps     []step
	}{
		{
			name:     "opens on the threshold failure",
			failures: 3,
			steps: []step{
				{outcome: 'F'},
				{outcome: 'F'},
				{outcome: 'F', open: true, opened: true},
				{outcome: 'F', open: true},
			},
		},
		{
			name:     "success clears the failure streak",
			failures: 3,
			steps: []step{
				{outcome: 'F'},
				{outcome: 'F'},
				{outcome: 'S'},
				{outcome: 'F'},
				{outcome: 'F'},
				{outcome: 'F', open: true, opened: true},
			},
		},
		{
			name:      "closes after consecutive successes",
			failures:  1,
			successes: 2,
			steps: []step{
				{outcome: 'F', open: true, opened: true},
				{outcome: 'S', open: true},
				{outcome: 'S', closed: true},
				{outcome: 'S'},
			},
		},
		{
			name:      "failure while open restarts the recovery streak",
			failures:  1,
			successes: 3,
			steps: []step{
				{outcome: 'F', open: true, opened: true},
				{outcome: 'S', open: true},
				{outcome: 'S', open: true},
				{outcome: 'F', open: true},
				{outcome: 'S', open: true},
				{outcome: 'S', open: true},
				{outcome: 'S', closed: true},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New("redis-lock", WithFailureThreshold(tt.failures), WithSuccessThreshold(tt.successes))
			for i, st := range tt.steps {
				var change StateChange
				switch st.outcome {
				case 'F':
					useFallback, c := b.RecordFailure()
					assert.Equal(t, st.open, useFallback, "step %d fallback", i)
					change = c
				case 'S':
					usePrimary, c := b.RecordSuccess()
					assert.Equal(t, !st.open, usePrimary, "step %d primary", i)
					change = c
				default:
					require.FailNow(t, "unknown outcome", "step %d", i)
				}
				assert.Equal(t, st.open, b.IsOpen(), "step %d state", i)
				assert.Equal(t, StateChange{Opened: st.opened, Closed: st.closed}, change, "step %d change", i)
			}
		})
	}
}

func TestBreakerReset(t *testing.T) {
	b := New("redis-lock", WithFailureThreshold(1))
	b.RecordFailure()
	require.True(t, b.IsOpen())

	b.Reset()

	assert.Equal(t, StateClosed, b.State())
	useFallback, _ := b.RecordFailure()
	assert.True(t, useFallback, "threshold of one reopens immediately")
}

func TestBreakerConcurrentFailuresOpenOnce(t *testing.T) {
	b := New("redis-lock", WithFailureThreshold(10))

	var mu sync.Mutex
	opened := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, change := b.RecordFailure(); change.Opened {
				mu.Lock()
				opened++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, opened)
	assert.Equal(t, StateOpen, b.State())
}

func TestBreakerIgnoresNonPositiveThresholds(t *testing.T) {
	b := New("redis-lock", WithFailureThreshold(0), WithSuccessThreshold(-1))

	for i := 0; i < defaultFailureThreshold-1; i++ {
		b.RecordFailure()
	}
	assert.False(t, b.IsOpen())
	b.RecordFailure()
	assert.True(t, b.IsOpen())
}
