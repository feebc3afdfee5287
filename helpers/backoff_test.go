package helpers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffFixed(t *testing.T) {
	t.Parallel()

	var now int64 = 1000
	b := &Backoff{Min: 5 * time.Second, Max: 5 * time.Second, K: 1, Source: func() int64 { return now }}
	assert.Equal(t, time.Duration(0), b.DelayBefore())
	for i := 1; i <= 5; i++ {
		b.Failure()
		assert.Equal(t, 5*time.Second, b.DelayBefore(), "attempt=%d", i)
	}
	now += int64(2 * time.Second)
	assert.Equal(t, 3*time.Second, b.DelayBefore())
	now += int64(4 * time.Second)
	assert.Equal(t, time.Duration(0), b.DelayBefore())
}

func TestBackoffExponential(t *testing.T) {
	t.Parallel()

	var now int64 = 1
	b := &Backoff{Min: time.Second, Max: 10 * time.Second, K: 2, Source: func() int64 { return now }}
	expect := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second, 10 * time.Second, 10 * time.Second}
	for i, e := range expect {
		assert.Equal(t, e, b.DelayAfter(false), "step=%d", i)
	}
	assert.Equal(t, time.Second, b.DelayAfter(true))
}
