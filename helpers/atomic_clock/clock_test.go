package atomic_clock

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClock(t *testing.T) {
	t.Parallel()

	var c Clock
	assert.Equal(t, int64(0), c.UnixNano())
	ts := time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC).UnixNano()
	c.Set(ts)
	assert.Equal(t, ts, c.UnixNano())
	assert.InDelta(t, time.Now().UnixNano(), Source(), float64(time.Second))
}

func TestClockConcurrent(t *testing.T) {
	t.Parallel()

	var c Clock
	var wg sync.WaitGroup
	for i := 1; i <= 8; i++ {
		wg.Add(1)
		go func(v int64) {
			defer wg.Done()
			c.Set(v)
			_ = c.UnixNano()
		}(int64(i))
	}
	wg.Wait()
	assert.True(t, c.UnixNano() >= 1 && c.UnixNano() <= 8)
}
