package ubidots

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/ubidots/log2"
)

func testReadings(n int) []Reading {
	rs := make([]Reading, n)
	for i := range rs {
		rs[i] = NewReading(fmt.Sprintf("v%d", i+1), float64(i+1))
	}
	return rs
}

func labels(rs []Reading) []string {
	ls := make([]string, len(rs))
	for i, r := range rs {
		ls[i] = r.Label
	}
	return ls
}

func TestBufferOrder(t *testing.T) {
	t.Parallel()

	for n := 0; n <= DefaultCapacity; n++ {
		n := n
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			b := NewReadingBuffer(0, log2.NewTest(t, log2.LDebug))
			require.Equal(t, DefaultCapacity, b.Cap())
			input := testReadings(n)
			for _, r := range input {
				assert.False(t, b.Add(r))
			}
			assert.Equal(t, n, b.Len())
			assert.Equal(t, input, b.Drain())
			assert.True(t, b.IsEmpty())
		})
	}
}

func TestBufferOverflow(t *testing.T) {
	t.Parallel()

	b := NewReadingBuffer(5, log2.NewTest(t, log2.LDebug))
	input := testReadings(7)
	for i, r := range input {
		overflow := b.Add(r)
		assert.Equal(t, i >= 5, overflow, "add #%d", i+1)
		assert.LessOrEqual(t, b.Len(), b.Cap())
	}
	assert.Equal(t, 5, b.Len())
	assert.Equal(t, []string{"v1", "v2", "v3", "v4", "v7"}, labels(b.Drain()))
}

func TestBufferDrainEmpty(t *testing.T) {
	t.Parallel()

	b := NewReadingBuffer(3, nil)
	rs := b.Drain()
	assert.NotNil(t, rs)
	assert.Len(t, rs, 0)
	assert.Equal(t, 0, b.Len())
	assert.Len(t, b.Drain(), 0)
}

func TestBufferRequeue(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		failed  int
		added   int
		expect  []string
		dropped int
	}{
		{"nothing", 0, 2, []string{"n1", "n2"}, 0},
		{"failed-only", 3, 0, []string{"v1", "v2", "v3"}, 0},
		{"before-new", 2, 2, []string{"v1", "v2", "n1", "n2"}, 0},
		{"overflow-newest-last", 4, 3, []string{"v1", "v2", "v3", "v4", "n3"}, 2},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			b := NewReadingBuffer(5, log2.NewTest(t, log2.LDebug))
			for i := 1; i <= c.added; i++ {
				b.Add(NewReading(fmt.Sprintf("n%d", i), 0))
			}
			assert.Equal(t, c.dropped, b.Requeue(testReadings(c.failed)))
			assert.Equal(t, c.expect, labels(b.Drain()))
		})
	}
}
