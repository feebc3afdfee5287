package helpers

import (
	"sync/atomic"
	"time"

	"github.com/temoto/ubidots/helpers/atomic_clock"
	"github.com/temoto/ubidots/log2"
)

// Limited exponential backoff for retry delays.
// Choose DelayAfter or DelayBefore whichever fits your code better.
// First delay is always 0.
// Update(false) or Failure() increases next delay by K.
// K=1 with Min=Max gives fixed delay between attempts.
type Backoff struct {
	next int64 // atomic align
	last atomic_clock.Clock

	Min time.Duration
	Max time.Duration
	K   float32
	Res time.Duration // delay resolution for nice logs, default=1ms

	// Source overrides wall clock, unix nanoseconds. Tests and fake clocks.
	Source func() int64
	Log    *log2.Log
}

// Use scenario:
//
//	for {
//	  err := op()
//	  time.Sleep(backoff.DelayAfter(err==nil))
//	}
func (b *Backoff) DelayAfter(success bool) time.Duration {
	atomic.CompareAndSwapInt64(&b.next, 0, int64(b.Min))
	if success {
		b.Reset()
	} else {
		b.Failure()
	}
	return b.DelayBefore()
}

// Use scenario:
//
//	for {
//	  time.Sleep(backoff.DelayBefore())
//	  err := op()
//	  backoff.Update(err==nil)
//	}
func (b *Backoff) DelayBefore() time.Duration {
	next := time.Duration(atomic.LoadInt64(&b.next))
	if next == 0 {
		return 0
	}
	delay := b.limit(next)
	since := time.Duration(b.now() - b.last.UnixNano())
	b.Log.Debugf("backoff delay next=%s delay=%s since=%s", next, delay, since)
	if since >= delay {
		return 0
	}
	return b.round(delay - since)
}

// Increase next Delay()
func (b *Backoff) Failure() {
	next := time.Duration(atomic.LoadInt64(&b.next))
	next = time.Duration(float32(next) * b.K)
	next = b.limit(next)
	b.last.Set(b.now())
	atomic.StoreInt64(&b.next, int64(next))
}

func (b *Backoff) Reset() {
	b.last.Set(b.now())
	atomic.StoreInt64(&b.next, int64(b.Min))
}

func (b *Backoff) Update(success bool) {
	if success {
		b.Reset()
	} else {
		b.Failure()
	}
}

func (b *Backoff) now() int64 {
	if b.Source != nil {
		return b.Source()
	}
	return atomic_clock.Source()
}

func (b *Backoff) limit(d time.Duration) time.Duration {
	if d < b.Min {
		d = b.Min
	}
	if d > b.Max {
		d = b.Max
	}
	return b.round(d)
}

func (b *Backoff) round(d time.Duration) time.Duration {
	res := b.Res
	if res == 0 {
		res = 1 * time.Millisecond
	}
	return d / res * res
}
