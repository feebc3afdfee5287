// Package atomic_clock is atomic int64 unix nano timestamp.
// Use for time accounting. Do not use where time zone matters.
package atomic_clock

import (
	"sync/atomic"
	"time"
)

type Clock struct{ v int64 }

func (c *Clock) Set(new int64)   { atomic.StoreInt64(&c.v, new) }
func (c *Clock) UnixNano() int64 { return atomic.LoadInt64(&c.v) }

// Source is wall clock in unix nanoseconds.
func Source() int64 { return time.Now().UnixNano() }
