package ubidots

import (
	"context"
	"time"

	"github.com/juju/errors"
)

// Clock is time source for deadlines and delays.
type Clock interface {
	Now() time.Time
	After(time.Duration) <-chan time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time                         { return time.Now() }
func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

func SystemClock() Clock { return systemClock{} }

// sleep returns early with context error
func sleep(ctx context.Context, c Clock, d time.Duration) error {
	if d <= 0 {
		return errors.Trace(ctx.Err())
	}
	select {
	case <-ctx.Done():
		return errors.Trace(ctx.Err())
	case <-c.After(d):
		return nil
	}
}

func clockSource(c Clock) func() int64 {
	return func() int64 { return c.Now().UnixNano() }
}
