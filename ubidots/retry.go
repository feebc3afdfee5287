package ubidots

import (
	"context"

	"github.com/juju/errors"
	"github.com/temoto/ubidots/helpers"
)

// connectRetry makes first attempt plus opt.ConnectRetries more with fixed delay between them.
func connectRetry(ctx context.Context, opt *Options, stat *Stat, target string, connect func() error) error {
	bo := helpers.Backoff{
		Min:    opt.RetryDelay,
		Max:    opt.RetryDelay,
		K:      1,
		Source: clockSource(opt.Clock),
		Log:    opt.Log,
	}
	var err error
	attempts := opt.ConnectRetries + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt != 1 {
			if e := sleep(ctx, opt.Clock, bo.DelayBefore()); e != nil {
				return e
			}
		}
		if e := ctx.Err(); e != nil {
			return errors.Trace(e)
		}
		stat.ConnectAttempts.Add(1)
		if err = connect(); err == nil {
			return nil
		}
		opt.Log.Debugf("ubidots connect %s attempt=%d/%d err=%v", target, attempt, attempts, err)
		bo.Failure()
	}
	stat.ConnectFailures.Add(1)
	return errors.Annotatef(ErrNetwork, "connect %s attempts=%d last_err=(%v)", target, attempts, err)
}
