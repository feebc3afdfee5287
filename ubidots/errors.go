package ubidots

import (
	"fmt"

	"github.com/juju/errors"
)

// Error kinds. Returned errors are annotated, compare errors.Cause(err) or use Is* helpers.
// Timeouts are juju timeout errors, check with errors.IsTimeout.
var (
	ErrNetwork = fmt.Errorf("network error")
	ErrParse   = fmt.Errorf("response parse error")
	ErrNoData  = fmt.Errorf("no data to send")
)

func IsNetwork(err error) bool { return errors.Cause(err) == ErrNetwork }
func IsParse(err error) bool   { return errors.Cause(err) == ErrParse }
func IsNoData(err error) bool  { return errors.Cause(err) == ErrNoData }

// IsTimeout is errors.IsTimeout, for callers not importing juju/errors.
func IsTimeout(err error) bool { return errors.IsTimeout(err) }

// StatusError is non-2xx response. Its cause is ErrNetwork.
type StatusError struct{ Status int }

func (e *StatusError) Error() string { return fmt.Sprintf("response status=%d", e.Status) }
func (e *StatusError) Cause() error  { return ErrNetwork }

// ResponseStatus finds non-2xx status in annotated err, 0 if none.
func ResponseStatus(err error) int {
	for err != nil {
		if se, ok := err.(*StatusError); ok {
			return se.Status
		}
		u, ok := err.(interface{ Underlying() error })
		if !ok {
			return 0
		}
		err = u.Underlying()
	}
	return 0
}

// IsRejected is true for 4xx responses that repeating the same request cannot fix.
// 408 and 429 are temporary.
func IsRejected(err error) bool {
	status := ResponseStatus(err)
	return status >= 400 && status <= 499 && status != 408 && status != 429
}

// retryable failures keep readings staged
func isDeliveryFailure(err error) bool {
	if IsRejected(err) {
		return false
	}
	return IsNetwork(err) || errors.IsTimeout(err)
}
