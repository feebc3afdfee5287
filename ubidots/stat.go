package ubidots

import (
	"expvar"
	"fmt"
)

// State of request exchange. Every exchange ends in StateClosed.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateRequestSent
	StateAwaitingResponse
	StateReading
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateRequestSent:
		return "request-sent"
	case StateAwaitingResponse:
		return "awaiting-response"
	case StateReading:
		return "reading"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Stat values are updated atomically, but not consistently with each other.
type Stat struct {
	ConnectAttempts expvar.Int
	ConnectFailures expvar.Int
	Requests        expvar.Int
	Timeouts        expvar.Int
	BytesSent       expvar.Int
	BytesRecv       expvar.Int
	Overflows       expvar.Int
	Sent            expvar.Int // readings delivered
	Dropped         expvar.Int // readings lost to overflow or failed upload
}

func (s *Stat) String() string {
	return fmt.Sprintf(`{"connect.attempts":%d,"connect.failures":%d,"requests":%d,"timeouts":%d,"bytes.sent":%d,"bytes.recv":%d,"overflows":%d,"sent":%d,"dropped":%d}`,
		s.ConnectAttempts.Value(), s.ConnectFailures.Value(), s.Requests.Value(), s.Timeouts.Value(),
		s.BytesSent.Value(), s.BytesRecv.Value(), s.Overflows.Value(), s.Sent.Value(), s.Dropped.Value())
}
