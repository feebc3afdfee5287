package ubidots

import (
	"encoding/json"
	"time"
)

// Reading is one staged data point.
// Context, when set, wins over timestamp in the uploaded body.
type Reading struct {
	Label        string
	Value        float64
	Context      json.RawMessage // raw JSON object, sent verbatim; nil = absent
	Timestamp    int64           // milliseconds since epoch
	HasTimestamp bool
}

type ReadingOption func(*Reading)

// WithContext attaches raw JSON object, e.g. `{"lat":6.1,"lng":-1.2}`.
func WithContext(raw json.RawMessage) ReadingOption {
	return func(r *Reading) {
		if len(raw) == 0 {
			r.Context = nil
			return
		}
		r.Context = raw
	}
}

// WithTimestamp sets reading time in milliseconds since epoch.
// Without it server assigns receive time.
func WithTimestamp(ms int64) ReadingOption {
	return func(r *Reading) {
		r.Timestamp = ms
		r.HasTimestamp = true
	}
}

func WithTime(t time.Time) ReadingOption {
	return WithTimestamp(t.UnixNano() / int64(time.Millisecond))
}

func NewReading(label string, value float64, opts ...ReadingOption) Reading {
	r := Reading{Label: label, Value: value}
	for _, o := range opts {
		o(&r)
	}
	return r
}
