package ubidots

import (
	"encoding/json"
	"strconv"
)

// BuildBody formats readings as Ubidots device payload, insertion order kept:
// {"a":1.000, "b":{"value":2.000, "timestamp":1700000000000}, "c":{"value":3.000, "context":{...}}}
func BuildBody(rs []Reading) []byte {
	return appendBody(make([]byte, 0, 32*len(rs)+2), rs)
}

func appendBody(b []byte, rs []Reading) []byte {
	b = append(b, '{')
	for i, r := range rs {
		if i != 0 {
			b = append(b, ", "...)
		}
		b = appendLabel(b, r.Label)
		b = append(b, ':')
		switch {
		case r.Context != nil:
			b = append(b, `{"value":`...)
			b = appendValue(b, r.Value)
			b = append(b, `, "context":`...)
			b = append(b, r.Context...)
			b = append(b, '}')
		case r.HasTimestamp:
			b = append(b, `{"value":`...)
			b = appendValue(b, r.Value)
			b = append(b, `, "timestamp":`...)
			b = strconv.AppendInt(b, r.Timestamp, 10)
			b = append(b, '}')
		default:
			b = appendValue(b, r.Value)
		}
	}
	b = append(b, '}')
	return b
}

func appendValue(b []byte, v float64) []byte {
	return strconv.AppendFloat(b, v, 'f', 3, 64)
}

func appendLabel(b []byte, label string) []byte {
	q, err := json.Marshal(label)
	if err != nil {
		// string marshal does not fail
		panic("code error json.Marshal(string) err=" + err.Error())
	}
	return append(b, q...)
}
