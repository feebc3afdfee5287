package ubidots

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildBody(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		input  []Reading
		expect string
	}{
		{"empty", nil, `{}`},
		{"plain-and-timestamp", []Reading{
			NewReading("temperature", 24.5),
			NewReading("humidity", 60.125, WithTimestamp(1700000000)),
		}, `{"temperature":24.500, "humidity":{"value":60.125, "timestamp":1700000000}}`},
		{"context", []Reading{
			NewReading("position", 1, WithContext(json.RawMessage(`{"lat":6.1,"lng":-1.2}`))),
		}, `{"position":{"value":1.000, "context":{"lat":6.1,"lng":-1.2}}}`},
		{"context-wins-over-timestamp", []Reading{
			NewReading("door", 0, WithTimestamp(5), WithContext(json.RawMessage(`{"who":"x"}`))),
		}, `{"door":{"value":0.000, "context":{"who":"x"}}}`},
		{"empty-context-is-absent", []Reading{
			NewReading("door", 1, WithContext(json.RawMessage(``))),
		}, `{"door":1.000}`},
		{"rounding-negative", []Reading{
			NewReading("t", -0.0004),
			NewReading("p", 1013.25049),
		}, `{"t":-0.000, "p":1013.250}`},
		{"label-escape", []Reading{
			NewReading(`te"mp`, 2),
		}, `{"te\"mp":2.000}`},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			body := BuildBody(c.input)
			assert.Equal(t, c.expect, string(body))
			assert.True(t, json.Valid(body), "body=%s", body)
		})
	}
}

func TestBuildBodyMultibyte(t *testing.T) {
	t.Parallel()

	body := BuildBody([]Reading{
		NewReading("температура", 21, WithContext(json.RawMessage(`{"place":"Zürich ☀"}`))),
	})
	assert.Equal(t, `{"температура":{"value":21.000, "context":{"place":"Zürich ☀"}}}`, string(body))
	assert.Greater(t, len(body), len([]rune(string(body))))
}
