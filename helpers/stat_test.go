package helpers

import (
	"bytes"
	"expvar"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatCount(t *testing.T) {
	t.Parallel()

	const response = "HTTP/1.1 200 OK\r\nServer: nginx\r\n\r\n23.75\r\n"
	cases := []struct {
		name   string
		chunk  int
		fix    int64
		expect int64
	}{
		{"whole", 1024, 0, int64(len(response))},
		{"chunked", 5, 0, int64(len(response))},
		// 41 bytes take 9 non-empty calls, final EOF call adds nothing
		{"per-call-overhead", 5, 2, int64(len(response)) + 9*2},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			var recv, sent expvar.Int
			r := NewStatReader(strings.NewReader(response), &recv, c.fix)
			buf := make([]byte, c.chunk)
			var out bytes.Buffer
			w := NewStatWriter(&out, &sent, c.fix)
			for {
				n, err := r.Read(buf)
				if n > 0 {
					_, werr := w.Write(buf[:n])
					require.NoError(t, werr)
				}
				if err == io.EOF {
					break
				}
				require.NoError(t, err)
			}
			assert.Equal(t, response, out.String())
			assert.Equal(t, c.expect, recv.Value())
			assert.Equal(t, c.expect, sent.Value())
		})
	}
}

func TestStatZeroLength(t *testing.T) {
	t.Parallel()

	var v expvar.Int
	w := NewStatWriter(bytes.NewBuffer(nil), &v, 10)
	_, _ = w.Write(nil)
	assert.Equal(t, int64(0), v.Value())
}
