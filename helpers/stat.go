package helpers

import (
	"expvar"
	"io"
)

// StatReader adds bytes read (plus fixed F per call) to V.
type StatReader struct {
	R io.Reader
	V *expvar.Int
	F int64
}

var _ io.Reader = &StatReader{}

func NewStatReader(r io.Reader, v *expvar.Int, fix int64) io.Reader {
	return &StatReader{R: r, F: fix, V: v}
}

func (sr *StatReader) Read(p []byte) (n int, err error) {
	n, err = sr.R.Read(p)
	if n > 0 {
		sr.V.Add(int64(n) + sr.F)
	}
	return
}

type StatWriter struct {
	W io.Writer
	V *expvar.Int
	F int64
}

var _ io.Writer = &StatWriter{}

func NewStatWriter(w io.Writer, v *expvar.Int, fix int64) io.Writer {
	return &StatWriter{W: w, F: fix, V: v}
}

func (sw *StatWriter) Write(p []byte) (n int, err error) {
	n, err = sw.W.Write(p)
	if n > 0 {
		sw.V.Add(int64(n) + sw.F)
	}
	return
}
