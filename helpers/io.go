package helpers

import (
	"io"
)

// WriteAll repeats short writes until b is written or w fails.
// Zero length write without error is reported as io.ErrShortWrite.
func WriteAll(w io.Writer, b []byte) error {
	for len(b) > 0 {
		n, err := w.Write(b)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		b = b[n:]
	}
	return nil
}
