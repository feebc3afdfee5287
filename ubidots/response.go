package ubidots

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/juju/errors"
)

var (
	crlf      = []byte("\r\n")
	headerEnd = []byte("\r\n\r\n")
	chunkEnd  = []byte("0\r\n\r\n")
)

// ParseValue extracts number from last value response.
// Body is bare decimal terminated by CRLF, plain or chunked.
// Non-2xx status is *StatusError with ErrNetwork cause, unexpected shape is ErrParse.
func ParseValue(resp []byte) (float64, error) {
	status, err := parseStatusLine(resp)
	if err != nil {
		return 0, err
	}
	if !statusOK(status) {
		return 0, errors.Trace(&StatusError{Status: status})
	}
	_, body, err := splitResponse(resp)
	if err != nil {
		return 0, err
	}
	return parseNumber(body)
}

func statusOK(status int) bool { return status >= 200 && status <= 299 }

func parseStatusLine(b []byte) (int, error) {
	i := bytes.Index(b, crlf)
	if i < 0 {
		return 0, errors.Annotatef(ErrParse, "status line not found len=%d", len(b))
	}
	line := string(b[:i])
	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 2 || !strings.HasPrefix(parts[0], "HTTP/1.") {
		return 0, errors.Annotatef(ErrParse, "status line=%q", line)
	}
	status, err := strconv.Atoi(parts[1])
	if err != nil || status < 100 || status > 999 {
		return 0, errors.Annotatef(ErrParse, "status line=%q", line)
	}
	return status, nil
}

// splitResponse returns header block without final empty line and decoded body.
func splitResponse(b []byte) (header, body []byte, err error) {
	i := bytes.Index(b, headerEnd)
	if i < 0 {
		return nil, nil, errors.Annotatef(ErrParse, "header end not found len=%d", len(b))
	}
	header, body = b[:i+2], b[i+len(headerEnd):]
	if isChunked(header) {
		if body, err = dechunk(body); err != nil {
			return nil, nil, err
		}
	}
	return header, body, nil
}

// headerValue does case insensitive lookup, status line is skipped.
func headerValue(header []byte, name string) string {
	lines := bytes.Split(header, crlf)
	for _, line := range lines[1:] {
		i := bytes.IndexByte(line, ':')
		if i < 0 {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(string(line[:i])), name) {
			return strings.TrimSpace(string(line[i+1:]))
		}
	}
	return ""
}

func isChunked(header []byte) bool {
	return strings.Contains(strings.ToLower(headerValue(header, "Transfer-Encoding")), "chunked")
}

func dechunk(b []byte) ([]byte, error) {
	out := make([]byte, 0, len(b))
	for {
		i := bytes.Index(b, crlf)
		if i < 0 {
			return nil, errors.Annotatef(ErrParse, "chunk size line not found")
		}
		sizeLine := string(b[:i])
		if j := strings.IndexByte(sizeLine, ';'); j >= 0 {
			sizeLine = sizeLine[:j]
		}
		size, err := strconv.ParseUint(strings.TrimSpace(sizeLine), 16, 31)
		if err != nil {
			return nil, errors.Annotatef(ErrParse, "chunk size=%q", sizeLine)
		}
		b = b[i+len(crlf):]
		if size == 0 {
			return out, nil
		}
		if uint64(len(b)) < size+uint64(len(crlf)) {
			return nil, errors.Annotatef(ErrParse, "chunk truncated size=%d rest=%d", size, len(b))
		}
		out = append(out, b[:size]...)
		b = b[size+uint64(len(crlf)):]
	}
}

func parseNumber(body []byte) (float64, error) {
	if i := bytes.Index(body, crlf); i >= 0 {
		body = body[:i]
	}
	s := strings.TrimSpace(string(body))
	if s == "" {
		return 0, errors.Annotatef(ErrParse, "empty body")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errors.Annotatef(ErrParse, "body=%q", s)
	}
	return v, nil
}

// responseComplete is true when headers and the whole declared body are in b.
// Without Content-Length or chunked framing only peer close ends response.
func responseComplete(b []byte) bool {
	i := bytes.Index(b, headerEnd)
	if i < 0 {
		return false
	}
	header, body := b[:i+2], b[i+len(headerEnd):]
	if cl := headerValue(header, "Content-Length"); cl != "" {
		n, err := strconv.Atoi(cl)
		return err == nil && len(body) >= n
	}
	if isChunked(header) {
		return bytes.HasSuffix(body, chunkEnd)
	}
	return false
}
