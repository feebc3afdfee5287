package ubidots

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"strconv"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/ubidots/helpers"
)

const (
	pollInterval = time.Millisecond
	apiPrefix    = "/api/v1.6/devices/"
)

// httpTransport speaks HTTP/1.1 by hand over Socket, one request per connection.
// Request and response buffers are owned by transport and reused.
type httpTransport struct {
	opt   *Options
	sock  Socket
	stat  *Stat
	state State
	req   bytes.Buffer
	resp  []byte
}

func newHttpTransport(opt *Options, stat *Stat) *httpTransport {
	t := &httpTransport{
		opt:  opt,
		sock: opt.Socket,
		stat: stat,
		resp: make([]byte, opt.ResponseLimit),
	}
	t.req.Grow(256)
	return t
}

func (t *httpTransport) GetValue(ctx context.Context, device, variable string) (float64, error) {
	t.writeHead("GET", apiPrefix+url.PathEscape(device)+"/"+url.PathEscape(variable)+"/lv")
	t.req.WriteString("\r\n")
	resp, err := t.roundTrip(ctx, t.opt.GetTimeout, false)
	if err != nil {
		return 0, err
	}
	v, err := ParseValue(resp)
	if err != nil {
		t.opt.Log.Debugf("ubidots response=%q", resp)
		return 0, err
	}
	return v, nil
}

func (t *httpTransport) Post(ctx context.Context, device string, body []byte) error {
	t.writeHead("POST", apiPrefix+url.PathEscape(device))
	t.req.WriteString("Content-Type: application/json\r\n")
	t.req.WriteString("Content-Length: ")
	t.req.WriteString(strconv.Itoa(len(body)))
	t.req.WriteString("\r\n\r\n")
	t.req.Write(body)
	resp, err := t.roundTrip(ctx, t.opt.PostTimeout, true)
	if err != nil {
		return err
	}
	t.opt.Log.Debugf("ubidots response=%q", resp)
	status, err := parseStatusLine(resp)
	if err != nil {
		return err
	}
	if !statusOK(status) {
		return errors.Trace(&StatusError{Status: status})
	}
	return nil
}

func (t *httpTransport) Close() error { return t.sock.Stop() }

func (t *httpTransport) host() string {
	if t.opt.Port == DefaultPort {
		return t.opt.Server
	}
	return t.opt.Server + ":" + strconv.Itoa(t.opt.Port)
}

func (t *httpTransport) writeHead(method, path string) {
	t.req.Reset()
	t.req.WriteString(method + " " + path + " HTTP/1.1\r\n")
	t.req.WriteString("Host: " + t.host() + "\r\n")
	t.req.WriteString("User-Agent: " + t.opt.UserAgent + "\r\n")
	t.req.WriteString("X-Auth-Token: " + t.opt.Token + "\r\n")
	t.req.WriteString("Connection: close\r\n")
}

func (t *httpTransport) setState(s State) {
	if t.state != s {
		t.opt.Log.Debugf("ubidots exchange %s -> %s", t.state, s)
	}
	t.state = s
}

// roundTrip sends prepared t.req and returns raw response which aliases t.resp.
// Socket is released on every path.
func (t *httpTransport) roundTrip(ctx context.Context, timeout time.Duration, discardOverflow bool) ([]byte, error) {
	t.stat.Requests.Add(1)
	t.setState(StateConnecting)
	target := t.host()
	err := connectRetry(ctx, t.opt, t.stat, target, func() error {
		if err := t.sock.Connect(ctx, t.opt.Server, t.opt.Port); err != nil {
			_ = t.sock.Stop()
			return err
		}
		if !t.sock.Connected() {
			_ = t.sock.Stop()
			return errors.New("not connected")
		}
		return nil
	})
	if err != nil {
		t.setState(StateClosed)
		return nil, err
	}
	defer t.release()
	t.setState(StateConnected)

	if line := bytes.Index(t.req.Bytes(), crlf); line > 0 {
		t.opt.Log.Debugf("ubidots request %s body=%d", t.req.Bytes()[:line], t.req.Len())
	}
	w := helpers.NewStatWriter(t.sock, &t.stat.BytesSent, 0)
	if err = helpers.WriteAll(w, t.req.Bytes()); err != nil {
		return nil, errors.Annotatef(ErrNetwork, "write %s err=(%v)", target, err)
	}
	if err = t.sock.Flush(); err != nil {
		return nil, errors.Annotatef(ErrNetwork, "flush %s err=(%v)", target, err)
	}
	t.setState(StateRequestSent)

	t.setState(StateAwaitingResponse)
	if err = t.await(ctx, timeout); err != nil {
		return nil, errors.Annotatef(err, "await %s", target)
	}

	t.setState(StateReading)
	resp, err := t.read(ctx, discardOverflow)
	return resp, errors.Annotatef(err, "read %s", target)
}

func (t *httpTransport) release() {
	_ = t.sock.Flush()
	_ = t.sock.Stop()
	t.setState(StateClosed)
}

// await polls for first response byte until deadline.
func (t *httpTransport) await(ctx context.Context, timeout time.Duration) error {
	deadline := t.opt.Clock.Now().Add(timeout)
	for t.sock.Available() == 0 {
		if !t.sock.Connected() {
			return errors.Annotatef(ErrNetwork, "connection closed without response")
		}
		if !t.opt.Clock.Now().Before(deadline) {
			t.stat.Timeouts.Add(1)
			return errors.Timeoutf("response wait %s", timeout)
		}
		if err := sleep(ctx, t.opt.Clock, pollInterval); err != nil {
			return err
		}
	}
	return nil
}

// read accumulates response until peer closes or declared length is received.
// Bytes beyond ResponseLimit fail with ErrParse, or are dropped when discardOverflow.
func (t *httpTransport) read(ctx context.Context, discardOverflow bool) ([]byte, error) {
	r := helpers.NewStatReader(t.sock, &t.stat.BytesRecv, 0)
	buf := t.resp[:cap(t.resp)]
	var trash [64]byte
	n, dropped := 0, 0
	deadline := t.opt.Clock.Now().Add(t.opt.ReadTimeout)
	for {
		if err := ctx.Err(); err != nil {
			return nil, errors.Trace(err)
		}
		if t.sock.Available() == 0 {
			if !t.sock.Connected() {
				break
			}
			if !t.opt.Clock.Now().Before(deadline) {
				t.stat.Timeouts.Add(1)
				return nil, errors.Timeoutf("response read %s", t.opt.ReadTimeout)
			}
			if err := sleep(ctx, t.opt.Clock, pollInterval); err != nil {
				return nil, err
			}
			continue
		}

		var k int
		var err error
		switch {
		case n < len(buf):
			k, err = r.Read(buf[n:])
			n += k
		case discardOverflow:
			k, err = r.Read(trash[:])
			dropped += k
		default:
			return nil, errors.Annotatef(ErrParse, "response exceeds limit=%d", len(buf))
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Annotatef(ErrNetwork, "err=(%v)", err)
		}
		if dropped == 0 && responseComplete(buf[:n]) {
			break
		}
	}
	if dropped != 0 {
		t.opt.Log.Debugf("ubidots response dropped=%d over limit=%d", dropped, len(buf))
	}
	return buf[:n], nil
}
