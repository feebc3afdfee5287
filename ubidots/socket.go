package ubidots

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"time"

	"github.com/juju/errors"
)

const (
	defaultPollTimeout = time.Millisecond
	socketBufferSize   = 512
)

// Socket is byte stream client of the host platform.
// Modelled after embedded TCP client API: Available() never blocks long,
// Connected() stays true while unread bytes remain or peer has not closed.
type Socket interface {
	Connect(ctx context.Context, host string, port int) error
	Connected() bool
	Available() int
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Flush() error
	Stop() error
}

// NetSocket implements Socket over net.Conn.
type NetSocket struct {
	Dialer      net.Dialer
	PollTimeout time.Duration // Available() read wait, default 1ms

	conn net.Conn
	r    *bufio.Reader
	w    *bufio.Writer
	eof  bool
}

var _ Socket = &NetSocket{}

func (s *NetSocket) Connect(ctx context.Context, host string, port int) error {
	_ = s.Stop()
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	conn, err := s.Dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return errors.Annotatef(err, "dial addr=%s", addr)
	}
	s.conn = conn
	s.r = bufio.NewReaderSize(conn, socketBufferSize)
	s.w = bufio.NewWriterSize(conn, socketBufferSize)
	s.eof = false
	return nil
}

func (s *NetSocket) Connected() bool {
	if s.conn == nil {
		return false
	}
	return !s.eof || s.r.Buffered() > 0
}

func (s *NetSocket) Available() int {
	if s.conn == nil {
		return 0
	}
	if n := s.r.Buffered(); n > 0 || s.eof {
		return n
	}
	poll := s.PollTimeout
	if poll == 0 {
		poll = defaultPollTimeout
	}
	_ = s.conn.SetReadDeadline(time.Now().Add(poll))
	_, err := s.r.Peek(1)
	_ = s.conn.SetReadDeadline(time.Time{})
	if err != nil {
		if ne, ok := err.(net.Error); !ok || !ne.Timeout() {
			// io.EOF or broken connection, either way nothing more will come
			s.eof = true
		}
	}
	return s.r.Buffered()
}

func (s *NetSocket) Read(p []byte) (int, error) {
	if s.conn == nil {
		return 0, errors.New("socket not connected")
	}
	return s.r.Read(p)
}

func (s *NetSocket) Write(p []byte) (int, error) {
	if s.conn == nil {
		return 0, errors.New("socket not connected")
	}
	return s.w.Write(p)
}

func (s *NetSocket) Flush() error {
	if s.conn == nil {
		return nil
	}
	return s.w.Flush()
}

func (s *NetSocket) Stop() error {
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn, s.r, s.w = nil, nil, nil
	s.eof = true
	return err
}
