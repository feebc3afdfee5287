package ubidots

// Public API to easy create Ubidots client stubs to test your code.

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"time"

	"github.com/juju/errors"
)

// FakeClock advances only when somebody waits on After.
type FakeClock struct {
	mu     sync.Mutex
	now    time.Time
	slept  time.Duration
	delays []time.Duration // waits of at least DelayRecordMin
}

const DelayRecordMin = 100 * time.Millisecond

func NewFakeClock(start time.Time) *FakeClock { return &FakeClock{now: start} }

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.slept += d
	if d >= DelayRecordMin {
		c.delays = append(c.delays, d)
	}
	now := c.now
	c.mu.Unlock()
	ch := make(chan time.Time, 1)
	ch <- now
	return ch
}

// Slept is total simulated wait.
func (c *FakeClock) Slept() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.slept
}

// Delays returns long waits, i.e. retry delays without poll ticks.
func (c *FakeClock) Delays() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.delays...)
}

// MockSocket plays scripted server side.
// Response becomes available after request is flushed and ResponseDelay
// passed on Clock (if set). After response is consumed peer closes unless KeepOpen.
type MockSocket struct {
	ConnectFails  int // first N Connect calls fail
	Response      []byte
	ResponseDelay time.Duration
	NoResponse    bool
	KeepOpen      bool
	ReadErr       error
	Clock         Clock

	Written     bytes.Buffer
	Host        string
	Port        int
	CallConnect int
	CallFlush   int
	CallStop    int
	CallRead    int
	CallWrite   int
	CallAvail   int

	connected bool
	pending   bool
	sent      bool
	readyAt   time.Time
	pos       int
}

var _ Socket = &MockSocket{}

// Calls counts every interaction with the socket.
func (m *MockSocket) Calls() int {
	return m.CallConnect + m.CallFlush + m.CallStop + m.CallRead + m.CallWrite + m.CallAvail
}

// Requests splits everything written so far by request line.
func (m *MockSocket) Requests() []string {
	s := m.Written.String()
	out := []string{}
	start := 0
	for i := 1; i < len(s); i++ {
		if strings.HasPrefix(s[i:], "GET /") || strings.HasPrefix(s[i:], "POST /") {
			out = append(out, s[start:i])
			start = i
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}

func (m *MockSocket) Connect(ctx context.Context, host string, port int) error {
	m.CallConnect++
	m.Host, m.Port = host, port
	if m.CallConnect <= m.ConnectFails {
		m.connected = false
		return errors.Errorf("mock connect refused attempt=%d", m.CallConnect)
	}
	m.connected = true
	m.pending, m.sent = false, false
	m.pos = 0
	return nil
}

func (m *MockSocket) Connected() bool {
	// empty Response means peer closes right after request
	if m.sent && len(m.Response) == 0 && !m.NoResponse && !m.KeepOpen {
		return false
	}
	return m.connected
}

func (m *MockSocket) Available() int {
	m.CallAvail++
	return m.avail()
}

func (m *MockSocket) avail() int {
	if !m.connected || !m.sent || m.NoResponse {
		return 0
	}
	if m.Clock != nil && m.Clock.Now().Before(m.readyAt) {
		return 0
	}
	return len(m.Response) - m.pos
}

func (m *MockSocket) Read(p []byte) (int, error) {
	m.CallRead++
	if m.ReadErr != nil {
		return 0, m.ReadErr
	}
	if m.avail() == 0 {
		return 0, nil
	}
	n := copy(p, m.Response[m.pos:])
	m.pos += n
	if m.pos == len(m.Response) && !m.KeepOpen {
		m.connected = false
	}
	return n, nil
}

func (m *MockSocket) Write(p []byte) (int, error) {
	m.CallWrite++
	if !m.connected {
		return 0, errors.New("mock write on closed socket")
	}
	m.pending = true
	return m.Written.Write(p)
}

func (m *MockSocket) Flush() error {
	m.CallFlush++
	if m.connected && m.pending && !m.sent {
		m.sent = true
		if m.Clock != nil {
			m.readyAt = m.Clock.Now().Add(m.ResponseDelay)
		}
	}
	return nil
}

func (m *MockSocket) Stop() error {
	m.CallStop++
	m.connected = false
	return nil
}
