// Package ubidots reports sensor readings to Ubidots and reads last values back.
//
// Readings are staged in small fixed buffer with Client.Add and uploaded in one
// request with Client.SendAll. Requests are plain HTTP/1.1 written by hand over
// Socket, which lets the same code run over platform TCP stacks and test mocks.
// Client is not safe for concurrent use.
package ubidots

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/ubidots/helpers"
	"github.com/temoto/ubidots/log2"
	ubidots_config "github.com/temoto/ubidots/ubidots/config"
)

const (
	DefaultServer         = "things.ubidots.com"
	DefaultPort           = 80
	DefaultDeviceLabel    = "ubidots-go"
	DefaultConnectRetries = 5
	DefaultRetryDelay     = 5 * time.Second
	DefaultGetTimeout     = 2 * time.Second
	DefaultPostTimeout    = 5 * time.Second
	DefaultReadTimeout    = 5 * time.Second
	DefaultResponseLimit  = 1024

	UserAgentName = "ubidots-go"
	Version       = "1.0.0"
)

// Transport delivers request to Ubidots.
type Transport interface {
	GetValue(ctx context.Context, device, variable string) (float64, error)
	Post(ctx context.Context, device string, body []byte) error
	Close() error
}

type Options struct {
	Token       string // required
	DeviceLabel string
	Server      string
	Port        int
	UserAgent   string
	MqttBroker  string

	Capacity       int
	ConnectRetries int // 0 = default, negative = single attempt
	RetryDelay     time.Duration
	GetTimeout     time.Duration
	PostTimeout    time.Duration
	ReadTimeout    time.Duration
	ResponseLimit  int
	// DiscardOnFailure drops readings of failed SendAll instead of keeping them staged.
	DiscardOnFailure bool
	Debug            bool

	Log    *log2.Log
	Clock  Clock
	Socket Socket // default NetSocket

	// NewTransport overrides HTTP over Socket, e.g. with NewMqttTransport.
	NewTransport func(*Options, *Stat) Transport
}

// OptionsFromConfig maps config file section to Options. Zero values mean defaults.
func OptionsFromConfig(c ubidots_config.Config, log *log2.Log) Options {
	opt := Options{
		Token:            c.Token,
		DeviceLabel:      c.DeviceLabel,
		Server:           c.Server,
		Port:             c.Port,
		MqttBroker:       c.MqttBroker,
		Capacity:         c.Capacity,
		ConnectRetries:   c.ConnectRetries,
		RetryDelay:       helpers.IntSecondDefault(c.RetryDelaySec, DefaultRetryDelay),
		GetTimeout:       helpers.IntMillisecondDefault(c.GetTimeoutMs, DefaultGetTimeout),
		PostTimeout:      helpers.IntMillisecondDefault(c.PostTimeoutMs, DefaultPostTimeout),
		ReadTimeout:      helpers.IntMillisecondDefault(c.ReadTimeoutMs, DefaultReadTimeout),
		ResponseLimit:    c.ResponseLimit,
		DiscardOnFailure: c.DiscardOnFailure,
		Debug:            c.LogDebug,
		Log:              log,
	}
	if c.Transport == ubidots_config.TransportMqtt {
		opt.NewTransport = NewMqttTransport
	}
	return opt
}

func (opt *Options) MqttClientID() string { return UserAgentName + "-" + opt.DeviceLabel }

func (opt *Options) setDefaults() {
	if opt.DeviceLabel == "" {
		opt.DeviceLabel = DefaultDeviceLabel
	}
	if opt.Server == "" {
		opt.Server = DefaultServer
	}
	if opt.Port == 0 {
		opt.Port = DefaultPort
	}
	if opt.UserAgent == "" {
		opt.UserAgent = UserAgentName + "/" + Version
	}
	if opt.MqttBroker == "" {
		opt.MqttBroker = DefaultMqttBroker
	}
	if opt.Capacity <= 0 {
		opt.Capacity = DefaultCapacity
	}
	switch {
	case opt.ConnectRetries == 0:
		opt.ConnectRetries = DefaultConnectRetries
	case opt.ConnectRetries < 0:
		opt.ConnectRetries = 0
	}
	if opt.RetryDelay == 0 {
		opt.RetryDelay = DefaultRetryDelay
	}
	if opt.GetTimeout == 0 {
		opt.GetTimeout = DefaultGetTimeout
	}
	if opt.PostTimeout == 0 {
		opt.PostTimeout = DefaultPostTimeout
	}
	if opt.ReadTimeout == 0 {
		opt.ReadTimeout = DefaultReadTimeout
	}
	if opt.ResponseLimit <= 0 {
		opt.ResponseLimit = DefaultResponseLimit
	}
	if opt.Clock == nil {
		opt.Clock = SystemClock()
	}
	if opt.Socket == nil {
		opt.Socket = &NetSocket{}
	}
}

type Client struct {
	opt       Options
	log       *log2.Log
	buf       *ReadingBuffer
	transport Transport
	stat      Stat
}

func NewClient(opt Options) (*Client, error) {
	if opt.Token == "" {
		return nil, errors.NotValidf("ubidots token empty")
	}
	if opt.Port < 0 || opt.Port > math.MaxUint16 {
		return nil, errors.NotValidf("ubidots port=%d", opt.Port)
	}
	opt.setDefaults()
	c := &Client{opt: opt}
	// own level, debug toggle must not affect caller logger
	c.log = opt.Log.Clone(log2.LInfo)
	c.opt.Log = c.log
	c.SetDebug(opt.Debug)
	c.buf = NewReadingBuffer(opt.Capacity, c.log)
	if opt.NewTransport != nil {
		c.transport = opt.NewTransport(&c.opt, &c.stat)
	} else {
		c.transport = newHttpTransport(&c.opt, &c.stat)
	}
	return c, nil
}

func (c *Client) Close() error { return c.transport.Close() }

func (c *Client) DeviceLabel() string         { return c.opt.DeviceLabel }
func (c *Client) SetDeviceLabel(label string) { c.opt.DeviceLabel = label }

func (c *Client) SetDebug(on bool) {
	c.opt.Debug = on
	if on {
		c.log.SetLevel(log2.LDebug)
	} else {
		c.log.SetLevel(log2.LInfo)
	}
}

func (c *Client) Pending() int { return c.buf.Len() }
func (c *Client) Stat() *Stat  { return &c.stat }

// Add stages reading for next SendAll. Never fails: non-finite value is skipped
// with warning, overflow replaces the last staged reading.
func (c *Client) Add(label string, value float64, opts ...ReadingOption) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		c.log.Infof("warning: ubidots skip label=%s value=%v not representable in JSON", label, value)
		c.stat.Dropped.Add(1)
		return
	}
	r := NewReading(label, value, opts...)
	if r.Context != nil && !json.Valid(r.Context) {
		c.log.Infof("warning: ubidots label=%s context is not valid JSON, server may reject request", label)
	}
	if c.buf.Add(r) {
		c.stat.Overflows.Add(1)
		c.stat.Dropped.Add(1)
	}
}

// GetValue returns last value of variable. Zero is legitimate value,
// failures are always reported by error.
func (c *Client) GetValue(ctx context.Context, device, variable string) (float64, error) {
	v, err := c.transport.GetValue(ctx, device, variable)
	if err != nil {
		return 0, errors.Annotatef(err, "ubidots get device=%s variable=%s", device, variable)
	}
	c.log.Debugf("ubidots get device=%s variable=%s value=%v", device, variable, v)
	return v, nil
}

// GetOwnValue is GetValue for this client's device label.
func (c *Client) GetOwnValue(ctx context.Context, variable string) (float64, error) {
	return c.GetValue(ctx, c.opt.DeviceLabel, variable)
}

// SendAll uploads staged readings in one request.
// Empty buffer is ErrNoData without network activity.
// On network failure or timeout readings stay staged unless DiscardOnFailure.
// Rejected request (4xx except 408, 429) drops readings, resending would fail again.
func (c *Client) SendAll(ctx context.Context) error {
	if c.buf.IsEmpty() {
		return errors.Annotatef(ErrNoData, "ubidots send")
	}
	rs := c.buf.Drain()
	body := BuildBody(rs)
	err := c.transport.Post(ctx, c.opt.DeviceLabel, body)
	if err == nil {
		c.stat.Sent.Add(int64(len(rs)))
		c.log.Debugf("ubidots sent device=%s readings=%d", c.opt.DeviceLabel, len(rs))
		return nil
	}
	if !c.opt.DiscardOnFailure && (isDeliveryFailure(err) || errors.Cause(err) == context.Canceled || errors.Cause(err) == context.DeadlineExceeded) {
		if dropped := c.buf.Requeue(rs); dropped != 0 {
			c.stat.Dropped.Add(int64(dropped))
		}
	} else {
		c.stat.Dropped.Add(int64(len(rs)))
	}
	return errors.Annotatef(err, "ubidots send device=%s readings=%d", c.opt.DeviceLabel, len(rs))
}
