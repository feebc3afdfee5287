package ubidots

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/256dpi/gomqtt/packet"
	"github.com/256dpi/gomqtt/transport"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/alive/v2"
	"github.com/temoto/ubidots/log2"
)

type fakePublish struct {
	topic   string
	qos     byte
	retain  bool
	payload []byte
}

// fakeMqtt implements only methods used by mqttTransport, the rest panic on nil embedded interface.
type fakeMqtt struct {
	mqtt.Client
	connectFails int
	publishErr   error
	timeout      bool
	retained     map[string][]byte

	callConnect    int
	callDisconnect int
	connected      bool
	published      []fakePublish
	subscribed     []string
	unsubscribed   []string
}

type fakeToken struct {
	mqtt.Token
	err     error
	timeout bool
}

func (t fakeToken) WaitTimeout(time.Duration) bool { return !t.timeout }
func (t fakeToken) Error() error                   { return t.err }

type fakeMessage struct {
	mqtt.Message
	topic   string
	payload []byte
}

func (m fakeMessage) Topic() string   { return m.topic }
func (m fakeMessage) Payload() []byte { return m.payload }

func (f *fakeMqtt) IsConnected() bool { return f.connected }
func (f *fakeMqtt) Connect() mqtt.Token {
	f.callConnect++
	if f.callConnect <= f.connectFails {
		return fakeToken{err: fmt.Errorf("connection refused")}
	}
	f.connected = true
	return fakeToken{}
}
func (f *fakeMqtt) Disconnect(uint) {
	f.callDisconnect++
	f.connected = false
}
func (f *fakeMqtt) Publish(topic string, qos byte, retain bool, payload interface{}) mqtt.Token {
	if f.publishErr == nil && !f.timeout {
		f.published = append(f.published, fakePublish{topic, qos, retain, payload.([]byte)})
	}
	return fakeToken{err: f.publishErr, timeout: f.timeout}
}
func (f *fakeMqtt) Subscribe(topic string, qos byte, handler mqtt.MessageHandler) mqtt.Token {
	f.subscribed = append(f.subscribed, topic)
	if p, ok := f.retained[topic]; ok {
		handler(f, fakeMessage{topic: topic, payload: p})
	}
	return fakeToken{}
}
func (f *fakeMqtt) Unsubscribe(topics ...string) mqtt.Token {
	f.unsubscribed = append(f.unsubscribed, topics...)
	return fakeToken{}
}

func newMqttTestClient(t testing.TB, f *fakeMqtt, modify func(*Options)) (*Client, *FakeClock) {
	clock := NewFakeClock(time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC))
	opt := Options{
		Token:       "BBFF-test",
		DeviceLabel: "boiler",
		Log:         log2.NewTest(t, log2.LDebug),
		Clock:       clock,
		Socket:      &MockSocket{},
		NewTransport: func(opt *Options, stat *Stat) Transport {
			return newMqttTransport(f, opt, stat)
		},
	}
	if modify != nil {
		modify(&opt)
	}
	c, err := NewClient(opt)
	require.NoError(t, err)
	return c, clock
}

func TestMqttPost(t *testing.T) {
	t.Parallel()

	f := &fakeMqtt{}
	c, _ := newMqttTestClient(t, f, nil)
	c.Add("temperature", 24.5)
	c.Add("pressure", 1.2, WithContext([]byte(`{"unit":"bar"}`)))
	require.NoError(t, c.SendAll(context.Background()))

	require.Equal(t, 1, len(f.published))
	p := f.published[0]
	assert.Equal(t, "/v1.6/devices/boiler", p.topic)
	assert.Equal(t, byte(1), p.qos)
	assert.False(t, p.retain)
	assert.Equal(t, `{"temperature":24.500, "pressure":{"value":1.200, "context":{"unit":"bar"}}}`, string(p.payload))
	assert.Equal(t, 1, f.callConnect)
	assert.Equal(t, 0, c.Pending())

	// connection is reused
	c.Add("temperature", 25)
	require.NoError(t, c.SendAll(context.Background()))
	assert.Equal(t, 1, f.callConnect)
	assert.Equal(t, 2, len(f.published))

	require.NoError(t, c.Close())
	assert.Equal(t, 1, f.callDisconnect)
}

func TestMqttPostFailures(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		fake    fakeMqtt
		expect  func(error) bool
		connect int
		delays  int
	}{
		{"connect-retry", fakeMqtt{connectFails: 3}, nil, 4, 3},
		{"connect-exhausted", fakeMqtt{connectFails: 6}, IsNetwork, 6, 5},
		{"publish-error", fakeMqtt{publishErr: fmt.Errorf("not authorized")}, IsNetwork, 1, 0},
		{"publish-timeout", fakeMqtt{timeout: true}, errors.IsTimeout, 1, 0},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			f := c.fake
			client, clock := newMqttTestClient(t, &f, nil)
			client.Add("a", 1)
			err := client.SendAll(context.Background())
			if c.expect == nil {
				require.NoError(t, err)
				assert.Equal(t, 0, client.Pending())
			} else {
				assert.True(t, c.expect(err), "err=%v", err)
				assert.Equal(t, 1, client.Pending())
			}
			assert.Equal(t, c.connect, f.callConnect)
			assert.Equal(t, c.delays, len(clock.Delays()))
		})
	}
}

func TestMqttGetValue(t *testing.T) {
	t.Parallel()

	const topic = "/v1.6/devices/tank/level/lv"
	f := &fakeMqtt{retained: map[string][]byte{topic: []byte("17.5")}}
	c, clock := newMqttTestClient(t, f, nil)
	v, err := c.GetValue(context.Background(), "tank", "level")
	require.NoError(t, err)
	assert.Equal(t, 17.5, v)
	assert.Equal(t, []string{topic}, f.subscribed)
	assert.Equal(t, []string{topic}, f.unsubscribed)
	assert.Equal(t, time.Duration(0), clock.Slept())
	assert.Equal(t, int64(4), c.Stat().BytesRecv.Value())
}

func TestMqttGetValueErrors(t *testing.T) {
	t.Parallel()

	const topic = "/v1.6/devices/tank/level/lv"
	f := &fakeMqtt{}
	c, clock := newMqttTestClient(t, f, nil)
	_, err := c.GetValue(context.Background(), "tank", "level")
	assert.True(t, errors.IsTimeout(err), "err=%v", err)
	assert.Equal(t, DefaultGetTimeout, clock.Slept())
	assert.Equal(t, []string{topic}, f.unsubscribed)

	f.retained = map[string][]byte{topic: []byte(`{"value":1}`)}
	_, err = c.GetValue(context.Background(), "tank", "level")
	assert.True(t, IsParse(err), "err=%v", err)
}

// Scripted broker on gomqtt packets, real paho client.
func TestMqttBroker(t *testing.T) {
	t.Parallel()
	const timeout = 5 * time.Second

	ln, err := net.Listen("tcp", "127.0.0.1:")
	require.NoError(t, err)
	defer ln.Close()
	const lvTopic = "/v1.6/devices/boiler/temperature/lv"
	pubCh := make(chan *packet.Publish, 4)
	connCh := make(chan *packet.Connect, 1)
	a := alive.NewAlive()
	a.Add(1)
	go func() {
		defer a.Done()
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		_ = conn.SetDeadline(time.Now().Add(timeout))
		b := transport.NewNetConn(conn)
		defer b.Close()
		for {
			pkt, err := b.Receive()
			if err != nil {
				return
			}
			switch p := pkt.(type) {
			case *packet.Connect:
				connCh <- p
				connack := packet.NewConnack()
				connack.ReturnCode = packet.ConnectionAccepted
				err = b.Send(connack, false)
			case *packet.Publish:
				pubCh <- p
				puback := packet.NewPuback()
				puback.ID = p.ID
				err = b.Send(puback, false)
			case *packet.Subscribe:
				suback := packet.NewSuback()
				suback.ID = p.ID
				suback.ReturnCodes = []packet.QOS{packet.QOSAtLeastOnce}
				if err = b.Send(suback, false); err != nil {
					return
				}
				lv := packet.NewPublish()
				lv.ID = 1
				lv.Message = packet.Message{Topic: lvTopic, Payload: []byte("21.25"), QOS: packet.QOSAtLeastOnce, Retain: true}
				err = b.Send(lv, false)
			case *packet.Unsubscribe:
				unsuback := packet.NewUnsuback()
				unsuback.ID = p.ID
				err = b.Send(unsuback, false)
			case *packet.Disconnect:
				return
			}
			if err != nil {
				return
			}
		}
	}()

	c, err := NewClient(Options{
		Token:        "BBFF-test",
		DeviceLabel:  "boiler",
		MqttBroker:   "tcp://" + ln.Addr().String(),
		RetryDelay:   10 * time.Millisecond,
		PostTimeout:  timeout,
		Log:          log2.NewStderr(log2.LDebug),
		NewTransport: NewMqttTransport,
	})
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	c.Add("temperature", 21.25)
	require.NoError(t, c.SendAll(ctx))
	conpkt := <-connCh
	assert.Equal(t, "BBFF-test", conpkt.Username)
	assert.Equal(t, "ubidots-go-boiler", conpkt.ClientID)
	pub := <-pubCh
	assert.Equal(t, "/v1.6/devices/boiler", pub.Message.Topic)
	assert.Equal(t, `{"temperature":21.250}`, string(pub.Message.Payload))

	v, err := c.GetValue(ctx, "boiler", "temperature")
	require.NoError(t, err)
	assert.Equal(t, 21.25, v)

	require.NoError(t, c.Close())
	a.Stop()
	a.Wait()
}
