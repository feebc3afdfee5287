package ubidots

import (
	"context"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/juju/errors"
)

const (
	DefaultMqttBroker = "tcp://things.ubidots.com:1883"
	mqttTopicPrefix   = "/v1.6/devices/"
	mqttQos           = 1
	mqttQuiesceMs     = 250
)

// mqttTransport uses Ubidots MQTT API: token as username, same JSON payload.
type mqttTransport struct {
	opt  *Options
	stat *Stat
	m    mqtt.Client
}

func NewMqttTransport(opt *Options, stat *Stat) Transport {
	if opt.Log != nil {
		mqtt.ERROR = opt.Log
		mqtt.CRITICAL = opt.Log
		mqtt.WARN = opt.Log
	}
	mopt := mqtt.NewClientOptions().
		AddBroker(opt.MqttBroker).
		SetClientID(opt.MqttClientID()).
		SetUsername(opt.Token).
		SetPassword("").
		SetCleanSession(true).
		SetAutoReconnect(false).
		SetConnectTimeout(opt.PostTimeout)
	return newMqttTransport(mqtt.NewClient(mopt), opt, stat)
}

func newMqttTransport(m mqtt.Client, opt *Options, stat *Stat) *mqttTransport {
	return &mqttTransport{opt: opt, stat: stat, m: m}
}

func (t *mqttTransport) connect(ctx context.Context) error {
	if t.m.IsConnected() {
		return nil
	}
	return connectRetry(ctx, t.opt, t.stat, t.opt.MqttBroker, func() error {
		token := t.m.Connect()
		if !token.WaitTimeout(t.opt.PostTimeout) {
			return errors.Timeoutf("mqtt connect")
		}
		return token.Error()
	})
}

func (t *mqttTransport) wait(token mqtt.Token, what string) error {
	if !token.WaitTimeout(t.opt.PostTimeout) {
		t.stat.Timeouts.Add(1)
		return errors.Timeoutf("mqtt %s", what)
	}
	if err := token.Error(); err != nil {
		return errors.Annotatef(ErrNetwork, "mqtt %s err=(%v)", what, err)
	}
	return nil
}

func (t *mqttTransport) Post(ctx context.Context, device string, body []byte) error {
	t.stat.Requests.Add(1)
	if err := t.connect(ctx); err != nil {
		return err
	}
	topic := mqttTopicPrefix + device
	t.opt.Log.Debugf("ubidots mqtt publish topic=%s body=%d", topic, len(body))
	if err := t.wait(t.m.Publish(topic, mqttQos, false, body), "publish "+topic); err != nil {
		return err
	}
	t.stat.BytesSent.Add(int64(len(body)))
	return nil
}

// GetValue subscribes to last value topic and waits for retained message.
func (t *mqttTransport) GetValue(ctx context.Context, device, variable string) (float64, error) {
	t.stat.Requests.Add(1)
	if err := t.connect(ctx); err != nil {
		return 0, err
	}
	topic := mqttTopicPrefix + device + "/" + variable + "/lv"
	ch := make(chan []byte, 1)
	handler := func(_ mqtt.Client, msg mqtt.Message) {
		select {
		case ch <- msg.Payload():
		default:
		}
	}
	if err := t.wait(t.m.Subscribe(topic, mqttQos, handler), "subscribe "+topic); err != nil {
		return 0, err
	}
	defer func() {
		if err := t.wait(t.m.Unsubscribe(topic), "unsubscribe "+topic); err != nil {
			t.opt.Log.Debugf("ubidots %v", err)
		}
	}()

	deadline := t.opt.Clock.Now().Add(t.opt.GetTimeout)
	for {
		select {
		case payload := <-ch:
			t.stat.BytesRecv.Add(int64(len(payload)))
			return parseNumber(payload)
		default:
		}
		if !t.opt.Clock.Now().Before(deadline) {
			t.stat.Timeouts.Add(1)
			return 0, errors.Timeoutf("mqtt value topic=%s wait %s", topic, t.opt.GetTimeout)
		}
		if err := sleep(ctx, t.opt.Clock, pollInterval); err != nil {
			return 0, err
		}
	}
}

func (t *mqttTransport) Close() error {
	if t.m.IsConnected() {
		t.m.Disconnect(mqttQuiesceMs)
	}
	return nil
}
