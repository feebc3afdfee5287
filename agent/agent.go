// Package agent samples configured sensors and uploads readings periodically.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"io/ioutil"
	"strconv"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/alive/v2"
	"github.com/temoto/ubidots/config"
	"github.com/temoto/ubidots/helpers"
	"github.com/temoto/ubidots/log2"
	"github.com/temoto/ubidots/ubidots"
)

// Reporter is satisfied by *ubidots.Client.
type Reporter interface {
	Add(label string, value float64, opts ...ubidots.ReadingOption)
	SendAll(ctx context.Context) error
}

type Agent struct {
	Log      *log2.Log
	Reporter Reporter
	Sensors  []config.SensorConfig
	Interval time.Duration
	Clock    ubidots.Clock
	// ReadFile is ioutil.ReadFile unless overridden
	ReadFile func(path string) ([]byte, error)
	// OnTick observes every sample+upload cycle result, nil on success.
	OnTick func(error)
}

func New(log *log2.Log, r Reporter, c *config.Config) *Agent {
	return &Agent{
		Log:      log,
		Reporter: r,
		Sensors:  c.Agent.Sensors,
		Interval: time.Duration(c.IntervalSec()) * time.Second,
	}
}

// Sample stages one reading per sensor. Failed sensors are skipped and reported together.
func (a *Agent) Sample(now time.Time) (int, error) {
	read := a.ReadFile
	if read == nil {
		read = ioutil.ReadFile
	}
	errs := make([]error, 0, len(a.Sensors))
	n := 0
	for _, s := range a.Sensors {
		b, err := read(s.Path)
		if err != nil {
			errs = append(errs, errors.Annotatef(err, "sensor=%s", s.Label))
			continue
		}
		raw, err := ParseSensorValue(b)
		if err != nil {
			errs = append(errs, errors.Annotatef(err, "sensor=%s path=%s", s.Label, s.Path))
			continue
		}
		scale := s.Scale
		if scale == 0 {
			scale = 1
		}
		opts := []ubidots.ReadingOption{ubidots.WithTime(now)}
		if s.Context != "" {
			opts = append(opts, ubidots.WithContext(json.RawMessage(s.Context)))
		}
		a.Reporter.Add(s.Label, raw*scale+s.Offset, opts...)
		n++
	}
	return n, helpers.FoldErrors(errs)
}

// Tick samples sensors and uploads whatever was staged, including readings
// kept from earlier failed uploads.
func (a *Agent) Tick(ctx context.Context) error {
	n, sampleErr := a.Sample(a.clock().Now())
	if sampleErr != nil {
		a.Log.Error(sampleErr)
	}
	err := a.Reporter.SendAll(ctx)
	if ubidots.IsNoData(err) {
		err = nil
	}
	if err != nil {
		return errors.Annotatef(err, "agent tick sampled=%d", n)
	}
	a.Log.Debugf("agent tick sampled=%d", n)
	return sampleErr
}

// Run ticks immediately and then every Interval until al is stopped.
// Done ctx stops al. Caller must al.Add(1) before Run.
func (a *Agent) Run(ctx context.Context, al *alive.Alive) {
	defer al.Done()
	for {
		err := a.Tick(ctx)
		if err != nil {
			a.Log.Error(errors.ErrorStack(err))
		}
		if a.OnTick != nil {
			a.OnTick(err)
		}
		if ctx.Err() != nil {
			al.Stop()
		}
		if !al.IsRunning() {
			return
		}
		select {
		case <-al.StopChan():
			return
		case <-ctx.Done():
			al.Stop()
			return
		case <-a.clock().After(a.Interval):
		}
	}
}

func (a *Agent) clock() ubidots.Clock {
	if a.Clock == nil {
		return ubidots.SystemClock()
	}
	return a.Clock
}

// ParseSensorValue reads first number of sysfs/procfs style file, e.g. "48312\n" or "0.52 0.58 0.59 1/389 12345\n".
func ParseSensorValue(b []byte) (float64, error) {
	fields := bytes.Fields(b)
	if len(fields) == 0 {
		return 0, errors.NotValidf("sensor value empty")
	}
	v, err := strconv.ParseFloat(string(fields[0]), 64)
	if err != nil {
		return 0, errors.NotValidf("sensor value=%q", fields[0])
	}
	return v, nil
}
