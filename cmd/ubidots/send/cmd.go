package send

import (
	"context"
	"strconv"
	"strings"

	"github.com/juju/errors"
	"github.com/temoto/ubidots/cmd/ubidots/subcmd"
	"github.com/temoto/ubidots/config"
	"github.com/temoto/ubidots/log2"
	"github.com/temoto/ubidots/ubidots"
)

var Mod = subcmd.Mod{
	Name:  "send",
	Usage: "send label=value[@unix_ms] ...  upload readings in one request",
	Main:  Main,
}

func Main(ctx context.Context, c *config.Config, args []string) error {
	if len(args) == 0 {
		return errors.NotValidf("send without readings")
	}
	rs := make([]ubidots.Reading, 0, len(args))
	for _, arg := range args {
		r, err := ParseReading(arg)
		if err != nil {
			return err
		}
		rs = append(rs, r)
	}
	// one request for all arguments
	if c.Ubidots.Capacity < len(rs) {
		c.Ubidots.Capacity = len(rs)
	}
	client, err := subcmd.NewClient(ctx, c)
	if err != nil {
		return err
	}
	defer client.Close()
	for _, r := range rs {
		AddReading(client, r)
	}
	if err = client.SendAll(ctx); err != nil {
		return err
	}
	log2.ContextValueLogger(ctx).Infof("sent readings=%d", len(rs))
	return nil
}

type adder interface {
	Add(label string, value float64, opts ...ubidots.ReadingOption)
}

func AddReading(a adder, r ubidots.Reading) {
	opts := make([]ubidots.ReadingOption, 0, 2)
	if r.HasTimestamp {
		opts = append(opts, ubidots.WithTimestamp(r.Timestamp))
	}
	if r.Context != nil {
		opts = append(opts, ubidots.WithContext(r.Context))
	}
	a.Add(r.Label, r.Value, opts...)
}

// ParseReading parses label=value or label=value@unix_ms.
func ParseReading(s string) (ubidots.Reading, error) {
	label, rest, ok := cut(s, "=")
	if !ok || label == "" {
		return ubidots.Reading{}, errors.NotValidf("reading=%q expected label=value", s)
	}
	valueStr, tsStr, hasTs := cut(rest, "@")
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return ubidots.Reading{}, errors.NotValidf("reading=%q value", s)
	}
	opts := []ubidots.ReadingOption{}
	if hasTs {
		ts, err := strconv.ParseInt(tsStr, 10, 64)
		if err != nil {
			return ubidots.Reading{}, errors.NotValidf("reading=%q timestamp", s)
		}
		opts = append(opts, ubidots.WithTimestamp(ts))
	}
	return ubidots.NewReading(label, value, opts...), nil
}

func cut(s, sep string) (before, after string, found bool) {
	if i := strings.Index(s, sep); i >= 0 {
		return s[:i], s[i+len(sep):], true
	}
	return s, "", false
}
