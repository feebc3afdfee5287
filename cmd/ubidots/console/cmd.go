package console

import (
	"context"
	"strings"

	"github.com/c-bata/go-prompt"
	"github.com/juju/errors"
	"github.com/temoto/ubidots/cmd/ubidots/send"
	"github.com/temoto/ubidots/cmd/ubidots/subcmd"
	"github.com/temoto/ubidots/config"
	"github.com/temoto/ubidots/helpers/cli"
	"github.com/temoto/ubidots/log2"
	"github.com/temoto/ubidots/ubidots"
)

const modName = "console"

const usage = `syntax: one command per line
- get [device] variable   print last value
- add label=value[@ms]    stage reading
- send                    upload staged readings
- pending                 number of staged readings
- device label            change device label
- debug on|off            exchange logging
- stat                    counters
`

var Mod = subcmd.Mod{
	Name:  modName,
	Usage: "console  interactive get/add/send",
	Main:  Main,
}

func Main(ctx context.Context, c *config.Config, args []string) error {
	client, err := subcmd.NewClient(ctx, c)
	if err != nil {
		return err
	}
	defer client.Close()
	return cli.MainLoop("ubidots", NewExecutor(ctx, client), newCompleter())
}

func newCompleter() func(d prompt.Document) []prompt.Suggest {
	suggests := []prompt.Suggest{
		{Text: "get", Description: "get [device] variable"},
		{Text: "add", Description: "add label=value[@ms]"},
		{Text: "send", Description: "upload staged readings"},
		{Text: "pending", Description: "number of staged readings"},
		{Text: "device", Description: "device label"},
		{Text: "debug", Description: "debug on|off"},
		{Text: "stat", Description: "counters"},
		{Text: "help"},
	}
	return func(d prompt.Document) []prompt.Suggest {
		return prompt.FilterHasPrefix(suggests, d.GetWordBeforeCursor(), true)
	}
}

// NewExecutor returns line handler, output goes to ctx logger.
func NewExecutor(ctx context.Context, client *ubidots.Client) func(string) {
	log := log2.ContextValueLogger(ctx)
	return func(line string) {
		if err := Exec(ctx, client, line); err != nil {
			log.Error(errors.ErrorStack(err))
		}
	}
}

func Exec(ctx context.Context, client *ubidots.Client, line string) error {
	log := log2.ContextValueLogger(ctx)
	words := strings.Fields(line)
	if len(words) == 0 {
		return nil
	}
	args := words[1:]
	switch words[0] {
	case "get":
		var v float64
		var err error
		switch len(args) {
		case 1:
			v, err = client.GetOwnValue(ctx, args[0])
		case 2:
			v, err = client.GetValue(ctx, args[0], args[1])
		default:
			return errors.NotValidf("get arguments=%q", args)
		}
		if err != nil {
			return err
		}
		log.Infof("%v", v)
	case "add":
		for _, arg := range args {
			r, err := send.ParseReading(arg)
			if err != nil {
				return err
			}
			send.AddReading(client, r)
		}
		log.Infof("pending=%d", client.Pending())
	case "send":
		if err := client.SendAll(ctx); err != nil {
			return err
		}
		log.Infof("sent")
	case "pending":
		log.Infof("pending=%d", client.Pending())
	case "device":
		if len(args) == 1 {
			client.SetDeviceLabel(args[0])
		}
		log.Infof("device=%s", client.DeviceLabel())
	case "debug":
		if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
			return errors.NotValidf("debug arguments=%q", args)
		}
		client.SetDebug(args[0] == "on")
	case "stat":
		log.Infof("%s", client.Stat())
	case "help", "?":
		log.Infof(usage)
	default:
		return errors.NotValidf("command=%s", words[0])
	}
	return nil
}
