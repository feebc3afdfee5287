package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/juju/errors"
	"github.com/temoto/ubidots/cmd/ubidots/agent"
	"github.com/temoto/ubidots/cmd/ubidots/console"
	"github.com/temoto/ubidots/cmd/ubidots/get"
	"github.com/temoto/ubidots/cmd/ubidots/send"
	"github.com/temoto/ubidots/cmd/ubidots/subcmd"
	"github.com/temoto/ubidots/config"
	"github.com/temoto/ubidots/helpers/cli"
	"github.com/temoto/ubidots/log2"
)

var modules = []subcmd.Mod{
	get.Mod,
	send.Mod,
	agent.Mod,
	console.Mod,
}

var log = log2.NewStderr(log2.LInfo)

func main() {
	cmdline := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	flagConfig := cmdline.String("config", "ubidots.hcl", "")
	flagDebug := cmdline.Bool("debug", false, "exchange logging, overrides log_debug")
	flagDevice := cmdline.String("device", "", "device label, overrides device_label")
	cmdline.Usage = func() {
		fmt.Fprintf(cmdline.Output(), "Usage: %s [flags] command [args]\n\nCommands:\n", os.Args[0])
		for _, m := range modules {
			fmt.Fprintf(cmdline.Output(), "  %s\n", m.Usage)
		}
		fmt.Fprintf(cmdline.Output(), "\nFlags:\n")
		cmdline.PrintDefaults()
	}
	_ = cmdline.Parse(os.Args[1:])

	if subcmd.SdNotify("start") {
		// under systemd, journal adds timestamps
		log.SetFlags(log2.LServiceFlags)
	} else if cli.IsInteractive() {
		log.SetFlags(log2.LInteractiveFlags)
	}

	mod, err := subcmd.Parse(cmdline.Arg(0), modules)
	if err != nil {
		cmdline.Usage()
		log.Fatal(err)
	}

	c := config.MustReadConfig(log, config.NewOsFullReader(), *flagConfig)
	if *flagDebug {
		c.Ubidots.LogDebug = true
	}
	if *flagDevice != "" {
		c.Ubidots.DeviceLabel = *flagDevice
	}
	if c.Ubidots.LogDebug {
		log.SetLevel(log2.LDebug)
	}
	log.Debugf("config device=%s transport=%s sensors=%d", c.Ubidots.DeviceLabel, c.Ubidots.Transport, len(c.Agent.Sensors))

	ctx := log2.ContextWithLog(context.Background(), log)
	ctx, cancel := subcmd.SignalContext(ctx)
	err = mod.Main(ctx, c, cmdline.Args()[1:])
	cancel()
	if err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
}
