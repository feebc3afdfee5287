package agent

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/daemon"
	"github.com/juju/errors"
	"github.com/temoto/alive/v2"
	ubidots_agent "github.com/temoto/ubidots/agent"
	"github.com/temoto/ubidots/cmd/ubidots/subcmd"
	"github.com/temoto/ubidots/config"
	"github.com/temoto/ubidots/log2"
)

var Mod = subcmd.Mod{
	Name:  "agent",
	Usage: "agent  sample configured sensors and upload every interval_sec",
	Main:  Main,
}

// Main runs until ctx is done, main cancels it on SIGINT/SIGTERM.
func Main(ctx context.Context, c *config.Config, args []string) error {
	log := log2.ContextValueLogger(ctx)
	if len(c.Agent.Sensors) == 0 {
		return errors.NotValidf("agent without sensors")
	}
	client, err := subcmd.NewClient(ctx, c)
	if err != nil {
		return err
	}
	defer client.Close()

	al := alive.NewAlive()
	ag := ubidots_agent.New(log, client, c)

	if wd, _ := daemon.SdWatchdogEnabled(false); wd > 0 {
		al.Add(1)
		go watchdog(al, wd/2)
	}
	al.Add(1)
	go ag.Run(ctx, al)
	subcmd.SdNotify(daemon.SdNotifyReady)
	log.Infof("agent running sensors=%d interval=%s", len(ag.Sensors), ag.Interval)

	<-al.StopChan()
	subcmd.SdNotify(daemon.SdNotifyStopping)
	al.Wait()
	log.Infof("agent stopped stat=%s", client.Stat())
	return nil
}

func watchdog(al *alive.Alive, interval time.Duration) {
	defer al.Done()
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-al.StopChan():
			return
		case <-t.C:
			subcmd.SdNotify(daemon.SdNotifyWatchdog)
		}
	}
}
