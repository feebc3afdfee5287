// Support sub-commands in ubidots application.
package subcmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/coreos/go-systemd/daemon"
	"github.com/juju/errors"
	"github.com/temoto/ubidots/config"
	"github.com/temoto/ubidots/log2"
	"github.com/temoto/ubidots/ubidots"
)

type Mod struct {
	Name  string
	Usage string
	Main  func(ctx context.Context, config *config.Config, args []string) error
}

func Parse(command string, modules []Mod) (*Mod, error) {
	if command == "" {
		return nil, fmt.Errorf("empty command")
	}

	var found *Mod
	for i := range modules {
		m := &modules[i]
		if m.Name == "" {
			panic(fmt.Sprintf("code error Name='' module=%#v", m))
		}
		if command == m.Name {
			found = m
			break
		}
	}
	if found == nil {
		return nil, fmt.Errorf("unknown command='%s'", command)
	}
	return found, nil
}

func SdNotify(s string) bool {
	ok, err := daemon.SdNotify(false, s)
	if err != nil {
		log.Fatal("sdnotify: ", errors.ErrorStack(err))
	}
	return ok
}

// NewClient builds client from config ubidots section, logging into ctx logger.
func NewClient(ctx context.Context, c *config.Config) (*ubidots.Client, error) {
	opt := ubidots.OptionsFromConfig(c.Ubidots, log2.ContextValueLogger(ctx))
	client, err := ubidots.NewClient(opt)
	return client, errors.Annotate(err, "ubidots client")
}

// SignalContext is canceled on first SIGINT or SIGTERM.
func SignalContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigch:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigch)
	}()
	return ctx, cancel
}
