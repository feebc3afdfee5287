package get

import (
	"context"
	"fmt"

	"github.com/juju/errors"
	"github.com/temoto/ubidots/cmd/ubidots/subcmd"
	"github.com/temoto/ubidots/config"
)

var Mod = subcmd.Mod{
	Name:  "get",
	Usage: "get [device] variable  print last value",
	Main:  Main,
}

func Main(ctx context.Context, c *config.Config, args []string) error {
	client, err := subcmd.NewClient(ctx, c)
	if err != nil {
		return err
	}
	defer client.Close()

	var v float64
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
	fmt.Println(v)
	return nil
}
