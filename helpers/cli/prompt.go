// Package cli runs interactive line loops for debug consoles.
package cli

import (
	"bufio"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/c-bata/go-prompt"
	"github.com/juju/errors"
	"github.com/mattn/go-isatty"
)

// IsInteractive reports whether stdin is a terminal.
func IsInteractive() bool {
	return isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
}

// MainLoop reads commands from terminal with completion, or line by line from piped stdin.
func MainLoop(tag string, exec func(line string), complete func(d prompt.Document) []prompt.Suggest) error {
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh,
		syscall.SIGHUP,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT)
	go func() {
		for range signalCh {
			os.Exit(1)
		}
	}()

	if IsInteractive() {
		prompt.New(exec, complete,
			prompt.OptionTitle(tag),
			prompt.OptionPrefix(tag+"> "),
		).Run()
		return nil
	}
	return ReadLines(os.Stdin, exec)
}

// ReadLines calls exec for every trimmed non-empty line of r.
func ReadLines(r io.Reader, exec func(line string)) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		exec(line)
	}
	return errors.Annotate(scanner.Err(), "read input")
}
