// Command originserver runs the configurable multi-tenant HTTP/1.1
// origin server described by a config file passed as its positional
// argument (default conf.conf).
//
// Grounded on docker-compose/cmd/main.go's urfave/cli + logrus wiring
// shape: a single cli.App with a positional argument and a handful of
// top-level flags, logrus configured once in main and threaded down as
// a *logrus.Entry.
package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"github.com/yourusername/originserver/internal/config"
	"github.com/yourusername/originserver/internal/httpserve/listen"
)

func main() {
	app := cli.NewApp()
	app.Name = "originserver"
	app.Usage = "a configurable HTTP/1.1 origin server"
	app.ArgsUsage = "[config-path]"
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "t, test",
			Usage: "parse the configuration file and exit",
		},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	if c.NArg() > 1 {
		return fmt.Errorf("too many arguments: expected at most one config path")
	}

	path := "conf.conf"
	if c.NArg() == 1 {
		path = c.Args().Get(0)
	}

	listeners, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}

	if c.Bool("test") {
		fmt.Printf("%s: configuration file ok\n", path)
		return nil
	}

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{ForceColors: true, FullTimestamp: true})
	entry := logrus.NewEntry(log)

	netListeners := make([]net.Listener, len(listeners))
	for i, ln := range listeners {
		nl, err := listen.Open(ln)
		if err != nil {
			for _, opened := range netListeners[:i] {
				opened.Close()
			}
			return fmt.Errorf("binding port %d: %w", ln.Port, err)
		}
		netListeners[i] = nl
	}

	var stopping atomic.Bool
	stop := func() bool { return stopping.Load() }

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		entry.Info("shutdown requested")
		stopping.Store(true)
	}()

	var wg sync.WaitGroup
	for i, ln := range listeners {
		i, ln := i, ln
		wg.Add(1)
		go func() {
			defer wg.Done()
			listen.Serve(netListeners[i], ln, stop, entry)
		}()
	}
	wg.Wait()

	return nil
}
