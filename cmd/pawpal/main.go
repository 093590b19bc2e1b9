package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"pawpal/internal/app"
	"pawpal/internal/config"
	"pawpal/internal/services/planning"
)

const usage = `usage: pawpal [-config path] <command> [args]

commands:
  serve                               run the bot and the daily push
  plan <owner> [today|tomorrow|date]  build and store a plan
  complete <owner> <task_id> [date]   mark a task completed
  tasks <owner> [pet] [status] [range] list tasks
  import <owner-file>                 create or replace an owner from JSON/YAML
`

func main() {
	var (
		cfgPath string
		envPath string
	)
	flag.StringVar(&cfgPath, "config", "./pawpal.json", "path to config (json or yaml)")
	flag.StringVar(&envPath, "env", ".env", "dotenv file with secrets")
	flag.Usage = func() { fmt.Fprint(flag.CommandLine.Output(), usage) }
	flag.Parse()

	if err := config.LoadDotEnv(envPath); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}
	var err error
	if args[0] == "serve" {
		err = serve(cfgPath)
	} else {
		err = oneShot(cfgPath, args, os.Stdout)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func serve(cfgPath string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)

	a, err := app.New(cfgPath, app.Options{Serve: true})
	if err != nil {
		return err
	}
	if err := a.Start(ctx); err != nil {
		_ = a.Stop(context.Background(), app.StopFatalError)
		return err
	}
	// No-op outside systemd.
	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)

	var reason app.StopReason
	select {
	case s := <-sig:
		reason = app.StopSIGINT
		if s == syscall.SIGTERM {
			reason = app.StopSIGTERM
		}
	case <-a.Done():
		reason = app.StopFatalError
	}
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	_ = a.Stop(stopCtx, reason)
	if reason == app.StopFatalError {
		return a.Err()
	}
	return nil
}

var errUsage = errors.New("bad usage")

func oneShot(cfgPath string, args []string, out io.Writer) error {
	a, err := app.New(cfgPath, app.Options{LogOut: os.Stderr})
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := planning.WithActor(context.Background(), "cli")
	return run(ctx, a.Planner(), args, out)
}
