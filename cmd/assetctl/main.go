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

	"github.com/pkg/profile"
	"github.com/zeusync/enginedb/internal/config"
	"github.com/zeusync/enginedb/internal/core/rehydrate"
	"github.com/zeusync/enginedb/internal/injector"
)

const usage = `usage: assetctl [-config FILE] [-profile cpu|mem] COMMAND [ARGS]

commands:
  create NAME               create an entity
  delete ID                 delete an entity and its metadata
  list                      list entities
  load                      load the scene and print attached behaviours
  scripts                   list script files under the assets root
  get ID FIELD              print a persisted field
  set ID FIELD VALUE        persist a field (JSON scalar or bare string)
  unset ID FIELD            remove a persisted field
  attach ID SCRIPT          attach a script by name
  detach ID SCRIPT          detach a script by name
  blob put KIND FILE        store a texture or mesh blob
  blob get KEY [FILE]       read a blob to FILE or stdout
  blob ls                   list blob keys
  verify                    check the store for inconsistencies
  serve                     serve listings and the refresh feed
`

var errUsage = errors.New("usage")

const shutdownTimeout = 5 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		// bare errUsage means usage text was already printed
		if err != errUsage {
			fmt.Fprintln(os.Stderr, "assetctl:", err)
		}
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("assetctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }
	configPath := fs.String("config", "", "path to a YAML config file")
	profileMode := fs.String("profile", "", "write a cpu or mem profile to the working directory")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errUsage
	}

	switch *profileMode {
	case "":
	case "cpu":
		defer profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.NoShutdownHook, profile.Quiet).Stop()
	case "mem":
		defer profile.Start(profile.MemProfileAllocs, profile.ProfilePath("."), profile.NoShutdownHook, profile.Quiet).Stop()
	default:
		return fmt.Errorf("unknown profile mode %q", *profileMode)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	app, cleanup, err := injector.InitializeApp(cfg, rehydrate.NewTypeRegistry())
	if err != nil {
		return err
	}
	defer cleanup()

	c := &cli{app: app, out: stdout}
	if err = c.dispatch(ctx, fs.Arg(0), fs.Args()[1:]); errors.Is(err, errUsage) {
		fmt.Fprint(stderr, usage)
	}
	return err
}
