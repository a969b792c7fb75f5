package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/zeusync/enginedb/internal/core/models"
	"github.com/zeusync/enginedb/internal/core/storage"
	"github.com/zeusync/enginedb/internal/injector"
)

type cli struct {
	app *injector.App
	out io.Writer
}

func (c *cli) dispatch(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "create":
		return c.create(args)
	case "delete":
		return c.delete(args)
	case "list":
		return c.list(args)
	case "load":
		return c.load(args)
	case "scripts":
		return c.scripts(args)
	case "get":
		return c.get(args)
	case "set":
		return c.set(args)
	case "unset":
		return c.unset(args)
	case "attach":
		return c.attach(args)
	case "detach":
		return c.detach(args)
	case "blob":
		return c.blob(args)
	case "verify":
		return c.verify(ctx, args)
	case "serve":
		return c.serve(ctx, args)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

func wantArgs(args []string, n int) error {
	if len(args) != n {
		return fmt.Errorf("%w: expected %d argument(s), got %d", errUsage, n, len(args))
	}
	return nil
}

func parseID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid entity id %q: %w", s, err)
	}
	return id, nil
}

// parseValue reads a JSON scalar; anything else is taken as a bare string.
func parseValue(s string) any {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil || dec.More() {
		return s
	}
	switch v.(type) {
	case bool, string, json.Number:
		return v
	default:
		return s
	}
}

func (c *cli) create(args []string) error {
	if err := wantArgs(args, 1); err != nil {
		return err
	}
	e, err := c.app.Store.CreateEntity(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, e.ID())
	return nil
}

func (c *cli) delete(args []string) error {
	if err := wantArgs(args, 1); err != nil {
		return err
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	return c.app.Store.DeleteEntity(id)
}

func (c *cli) list(args []string) error {
	if err := wantArgs(args, 0); err != nil {
		return err
	}
	entities, err := c.app.Store.ListEntities()
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	for _, e := range entities {
		tags := make([]string, 0, models.TagSlots)
		for _, t := range e.Tags {
			if t != models.TagNone {
				tags = append(tags, t.String())
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", e.ID(), e.Name, strings.Join(tags, ","))
	}
	return tw.Flush()
}

func (c *cli) load(args []string) error {
	if err := wantArgs(args, 0); err != nil {
		return err
	}
	entities, err := c.app.Loader.Load()
	if err != nil {
		return err
	}
	for _, e := range entities {
		names := make([]string, 0)
		for _, b := range e.Behaviours() {
			names = append(names, b.BehaviourName())
		}
		fmt.Fprintf(c.out, "%s\t%s\t[%s]\n", e.ID(), e.Name, strings.Join(names, " "))
	}
	return nil
}

func (c *cli) scripts(args []string) error {
	if err := wantArgs(args, 0); err != nil {
		return err
	}
	scripts, err := c.app.Store.ListScripts()
	if err != nil {
		return err
	}
	for _, s := range scripts {
		fmt.Fprintf(c.out, "%s\t%s\n", s.Name, s.Path)
	}
	return nil
}

func (c *cli) get(args []string) error {
	if err := wantArgs(args, 2); err != nil {
		return err
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	v, ok, err := c.app.Store.Metadata().GetField(id, args[1])
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("field %q is not set", args[1])
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, string(b))
	return nil
}

func (c *cli) set(args []string) error {
	if err := wantArgs(args, 3); err != nil {
		return err
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	return c.app.Store.Metadata().SetField(id, args[1], parseValue(args[2]))
}

func (c *cli) unset(args []string) error {
	if err := wantArgs(args, 2); err != nil {
		return err
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	_, err = c.app.Store.Metadata().RemoveField(id, args[1])
	return err
}

// attach only accepts scripts that exist under the assets root.
func (c *cli) attach(args []string) error {
	if err := wantArgs(args, 2); err != nil {
		return err
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	scripts, err := c.app.Store.ListScripts()
	if err != nil {
		return err
	}
	for _, s := range scripts {
		if s.Name == args[1] {
			return c.app.Store.Metadata().AddScript(id, s)
		}
	}
	return fmt.Errorf("no script named %q under %s", args[1], c.app.Store.Paths().VisibleRoot)
}

func (c *cli) detach(args []string) error {
	if err := wantArgs(args, 2); err != nil {
		return err
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	removed, err := c.app.Store.Metadata().RemoveScript(id, args[1])
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("script %q is not attached", args[1])
	}
	return nil
}

func (c *cli) blob(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: blob needs a subcommand", errUsage)
	}
	blobs := c.app.Store.Blobs()
	switch sub, rest := args[0], args[1:]; sub {
	case "put":
		if err := wantArgs(rest, 2); err != nil {
			return err
		}
		data, err := os.ReadFile(rest[1])
		if err != nil {
			return err
		}
		k, err := blobs.Put(storage.BlobKind(rest[0]), data)
		if err != nil {
			return err
		}
		fmt.Fprintln(c.out, k)
		return nil
	case "get":
		if len(rest) < 1 || len(rest) > 2 {
			return fmt.Errorf("%w: blob get KEY [FILE]", errUsage)
		}
		k, err := storage.ParseBlobKey(rest[0])
		if err != nil {
			return err
		}
		data, err := blobs.Get(k)
		if err != nil {
			return err
		}
		if len(rest) == 2 {
			return os.WriteFile(rest[1], data, 0o644)
		}
		_, err = c.out.Write(data)
		return err
	case "ls":
		keys, err := blobs.Keys()
		if err != nil {
			return err
		}
		for _, k := range keys {
			fmt.Fprintln(c.out, k)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown blob subcommand %q", errUsage, sub)
	}
}

func (c *cli) verify(ctx context.Context, args []string) error {
	if err := wantArgs(args, 0); err != nil {
		return err
	}
	report, err := c.app.Store.Verify(ctx)
	if err != nil {
		return err
	}
	for _, p := range report.Problems {
		fmt.Fprintln(c.out, p)
	}
	fmt.Fprintf(c.out, "%d records, %d metadata documents, %d blobs, %d problems\n",
		report.Records, report.Metadata, report.Blobs, len(report.Problems))
	if !report.OK() {
		return fmt.Errorf("store has %d problem(s)", len(report.Problems))
	}
	return nil
}

func (c *cli) serve(ctx context.Context, args []string) error {
	if err := wantArgs(args, 0); err != nil {
		return err
	}
	srv := c.app.Server
	if err := srv.Start(ctx); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "listening on %s\n", srv.Addr())

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Stop(stopCtx)
}
