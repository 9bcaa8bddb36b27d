package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/lox/metasino/cmd/metasino/shared"
	"github.com/lox/metasino/internal/client"
	"github.com/lox/metasino/internal/store"
	"github.com/lox/metasino/internal/table"
)

// ClientFlags are shared by every command talking to a running server
type ClientFlags struct {
	Server   string        `short:"s" default:"http://localhost:8080" env:"METASINO_SERVER" help:"Server URL"`
	Account  string        `short:"u" env:"METASINO_ACCOUNT" help:"Account to act as"`
	Token    string        `env:"METASINO_TOKEN" help:"Auth token, when the server checks tokens"`
	Timeout  time.Duration `default:"10s" help:"Request timeout"`
	NoColor  bool          `help:"Disable colored output"`
	LogLevel string        `default:"warn" help:"Log level"`
}

// connect dials the server and authenticates when an account is set. The
// returned context carries the request timeout.
func (f *ClientFlags) connect(opts ...client.Option) (*client.Client, context.Context, context.CancelFunc, error) {
	logger, err := shared.SetupLogger(f.LogLevel)
	if err != nil {
		return nil, nil, nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), f.Timeout)
	c := client.NewClient(f.Server, logger, opts...)
	if err := c.Connect(ctx); err != nil {
		cancel()
		return nil, nil, nil, err
	}
	if f.Account != "" {
		if _, err := c.Auth(ctx, f.Account, f.Token); err != nil {
			_ = c.Close()
			cancel()
			return nil, nil, nil, fmt.Errorf("auth as %s: %w", f.Account, err)
		}
	}
	return c, ctx, func() {
		_ = c.Close()
		cancel()
	}, nil
}

func (f *ClientFlags) renderer() *Renderer {
	return NewRenderer(os.Stdout, f.NoColor)
}

// OpenCmd opens a new table as the current account
type OpenCmd struct {
	ClientFlags
	Bet int64 `arg:"" help:"Required start bet"`
}

func (c *OpenCmd) Run() error {
	cl, ctx, done, err := c.connect()
	if err != nil {
		return err
	}
	defer done()

	snap, err := cl.OpenTable(ctx, table.Balance(c.Bet))
	if err != nil {
		return err
	}
	fmt.Println(c.renderer().Table(snap))
	return nil
}

// JoinCmd registers the current account at a table
type JoinCmd struct {
	ClientFlags
	Table string `arg:"" help:"Table ID"`
	Bet   int64  `arg:"" help:"Start bet, must equal the table's required bet"`
}

func (c *JoinCmd) Run() error {
	cl, ctx, done, err := c.connect()
	if err != nil {
		return err
	}
	defer done()

	snap, err := cl.Register(ctx, c.Table, table.Balance(c.Bet))
	if err != nil {
		return err
	}
	fmt.Println(c.renderer().Table(snap))
	return nil
}

// StartCmd starts the game at a table
type StartCmd struct {
	ClientFlags
	Table string `arg:"" help:"Table ID"`
}

func (c *StartCmd) Run() error {
	cl, ctx, done, err := c.connect()
	if err != nil {
		return err
	}
	defer done()

	snap, err := cl.Start(ctx, c.Table)
	if err != nil {
		return err
	}
	fmt.Println(c.renderer().Table(snap))
	return nil
}

// TerminateCmd terminates a table
type TerminateCmd struct {
	ClientFlags
	Table string `arg:"" help:"Table ID"`
}

func (c *TerminateCmd) Run() error {
	cl, ctx, done, err := c.connect()
	if err != nil {
		return err
	}
	defer done()

	snap, err := cl.Terminate(ctx, c.Table)
	if err != nil {
		return err
	}
	r := c.renderer()
	fmt.Println(r.Success("Terminated " + c.Table))
	fmt.Println(r.Table(snap))
	return nil
}

// ShowCmd prints a single table
type ShowCmd struct {
	ClientFlags
	Table string `arg:"" help:"Table ID"`
}

func (c *ShowCmd) Run() error {
	cl, ctx, done, err := c.connect()
	if err != nil {
		return err
	}
	defer done()

	snap, err := cl.Table(ctx, c.Table)
	if err != nil {
		return err
	}
	fmt.Println(c.renderer().Table(snap))
	return nil
}

// ListCmd prints every table
type ListCmd struct {
	ClientFlags
}

func (c *ListCmd) Run() error {
	cl, ctx, done, err := c.connect()
	if err != nil {
		return err
	}
	defer done()

	tables, err := cl.List(ctx)
	if err != nil {
		return err
	}
	fmt.Println(c.renderer().Tables(tables))
	return nil
}

// EventsCmd prints the event log of a table
type EventsCmd struct {
	ClientFlags
	Table string `arg:"" help:"Table ID"`
}

func (c *EventsCmd) Run() error {
	cl, ctx, done, err := c.connect()
	if err != nil {
		return err
	}
	defer done()

	events, err := cl.Events(ctx, c.Table)
	if err != nil {
		return err
	}
	fmt.Println(c.renderer().Events(c.Table, events))
	return nil
}

// WatchCmd streams events of a table until interrupted
type WatchCmd struct {
	ClientFlags
	Table string `arg:"" help:"Table ID"`
}

func (c *WatchCmd) Run() error {
	logger, err := shared.SetupLogger(c.LogLevel)
	if err != nil {
		return err
	}
	r := c.renderer()

	events := make(chan store.Event, 64)
	cl, ctx, done, err := c.connect(client.WithEventHandler(func(ev store.Event) {
		select {
		case events <- ev:
		default:
			logger.Warn("Dropping event, output is behind", "seq", ev.Seq)
		}
	}))
	if err != nil {
		return err
	}
	defer done()

	snap, err := cl.Watch(ctx, c.Table)
	if err != nil {
		return err
	}
	fmt.Println(r.Table(snap))

	sigCtx, stop := shared.SignalContext(context.Background(), logger)
	defer stop()
	for {
		select {
		case ev := <-events:
			fmt.Println(r.Event(ev))
		case <-sigCtx.Done():
			return nil
		case <-cl.Done():
			return client.ErrClosed
		}
	}
}
