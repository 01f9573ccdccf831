package cli

import (
	"bytes"
	"context"
	"errors"
	"io"

	"yaprooms/internal/config"
)

// Settings is the resolved configuration handed to a runner.
type Settings struct {
	Config config.Config
	Store  config.Store
	// Ticket, when set, is joined on startup.
	Ticket string
	// Create asks the runner to create a room on startup.
	Create bool
}

// Runner starts a long-running mode of the program.
type Runner func(ctx context.Context, s Settings) error

// Runners are the modes the CLI can start.
type Runners struct {
	Chat  Runner
	Serve Runner
}

// CLI coordinates subcommands and forwards resolved settings to the
// runners.
type CLI struct {
	in      io.Reader
	out     io.Writer
	err     io.Writer
	runners Runners
	getenv  func(dotenv ...string) (config.Env, error)
}

func New(in io.Reader, out io.Writer, err io.Writer, runners Runners) *CLI {
	return &CLI{in: in, out: out, err: err, runners: runners, getenv: config.LoadEnv}
}

func (c *CLI) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return c.runChat(ctx, args)
	}

	switch args[0] {
	case "init":
		return c.runInit(args[1:])
	case "with":
		return c.runWith(ctx, args[1:])
	case "serve":
		return c.runServe(ctx, args[1:])
	case "ticket":
		return c.runTicket(args[1:])
	case "chat":
		return c.runChat(ctx, args[1:])
	default:
		return c.runChat(ctx, args)
	}
}

func (c *CLI) runWith(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: yap with <profile> [flags]")
	}
	forwarded := append([]string{"--profile", args[0]}, args[1:]...)
	return c.runChat(ctx, forwarded)
}

func (c *CLI) runChat(ctx context.Context, args []string) error {
	settings, err := c.resolveArgs("chat", args)
	if err != nil {
		return err
	}
	if c.runners.Chat == nil {
		return errors.New("chat runner not configured")
	}
	return c.runners.Chat(ctx, settings)
}

func (c *CLI) runServe(ctx context.Context, args []string) error {
	settings, err := c.resolveArgs("serve", args)
	if err != nil {
		return err
	}
	if c.runners.Serve == nil {
		return errors.New("serve runner not configured")
	}
	return c.runners.Serve(ctx, settings)
}

func (c *CLI) stdin() io.Reader {
	if c.in != nil {
		return c.in
	}
	return bytes.NewReader(nil)
}

func (c *CLI) stdout() io.Writer {
	if c.out != nil {
		return c.out
	}
	return io.Discard
}

func (c *CLI) stderr() io.Writer {
	if c.err != nil {
		return c.err
	}
	return io.Discard
}
