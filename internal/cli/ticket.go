package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"yaprooms/internal/ticket"
)

// runTicket decodes a ticket and prints the room and seed peers it names.
func (c *CLI) runTicket(args []string) error {
	fs := pflag.NewFlagSet("ticket", pflag.ContinueOnError)
	fs.SetOutput(c.stderr())
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: yap ticket <ticket>")
	}

	t, err := ticket.Decode(fs.Arg(0))
	if err != nil {
		return err
	}
	fmt.Fprintf(c.stdout(), "room: %s\n", t.Room)
	fmt.Fprintf(c.stdout(), "seeds (%d):\n", len(t.Seeds))
	for _, seed := range t.Seeds {
		fmt.Fprintf(c.stdout(), "  %s\n", seed.ID)
		if len(seed.Addrs) > 0 {
			fmt.Fprintf(c.stdout(), "    %s\n", strings.Join(seed.Addrs, "\n    "))
		}
	}
	return nil
}
