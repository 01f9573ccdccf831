package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fctx"
	"github.com/Southclaws/fault/fmsg"

	"yaprooms/internal/protocol"
	"yaprooms/internal/ticket"
)

var (
	ErrMalformedTicket  = ticket.ErrMalformedTicket
	ErrEmptyTicket      = ticket.ErrEmptyTicket
	ErrMalformedMessage = protocol.ErrMalformedMessage

	// ErrDuplicateKey is returned when a room key is already registered.
	ErrDuplicateKey = errors.New("room key already registered")
	// ErrUnknownKey is returned when selecting a room key that is not registered.
	ErrUnknownKey = errors.New("unknown room key")
	// ErrNoActiveSession is returned when no room has been created or joined yet.
	ErrNoActiveSession = errors.New("no active room")
	// ErrTransport wraps subscribe, dial and broadcast failures from the
	// gossip substrate.
	ErrTransport = errors.New("transport failure")
)

// transportError tags err as a substrate failure of op and attaches a
// description suitable for showing to the user.
func transportError(ctx context.Context, err error, op, desc string) error {
	return fault.Wrap(fmt.Errorf("%w: %s: %w", ErrTransport, op, err),
		fctx.With(ctx),
		fmsg.WithDesc(op, desc),
	)
}

// UserMessage returns a short human-readable explanation of err for the
// command surface.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if issue := fmsg.GetIssue(err); issue != "" {
		return issue
	}
	switch {
	case errors.Is(err, ErrEmptyTicket):
		return "That ticket does not list any peers to join through."
	case errors.Is(err, ErrMalformedTicket):
		return "That does not look like a valid ticket."
	case errors.Is(err, ErrDuplicateKey):
		return "You are already in that room."
	case errors.Is(err, ErrUnknownKey):
		return "No room with that name."
	case errors.Is(err, ErrNoActiveSession):
		return "Create or join a room first."
	case errors.Is(err, ErrTransport):
		return "The network is unavailable, try again."
	case errors.Is(err, context.DeadlineExceeded):
		return "Timed out waiting for the room."
	case errors.Is(err, context.Canceled):
		return "Cancelled."
	default:
		return "Something went wrong."
	}
}
