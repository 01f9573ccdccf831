package ui

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yaprooms/internal/chat"
	"yaprooms/internal/gossip"
)

func newCommands(t *testing.T, hub *gossip.MemoryHub, name string) (*Commands, *Presenter) {
	t.Helper()
	node, err := hub.NewMemoryNode()
	require.NoError(t, err)
	presenter := NewPresenter()
	svc := chat.NewService(chat.Options{
		Network:     node,
		Presenter:   presenter,
		Logger:      zerolog.Nop(),
		JoinTimeout: time.Second,
	})
	t.Cleanup(func() {
		_ = svc.Close()
		presenter.Close()
	})
	return NewCommands(svc, name), presenter
}

func TestCommandsCreateJoinAndTalk(t *testing.T) {
	ctx := context.Background()
	hub := gossip.NewMemoryHub()
	alice, aliceEvents := newCommands(t, hub, "alice")
	bob, _ := newCommands(t, hub, "bob")

	res, err := alice.Handle(ctx, "/new")
	require.NoError(t, err)
	require.Len(t, res.Lines, 3)
	ticket := res.Lines[2]
	assert.NotEmpty(t, res.Active)

	res, err = bob.Handle(ctx, "/join "+ticket)
	require.NoError(t, err)
	assert.Contains(t, res.Lines[0], "joined")

	_, err = bob.Handle(ctx, "hello there")
	require.NoError(t, err)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-aliceEvents.Events():
			if ev.Kind != chat.EventMessage {
				continue
			}
			assert.Equal(t, "bob", ev.Sender)
			assert.Equal(t, "hello there", ev.Text)
		case <-deadline:
			t.Fatal("no message received")
		}
		break
	}

	res, err = alice.Handle(ctx, "/peers")
	require.NoError(t, err)
	assert.Contains(t, res.Lines[1], "bob")

	res, err = alice.Handle(ctx, "/ticket")
	require.NoError(t, err)
	assert.Equal(t, ticket, res.Lines[1])
}

func TestCommandsSwitchAndTopics(t *testing.T) {
	ctx := context.Background()
	cmds, _ := newCommands(t, gossip.NewMemoryHub(), "alice")

	res, err := cmds.Handle(ctx, "/topics")
	require.NoError(t, err)
	assert.Contains(t, res.Lines[0], "no rooms")

	first, err := cmds.Handle(ctx, "/new")
	require.NoError(t, err)
	_, err = cmds.Handle(ctx, "/new")
	require.NoError(t, err)

	res, err = cmds.Handle(ctx, "/switch "+first.Active)
	require.NoError(t, err)
	assert.Equal(t, first.Active, res.Active)

	res, err = cmds.Handle(ctx, "/topics")
	require.NoError(t, err)
	require.Len(t, res.Lines, 2)
	assert.Contains(t, res.Lines, "* "+first.Active+" (0 neighbors)")

	_, err = cmds.Handle(ctx, "/switch nowhere")
	require.ErrorIs(t, err, chat.ErrUnknownKey)
}

func TestCommandsErrorsAndUsage(t *testing.T) {
	ctx := context.Background()
	cmds, _ := newCommands(t, gossip.NewMemoryHub(), "alice")

	_, err := cmds.Handle(ctx, "hello")
	require.ErrorIs(t, err, chat.ErrNoActiveSession)
	_, err = cmds.Handle(ctx, "/peers")
	require.ErrorIs(t, err, chat.ErrNoActiveSession)
	_, err = cmds.Handle(ctx, "/join garbage!")
	require.ErrorIs(t, err, chat.ErrMalformedTicket)

	res, err := cmds.Handle(ctx, "/join")
	require.NoError(t, err)
	assert.Equal(t, []string{"usage: /join <ticket>"}, res.Lines)

	res, err = cmds.Handle(ctx, "/bogus")
	require.NoError(t, err)
	assert.Contains(t, res.Lines[0], "unknown command")

	res, err = cmds.Handle(ctx, "   ")
	require.NoError(t, err)
	assert.Empty(t, res.Lines)

	_, err = cmds.Handle(ctx, "/quit")
	require.ErrorIs(t, err, ErrQuit)

	_, err = cmds.Handle(ctx, "/name Alice Liddell")
	require.NoError(t, err)
	assert.Equal(t, "Alice Liddell", cmds.Name())
}

func TestPresenterDropsOldest(t *testing.T) {
	p := NewPresenter()
	for i := range queueSize + 1 {
		p.Present(chat.Event{Kind: chat.EventMessage, Text: string(rune('a' + i%26))})
	}
	first := <-p.Events()
	assert.Equal(t, "b", first.Text)

	p.Close()
	p.Present(chat.Event{Kind: chat.EventMessage})
	assert.Len(t, p.Events(), queueSize-1)
}
