package web

import (
	"encoding/json"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
	"github.com/rs/zerolog"

	"yaprooms/internal/chat"
)

const clientQueueSize = 256

// EventPayload is the JSON form of a chat.Event pushed to websocket
// clients.
type EventPayload struct {
	Kind   chat.EventKind `json:"kind"`
	Topic  string         `json:"topic"`
	Sender string         `json:"sender,omitempty"`
	Peer   string         `json:"peer,omitempty"`
	Text   string         `json:"text,omitempty"`
	Ticket string         `json:"ticket,omitempty"`
	Self   bool           `json:"self,omitempty"`
	At     time.Time      `json:"at"`
}

func newEventPayload(ev chat.Event) EventPayload {
	p := EventPayload{
		Kind:   ev.Kind,
		Topic:  ev.Topic,
		Sender: ev.Sender,
		Text:   ev.Text,
		Ticket: ev.Ticket,
		Self:   ev.Self,
		At:     ev.At,
	}
	if ev.Peer != "" {
		p.Peer = ev.Peer.String()
	}
	return p
}

type client struct {
	send chan []byte
	gone chan struct{}
}

// Hub fans presentation events out to every connected websocket client.
// It implements chat.Presenter. A client whose queue is full is dropped.
// The send queue is never closed; gone signals that a client was removed.
type Hub struct {
	clients *xsync.Map[*client, struct{}]
	logger  zerolog.Logger
}

func NewHub(logger *zerolog.Logger) *Hub {
	return &Hub{
		clients: xsync.NewMap[*client, struct{}](),
		logger:  logger.With().Str("component", "web-hub").Logger(),
	}
}

func (h *Hub) register() *client {
	c := &client{
		send: make(chan []byte, clientQueueSize),
		gone: make(chan struct{}),
	}
	h.clients.Store(c, struct{}{})
	return c
}

func (h *Hub) unregister(c *client) {
	if _, ok := h.clients.LoadAndDelete(c); ok {
		close(c.gone)
	}
}

// Present implements chat.Presenter.
func (h *Hub) Present(ev chat.Event) {
	b, err := json.Marshal(newEventPayload(ev))
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to marshal event")
		return
	}
	h.clients.Range(func(c *client, _ struct{}) bool {
		select {
		case c.send <- b:
		case <-c.gone:
		default:
			h.logger.Warn().Msg("client too slow, dropping")
			h.unregister(c)
		}
		return true
	})
}

// Clients returns the number of connected websocket clients.
func (h *Hub) Clients() int {
	return h.clients.Size()
}
