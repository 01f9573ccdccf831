package ui

import (
	"sync"

	"yaprooms/internal/chat"
)

const queueSize = 256

// Presenter queues chat events for the terminal UI. When the UI falls
// behind, the oldest queued event is dropped to make room.
type Presenter struct {
	events    chan chat.Event
	closeOnce sync.Once
	closed    chan struct{}
}

func NewPresenter() *Presenter {
	return &Presenter{
		events: make(chan chat.Event, queueSize),
		closed: make(chan struct{}),
	}
}

// Present implements chat.Presenter.
func (p *Presenter) Present(ev chat.Event) {
	select {
	case <-p.closed:
		return
	default:
	}

	select {
	case p.events <- ev:
	default:
		select {
		case <-p.events:
		case <-p.closed:
			return
		}
		select {
		case p.events <- ev:
		case <-p.closed:
		}
	}
}

// Events is the stream the UI model drains.
func (p *Presenter) Events() <-chan chat.Event {
	return p.events
}

// Close stops accepting events and wakes any reader blocked on Done.
func (p *Presenter) Close() {
	p.closeOnce.Do(func() { close(p.closed) })
}

// Done is closed by Close.
func (p *Presenter) Done() <-chan struct{} {
	return p.closed
}
