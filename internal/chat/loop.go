package chat

import (
	"context"
	"errors"

	"github.com/samber/lo"

	"yaprooms/internal/codec"
	"yaprooms/internal/gossip"
	"yaprooms/internal/protocol"
)

const maxDiagnostic = 120

// receive drains one room's inbound stream until ctx is cancelled or the
// stream ends. Items are handled one at a time in delivery order.
func (s *Service) receive(ctx context.Context, sess *Session) {
	log := s.log.With().Str("key", sess.key).Logger()
	for {
		ev, err := sess.topic.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, gossip.ErrClosed) {
				log.Info().Msg("room stream ended")
			} else {
				log.Error().Err(err).Msg("room stream failed")
			}
			s.presenter.Present(Event{Kind: EventTopicClosed, Topic: sess.key, At: s.now()})
			return
		}

		switch ev.Kind {
		case gossip.Received:
			s.handlePayload(sess, ev)
		case gossip.NeighborUp, gossip.NeighborDown:
			log.Debug().Stringer("event", ev.Kind).Str("peer", gossip.ShortID(ev.Peer)).Msg("neighbor change")
		}
	}
}

func (s *Service) handlePayload(sess *Session, ev gossip.Event) {
	msg, err := protocol.Unmarshal(ev.Content)
	if err != nil {
		s.log.Warn().Err(err).
			Str("key", sess.key).
			Str("via", gossip.ShortID(ev.Peer)).
			Str("payload", lo.Substring(codec.Diagnose(ev.Content), 0, maxDiagnostic)).
			Msg("dropping malformed message")
		return
	}

	switch m := msg.(type) {
	case protocol.AboutMe:
		sess.setName(m.From, m.Name)
		s.presenter.Present(Event{
			Kind:   EventPeerRenamed,
			Topic:  sess.key,
			Sender: m.Name,
			Peer:   m.From,
			At:     s.now(),
		})
	case protocol.Chat:
		s.presenter.Present(Event{
			Kind:   EventMessage,
			Topic:  sess.key,
			Sender: sess.DisplayName(m.From),
			Peer:   m.From,
			Text:   m.Text,
			At:     s.now(),
		})
	}
}
