package web

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

// events upgrades the request and streams presentation events to the
// client until either side goes away. Clients only read; anything they
// send besides control frames is discarded.
func (srv *Server) events(w http.ResponseWriter, r *http.Request) {
	conn, err := srv.ws.Upgrade(w, r, nil)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	logger := srv.logger.With().Str("remote", r.RemoteAddr).Logger()
	c := srv.hub.register()
	logger.Debug().Int("clients", srv.hub.Clients()).Msg("websocket client connected")

	done := make(chan struct{})
	go func() {
		webSocketReceiver(conn, &logger)
		close(done)
	}()
	webSocketSender(conn, c, done, &logger)

	srv.hub.unregister(c)
	webSocketCloser(conn, &logger)
	logger.Debug().Msg("websocket client disconnected")
}

func webSocketSender(conn *websocket.Conn, c *client, done <-chan struct{}, logger *zerolog.Logger) {
	pingTicker := time.NewTicker(defaultPingInterval)
	defer pingTicker.Stop()
	for {
		select {
		case <-done:
			return
		case <-c.gone:
			return
		case <-pingTicker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(defaultWebSocketWriteDeadline)); err != nil {
				logger.Debug().Err(err).Msg("failed to send ping")
				return
			}
		case msg := <-c.send:
			if err := conn.SetWriteDeadline(time.Now().Add(defaultWebSocketWriteDeadline)); err != nil {
				logger.Error().Err(err).Msg("failed to set websocket write deadline")
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				logger.Error().Err(err).Msg("failed to write outgoing event")
				return
			}
		}
	}
}

func webSocketReceiver(conn *websocket.Conn, logger *zerolog.Logger) {
	conn.SetReadLimit(1024)
	_ = conn.SetReadDeadline(time.Now().Add(defaultPongWait + defaultPingInterval))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(defaultPongWait + defaultPingInterval))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug().Err(err).Msg("connection closed")
			} else {
				logger.Debug().Err(err).Msg("receive ended")
			}
			return
		}
	}
}

func webSocketCloser(conn *websocket.Conn, logger *zerolog.Logger) {
	err := conn.WriteControl(websocket.CloseMessage, []byte{}, time.Now().Add(defaultWebSocketCloseWriteDeadline))
	if err != nil && err != websocket.ErrCloseSent {
		logger.Debug().Err(err).Msg("failed to send close frame")
	}
	if err := conn.Close(); err != nil {
		logger.Debug().Err(err).Msg("failed to close websocket connection")
	}
}
