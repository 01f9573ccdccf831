package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"yaprooms/internal/chat"
)

const (
	defaultShutdownDeadline = 10 * time.Second
	defaultRequestTimeout   = time.Minute
	maxRequestBody          = 64 << 10

	defaultWebSocketHandshakeTimeout   = 3 * time.Second
	defaultWebSocketCloseWriteDeadline = 2 * time.Second
	defaultWebSocketWriteDeadline      = 5 * time.Second
	defaultPingInterval                = 5 * time.Second
	defaultPongWait                    = 7 * time.Second
)

var ErrUnexpected = errors.New("unexpected server error")

type (
	// ChatService is the command surface the server exposes.
	ChatService interface {
		CreateOrJoin(ctx context.Context, username, ticket string) (chat.Joined, error)
		Send(ctx context.Context, text string) error
		SelectTopic(key string) (*chat.Session, error)
		Topics() []chat.TopicInfo
	}

	Config struct {
		Logger      *zerolog.Logger
		Service     ChatService
		Hub         *Hub
		ListenAddr  string
		DefaultName string
	}

	Server struct {
		svc         ChatService
		hub         *Hub
		ws          *websocket.Upgrader
		defaultName string
		*http.Server

		logger zerolog.Logger
	}

	CreateOrJoinRequest struct {
		Username string `json:"username"`
		Ticket   string `json:"ticket"`
	}

	SendRequest struct {
		Text string `json:"text"`
	}

	SelectTopicRequest struct {
		Key string `json:"key"`
	}

	JoinedResponse struct {
		Key     string `json:"key"`
		Room    string `json:"room"`
		Ticket  string `json:"ticket"`
		Created bool   `json:"created"`
	}

	GenericResponse struct {
		Message string `json:"message,omitempty"`
		Error   string `json:"error,omitempty"`
		Data    any    `json:"data,omitempty"`
	}
)

func NewServer(cfg Config) *Server {
	srv := &Server{
		logger:      cfg.Logger.With().Str("component", "web-server").Logger(),
		svc:         cfg.Service,
		hub:         cfg.Hub,
		defaultName: cfg.DefaultName,
		ws: &websocket.Upgrader{
			HandshakeTimeout: defaultWebSocketHandshakeTimeout,
			CheckOrigin:      func(r *http.Request) bool { return true },
		},
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(hlog.NewHandler(srv.logger))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Dur("duration", duration).
			Msg("request")
	}))

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(defaultRequestTimeout))
		r.Post("/create_or_join", srv.createOrJoin)
		r.Post("/send", srv.send)
		r.Post("/select_topic", srv.selectTopic)
		r.Get("/topics", srv.topics)
	})
	r.Get("/ws", srv.events)

	srv.Server = &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: r,
	}
	return srv
}

func (srv *Server) Run(ctx context.Context, wg *sync.WaitGroup, errc chan<- error) {
	defer func() {
		srv.logger.Debug().Msg("server stopped")
		wg.Done()
	}()

	errSrv := make(chan error, 1)
	go func() {
		errSrv <- srv.ListenAndServe()
	}()

	srv.logger.Info().Str("addr", srv.Addr).Msg("server started")

	select {
	case err := <-errSrv:
		if !errors.Is(err, http.ErrServerClosed) {
			errc <- errors.Join(ErrUnexpected, err)
		}
	case <-ctx.Done():
		shCtx, shCancel := context.WithTimeout(context.Background(), defaultShutdownDeadline)
		defer shCancel()
		if err := srv.Shutdown(shCtx); err != nil {
			srv.logger.Error().Err(err).Msg("server shutdown failed")
		}
	}
}

func (srv *Server) createOrJoin(w http.ResponseWriter, r *http.Request) {
	var req CreateOrJoinRequest
	if !srv.decode(w, r, &req) {
		return
	}
	if req.Username == "" {
		req.Username = srv.defaultName
	}
	joined, err := srv.svc.CreateOrJoin(r.Context(), req.Username, req.Ticket)
	if err != nil {
		srv.fail(w, r, err)
		return
	}
	msg := "joined " + joined.Key
	if joined.Created {
		msg = "created " + joined.Key
	}
	writeJSON(w, http.StatusOK, GenericResponse{
		Message: msg,
		Data: JoinedResponse{
			Key:     joined.Key,
			Room:    joined.Room.String(),
			Ticket:  joined.Ticket,
			Created: joined.Created,
		},
	})
}

func (srv *Server) send(w http.ResponseWriter, r *http.Request) {
	var req SendRequest
	if !srv.decode(w, r, &req) {
		return
	}
	if err := srv.svc.Send(r.Context(), req.Text); err != nil {
		srv.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, GenericResponse{Message: "sent"})
}

func (srv *Server) selectTopic(w http.ResponseWriter, r *http.Request) {
	var req SelectTopicRequest
	if !srv.decode(w, r, &req) {
		return
	}
	sess, err := srv.svc.SelectTopic(req.Key)
	if err != nil {
		srv.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, GenericResponse{Message: "active " + sess.Key()})
}

func (srv *Server) topics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, GenericResponse{Data: srv.svc.Topics()})
}

func (srv *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		hlog.FromRequest(r).Debug().Err(err).Msg("bad request body")
		writeJSON(w, http.StatusBadRequest, GenericResponse{Error: "invalid request body"})
		return false
	}
	return true
}

func (srv *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	evt := hlog.FromRequest(r).Warn()
	if status >= http.StatusInternalServerError {
		evt = hlog.FromRequest(r).Error()
	}
	evt.Err(err).Int("status", status).Msg("command failed")
	writeJSON(w, status, GenericResponse{Error: chat.UserMessage(err)})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, chat.ErrMalformedTicket), errors.Is(err, chat.ErrEmptyTicket):
		return http.StatusBadRequest
	case errors.Is(err, chat.ErrUnknownKey):
		return http.StatusNotFound
	case errors.Is(err, chat.ErrDuplicateKey), errors.Is(err, chat.ErrNoActiveSession):
		return http.StatusConflict
	case errors.Is(err, chat.ErrTransport):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
