package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yaprooms/internal/chat"
	"yaprooms/internal/gossip"
)

type testServer struct {
	http *httptest.Server
	hub  *Hub
	svc  *chat.Service
}

func newTestServer(t *testing.T, hub *gossip.MemoryHub) *testServer {
	t.Helper()
	logger := zerolog.Nop()
	node, err := hub.NewMemoryNode()
	require.NoError(t, err)

	events := NewHub(&logger)
	svc := chat.NewService(chat.Options{
		Network:     node,
		Presenter:   events,
		Logger:      logger,
		JoinTimeout: time.Second,
	})
	srv := NewServer(Config{
		Logger:      &logger,
		Service:     svc,
		Hub:         events,
		DefaultName: "anon",
	})
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(func() {
		ts.Close()
		_ = svc.Close()
	})
	return &testServer{http: ts, hub: events, svc: svc}
}

func (s *testServer) post(t *testing.T, path string, body any) (int, GenericResponse) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(s.http.URL+path, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out GenericResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func (s *testServer) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(s.http.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.Eventually(t, func() bool { return s.hub.Clients() == 1 }, time.Second, 10*time.Millisecond)
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn, kind chat.EventKind) EventPayload {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var ev EventPayload
		require.NoError(t, conn.ReadJSON(&ev))
		if ev.Kind == kind {
			return ev
		}
	}
}

func joinedData(t *testing.T, resp GenericResponse) JoinedResponse {
	t.Helper()
	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var joined JoinedResponse
	require.NoError(t, json.Unmarshal(raw, &joined))
	return joined
}

func TestCreateJoinAndChatOverHTTP(t *testing.T) {
	mesh := gossip.NewMemoryHub()
	alice := newTestServer(t, mesh)
	bob := newTestServer(t, mesh)
	aliceWS := alice.dial(t)

	status, resp := alice.post(t, "/api/create_or_join", CreateOrJoinRequest{Username: "alice"})
	require.Equal(t, http.StatusOK, status, resp.Error)
	created := joinedData(t, resp)
	assert.True(t, created.Created)
	assert.NotEmpty(t, created.Ticket)

	ev := readEvent(t, aliceWS, chat.EventNewTopic)
	assert.Equal(t, created.Key, ev.Topic)
	assert.Equal(t, created.Ticket, ev.Ticket)

	status, resp = bob.post(t, "/api/create_or_join", CreateOrJoinRequest{Username: "bob", Ticket: created.Ticket})
	require.Equal(t, http.StatusOK, status, resp.Error)
	assert.Equal(t, created.Room, joinedData(t, resp).Key)

	status, resp = bob.post(t, "/api/send", SendRequest{Text: "hello"})
	require.Equal(t, http.StatusOK, status, resp.Error)

	msg := readEvent(t, aliceWS, chat.EventMessage)
	assert.Equal(t, "bob", msg.Sender)
	assert.Equal(t, "hello", msg.Text)
	assert.False(t, msg.Self)
}

func TestCommandErrors(t *testing.T) {
	srv := newTestServer(t, gossip.NewMemoryHub())

	status, resp := srv.post(t, "/api/send", SendRequest{Text: "hello"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, chat.UserMessage(chat.ErrNoActiveSession), resp.Error)

	status, resp = srv.post(t, "/api/create_or_join", CreateOrJoinRequest{Ticket: "definitely not a ticket"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.NotEmpty(t, resp.Error)

	status, _ = srv.post(t, "/api/select_topic", SelectTopicRequest{Key: "missing"})
	assert.Equal(t, http.StatusNotFound, status)

	r, err := http.Post(srv.http.URL+"/api/send", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	defer r.Body.Close()
	assert.Equal(t, http.StatusBadRequest, r.StatusCode)
}

func TestTopicsAndSelect(t *testing.T) {
	srv := newTestServer(t, gossip.NewMemoryHub())

	_, first := srv.post(t, "/api/create_or_join", CreateOrJoinRequest{})
	_, second := srv.post(t, "/api/create_or_join", CreateOrJoinRequest{})
	firstKey := joinedData(t, first).Key
	require.NotEqual(t, firstKey, joinedData(t, second).Key)

	status, resp := srv.post(t, "/api/select_topic", SelectTopicRequest{Key: firstKey})
	require.Equal(t, http.StatusOK, status, resp.Error)

	r, err := http.Get(srv.http.URL + "/api/topics")
	require.NoError(t, err)
	defer r.Body.Close()
	var body struct {
		Data []chat.TopicInfo `json:"data"`
	}
	require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
	require.Len(t, body.Data, 2)
	for _, info := range body.Data {
		assert.Equal(t, info.Key == firstKey, info.Active)
	}
}

func TestHubDropsSlowClients(t *testing.T) {
	logger := zerolog.Nop()
	hub := NewHub(&logger)
	c := hub.register()
	for range clientQueueSize + 1 {
		hub.Present(chat.Event{Kind: chat.EventMessage, Topic: "t", Text: "x"})
	}
	assert.Zero(t, hub.Clients())
	select {
	case <-c.gone:
	default:
		t.Fatal("slow client was not removed")
	}
	hub.unregister(c)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusGatewayTimeout, statusFor(context.DeadlineExceeded))
	assert.Equal(t, http.StatusBadGateway, statusFor(chat.ErrTransport))
	assert.Equal(t, http.StatusInternalServerError, statusFor(assert.AnError))
}
