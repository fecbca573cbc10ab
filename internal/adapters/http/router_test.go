package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dkeye/Interview/internal/adapters/signal"
	"github.com/dkeye/Interview/internal/app"
	"github.com/dkeye/Interview/internal/app/orch"
	"github.com/dkeye/Interview/internal/config"
	"github.com/dkeye/Interview/internal/core"
	"github.com/dkeye/Interview/internal/domain"
	"github.com/dkeye/Interview/internal/ledger"
	"github.com/dkeye/Interview/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	srv   *httptest.Server
	rooms *core.Table
	store *ledger.MemStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := ledger.NewMemStore()
	m := metrics.NewMetrics(prometheus.NewRegistry())
	led := ledger.New(store, ledger.Options{Workers: 2}, m)

	ctx, cancel := context.WithCancel(context.Background())
	ledgerDone := make(chan struct{})
	go func() {
		defer close(ledgerDone)
		_ = led.Run(ctx)
	}()

	rooms := core.NewTable()
	o := &orch.Orchestrator{
		Registry: app.NewRegistry(),
		Rooms:    rooms,
		Policy:   app.SimplePolicy{},
		Ledger:   led,
		Metrics:  m,
	}
	cfg := &config.Config{
		Mode:       "test",
		Secret:     "test-secret",
		ICEServers: []config.ICEServerConfig{{URLs: []string{"stun:stun.example.org:3478"}}},
	}
	ctl := signal.NewSignalWSController(o, signal.Options{ReadLimit: 1 << 16, ICEServers: cfg.WebRTCICEServers()})
	r := SetupRouter(ctx, cfg, Deps{Signal: ctl, Rooms: rooms, Sessions: store, Metrics: m})
	srv := httptest.NewServer(r)

	t.Cleanup(func() {
		cancel()
		waitCtx, stop := context.WithTimeout(context.Background(), 2*time.Second)
		defer stop()
		_ = ctl.Wait(waitCtx)
		srv.Close()
		<-ledgerDone
	})
	return &testServer{srv: srv, rooms: rooms, store: store}
}

type frame struct {
	Type       string          `json:"type"`
	ID         domain.ConnID   `json:"id"`
	From       domain.ConnID   `json:"from"`
	Room       domain.RoomID   `json:"room"`
	Users      []domain.ConnID `json:"users"`
	Payload    json.RawMessage `json:"payload"`
	Error      string          `json:"error"`
	ICEServers []struct {
		URLs []string `json:"urls"`
	} `json:"ice_servers"`
}

type client struct {
	t  *testing.T
	ws *websocket.Conn
	id domain.ConnID
}

func (s *testServer) dial(t *testing.T) *client {
	t.Helper()
	url := "ws" + strings.TrimPrefix(s.srv.URL, "http") + "/api/ws/signal"
	ws, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	c := &client{t: t, ws: ws}

	welcome := c.read()
	require.Equal(t, "welcome", welcome.Type)
	require.NotEmpty(t, welcome.ID)
	require.Len(t, welcome.ICEServers, 1)
	assert.Equal(t, []string{"stun:stun.example.org:3478"}, welcome.ICEServers[0].URLs)
	c.id = welcome.ID
	return c
}

func (c *client) send(raw string) {
	c.t.Helper()
	require.NoError(c.t, c.ws.WriteMessage(websocket.TextMessage, []byte(raw)))
}

func (c *client) read() frame {
	c.t.Helper()
	require.NoError(c.t, c.ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f frame
	require.NoError(c.t, c.ws.ReadJSON(&f))
	return f
}

func (c *client) join(room string) frame {
	c.t.Helper()
	c.send(`{"type":"join","room":"` + room + `","candidate_id":"cand-7","job_id":"job-3","role":"interviewer"}`)
	f := c.read()
	require.Equal(c.t, "existing-users", f.Type)
	return f
}

func getJSON(t *testing.T, url string, v any) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(body, v))
}

func TestInterviewRoomOverWebSocket(t *testing.T) {
	s := newTestServer(t)
	a := s.dial(t)
	b := s.dial(t)

	assert.Empty(t, a.join("r1").Users)
	assert.Equal(t, []domain.ConnID{a.id}, b.join("r1").Users)

	joined := a.read()
	assert.Equal(t, "user-joined", joined.Type)
	assert.Equal(t, b.id, joined.ID)

	payload := `{"sdp": "v=0\r\n",  "type":"offer"}`
	a.send(`{"type":"signal","to":"` + string(b.id) + `","payload":` + payload + `}`)
	sig := b.read()
	assert.Equal(t, "signal", sig.Type)
	assert.Equal(t, a.id, sig.From)
	assert.Equal(t, payload, string(sig.Payload))

	var rooms struct {
		Rooms []core.RoomInfo `json:"rooms"`
	}
	getJSON(t, s.srv.URL+"/api/rooms", &rooms)
	require.Len(t, rooms.Rooms, 1)
	assert.Equal(t, core.RoomInfo{Name: "r1", MemberCount: 2}, rooms.Rooms[0])

	require.NoError(t, b.ws.Close())
	left := a.read()
	assert.Equal(t, "user-left", left.Type)
	assert.Equal(t, b.id, left.ID)

	require.NoError(t, a.ws.Close())
	require.Eventually(t, func() bool { return s.rooms.Len() == 0 }, 2*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		recs, err := s.store.ListSessions(context.Background(), "r1")
		return err == nil && len(recs) == 1 && recs[0].EndTime != nil
	}, 2*time.Second, 20*time.Millisecond)

	var sessions struct {
		Sessions []domain.SessionRecord `json:"sessions"`
	}
	getJSON(t, s.srv.URL+"/api/rooms/r1/sessions", &sessions)
	require.Len(t, sessions.Sessions, 1)
	rec := sessions.Sessions[0]
	assert.Equal(t, "cand-7", rec.CandidateID)
	assert.Equal(t, "job-3", rec.JobID)
	require.Len(t, rec.Participants, 2)
	assert.Equal(t, a.id, rec.Participants[0].ConnID)
	assert.Equal(t, domain.RoleInterviewer, rec.Participants[0].Role)
	for _, p := range rec.Participants {
		assert.NotNil(t, p.LeaveTime)
	}
	require.NotNil(t, rec.Participants[0].LeaveTime)
	assert.True(t, rec.EndTime.Equal(*rec.Participants[0].LeaveTime))
}

func TestProtocolViolationsGetErrorFrames(t *testing.T) {
	s := newTestServer(t)
	a := s.dial(t)
	b := s.dial(t)

	a.send(`{"type":"signal","to":"` + string(b.id) + `","payload":{}}`)
	assert.Equal(t, "not_in_room", a.read().Error)

	a.send(`not json`)
	assert.Equal(t, "bad_payload", a.read().Error)

	a.send(`{"type":"dance"}`)
	assert.Equal(t, "unknown_type", a.read().Error)

	a.send(`{"type":"join","room":""}`)
	assert.Equal(t, "bad_room", a.read().Error)

	a.send(`{"type":"leave"}`)
	assert.Equal(t, "not_in_room", a.read().Error)

	a.join("r1")
	a.send(`{"type":"join","room":"r2"}`)
	assert.Equal(t, "already_in_room", a.read().Error)

	a.send(`{"type":"whoami"}`)
	who := a.read()
	assert.Equal(t, "whoami", who.Type)
	assert.Equal(t, a.id, who.ID)
	assert.Equal(t, domain.RoomID("r1"), who.Room)

	a.send(`{"type":"ping"}`)
	assert.Equal(t, "pong", a.read().Type)

	// Signals to a peer that is not there are dropped without a reply.
	a.send(`{"type":"signal","to":"nobody","payload":1}`)
	a.send(`{"type":"leave"}`)
	assert.Equal(t, "left", a.read().Type)
	assert.Equal(t, 0, s.rooms.Len())

	// b never received anything beyond its welcome.
	require.NoError(t, b.ws.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err := b.ws.ReadMessage()
	assert.Error(t, err)
}

func TestHTTPEndpoints(t *testing.T) {
	s := newTestServer(t)

	var health map[string]string
	getJSON(t, s.srv.URL+"/healthz", &health)
	assert.Equal(t, "ok", health["status"])

	var ice struct {
		ICEServers []struct {
			URLs []string `json:"urls"`
		} `json:"ice_servers"`
	}
	getJSON(t, s.srv.URL+"/api/ice-servers", &ice)
	require.Len(t, ice.ICEServers, 1)

	var sessions struct {
		Sessions []domain.SessionRecord `json:"sessions"`
	}
	getJSON(t, s.srv.URL+"/api/rooms/unknown/sessions", &sessions)
	assert.NotNil(t, sessions.Sessions)
	assert.Empty(t, sessions.Sessions)

	resp, err := http.Get(s.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "interview_connections")
}
