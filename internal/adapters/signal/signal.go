package signal

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/Interview/internal/app/orch"
	"github.com/dkeye/Interview/internal/core"
	"github.com/dkeye/Interview/internal/domain"
	"github.com/dkeye/Interview/internal/protocol"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

type Options struct {
	ReadLimit  int64
	PingPeriod time.Duration
	SendBuffer int
	RateLimit  float64
	RateBurst  int
	ICEServers []webrtc.ICEServer
}

type SignalWSController struct {
	Orch    *orch.Orchestrator
	opts    Options
	limiter *ConnRateLimiter
	pumps   sync.WaitGroup
}

func NewSignalWSController(o *orch.Orchestrator, opts Options) *SignalWSController {
	if opts.PingPeriod <= 0 {
		opts.PingPeriod = 54 * time.Second
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 64
	}
	return &SignalWSController{
		Orch:    o,
		opts:    opts,
		limiter: NewConnRateLimiter(opts.RateLimit, opts.RateBurst),
	}
}

// WsSignalConn is the single ordered outbound channel of one socket.
type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.ErrConnClosed
	}
	select {
	case c.send <- f:
	default:
		return core.ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	token := c.GetString("client_token")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	conn := &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, ctl.opts.SendBuffer),
	}

	ctx, cancel := context.WithCancel(ctx)
	id := ctl.Orch.Registry.Register(conn, token, cancel)
	log.Info().Str("module", "signal").Str("conn", string(id)).Str("client", token).Msg("new WS connection")

	ctl.Orch.OnConnect(id, protocol.Welcome{ICEServers: ctl.opts.ICEServers})

	ctl.pumps.Add(2)
	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cancel, id, conn)
}

// Wait blocks until every pump has exited or ctx is done.
func (ctl *SignalWSController) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		ctl.pumps.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (ctl *SignalWSController) sendJSON(c core.SignalConnection, v any) {
	b, err := protocol.Encode(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}

func (ctl *SignalWSController) sendError(c core.SignalConnection, code, msg string) {
	ctl.sendJSON(c, protocol.NewError(code, msg))
}

// peerTag falls back to the browser's client token when the client sent no peer id.
func (ctl *SignalWSController) peerTag(id domain.ConnID, given string) string {
	if given != "" {
		return given
	}
	token, _ := ctl.Orch.Registry.ClientToken(id)
	return token
}
