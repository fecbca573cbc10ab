package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dkeye/Interview/internal/domain"
	"github.com/dkeye/Interview/internal/protocol"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const writeWait = 5 * time.Second

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
		ctl.pumps.Done()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Msg("writePump ctx done")
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutdown"), time.Now().Add(writeWait))
			return
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Warn().Err(err).Str("module", "signal").Msg("writePump ping")
				return
			}
		}
	}
}

// readPump owns the connection lifetime: when it returns the connection has left
// its room and is gone from the registry.
func (ctl *SignalWSController) readPump(ctx context.Context, cancel context.CancelFunc, id domain.ConnID, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("conn", string(id)).Msg("readPump closing")
		ctl.Orch.OnDisconnect(id)
		ctl.limiter.Forget(id)
		cancel()
		c.Close()
		ctl.pumps.Done()
	}()

	pongWait := ctl.opts.PingPeriod * 10 / 9
	if ctl.opts.ReadLimit > 0 {
		c.conn.SetReadLimit(ctl.opts.ReadLimit)
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Str("conn", string(id)).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Warn().Err(err).Str("module", "signal").Str("conn", string(id)).Msg("readPump read error")
				}
				return
			}
			if !ctl.limiter.Allow(id) {
				ctl.sendError(c, protocol.CodeRateLimited, "slow down")
				continue
			}
			ctl.dispatch(id, c, data)
		}
	}
}

func (ctl *SignalWSController) dispatch(id domain.ConnID, c *WsSignalConn, data []byte) {
	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("conn", string(id)).Msg("bad json")
		ctl.sendError(c, protocol.CodeBadPayload, "invalid json")
		return
	}

	switch env.Type {
	case protocol.TypeJoin:
		ctl.handleJoin(id, c, data)
	case protocol.TypeLeave:
		ctl.handleLeave(id, c)
	case protocol.TypeSignal:
		ctl.handleRelay(id, c, data)
	case protocol.TypePing:
		ctl.handlePing(c)
	case protocol.TypeWhoAmI:
		ctl.handleWhoAmI(id, c)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown signal")
		ctl.sendError(c, protocol.CodeUnknownType, env.Type)
	}
}
