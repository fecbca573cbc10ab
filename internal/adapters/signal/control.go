package signal

import (
	"github.com/dkeye/Interview/internal/domain"
	"github.com/dkeye/Interview/internal/protocol"
)

func (ctl *SignalWSController) handlePing(
	conn *WsSignalConn,
) {
	ctl.sendJSON(conn, protocol.Envelope{Type: protocol.TypePong})
}

func (ctl *SignalWSController) handleWhoAmI(
	id domain.ConnID,
	conn *WsSignalConn,
) {
	resp := protocol.WhoAmI{Type: protocol.TypeWhoAmI, ID: id}
	if room, ok := ctl.Orch.RoomOf(id); ok {
		resp.Room = room
	}
	ctl.sendJSON(conn, resp)
}
