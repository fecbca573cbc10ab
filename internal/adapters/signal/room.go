package signal

import (
	"encoding/json"
	"errors"

	"github.com/dkeye/Interview/internal/app/orch"
	"github.com/dkeye/Interview/internal/domain"
	"github.com/dkeye/Interview/internal/protocol"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) handleJoin(
	id domain.ConnID,
	conn *WsSignalConn,
	data []byte,
) {
	var p protocol.JoinRequest
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad join payload")
		ctl.sendError(conn, protocol.CodeBadPayload, "bad join payload")
		return
	}

	_, err := ctl.Orch.Join(id, orch.JoinRequest{
		Room:    domain.RoomID(p.Room),
		PeerTag: ctl.peerTag(id, p.PeerID),
		Role:    domain.Role(p.Role),
		Refs:    domain.ExternalRefs{CandidateID: p.CandidateID, JobID: p.JobID},
	})
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrAlreadyInRoom):
		ctl.sendError(conn, protocol.CodeAlreadyInRoom, err.Error())
	case errors.Is(err, domain.ErrEmptyRoom), errors.Is(err, domain.ErrRoomIDTooLong):
		ctl.sendError(conn, protocol.CodeBadRoom, err.Error())
	case errors.Is(err, domain.ErrPeerTagTooLong):
		ctl.sendError(conn, protocol.CodeBadPeer, err.Error())
	default:
		ctl.sendError(conn, protocol.CodeInternal, "join failed")
	}
}

// handleLeave leaves the current room; the socket stays open.
func (ctl *SignalWSController) handleLeave(
	id domain.ConnID,
	conn *WsSignalConn,
) {
	if _, err := ctl.Orch.Leave(id); err != nil {
		ctl.sendError(conn, protocol.CodeNotInRoom, err.Error())
		return
	}
	ctl.sendJSON(conn, protocol.Envelope{Type: protocol.TypeLeft})
}

func (ctl *SignalWSController) handleRelay(
	id domain.ConnID,
	conn *WsSignalConn,
	data []byte,
) {
	var p protocol.SignalRequest
	if err := json.Unmarshal(data, &p); err != nil || p.To == "" || len(p.Payload) == 0 {
		ctl.sendError(conn, protocol.CodeBadPayload, "signal needs to and payload")
		return
	}
	if err := ctl.Orch.Relay(id, p.To, p.Payload); err != nil {
		ctl.sendError(conn, protocol.CodeNotInRoom, err.Error())
	}
}
