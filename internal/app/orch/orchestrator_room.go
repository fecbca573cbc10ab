package orch

import (
	"github.com/dkeye/Interview/internal/core"
	"github.com/dkeye/Interview/internal/domain"
	"github.com/dkeye/Interview/internal/ledger"
	"github.com/dkeye/Interview/internal/protocol"
	"github.com/rs/zerolog/log"
)

type JoinRequest struct {
	Room    domain.RoomID
	PeerTag string
	Role    domain.Role
	Refs    domain.ExternalRefs
}

// Join adds the connection to a room and runs the mesh plan: the joiner gets the
// ids of everyone already present and initiates toward each of them; those members
// only learn that a newcomer arrived.
func (o *Orchestrator) Join(id domain.ConnID, req JoinRequest) ([]domain.Member, error) {
	m, err := domain.NewMember(id, req.PeerTag, req.Role, o.now())
	if err != nil {
		o.Metrics.RecordJoinRejected()
		return nil, err
	}

	var existing []domain.Member
	err = o.Rooms.Join(req.Room, m, req.Refs, func(res core.JoinResult) {
		existing = res.Existing

		ids := make([]domain.ConnID, 0, len(res.Existing))
		for _, peer := range res.Existing {
			ids = append(ids, peer.ConnID)
		}
		o.send(id, protocol.ExistingUsers{Type: protocol.TypeExistingUsers, Users: ids})

		if len(res.Existing) > 0 {
			notice, err := protocol.Encode(protocol.UserJoined{
				Type:   protocol.TypeUserJoined,
				ID:     id,
				PeerID: res.Member.PeerTag,
				Role:   res.Member.Role,
			})
			if err == nil {
				for _, peer := range res.Existing {
					o.deliver(peer.ConnID, notice)
				}
			}
		}

		if res.Created {
			o.record(ledger.OpenEvent(res.Room, res.RecordID, res.Refs, res.Member))
		} else {
			o.record(ledger.AppendEvent(res.Room, res.RecordID, res.Member))
		}
	})
	if err != nil {
		o.Metrics.RecordJoinRejected()
		log.Warn().Err(err).Str("module", "orch").Str("conn", string(id)).Str("room", string(req.Room)).Msg("join rejected")
		return nil, err
	}

	o.Metrics.RecordJoin()
	o.Metrics.SetRooms(o.Rooms.Len())
	o.Metrics.SetMembers(o.Rooms.MemberCount())
	log.Info().Str("module", "orch").Str("conn", string(id)).Str("room", string(req.Room)).
		Int("existing", len(existing)).Msg("joined")
	return existing, nil
}

// Leave removes the connection from its room and tells the remaining members.
func (o *Orchestrator) Leave(id domain.ConnID) (domain.RoomID, error) {
	room, err := o.Rooms.Leave(id, func(res core.LeaveResult) {
		at := o.now()
		if len(res.Remaining) > 0 {
			notice, err := protocol.Encode(protocol.UserLeft{Type: protocol.TypeUserLeft, ID: id})
			if err == nil {
				for _, peer := range res.Remaining {
					o.deliver(peer.ConnID, notice)
				}
			}
		}

		if res.Emptied {
			o.record(ledger.CloseEvent(res.Room, res.RecordID, res.Member, at))
		} else {
			o.record(ledger.LeftEvent(res.Room, res.RecordID, res.Member, at))
		}
	})
	if err != nil {
		return "", err
	}

	o.Metrics.RecordLeave()
	o.Metrics.SetRooms(o.Rooms.Len())
	o.Metrics.SetMembers(o.Rooms.MemberCount())
	log.Info().Str("module", "orch").Str("conn", string(id)).Str("room", string(room)).Msg("left")
	return room, nil
}

// RoomOf reports the connection's current room.
func (o *Orchestrator) RoomOf(id domain.ConnID) (domain.RoomID, bool) {
	return o.Rooms.RoomOf(id)
}
