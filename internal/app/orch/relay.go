package orch

import (
	"github.com/dkeye/Interview/internal/domain"
	"github.com/dkeye/Interview/internal/protocol"
	"github.com/rs/zerolog/log"
)

// Relay forwards payload from one connection to another untouched.
// The sender must be in a room; a destination that is gone is dropped silently.
func (o *Orchestrator) Relay(from, to domain.ConnID, payload []byte) error {
	if _, ok := o.Rooms.RoomOf(from); !ok {
		return domain.ErrNotInRoom
	}
	delivered := o.deliver(to, protocol.SignalFrame(from, payload))
	o.Metrics.RecordSignal(delivered)
	if !delivered {
		log.Debug().Str("module", "orch").Str("from", string(from)).Str("to", string(to)).Msg("signal dropped")
	}
	return nil
}
