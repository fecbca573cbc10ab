package orch

import (
	"errors"
	"time"

	"github.com/dkeye/Interview/internal/app"
	"github.com/dkeye/Interview/internal/core"
	"github.com/dkeye/Interview/internal/domain"
	"github.com/dkeye/Interview/internal/ledger"
	"github.com/dkeye/Interview/internal/metrics"
	"github.com/dkeye/Interview/internal/protocol"
	"github.com/rs/zerolog/log"
)

// Ledger receives lifecycle events. Submit must not block.
type Ledger interface {
	Submit(ledger.Event) bool
}

type Orchestrator struct {
	Registry *app.Registry
	Rooms    *core.Table
	Policy   app.Policy
	Ledger   Ledger
	Metrics  *metrics.Metrics
	Now      func() time.Time
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now().UTC()
}

func (o *Orchestrator) record(ev ledger.Event) {
	if o.Ledger == nil {
		return
	}
	o.Ledger.Submit(ev)
}

// send encodes v and delivers it to id.
func (o *Orchestrator) send(id domain.ConnID, v any) bool {
	f, err := protocol.Encode(v)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Msg("encode frame")
		return false
	}
	return o.deliver(id, f)
}

// deliver hands f to the connection's ordered outbound queue. A full queue is
// resolved by the policy; a missing connection is reported as not delivered.
func (o *Orchestrator) deliver(id domain.ConnID, f core.Frame) bool {
	sig, ok := o.Registry.Lookup(id)
	if !ok {
		return false
	}
	err := sig.TrySend(f)
	if err == nil {
		return true
	}
	if errors.Is(err, core.ErrBackpressure) {
		o.Metrics.RecordBackpressure()
		if o.Policy != nil && o.Policy.OnBackPressure(id) == app.KickMember {
			log.Warn().Str("module", "orch").Str("conn", string(id)).Msg("kicking slow connection")
			sig.Close()
		}
	}
	return false
}

// OnConnect sends the new connection its id.
func (o *Orchestrator) OnConnect(id domain.ConnID, welcome protocol.Welcome) {
	welcome.Type = protocol.TypeWelcome
	welcome.ID = id
	o.send(id, welcome)
	o.Metrics.SetConnections(o.Registry.Count())
}

// OnDisconnect runs the leave cleanup and forgets the connection. Safe to call twice.
func (o *Orchestrator) OnDisconnect(id domain.ConnID) {
	if _, err := o.Leave(id); err != nil && !errors.Is(err, domain.ErrNotInRoom) {
		log.Error().Err(err).Str("module", "orch").Str("conn", string(id)).Msg("leave on disconnect")
	}
	if o.Registry.Unregister(id) {
		o.Metrics.SetConnections(o.Registry.Count())
	}
}
