package app

import (
	"context"
	"sync"

	"github.com/dkeye/Interview/internal/core"
	"github.com/dkeye/Interview/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type connEntry struct {
	Signal      core.SignalConnection
	ClientToken string
	Cancel      context.CancelFunc
}

// Registry tracks live transport connections by their ephemeral id.
// Room membership lives in core.Table; the registry only knows how to reach a connection.
type Registry struct {
	mu    sync.RWMutex
	conns map[domain.ConnID]*connEntry

	newID func() domain.ConnID
}

func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[domain.ConnID]*connEntry),
		newID: func() domain.ConnID { return domain.ConnID(uuid.NewString()) },
	}
}

// Register assigns a fresh id to the connection.
func (r *Registry) Register(sig core.SignalConnection, clientToken string, cancel context.CancelFunc) domain.ConnID {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.newID()
	for _, taken := r.conns[id]; taken; _, taken = r.conns[id] {
		id = r.newID()
	}
	r.conns[id] = &connEntry{Signal: sig, ClientToken: clientToken, Cancel: cancel}
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Str("client", clientToken).Msg("registered connection")
	return id
}

// Unregister is idempotent; it reports whether the id was live.
func (r *Registry) Unregister(id domain.ConnID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[id]; !ok {
		return false
	}
	delete(r.conns, id)
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Msg("unregistered connection")
	return true
}

func (r *Registry) Lookup(id domain.ConnID) (core.SignalConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.conns[id]; ok {
		return e.Signal, true
	}
	return nil, false
}

func (r *Registry) ClientToken(id domain.ConnID) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.conns[id]; ok {
		return e.ClientToken, true
	}
	return "", false
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Cancel stops the connection's pumps. The connection stays registered until its
// disconnect cleanup unregisters it.
func (r *Registry) Cancel(id domain.ConnID) bool {
	r.mu.RLock()
	e, ok := r.conns[id]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Msg("canceled connection")
	return true
}
