package app

import (
	"context"
	"testing"

	"github.com/dkeye/Interview/internal/core"
	"github.com/dkeye/Interview/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopConn struct{ closed bool }

func (c *nopConn) TrySend(core.Frame) error { return nil }
func (c *nopConn) Close()                   { c.closed = true }

func TestRegisterAssignsDistinctIDs(t *testing.T) {
	reg := NewRegistry()
	a := reg.Register(&nopConn{}, "token-a", nil)
	b := reg.Register(&nopConn{}, "token-a", nil)

	assert.NotEqual(t, a, b)
	assert.Equal(t, 2, reg.Count())

	token, ok := reg.ClientToken(b)
	require.True(t, ok)
	assert.Equal(t, "token-a", token)
}

func TestRegisterRetriesOnCollision(t *testing.T) {
	reg := NewRegistry()
	ids := []string{"dup", "dup", "fresh"}
	reg.newID = func() domain.ConnID {
		id := ids[0]
		ids = ids[1:]
		return domain.ConnID(id)
	}
	assert.Equal(t, domain.ConnID("dup"), reg.Register(&nopConn{}, "", nil))
	assert.Equal(t, domain.ConnID("fresh"), reg.Register(&nopConn{}, "", nil))
}

func TestUnregisterIsIdempotent(t *testing.T) {
	reg := NewRegistry()
	conn := &nopConn{}
	id := reg.Register(conn, "", nil)

	got, ok := reg.Lookup(id)
	require.True(t, ok)
	assert.Same(t, conn, got)

	assert.True(t, reg.Unregister(id))
	assert.False(t, reg.Unregister(id))
	assert.False(t, reg.Unregister("never-seen"))

	_, ok = reg.Lookup(id)
	assert.False(t, ok)
	assert.Equal(t, 0, reg.Count())
}

func TestCancelInvokesCancelFunc(t *testing.T) {
	reg := NewRegistry()
	ctx, cancel := context.WithCancel(context.Background())
	id := reg.Register(&nopConn{}, "", cancel)

	assert.True(t, reg.Cancel(id))
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
	assert.False(t, reg.Cancel("missing"))
}
