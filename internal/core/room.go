package core

import (
	"cmp"
	"slices"
	"sync"

	"github.com/dkeye/Interview/internal/domain"
)

// room is the live state of one occupancy.
// All fields below mu are guarded by it; closed rooms are never reused.
type room struct {
	id domain.RoomID

	mu       sync.Mutex
	recordID domain.RecordID
	refs     domain.ExternalRefs
	members  map[domain.ConnID]domain.Member
	closed   bool
}

func newRoom(id domain.RoomID) *room {
	return &room{id: id, members: make(map[domain.ConnID]domain.Member)}
}

// snapshot returns members ordered by join time. Caller holds mu.
func (r *room) snapshot() []domain.Member {
	out := make([]domain.Member, 0, len(r.members))
	for _, m := range r.members {
		out = append(out, m)
	}
	slices.SortFunc(out, func(a, b domain.Member) int {
		if c := a.JoinTime.Compare(b.JoinTime); c != 0 {
			return c
		}
		return cmp.Compare(a.ConnID, b.ConnID)
	})
	return out
}
