package core

import (
	"sort"
	"sync"

	"github.com/dkeye/Interview/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// JoinResult describes a committed join.
// Existing is the member set as it was before the join.
type JoinResult struct {
	Room     domain.RoomID
	Member   domain.Member
	Existing []domain.Member
	Created  bool
	RecordID domain.RecordID
	Refs     domain.ExternalRefs
}

// LeaveResult describes a committed leave.
type LeaveResult struct {
	Room      domain.RoomID
	Member    domain.Member
	Remaining []domain.Member
	Emptied   bool
	RecordID  domain.RecordID
}

type RoomInfo struct {
	Name        domain.RoomID `json:"name"`
	MemberCount int           `json:"client_count"`
}

// Table maps rooms to their members.
// Mutations of one room are serialized by the room lock; different rooms proceed in parallel.
// The table lock is never held while waiting on a room lock.
type Table struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]*room
	where map[domain.ConnID]domain.RoomID

	newRecordID func() domain.RecordID
}

func NewTable() *Table {
	return &Table{
		rooms:       make(map[domain.RoomID]*room),
		where:       make(map[domain.ConnID]domain.RoomID),
		newRecordID: func() domain.RecordID { return domain.RecordID(uuid.NewString()) },
	}
}

// acquire returns the live room for id locked, creating it if needed.
func (t *Table) acquire(id domain.RoomID) *room {
	for {
		t.mu.Lock()
		r, ok := t.rooms[id]
		if !ok {
			r = newRoom(id)
			t.rooms[id] = r
		}
		t.mu.Unlock()

		r.mu.Lock()
		if !r.closed {
			return r
		}
		// Lost the race with the last leave; it already dropped r from the map.
		r.mu.Unlock()
	}
}

// Join adds m to room id. commit runs once the member is visible in the table
// and before any later mutation of the same room.
func (t *Table) Join(id domain.RoomID, m domain.Member, refs domain.ExternalRefs, commit func(JoinResult)) error {
	if err := domain.ValidateRoomID(id); err != nil {
		return err
	}

	t.mu.Lock()
	if _, ok := t.where[m.ConnID]; ok {
		t.mu.Unlock()
		return domain.ErrAlreadyInRoom
	}
	t.where[m.ConnID] = id
	t.mu.Unlock()

	r := t.acquire(id)
	defer r.mu.Unlock()

	res := JoinResult{Room: id, Existing: r.snapshot()}
	if len(r.members) == 0 {
		r.recordID = t.newRecordID()
		r.refs = refs
		res.Created = true
	}
	m.RecordID = r.recordID
	r.members[m.ConnID] = m

	res.Member = m
	res.RecordID = r.recordID
	res.Refs = r.refs

	log.Info().Str("module", "core.table").Str("conn", string(m.ConnID)).Str("room", string(id)).
		Bool("created", res.Created).Int("members", len(r.members)).Msg("member added")

	if commit != nil {
		commit(res)
	}
	return nil
}

// Leave removes the connection from its room and deletes the room once empty.
func (t *Table) Leave(conn domain.ConnID, commit func(LeaveResult)) (domain.RoomID, error) {
	t.mu.RLock()
	id, ok := t.where[conn]
	r := t.rooms[id]
	t.mu.RUnlock()
	if !ok || r == nil {
		return "", domain.ErrNotInRoom
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.members[conn]
	if !ok {
		return "", domain.ErrNotInRoom
	}
	delete(r.members, conn)
	res := LeaveResult{
		Room:      id,
		Member:    m,
		Remaining: r.snapshot(),
		Emptied:   len(r.members) == 0,
		RecordID:  m.RecordID,
	}

	t.mu.Lock()
	delete(t.where, conn)
	if res.Emptied {
		r.closed = true
		if t.rooms[id] == r {
			delete(t.rooms, id)
		}
	}
	t.mu.Unlock()

	log.Info().Str("module", "core.table").Str("conn", string(conn)).Str("room", string(id)).
		Bool("emptied", res.Emptied).Int("members", len(r.members)).Msg("member removed")

	if commit != nil {
		commit(res)
	}
	return id, nil
}

// RoomOf reports the room the connection currently belongs to.
func (t *Table) RoomOf(conn domain.ConnID) (domain.RoomID, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	id, ok := t.where[conn]
	if !ok {
		return "", false
	}
	if _, live := t.rooms[id]; !live {
		return "", false
	}
	return id, true
}

// Members returns a snapshot of the room, nil when the room does not exist.
func (t *Table) Members(id domain.RoomID) []domain.Member {
	t.mu.RLock()
	r, ok := t.rooms[id]
	t.mu.RUnlock()
	if !ok {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	return r.snapshot()
}

func (t *Table) List() []RoomInfo {
	t.mu.RLock()
	rooms := make([]*room, 0, len(t.rooms))
	for _, r := range t.rooms {
		rooms = append(rooms, r)
	}
	t.mu.RUnlock()

	out := make([]RoomInfo, 0, len(rooms))
	for _, r := range rooms {
		r.mu.Lock()
		n := len(r.members)
		closed := r.closed
		r.mu.Unlock()
		if closed || n == 0 {
			continue
		}
		out = append(out, RoomInfo{Name: r.id, MemberCount: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len is the number of live rooms.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rooms)
}

// MemberCount is the number of connections placed in a room.
func (t *Table) MemberCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.where)
}
