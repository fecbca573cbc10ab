package ledger

import (
	"time"

	"github.com/dkeye/Interview/internal/domain"
)

type Kind int

const (
	KindOpen Kind = iota + 1
	KindAppend
	KindLeft
	KindClose
)

func (k Kind) String() string {
	switch k {
	case KindOpen:
		return "open"
	case KindAppend:
		return "append"
	case KindLeft:
		return "left"
	case KindClose:
		return "close"
	}
	return "unknown"
}

// Event is one lifecycle change of a room occupancy.
// Record is the id captured when the occupancy opened; an empty Record falls back
// to the open-status lookup of the store.
type Event struct {
	Kind        Kind
	Room        domain.RoomID
	Record      domain.RecordID
	Refs        domain.ExternalRefs
	Participant domain.ParticipantEntry
	At          time.Time
}

func OpenEvent(room domain.RoomID, record domain.RecordID, refs domain.ExternalRefs, m domain.Member) Event {
	return Event{Kind: KindOpen, Room: room, Record: record, Refs: refs, Participant: domain.ParticipantFromMember(m), At: m.JoinTime}
}

func AppendEvent(room domain.RoomID, record domain.RecordID, m domain.Member) Event {
	return Event{Kind: KindAppend, Room: room, Record: record, Participant: domain.ParticipantFromMember(m), At: m.JoinTime}
}

func LeftEvent(room domain.RoomID, record domain.RecordID, m domain.Member, at time.Time) Event {
	return Event{Kind: KindLeft, Room: room, Record: record, Participant: domain.ParticipantFromMember(m), At: at}
}

func CloseEvent(room domain.RoomID, record domain.RecordID, m domain.Member, at time.Time) Event {
	return Event{Kind: KindClose, Room: room, Record: record, Participant: domain.ParticipantFromMember(m), At: at}
}
