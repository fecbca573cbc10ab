package ledger

import (
	"context"
	"time"

	"github.com/dkeye/Interview/internal/domain"
)

// Store is the durable side of the ledger.
//
// AppendParticipant, MarkLeft and CloseSession address a record by id. When record is
// empty they fall back to the record of room whose end time is null; that lookup is
// ambiguous while an old occupancy is still closing and is only a best-effort path.
// Implementations return domain.ErrRecordNotFound when no record matches.
//
// OpenSession ends any record of the room that is still open at rec.StartTime, so a
// lost close never blocks the next occupancy. Opening an existing record id is a no-op.
type Store interface {
	OpenSession(ctx context.Context, rec domain.SessionRecord) error
	AppendParticipant(ctx context.Context, room domain.RoomID, record domain.RecordID, p domain.ParticipantEntry) error
	MarkLeft(ctx context.Context, room domain.RoomID, record domain.RecordID, conn domain.ConnID, at time.Time) error
	CloseSession(ctx context.Context, room domain.RoomID, record domain.RecordID, conn domain.ConnID, at time.Time) error
	// CloseStale ends every record still open, returning how many were closed.
	CloseStale(ctx context.Context, at time.Time) (int64, error)
	ListSessions(ctx context.Context, room domain.RoomID) ([]domain.SessionRecord, error)
}
