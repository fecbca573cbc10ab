package ledger

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/dkeye/Interview/internal/domain"
	"github.com/rs/zerolog/log"
)

// MemStore keeps records in process memory. It backs the "memory" store driver and tests.
type MemStore struct {
	mu      sync.Mutex
	records []*domain.SessionRecord
}

func NewMemStore() *MemStore { return &MemStore{} }

// find returns the record by id, or the open record of room when id is empty. Caller holds mu.
func (s *MemStore) find(room domain.RoomID, id domain.RecordID) (*domain.SessionRecord, error) {
	for _, r := range s.records {
		if id != "" && r.ID == id {
			return r, nil
		}
		if id == "" && r.RoomID == room && r.Open() {
			return r, nil
		}
	}
	return nil, domain.ErrRecordNotFound
}

func (s *MemStore) OpenSession(_ context.Context, rec domain.SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.ID == rec.ID {
			return nil
		}
	}
	// The close of the previous occupancy was lost; end it where the new one starts.
	for _, r := range s.records {
		if r.RoomID == rec.RoomID && r.Open() {
			closeRecord(r, rec.StartTime)
			log.Warn().Str("module", "ledger.memstore").Str("room", string(rec.RoomID)).
				Str("record", string(r.ID)).Str("next", string(rec.ID)).Msg("closed stale open record")
		}
	}
	rec.Participants = slices.Clone(rec.Participants)
	s.records = append(s.records, &rec)
	return nil
}

func (s *MemStore) AppendParticipant(_ context.Context, room domain.RoomID, id domain.RecordID, p domain.ParticipantEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.find(room, id)
	if err != nil {
		return err
	}
	r.Participants = append(r.Participants, p)
	return nil
}

func (s *MemStore) MarkLeft(_ context.Context, room domain.RoomID, id domain.RecordID, conn domain.ConnID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.find(room, id)
	if err != nil {
		return err
	}
	return markLeft(r, conn, at)
}

func (s *MemStore) CloseSession(_ context.Context, room domain.RoomID, id domain.RecordID, conn domain.ConnID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.find(room, id)
	if err != nil {
		return err
	}
	if conn != "" {
		_ = markLeft(r, conn, at)
	}
	end := at
	r.EndTime = &end
	return nil
}

// closeRecord ends r and everyone still in it at at.
func closeRecord(r *domain.SessionRecord, at time.Time) {
	for i := range r.Participants {
		if r.Participants[i].LeaveTime == nil {
			left := at
			r.Participants[i].LeaveTime = &left
		}
	}
	end := at
	r.EndTime = &end
}

func markLeft(r *domain.SessionRecord, conn domain.ConnID, at time.Time) error {
	for i := range r.Participants {
		p := &r.Participants[i]
		if p.ConnID == conn && p.LeaveTime == nil {
			left := at
			p.LeaveTime = &left
			return nil
		}
	}
	return domain.ErrRecordNotFound
}

func (s *MemStore) CloseStale(_ context.Context, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, r := range s.records {
		if r.Open() {
			closeRecord(r, at)
			n++
		}
	}
	return n, nil
}

// ListSessions returns the records of room, newest first.
func (s *MemStore) ListSessions(_ context.Context, room domain.RoomID) ([]domain.SessionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.SessionRecord
	for i := len(s.records) - 1; i >= 0; i-- {
		r := s.records[i]
		if r.RoomID != room {
			continue
		}
		cp := *r
		cp.Participants = slices.Clone(r.Participants)
		out = append(out, cp)
	}
	return out, nil
}
