// Package domain contains entities without logic, just meta-data
package domain

import "time"

// SessionRecord is the durable shadow of one room occupancy.
// EndTime == nil means the occupancy is still open.
type SessionRecord struct {
	ID           RecordID           `json:"id"`
	RoomID       RoomID             `json:"room_id"`
	CandidateID  string             `json:"candidate_id"`
	JobID        string             `json:"job_id"`
	StartTime    time.Time          `json:"start_time"`
	EndTime      *time.Time         `json:"end_time"`
	Participants []ParticipantEntry `json:"participants"`
}

type ParticipantEntry struct {
	ConnID    ConnID     `json:"conn_id"`
	PeerTag   string     `json:"peer_id"`
	Role      Role       `json:"role"`
	JoinTime  time.Time  `json:"join_time"`
	LeaveTime *time.Time `json:"leave_time,omitempty"`
}

func (r *SessionRecord) Open() bool { return r.EndTime == nil }

// ParticipantFromMember builds the durable entry for a live member.
func ParticipantFromMember(m Member) ParticipantEntry {
	return ParticipantEntry{
		ConnID:   m.ConnID,
		PeerTag:  m.PeerTag,
		Role:     m.Role,
		JoinTime: m.JoinTime,
	}
}
