package domain

import "time"

type (
	RoomID   string
	ConnID   string
	RecordID string
	Role     string
)

const (
	RoleInterviewer Role = "interviewer"
	RoleInterviewee Role = "interviewee"
)

const (
	MaxRoomIDLen  = 128
	MaxPeerTagLen = 128
)

// ExternalRefs seed a session record. Only the first join of an occupancy sets them.
type ExternalRefs struct {
	CandidateID string `json:"candidate_id"`
	JobID       string `json:"job_id"`
}

// Member is one live entry of a room.
// RecordID is the session record that was open when the member joined.
type Member struct {
	ConnID   ConnID    `json:"id"`
	PeerTag  string    `json:"peer_id"`
	Role     Role      `json:"role"`
	JoinTime time.Time `json:"join_time"`
	RecordID RecordID  `json:"-"`
}

// NewMember validates client supplied fields.
func NewMember(id ConnID, peerTag string, role Role, now time.Time) (Member, error) {
	if len(peerTag) > MaxPeerTagLen {
		return Member{}, ErrPeerTagTooLong
	}
	if role == "" {
		role = RoleInterviewee
	}
	return Member{ConnID: id, PeerTag: peerTag, Role: role, JoinTime: now}, nil
}

// ValidateRoomID rejects ids that cannot name a room.
func ValidateRoomID(id RoomID) error {
	if id == "" {
		return ErrEmptyRoom
	}
	if len(id) > MaxRoomIDLen {
		return ErrRoomIDTooLong
	}
	return nil
}
