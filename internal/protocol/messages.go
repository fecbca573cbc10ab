// Package protocol defines the JSON frames exchanged over the signaling socket.
package protocol

import (
	"encoding/json"

	"github.com/dkeye/Interview/internal/core"
	"github.com/dkeye/Interview/internal/domain"
	"github.com/pion/webrtc/v4"
)

const (
	TypeWelcome       = "welcome"
	TypeJoin          = "join"
	TypeExistingUsers = "existing-users"
	TypeUserJoined    = "user-joined"
	TypeUserLeft      = "user-left"
	TypeSignal        = "signal"
	TypeLeave         = "leave"
	TypeLeft          = "left"
	TypePing          = "ping"
	TypePong          = "pong"
	TypeWhoAmI        = "whoami"
	TypeError         = "error"
)

// Error codes carried by TypeError frames.
const (
	CodeBadPayload    = "bad_payload"
	CodeUnknownType   = "unknown_type"
	CodeAlreadyInRoom = "already_in_room"
	CodeNotInRoom     = "not_in_room"
	CodeBadRoom       = "bad_room"
	CodeBadPeer       = "bad_peer"
	CodeRateLimited   = "rate_limited"
	CodeInternal      = "internal"
)

type Envelope struct {
	Type string `json:"type"`
}

type JoinRequest struct {
	Type        string `json:"type"`
	Room        string `json:"room"`
	PeerID      string `json:"peer_id"`
	CandidateID string `json:"candidate_id"`
	JobID       string `json:"job_id"`
	Role        string `json:"role"`
}

// SignalRequest keeps the payload as raw bytes; it is never decoded.
type SignalRequest struct {
	Type    string          `json:"type"`
	To      domain.ConnID   `json:"to"`
	Payload json.RawMessage `json:"payload"`
}

type Welcome struct {
	Type       string             `json:"type"`
	ID         domain.ConnID      `json:"id"`
	ICEServers []webrtc.ICEServer `json:"ice_servers"`
}

type ExistingUsers struct {
	Type  string          `json:"type"`
	Users []domain.ConnID `json:"users"`
}

type UserJoined struct {
	Type   string        `json:"type"`
	ID     domain.ConnID `json:"id"`
	PeerID string        `json:"peer_id,omitempty"`
	Role   domain.Role   `json:"role,omitempty"`
}

type UserLeft struct {
	Type string        `json:"type"`
	ID   domain.ConnID `json:"id"`
}

type WhoAmI struct {
	Type string        `json:"type"`
	ID   domain.ConnID `json:"id"`
	Room domain.RoomID `json:"room,omitempty"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func Encode(v any) (core.Frame, error) {
	return json.Marshal(v)
}

func NewError(code, msg string) ErrorMessage {
	return ErrorMessage{Type: TypeError, Error: code, Message: msg}
}

// SignalFrame wraps payload for delivery without re-encoding it, so the peer
// receives exactly the bytes the sender emitted.
func SignalFrame(from domain.ConnID, payload []byte) core.Frame {
	id, _ := json.Marshal(string(from))
	f := make(core.Frame, 0, len(`{"type":"signal","from":,"payload":}`)+len(id)+len(payload))
	f = append(f, `{"type":"signal","from":`...)
	f = append(f, id...)
	f = append(f, `,"payload":`...)
	f = append(f, payload...)
	f = append(f, '}')
	return f
}
