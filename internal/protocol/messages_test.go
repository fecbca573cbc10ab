package protocol

import (
	"encoding/json"
	"testing"

	"github.com/dkeye/Interview/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignalFrameKeepsPayloadBytes(t *testing.T) {
	payloads := []string{
		`"x"`,
		`42`,
		`null`,
		`{ "sdp" : "v=0\r\no=- 1 2 IN IP4 127.0.0.1",   "type":"offer" }`,
		`{"candidate":"<tag>&amp;","sdpMLineIndex":0}`,
		`[1, 2, 3]`,
	}
	for _, p := range payloads {
		f := SignalFrame("conn-1", []byte(p))
		assert.Equal(t, `{"type":"signal","from":"conn-1","payload":`+p+`}`, string(f))

		var got struct {
			Type    string          `json:"type"`
			From    domain.ConnID   `json:"from"`
			Payload json.RawMessage `json:"payload"`
		}
		require.NoError(t, json.Unmarshal(f, &got), p)
		assert.Equal(t, TypeSignal, got.Type)
		assert.Equal(t, domain.ConnID("conn-1"), got.From)
		assert.Equal(t, p, string(got.Payload))
	}
}

func TestSignalFrameEscapesSender(t *testing.T) {
	f := SignalFrame(`we"ird`, []byte(`1`))
	var got map[string]any
	require.NoError(t, json.Unmarshal(f, &got))
	assert.Equal(t, `we"ird`, got["from"])
}

func TestEncodeExistingUsersIsNeverNull(t *testing.T) {
	f, err := Encode(ExistingUsers{Type: TypeExistingUsers, Users: []domain.ConnID{}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"existing-users","users":[]}`, string(f))
}

func TestNewError(t *testing.T) {
	f, err := Encode(NewError(CodeNotInRoom, "join a room first"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"error","error":"not_in_room","message":"join a room first"}`, string(f))
}
