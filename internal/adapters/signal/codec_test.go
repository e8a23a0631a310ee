package signal

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Meet/internal/core"
)

func TestDecodeExistingParticipants(t *testing.T) {
	raw := `{
		"type": "existing-participants",
		"participants": [
			{"connectionId": "c1", "userId": "u1", "displayName": "Juan", "peerSessionId": "p1", "mediaEnabled": true},
			{"connectionId": "c2"}
		]
	}`
	ev, err := Decode([]byte(raw))
	require.NoError(t, err)

	snap, ok := ev.(core.ExistingParticipants)
	require.True(t, ok)
	require.Len(t, snap.Participants, 2)
	assert.Equal(t, "Juan", snap.Participants[0].DisplayName)
	assert.EqualValues(t, "p1", snap.Participants[0].PeerID)
	assert.True(t, snap.Participants[0].MediaEnabled)
	assert.EqualValues(t, "c2", snap.Participants[1].ConnectionID)
}

func TestDecodeParticipantJoined(t *testing.T) {
	raw := `{"type": "participant-joined", "connectionId": "c3", "userId": "u3", "displayName": "Laura", "peerSessionId": "p3"}`
	ev, err := Decode([]byte(raw))
	require.NoError(t, err)

	joined, ok := ev.(core.ParticipantJoined)
	require.True(t, ok)
	assert.EqualValues(t, "c3", joined.Participant.ConnectionID)
	assert.EqualValues(t, "p3", joined.Participant.PeerID)
}

func TestDecodeParticipantLeft(t *testing.T) {
	ev, err := Decode([]byte(`{"type": "participant-left", "connectionId": "c3"}`))
	require.NoError(t, err)

	left, ok := ev.(core.ParticipantLeft)
	require.True(t, ok)
	assert.EqualValues(t, "c3", left.ConnectionID)
}

func TestDecodeReceiveMessage(t *testing.T) {
	raw := `{"type": "receiveMessage", "sender": "jane.doe@example.com", "senderId": "u7", "message": "hola", "time": "14:05"}`
	ev, err := Decode([]byte(raw))
	require.NoError(t, err)

	msg, ok := ev.(core.MessageReceived)
	require.True(t, ok)
	assert.Equal(t, "jane.doe@example.com", msg.Sender)
	assert.EqualValues(t, "u7", msg.SenderID)
	assert.Equal(t, "hola", msg.Body)
	assert.Equal(t, "14:05", msg.Time)
}

func TestDecodePresenceUpdate(t *testing.T) {
	raw := `{"type": "presence-update", "connectionId": "c1", "userId": "u1", "enabled": false, "kind": "video"}`
	ev, err := Decode([]byte(raw))
	require.NoError(t, err)

	pres, ok := ev.(core.PresenceUpdated)
	require.True(t, ok)
	assert.EqualValues(t, "c1", pres.ConnectionID)
	assert.Equal(t, core.MediaVideo, pres.Kind)
	assert.False(t, pres.Enabled)
}

func TestDecodeFaults(t *testing.T) {
	for _, kind := range []string{"roomError", "messageError"} {
		ev, err := Decode([]byte(`{"type": "` + kind + `", "error": "room is full"}`))
		require.NoError(t, err, kind)

		fault, ok := ev.(core.RoomFault)
		require.True(t, ok, kind)
		assert.Equal(t, "room is full", fault.Reason)
	}
}

func TestDecodeUnknownType(t *testing.T) {
	_, err := Decode([]byte(`{"type": "no-such-event"}`))
	require.ErrorIs(t, err, ErrUnknownEvent)
}

func TestDecodeBadEnvelope(t *testing.T) {
	_, err := Decode([]byte(`not json`))
	require.Error(t, err)
}

func TestEncodeJoin(t *testing.T) {
	data, err := Encode(core.JoinRoom{RoomID: "room-1", DisplayName: "Juan", UserID: "u1"})
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "join", got["type"])
	assert.Equal(t, "room-1", got["roomId"])
	assert.Equal(t, "Juan", got["displayName"])
	assert.Equal(t, "u1", got["userId"])
}

func TestEncodeSendMessageOmitsEmptyToken(t *testing.T) {
	data, err := Encode(core.SendMessage{RoomID: "room-1", Sender: "Juan", Body: "hola"})
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "sendMessage", got["type"])
	assert.Equal(t, "hola", got["message"])
	assert.NotContains(t, got, "token")
	assert.NotContains(t, got, "senderId")
}

func TestEncodePresenceUpdate(t *testing.T) {
	data, err := Encode(core.PresenceUpdate{Kind: core.MediaAudio, Enabled: true})
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "presence-update", got["type"])
	assert.Equal(t, "audio", got["kind"])
	assert.Equal(t, true, got["enabled"])
}

func TestEncodeLeave(t *testing.T) {
	data, err := Encode(core.LeaveRoom{RoomID: "room-1"})
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "leave", got["type"])
	assert.Equal(t, "room-1", got["roomId"])
}
