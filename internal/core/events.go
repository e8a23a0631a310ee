package core

import "github.com/dkeye/Meet/internal/domain"

// Event is one inbound edge from the signaling adapter. Only the variants
// below implement it, so the coordinator dispatches on the concrete type
// and a new event kind is a compile-time addition, not a string match.
type Event interface{ isEvent() }

// Connected fires on every successful (re)attachment to the signaling channel.
type Connected struct {
	ConnectionID domain.ConnectionID
}

// Disconnected fires when the attachment drops. Terminal means the adapter
// gave up (explicit close or retry exhaustion) and no redial will follow.
type Disconnected struct {
	Terminal bool
}

// ParticipantInfo is the wire shape shared by the snapshot and join events.
type ParticipantInfo struct {
	ConnectionID domain.ConnectionID `json:"connectionId"`
	UserID       domain.UserID       `json:"userId,omitempty"`
	DisplayName  string              `json:"displayName,omitempty"`
	PeerID       domain.PeerID       `json:"peerSessionId,omitempty"`
	MediaEnabled bool                `json:"mediaEnabled,omitempty"`
}

// ExistingParticipants is the room snapshot delivered once after a join.
type ExistingParticipants struct {
	Participants []ParticipantInfo
}

type ParticipantJoined struct {
	Participant ParticipantInfo
}

type ParticipantLeft struct {
	ConnectionID domain.ConnectionID
}

type MessageReceived struct {
	Sender   string
	SenderID domain.UserID
	Body     string
	Time     string
}

type PresenceUpdated struct {
	ConnectionID domain.ConnectionID
	UserID       domain.UserID
	Kind         MediaKind
	Enabled      bool
}

// RoomFault carries roomError/messageError advisories from the server.
// Advisory only, never fatal to the coordinator.
type RoomFault struct {
	Reason string
}

func (Connected) isEvent()            {}
func (Disconnected) isEvent()         {}
func (ExistingParticipants) isEvent() {}
func (ParticipantJoined) isEvent()    {}
func (ParticipantLeft) isEvent()      {}
func (MessageReceived) isEvent()      {}
func (PresenceUpdated) isEvent()      {}
func (RoomFault) isEvent()            {}

// Outbound is one message the coordinator pushes onto the signaling channel.
type Outbound interface{ isOutbound() }

type JoinRoom struct {
	RoomID      domain.RoomID
	DisplayName string
	UserID      domain.UserID
}

type LeaveRoom struct {
	RoomID domain.RoomID
}

type SendMessage struct {
	RoomID   domain.RoomID
	Sender   string
	SenderID domain.UserID
	Body     string
	Token    string
}

type PresenceUpdate struct {
	Kind    MediaKind
	Enabled bool
}

func (JoinRoom) isOutbound()       {}
func (LeaveRoom) isOutbound()      {}
func (SendMessage) isOutbound()    {}
func (PresenceUpdate) isOutbound() {}
