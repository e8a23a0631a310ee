package core

import (
	"context"

	"github.com/pion/webrtc/v4"

	"github.com/dkeye/Meet/internal/domain"
)

// SignalTransport owns the websocket lifecycle. Reconnect policy (bounded
// attempts, backoff) lives entirely in the adapter; the coordinator only
// reacts to Connected/Disconnected edges on the event stream.
type SignalTransport interface {
	// Connect is idempotent: a no-op while already connecting or connected.
	Connect(ctx context.Context) error
	// Close tears the socket down for good. The adapter emits a terminal
	// Disconnected edge and closes the event stream.
	Close() error
	Send(Outbound) error
	Events() <-chan Event
}

// MediaCapture is the caller-owned local capture handle. The coordinator
// holds a non-owning reference and attaches it to peer sessions by
// reference, so stopping a kind affects every attachment at once.
type MediaCapture interface {
	Tracks() []webrtc.TrackLocal
	Active() bool
}

// PeerSession is one established one-to-one media relationship.
type PeerSession interface {
	Remote() domain.PeerID
	// AttachOutbound adds the capture's tracks to the session.
	AttachOutbound(capture MediaCapture) error
	// SetOutbound pauses or resumes transmission of one kind without
	// renegotiating or closing the session.
	SetOutbound(kind MediaKind, enabled bool) error
	Close()
}

// IncomingCall is an offer from a remote peer awaiting an answer.
type IncomingCall interface {
	From() domain.PeerID
	// Answer accepts the offer. A nil capture answers empty-handed so the
	// remote side still receives an answer and stops retrying.
	Answer(capture MediaCapture) (PeerSession, error)
}

// PeerEngine abstracts the peer-negotiation subsystem. Its own id is
// assigned asynchronously after the subsystem initializes; AwaitID blocks
// initiation until it is present.
type PeerEngine interface {
	AwaitID(ctx context.Context) (domain.PeerID, error)
	Dial(ctx context.Context, remote domain.PeerID, capture MediaCapture) (PeerSession, error)
	// OnIncoming registers the single handler for inbound offers.
	OnIncoming(func(IncomingCall))
	Close()
}

// Listener is the contract exposed to presentation layers. Callbacks run
// on the coordinator loop; implementations must not block.
type Listener interface {
	ConnectionStateChanged(state ConnState)
	ParticipantsChanged(snapshot []domain.Participant)
	MessageAppended(msg domain.ChatMessage)
	PresenceChanged(p domain.Participant)
}
