package domain

import (
	"errors"
	"time"
)

var ErrMessageEmpty = errors.New("message content cannot be empty")

// ChatMessage is one entry in the session timeline. Seq is a local,
// monotonically increasing counter used only for pending-echo matching;
// it is never transmitted.
type ChatMessage struct {
	Sender string
	Body   string
	Time   string
	Seq    uint64
}

// NewChatMessage stamps the message with a zero-padded HH:MM display time
// when the caller has none from the wire.
func NewChatMessage(sender, body, wireTime string, seq uint64) (ChatMessage, error) {
	if body == "" {
		return ChatMessage{}, ErrMessageEmpty
	}
	t := wireTime
	if t == "" {
		t = time.Now().Format("15:04")
	}
	return ChatMessage{Sender: sender, Body: body, Time: t, Seq: seq}, nil
}

// PendingSend tracks a locally submitted message until the broadcast path
// echoes it back or the dedup window expires.
type PendingSend struct {
	Body        string
	Token       string
	SubmittedAt time.Time
}

// Expired reports whether the echo window has passed at now.
func (p PendingSend) Expired(now time.Time, window time.Duration) bool {
	return now.Sub(p.SubmittedAt) > window
}
