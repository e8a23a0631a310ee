package coordinator

import (
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
)

// SelfLabel is the sender label shown for the local participant's messages.
const SelfLabel = "self"

// FallbackLabel is shown when an inbound message carries no usable sender.
const FallbackLabel = "Participant"

// chatReconciler owns the ordered timeline for the active session and
// suppresses the server's echo of locally submitted messages. Dedup is an
// exact-body match inside a time window; the correlation token is recorded
// but the transport is not trusted to round-trip it.
type chatReconciler struct {
	window   time.Duration
	pending  []domain.PendingSend
	timeline []domain.ChatMessage
	seq      uint64
}

func newChatReconciler(window time.Duration) *chatReconciler {
	return &chatReconciler{window: window}
}

// SubmitLocal appends optimistically and returns the outbound send event.
// The returned message is already part of the timeline.
func (c *chatReconciler) SubmitLocal(identity domain.Identity, roomID domain.RoomID, body string, now time.Time) (domain.ChatMessage, core.SendMessage, error) {
	c.seq++
	msg, err := domain.NewChatMessage(SelfLabel, body, "", c.seq)
	if err != nil {
		return domain.ChatMessage{}, core.SendMessage{}, err
	}
	token := uuid.NewString()
	c.pending = append(c.pending, domain.PendingSend{Body: body, Token: token, SubmittedAt: now})
	c.timeline = append(c.timeline, msg)
	out := core.SendMessage{
		RoomID:   roomID,
		Sender:   identity.DisplayName,
		SenderID: identity.UserID,
		Body:     body,
		Token:    token,
	}
	return msg, out, nil
}

// Receive reconciles one inbound chat event. Reports whether a new
// timeline entry was appended; a suppressed self-echo returns false.
func (c *chatReconciler) Receive(ev core.MessageReceived, identity domain.Identity, now time.Time) (domain.ChatMessage, bool) {
	c.PruneExpired(now)
	for i, p := range c.pending {
		if p.Body == ev.Body {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			log.Debug().Str("module", "chat").Str("token", p.Token).Msg("self echo suppressed")
			return domain.ChatMessage{}, false
		}
	}

	label := resolveLabel(ev, identity)
	c.seq++
	msg, err := domain.NewChatMessage(label, ev.Body, ev.Time, c.seq)
	if err != nil {
		log.Warn().Str("module", "chat").Err(err).Msg("dropping empty inbound message")
		return domain.ChatMessage{}, false
	}
	c.timeline = append(c.timeline, msg)
	return msg, true
}

// PruneExpired drops pending entries older than the dedup window. An
// expired entry needs no further action: the optimistic append already
// made the message visible.
func (c *chatReconciler) PruneExpired(now time.Time) {
	kept := c.pending[:0]
	for _, p := range c.pending {
		if !p.Expired(now, c.window) {
			kept = append(kept, p)
		}
	}
	c.pending = kept
}

func (c *chatReconciler) PendingCount() int { return len(c.pending) }

// Timeline returns a copy in strict arrival order.
func (c *chatReconciler) Timeline() []domain.ChatMessage {
	out := make([]domain.ChatMessage, len(c.timeline))
	copy(out, c.timeline)
	return out
}

func (c *chatReconciler) Clear() {
	c.pending = nil
	c.timeline = nil
}

// resolveLabel maps a raw sender onto a display label. The identity check
// catches self messages the pending match missed (e.g. after expiry).
func resolveLabel(ev core.MessageReceived, identity domain.Identity) string {
	if ev.SenderID != "" && ev.SenderID == identity.UserID {
		return SelfLabel
	}
	if ev.Sender != "" && ev.Sender == identity.DisplayName {
		return SelfLabel
	}
	return humanLabel(ev.Sender)
}

// humanLabel derives a readable name from a raw sender. Address-style
// identifiers keep only the local part, with each dot/underscore/hyphen
// separated segment title-cased: "jane.doe@example.com" -> "Jane Doe".
func humanLabel(raw string) string {
	if raw == "" {
		return FallbackLabel
	}
	at := strings.IndexByte(raw, '@')
	if at < 0 {
		return raw
	}
	local := raw[:at]
	if local == "" {
		return FallbackLabel
	}
	parts := strings.FieldsFunc(local, func(r rune) bool {
		return r == '.' || r == '_' || r == '-'
	})
	for i, part := range parts {
		runes := []rune(part)
		runes[0] = unicode.ToUpper(runes[0])
		parts[i] = string(runes)
	}
	if len(parts) == 0 {
		return FallbackLabel
	}
	return strings.Join(parts, " ")
}
