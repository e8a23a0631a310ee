package coordinator

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
)

var testIdentity = domain.Identity{DisplayName: "me@example.com", UserID: "user-1"}

func TestChatEchoSuppressedWithinWindow(t *testing.T) {
	c := newChatReconciler(5 * time.Second)
	now := time.Now()

	msg, out, err := c.SubmitLocal(testIdentity, "room-1", "hola", now)
	require.NoError(t, err)
	assert.Equal(t, SelfLabel, msg.Sender)
	assert.NotEmpty(t, out.Token)
	require.Len(t, c.Timeline(), 1)

	// The server echoes the identical text 2s later: dropped, not appended.
	_, appended := c.Receive(core.MessageReceived{Sender: "me@example.com", Body: "hola"}, testIdentity, now.Add(2*time.Second))
	assert.False(t, appended)
	assert.Len(t, c.Timeline(), 1)
	assert.Equal(t, 0, c.PendingCount())
}

func TestChatEchoAfterWindowStillNotDuplicated(t *testing.T) {
	c := newChatReconciler(5 * time.Second)
	now := time.Now()

	_, _, err := c.SubmitLocal(testIdentity, "room-1", "hola", now)
	require.NoError(t, err)

	// Past the window the pending entry is gone, but the identity check
	// still labels the late echo as self.
	msg, appended := c.Receive(core.MessageReceived{SenderID: "user-1", Sender: "me@example.com", Body: "hola"}, testIdentity, now.Add(7*time.Second))
	assert.True(t, appended)
	assert.Equal(t, SelfLabel, msg.Sender)
}

func TestChatGenuineMessageAppends(t *testing.T) {
	c := newChatReconciler(5 * time.Second)
	now := time.Now()

	_, _, _ = c.SubmitLocal(testIdentity, "room-1", "hola", now)
	msg, appended := c.Receive(core.MessageReceived{Sender: "jane.doe@example.com", Body: "hey"}, testIdentity, now.Add(time.Second))
	require.True(t, appended)
	assert.Equal(t, "Jane Doe", msg.Sender)
	assert.Len(t, c.Timeline(), 2)
}

func TestChatSenderLabels(t *testing.T) {
	tests := []struct {
		name   string
		sender string
		want   string
	}{
		{"address style", "jane.doe@example.com", "Jane Doe"},
		{"underscores and hyphens", "ana_maria-lopez@host", "Ana Maria Lopez"},
		{"plain name kept", "Valentina", "Valentina"},
		{"empty falls back", "", FallbackLabel},
		{"empty local part", "@example.com", FallbackLabel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newChatReconciler(5 * time.Second)
			msg, appended := c.Receive(core.MessageReceived{Sender: tt.sender, Body: "x"}, testIdentity, time.Now())
			require.True(t, appended)
			assert.Equal(t, tt.want, msg.Sender)
		})
	}
}

func TestChatTimestamps(t *testing.T) {
	c := newChatReconciler(5 * time.Second)

	msg, _ := c.Receive(core.MessageReceived{Sender: "x", Body: "a", Time: "09:05"}, testIdentity, time.Now())
	assert.Equal(t, "09:05", msg.Time, "wire time wins")

	msg, _ = c.Receive(core.MessageReceived{Sender: "x", Body: "b"}, testIdentity, time.Now())
	assert.Regexp(t, regexp.MustCompile(`^\d{2}:\d{2}$`), msg.Time)
}

func TestChatArrivalOrderPreserved(t *testing.T) {
	c := newChatReconciler(5 * time.Second)
	now := time.Now()

	_, _, _ = c.SubmitLocal(testIdentity, "room-1", "first", now)
	c.Receive(core.MessageReceived{Sender: "a", Body: "second"}, testIdentity, now)
	c.Receive(core.MessageReceived{Sender: "b", Body: "third"}, testIdentity, now)

	timeline := c.Timeline()
	require.Len(t, timeline, 3)
	bodies := []string{timeline[0].Body, timeline[1].Body, timeline[2].Body}
	assert.Equal(t, []string{"first", "second", "third"}, bodies)
	assert.Less(t, timeline[0].Seq, timeline[1].Seq)
	assert.Less(t, timeline[1].Seq, timeline[2].Seq)
}

func TestChatRejectsEmptyBody(t *testing.T) {
	c := newChatReconciler(5 * time.Second)
	_, _, err := c.SubmitLocal(testIdentity, "room-1", "", time.Now())
	assert.ErrorIs(t, err, domain.ErrMessageEmpty)

	_, appended := c.Receive(core.MessageReceived{Sender: "x", Body: ""}, testIdentity, time.Now())
	assert.False(t, appended)
}

func TestChatPruneExpired(t *testing.T) {
	c := newChatReconciler(5 * time.Second)
	now := time.Now()
	_, _, _ = c.SubmitLocal(testIdentity, "room-1", "old", now)
	_, _, _ = c.SubmitLocal(testIdentity, "room-1", "fresh", now.Add(4*time.Second))

	c.PruneExpired(now.Add(6 * time.Second))
	assert.Equal(t, 1, c.PendingCount())
}

func TestChatClearResetsSession(t *testing.T) {
	c := newChatReconciler(5 * time.Second)
	_, _, _ = c.SubmitLocal(testIdentity, "room-1", "hola", time.Now())
	c.Clear()
	assert.Empty(t, c.Timeline())
	assert.Equal(t, 0, c.PendingCount())
}
