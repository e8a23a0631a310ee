package domain

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIdentity(t *testing.T) {
	tests := []struct {
		name        string
		displayName string
		wantErr     error
	}{
		{"ok", "jane.doe@example.com", nil},
		{"empty", "", ErrDisplayNameEmpty},
		{"too long", strings.Repeat("x", MaxDisplayNameLen+1), ErrDisplayNameTooLong},
		{"at limit", strings.Repeat("x", MaxDisplayNameLen), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := NewIdentity(tt.displayName, "u1")
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.displayName, id.DisplayName)
			assert.EqualValues(t, "u1", id.UserID)
			assert.Empty(t, id.ConnectionID, "connection id is assigned later by the transport")
		})
	}
}

func TestSamePerson(t *testing.T) {
	tests := []struct {
		name string
		a, b Participant
		want bool
	}{
		{"same user id", Participant{UserID: "u1", DisplayName: "A"}, Participant{UserID: "u1", DisplayName: "B"}, true},
		{"different user id", Participant{UserID: "u1"}, Participant{UserID: "u2"}, false},
		{"user id beats name", Participant{UserID: "u1", DisplayName: "Juan"}, Participant{UserID: "u2", DisplayName: "Juan"}, false},
		{"anonymous by name", Participant{DisplayName: "Juan"}, Participant{DisplayName: "Juan"}, true},
		{"anonymous name mismatch", Participant{DisplayName: "Juan"}, Participant{DisplayName: "Laura"}, false},
		{"anonymous empty names", Participant{}, Participant{}, false},
		{"one anonymous falls back to name", Participant{UserID: "u1", DisplayName: "Juan"}, Participant{DisplayName: "Juan"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.SamePerson(&tt.b))
		})
	}
}

func TestNewChatMessage(t *testing.T) {
	_, err := NewChatMessage("self", "", "", 1)
	require.ErrorIs(t, err, ErrMessageEmpty)

	msg, err := NewChatMessage("self", "hola", "09:05", 2)
	require.NoError(t, err)
	assert.Equal(t, "09:05", msg.Time, "wire time wins")

	msg, err = NewChatMessage("self", "hola", "", 3)
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^\d{2}:\d{2}$`), msg.Time)
}

func TestPendingSendExpired(t *testing.T) {
	now := time.Now()
	p := PendingSend{Body: "hola", SubmittedAt: now}

	assert.False(t, p.Expired(now.Add(4*time.Second), 5*time.Second))
	assert.True(t, p.Expired(now.Add(6*time.Second), 5*time.Second))
}
