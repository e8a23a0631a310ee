package coordinator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
)

func info(conn, uid, name, peer string) core.ParticipantInfo {
	return core.ParticipantInfo{
		ConnectionID: domain.ConnectionID(conn),
		UserID:       domain.UserID(uid),
		DisplayName:  name,
		PeerID:       domain.PeerID(peer),
	}
}

func TestRosterSnapshotIdempotent(t *testing.T) {
	r := newRoster()
	snap := []core.ParticipantInfo{
		info("c1", "u1", "Valentina", "p1"),
		info("c2", "", "Juliana", "p2"),
	}

	first := r.ApplySnapshot(snap)
	require.Len(t, first.Added, 2)

	before := r.Snapshot()
	second := r.ApplySnapshot(snap)
	assert.True(t, second.empty(), "reapplying the same snapshot must change nothing")
	assert.Equal(t, before, r.Snapshot())
}

func TestRosterNeverDuplicatesConnectionIDs(t *testing.T) {
	r := newRoster()
	r.ApplyJoined(info("c1", "u1", "Juan", "p1"))
	r.ApplyJoined(info("c1", "u1", "Juan", "p1"))
	r.ApplyJoined(info("c2", "u2", "Laura", "p2"))
	r.ApplyLeft("c2")
	r.ApplyJoined(info("c2", "u2", "Laura", "p2"))

	seen := map[domain.ConnectionID]bool{}
	for _, p := range r.Snapshot() {
		require.False(t, seen[p.ConnectionID], "duplicate connection id %s", p.ConnectionID)
		seen[p.ConnectionID] = true
	}
	assert.Equal(t, 2, r.Len())
}

func TestRosterSnapshotReidentifiesReconnectedPerson(t *testing.T) {
	r := newRoster()
	r.ApplyJoined(info("old-conn", "u1", "Gabriela", "old-peer"))

	// After our reconnect the server still lists the same person under a
	// fresh connection id.
	delta := r.ApplySnapshot([]core.ParticipantInfo{info("new-conn", "u1", "Gabriela", "new-peer")})
	require.Empty(t, delta.Added)
	require.Len(t, delta.Updated, 1)

	assert.Equal(t, 1, r.Len())
	p, ok := r.Get("new-conn")
	require.True(t, ok)
	assert.Equal(t, domain.PeerID("new-peer"), p.PeerID)
	_, ok = r.Get("old-conn")
	assert.False(t, ok, "old connection id must be gone")
}

func TestRosterFallbackIdentityByDisplayName(t *testing.T) {
	r := newRoster()
	r.ApplyJoined(info("c1", "", "Anon", "p1"))

	delta := r.ApplySnapshot([]core.ParticipantInfo{info("c9", "", "Anon", "p9")})
	require.Empty(t, delta.Added)
	assert.Equal(t, 1, r.Len())
}

func TestRosterLeftUnknownIsNoop(t *testing.T) {
	r := newRoster()
	r.ApplyJoined(info("c1", "u1", "Juan", "p1"))

	delta := r.ApplyLeft("never-seen")
	assert.True(t, delta.empty())
	assert.Equal(t, 1, r.Len())
}

func TestRosterLeftRemovesStaleSelf(t *testing.T) {
	r := newRoster()
	r.ApplyJoined(info("my-old-conn", "me", "Self", "p0"))

	delta := r.ApplyLeft("my-old-conn")
	require.Len(t, delta.Removed, 1)
	assert.Equal(t, 0, r.Len())
}

func TestRosterUpdatePresence(t *testing.T) {
	r := newRoster()
	r.ApplyJoined(info("c1", "u1", "Juan", "p1"))

	tests := []struct {
		name    string
		conn    string
		uid     string
		kind    core.MediaKind
		enabled bool
		wantOK  bool
	}{
		{"by connection id", "c1", "", core.MediaAudio, true, true},
		{"fallback to user id", "stale-conn", "u1", core.MediaVideo, true, true},
		{"unknown everything", "nope", "who", core.MediaAudio, true, false},
		{"bad kind", "c1", "", core.MediaKind("smell"), true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, ok := r.UpdatePresence(domain.ConnectionID(tt.conn), domain.UserID(tt.uid), tt.kind, tt.enabled)
			require.Equal(t, tt.wantOK, ok)
			if ok {
				if tt.kind == core.MediaAudio {
					assert.True(t, p.AudioOn)
				} else {
					assert.True(t, p.VideoOn)
				}
			}
		})
	}
}

func TestRosterJoinedUpdatesExistingConnection(t *testing.T) {
	r := newRoster()
	r.ApplyJoined(info("c1", "", "guest", ""))

	delta := r.ApplyJoined(info("c1", "u1", "Juan", "p1"))
	require.Empty(t, delta.Added)
	require.Len(t, delta.Updated, 1)
	p, _ := r.Get("c1")
	assert.Equal(t, "Juan", p.DisplayName)
	assert.Equal(t, domain.PeerID("p1"), p.PeerID)
}
