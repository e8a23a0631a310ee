package coordinator

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Meet/internal/core"
)

// Transport edges and inbound room events. Reconnect policy itself lives
// in the signal adapter; this file only reacts to the resulting edges.

// onConnected fires on every successful attachment, first connect and
// reconnects alike. All room-local state is treated as invalidated across
// a drop, so each edge re-announces the join and expects a fresh
// existing-participants snapshot to re-seed the roster.
func (c *Coordinator) onConnected(ev core.Connected) {
	reconnect := c.state == core.StateReconnecting
	c.cfg.Identity.ConnectionID = ev.ConnectionID
	c.setState(core.StateConnected)

	join := core.JoinRoom{
		RoomID:      c.cfg.RoomID,
		DisplayName: c.cfg.Identity.DisplayName,
		UserID:      c.cfg.Identity.UserID,
	}
	if err := c.transport.Send(join); err != nil {
		log.Error().Str("module", "coordinator").Err(err).Msg("join announce")
	}
	if reconnect {
		log.Info().Str("module", "coordinator").Str("conn", string(ev.ConnectionID)).Msg("rejoined after reconnect")
	}
}

// onDisconnected marks peer sessions stale rather than destroying them,
// so a brief network blip does not flicker media. The grace timer tears
// down whatever the reconnect snapshot fails to re-identify.
func (c *Coordinator) onDisconnected(ev core.Disconnected) {
	if ev.Terminal {
		c.peers.TeardownAll()
		c.stopTimers()
		c.setState(core.StateClosed)
		return
	}
	c.setState(core.StateReconnecting)
	c.peers.MarkAllStale()
	c.armGraceTimer()
}

func (c *Coordinator) armGraceTimer() {
	if c.graceTimer != nil {
		c.graceTimer.Stop()
	}
	c.graceTimer = time.AfterFunc(c.cfg.StaleGrace, func() {
		c.enqueue(func() { c.peers.DropStale() })
	})
}

func (c *Coordinator) onSnapshot(ev core.ExistingParticipants) {
	delta := c.roster.ApplySnapshot(ev.Participants)
	for _, p := range delta.Updated {
		// A re-identified person after reconnect keeps their session
		// under the fresh connection id.
		c.peers.Rekey(p)
		if !c.peers.Has(p.ConnectionID) {
			c.dialFor(p)
		}
	}
	for _, p := range delta.Added {
		if !c.peers.AdoptOrphanFor(p) {
			c.dialFor(p)
		}
	}
	if !delta.empty() {
		c.notifyParticipants()
	}
}

func (c *Coordinator) onJoined(ev core.ParticipantJoined) {
	delta := c.roster.ApplyJoined(ev.Participant)
	for _, p := range delta.Added {
		if !c.peers.AdoptOrphanFor(p) {
			c.dialFor(p)
		}
	}
	if !delta.empty() {
		c.notifyParticipants()
	}
}

func (c *Coordinator) onLeft(ev core.ParticipantLeft) {
	delta := c.roster.ApplyLeft(ev.ConnectionID)
	for _, p := range delta.Removed {
		c.peers.Teardown(p.ConnectionID)
	}
	if !delta.empty() {
		c.notifyParticipants()
	}
}

func (c *Coordinator) onMessage(ev core.MessageReceived) {
	msg, appended := c.chat.Receive(ev, c.cfg.Identity, c.now())
	if appended {
		c.notifyMessage(msg)
	}
}

func (c *Coordinator) onPresence(ev core.PresenceUpdated) {
	p, ok := c.roster.UpdatePresence(ev.ConnectionID, ev.UserID, ev.Kind, ev.Enabled)
	if !ok {
		log.Debug().Str("module", "presence").Str("conn", string(ev.ConnectionID)).Msg("presence for unknown participant")
		return
	}
	c.notifyPresence(p)
}
