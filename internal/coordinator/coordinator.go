// Package coordinator keeps a consistent realtime view of one meeting:
// who is in the room, which peer media sessions exist, what presence each
// participant advertises, and a duplicate-free chat timeline. Everything
// runs on a single event loop, so handlers never overlap and the shared
// state needs no locks.
package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
)

const (
	DefaultPendingWindow = 5 * time.Second
	DefaultStaleGrace    = 4 * time.Second
)

type Config struct {
	RoomID   domain.RoomID
	Identity domain.Identity
	// PendingWindow bounds the chat self-echo dedup match.
	PendingWindow time.Duration
	// StaleGrace is how long peer sessions survive a transport drop
	// before being torn down.
	StaleGrace time.Duration
}

type Coordinator struct {
	cfg       Config
	transport core.SignalTransport
	engine    core.PeerEngine

	roster   *roster
	chat     *chatReconciler
	peers    *peerSet
	presence localPresence

	capture core.MediaCapture
	state   core.ConnState

	cmds   chan func()
	done   chan struct{}
	runCtx context.Context

	graceTimer   *time.Timer
	pendingTimer *time.Timer

	lmu       sync.RWMutex
	listeners map[int]core.Listener
	nextSub   int

	now func() time.Time
}

func New(cfg Config, transport core.SignalTransport, engine core.PeerEngine) *Coordinator {
	if cfg.PendingWindow <= 0 {
		cfg.PendingWindow = DefaultPendingWindow
	}
	if cfg.StaleGrace <= 0 {
		cfg.StaleGrace = DefaultStaleGrace
	}
	c := &Coordinator{
		cfg:       cfg,
		transport: transport,
		engine:    engine,
		roster:    newRoster(),
		chat:      newChatReconciler(cfg.PendingWindow),
		presence:  newLocalPresence(),
		cmds:      make(chan func(), 64),
		done:      make(chan struct{}),
		listeners: make(map[int]core.Listener),
		now:       time.Now,
	}
	c.peers = newPeerSet(engine, c.presence.Get)
	engine.OnIncoming(c.onIncomingCall)
	return c
}

// Run connects the transport and drives the loop until ctx is cancelled
// or the transport gives up for good.
func (c *Coordinator) Run(ctx context.Context) error {
	c.runCtx = ctx
	defer close(c.done)
	defer c.teardown()

	c.setState(core.StateConnecting)
	if err := c.transport.Connect(ctx); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-c.transport.Events():
			if !ok {
				log.Info().Str("module", "coordinator").Msg("transport event stream closed")
				return nil
			}
			c.handleEvent(ev)
		case fn := <-c.cmds:
			fn()
		}
	}
}

func (c *Coordinator) handleEvent(ev core.Event) {
	switch v := ev.(type) {
	case core.Connected:
		c.onConnected(v)
	case core.Disconnected:
		c.onDisconnected(v)
	case core.ExistingParticipants:
		c.onSnapshot(v)
	case core.ParticipantJoined:
		c.onJoined(v)
	case core.ParticipantLeft:
		c.onLeft(v)
	case core.MessageReceived:
		c.onMessage(v)
	case core.PresenceUpdated:
		c.onPresence(v)
	case core.RoomFault:
		log.Warn().Str("module", "coordinator").Str("reason", v.Reason).Msg("room fault advisory")
	}
}

// enqueue schedules fn on the loop. Safe from any goroutine; a command
// arriving after shutdown is silently dropped.
func (c *Coordinator) enqueue(fn func()) {
	select {
	case c.cmds <- fn:
	case <-c.done:
	}
}

// SendChat appends optimistically and pushes the message onto the
// signaling channel. Delivery is best-effort by design.
func (c *Coordinator) SendChat(body string) {
	c.enqueue(func() {
		msg, out, err := c.chat.SubmitLocal(c.cfg.Identity, c.cfg.RoomID, body, c.now())
		if err != nil {
			log.Warn().Str("module", "chat").Err(err).Msg("rejecting local submit")
			return
		}
		if err := c.transport.Send(out); err != nil {
			log.Warn().Str("module", "chat").Err(err).Msg("send message")
		}
		c.armPendingTimer()
		c.notifyMessage(msg)
	})
}

// SetAudio flips the local audio toggle: presence broadcast plus pausing
// outbound audio on every session. Sessions are never closed by a toggle.
func (c *Coordinator) SetAudio(enabled bool) { c.setMedia(core.MediaAudio, enabled) }

// SetVideo is SetAudio for the camera.
func (c *Coordinator) SetVideo(enabled bool) { c.setMedia(core.MediaVideo, enabled) }

func (c *Coordinator) setMedia(kind core.MediaKind, enabled bool) {
	c.enqueue(func() {
		if !c.presence.Set(kind, enabled) {
			return
		}
		if err := c.transport.Send(core.PresenceUpdate{Kind: kind, Enabled: enabled}); err != nil {
			log.Warn().Str("module", "presence").Err(err).Msg("presence update")
		}
		c.peers.SetOutbound(kind, enabled)
	})
}

// AttachCapture hands the caller-owned capture to the session: tracks go
// onto every session answered empty-handed, and every participant without
// a session gets dialed. Continuations re-check membership, so a
// participant leaving mid-grant is tolerated.
func (c *Coordinator) AttachCapture(capture core.MediaCapture) {
	c.enqueue(func() {
		c.capture = capture
		if capture == nil || !capture.Active() {
			return
		}
		c.peers.AttachOutboundAll(capture)
		for _, p := range c.roster.Snapshot() {
			c.dialFor(p)
		}
	})
}

// ReleaseCapture drops the capture reference and destroys all peer
// sessions. Unlike a toggle, stopping capture ends the media lifecycle.
func (c *Coordinator) ReleaseCapture() {
	c.enqueue(func() {
		c.capture = nil
		c.peers.TeardownAll()
	})
}

// Leave announces departure and shuts the session down.
func (c *Coordinator) Leave() {
	c.enqueue(func() {
		if err := c.transport.Send(core.LeaveRoom{RoomID: c.cfg.RoomID}); err != nil {
			log.Warn().Str("module", "coordinator").Err(err).Msg("leave announce")
		}
		if err := c.transport.Close(); err != nil {
			log.Warn().Str("module", "coordinator").Err(err).Msg("transport close")
		}
	})
}

// Subscribe registers a presentation-layer listener. The returned func
// unsubscribes. Callbacks run on the loop and must not block.
func (c *Coordinator) Subscribe(l core.Listener) func() {
	c.lmu.Lock()
	id := c.nextSub
	c.nextSub++
	c.listeners[id] = l
	c.lmu.Unlock()
	return func() {
		c.lmu.Lock()
		delete(c.listeners, id)
		c.lmu.Unlock()
	}
}

// Participants returns the current membership snapshot. Requires the loop
// to be running; returns nil after shutdown.
func (c *Coordinator) Participants() []domain.Participant {
	out := make(chan []domain.Participant, 1)
	c.enqueue(func() { out <- c.roster.Snapshot() })
	select {
	case v := <-out:
		return v
	case <-c.done:
		return nil
	}
}

// Messages returns the timeline in arrival order.
func (c *Coordinator) Messages() []domain.ChatMessage {
	out := make(chan []domain.ChatMessage, 1)
	c.enqueue(func() { out <- c.chat.Timeline() })
	select {
	case v := <-out:
		return v
	case <-c.done:
		return nil
	}
}

// State reports the transport connection state.
func (c *Coordinator) State() core.ConnState {
	out := make(chan core.ConnState, 1)
	c.enqueue(func() { out <- c.state })
	select {
	case v := <-out:
		return v
	case <-c.done:
		return core.StateClosed
	}
}

// PeerSessionCount reports the number of live peer sessions.
func (c *Coordinator) PeerSessionCount() int {
	out := make(chan int, 1)
	c.enqueue(func() { out <- c.peers.Len() })
	select {
	case v := <-out:
		return v
	case <-c.done:
		return 0
	}
}

// onIncomingCall always answers: with tracks when capture is active,
// empty-handed otherwise, so the remote side stops retrying either way.
func (c *Coordinator) onIncomingCall(call core.IncomingCall) {
	c.enqueue(func() {
		capture := c.capture
		go func() {
			sess, err := call.Answer(capture)
			if err != nil {
				log.Warn().Str("module", "peers").Str("peer", string(call.From())).Err(err).Msg("answer failed")
				return
			}
			c.enqueue(func() {
				conn, known := c.connForPeer(call.From())
				c.peers.Adopt(sess, conn, known, capture != nil && capture.Active())
			})
		}()
	})
}

func (c *Coordinator) connForPeer(pid domain.PeerID) (domain.ConnectionID, bool) {
	for _, p := range c.roster.Snapshot() {
		if p.PeerID == pid {
			return p.ConnectionID, true
		}
	}
	return "", false
}

func (c *Coordinator) dialFor(p domain.Participant) {
	if !c.peers.WantsDial(p, c.capture) {
		return
	}
	c.peers.BeginDial(c.runCtx, p, c.capture, c.enqueue, c.finishDial)
}

func (c *Coordinator) finishDial(conn domain.ConnectionID, sess core.PeerSession, err error) {
	current, listed := c.roster.Get(conn)
	c.peers.CompleteDial(conn, sess, err, current, listed)
}

func (c *Coordinator) armPendingTimer() {
	if c.pendingTimer != nil {
		c.pendingTimer.Stop()
	}
	c.pendingTimer = time.AfterFunc(c.cfg.PendingWindow, func() {
		c.enqueue(func() {
			c.chat.PruneExpired(c.now())
			if c.chat.PendingCount() > 0 {
				c.armPendingTimer()
			}
		})
	})
}

func (c *Coordinator) teardown() {
	c.stopTimers()
	c.peers.TeardownAll()
	c.roster.Clear()
	c.chat.Clear()
	c.engine.Close()
	_ = c.transport.Close()
	c.setState(core.StateClosed)
	log.Info().Str("module", "coordinator").Msg("session ended")
}

func (c *Coordinator) stopTimers() {
	if c.graceTimer != nil {
		c.graceTimer.Stop()
		c.graceTimer = nil
	}
	if c.pendingTimer != nil {
		c.pendingTimer.Stop()
		c.pendingTimer = nil
	}
}

func (c *Coordinator) listenerSnapshot() []core.Listener {
	c.lmu.RLock()
	defer c.lmu.RUnlock()
	out := make([]core.Listener, 0, len(c.listeners))
	for _, l := range c.listeners {
		out = append(out, l)
	}
	return out
}

func (c *Coordinator) setState(s core.ConnState) {
	if c.state == s {
		return
	}
	c.state = s
	log.Info().Str("module", "coordinator").Str("state", s.String()).Msg("connection state")
	for _, l := range c.listenerSnapshot() {
		l.ConnectionStateChanged(s)
	}
}

func (c *Coordinator) notifyParticipants() {
	snap := c.roster.Snapshot()
	for _, l := range c.listenerSnapshot() {
		l.ParticipantsChanged(snap)
	}
}

func (c *Coordinator) notifyMessage(msg domain.ChatMessage) {
	for _, l := range c.listenerSnapshot() {
		l.MessageAppended(msg)
	}
}

func (c *Coordinator) notifyPresence(p domain.Participant) {
	for _, l := range c.listenerSnapshot() {
		l.PresenceChanged(p)
	}
}
