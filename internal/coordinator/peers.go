package coordinator

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
)

// peerEntry is one live media relationship, keyed by the remote's
// connection id in peerSet.sessions. stale marks sessions surviving a
// transport drop inside the reconnect grace window; hasMedia records
// whether our capture's tracks are on the wire yet.
type peerEntry struct {
	session  core.PeerSession
	peerID   domain.PeerID
	stale    bool
	hasMedia bool
}

// peerSet owns the PeerSession map. Mutated only on the coordinator loop;
// the blocking dial itself runs off-loop and reports back via a
// completion command that re-checks membership.
type peerSet struct {
	engine core.PeerEngine
	// transmitting reports the local toggle for one kind. Every session
	// is synced against it when installed, so a mute set before a session
	// existed still holds on it.
	transmitting func(core.MediaKind) bool
	sessions     map[domain.ConnectionID]*peerEntry
	dialing      map[domain.ConnectionID]struct{}
	// orphans holds answered incoming calls whose participant record has
	// not arrived yet; adopted on the next membership event for that peer.
	orphans map[domain.PeerID]*peerEntry
}

func newPeerSet(engine core.PeerEngine, transmitting func(core.MediaKind) bool) *peerSet {
	return &peerSet{
		engine:       engine,
		transmitting: transmitting,
		sessions:     make(map[domain.ConnectionID]*peerEntry),
		dialing:      make(map[domain.ConnectionID]struct{}),
		orphans:      make(map[domain.PeerID]*peerEntry),
	}
}

// install registers the entry and brings its outbound state in line with
// the local toggles.
func (s *peerSet) install(conn domain.ConnectionID, e *peerEntry) {
	s.sessions[conn] = e
	s.syncOutbound(e.session)
}

func (s *peerSet) syncOutbound(sess core.PeerSession) {
	for _, kind := range []core.MediaKind{core.MediaAudio, core.MediaVideo} {
		if s.transmitting(kind) {
			continue
		}
		if err := sess.SetOutbound(kind, false); err != nil {
			log.Warn().Str("module", "peers").Str("peer", string(sess.Remote())).Err(err).Msg("sync outbound")
		}
	}
}

// attachMedia delivers a capture to a session that was established
// without local tracks. Sessions that already carry them are left alone.
func (s *peerSet) attachMedia(e *peerEntry, capture core.MediaCapture) {
	if e.hasMedia {
		return
	}
	if err := e.session.AttachOutbound(capture); err != nil {
		log.Warn().Str("module", "peers").Str("peer", string(e.peerID)).Err(err).Msg("attach outbound")
		return
	}
	e.hasMedia = true
	s.syncOutbound(e.session)
	log.Info().Str("module", "peers").Str("peer", string(e.peerID)).Msg("outbound media attached")
}

// AttachOutboundAll hands a late capture grant to every session and
// parked orphan that was answered empty-handed.
func (s *peerSet) AttachOutboundAll(capture core.MediaCapture) {
	for _, e := range s.sessions {
		s.attachMedia(e, capture)
	}
	for _, e := range s.orphans {
		s.attachMedia(e, capture)
	}
}

// WantsDial reports whether an added participant should be called:
// local capture active, a peer id known, and no session or dial in flight.
// The newly joining side never dials; existing members call the newcomer,
// which keeps the pair from racing concurrent offers.
func (s *peerSet) WantsDial(p domain.Participant, capture core.MediaCapture) bool {
	if capture == nil || !capture.Active() {
		return false
	}
	if p.PeerID == "" {
		return false
	}
	if _, ok := s.sessions[p.ConnectionID]; ok {
		return false
	}
	if _, ok := s.dialing[p.ConnectionID]; ok {
		return false
	}
	return true
}

// BeginDial runs the blocking initiation off-loop. done is invoked back on
// the loop by the caller-supplied enqueue.
func (s *peerSet) BeginDial(ctx context.Context, p domain.Participant, capture core.MediaCapture, enqueue func(func()), done func(conn domain.ConnectionID, sess core.PeerSession, err error)) {
	// Recreate over a stale leftover for the same person, never alongside it.
	s.dropStaleByPeer(p.PeerID)

	if e, ok := s.orphans[p.PeerID]; ok {
		delete(s.orphans, p.PeerID)
		s.install(p.ConnectionID, e)
		s.attachMedia(e, capture)
		log.Info().Str("module", "peers").Str("conn", string(p.ConnectionID)).Msg("adopted answered session")
		return
	}

	s.dialing[p.ConnectionID] = struct{}{}
	conn, peerID := p.ConnectionID, p.PeerID
	go func() {
		// Initiation waits for our own peer id to exist.
		if _, err := s.engine.AwaitID(ctx); err != nil {
			enqueue(func() { done(conn, nil, err) })
			return
		}
		sess, err := s.engine.Dial(ctx, peerID, capture)
		enqueue(func() { done(conn, sess, err) })
	}()
}

// CompleteDial installs a finished dial, unless the world moved on while
// it was in flight (participant gone, peer id changed, duplicate).
func (s *peerSet) CompleteDial(conn domain.ConnectionID, sess core.PeerSession, err error, current domain.Participant, stillListed bool) {
	delete(s.dialing, conn)
	if err != nil {
		// One failed peer must not block the others.
		log.Warn().Str("module", "peers").Str("conn", string(conn)).Err(err).Msg("peer dial failed")
		return
	}
	if !stillListed || current.PeerID != sess.Remote() {
		log.Info().Str("module", "peers").Str("conn", string(conn)).Msg("dial landed late, discarding")
		sess.Close()
		return
	}
	if _, dup := s.sessions[conn]; dup {
		sess.Close()
		return
	}
	// Dials only start with an active capture, so the tracks are aboard.
	s.install(conn, &peerEntry{session: sess, peerID: sess.Remote(), hasMedia: true})
	log.Info().Str("module", "peers").Str("conn", string(conn)).Str("peer", string(sess.Remote())).Msg("peer session established")
}

// Adopt stores an answered incoming call under the matching participant,
// or parks it until that participant is known.
func (s *peerSet) Adopt(sess core.PeerSession, conn domain.ConnectionID, known, hasMedia bool) {
	e := &peerEntry{session: sess, peerID: sess.Remote(), hasMedia: hasMedia}
	if !known {
		s.orphans[sess.Remote()] = e
		s.syncOutbound(sess)
		return
	}
	if prior, ok := s.sessions[conn]; ok {
		prior.session.Close()
	}
	s.install(conn, e)
}

// AdoptOrphanFor rebinds a parked session once its participant appears.
func (s *peerSet) AdoptOrphanFor(p domain.Participant) bool {
	e, ok := s.orphans[p.PeerID]
	if !ok {
		return false
	}
	delete(s.orphans, p.PeerID)
	if prior, ok := s.sessions[p.ConnectionID]; ok {
		prior.session.Close()
	}
	s.install(p.ConnectionID, e)
	return true
}

// Teardown releases the session for one departed participant.
func (s *peerSet) Teardown(conn domain.ConnectionID) {
	if e, ok := s.sessions[conn]; ok {
		e.session.Close()
		delete(s.sessions, conn)
		log.Info().Str("module", "peers").Str("conn", string(conn)).Msg("peer session torn down")
	}
}

func (s *peerSet) TeardownAll() {
	for conn, e := range s.sessions {
		e.session.Close()
		delete(s.sessions, conn)
	}
	for pid, e := range s.orphans {
		e.session.Close()
		delete(s.orphans, pid)
	}
}

// MarkAllStale flags every session at a transport drop. They stay alive
// through the grace window so a brief blip does not flicker media.
func (s *peerSet) MarkAllStale() {
	for _, e := range s.sessions {
		e.stale = true
	}
}

// Rekey moves a stale session onto the participant's fresh connection id
// after a reconnect snapshot re-identified the same peer.
func (s *peerSet) Rekey(p domain.Participant) {
	for conn, e := range s.sessions {
		if e.peerID != p.PeerID {
			continue
		}
		e.stale = false
		if conn != p.ConnectionID {
			delete(s.sessions, conn)
			s.sessions[p.ConnectionID] = e
		}
		return
	}
}

// DropStale closes whatever is still flagged when the grace window ends.
func (s *peerSet) DropStale() int {
	n := 0
	for conn, e := range s.sessions {
		if e.stale {
			e.session.Close()
			delete(s.sessions, conn)
			n++
		}
	}
	if n > 0 {
		log.Info().Str("module", "peers").Int("count", n).Msg("dropped stale peer sessions")
	}
	return n
}

func (s *peerSet) dropStaleByPeer(pid domain.PeerID) {
	for conn, e := range s.sessions {
		if e.stale && e.peerID == pid {
			e.session.Close()
			delete(s.sessions, conn)
		}
	}
}

// SetOutbound pauses or resumes one kind on every session, parked
// orphans included. Toggling off silences transmission; it never closes
// the channel.
func (s *peerSet) SetOutbound(kind core.MediaKind, enabled bool) {
	for conn, e := range s.sessions {
		if err := e.session.SetOutbound(kind, enabled); err != nil {
			log.Warn().Str("module", "peers").Str("conn", string(conn)).Err(err).Msg("set outbound")
		}
	}
	for pid, e := range s.orphans {
		if err := e.session.SetOutbound(kind, enabled); err != nil {
			log.Warn().Str("module", "peers").Str("peer", string(pid)).Err(err).Msg("set outbound")
		}
	}
}

func (s *peerSet) Has(conn domain.ConnectionID) bool {
	_, ok := s.sessions[conn]
	return ok
}

func (s *peerSet) Len() int { return len(s.sessions) }
