// Package rtc implements peer media sessions on pion/webrtc. Offer and
// answer exchange is delegated to a Negotiator, the peer-negotiation
// service's own channel, addressed by opaque peer ids.
package rtc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
)

var (
	ErrEngineClosed  = errors.New("peer engine closed")
	ErrAnswerTimeout = errors.New("timed out waiting for answer")
)

const answerTimeout = 15 * time.Second

// SignalMessage is one frame on the peer-negotiation channel.
type SignalMessage struct {
	Kind      string                     `json:"type"` // offer | answer | candidate
	From      domain.PeerID              `json:"from"`
	To        domain.PeerID              `json:"to"`
	SDP       *webrtc.SessionDescription `json:"sdp,omitempty"`
	Candidate *webrtc.ICECandidateInit   `json:"candidate,omitempty"`
}

// Negotiator is the peer-negotiation service. Register yields this
// endpoint's peer id, assigned asynchronously by the service.
type Negotiator interface {
	Register(ctx context.Context) (domain.PeerID, error)
	Send(msg SignalMessage) error
	OnMessage(fn func(SignalMessage))
}

// Engine implements core.PeerEngine.
type Engine struct {
	neg    Negotiator
	picker *providerPicker

	mu         sync.Mutex
	id         domain.PeerID
	registered bool
	idReady    chan struct{}
	conns    map[domain.PeerID]*peerConn
	answers  map[domain.PeerID]chan webrtc.SessionDescription
	incoming func(core.IncomingCall)
	closed   bool
}

func NewEngine(neg Negotiator, providers []webrtc.Configuration) *Engine {
	e := &Engine{
		neg:     neg,
		picker:  newProviderPicker(providers, 0),
		idReady: make(chan struct{}),
		conns:   make(map[domain.PeerID]*peerConn),
		answers: make(map[domain.PeerID]chan webrtc.SessionDescription),
	}
	neg.OnMessage(e.handleSignal)
	return e
}

// Start registers with the negotiation service. The peer id only exists
// after this returns; AwaitID blocks callers until then. Idempotent: a
// second call keeps the first registration.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.registered {
		e.mu.Unlock()
		return nil
	}
	e.mu.Unlock()

	pid, err := e.neg.Register(ctx)
	if err != nil {
		return fmt.Errorf("register with negotiator: %w", err)
	}

	e.mu.Lock()
	if e.registered {
		e.mu.Unlock()
		return nil
	}
	e.registered = true
	e.id = pid
	close(e.idReady)
	e.mu.Unlock()
	log.Info().Str("module", "rtc").Str("peer", string(pid)).Msg("peer engine registered")
	return nil
}

func (e *Engine) AwaitID(ctx context.Context) (domain.PeerID, error) {
	select {
	case <-e.idReady:
		e.mu.Lock()
		defer e.mu.Unlock()
		return e.id, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (e *Engine) OnIncoming(fn func(core.IncomingCall)) {
	e.mu.Lock()
	e.incoming = fn
	e.mu.Unlock()
}

// Dial initiates a session toward remote: offer out, wait for the answer,
// apply it. A failure counts against the current ICE provider.
func (e *Engine) Dial(ctx context.Context, remote domain.PeerID, capture core.MediaCapture) (core.PeerSession, error) {
	self, err := e.AwaitID(ctx)
	if err != nil {
		return nil, err
	}

	pc, err := newPeerConn(e.picker.Config(), remote)
	if err != nil {
		return nil, err
	}
	if capture != nil && capture.Active() {
		if err := pc.AddTracks(capture); err != nil {
			pc.Close()
			return nil, err
		}
	}
	pc.OnICECandidate(func(ci webrtc.ICECandidateInit) {
		_ = e.neg.Send(SignalMessage{Kind: "candidate", From: self, To: remote, Candidate: &ci})
	})
	pc.OnClosed(func() { e.forget(remote, pc) })
	pc.Start(ctx)

	offer, err := pc.CreateOfferAndGather()
	if err != nil {
		e.picker.Fail()
		pc.Close()
		return nil, err
	}

	answerCh := make(chan webrtc.SessionDescription, 1)
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		pc.Close()
		return nil, ErrEngineClosed
	}
	e.answers[remote] = answerCh
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		delete(e.answers, remote)
		e.mu.Unlock()
	}()

	if err := e.neg.Send(SignalMessage{Kind: "offer", From: self, To: remote, SDP: offer}); err != nil {
		e.picker.Fail()
		pc.Close()
		return nil, err
	}

	select {
	case answer := <-answerCh:
		if err := pc.ApplyAnswer(answer); err != nil {
			e.picker.Fail()
			pc.Close()
			return nil, err
		}
	case <-time.After(answerTimeout):
		e.picker.Fail()
		pc.Close()
		return nil, ErrAnswerTimeout
	case <-ctx.Done():
		pc.Close()
		return nil, ctx.Err()
	}

	e.picker.OK()
	e.track(remote, pc)
	return &session{engine: e, remote: remote, pc: pc}, nil
}

func (e *Engine) handleSignal(msg SignalMessage) {
	switch msg.Kind {
	case "offer":
		if msg.SDP == nil {
			return
		}
		e.mu.Lock()
		fn := e.incoming
		e.mu.Unlock()
		if fn == nil {
			log.Warn().Str("module", "rtc").Str("peer", string(msg.From)).Msg("offer with no incoming handler")
			return
		}
		fn(&incomingCall{engine: e, from: msg.From, offer: *msg.SDP})
	case "answer":
		if msg.SDP == nil {
			return
		}
		e.mu.Lock()
		ch, ok := e.answers[msg.From]
		e.mu.Unlock()
		if !ok {
			log.Warn().Str("module", "rtc").Str("peer", string(msg.From)).Msg("unsolicited answer")
			return
		}
		select {
		case ch <- *msg.SDP:
		default:
		}
	case "candidate":
		if msg.Candidate == nil {
			return
		}
		e.mu.Lock()
		pc, ok := e.conns[msg.From]
		e.mu.Unlock()
		if !ok {
			return
		}
		if err := pc.AddICECandidate(*msg.Candidate); err != nil {
			log.Warn().Str("module", "rtc").Str("peer", string(msg.From)).Err(err).Msg("add ice candidate")
		}
	default:
		log.Warn().Str("module", "rtc").Str("kind", msg.Kind).Msg("unknown negotiation frame")
	}
}

func (e *Engine) track(remote domain.PeerID, pc *peerConn) {
	e.mu.Lock()
	if prior, ok := e.conns[remote]; ok {
		prior.Close()
	}
	e.conns[remote] = pc
	e.mu.Unlock()
}

func (e *Engine) forget(remote domain.PeerID, pc *peerConn) {
	e.mu.Lock()
	if cur, ok := e.conns[remote]; ok && cur == pc {
		delete(e.conns, remote)
	}
	e.mu.Unlock()
}

func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	conns := e.conns
	e.conns = make(map[domain.PeerID]*peerConn)
	e.mu.Unlock()
	for _, pc := range conns {
		pc.Close()
	}
}

// incomingCall implements core.IncomingCall for one received offer.
type incomingCall struct {
	engine *Engine
	from   domain.PeerID
	offer  webrtc.SessionDescription
}

func (c *incomingCall) From() domain.PeerID { return c.from }

// Answer always produces an answer for the caller: with the capture's
// tracks when one is active, empty-handed otherwise.
func (c *incomingCall) Answer(capture core.MediaCapture) (core.PeerSession, error) {
	e := c.engine
	pc, err := newPeerConn(e.picker.Config(), c.from)
	if err != nil {
		return nil, err
	}
	if capture != nil && capture.Active() {
		if err := pc.AddTracks(capture); err != nil {
			pc.Close()
			return nil, err
		}
	}

	e.mu.Lock()
	self := e.id
	e.mu.Unlock()
	pc.OnICECandidate(func(ci webrtc.ICECandidateInit) {
		_ = e.neg.Send(SignalMessage{Kind: "candidate", From: self, To: c.from, Candidate: &ci})
	})
	pc.OnClosed(func() { e.forget(c.from, pc) })
	pc.Start(context.Background())

	answer, err := pc.ApplyOfferAndCreateAnswer(c.offer)
	if err != nil {
		e.picker.Fail()
		pc.Close()
		return nil, err
	}
	if err := e.neg.Send(SignalMessage{Kind: "answer", From: self, To: c.from, SDP: answer}); err != nil {
		pc.Close()
		return nil, err
	}
	e.picker.OK()
	e.track(c.from, pc)
	return &session{engine: e, remote: c.from, pc: pc}, nil
}

// session implements core.PeerSession.
type session struct {
	engine *Engine
	remote domain.PeerID
	pc     *peerConn
}

func (s *session) Remote() domain.PeerID { return s.remote }

func (s *session) AttachOutbound(capture core.MediaCapture) error {
	return s.pc.AddTracks(capture)
}

func (s *session) SetOutbound(kind core.MediaKind, enabled bool) error {
	return s.pc.SetOutbound(kind, enabled)
}

func (s *session) Close() {
	s.pc.Close()
	s.engine.forget(s.remote, s.pc)
}
