package rtc

import (
	"context"
	"errors"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
)

var ErrConnClosed = errors.New("peer connection closed")

// sentTrack pairs a local track with its sender so transmission can be
// paused and resumed without renegotiation.
type sentTrack struct {
	sender *webrtc.RTPSender
	track  webrtc.TrackLocal
	kind   core.MediaKind
}

// peerConn wraps one webrtc.PeerConnection toward a single remote peer.
type peerConn struct {
	pc     *webrtc.PeerConnection
	remote domain.PeerID
	cancel context.CancelFunc

	mu     sync.Mutex
	sent   []sentTrack
	closed bool

	onICE    func(webrtc.ICECandidateInit)
	onClosed func()
}

func newPeerConn(cfg webrtc.Configuration, remote domain.PeerID) (*peerConn, error) {
	pc, err := webrtc.NewPeerConnection(cfg)
	if err != nil {
		return nil, err
	}
	return &peerConn{pc: pc, remote: remote}, nil
}

func (c *peerConn) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		log.Debug().Str("module", "rtc").Str("peer", string(c.remote)).Str("ice_state", s.String()).Msg("ICE state")
		if s == webrtc.ICEConnectionStateDisconnected ||
			s == webrtc.ICEConnectionStateFailed ||
			s == webrtc.ICEConnectionStateClosed {
			cancel()
		}
	})

	c.pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Info().Str("module", "rtc").Str("peer", string(c.remote)).Str("peer_connection_state", s.String()).Msg("peer state")
		if s == webrtc.PeerConnectionStateFailed ||
			s == webrtc.PeerConnectionStateClosed {
			c.mu.Lock()
			fn := c.onClosed
			c.mu.Unlock()
			if fn != nil {
				fn()
			}
		}
	})

	c.pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		c.mu.Lock()
		fn := c.onICE
		c.mu.Unlock()
		if cand != nil && fn != nil {
			fn(cand.ToJSON())
		}
	})
}

func (c *peerConn) OnICECandidate(fn func(webrtc.ICECandidateInit)) {
	c.mu.Lock()
	c.onICE = fn
	c.mu.Unlock()
}

func (c *peerConn) OnClosed(fn func()) {
	c.mu.Lock()
	c.onClosed = fn
	c.mu.Unlock()
}

// AddTracks attaches the capture's tracks by reference.
func (c *peerConn) AddTracks(capture core.MediaCapture) error {
	for _, track := range capture.Tracks() {
		sender, err := c.pc.AddTrack(track)
		if err != nil {
			return err
		}
		kind := core.MediaAudio
		if track.Kind() == webrtc.RTPCodecTypeVideo {
			kind = core.MediaVideo
		}
		c.mu.Lock()
		c.sent = append(c.sent, sentTrack{sender: sender, track: track, kind: kind})
		c.mu.Unlock()
	}
	return nil
}

// SetOutbound swaps the sender's track out (or back in) for one kind.
// The session itself stays open; only transmission stops.
func (c *peerConn) SetOutbound(kind core.MediaKind, enabled bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnClosed
	}
	for _, st := range c.sent {
		if st.kind != kind {
			continue
		}
		var replacement webrtc.TrackLocal
		if enabled {
			replacement = st.track
		}
		if err := st.sender.ReplaceTrack(replacement); err != nil {
			return err
		}
	}
	return nil
}

// CreateOfferAndGather produces a local offer with ICE gathering complete,
// so the SDP carries all candidates.
func (c *peerConn) CreateOfferAndGather() (*webrtc.SessionDescription, error) {
	offer, err := c.pc.CreateOffer(nil)
	if err != nil {
		return nil, err
	}
	gatherComplete := webrtc.GatheringCompletePromise(c.pc)
	if err := c.pc.SetLocalDescription(offer); err != nil {
		return nil, err
	}
	<-gatherComplete
	return c.pc.LocalDescription(), nil
}

func (c *peerConn) ApplyAnswer(answer webrtc.SessionDescription) error {
	return c.pc.SetRemoteDescription(answer)
}

func (c *peerConn) ApplyOfferAndCreateAnswer(offer webrtc.SessionDescription) (*webrtc.SessionDescription, error) {
	if err := c.pc.SetRemoteDescription(offer); err != nil {
		return nil, err
	}
	answer, err := c.pc.CreateAnswer(nil)
	if err != nil {
		return nil, err
	}
	gatherComplete := webrtc.GatheringCompletePromise(c.pc)
	if err := c.pc.SetLocalDescription(answer); err != nil {
		return nil, err
	}
	<-gatherComplete
	return c.pc.LocalDescription(), nil
}

func (c *peerConn) AddICECandidate(ci webrtc.ICECandidateInit) error {
	return c.pc.AddICECandidate(ci)
}

func (c *peerConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}
	if err := c.pc.Close(); err != nil {
		log.Error().Err(err).Str("module", "rtc").Str("peer", string(c.remote)).Msg("close error")
	} else {
		log.Info().Str("module", "rtc").Str("peer", string(c.remote)).Msg("closed")
	}
}
