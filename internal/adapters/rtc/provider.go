package rtc

import (
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

const defaultFailThreshold = 3

// DefaultProviders returns the ICE provider list in preference order.
func DefaultProviders() []webrtc.Configuration {
	return []webrtc.Configuration{
		{ICEServers: []webrtc.ICEServer{{URLs: []string{"stun:stun.l.google.com:19302"}}}},
		{ICEServers: []webrtc.ICEServer{{URLs: []string{"stun:global.stun.twilio.com:3478"}}}},
	}
}

// providerPicker rotates to the next ICE provider after repeated
// negotiation failures; a success resets the counter.
type providerPicker struct {
	mu        sync.Mutex
	providers []webrtc.Configuration
	idx       int
	failures  int
	threshold int
}

func newProviderPicker(providers []webrtc.Configuration, threshold int) *providerPicker {
	if len(providers) == 0 {
		providers = DefaultProviders()
	}
	if threshold <= 0 {
		threshold = defaultFailThreshold
	}
	return &providerPicker{providers: providers, threshold: threshold}
}

func (p *providerPicker) Config() webrtc.Configuration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.providers[p.idx]
}

func (p *providerPicker) OK() {
	p.mu.Lock()
	p.failures = 0
	p.mu.Unlock()
}

func (p *providerPicker) Fail() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures++
	if p.failures < p.threshold {
		return
	}
	p.failures = 0
	p.idx = (p.idx + 1) % len(p.providers)
	log.Warn().Str("module", "rtc").Int("provider", p.idx).Msg("negotiation failures, rotating ICE provider")
}

// Index is exposed for tests and diagnostics.
func (p *providerPicker) Index() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.idx
}
