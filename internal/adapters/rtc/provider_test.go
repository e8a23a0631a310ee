package rtc

import (
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testProviders() []webrtc.Configuration {
	return []webrtc.Configuration{
		{ICEServers: []webrtc.ICEServer{{URLs: []string{"stun:a.example.com:3478"}}}},
		{ICEServers: []webrtc.ICEServer{{URLs: []string{"stun:b.example.com:3478"}}}},
		{ICEServers: []webrtc.ICEServer{{URLs: []string{"stun:c.example.com:3478"}}}},
	}
}

func TestPickerRotatesAfterThreshold(t *testing.T) {
	p := newProviderPicker(testProviders(), 3)
	require.Equal(t, 0, p.Index())

	p.Fail()
	p.Fail()
	assert.Equal(t, 0, p.Index(), "below threshold must stay put")

	p.Fail()
	assert.Equal(t, 1, p.Index(), "threshold reached, next provider")
}

func TestPickerSuccessResetsCounter(t *testing.T) {
	p := newProviderPicker(testProviders(), 3)

	p.Fail()
	p.Fail()
	p.OK()
	p.Fail()
	p.Fail()
	assert.Equal(t, 0, p.Index(), "OK must clear accumulated failures")
}

func TestPickerWrapsAround(t *testing.T) {
	p := newProviderPicker(testProviders(), 1)

	p.Fail()
	p.Fail()
	p.Fail()
	assert.Equal(t, 0, p.Index(), "rotation wraps back to the first provider")
}

func TestPickerConfigFollowsIndex(t *testing.T) {
	providers := testProviders()
	p := newProviderPicker(providers, 1)

	assert.Equal(t, providers[0], p.Config())
	p.Fail()
	assert.Equal(t, providers[1], p.Config())
}

func TestPickerDefaults(t *testing.T) {
	p := newProviderPicker(nil, 0)
	require.NotEmpty(t, p.Config().ICEServers)
	assert.Equal(t, defaultFailThreshold, p.threshold)
}
