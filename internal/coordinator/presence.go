package coordinator

import "github.com/dkeye/Meet/internal/core"

// localPresence mirrors the local audio/video toggles. Presence is
// room-level display metadata, broadcast whether or not any peer session
// exists; it never gates session creation.
type localPresence struct {
	audioOn bool
	videoOn bool
}

// newLocalPresence starts with both kinds enabled: once capture is
// attached, media transmits until it is muted.
func newLocalPresence() localPresence {
	return localPresence{audioOn: true, videoOn: true}
}

// Set flips one flag and reports whether it changed.
func (p *localPresence) Set(kind core.MediaKind, enabled bool) bool {
	switch kind {
	case core.MediaAudio:
		if p.audioOn == enabled {
			return false
		}
		p.audioOn = enabled
	case core.MediaVideo:
		if p.videoOn == enabled {
			return false
		}
		p.videoOn = enabled
	default:
		return false
	}
	return true
}

func (p *localPresence) Get(kind core.MediaKind) bool {
	if kind == core.MediaAudio {
		return p.audioOn
	}
	return p.videoOn
}
