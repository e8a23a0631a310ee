package coordinator

import (
	"sort"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
)

// roster is the authoritative membership set, keyed by connection id.
// It is only mutated on the coordinator loop, so no locking here.
type roster struct {
	byConn map[domain.ConnectionID]*domain.Participant
}

// rosterDelta is what one inbound membership event changed.
type rosterDelta struct {
	Added   []domain.Participant
	Updated []domain.Participant
	Removed []domain.Participant
}

func (d rosterDelta) empty() bool {
	return len(d.Added) == 0 && len(d.Updated) == 0 && len(d.Removed) == 0
}

func newRoster() *roster {
	return &roster{byConn: make(map[domain.ConnectionID]*domain.Participant)}
}

func fromInfo(info core.ParticipantInfo) domain.Participant {
	return domain.Participant{
		ConnectionID: info.ConnectionID,
		UserID:       info.UserID,
		DisplayName:  info.DisplayName,
		PeerID:       info.PeerID,
		AudioOn:      info.MediaEnabled,
		VideoOn:      info.MediaEnabled,
	}
}

// ApplySnapshot merges an existing-participants snapshot. The merge is
// additive and idempotent: an entry matching a known person (stable user
// id, fallback display name) updates that record in place, including its
// connection id. This absorbs the "I reconnected and my old self is still
// listed" case without duplicating anyone.
func (r *roster) ApplySnapshot(infos []core.ParticipantInfo) rosterDelta {
	var delta rosterDelta
	for _, info := range infos {
		if info.ConnectionID == "" {
			continue
		}
		incoming := fromInfo(info)
		if existing, ok := r.byConn[info.ConnectionID]; ok {
			if r.updateInPlace(existing, incoming) {
				delta.Updated = append(delta.Updated, *existing)
			}
			continue
		}
		if prior := r.findPerson(&incoming); prior != nil {
			delete(r.byConn, prior.ConnectionID)
			r.updateInPlace(prior, incoming)
			prior.ConnectionID = incoming.ConnectionID
			r.byConn[incoming.ConnectionID] = prior
			delta.Updated = append(delta.Updated, *prior)
			continue
		}
		p := incoming
		r.byConn[p.ConnectionID] = &p
		delta.Added = append(delta.Added, p)
	}
	log.Debug().Str("module", "roster").Int("count", len(r.byConn)).
		Int("added", len(delta.Added)).Int("updated", len(delta.Updated)).Msg("snapshot merged")
	return delta
}

// ApplyJoined handles a single participant-joined event.
func (r *roster) ApplyJoined(info core.ParticipantInfo) rosterDelta {
	var delta rosterDelta
	if info.ConnectionID == "" {
		return delta
	}
	incoming := fromInfo(info)
	if existing, ok := r.byConn[info.ConnectionID]; ok {
		if r.updateInPlace(existing, incoming) {
			delta.Updated = append(delta.Updated, *existing)
		}
		return delta
	}
	p := incoming
	r.byConn[p.ConnectionID] = &p
	delta.Added = append(delta.Added, p)
	log.Info().Str("module", "roster").Str("conn", string(p.ConnectionID)).
		Str("name", p.DisplayName).Msg("participant joined")
	return delta
}

// ApplyLeft removes strictly by connection id. Unknown ids are a no-op,
// and a stale self entry is removed like anyone else.
func (r *roster) ApplyLeft(conn domain.ConnectionID) rosterDelta {
	var delta rosterDelta
	p, ok := r.byConn[conn]
	if !ok {
		return delta
	}
	delete(r.byConn, conn)
	delta.Removed = append(delta.Removed, *p)
	log.Info().Str("module", "roster").Str("conn", string(conn)).Msg("participant left")
	return delta
}

// UpdatePresence flips one media flag, matching by connection id first
// and stable user id second.
func (r *roster) UpdatePresence(conn domain.ConnectionID, uid domain.UserID, kind core.MediaKind, enabled bool) (domain.Participant, bool) {
	p, ok := r.byConn[conn]
	if !ok && uid != "" {
		for _, cand := range r.byConn {
			if cand.UserID == uid {
				p, ok = cand, true
				break
			}
		}
	}
	if !ok {
		return domain.Participant{}, false
	}
	switch kind {
	case core.MediaAudio:
		p.AudioOn = enabled
	case core.MediaVideo:
		p.VideoOn = enabled
	default:
		return domain.Participant{}, false
	}
	return *p, true
}

func (r *roster) Get(conn domain.ConnectionID) (domain.Participant, bool) {
	p, ok := r.byConn[conn]
	if !ok {
		return domain.Participant{}, false
	}
	return *p, true
}

// Snapshot returns a stable-ordered copy for listeners and APIs.
func (r *roster) Snapshot() []domain.Participant {
	out := lo.Map(lo.Values(r.byConn), func(p *domain.Participant, _ int) domain.Participant {
		return *p
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].DisplayName != out[j].DisplayName {
			return out[i].DisplayName < out[j].DisplayName
		}
		return out[i].ConnectionID < out[j].ConnectionID
	})
	return out
}

func (r *roster) Len() int { return len(r.byConn) }

func (r *roster) Clear() {
	r.byConn = make(map[domain.ConnectionID]*domain.Participant)
}

// findPerson locates a record describing the same human, if any.
func (r *roster) findPerson(p *domain.Participant) *domain.Participant {
	for _, cand := range r.byConn {
		if cand.SamePerson(p) {
			return cand
		}
	}
	return nil
}

// updateInPlace copies non-empty incoming fields onto existing.
// Reports whether anything actually changed.
func (r *roster) updateInPlace(existing *domain.Participant, incoming domain.Participant) bool {
	changed := false
	if incoming.UserID != "" && existing.UserID != incoming.UserID {
		existing.UserID = incoming.UserID
		changed = true
	}
	if incoming.DisplayName != "" && existing.DisplayName != incoming.DisplayName {
		existing.DisplayName = incoming.DisplayName
		changed = true
	}
	if incoming.PeerID != "" && existing.PeerID != incoming.PeerID {
		existing.PeerID = incoming.PeerID
		changed = true
	}
	if existing.AudioOn != incoming.AudioOn {
		existing.AudioOn = incoming.AudioOn
		changed = true
	}
	if existing.VideoOn != incoming.VideoOn {
		existing.VideoOn = incoming.VideoOn
		changed = true
	}
	return changed
}
