package domain

// Participant is one room member as seen by the membership tracker.
// ConnectionID is the primary key for peer-session routing; identity
// across reconnects is resolved through SamePerson.
type Participant struct {
	ConnectionID ConnectionID
	UserID       UserID
	DisplayName  string
	PeerID       PeerID
	AudioOn      bool
	VideoOn      bool
}

// SamePerson reports whether two records describe the same human.
// Stable user id wins; anonymous participants fall back to display name.
func (p *Participant) SamePerson(other *Participant) bool {
	if p.UserID != "" && other.UserID != "" {
		return p.UserID == other.UserID
	}
	return p.DisplayName != "" && p.DisplayName == other.DisplayName
}
