// Package domain contains entities without logic, just meta-data
package domain

import "errors"

const MaxDisplayNameLen = 64

var (
	ErrDisplayNameEmpty   = errors.New("display name empty")
	ErrDisplayNameTooLong = errors.New("display name too long")
)

type (
	// ConnectionID is assigned by the signaling transport for one attachment.
	// It changes on every reconnect.
	ConnectionID string

	// UserID is issued by the identity provider and survives reconnects.
	// Empty for anonymous participants.
	UserID string

	// PeerID addresses one endpoint in the peer-negotiation namespace.
	PeerID string

	RoomID string
)

// Identity is the local participant's view of itself for the current session.
type Identity struct {
	DisplayName  string
	UserID       UserID
	ConnectionID ConnectionID
}

// NewIdentity avoids raw literals in adapters and keeps construction obvious.
func NewIdentity(displayName string, userID UserID) (Identity, error) {
	if displayName == "" {
		return Identity{}, ErrDisplayNameEmpty
	}
	if len(displayName) > MaxDisplayNameLen {
		return Identity{}, ErrDisplayNameTooLong
	}
	return Identity{DisplayName: displayName, UserID: userID}, nil
}
