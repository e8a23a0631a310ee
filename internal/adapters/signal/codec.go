package signal

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
)

// The wire format is a JSON envelope tagged by "type". Decoding goes
// through one dispatch table into the core.Event union, so adding an
// event kind means adding a variant and a row here.

var ErrUnknownEvent = errors.New("unknown event type")

type envelope struct {
	Type string `json:"type"`
}

var decoders = map[string]func([]byte) (core.Event, error){
	"existing-participants": decodeExisting,
	"participant-joined":    decodeJoined,
	"participant-left":      decodeLeft,
	"receiveMessage":        decodeMessage,
	"presence-update":       decodePresence,
	"roomError":             decodeFault,
	"messageError":          decodeFault,
}

// Decode maps one raw frame onto its event variant.
func Decode(data []byte) (core.Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("bad envelope: %w", err)
	}
	dec, ok := decoders[env.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Type)
	}
	return dec(data)
}

func decodeExisting(data []byte) (core.Event, error) {
	var p struct {
		Participants []core.ParticipantInfo `json:"participants"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return core.ExistingParticipants{Participants: p.Participants}, nil
}

func decodeJoined(data []byte) (core.Event, error) {
	var p core.ParticipantInfo
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return core.ParticipantJoined{Participant: p}, nil
}

func decodeLeft(data []byte) (core.Event, error) {
	var p struct {
		ConnectionID domain.ConnectionID `json:"connectionId"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return core.ParticipantLeft{ConnectionID: p.ConnectionID}, nil
}

func decodeMessage(data []byte) (core.Event, error) {
	var p struct {
		Sender   string        `json:"sender"`
		SenderID domain.UserID `json:"senderId"`
		Message  string        `json:"message"`
		Time     string        `json:"time"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return core.MessageReceived{Sender: p.Sender, SenderID: p.SenderID, Body: p.Message, Time: p.Time}, nil
}

func decodePresence(data []byte) (core.Event, error) {
	var p struct {
		ConnectionID domain.ConnectionID `json:"connectionId"`
		UserID       domain.UserID       `json:"userId"`
		Enabled      bool                `json:"enabled"`
		Kind         core.MediaKind      `json:"kind"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return core.PresenceUpdated{ConnectionID: p.ConnectionID, UserID: p.UserID, Enabled: p.Enabled, Kind: p.Kind}, nil
}

func decodeFault(data []byte) (core.Event, error) {
	var p struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return core.RoomFault{Reason: p.Error}, nil
}

// Encode maps one outbound variant onto its wire frame.
func Encode(out core.Outbound) ([]byte, error) {
	switch v := out.(type) {
	case core.JoinRoom:
		return json.Marshal(struct {
			Type        string        `json:"type"`
			RoomID      domain.RoomID `json:"roomId"`
			DisplayName string        `json:"displayName"`
			UserID      domain.UserID `json:"userId,omitempty"`
		}{"join", v.RoomID, v.DisplayName, v.UserID})
	case core.LeaveRoom:
		return json.Marshal(struct {
			Type   string        `json:"type"`
			RoomID domain.RoomID `json:"roomId"`
		}{"leave", v.RoomID})
	case core.SendMessage:
		return json.Marshal(struct {
			Type     string        `json:"type"`
			RoomID   domain.RoomID `json:"roomId"`
			Sender   string        `json:"sender"`
			SenderID domain.UserID `json:"senderId,omitempty"`
			Message  string        `json:"message"`
			Token    string        `json:"token,omitempty"`
		}{"sendMessage", v.RoomID, v.Sender, v.SenderID, v.Body, v.Token})
	case core.PresenceUpdate:
		return json.Marshal(struct {
			Type    string         `json:"type"`
			Enabled bool           `json:"enabled"`
			Kind    core.MediaKind `json:"kind"`
		}{"presence-update", v.Enabled, v.Kind})
	default:
		return nil, fmt.Errorf("unencodable outbound %T", out)
	}
}
