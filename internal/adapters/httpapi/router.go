// Package httpapi exposes the coordinator's state as a read-only local
// HTTP API, the reference consumer of the subscription surface.
package httpapi

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
)

// Store implements core.Listener and keeps render-ready copies of the
// coordinator's state. Callbacks run on the coordinator loop, so they
// only copy under the lock and return.
type Store struct {
	mu           sync.RWMutex
	state        core.ConnState
	participants []domain.Participant
	messages     []domain.ChatMessage
}

func NewStore() *Store {
	return &Store{state: core.StateDisconnected}
}

func (s *Store) ConnectionStateChanged(state core.ConnState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Store) ParticipantsChanged(snapshot []domain.Participant) {
	s.mu.Lock()
	s.participants = snapshot
	s.mu.Unlock()
}

func (s *Store) MessageAppended(msg domain.ChatMessage) {
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()
}

func (s *Store) PresenceChanged(p domain.Participant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.participants {
		if s.participants[i].ConnectionID == p.ConnectionID {
			s.participants[i] = p
			return
		}
	}
}

type participantDTO struct {
	ConnectionID domain.ConnectionID `json:"connectionId"`
	UserID       domain.UserID       `json:"userId,omitempty"`
	DisplayName  string              `json:"displayName"`
	AudioOn      bool                `json:"audioOn"`
	VideoOn      bool                `json:"videoOn"`
}

type messageDTO struct {
	Sender string `json:"sender"`
	Body   string `json:"body"`
	Time   string `json:"time"`
}

func SetupRouter(mode string, store *Store) *gin.Engine {
	if mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	api := r.Group("/api")

	api.GET("/state", func(c *gin.Context) {
		store.mu.RLock()
		state := store.state
		store.mu.RUnlock()
		c.JSON(http.StatusOK, gin.H{"state": state.String()})
	})

	api.GET("/participants", func(c *gin.Context) {
		store.mu.RLock()
		out := make([]participantDTO, 0, len(store.participants))
		for _, p := range store.participants {
			out = append(out, participantDTO{
				ConnectionID: p.ConnectionID,
				UserID:       p.UserID,
				DisplayName:  p.DisplayName,
				AudioOn:      p.AudioOn,
				VideoOn:      p.VideoOn,
			})
		}
		store.mu.RUnlock()
		c.JSON(http.StatusOK, gin.H{"participants": out, "count": len(out)})
	})

	api.GET("/messages", func(c *gin.Context) {
		store.mu.RLock()
		out := make([]messageDTO, 0, len(store.messages))
		for _, m := range store.messages {
			out = append(out, messageDTO{Sender: m.Sender, Body: m.Body, Time: m.Time})
		}
		store.mu.RUnlock()
		c.JSON(http.StatusOK, gin.H{"messages": out, "count": len(out)})
	})

	return r
}
