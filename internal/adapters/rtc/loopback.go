package rtc

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/dkeye/Meet/internal/domain"
)

// Loopback is an in-process negotiation fabric. Every endpoint registered
// on the same fabric can reach the others by peer id. Used by tests and
// by the client's offline demo mode.
type Loopback struct {
	mu       sync.Mutex
	handlers map[domain.PeerID]func(SignalMessage)
}

func NewLoopback() *Loopback {
	return &Loopback{handlers: make(map[domain.PeerID]func(SignalMessage))}
}

// Endpoint creates one attachment to the fabric.
func (l *Loopback) Endpoint() *LoopbackEndpoint {
	return &LoopbackEndpoint{fabric: l}
}

type LoopbackEndpoint struct {
	fabric *Loopback

	mu      sync.Mutex
	id      domain.PeerID
	handler func(SignalMessage)
}

func (e *LoopbackEndpoint) Register(_ context.Context) (domain.PeerID, error) {
	e.mu.Lock()
	if e.id == "" {
		e.id = domain.PeerID(uuid.NewString())
	}
	id := e.id
	e.mu.Unlock()

	e.fabric.mu.Lock()
	e.fabric.handlers[id] = e.dispatch
	e.fabric.mu.Unlock()
	return id, nil
}

func (e *LoopbackEndpoint) Send(msg SignalMessage) error {
	e.fabric.mu.Lock()
	fn, ok := e.fabric.handlers[msg.To]
	e.fabric.mu.Unlock()
	if !ok {
		return fmt.Errorf("loopback: no endpoint %s", msg.To)
	}
	// Async so negotiation never deadlocks on the sender's goroutine.
	go fn(msg)
	return nil
}

func (e *LoopbackEndpoint) OnMessage(fn func(SignalMessage)) {
	e.mu.Lock()
	e.handler = fn
	e.mu.Unlock()
}

func (e *LoopbackEndpoint) dispatch(msg SignalMessage) {
	e.mu.Lock()
	fn := e.handler
	e.mu.Unlock()
	if fn != nil {
		fn(msg)
	}
}
