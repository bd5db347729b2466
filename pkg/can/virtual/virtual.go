// Package virtual provides an in-memory loopback CAN bus, used by this
// module's tests; the demo CLI always uses socketcan. Unlike the upstream virtualcan project this talks to
// directly, there is no broker process: two Bus values created with
// NewPair are directly wired to each other in process.
package virtual

import (
	"errors"
	"sync"

	"github.com/canopen-go/sdoclient/pkg/can"
)

func init() {
	can.RegisterInterface("virtual", NewStandalone)
}

// Bus is a loopback CAN bus endpoint. Frames sent on one end of a pair
// are delivered to the other end's subscriber, in send order.
type Bus struct {
	mu       sync.Mutex
	peer     *Bus
	listener can.FrameListener
	closed   bool
}

// NewPair returns two ends of a loopback bus, as if two nodes shared a
// physical CAN segment.
func NewPair() (a, b *Bus) {
	a = &Bus{}
	b = &Bus{}
	a.peer = b
	b.peer = a
	return a, b
}

// NewStandalone implements can.NewInterfaceFunc for the "virtual"
// interface name; it returns one end of a fresh loopback pair, whose
// peer is unreachable. It exists only so "virtual" is usable with
// can.NewBus for symmetry with other transports.
func NewStandalone(channel string) (can.Bus, error) {
	a, _ := NewPair()
	return a, nil
}

func (b *Bus) Connect(...any) error { return nil }

func (b *Bus) Disconnect() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *Bus) Send(frame can.Frame) error {
	b.mu.Lock()
	closed := b.closed
	peer := b.peer
	b.mu.Unlock()
	if closed {
		return errors.New("virtual: bus closed")
	}
	if peer == nil {
		return errors.New("virtual: no peer")
	}
	peer.mu.Lock()
	listener := peer.listener
	peer.mu.Unlock()
	if listener != nil {
		listener.Handle(frame)
	}
	return nil
}

func (b *Bus) Subscribe(callback can.FrameListener) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listener = callback
	return nil
}
