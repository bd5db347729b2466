// Package socketcan adapts github.com/brutella/can, a Linux SocketCAN
// binding, to the can.Bus interface.
package socketcan

import (
	sockcan "github.com/brutella/can"

	"github.com/canopen-go/sdoclient/pkg/can"
)

func init() {
	can.RegisterInterface("socketcan", NewBus)
}

// Bus wraps a brutella/can Bus for a named SocketCAN interface (e.g.
// "can0", "vcan0").
type Bus struct {
	bus        *sockcan.Bus
	rxCallback can.FrameListener
}

func NewBus(name string) (can.Bus, error) {
	bus, err := sockcan.NewBusForInterfaceWithName(name)
	if err != nil {
		return nil, err
	}
	return &Bus{bus: bus}, nil
}

func (b *Bus) Connect(...any) error {
	go b.bus.ConnectAndPublish()
	return nil
}

func (b *Bus) Disconnect() error {
	return b.bus.Disconnect()
}

func (b *Bus) Send(frame can.Frame) error {
	return b.bus.Publish(sockcan.Frame{
		ID:     frame.ID,
		Length: frame.DLC,
		Flags:  frame.Flags,
		Data:   frame.Data,
	})
}

func (b *Bus) Subscribe(rxCallback can.FrameListener) error {
	b.rxCallback = rxCallback
	// brutella/can defines its own Handle-based listener interface
	b.bus.Subscribe(b)
	return nil
}

// Handle implements brutella/can's frame listener interface.
func (b *Bus) Handle(frame sockcan.Frame) {
	b.rxCallback.Handle(can.Frame{
		ID:    frame.ID,
		DLC:   frame.Length,
		Flags: frame.Flags,
		Data:  frame.Data,
	})
}
