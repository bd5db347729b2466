package can

import (
	"sync"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// MaxCanId is the highest standard (11-bit) CAN identifier.
const MaxCanId = 0x7FF

// BusManager sits between a Bus and one or more COB-ID subscribers (SDO
// clients, in this module). It multiplexes a single physical bus by
// dispatching every inbound frame to whichever subscriber registered for
// its identifier, implementing the "COB-ID dispatch" collaborator spec.md
// describes as part of the CAN transport.
type BusManager struct {
	mu        sync.Mutex
	bus       Bus
	listeners [MaxCanId + 1][]FrameListener
}

// NewBusManager wraps bus. Inbound frames are dispatched to subscribers
// registered via Subscribe once Connect has been called.
func NewBusManager(bus Bus) *BusManager {
	bm := &BusManager{bus: bus}
	return bm
}

// Handle implements FrameListener: it is the callback a Bus invokes for
// every received frame, regardless of destination.
func (bm *BusManager) Handle(frame Frame) {
	canId := frame.ID & unix.CAN_SFF_MASK
	if canId > MaxCanId {
		return
	}
	bm.mu.Lock()
	listeners := append([]FrameListener(nil), bm.listeners[canId]...)
	bm.mu.Unlock()

	for _, l := range listeners {
		l.Handle(frame)
	}
}

// Subscribe registers callback to receive every frame whose 11-bit
// identifier equals cobId.
func (bm *BusManager) Subscribe(cobId uint32, callback FrameListener) error {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	if cobId > MaxCanId {
		return ErrInvalidCobId
	}
	bm.listeners[cobId] = append(bm.listeners[cobId], callback)
	return nil
}

// Unsubscribe removes a previously registered callback for cobId.
func (bm *BusManager) Unsubscribe(cobId uint32, callback FrameListener) {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	if cobId > MaxCanId {
		return
	}
	listeners := bm.listeners[cobId]
	for i, l := range listeners {
		if l == callback {
			bm.listeners[cobId] = append(listeners[:i], listeners[i+1:]...)
			return
		}
	}
}

// Send transmits frame on the underlying bus.
func (bm *BusManager) Send(frame Frame) error {
	err := bm.bus.Send(frame)
	if err != nil {
		log.WithError(err).Warn("can: error sending frame")
	}
	return err
}

// Connect starts dispatching inbound frames from the underlying bus.
func (bm *BusManager) Connect(args ...any) error {
	if err := bm.bus.Connect(args...); err != nil {
		return err
	}
	return bm.bus.Subscribe(bm)
}

func (bm *BusManager) Disconnect() error {
	return bm.bus.Disconnect()
}
