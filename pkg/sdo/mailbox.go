package sdo

import (
	"time"

	"github.com/canopen-go/sdoclient/pkg/can"
)

// mailboxDepth bounds how many unconsumed responses can queue up before
// the oldest is dropped, a defensive limit: the active transfer is
// expected to drain every response before the next is sent.
const mailboxDepth = 16

// mailbox is the bounded, single-consumer queue of frames arriving on a
// client's response COB-ID. It is flushed at the start of every
// transfer so a late reply to a previous, timed-out transaction can
// never be mistaken for the current one.
type mailbox struct {
	frames chan can.Frame
}

func newMailbox() *mailbox {
	return &mailbox{frames: make(chan can.Frame, mailboxDepth)}
}

// put delivers a frame to the mailbox. It never blocks: if the mailbox
// is full, the oldest queued frame is discarded to make room, since a
// full mailbox only happens when nothing is consuming it.
func (m *mailbox) put(f can.Frame) {
	for {
		select {
		case m.frames <- f:
			return
		default:
			select {
			case <-m.frames:
			default:
			}
		}
	}
}

// get waits up to timeout for the next queued frame.
func (m *mailbox) get(timeout time.Duration) (can.Frame, bool) {
	select {
	case f := <-m.frames:
		return f, true
	case <-time.After(timeout):
		return can.Frame{}, false
	}
}

// flush discards any frames queued from a previous transaction.
func (m *mailbox) flush() {
	for {
		select {
		case <-m.frames:
		default:
			return
		}
	}
}
