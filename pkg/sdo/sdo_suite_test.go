package sdo

import (
	"testing"
	"time"

	"github.com/canopen-go/sdoclient/pkg/can"
	"github.com/canopen-go/sdoclient/pkg/can/virtual"
	"github.com/canopen-go/sdoclient/pkg/config"
	"github.com/canopen-go/sdoclient/pkg/od"
)

// newTestClient wires a Client to a fake server reachable through an
// in-memory loopback bus, mirroring the virtual-bus test style used
// elsewhere in this module.
func newTestClient(t *testing.T, nodeId uint8, handle func(can.Frame) (can.Frame, bool)) *Client {
	t.Helper()
	return newTestClientWithOD(t, nodeId, nil, handle)
}

func newTestClientWithOD(t *testing.T, nodeId uint8, dict *od.ObjectDictionary, handle func(can.Frame) (can.Frame, bool)) *Client {
	t.Helper()

	clientEnd, serverEnd := virtual.NewPair()
	_ = serverEnd.Subscribe(frameListenerFunc(func(frame can.Frame) {
		if resp, ok := handle(frame); ok {
			_ = serverEnd.Send(resp)
		}
	}))

	bm := can.NewBusManager(clientEnd)
	if err := bm.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}

	cfg := config.Default()
	cfg.ResponseTimeout = 50 * time.Millisecond // keeps retry/timeout tests fast

	client, err := NewClient(bm, nodeId, dict, cfg)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

type frameListenerFunc func(can.Frame)

func (f frameListenerFunc) Handle(frame can.Frame) { f(frame) }

// testRespCobId is the response COB-ID of the node every test in this
// package talks to (node 0x10, so 0x580+0x10).
const testRespCobId = 0x580 + 0x10

// frame wraps a response payload with the test node's response COB-ID,
// so the client's BusManager dispatch actually routes it to the
// client's mailbox.
func frame(data [8]byte) can.Frame {
	return can.Frame{ID: testRespCobId, DLC: 8, Data: data}
}
