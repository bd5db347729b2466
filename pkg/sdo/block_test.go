package sdo

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/canopen-go/sdoclient/internal/crc"
	"github.com/canopen-go/sdoclient/pkg/can"
	"github.com/canopen-go/sdoclient/pkg/can/virtual"
	"github.com/canopen-go/sdoclient/pkg/config"
)

// blockUploadServer is a scripted fake server for a single block
// upload of a fixed payload, split into 7-byte frames.
type blockUploadServer struct {
	bus        can.Bus
	payload    []byte
	corrupt    bool
	pendingCrc crc.CRC16
}

func (s *blockUploadServer) Handle(req can.Frame) {
	command, index, subindex := unpackHeader(req.Data)

	switch {
	case command == byte(ccsBlockUpload|blockInitiate|blockCrcSupport):
		var resp [8]byte
		packHeader(&resp, byte(scsBlockUpload|blockCrcSupport|blockSizeSpec), index, subindex)
		putUint32(&resp, 4, uint32(len(s.payload)))
		_ = s.bus.Send(frame(resp))

	case command == byte(ccsBlockUpload|blockStartUpload):
		var acc crc.CRC16
		for pos := 0; pos < len(s.payload); pos += 7 {
			end := pos + 7
			last := false
			if end >= len(s.payload) {
				end = len(s.payload)
				last = true
			}
			chunk := s.payload[pos:end]
			acc.Block(chunk)

			var data [8]byte
			seqno := byte(pos/7 + 1)
			if last {
				seqno |= blockNoMore
			}
			data[0] = seqno
			copy(data[1:], chunk)
			_ = s.bus.Send(frame(data))
		}
		s.corruptCrcIfNeeded(&acc)
		s.pendingCrc = acc

	case command&0x3 == blockAck && command&classMask == ccsBlockUpload:
		unused := 7 - len(s.payload)%7
		if len(s.payload)%7 == 0 {
			unused = 0
		}
		var resp [8]byte
		resp[0] = byte(scsBlockUpload | blockEnd | byte(unused)<<2)
		resp[1] = byte(s.pendingCrc)
		resp[2] = byte(s.pendingCrc >> 8)
		_ = s.bus.Send(frame(resp))

	case command == byte(ccsBlockUpload|blockEnd):
		// Final client acknowledgement; nothing to send back.
	}
}

func (s *blockUploadServer) corruptCrcIfNeeded(acc *crc.CRC16) {
	if s.corrupt {
		*acc ^= 0xFFFF
	}
}

func newBlockUploadClient(t *testing.T, server *blockUploadServer) *Client {
	t.Helper()
	clientEnd, serverEnd := virtual.NewPair()
	server.bus = serverEnd
	if err := serverEnd.Subscribe(server); err != nil {
		t.Fatal(err)
	}

	bm := can.NewBusManager(clientEnd)
	if err := bm.Connect(); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.ResponseTimeout = 50 * time.Millisecond

	client, err := NewClient(bm, 0x10, nil, cfg)
	if err != nil {
		t.Fatal(err)
	}
	return client
}

func TestBlockUploadCRC(t *testing.T) {
	payload := make([]byte, 14)
	for i := range payload {
		payload[i] = byte(i + 1)
	}
	server := &blockUploadServer{payload: payload}
	client := newBlockUploadClient(t, server)

	r, _, err := client.Open(0x1018, 0, Read, -1, true)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	var got bytes.Buffer
	buf := make([]byte, 7)
	for {
		n, err := r.Read(buf)
		if err != nil {
			t.Fatal(err)
		}
		if n == 0 {
			break
		}
		got.Write(buf[:n])
	}

	if !bytes.Equal(got.Bytes(), payload) {
		t.Fatalf("got %X, want %X", got.Bytes(), payload)
	}
}

func TestBlockUploadCRCMismatchAborts(t *testing.T) {
	payload := make([]byte, 14)
	for i := range payload {
		payload[i] = byte(i + 1)
	}
	server := &blockUploadServer{payload: payload, corrupt: true}
	client := newBlockUploadClient(t, server)

	r, _, err := client.Open(0x1018, 0, Read, -1, true)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	buf := make([]byte, 7)
	var lastErr error
	for {
		n, err := r.Read(buf)
		if err != nil {
			lastErr = err
			break
		}
		if n == 0 {
			break
		}
	}
	var commErr *CommunicationError
	if !errors.As(lastErr, &commErr) {
		t.Fatalf("expected CommunicationError from CRC mismatch, got %v", lastErr)
	}
}
