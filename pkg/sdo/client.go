package sdo

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	log "github.com/sirupsen/logrus"

	"github.com/canopen-go/sdoclient/pkg/can"
	"github.com/canopen-go/sdoclient/pkg/config"
	"github.com/canopen-go/sdoclient/pkg/od"
)

// Mode selects the direction of a streaming transfer opened with
// Client.Open.
type Mode int

const (
	Read Mode = iota
	Write
)

// Client drives one remote node's SDO server over a pair of COB-IDs.
// It is single-transfer: Upload, Download and Open each hold the
// client exclusively until they return or the returned stream is
// closed.
type Client struct {
	bus      *can.BusManager
	od       *od.ObjectDictionary
	cfg      config.ClientConfig
	mbox     *mailbox
	driver   *requestDriver
	reqCobId uint32
	log      *log.Entry

	// transferMu serializes Upload/Download/Open: only one transfer may
	// be live at a time, per spec.
	transferMu sync.Mutex
	aborted    atomic.Bool
}

// NewClient builds a client addressing the SDO server of nodeId, using
// bus for transport. dict may be nil if the caller never needs DOMAIN
// detection for forced segmented downloads.
func NewClient(bus *can.BusManager, nodeId uint8, dict *od.ObjectDictionary, cfg config.ClientConfig) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	reqCobId := 0x600 + uint32(nodeId)
	respCobId := 0x580 + uint32(nodeId)

	mbox := newMailbox()
	c := &Client{
		bus:      bus,
		od:       dict,
		cfg:      cfg,
		mbox:     mbox,
		driver:   newRequestDriver(bus, mbox, reqCobId, cfg),
		reqCobId: reqCobId,
		log:      log.WithField("component", "sdo").WithField("node", nodeId),
	}

	if err := bus.Subscribe(respCobId, c); err != nil {
		return nil, fmt.Errorf("sdo: subscribing to response COB-ID 0x%03X: %w", respCobId, err)
	}
	return c, nil
}

// Handle implements can.FrameListener: every frame arriving on this
// client's response COB-ID lands in its mailbox.
func (c *Client) Handle(frame can.Frame) {
	c.mbox.put(frame)
}

func (c *Client) beginTransfer() {
	c.transferMu.Lock()
	c.aborted.Store(false)
	c.mbox.flush()
}

func (c *Client) endTransfer() {
	c.transferMu.Unlock()
}

// Upload reads the complete value of (index, subindex).
func (c *Client) Upload(index uint16, subindex uint8) ([]byte, error) {
	c.beginTransfer()
	defer c.endTransfer()

	r, err := openUpload(c.driver, index, subindex)
	if err != nil {
		return nil, err
	}
	return r.ReadAll()
}

// Download writes data to (index, subindex). forceSegment forces
// segmented mode even if the value would otherwise fit an expedited
// frame; the client also forces it automatically for DOMAIN-typed
// objects known to the configured Object Dictionary.
func (c *Client) Download(index uint16, subindex uint8, data []byte, forceSegment bool) error {
	c.beginTransfer()
	defer c.endTransfer()

	if !forceSegment && c.od != nil {
		if v, ok := c.od.Lookup(index, subindex); ok && v.ForcesSegmented() {
			forceSegment = true
		}
	}

	w, err := openDownload(c.driver, index, subindex, len(data), forceSegment)
	if err != nil {
		return err
	}

	for pos := 0; pos < len(data); {
		chunk := data[pos:]
		if len(chunk) > 7 {
			chunk = chunk[:7]
		}
		n, err := w.Write(chunk)
		if err != nil {
			return err
		}
		if n == 0 {
			return commErrorf("download stalled: writer accepted no data")
		}
		pos += n
	}

	return w.Close()
}

// Open starts a streaming transfer for large values. size is the
// declared total length of a write, or -1 if unknown; it is ignored
// for reads. Exactly one of the returned reader/writer is non-nil,
// depending on mode. The caller must Close it to release the client
// for the next transfer.
func (c *Client) Open(index uint16, subindex uint8, mode Mode, size int, blockTransfer bool) (io.ReadCloser, io.WriteCloser, error) {
	c.beginTransfer()
	ok := false
	defer func() {
		if !ok {
			c.endTransfer()
		}
	}()

	switch mode {
	case Read:
		if blockTransfer {
			r, err := openBlockUpload(c.driver, index, subindex)
			if err != nil {
				return nil, nil, err
			}
			ok = true
			return &blockUploadStream{r: r, client: c}, nil, nil
		}
		r, err := openUpload(c.driver, index, subindex)
		if err != nil {
			return nil, nil, err
		}
		ok = true
		return &uploadStream{r: r, client: c}, nil, nil

	case Write:
		if blockTransfer {
			w, err := openBlockDownload(c.driver, index, subindex, size)
			if err != nil {
				return nil, nil, err
			}
			ok = true
			return nil, &blockDownloadStream{w: w, client: c}, nil
		}
		forceSegment := false
		if c.od != nil {
			if v, ok := c.od.Lookup(index, subindex); ok && v.ForcesSegmented() {
				forceSegment = true
			}
		}
		w, err := openDownload(c.driver, index, subindex, size, forceSegment)
		if err != nil {
			return nil, nil, err
		}
		ok = true
		return nil, &downloadStream{w: w, client: c}, nil
	}

	return nil, nil, fmt.Errorf("sdo: unknown mode %v", mode)
}

// Abort terminates the currently open stream by sending an abort frame
// with code, addressed to (index, subindex). Once aborted, further
// reads/writes on that stream fail; a second Abort call is a no-op.
// The caller must still Close the stream to release the client.
func (c *Client) Abort(index uint16, subindex uint8, code AbortCode) error {
	if !c.aborted.CompareAndSwap(false, true) {
		return nil
	}
	var request [8]byte
	packHeader(&request, ccsAbort, index, subindex)
	putUint32(&request, 4, uint32(code))
	err := c.driver.send(request)
	c.log.WithField("code", code).Error("sdo: transfer aborted by client")
	return err
}

// errAborted is returned by a stream's Read/Write once Client.Abort has
// been called for it.
var errAborted = commErrorf("transfer aborted")

// streams adapt the transfer engines to io.ReadCloser/io.WriteCloser,
// refuse further I/O once the owning client has been aborted, and
// release the client's transfer lock on Close.

type uploadStream struct {
	r      *uploadReader
	client *Client
	closed bool
}

func (s *uploadStream) Read(p []byte) (int, error) {
	if s.client.aborted.Load() {
		return 0, errAborted
	}
	return s.r.Read(p)
}
func (s *uploadStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.client.endTransfer()
	return nil
}

type downloadStream struct {
	w      *downloadWriter
	client *Client
	closed bool
}

func (s *downloadStream) Write(p []byte) (int, error) {
	if s.client.aborted.Load() {
		return 0, errAborted
	}
	return s.w.Write(p)
}
func (s *downloadStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	var err error
	if !s.client.aborted.Load() {
		err = s.w.Close()
	}
	s.client.endTransfer()
	return err
}

type blockUploadStream struct {
	r      *blockUploadReader
	client *Client
	closed bool
}

func (s *blockUploadStream) Read(p []byte) (int, error) {
	if s.client.aborted.Load() {
		return 0, errAborted
	}
	data, err := s.r.Read()
	if err != nil {
		return 0, err
	}
	return copy(p, data), nil
}
func (s *blockUploadStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	var err error
	if !s.client.aborted.Load() {
		err = s.r.Close()
	}
	s.client.endTransfer()
	return err
}

type blockDownloadStream struct {
	w      *blockDownloadWriter
	client *Client
	closed bool
}

func (s *blockDownloadStream) Write(p []byte) (int, error) {
	if s.client.aborted.Load() {
		return 0, errAborted
	}
	return s.w.Write(p)
}
func (s *blockDownloadStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	var err error
	if !s.client.aborted.Load() {
		err = s.w.Close()
	}
	s.client.endTransfer()
	return err
}
