package sdo

import (
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/canopen-go/sdoclient/pkg/can"
	"github.com/canopen-go/sdoclient/pkg/config"
)

// busOverflowRetryDelay is how long the driver waits before resending a
// request after a transient transport error.
const busOverflowRetryDelay = 100 * time.Millisecond

// sender is the narrow part of can.Bus the driver actually needs.
// *can.BusManager satisfies it directly, without also having to satisfy
// can.Bus's Subscribe(FrameListener) signature (BusManager's Subscribe
// takes an extra cobId to pick a listener out of several).
type sender interface {
	Send(frame can.Frame) error
}

// requestDriver sends requests on the client's request COB-ID and
// correlates them with responses delivered to the mailbox, retrying
// within the bounds of cfg.
type requestDriver struct {
	bus      sender
	mbox     *mailbox
	cfg      config.ClientConfig
	reqCobId uint32
	log      *log.Entry
}

func newRequestDriver(bus sender, mbox *mailbox, reqCobId uint32, cfg config.ClientConfig) *requestDriver {
	return &requestDriver{
		bus:      bus,
		mbox:     mbox,
		cfg:      cfg,
		reqCobId: reqCobId,
		log:      log.WithField("component", "sdo"),
	}
}

// send transmits one 8-byte frame, retrying on a transient bus error up
// to cfg.MaxRetries times with a fixed back-off.
func (d *requestDriver) send(data [8]byte) error {
	retriesLeft := d.cfg.MaxRetries
	for {
		if d.cfg.PauseBeforeSend > 0 {
			time.Sleep(d.cfg.PauseBeforeSend)
		}
		err := d.bus.Send(can.Frame{ID: d.reqCobId, DLC: 8, Data: data})
		if err == nil {
			return nil
		}
		if !errors.Is(err, can.ErrBusOverflow) || retriesLeft <= 0 {
			return err
		}
		retriesLeft--
		d.log.WithError(err).Info("sdo: transient send error, retrying")
		time.Sleep(busOverflowRetryDelay)
	}
}

// readResponse waits for the next mailbox frame within the configured
// response timeout, translating an abort frame into *AbortedError.
func (d *requestDriver) readResponse() ([8]byte, error) {
	frame, ok := d.mbox.get(d.cfg.ResponseTimeout)
	if !ok {
		return [8]byte{}, commErrorf("no SDO response received")
	}
	command, _, _ := unpackHeader(frame.Data)
	if command == scsAbort {
		return [8]byte{}, &AbortedError{Code: AbortCode(getUint32(frame.Data, 4))}
	}
	return frame.Data, nil
}

// requestResponse sends request and waits for a matching response,
// retrying the whole round trip up to cfg.MaxRetries times on a
// CommunicationError. An AbortedError is never retried: it surfaces
// immediately since the server has already ended the transfer.
func (d *requestDriver) requestResponse(request [8]byte) ([8]byte, error) {
	retriesLeft := d.cfg.MaxRetries
	for {
		if err := d.send(request); err != nil {
			return [8]byte{}, err
		}
		response, err := d.readResponse()
		if err == nil {
			return response, nil
		}
		var aborted *AbortedError
		if errors.As(err, &aborted) {
			return [8]byte{}, err
		}
		if retriesLeft <= 0 {
			return [8]byte{}, err
		}
		retriesLeft--
		d.log.WithError(err).Warn("sdo: retrying request")
	}
}
