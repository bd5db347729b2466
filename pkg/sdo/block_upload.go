package sdo

import (
	"errors"
	"time"

	"github.com/canopen-go/sdoclient/internal/crc"
)

// blockUploadReader implements block upload: a windowed, multi-frame
// read with an optional CRC-16-CCITT check over the whole stream.
type blockUploadReader struct {
	driver *requestDriver

	index    uint16
	subindex uint8

	pos        int
	size       int // -1 if unknown
	done       bool
	blksize    uint8
	ackseq     uint8
	crcSupport bool
	crc        crc.CRC16
	serverCrc  uint16
}

func openBlockUpload(driver *requestDriver, index uint16, subindex uint8) (*blockUploadReader, error) {
	blksize := driver.cfg.BlockSize
	if blksize == 0 {
		blksize = defaultBlockSize
	}

	var request [8]byte
	command := byte(ccsBlockUpload | blockInitiate | blockCrcSupport)
	packHeader(&request, command, index, subindex)
	request[4] = blksize
	request[5] = 0 // pst: server protocol switch threshold, unused by this client

	response, err := driver.requestResponse(request)
	if err != nil {
		return nil, err
	}

	resCommand, resIndex, resSubindex := unpackHeader(response)
	if resCommand&classMask != scsBlockUpload {
		return nil, commErrorf("unexpected response 0x%02X initiating block upload", resCommand)
	}
	if resIndex != index || resSubindex != subindex {
		return nil, commErrorf(
			"node responded for %04X:%02X instead of %04X:%02X, another client may share this channel",
			resIndex, resSubindex, index, subindex)
	}

	r := &blockUploadReader{
		driver:     driver,
		index:      index,
		subindex:   subindex,
		size:       -1,
		blksize:    blksize,
		crcSupport: resCommand&blockCrcSupport != 0,
	}
	if resCommand&blockSizeSpec != 0 {
		r.size = int(getUint32(response, 4))
	}

	var start [8]byte
	start[0] = ccsBlockUpload | blockStartUpload
	if err := driver.send(start); err != nil {
		return nil, err
	}

	return r, nil
}

// Read returns the next data frame's payload, up to 7 bytes. On the
// final frame it verifies the server's CRC, if both sides support it,
// and aborts the transfer with AbortCRC on mismatch.
func (r *blockUploadReader) Read() ([]byte, error) {
	if r.done {
		return nil, nil
	}

	response, err := r.driver.readResponse()
	if err != nil {
		var aborted *AbortedError
		if errors.As(err, &aborted) {
			return nil, err
		}
		response, err = r.retransmit()
		if err != nil {
			return nil, err
		}
	}

	seqno := response[0] & 0x7F
	if seqno == r.ackseq+1 {
		r.ackseq = seqno
	} else {
		response, err = r.retransmit()
		if err != nil {
			return nil, err
		}
		seqno = response[0] & 0x7F
	}

	last := response[0]&blockNoMore != 0
	if int(r.ackseq) >= int(r.blksize) || last {
		if err := r.ackBlock(); err != nil {
			return nil, err
		}
	}

	var data []byte
	if last {
		n, err := r.endUpload()
		if err != nil {
			return nil, err
		}
		data = response[1 : 8-n]
		r.done = true
	} else {
		data = response[1:8]
	}

	if r.crcSupport {
		r.crc.Block(data)
		if r.done && uint16(r.crc) != r.serverCrc {
			r.abort(AbortCRC)
			return nil, commErrorf("CRC mismatch verifying block upload of %04X:%02X", r.index, r.subindex)
		}
	}

	r.pos += len(data)
	return data, nil
}

// retransmit is invoked when a data frame is missing or out of order:
// it resends the last block-ack to reassert the expected sequence
// number and waits up to the response timeout for the server to catch
// up.
func (r *blockUploadReader) retransmit() ([8]byte, error) {
	if err := r.ackBlock(); err != nil {
		return [8]byte{}, err
	}
	deadline := time.Now().Add(r.driver.cfg.ResponseTimeout)
	for time.Now().Before(deadline) {
		response, err := r.driver.readResponse()
		if err != nil {
			return [8]byte{}, err
		}
		seqno := response[0] & 0x7F
		if seqno == r.ackseq+1 {
			r.ackseq = seqno
			return response, nil
		}
	}
	return [8]byte{}, commErrorf("block upload of %04X:%02X lost data and could not recover", r.index, r.subindex)
}

func (r *blockUploadReader) ackBlock() error {
	var request [8]byte
	request[0] = ccsBlockUpload | blockAck
	request[1] = r.ackseq
	request[2] = r.blksize
	if err := r.driver.send(request); err != nil {
		return err
	}
	if r.ackseq == r.blksize {
		r.ackseq = 0
	}
	return nil
}

// endUpload reads the server's END frame and returns the number of
// unused bytes in the final data frame.
func (r *blockUploadReader) endUpload() (int, error) {
	response, err := r.driver.readResponse()
	if err != nil {
		return 0, err
	}
	command, _, _ := unpackHeader(response)
	if command&classMask != scsBlockUpload {
		r.abort(AbortCommandUnknown)
		return 0, commErrorf("unexpected response 0x%02X ending block upload", command)
	}
	if command&0x3 != blockEnd {
		r.abort(AbortCommandUnknown)
		return 0, commErrorf("server did not end block upload as expected")
	}
	r.serverCrc = uint16(response[1]) | uint16(response[2])<<8
	return int((command >> 2) & 0x7), nil
}

// Close sends the client's final END acknowledgement once the transfer
// has completed.
func (r *blockUploadReader) Close() error {
	if !r.done {
		return nil
	}
	var request [8]byte
	request[0] = ccsBlockUpload | blockEnd
	return r.driver.send(request)
}

func (r *blockUploadReader) abort(code AbortCode) {
	var request [8]byte
	packHeader(&request, ccsAbort, r.index, r.subindex)
	putUint32(&request, 4, uint32(code))
	_ = r.driver.send(request)
}
