package sdo

import "github.com/canopen-go/sdoclient/internal/crc"

// blockDownloadWriter implements block download: a windowed,
// multi-frame write acknowledged one block at a time, with an optional
// CRC-16-CCITT check over the whole stream. This client does not
// retransmit on a failed block acknowledgement; a sequence mismatch
// aborts the transfer, matching the conformance target of this spec.
type blockDownloadWriter struct {
	driver *requestDriver

	index    uint16
	subindex uint8

	pos           int
	size          int // -1 if unknown
	done          bool
	seqno         uint8
	blksize       uint8
	lastBytesSent int
	crcSupport    bool
	crc           crc.CRC16
}

func openBlockDownload(driver *requestDriver, index uint16, subindex uint8, size int) (*blockDownloadWriter, error) {
	var request [8]byte
	command := byte(ccsBlockDownload | blockInitiate | blockCrcSupport)
	if size >= 0 {
		command |= blockSizeSpec
		putUint32(&request, 4, uint32(size))
	}
	packHeader(&request, command, index, subindex)

	response, err := driver.requestResponse(request)
	if err != nil {
		return nil, err
	}

	resCommand, resIndex, resSubindex := unpackHeader(response)
	if resCommand&classMask != scsBlockDownload {
		abortBlockDownload(driver, index, subindex, AbortCommandUnknown)
		return nil, commErrorf("unexpected response 0x%02X initiating block download", resCommand)
	}
	if resIndex != index || resSubindex != subindex {
		abortBlockDownload(driver, index, subindex, AbortGeneral)
		return nil, commErrorf(
			"node responded for %04X:%02X instead of %04X:%02X, another client may share this channel",
			resIndex, resSubindex, index, subindex)
	}

	w := &blockDownloadWriter{
		driver:     driver,
		index:      index,
		subindex:   subindex,
		size:       size,
		blksize:    response[4],
		crcSupport: resCommand&blockCrcSupport != 0,
	}
	return w, nil
}

// Write sends up to 7 bytes per call. A write shorter than 7 bytes in
// the middle of the stream is rejected with (0, nil) so the caller can
// buffer more; only the final chunk, once the declared size is
// reached, may be short.
func (w *blockDownloadWriter) Write(p []byte) (int, error) {
	if w.done {
		return 0, commErrorf("all expected data has already been transmitted")
	}

	data := p
	if len(data) > 7 {
		data = data[:7]
	}

	end := w.size >= 0 && w.pos+len(data) >= w.size
	if !end && len(data) < 7 {
		return 0, nil
	}

	if err := w.send(data, end); err != nil {
		return 0, err
	}
	return len(data), nil
}

func (w *blockDownloadWriter) send(data []byte, end bool) error {
	w.seqno++
	command := w.seqno
	if end {
		command |= blockNoMore
		w.done = true
		w.blksize = w.seqno
		w.lastBytesSent = len(data)
	}

	var request [8]byte
	request[0] = command
	copy(request[1:1+len(data)], data)
	if err := w.driver.send(request); err != nil {
		return err
	}

	w.pos += len(data)
	if w.crcSupport {
		w.crc.Block(data)
	}

	if w.seqno >= w.blksize {
		return w.blockAck()
	}
	return nil
}

func (w *blockDownloadWriter) blockAck() error {
	response, err := w.driver.readResponse()
	if err != nil {
		return err
	}
	command, ackseq, blksize := response[0], response[1], response[2]
	if command&classMask != scsBlockDownload {
		abortBlockDownload(w.driver, w.index, w.subindex, AbortCommandUnknown)
		return commErrorf("unexpected response 0x%02X acknowledging block", command)
	}
	if command&0x3 != blockAck {
		abortBlockDownload(w.driver, w.index, w.subindex, AbortCommandUnknown)
		return commErrorf("server did not send a block download acknowledgement")
	}
	if ackseq != w.blksize {
		abortBlockDownload(w.driver, w.index, w.subindex, AbortInvalidSequence)
		return commErrorf("%d of %d sequences acknowledged, retransmission is not supported on download", ackseq, w.blksize)
	}

	w.blksize = blksize
	w.seqno = 0
	return nil
}

// Close sends the END frame. If the caller never reached the declared
// size, the in-progress block is closed out first as the final one.
func (w *blockDownloadWriter) Close() error {
	if !w.done {
		if err := w.send(nil, true); err != nil {
			return err
		}
	}

	var request [8]byte
	command := byte(ccsBlockDownload | blockEnd)
	command |= byte(7-w.lastBytesSent) << 2
	request[0] = command
	if w.crcSupport {
		request[1] = byte(uint16(w.crc))
		request[2] = byte(uint16(w.crc) >> 8)
	}

	response, err := w.driver.requestResponse(request)
	if err != nil {
		return err
	}
	if response[0]&blockEnd == 0 {
		return commErrorf("block download was not acknowledged as complete")
	}
	return nil
}

func abortBlockDownload(driver *requestDriver, index uint16, subindex uint8, code AbortCode) {
	var request [8]byte
	packHeader(&request, ccsAbort, index, subindex)
	putUint32(&request, 4, uint32(code))
	_ = driver.send(request)
}
