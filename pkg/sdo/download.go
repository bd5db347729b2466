package sdo

// downloadWriter implements expedited and segmented SDO download (a
// write to a remote variable), exposed as an io.WriteCloser.
type downloadWriter struct {
	driver *requestDriver

	index    uint16
	subindex uint8

	pos    int
	size   int // -1 if unknown
	done   bool
	toggle byte

	// buf holds bytes handed to Write that don't yet fill a full 7-byte
	// segment, so a caller may write in whatever chunk sizes it likes;
	// only the trailing segment of the whole transfer is ever short.
	buf []byte

	// expHeader holds the prepared command/index/subindex for an
	// expedited download, sent together with the first Write's data.
	expHeader *[8]byte
}

// openDownload picks expedited or segmented mode per spec: expedited
// requires a known size of at most 4 bytes and no caller-forced
// segmented mode.
func openDownload(driver *requestDriver, index uint16, subindex uint8, size int, forceSegment bool) (*downloadWriter, error) {
	w := &downloadWriter{driver: driver, index: index, subindex: subindex, size: size}
	if size < 0 {
		size = -1
		w.size = -1
	}

	if size >= 0 && size <= 4 && !forceSegment {
		var header [8]byte
		command := byte(ccsInitiateDownload | flagExpedited | flagSizeSpec)
		command |= byte(4-size) << 2
		packHeader(&header, command, index, subindex)
		w.expHeader = &header
		return w, nil
	}

	var request [8]byte
	command := byte(ccsInitiateDownload)
	if size >= 0 {
		command |= flagSizeSpec
		putUint32(&request, 4, uint32(size))
	}
	packHeader(&request, command, index, subindex)

	response, err := driver.requestResponse(request)
	if err != nil {
		return nil, err
	}
	resCommand, _, _ := unpackHeader(response)
	if resCommand != scsInitiateDownload {
		return nil, commErrorf("unexpected response 0x%02X initiating download", resCommand)
	}

	return w, nil
}

// Write accepts data of any length and returns the number accepted.
// Expedited transfers require the complete value in a single call.
// Segmented transfers buffer internally down to 7-byte frames, so the
// caller may write in arbitrarily small or large chunks; only the
// transfer's trailing segment is ever short on the wire.
func (w *downloadWriter) Write(p []byte) (int, error) {
	if w.done {
		return 0, commErrorf("all expected data has already been transmitted")
	}

	if w.expHeader != nil {
		if w.size >= 0 && len(p) < w.size {
			return 0, nil
		}
		if len(p) > 4 {
			return 0, commErrorf("more data provided than the declared expedited size")
		}
		request := *w.expHeader
		copy(request[4:8], p)
		response, err := w.driver.requestResponse(request)
		if err != nil {
			return 0, err
		}
		command, _, _ := unpackHeader(response)
		if command&classMask != scsInitiateDownload {
			return 0, commErrorf("unexpected response 0x%02X completing expedited download", command)
		}
		w.done = true
		w.pos += len(p)
		return len(p), nil
	}

	w.buf = append(w.buf, p...)
	for !w.done {
		remaining := len(w.buf)
		final := w.size >= 0 && remaining <= 7 && w.pos+remaining == w.size
		if final {
			if err := w.sendSegment(w.buf, true); err != nil {
				return 0, err
			}
			w.buf = nil
			break
		}
		if remaining < 7 {
			break
		}
		if err := w.sendSegment(w.buf[:7], false); err != nil {
			return 0, err
		}
		w.buf = w.buf[7:]
	}

	return len(p), nil
}

// sendSegment transmits one continue-segmented-download frame carrying
// up to 7 bytes of data, advancing the toggle bit and pos.
func (w *downloadWriter) sendSegment(data []byte, final bool) error {
	var request [8]byte
	command := byte(ccsSegmentDownload | w.toggle)
	w.toggle ^= flagToggle

	n := len(data)
	if final {
		command |= flagNoMoreData
		w.done = true
	}
	command |= byte(7-n) << 1
	packHeader(&request, command, w.index, w.subindex)
	copy(request[1:1+n], data)

	response, err := w.driver.requestResponse(request)
	if err != nil {
		return err
	}
	resCommand, _, _ := unpackHeader(response)
	if resCommand&classMask != scsSegmentDownload {
		return commErrorf("unexpected response 0x%02X continuing download", resCommand)
	}

	w.pos += n
	return nil
}

// Close flushes any buffered remainder of a segmented download as the
// final, "no more data" segment (empty if the buffer is already empty).
func (w *downloadWriter) Close() error {
	if w.done || w.expHeader != nil {
		return nil
	}
	return w.sendSegment(w.buf, true)
}
