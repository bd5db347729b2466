package sdo

// uploadReader implements expedited and segmented SDO upload (a read of
// a remote variable), exposed as an io.Reader.
type uploadReader struct {
	driver *requestDriver

	index    uint16
	subindex uint8

	pos    int
	size   int // -1 if unknown
	done   bool
	toggle byte

	// expData holds the payload of an expedited transfer, returned in
	// full by the first Read call without sending another frame.
	expData []byte
}

// openUpload initiates an upload by sending the "initiate upload"
// request and inspecting the response to decide expedited vs
// segmented.
func openUpload(driver *requestDriver, index uint16, subindex uint8) (*uploadReader, error) {
	var request [8]byte
	packHeader(&request, ccsInitiateUpload, index, subindex)

	response, err := driver.requestResponse(request)
	if err != nil {
		return nil, err
	}

	command, resIndex, resSubindex := unpackHeader(response)
	if command&classMask != scsInitiateUpload {
		return nil, commErrorf("unexpected response 0x%02X initiating upload", command)
	}
	if resIndex != index || resSubindex != subindex {
		return nil, commErrorf(
			"node responded for %04X:%02X instead of %04X:%02X, another client may share this channel",
			resIndex, resSubindex, index, subindex)
	}

	r := &uploadReader{driver: driver, index: index, subindex: subindex, size: -1}

	switch {
	case command&flagExpedited != 0:
		length := 4
		if command&flagSizeSpec != 0 {
			length = 4 - int((command>>2)&0x3)
		}
		r.expData = append([]byte(nil), response[4:4+length]...)
		r.size = length
	case command&flagSizeSpec != 0:
		r.size = int(getUint32(response, 4))
	}

	return r, nil
}

// Read returns up to 7 bytes of segment data, or the full expedited
// payload on the first call. It returns (0, nil) at end of transfer,
// matching the source's "empty read means EOF" convention rather than
// io.EOF, since a zero-length SDO segment is itself a valid "no data"
// marker distinguishable only by the done flag.
func (r *uploadReader) Read(p []byte) (int, error) {
	if r.done {
		return 0, nil
	}
	if r.expData != nil {
		n := copy(p, r.expData)
		r.pos += len(r.expData)
		r.expData = nil
		r.done = true
		return n, nil
	}

	var request [8]byte
	packHeader(&request, ccsSegmentUpload|r.toggle, r.index, r.subindex)

	response, err := r.driver.requestResponse(request)
	if err != nil {
		return 0, err
	}

	command, _, _ := unpackHeader(response)
	if command&classMask != scsSegmentUpload {
		return 0, commErrorf("unexpected response 0x%02X continuing upload", command)
	}
	if command&flagToggle != r.toggle {
		return 0, commErrorf("toggle bit mismatch continuing upload of %04X:%02X", r.index, r.subindex)
	}

	length := 7 - int((command>>1)&0x7)
	n := copy(p, response[1:1+length])

	if command&flagNoMoreData != 0 {
		r.done = true
	}
	r.toggle ^= flagToggle
	r.pos += length

	return n, nil
}

// ReadAll reads the complete value, issuing as many segment requests
// as needed.
func (r *uploadReader) ReadAll() ([]byte, error) {
	var out []byte
	buf := make([]byte, 7)
	for {
		n, err := r.Read(buf)
		if err != nil {
			return nil, err
		}
		out = append(out, buf[:n]...)
		if r.done {
			return out, nil
		}
	}
}

func (r *uploadReader) Close() error { return nil }
