// Package sdo implements a CANopen Service Data Object client, CiA 301:
// expedited, segmented and block upload/download against a single
// remote node, one transfer at a time.
package sdo

import "encoding/binary"

// Command-byte class field (bits 7-5), CiA 301 table 14/15.
const (
	ccsSegmentDownload = 0 << 5 // request: continue segmented download
	scsSegmentUpload   = 0 << 5 // response: segment of an upload

	ccsInitiateDownload = 1 << 5 // request: initiate download
	scsSegmentDownload  = 1 << 5 // response: continue segmented download

	ccsInitiateUpload = 2 << 5 // request: initiate upload
	scsInitiateUpload = 2 << 5 // response: initiate upload

	ccsSegmentUpload    = 3 << 5 // request: continue segmented upload
	scsInitiateDownload = 3 << 5 // response: initiate download

	ccsAbort = 4 << 5
	scsAbort = 4 << 5

	ccsBlockUpload   = 5 << 5 // request: initiate/continue block upload
	scsBlockDownload = 5 << 5 // response: block download

	ccsBlockDownload = 6 << 5 // request: block download
	scsBlockUpload   = 6 << 5 // response: block upload
)

const classMask = 0xE0

// Flag bits shared by expedited/segmented transfers.
const (
	flagToggle     = 0x10
	flagExpedited  = 0x02
	flagSizeSpec   = 0x01
	flagNoMoreData = 0x01 // download segment: "no more segments" (same bit as flagSizeSpec)
)

// Block transfer sub-commands, bits 1-0 of the command byte.
const (
	blockInitiate    = 0
	blockEnd         = 1
	blockAck         = 2
	blockStartUpload = 3
)

// Block transfer flag bits, combined with the class and sub-command.
const (
	blockSizeSpec   = 0x02 // BLOCK_SIZE_SPECIFIED: size field at bytes 4..8 is valid
	blockCrcSupport = 0x04 // CRC_SUPPORTED, set by whichever side supports CRC verification
	blockNoMore     = 0x80 // bit 7 of a data frame's sequence byte: last frame of the transfer
)

const defaultBlockSize = 127

// packHeader writes the command byte, index and subindex into the first
// four bytes of an outgoing frame.
func packHeader(data *[8]byte, command byte, index uint16, subindex uint8) {
	data[0] = command
	binary.LittleEndian.PutUint16(data[1:3], index)
	data[3] = subindex
}

// unpackHeader reads the command byte, index and subindex from a
// received frame.
func unpackHeader(data [8]byte) (command byte, index uint16, subindex uint8) {
	return data[0], binary.LittleEndian.Uint16(data[1:3]), data[3]
}

func putUint32(data *[8]byte, offset int, v uint32) {
	binary.LittleEndian.PutUint32(data[offset:offset+4], v)
}

func getUint32(data [8]byte, offset int) uint32 {
	return binary.LittleEndian.Uint32(data[offset : offset+4])
}
