package sdo

import "fmt"

// AbortCode is the 32-bit little-endian error value carried by an SDO
// abort frame, per CiA 301.
type AbortCode uint32

// Standard abort codes, per CiA 301.
const (
	AbortToggleBit           AbortCode = 0x05030000
	AbortTimeout             AbortCode = 0x05040000
	AbortCommandUnknown      AbortCode = 0x05040001
	AbortInvalidBlockSize    AbortCode = 0x05040002
	AbortInvalidSequence     AbortCode = 0x05040003
	AbortCRC                 AbortCode = 0x05040004
	AbortUnsupportedAccess   AbortCode = 0x06010000
	AbortWriteOnly           AbortCode = 0x06010001
	AbortReadOnly            AbortCode = 0x06010002
	AbortObjectMissing       AbortCode = 0x06020000
	AbortPDOLengthExceeded   AbortCode = 0x06040042
	AbortHardwareError       AbortCode = 0x06060000
	AbortTypeMismatch        AbortCode = 0x06070010
	AbortSubindexMissing     AbortCode = 0x06090011
	AbortValueRange          AbortCode = 0x06090030
	AbortResourceUnavailable AbortCode = 0x060A0023
	AbortGeneral             AbortCode = 0x08000000
	AbortLocalControl        AbortCode = 0x08000021
	AbortDeviceState         AbortCode = 0x08000022
)

var abortDescriptions = map[AbortCode]string{
	AbortToggleBit:           "toggle bit not alternated",
	AbortTimeout:             "SDO protocol timed out",
	AbortCommandUnknown:      "client/server command specifier not valid or unknown",
	AbortInvalidBlockSize:    "invalid block size",
	AbortInvalidSequence:     "invalid sequence number",
	AbortCRC:                 "CRC error",
	AbortUnsupportedAccess:   "unsupported access to an object",
	AbortWriteOnly:           "attempt to read a write only object",
	AbortReadOnly:            "attempt to write a read only object",
	AbortObjectMissing:       "object does not exist",
	AbortPDOLengthExceeded:   "number of mapped objects would exceed PDO length",
	AbortHardwareError:       "access failed due to a hardware error",
	AbortTypeMismatch:        "data type does not match, length of service parameter does not match",
	AbortSubindexMissing:     "subindex does not exist",
	AbortValueRange:          "value range of parameter exceeded",
	AbortResourceUnavailable: "resource not available, SDO connection",
	AbortGeneral:             "general error",
	AbortLocalControl:        "data cannot be transferred or stored due to local control",
	AbortDeviceState:         "data cannot be transferred or stored due to the present device state",
}

func (c AbortCode) String() string {
	if desc, ok := abortDescriptions[c]; ok {
		return desc
	}
	return fmt.Sprintf("unknown abort code 0x%08X", uint32(c))
}

// AbortedError is raised when the server replies with an abort frame,
// or the client emits one itself.
type AbortedError struct {
	Code AbortCode
}

func (e *AbortedError) Error() string {
	return fmt.Sprintf("sdo: aborted: %s (code 0x%08X)", e.Code, uint32(e.Code))
}

// CommunicationError covers every protocol-level failure other than an
// abort: a missing response, a class/toggle/sequence mismatch, a CRC
// failure, or a response for the wrong object.
type CommunicationError struct {
	msg string
}

func (e *CommunicationError) Error() string {
	return "sdo: " + e.msg
}

func commErrorf(format string, args ...any) error {
	return &CommunicationError{msg: fmt.Sprintf(format, args...)}
}
