// Package od provides the minimal slice of an Object Dictionary the SDO
// client core consumes: a lookup from (index, subindex) to a variable's
// data type, used solely to decide whether a DOMAIN-typed write must be
// forced into segmented mode. Full EDS/DCF parsing, PDO mapping, access
// checking and the typed raw/phys/desc accessor views are out of scope
// here and live in a higher layer, not this module.
package od

import "fmt"

// DataType identifies the data type of a variable, per CiA 301. Only
// DOMAIN is meaningful to the SDO client core.
type DataType uint8

const (
	BOOLEAN        DataType = 0x01
	DOMAIN         DataType = 0x02
	INTEGER8       DataType = 0x03
	INTEGER16      DataType = 0x04
	UNSIGNED8      DataType = 0x05
	UNSIGNED16     DataType = 0x06
	INTEGER32      DataType = 0x07
	UNSIGNED32     DataType = 0x08
	REAL32         DataType = 0x09
	VISIBLE_STRING DataType = 0x0A
	OCTET_STRING   DataType = 0x0B
)

// Variable describes one addressable entry of a remote node's Object
// Dictionary.
type Variable struct {
	Index    uint16
	Subindex uint8
	DataType DataType
	Name     string
}

// ForcesSegmented reports whether downloads to this variable must use
// segmented transfer regardless of payload length, per spec: DOMAIN data
// always does.
func (v Variable) ForcesSegmented() bool {
	return v.DataType == DOMAIN
}

// ObjectDictionary is a directory of Variables keyed by (index,
// subindex).
type ObjectDictionary struct {
	entries map[uint16]map[uint8]Variable
}

func New() *ObjectDictionary {
	return &ObjectDictionary{entries: make(map[uint16]map[uint8]Variable)}
}

// Add inserts or replaces a variable descriptor.
func (od *ObjectDictionary) Add(v Variable) {
	if od.entries[v.Index] == nil {
		od.entries[v.Index] = make(map[uint8]Variable)
	}
	od.entries[v.Index][v.Subindex] = v
}

// Lookup returns the variable at (index, subindex), if known.
func (od *ObjectDictionary) Lookup(index uint16, subindex uint8) (Variable, bool) {
	sub, ok := od.entries[index]
	if !ok {
		return Variable{}, false
	}
	v, ok := sub[subindex]
	return v, ok
}

func (v Variable) String() string {
	return fmt.Sprintf("%04X:%02X %s (type x%02X)", v.Index, v.Subindex, v.Name, uint8(v.DataType))
}
