package od

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLookupMiss(t *testing.T) {
	dict := New()
	_, ok := dict.Lookup(0x1008, 0)
	assert.False(t, ok, "expected miss on empty dictionary")
}

func TestAddAndLookup(t *testing.T) {
	dict := New()
	dict.Add(Variable{Index: 0x1F50, Subindex: 1, DataType: DOMAIN, Name: "ProgramData"})

	v, ok := dict.Lookup(0x1F50, 1)
	assert.True(t, ok)
	assert.True(t, v.ForcesSegmented(), "DOMAIN variable must force segmented transfer")

	_, ok = dict.Lookup(0x1F50, 2)
	assert.False(t, ok, "expected miss on unknown subindex")
}

func TestUnsignedVariableDoesNotForceSegmented(t *testing.T) {
	dict := New()
	dict.Add(Variable{Index: 0x6000, Subindex: 0, DataType: UNSIGNED32, Name: "Counter"})

	v, _ := dict.Lookup(0x6000, 0)
	assert.False(t, v.ForcesSegmented(), "UNSIGNED32 must not force segmented transfer")
}
