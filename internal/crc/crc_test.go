package crc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCcittSingle(t *testing.T) {
	crc := CRC16(0)
	crc.Single(10)
	assert.EqualValues(t, 0xA14A, crc)
}

func TestCcittBlock(t *testing.T) {
	var single CRC16
	for _, b := range []byte{1, 2, 3, 4, 5} {
		single.Single(b)
	}

	var block CRC16
	block.Block([]byte{1, 2, 3, 4, 5})

	assert.EqualValues(t, single, block)
}

func TestCcittEmpty(t *testing.T) {
	var crc CRC16
	crc.Block(nil)
	assert.EqualValues(t, 0, crc)
}
