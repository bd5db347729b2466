package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.Validate())
}

func TestValidateClampsBlockSize(t *testing.T) {
	cfg := Default()
	cfg.BlockSize = 200
	assert.NoError(t, cfg.Validate())
	assert.EqualValues(t, 127, cfg.BlockSize)

	cfg.BlockSize = 0
	assert.NoError(t, cfg.Validate())
	assert.EqualValues(t, 1, cfg.BlockSize)
}

func TestValidateRejectsBadTimeout(t *testing.T) {
	cfg := Default()
	cfg.ResponseTimeout = 0
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsNegativeRetries(t *testing.T) {
	cfg := Default()
	cfg.MaxRetries = -1
	assert.Error(t, cfg.Validate())
}
