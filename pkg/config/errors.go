package config

import "errors"

var (
	errInvalidTimeout = errors.New("config: response timeout must be positive")
	errInvalidRetries = errors.New("config: max retries must not be negative")
)
