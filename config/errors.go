// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import "errors"

var (
	// ErrInvalidChainID indicates the chain id is zero or not a number.
	ErrInvalidChainID = errors.New("config: invalid chain id")

	// ErrInvalidAddress indicates an operator address is not a 20-byte hex address.
	ErrInvalidAddress = errors.New("config: invalid address")

	// ErrMissingAddress indicates a required operator address is not configured.
	ErrMissingAddress = errors.New("config: missing operator address")

	// ErrInvalidLogLevel indicates the log level is not recognized.
	ErrInvalidLogLevel = errors.New("config: invalid log level (must be \"trace\", \"debug\", \"info\", \"warn\", or \"error\")")

	// ErrEmptyDataDir indicates the data directory path is empty.
	ErrEmptyDataDir = errors.New("config: data directory must not be empty")

	// ErrConfigNotFound indicates the configuration file does not exist.
	ErrConfigNotFound = errors.New("config: configuration file not found")

	// ErrInvalidConfigLine indicates a line in the config file is malformed.
	ErrInvalidConfigLine = errors.New("config: invalid configuration line")
)
