// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
)

// logLevels maps the accepted log level strings to logger levels.
var logLevels = map[string]slog.Level{
	"trace": log.LevelTrace,
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// ValidateConfig checks that all configuration values are within acceptable
// ranges and returns the first error encountered, or nil if valid. Operator
// addresses may be empty; RequireOperators checks that they are set.
func ValidateConfig(cfg Config) error {
	if cfg.DataDir == "" {
		return ErrEmptyDataDir
	}

	if cfg.ChainID == 0 {
		return ErrInvalidChainID
	}

	if _, ok := logLevels[strings.ToLower(cfg.LogLevel)]; !ok {
		return ErrInvalidLogLevel
	}

	for _, a := range cfg.operators() {
		if a.value != "" && !common.IsHexAddress(a.value) {
			return fmt.Errorf("%w: %s = %q", ErrInvalidAddress, a.key, a.value)
		}
	}
	return nil
}

// RequireOperators checks that every operator address is configured.
func RequireOperators(cfg Config) error {
	for _, a := range cfg.operators() {
		if a.value == "" {
			return fmt.Errorf("%w: %s", ErrMissingAddress, a.key)
		}
	}
	return nil
}

// Level returns the logger level for LogLevel, or info when unknown.
func (c Config) Level() slog.Level {
	if lvl, ok := logLevels[strings.ToLower(c.LogLevel)]; ok {
		return lvl
	}
	return slog.LevelInfo
}

type keyValue struct{ key, value string }

func (c Config) operators() []keyValue {
	return []keyValue{
		{"bouncer", c.Bouncer},
		{"signer", c.Signer},
		{"feereceiver", c.FeeReceiver},
		{"vestingfactory", c.VestingFactory},
	}
}
