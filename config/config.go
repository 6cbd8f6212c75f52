// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

// Package config loads and saves the engine configuration file, a plain
// "key = value" file with '#' comments.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Config is the engine configuration.
type Config struct {
	DataDir  string
	ChainID  uint64
	LogLevel string
	LogFile  string

	// Operator addresses published through the address registry, as hex.
	Bouncer        string
	Signer         string
	FeeReceiver    string
	VestingFactory string
}

// DefaultChainID is the chain id used when none is configured.
const DefaultChainID = 1

// DefaultConfig returns a configuration with default values. The operator
// addresses are left empty and must be configured before sales can run.
func DefaultConfig() Config {
	return Config{
		DataDir:  DefaultDataDir(),
		ChainID:  DefaultChainID,
		LogLevel: "info",
	}
}

// DefaultDataDir returns ~/.libsale, or .libsale in the working directory
// when the home directory is unknown.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".libsale"
	}
	return filepath.Join(home, ".libsale")
}

// ConfigPath returns the config file path inside dataDir.
func ConfigPath(dataDir string) string {
	return filepath.Join(dataDir, "config")
}

// LoadConfig reads the file at path on top of DefaultConfig. Unknown keys
// are ignored.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return cfg, fmt.Errorf("config: open: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, err := parseKeyValue(line)
		if err != nil {
			return cfg, fmt.Errorf("%w: line %d: %q", ErrInvalidConfigLine, lineNo, line)
		}
		if err := cfg.set(key, value); err != nil {
			return cfg, fmt.Errorf("%w: line %d: %w", ErrInvalidConfigLine, lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return cfg, fmt.Errorf("config: read: %w", err)
	}
	return cfg, nil
}

// parseKeyValue splits a line on its first '='.
func parseKeyValue(line string) (string, string, error) {
	key, value, ok := strings.Cut(line, "=")
	if !ok {
		return "", "", ErrInvalidConfigLine
	}
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return "", "", ErrInvalidConfigLine
	}
	return key, strings.TrimSpace(value), nil
}

func (c *Config) set(key, value string) error {
	switch key {
	case "datadir":
		c.DataDir = value
	case "chainid":
		id, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidChainID, err)
		}
		c.ChainID = id
	case "loglevel":
		c.LogLevel = value
	case "logfile":
		c.LogFile = value
	case "bouncer":
		c.Bouncer = value
	case "signer":
		c.Signer = value
	case "feereceiver":
		c.FeeReceiver = value
	case "vestingfactory":
		c.VestingFactory = value
	}
	return nil
}

// SaveConfig writes cfg to path, creating the parent directory.
func SaveConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}

	var b strings.Builder
	b.WriteString("# libsale configuration\n\n")
	fmt.Fprintf(&b, "datadir = %s\n", cfg.DataDir)
	fmt.Fprintf(&b, "chainid = %d\n", cfg.ChainID)
	fmt.Fprintf(&b, "loglevel = %s\n", cfg.LogLevel)
	fmt.Fprintf(&b, "logfile = %s\n", cfg.LogFile)
	b.WriteString("\n# Operator addresses\n")
	fmt.Fprintf(&b, "bouncer = %s\n", cfg.Bouncer)
	fmt.Fprintf(&b, "signer = %s\n", cfg.Signer)
	fmt.Fprintf(&b, "feereceiver = %s\n", cfg.FeeReceiver)
	fmt.Fprintf(&b, "vestingfactory = %s\n", cfg.VestingFactory)

	if err := os.WriteFile(path, []byte(b.String()), 0600); err != nil {
		return fmt.Errorf("config: write: %w", err)
	}
	return nil
}
