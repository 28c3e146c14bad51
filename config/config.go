// config.go - Encrypted transport configuration.
// Copyright (C) 2026  The bitcoin-go authors.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package config provides the configuration for the encrypted transport.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/k1827889/bitcoin/log"
	"github.com/k1827889/bitcoin/utils"
)

const (
	defaultLogLevel = "NOTICE"

	// defaultNetMagic is the mainnet message start sequence.
	defaultNetMagic = "f9beb4d9"

	netMagicLen = 4
)

var defaultLogging = Logging{
	Disable: false,
	File:    "",
	Level:   defaultLogLevel,
}

// Logging is the logging configuration.
type Logging struct {
	// Disable disables logging entirely.
	Disable bool

	// File specifies the log file, if omitted stdout will be used.
	File string

	// Level specifies the log level.
	Level string
}

func (lCfg *Logging) validate() error {
	if err := log.ValidateLevel(lCfg.Level); err != nil {
		return err
	}
	return nil
}

// Channel is the encrypted channel configuration.
type Channel struct {
	// AcceleratedRekey drastically lowers the rekey byte/time thresholds
	// so the rekey machinery can be exercised without production-scale
	// traffic.  Never enable this for real connections.
	AcceleratedRekey bool

	// NetMagic is the network's legacy message start sequence as a hex
	// string, used to detect peers speaking the unencrypted protocol.
	NetMagic string
}

func (cCfg *Channel) validate() error {
	raw, err := hex.DecodeString(cCfg.NetMagic)
	if err != nil {
		return fmt.Errorf("config: Channel: invalid NetMagic: %v", err)
	}
	if len(raw) != netMagicLen {
		return fmt.Errorf("config: Channel: NetMagic must be %d bytes", netMagicLen)
	}
	return nil
}

// Magic returns the decoded message start sequence.
func (cCfg *Channel) Magic() [netMagicLen]byte {
	var magic [netMagicLen]byte
	raw, err := hex.DecodeString(cCfg.NetMagic)
	if err != nil || len(raw) != netMagicLen {
		panic("config: Magic() called on unvalidated Channel config")
	}
	copy(magic[:], raw)
	return magic
}

// Config is the top level configuration.
type Config struct {
	Logging *Logging
	Channel *Channel
}

// FixupAndValidate applies defaults to unset fields and validates the
// configuration.
func (cfg *Config) FixupAndValidate() error {
	if cfg.Logging == nil {
		cfg.Logging = &defaultLogging
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = defaultLogLevel
	}
	if err := cfg.Logging.validate(); err != nil {
		return err
	}

	if cfg.Channel == nil {
		cfg.Channel = &Channel{}
	}
	if cfg.Channel.NetMagic == "" {
		cfg.Channel.NetMagic = defaultNetMagic
	}
	return cfg.Channel.validate()
}

// Load parses and validates the provided TOML configuration.
func Load(b []byte) (*Config, error) {
	cfg := new(Config)
	md, err := toml.Decode(string(b), cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) != 0 {
		return nil, fmt.Errorf("config: Undecoded keys in config file: %v", undecoded)
	}
	if err := cfg.FixupAndValidate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile loads, parses and validates the configuration at path f.
func LoadFile(f string) (*Config, error) {
	if !utils.Exists(f) {
		return nil, errors.New("config: no such configuration file")
	}
	b, err := os.ReadFile(f)
	if err != nil {
		return nil, err
	}
	return Load(b)
}
