// SPDX-FileCopyrightText: Copyright 2025 The garage-door Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the issuer configuration file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ctron/garage-door/internal/issuer"
)

// Configuration is the content of the configuration file: the issuers this
// instance serves. Runtime settings (port, bind address, base path) come
// from flags and environment, not from this file.
type Configuration struct {
	Issuers []issuer.Issuer `json:"issuers" yaml:"issuers"`
}

// Validate checks every configured issuer.
func (c *Configuration) Validate() error {
	for i := range c.Issuers {
		if err := c.Issuers[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Load reads and validates the configuration file at the given path.
func Load(path string) (*Configuration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file: %w", err)
	}

	return Parse(data)
}

// Parse decodes and validates configuration bytes.
func Parse(data []byte) (*Configuration, error) {
	var c Configuration
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &c, nil
}
