// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// envOverrides maps RIGCHAT_* variables. Pointer fields stay nil when the
// variable is unset so only present variables override the file.
type envOverrides struct {
	Model       *string  `env:"RIGCHAT_MODEL"`
	DryRun      *bool    `env:"RIGCHAT_DRY_RUN"`
	Temperature *float64 `env:"RIGCHAT_TEMPERATURE"`
	Prompt      *string  `env:"RIGCHAT_PROMPT"`
	LogFile     *string  `env:"RIGCHAT_LOG_FILE"`
	ConfigDir   string   `env:"RIGCHAT_CONFIG_DIR"`
}

func parseEnv() (envOverrides, error) {
	o, err := env.ParseAs[envOverrides]()
	if err != nil {
		return envOverrides{}, fmt.Errorf("parse environment: %w", err)
	}
	return o, nil
}

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - RIGCHAT_MODEL: overrides model
//   - RIGCHAT_DRY_RUN: "true"/"1" enables dry-run mode
//   - RIGCHAT_TEMPERATURE: overrides temperature
//   - RIGCHAT_PROMPT: overrides prompt
//   - RIGCHAT_LOG_FILE: overrides log_file
//
// RIGCHAT_CONFIG_DIR is read by ConfigDir.
func (c *Config) ApplyEnvOverrides() error {
	o, err := parseEnv()
	if err != nil {
		return err
	}
	if o.Model != nil && *o.Model != "" {
		c.Model = *o.Model
	}
	if o.DryRun != nil {
		c.DryRun = *o.DryRun
	}
	if o.Temperature != nil {
		t := *o.Temperature
		c.Temperature = &t
	}
	if o.Prompt != nil {
		c.Prompt = *o.Prompt
	}
	if o.LogFile != nil && *o.LogFile != "" {
		c.LogFile = *o.LogFile
	}
	return nil
}
