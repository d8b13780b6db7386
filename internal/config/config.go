// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"dario.cat/mergo"
	"github.com/BurntSushi/toml"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete rigchat configuration.
type Config struct {
	// Model is the default model as "client:name". Empty selects the first
	// model of the first configured client.
	Model string `json:"model,omitempty"`

	// Temperature is sent with every request when set.
	Temperature *float64 `json:"temperature,omitempty"`

	// Prompt is a system prompt prepended to every conversation.
	Prompt string `json:"prompt,omitempty"`

	// DryRun echoes input instead of calling a provider.
	DryRun bool `json:"dry_run,omitempty"`

	// NoStream waits for the full reply instead of rendering it live.
	NoStream bool `json:"no_stream,omitempty"`

	// Highlight enables markdown styling and code highlighting.
	Highlight *bool `json:"highlight,omitempty"`

	// Wrap is "no", "auto" (terminal width) or a fixed column count.
	Wrap string `json:"wrap,omitempty"`

	// Theme selects the color scheme: "dark" or "light".
	Theme string `json:"theme,omitempty"`

	// LogFile receives JSON logs when set.
	LogFile string `json:"log_file,omitempty"`

	// Clients lists the configured providers in dispatch order.
	Clients []ClientConfig `json:"clients,omitempty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	highlight := true
	return &Config{
		Highlight: &highlight,
		Wrap:      "no",
		Theme:     "dark",
	}
}

// HighlightEnabled reports whether markdown styling is on.
func (c *Config) HighlightEnabled() bool {
	return c.Highlight == nil || *c.Highlight
}

// WrapWidth resolves Wrap against the terminal width. Zero means no wrapping.
func (c *Config) WrapWidth(columns int) int {
	switch c.Wrap {
	case "", "no":
		return 0
	case "auto":
		return columns
	}
	n, err := strconv.Atoi(c.Wrap)
	if err != nil || n <= 0 {
		return 0
	}
	if columns > 0 && n > columns {
		return columns
	}
	return n
}

// =============================================================================
// PATHS
// =============================================================================

// ConfigDir returns the configuration directory: RIGCHAT_CONFIG_DIR when set,
// otherwise ~/.rigchat.
func ConfigDir() (string, error) {
	overrides, err := parseEnv()
	if err == nil && overrides.ConfigDir != "" {
		return overrides.ConfigDir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".rigchat"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// ensureSecurePermissions restricts a config file holding API keys to its owner.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	mode := info.Mode().Perm()
	if mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOADING
// =============================================================================

// Load reads the configuration. An explicit path must exist; otherwise the
// default locations are tried and missing files fall back to defaults.
// Defaults are merged in, environment overrides applied and the result
// validated.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path == "" {
		found, err := findConfigFile()
		if err != nil {
			return nil, err
		}
		path = found
	}

	if path != "" {
		if err := LoadFile(cfg, path); err != nil {
			return nil, err
		}
	}

	if err := mergo.Merge(cfg, Default(), mergo.WithoutDereference); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if err := cfg.ApplyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func findConfigFile() (string, error) {
	for _, candidate := range []func() (string, error){ConfigPathTOML, ConfigPathJSON} {
		p, err := candidate()
		if err != nil {
			return "", err
		}
		if _, err := os.Stat(p); err == nil {
			return p, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("stat %s: %w", p, err)
		}
	}
	return "", nil
}

// LoadFile decodes one config file into cfg, choosing the format by extension.
// Files without a .json extension are read as TOML.
func LoadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	if strings.EqualFold(filepath.Ext(path), ".json") {
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to decode JSON file %s: %w", path, err)
		}
		return nil
	}
	if err := DecodeTOML(data, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file %s: %w", path, err)
	}
	return nil
}

// DecodeTOML parses TOML and decodes it through the same JSON field tags used
// for JSON files, so tagged client tables follow a single decoding path.
func DecodeTOML(data []byte, cfg *Config) error {
	var raw map[string]any
	if _, err := toml.Decode(string(data), &raw); err != nil {
		return err
	}
	normalised, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(normalised, cfg)
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks value ranges. Client variants are not checked here; an
// unknown or incomplete client only fails when it is selected.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if c.Temperature != nil && (*c.Temperature < 0 || *c.Temperature > 2) {
		errs = append(errs, ValidationError{
			Field:   "temperature",
			Message: fmt.Sprintf("%g is out of range, must be between 0 and 2", *c.Temperature),
		})
	}

	switch c.Wrap {
	case "", "no", "auto":
	default:
		if n, err := strconv.Atoi(c.Wrap); err != nil || n <= 0 {
			errs = append(errs, ValidationError{
				Field:   "wrap",
				Message: fmt.Sprintf("invalid value '%s', must be no, auto or a positive number", c.Wrap),
			})
		}
	}

	switch c.Theme {
	case "", "dark", "light":
	default:
		errs = append(errs, ValidationError{
			Field:   "theme",
			Message: fmt.Sprintf("invalid theme '%s', must be one of: dark, light", c.Theme),
		})
	}

	for i, client := range c.Clients {
		if client.Variant == nil {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("clients[%d]", i),
				Message: "missing client definition",
			})
			continue
		}
		for j, m := range client.Variant.Common().Models {
			if m.Name == "" {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("clients[%d].models[%d].name", i, j),
					Message: "model name is required",
				})
			}
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
