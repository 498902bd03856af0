// Copyright (c) 2024 EffortlessMetrics
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package options reconciles a preset document and CLI flags into one
// concrete RuntimeOptions bundle, following a fixed precedence: CLI flags >
// preset > default. Presets are loaded from YAML; a nil preset, a
// zero-valued preset field, or a nil CLIFlags field simply falls through to
// the next tier.
package options

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/EffortlessMetrics/shipper/internal/secureio"
)

// CLIFlags carries the subset of command-line flags that can override
// preset values. A nil pointer field means "not set on the command line".
type CLIFlags struct {
	MaxConcurrent      *int
	AllowDirty         *bool
	NoVerify           *bool
	StrictOwnership    *bool
	ReadinessEnabled   *bool
	PerAttemptTimeout  *time.Duration
	StateDir           *string
	OutputLines        *int
	MaxPublishAttempts *int
}

// Preset is a named, reusable bundle of options, typically loaded from a
// YAML document alongside the workspace manifest.
type Preset struct {
	Name               string        `yaml:"name"`
	MaxConcurrent      int           `yaml:"max_concurrent,omitempty"`
	AllowDirty         bool          `yaml:"allow_dirty,omitempty"`
	NoVerify           bool          `yaml:"no_verify,omitempty"`
	StrictOwnership    bool          `yaml:"strict_ownership,omitempty"`
	ReadinessEnabled   bool          `yaml:"readiness_enabled,omitempty"`
	PerAttemptTimeout  time.Duration `yaml:"per_attempt_timeout,omitempty"`
	StateDir           string        `yaml:"state_dir,omitempty"`
	OutputLines        int           `yaml:"output_lines,omitempty"`
	MaxPublishAttempts int           `yaml:"max_publish_attempts,omitempty"`
}

// RuntimeOptions is the fully-reconciled bundle the executors consume.
type RuntimeOptions struct {
	MaxConcurrent      int
	AllowDirty         bool
	NoVerify           bool
	StrictOwnership    bool
	ReadinessEnabled   bool
	PerAttemptTimeout  time.Duration
	StateDir           string
	OutputLines        int
	MaxPublishAttempts int
}

// Default returns the built-in defaults consulted when neither a preset
// nor a CLI flag supplies a value.
func Default() RuntimeOptions {
	return RuntimeOptions{
		MaxConcurrent:      4,
		AllowDirty:         false,
		NoVerify:           false,
		StrictOwnership:    false,
		ReadinessEnabled:   true,
		PerAttemptTimeout:  30 * time.Minute,
		StateDir:           ".shipper",
		OutputLines:        50,
		MaxPublishAttempts: 5,
	}
}

// Resolve reconciles preset (may be nil) and flags (may be nil) against
// Default, with flags taking precedence over preset and preset taking
// precedence over the default.
func Resolve(preset *Preset, flags *CLIFlags) RuntimeOptions {
	opts := Default()

	if preset != nil {
		if preset.MaxConcurrent > 0 {
			opts.MaxConcurrent = preset.MaxConcurrent
		}
		opts.AllowDirty = preset.AllowDirty
		opts.NoVerify = preset.NoVerify
		opts.StrictOwnership = preset.StrictOwnership
		// A false ReadinessEnabled is indistinguishable from an unset one, so
		// only true is applied; a preset cannot turn readiness off.
		if preset.ReadinessEnabled {
			opts.ReadinessEnabled = true
		}
		if preset.PerAttemptTimeout > 0 {
			opts.PerAttemptTimeout = preset.PerAttemptTimeout
		}
		if preset.StateDir != "" {
			opts.StateDir = preset.StateDir
		}
		if preset.OutputLines > 0 {
			opts.OutputLines = preset.OutputLines
		}
		if preset.MaxPublishAttempts > 0 {
			opts.MaxPublishAttempts = preset.MaxPublishAttempts
		}
	}

	if flags != nil {
		if flags.MaxConcurrent != nil {
			opts.MaxConcurrent = *flags.MaxConcurrent
		}
		if flags.AllowDirty != nil {
			opts.AllowDirty = *flags.AllowDirty
		}
		if flags.NoVerify != nil {
			opts.NoVerify = *flags.NoVerify
		}
		if flags.StrictOwnership != nil {
			opts.StrictOwnership = *flags.StrictOwnership
		}
		if flags.ReadinessEnabled != nil {
			opts.ReadinessEnabled = *flags.ReadinessEnabled
		}
		if flags.PerAttemptTimeout != nil {
			opts.PerAttemptTimeout = *flags.PerAttemptTimeout
		}
		if flags.StateDir != nil {
			opts.StateDir = *flags.StateDir
		}
		if flags.OutputLines != nil {
			opts.OutputLines = *flags.OutputLines
		}
		if flags.MaxPublishAttempts != nil {
			opts.MaxPublishAttempts = *flags.MaxPublishAttempts
		}
	}

	return opts
}

// LoadPreset reads a named preset from a YAML document at path, such as a
// shipper.yaml alongside the workspace manifest.
func LoadPreset(path string) (*Preset, error) {
	data, err := secureio.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read preset file: %w", err)
	}

	var preset Preset
	if err := yaml.Unmarshal(data, &preset); err != nil {
		return nil, fmt.Errorf("parse preset file: %w", err)
	}

	return &preset, nil
}
