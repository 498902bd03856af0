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

package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/EffortlessMetrics/shipper/internal/shipper/backoff"
	"github.com/EffortlessMetrics/shipper/internal/shipper/executor"
	"github.com/EffortlessMetrics/shipper/internal/shipper/options"
)

func TestLoadOptions_NoPresetFileUsesDefaults(t *testing.T) {
	manifestPath := filepath.Join(t.TempDir(), "Cargo.toml")

	got, err := loadOptions(manifestPath, nil)
	if err != nil {
		t.Fatalf("loadOptions() error = %v", err)
	}
	if got != options.Default() {
		t.Errorf("loadOptions() = %+v, want defaults %+v", got, options.Default())
	}
}

func TestLoadOptions_PresetFileNextToManifestIsApplied(t *testing.T) {
	dir := t.TempDir()
	manifestPath := filepath.Join(dir, "Cargo.toml")
	presetPath := filepath.Join(dir, "shipper.yaml")
	if err := os.WriteFile(presetPath, []byte("name: ci\nmax_concurrent: 3\n"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	got, err := loadOptions(manifestPath, nil)
	if err != nil {
		t.Fatalf("loadOptions() error = %v", err)
	}
	if got.MaxConcurrent != 3 {
		t.Errorf("MaxConcurrent = %d, want 3", got.MaxConcurrent)
	}
}

func TestLoadOptions_FlagsOverridePreset(t *testing.T) {
	dir := t.TempDir()
	manifestPath := filepath.Join(dir, "Cargo.toml")
	presetPath := filepath.Join(dir, "shipper.yaml")
	if err := os.WriteFile(presetPath, []byte("name: ci\nmax_concurrent: 3\n"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	override := 8
	got, err := loadOptions(manifestPath, &options.CLIFlags{MaxConcurrent: &override})
	if err != nil {
		t.Fatalf("loadOptions() error = %v", err)
	}
	if got.MaxConcurrent != 8 {
		t.Errorf("MaxConcurrent = %d, want 8 (flag wins)", got.MaxConcurrent)
	}
}

func TestSelectRunner_SequentialByDefault(t *testing.T) {
	eng := executor.NewEngine(executor.Deps{}, options.Default(), backoff.Policy{}, executor.ReadinessConfig{})

	mode := selectRunner(eng, options.RuntimeOptions{MaxConcurrent: 1})
	if _, ok := mode.(*executor.Sequential); !ok {
		t.Errorf("selectRunner() = %T, want *executor.Sequential", mode)
	}
}

func TestSelectRunner_ParallelWhenMaxConcurrentAboveOne(t *testing.T) {
	eng := executor.NewEngine(executor.Deps{}, options.Default(), backoff.Policy{}, executor.ReadinessConfig{})

	mode := selectRunner(eng, options.RuntimeOptions{MaxConcurrent: 4})
	if _, ok := mode.(*executor.Parallel); !ok {
		t.Errorf("selectRunner() = %T, want *executor.Parallel", mode)
	}
}
