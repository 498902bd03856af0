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
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/EffortlessMetrics/shipper/internal/shipper/backoff"
	"github.com/EffortlessMetrics/shipper/internal/shipper/credentials"
	"github.com/EffortlessMetrics/shipper/internal/shipper/executor"
	"github.com/EffortlessMetrics/shipper/internal/shipper/lock"
	"github.com/EffortlessMetrics/shipper/internal/shipper/options"
	"github.com/EffortlessMetrics/shipper/internal/shipper/plan"
	"github.com/EffortlessMetrics/shipper/internal/shipper/preflight"
	"github.com/EffortlessMetrics/shipper/internal/shipper/publish"
	"github.com/EffortlessMetrics/shipper/internal/shipper/registryclient"
	"github.com/EffortlessMetrics/shipper/internal/shipper/store"
	"github.com/EffortlessMetrics/shipper/internal/shipper/types"
	"github.com/EffortlessMetrics/shipper/internal/shipper/webhook"
)

// loadOptions reconciles flags against an on-disk preset (shipper.yaml next
// to the workspace manifest, when present) and the built-in defaults.
func loadOptions(manifestPath string, flags *options.CLIFlags) (options.RuntimeOptions, error) {
	presetPath := filepath.Join(filepath.Dir(manifestPath), "shipper.yaml")

	var preset *options.Preset
	if _, err := os.Stat(presetPath); err == nil {
		loaded, loadErr := options.LoadPreset(presetPath)
		if loadErr != nil {
			return options.RuntimeOptions{}, fmt.Errorf("load preset %s: %w", presetPath, loadErr)
		}
		preset = loaded
	}

	return options.Resolve(preset, flags), nil
}

// setupPlanBuilder wires the Plan Builder to the cargo-metadata-backed
// MetadataProvider.
func setupPlanBuilder() *plan.Builder {
	return plan.NewBuilder(plan.NewCargoMetadataProvider(), nil)
}

// setupPreflight wires a preflight Runner against a real registry client, a
// cargo dry-run, credential resolution, and OIDC environment detection.
func setupPreflight(opts options.RuntimeOptions) *preflight.Runner {
	return preflight.NewRunner(
		registryclient.New(),
		preflight.NewCargoDryRunner(),
		credentials.New(""),
		preflight.NewEnvOIDC(),
		preflight.Options{
			StrictOwnership:  opts.StrictOwnership,
			PerPackageDryRun: false,
		},
	)
}

// setupStore opens the on-disk state store under opts.StateDir, optionally
// wrapping its event recorder with a webhook notifier when webhookURL is
// non-empty.
func setupStore(opts options.RuntimeOptions, webhookURL string) (*store.Store, executor.EventEmitter, error) {
	if err := os.MkdirAll(opts.StateDir, 0o750); err != nil {
		return nil, nil, fmt.Errorf("create state dir %s: %w", opts.StateDir, err)
	}

	st := store.New(opts.StateDir, nil)
	var emitter executor.EventEmitter = store.NewRecorder(st, nil)
	if webhookURL != "" {
		emitter = webhook.New(emitter, webhookURL, newLogger())
	}
	return st, emitter, nil
}

// newExecutionEngine builds the Engine shared by both run modes, with the
// registry client, cargo publisher, state store, and event emitter wired in.
func newExecutionEngine(opts options.RuntimeOptions, events executor.EventEmitter, st *store.Store) *executor.Engine {
	readinessCfg := executor.ReadinessConfig{
		Enabled:      opts.ReadinessEnabled,
		Method:       executor.ReadinessBoth,
		InitialDelay: 2 * time.Second,
		MaxDelay:     30 * time.Second,
		MaxTotalWait: 5 * time.Minute,
		PollInterval: 2 * time.Second,
		JitterFactor: 0.3,
	}

	backoffPolicy := backoff.Policy{Base: 2 * time.Second, Max: 2 * time.Minute}

	return executor.NewEngine(executor.Deps{
		Registry:  registryclient.New(),
		Publisher: publish.NewCargoPublisher(),
		Store:     st,
		Events:    events,
	}, opts, backoffPolicy, readinessCfg)
}

// runMode is the narrow interface both Sequential and Parallel satisfy,
// letting selectRunner hand back either without the caller branching.
type runMode interface {
	Run(ctx context.Context, p *types.ReleasePlan, state *types.ExecutionState, token string) error
}

// selectRunner picks Sequential when MaxConcurrent is 1 and Parallel
// otherwise, both driving the same Engine.
func selectRunner(eng *executor.Engine, opts options.RuntimeOptions) runMode {
	if opts.MaxConcurrent <= 1 {
		return executor.NewSequential(eng)
	}
	return executor.NewParallel(eng, opts.MaxConcurrent)
}

// acquireLock wraps lock.WithLock with the state dir and a ten-minute
// staleness window.
func acquireLock(opts options.RuntimeOptions, planID string, force bool, fn func() error) error {
	l := lock.New(opts.StateDir, 10*time.Minute, nil)
	return lock.WithLock(l, planID, force, fn)
}
