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

// Package executor drives the per-package publish state machine (§4.8) and
// the two run modes built on top of it: Sequential (plan order, one package
// at a time) and Parallel (dependency-level barriers, bounded fan-out within
// a level). Both modes share one Engine so the state machine, persistence
// contract, and event emission stay in exactly one place.
package executor

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/EffortlessMetrics/shipper/internal/shipper/backoff"
	"github.com/EffortlessMetrics/shipper/internal/shipper/classify"
	"github.com/EffortlessMetrics/shipper/internal/shipper/options"
	"github.com/EffortlessMetrics/shipper/internal/shipper/publish"
	"github.com/EffortlessMetrics/shipper/internal/shipper/shippererr"
	"github.com/EffortlessMetrics/shipper/internal/shipper/store"
	"github.com/EffortlessMetrics/shipper/internal/shipper/types"
)

// Persister is the subset of store.Store the engine needs: atomic
// whole-state writes after every transition, per the §4.8 persistence
// contract. Tests substitute an in-memory fake so they never touch disk.
type Persister interface {
	Save(st *types.ExecutionState) error
}

// EventEmitter is the subset of store.Recorder the engine needs.
type EventEmitter interface {
	Emit(eventType store.EventType, pkg string, detail any) error
}

// Engine holds every collaborator the §4.8 state machine calls into and the
// reconciled RuntimeOptions governing one run. Beyond its dependencies, its
// only mutable field is stateMu: in Parallel mode several packages' runPackage
// calls execute concurrently, each holding its own *PackageProgress /
// *PackageEvidence, but persist marshals the whole ExecutionState — every
// field write under it and every persist call share this one mutex so the
// marshal never observes a half-written struct (§4.10, §9).
type Engine struct {
	registry      RegistryChecker
	publisher     publish.Publisher
	persister     Persister
	events        EventEmitter
	readiness     *readinessPoller
	backoffPolicy backoff.Policy
	readinessCfg  ReadinessConfig
	opts          options.RuntimeOptions
	now           func() time.Time
	sleep         func(time.Duration)
	rnd           func() float64
	stateMu       sync.Mutex
}

// Deps bundles an Engine's collaborators.
type Deps struct {
	Registry  RegistryChecker
	Publisher publish.Publisher
	Store     Persister
	Events    EventEmitter
	Now       func() time.Time
	Sleep     func(time.Duration)
	Rand      func() float64
}

// NewEngine constructs an Engine. Now, Sleep, and Rand default to wall-clock
// time, real sleeping, and math/rand respectively; tests override all three
// for determinism and speed.
func NewEngine(deps Deps, opts options.RuntimeOptions, backoffPolicy backoff.Policy, readinessCfg ReadinessConfig) *Engine {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	sleep := deps.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	rnd := deps.Rand
	if rnd == nil {
		rnd = rand.Float64
	}
	return &Engine{
		registry:      deps.Registry,
		publisher:     deps.Publisher,
		persister:     deps.Store,
		events:        deps.Events,
		readiness:     &readinessPoller{registry: deps.Registry, sleep: sleep, rand: rnd, now: now},
		backoffPolicy: backoffPolicy,
		readinessCfg:  readinessCfg,
		opts:          opts,
		now:           now,
		sleep:         sleep,
		rnd:           rnd,
	}
}

// runPackage drives one package through the full §4.8 state machine,
// persisting ExecutionState after every transition. A non-nil return value
// signals a fatal, run-aborting condition (Failed{Permanent}, a registry
// query or readiness-poll error, or an unrecoverable I/O failure); any other terminal outcome — Skipped,
// Published, or a retry-exhausted Failed{Retryable}/Failed{Ambiguous} — is
// reported by mutating state and returning nil, per §7's localized
// propagation policy for per-package errors.
func (e *Engine) runPackage(ctx context.Context, plan *types.ReleasePlan, state *types.ExecutionState, token string, pkg types.PlannedPackage) error {
	key := pkg.Key()
	progress := state.Packages[key]
	evidence := state.Evidence[key]

	if progress.State.Terminal() {
		// Already Published/Skipped/Failed from a prior run: resuming must
		// reproduce the same terminal ExecutionState, not re-derive it from
		// a fresh registry check (§8 property 3, scenario S3).
		return nil
	}

	already, err := e.registry.VersionExists(ctx, plan.Registry, pkg.Name, pkg.Version)
	if err != nil {
		return shippererr.Wrap(shippererr.KindRegistryError, fmt.Sprintf("check version_exists for %s", key), err)
	}
	if already {
		if err := e.mutateAndPersist(state, func() {
			progress.State = types.SkippedState("already published")
			progress.LastUpdatedAt = e.now()
		}); err != nil {
			return err
		}
		return e.emit(store.EventPackageSkipped, key, progress.State)
	}

	if err := e.emit(store.EventPackageStarted, key, nil); err != nil {
		return err
	}

	maxAttempts := e.opts.MaxPublishAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for attempt := 1; ; attempt++ {
		e.mutate(func() { progress.Attempts = uint(attempt) })

		result, pubErr := e.publisher.Publish(ctx, publish.Request{
			WorkspaceRoot: plan.WorkspaceRoot,
			PackageName:   pkg.Name,
			RegistryName:  plan.Registry.Name,
			Token:         token,
			AllowDirty:    e.opts.AllowDirty,
			NoVerify:      e.opts.NoVerify,
			OutputLines:   e.opts.OutputLines,
			Timeout:       e.opts.PerAttemptTimeout,
		})
		if pubErr != nil {
			if err := e.mutateAndPersist(state, func() {
				progress.State = types.FailedState(types.ClassPermanent, pubErr.Error())
				progress.LastUpdatedAt = e.now()
			}); err != nil {
				return err
			}
			if err := e.emit(store.EventPackageFailed, key, progress.State); err != nil {
				return err
			}
			return shippererr.Wrap(shippererr.KindPublishPermanent, fmt.Sprintf("invoke publisher for %s", key), pubErr)
		}

		attemptEvidence := types.AttemptEvidence{
			Timestamp:      e.now(),
			CommandSummary: fmt.Sprintf("cargo publish -p %s --registry %s", pkg.Name, plan.Registry.Name),
			StdoutTail:     result.StdoutTail,
			StderrTail:     result.StderrTail,
			Duration:       result.Duration,
			AttemptNumber:  attempt,
			ExitCode:       result.ExitCode,
		}
		if err := e.mutateAndPersist(state, func() {
			evidence.Attempts = append(evidence.Attempts, attemptEvidence)
		}); err != nil {
			return err
		}
		if err := e.emit(store.EventPackageAttempted, key, attemptEvidence); err != nil {
			return err
		}
		if attemptEvidence.StdoutTail != "" || attemptEvidence.StderrTail != "" {
			if err := e.emit(store.EventPackageOutput, key, attemptEvidence); err != nil {
				return err
			}
		}

		if result.ExitCode == 0 {
			done, terminal, err := e.handleSuccessfulUpload(ctx, plan, state, key, attempt, maxAttempts)
			if err != nil {
				return err
			}
			if done || terminal {
				return nil
			}
			e.sleepBeforeRetry(attempt)
			continue
		}

		done, terminal, err := e.handleFailedAttempt(ctx, plan, state, key, attempt, maxAttempts, result)
		if err != nil {
			return err
		}
		if done || terminal {
			return nil
		}
		e.sleepBeforeRetry(attempt)
	}
}

// handleSuccessfulUpload runs the readiness poller after an exit=0 publish
// and applies the promote/demote rules from the note under §4.8's diagram.
// done reports a normal return (Published); terminal reports a return that
// consumed the final attempt (Published-by-reconciliation or
// Failed{Ambiguous}), in which case the caller also returns without sleeping.
func (e *Engine) handleSuccessfulUpload(ctx context.Context, plan *types.ReleasePlan, state *types.ExecutionState, key string, attempt, maxAttempts int) (done, terminal bool, err error) {
	progress := state.Packages[key]
	evidence := state.Evidence[key]

	if err := e.mutateAndPersist(state, func() {
		progress.State = types.Uploaded()
		progress.LastUpdatedAt = e.now()
	}); err != nil {
		return false, false, err
	}

	visible, readinessEvidence, pollErr := e.readiness.poll(ctx, plan.Registry, progress.Name, progress.Version, e.readinessCfg)
	if err := e.mutateAndPersist(state, func() {
		evidence.Readiness = append(evidence.Readiness, readinessEvidence...)
	}); err != nil {
		return false, false, err
	}
	if pollErr != nil {
		return false, false, shippererr.Wrap(shippererr.KindRegistryError, fmt.Sprintf("readiness poll for %s", key), pollErr)
	}

	if visible {
		if err := e.mutateAndPersist(state, func() {
			progress.State = types.Published()
			progress.LastUpdatedAt = e.now()
		}); err != nil {
			return false, false, err
		}
		if err := e.emit(store.EventPackagePublished, key, nil); err != nil {
			return false, false, err
		}
		return true, false, nil
	}

	if err := e.mutateAndPersist(state, func() {
		progress.State = types.AmbiguousState("not visible within readiness wait")
		progress.LastUpdatedAt = e.now()
	}); err != nil {
		return false, false, err
	}

	if attempt < maxAttempts {
		return false, false, nil
	}

	finalVisible, verErr := e.registry.VersionExists(ctx, plan.Registry, progress.Name, progress.Version)
	if verErr != nil {
		return false, false, shippererr.Wrap(shippererr.KindRegistryError, fmt.Sprintf("final reconciliation for %s", key), verErr)
	}
	if finalVisible {
		if err := e.mutateAndPersist(state, func() {
			progress.State = types.Published()
			progress.LastUpdatedAt = e.now()
		}); err != nil {
			return false, false, err
		}
		return false, true, e.emit(store.EventPackagePublished, key, nil)
	}

	if err := e.mutateAndPersist(state, func() {
		progress.State = types.FailedState(types.ClassAmbiguous, "publish outcome ambiguous; registry did not show version")
		progress.LastUpdatedAt = e.now()
	}); err != nil {
		return false, false, err
	}
	return false, true, e.emit(store.EventPackageFailed, key, progress.State)
}

// handleFailedAttempt reconciles an exit!=0 attempt against the registry
// (the upload may have succeeded even though the client-visible response
// failed), then classifies the tails when reconciliation shows nothing
// landed. done/terminal mirror handleSuccessfulUpload's contract; a non-nil
// error from this function (distinct from the bool returns) is fatal: the
// Permanent-failure signal, a failed reconciliation query, or a
// persistence/event-emission error.
func (e *Engine) handleFailedAttempt(ctx context.Context, plan *types.ReleasePlan, state *types.ExecutionState, key string, attempt, maxAttempts int, result publish.Result) (done, terminal bool, err error) {
	progress := state.Packages[key]

	reconciled, verErr := e.registry.VersionExists(ctx, plan.Registry, progress.Name, progress.Version)
	if verErr != nil {
		return false, false, shippererr.Wrap(shippererr.KindRegistryError, fmt.Sprintf("reconcile failed attempt for %s", key), verErr)
	}
	if reconciled {
		if err := e.mutateAndPersist(state, func() {
			progress.State = types.Published()
			progress.LastUpdatedAt = e.now()
		}); err != nil {
			return false, false, err
		}
		return true, false, e.emit(store.EventPackagePublished, key, nil)
	}

	verdict := classify.Classify(result.StdoutTail, result.StderrTail)

	if verdict.Class == types.ClassPermanent {
		if err := e.mutateAndPersist(state, func() {
			progress.State = types.FailedState(types.ClassPermanent, verdict.Message)
			progress.LastUpdatedAt = e.now()
		}); err != nil {
			return false, false, err
		}
		if err := e.emit(store.EventPackageFailed, key, progress.State); err != nil {
			return false, false, err
		}
		return false, false, shippererr.New(shippererr.KindPublishPermanent, fmt.Sprintf("%s: %s", key, verdict.Message))
	}

	if attempt >= maxAttempts {
		if err := e.mutateAndPersist(state, func() {
			progress.State = types.FailedState(verdict.Class, verdict.Message)
			progress.LastUpdatedAt = e.now()
		}); err != nil {
			return false, false, err
		}
		return false, true, e.emit(store.EventPackageFailed, key, progress.State)
	}

	return false, false, nil
}

func (e *Engine) sleepBeforeRetry(attempt int) {
	delay := e.backoffPolicy.Delay(attempt)
	e.sleep(backoff.Jitter(delay, e.rnd))
}

// mutate runs fn under the engine's single state mutex. Use it for a field
// write that is not immediately followed by a persist call (e.g. recording
// the current attempt number before the slow publisher call), so the write
// still can't tear against a concurrent persist's marshal of the whole
// ExecutionState.
func (e *Engine) mutate(fn func()) {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	fn()
}

// mutateAndPersist runs fn and persists state while holding the engine's
// single state mutex for the whole read-modify-persist region, so Parallel's
// sibling goroutines never observe (or produce) a torn ExecutionState.
func (e *Engine) mutateAndPersist(state *types.ExecutionState, fn func()) error {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	fn()
	return e.persist(state)
}

func (e *Engine) persist(state *types.ExecutionState) error {
	if err := e.persister.Save(state); err != nil {
		return shippererr.Wrap(shippererr.KindIOError, "persist execution state", err)
	}
	return nil
}

func (e *Engine) emit(eventType store.EventType, key string, detail any) error {
	if e.events == nil {
		return nil
	}
	return e.events.Emit(eventType, key, detail)
}
