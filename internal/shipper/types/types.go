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

// Package types defines the data model shared across shipper's publish
// engine: the release plan, the per-run execution state, and the terminal
// receipt. These are plain structs with JSON tags; no package in this module
// other than store/executor/plan mutates them in place.
package types

import (
	"fmt"
	"time"
)

// CurrentStateVersion is written into every new ExecutionState and Receipt.
// Readers reject a persisted state whose StateVersion is below
// MinSupportedStateVersion (see store.Load).
const CurrentStateVersion = "1"

// MinSupportedStateVersion is the oldest state_version this build can load.
const MinSupportedStateVersion = "1"

// ReceiptVersion is written into every Receipt.
const ReceiptVersion = "1"

// Registry identifies a publish target.
type Registry struct {
	Name      string `json:"name" yaml:"name"`
	APIBase   string `json:"api_base" yaml:"api_base"`
	IndexBase string `json:"index_base,omitempty" yaml:"index_base,omitempty"`
}

// PlannedPackage is one package in a ReleasePlan.
type PlannedPackage struct {
	Name         string `json:"name"`
	Version      string `json:"version"`
	ManifestPath string `json:"manifest_path"`
}

// Key returns the "name@version" identity used throughout the state store,
// event log, and receipt to address a package unambiguously.
func (p PlannedPackage) Key() string {
	return PackageKey(p.Name, p.Version)
}

// PackageKey formats the "name@version" key used to address a package.
func PackageKey(name, version string) string {
	return fmt.Sprintf("%s@%s", name, version)
}

// SkippedPackage records a workspace member the Plan Builder excluded and why.
type SkippedPackage struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// ReleasePlan is the immutable, deterministic publish set produced by the
// Plan Builder. It is recomputed from workspace metadata on every
// invocation; it is never itself persisted as the source of truth (the
// ExecutionState's PlanID field is what ties a persisted run back to one).
type ReleasePlan struct {
	CreatedAt     time.Time          `json:"created_at"`
	PlanID        string             `json:"plan_id"`
	Registry      Registry           `json:"registry"`
	WorkspaceRoot string             `json:"workspace_root"`
	Packages      []PlannedPackage   `json:"packages"`
	DependsOn     map[string][]string `json:"depends_on"`
	Skipped       []SkippedPackage   `json:"skipped,omitempty"`
}

// StateKind is the tagged-union discriminator for PackageState.
type StateKind string

// PackageProgress.State.Kind values. These are the variants of the §4.8
// state machine; Kind alone determines which of the remaining PackageState
// fields are meaningful.
const (
	StatePending   StateKind = "pending"
	StateUploaded  StateKind = "uploaded"
	StatePublished StateKind = "published"
	StateSkipped   StateKind = "skipped"
	StateFailed    StateKind = "failed"
	StateAmbiguous StateKind = "ambiguous"
)

// ErrorClass is the Error Classifier's three-way verdict (spec §4.6).
type ErrorClass string

// ErrorClass values.
const (
	ClassRetryable ErrorClass = "retryable"
	ClassPermanent ErrorClass = "permanent"
	ClassAmbiguous ErrorClass = "ambiguous"
)

// PackageState is a tagged union over the §4.8 state machine variants.
// Reason is set only for StateSkipped; Class and Message are set only for
// StateFailed and StateAmbiguous.
type PackageState struct {
	Kind    StateKind  `json:"kind"`
	Reason  string     `json:"reason,omitempty"`
	Class   ErrorClass `json:"class,omitempty"`
	Message string     `json:"message,omitempty"`
}

// Pending returns the initial package state.
func Pending() PackageState { return PackageState{Kind: StatePending} }

// Uploaded returns the state after a successful publisher exit but before
// readiness has confirmed registry visibility.
func Uploaded() PackageState { return PackageState{Kind: StateUploaded} }

// Published returns the terminal success state.
func Published() PackageState { return PackageState{Kind: StatePublished} }

// SkippedState returns a terminal skip state carrying a human-readable reason.
func SkippedState(reason string) PackageState {
	return PackageState{Kind: StateSkipped, Reason: reason}
}

// FailedState returns a terminal failure state. class is ClassPermanent,
// ClassAmbiguous, or ClassRetryable (a Retryable failure becomes terminal
// only once the final attempt has been used; before that it loops back to
// another attempt).
func FailedState(class ErrorClass, message string) PackageState {
	return PackageState{Kind: StateFailed, Class: class, Message: message}
}

// AmbiguousState returns the transient "readiness not yet confirmed" state a
// package sits in between backoff attempts. It is not terminal: the executor
// will either promote it to Published or demote it to FailedState.
func AmbiguousState(message string) PackageState {
	return PackageState{Kind: StateAmbiguous, Class: ClassAmbiguous, Message: message}
}

// Terminal reports whether this state ends the package's state machine.
func (s PackageState) Terminal() bool {
	switch s.Kind {
	case StatePublished, StateSkipped, StateFailed:
		return true
	default:
		return false
	}
}

// PackageProgress is the per-package run state persisted in ExecutionState.
type PackageProgress struct {
	LastUpdatedAt time.Time    `json:"last_updated_at"`
	Name          string       `json:"name"`
	Version       string       `json:"version"`
	State         PackageState `json:"state"`
	Attempts      uint         `json:"attempts"`
}

// Key returns the "name@version" identity of this progress record.
func (p *PackageProgress) Key() string {
	return PackageKey(p.Name, p.Version)
}

// AttemptEvidence records one publisher invocation, successful or not.
type AttemptEvidence struct {
	Timestamp      time.Time     `json:"timestamp"`
	CommandSummary string        `json:"command_summary"`
	StdoutTail     string        `json:"stdout_tail,omitempty"`
	StderrTail     string        `json:"stderr_tail,omitempty"`
	Duration       time.Duration `json:"duration"`
	AttemptNumber  int           `json:"attempt_number"`
	ExitCode       int           `json:"exit_code"`
}

// ReadinessEvidence records one registry visibility probe.
type ReadinessEvidence struct {
	Timestamp       time.Time     `json:"timestamp"`
	DelayBefore     time.Duration `json:"delay_before"`
	Attempt         int           `json:"attempt"`
	ObservedVisible bool          `json:"observed_visible"`
}

// PackageEvidence is the audit trail embedded in a package's receipt entry.
// The executor treats this as the authoritative record: every publish
// attempt is appended here regardless of outcome (see SPEC_FULL §9 / open
// question about the sequential executor's evidence ordering).
type PackageEvidence struct {
	Attempts  []AttemptEvidence   `json:"attempts,omitempty"`
	Readiness []ReadinessEvidence `json:"readiness,omitempty"`
}

// ExecutionState is the whole-run persisted state, the sole source of truth
// across process restarts (spec §4.8 "Persistence contract").
type ExecutionState struct {
	CreatedAt    time.Time                   `json:"created_at"`
	UpdatedAt    time.Time                   `json:"updated_at"`
	Packages     map[string]*PackageProgress `json:"packages"`
	Evidence     map[string]*PackageEvidence `json:"evidence"`
	StateVersion string                      `json:"state_version"`
	PlanID       string                      `json:"plan_id"`
	Registry     Registry                    `json:"registry"`
}

// NewExecutionState creates a fresh state for a plan, with every planned
// package initialized to Pending.
func NewExecutionState(plan *ReleasePlan, now time.Time) *ExecutionState {
	st := &ExecutionState{
		StateVersion: CurrentStateVersion,
		PlanID:       plan.PlanID,
		Registry:     plan.Registry,
		CreatedAt:    now,
		UpdatedAt:    now,
		Packages:     make(map[string]*PackageProgress, len(plan.Packages)),
		Evidence:     make(map[string]*PackageEvidence, len(plan.Packages)),
	}
	for _, pkg := range plan.Packages {
		key := pkg.Key()
		st.Packages[key] = &PackageProgress{
			Name:          pkg.Name,
			Version:       pkg.Version,
			State:         Pending(),
			LastUpdatedAt: now,
		}
		st.Evidence[key] = &PackageEvidence{}
	}
	return st
}

// Owner is a registry crate owner, as returned by the "list owners" query.
type Owner struct {
	Login string `json:"login"`
	Name  string `json:"name,omitempty"`
	ID    int64  `json:"id"`
}

// GitContext is the version-control context attached to a Receipt.
type GitContext struct {
	Commit string `json:"commit,omitempty"`
	Branch string `json:"branch,omitempty"`
	Tag    string `json:"tag,omitempty"`
	Dirty  bool   `json:"dirty"`
}

// EnvironmentFingerprint is the tooling/host fingerprint attached to a Receipt.
type EnvironmentFingerprint struct {
	ShipperVersion string `json:"shipper_version"`
	GoVersion      string `json:"go_version"`
	OS             string `json:"os"`
	Arch           string `json:"arch"`
}

// PackageReceipt is one package's entry in a terminal Receipt.
type PackageReceipt struct {
	Name     string          `json:"name"`
	Version  string          `json:"version"`
	State    PackageState    `json:"state"`
	Evidence PackageEvidence `json:"evidence"`
	Attempts uint            `json:"attempts"`
}

// Receipt is the terminal, read-only artifact written exactly once per
// terminating run (success or fatal failure).
type Receipt struct {
	StartedAt      time.Time              `json:"started_at"`
	FinishedAt     time.Time              `json:"finished_at"`
	ReceiptVersion string                 `json:"receipt_version"`
	PlanID         string                 `json:"plan_id"`
	Registry       Registry               `json:"registry"`
	Packages       []PackageReceipt       `json:"packages"`
	GitContext     *GitContext            `json:"git_context,omitempty"`
	Environment    EnvironmentFingerprint `json:"environment"`
}

// BuildReceipt assembles a Receipt from the final ExecutionState, preserving
// plan order for the package list.
func BuildReceipt(plan *ReleasePlan, state *ExecutionState, startedAt, finishedAt time.Time, git *GitContext, env EnvironmentFingerprint) *Receipt {
	packages := make([]PackageReceipt, 0, len(plan.Packages))
	for _, pkg := range plan.Packages {
		key := pkg.Key()
		progress := state.Packages[key]
		evidence := state.Evidence[key]
		if evidence == nil {
			evidence = &PackageEvidence{}
		}
		entry := PackageReceipt{
			Name:     pkg.Name,
			Version:  pkg.Version,
			Evidence: *evidence,
		}
		if progress != nil {
			entry.State = progress.State
			entry.Attempts = progress.Attempts
		} else {
			entry.State = Pending()
		}
		packages = append(packages, entry)
	}

	return &Receipt{
		ReceiptVersion: ReceiptVersion,
		PlanID:         plan.PlanID,
		Registry:       plan.Registry,
		StartedAt:      startedAt,
		FinishedAt:     finishedAt,
		Packages:       packages,
		GitContext:     git,
		Environment:    env,
	}
}
