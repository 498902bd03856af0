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

package store

import "time"

// EventType discriminates the flattened event records written to
// events.jsonl.
type EventType string

// EventType values. Every package-scoped event carries a package key in
// Package; run-wide events use AllPackages.
const (
	EventPlanCreated        EventType = "PlanCreated"
	EventExecutionStarted   EventType = "ExecutionStarted"
	EventExecutionFinished  EventType = "ExecutionFinished"
	EventPackageStarted     EventType = "PackageStarted"
	EventPackageAttempted   EventType = "PackageAttempted"
	EventPackageOutput      EventType = "PackageOutput"
	EventPackagePublished   EventType = "PackagePublished"
	EventPackageFailed      EventType = "PackageFailed"
	EventPackageSkipped     EventType = "PackageSkipped"
	EventReadinessStarted   EventType = "ReadinessStarted"
	EventReadinessPoll      EventType = "ReadinessPoll"
	EventReadinessComplete  EventType = "ReadinessComplete"
	EventReadinessTimeout   EventType = "ReadinessTimeout"
	EventPreflightStarted   EventType = "PreflightStarted"
	EventPreflightCompleted EventType = "PreflightCompleted"
)

// AllPackages is the Package value for run-wide events.
const AllPackages = "all"

// Event is one line of events.jsonl. Type is the top-level discriminator;
// Detail carries type-specific fields and is marshaled as a nested "detail"
// object, not merged into the top level.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	Package   string    `json:"package"`
	Detail    any       `json:"detail,omitempty"`
}

// Recorder wraps a Store with the high-level event-emitting API the
// executor, preflight, and plan stages call into. It never surfaces
// append failures as fatal: a dropped event line degrades the audit trail,
// not the publish outcome, so callers log and continue.
type Recorder struct {
	store *Store
	now   func() time.Time
}

// NewRecorder creates a Recorder writing through store.
func NewRecorder(store *Store, now func() time.Time) *Recorder {
	if now == nil {
		now = time.Now
	}
	return &Recorder{store: store, now: now}
}

// Emit appends one event to events.jsonl.
func (r *Recorder) Emit(eventType EventType, pkg string, detail any) error {
	if pkg == "" {
		pkg = AllPackages
	}
	return r.store.AppendEvent(Event{
		Timestamp: r.now(),
		Type:      eventType,
		Package:   pkg,
		Detail:    detail,
	})
}
