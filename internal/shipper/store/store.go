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

// Package store persists ExecutionState and Receipt beneath a state
// directory, and appends to the run's events.jsonl. It is the sole source
// of truth across process restarts: every mutation goes through an atomic
// write-tmp-then-rename, guarded by a mutex so a single process never
// observes or produces a half-written file.
//
// Note: Store is safe for concurrent use within a single process. It is not
// a distributed lock; see the lock package for cross-invocation exclusion.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/EffortlessMetrics/shipper/internal/secureio"
	"github.com/EffortlessMetrics/shipper/internal/shipper/shippererr"
	"github.com/EffortlessMetrics/shipper/internal/shipper/types"
)

// DefaultStateDir is the default state directory, relative to the
// workspace root, when the caller does not override it.
const DefaultStateDir = ".shipper"

const (
	stateFileName   = "state.json"
	receiptFileName = "receipt.json"
	eventsFileName  = "events.jsonl"
)

// Store manages the on-disk state directory for one shipper run.
type Store struct {
	dir string
	now func() time.Time
	mu  sync.Mutex
}

// New creates a Store rooted at dir. now defaults to time.Now.
func New(dir string, now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{dir: dir, now: now}
}

// Dir returns the state directory this Store manages.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) statePath() string   { return filepath.Join(s.dir, stateFileName) }
func (s *Store) receiptPath() string { return filepath.Join(s.dir, receiptFileName) }
func (s *Store) eventsPath() string  { return filepath.Join(s.dir, eventsFileName) }

// Load reads the persisted ExecutionState. If state.json is absent it
// returns (nil, nil) — "no existing state" — rather than an error. A
// state_version below types.MinSupportedStateVersion fails with
// shippererr.KindSchemaMismatch.
func (s *Store) Load() (*types.ExecutionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) load() (*types.ExecutionState, error) {
	data, err := os.ReadFile(s.statePath()) // #nosec G304 - path constructed from trusted state dir
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, shippererr.Wrap(shippererr.KindIOError, "read state file", err)
	}

	var st types.ExecutionState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("parse state file: %w", err)
	}

	if st.StateVersion == "" || st.StateVersion < types.MinSupportedStateVersion {
		return nil, shippererr.New(shippererr.KindSchemaMismatch,
			fmt.Sprintf("state_version %q is below minimum supported %q", st.StateVersion, types.MinSupportedStateVersion))
	}

	return &st, nil
}

// Save atomically persists the ExecutionState, stamping UpdatedAt with the
// Store's clock first.
func (s *Store) Save(st *types.ExecutionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st.UpdatedAt = s.now()

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	path := s.statePath()
	if !filepath.IsAbs(path) {
		abs, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("resolve absolute state path: %w", err)
		}
		path = abs
	}

	if err := secureio.WriteFileAtomic(path, data, 0o600); err != nil {
		return shippererr.Wrap(shippererr.KindIOError, "write state file", err)
	}
	return nil
}

// SaveReceipt atomically persists the terminal Receipt for this run. It is
// written exactly once per terminating run.
func (s *Store) SaveReceipt(r *types.Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal receipt: %w", err)
	}

	path := s.receiptPath()
	if !filepath.IsAbs(path) {
		abs, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("resolve absolute receipt path: %w", err)
		}
		path = abs
	}

	if err := secureio.WriteFileAtomic(path, data, 0o600); err != nil {
		return shippererr.Wrap(shippererr.KindIOError, "write receipt file", err)
	}
	return nil
}

// AppendEvent appends one JSON-serializable event record as a single line
// in events.jsonl, guarded by the same mutex as state writes so concurrent
// writers in the parallel executor never interleave partial lines.
func (s *Store) AppendEvent(event any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	path := s.eventsPath()
	if !filepath.IsAbs(path) {
		abs, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("resolve absolute events path: %w", err)
		}
		path = abs
	}

	if err := secureio.AppendLine(path, data); err != nil {
		return shippererr.Wrap(shippererr.KindIOError, "append event line", err)
	}
	return nil
}
