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

// Package lock implements the advisory, node-local exclusion lock that
// prevents two shipper runs from sharing a state directory. It is not a
// distributed lock: staleness is judged purely by a local wall-clock
// comparison against the lock file's acquired_at timestamp.
package lock

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/EffortlessMetrics/shipper/internal/secureio"
	"github.com/EffortlessMetrics/shipper/internal/shipper/shippererr"
)

const fileName = "lock"

// Record is the lock file's JSON content.
type Record struct {
	AcquiredAt time.Time `json:"acquired_at"`
	PID        int       `json:"pid"`
	Hostname   string    `json:"hostname"`
	PlanID     string    `json:"plan_id,omitempty"`
}

// Lock guards one state directory.
type Lock struct {
	dir     string
	timeout time.Duration
	now     func() time.Time
}

// New creates a Lock over the given state directory. timeout is the
// staleness window: a lock file whose acquired_at is older than timeout is
// reclaimed rather than honored.
func New(dir string, timeout time.Duration, now func() time.Time) *Lock {
	if now == nil {
		now = time.Now
	}
	return &Lock{dir: dir, timeout: timeout, now: now}
}

func (l *Lock) path() string {
	return filepath.Join(l.dir, fileName)
}

// Acquire takes the lock, reclaiming a stale or corrupt lock file along the
// way. planID is recorded for diagnostic purposes and is not otherwise
// enforced. force bypasses the staleness check entirely.
func (l *Lock) Acquire(planID string, force bool) (*Held, error) {
	path := l.path()

	if !force {
		if existing, err := readRecord(path); err == nil {
			if l.now().Sub(existing.AcquiredAt) < l.timeout {
				return nil, shippererr.New(shippererr.KindLockConflict,
					fmt.Sprintf("lock held by pid %d on %s since %s", existing.PID, existing.Hostname, existing.AcquiredAt.Format(time.RFC3339)))
			}
		}
		// A missing, corrupt, or stale lock falls through to reclamation.
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	rec := Record{
		PID:        os.Getpid(),
		Hostname:   hostname,
		AcquiredAt: l.now(),
		PlanID:     planID,
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal lock record: %w", err)
	}

	abs := path
	if !filepath.IsAbs(abs) {
		abs, err = filepath.Abs(abs)
		if err != nil {
			return nil, fmt.Errorf("resolve absolute lock path: %w", err)
		}
	}

	if err := secureio.WriteFileAtomic(abs, data, 0o600); err != nil {
		return nil, fmt.Errorf("write lock file: %w", err)
	}

	return &Held{path: abs}, nil
}

// readRecord loads and parses the lock file. A missing or unparseable file
// is surfaced as an error so the caller treats it as stale.
func readRecord(path string) (*Record, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path constructed from trusted state dir
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("corrupt lock file: %w", err)
	}
	return &rec, nil
}

// Held represents a lock this process currently owns. Release removes the
// lock file; callers should defer Release immediately after a successful
// Acquire so the scoped-acquisition wrapper guarantees release on every
// return path.
type Held struct {
	path string
}

// Release removes the lock file. It is safe to call more than once.
func (h *Held) Release() error {
	if err := os.Remove(h.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}

// WithLock acquires the lock, runs fn, and releases the lock on every
// return path — the scoped-acquisition wrapper the spec requires for
// guaranteed release on process exit or panic.
func WithLock(l *Lock, planID string, force bool, fn func() error) error {
	held, err := l.Acquire(planID, force)
	if err != nil {
		return err
	}
	defer func() { _ = held.Release() }()
	return fn()
}
