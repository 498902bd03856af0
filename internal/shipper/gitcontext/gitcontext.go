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

// Package gitcontext captures the version-control snapshot attached to a
// Receipt: commit, branch, tag, and dirty status. Collection is best-effort —
// a workspace that is not a git repository, or a missing git binary, yields a
// nil context rather than an error.
package gitcontext

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/EffortlessMetrics/shipper/internal/shipper/types"
)

// probeTimeout bounds each individual git invocation.
const probeTimeout = 5 * time.Second

// Collector gathers a GitContext by shelling out to git.
type Collector struct {
	lookPath func(string) (string, error)
	run      func(ctx context.Context, dir, name string, args ...string) (string, error)
}

// New creates a Collector backed by the real git binary.
func New() *Collector {
	return &Collector{lookPath: exec.LookPath, run: runGit}
}

// Collect returns the GitContext for workspaceRoot, or nil if workspaceRoot
// is not inside a git repository or the git binary is unavailable. Errors
// from individual probes (branch, tag) are tolerated; only the initial
// "is this a repo" check and the commit lookup must succeed.
func (c *Collector) Collect(ctx context.Context, workspaceRoot string) *types.GitContext {
	if _, err := c.lookPath("git"); err != nil {
		return nil
	}

	commit, err := c.run(ctx, workspaceRoot, "git", "rev-parse", "HEAD")
	if err != nil {
		return nil
	}

	gc := &types.GitContext{Commit: strings.TrimSpace(commit)}

	if branch, err := c.run(ctx, workspaceRoot, "git", "rev-parse", "--abbrev-ref", "HEAD"); err == nil {
		branch = strings.TrimSpace(branch)
		if branch != "HEAD" {
			gc.Branch = branch
		}
	}

	if tag, err := c.run(ctx, workspaceRoot, "git", "describe", "--tags", "--exact-match"); err == nil {
		gc.Tag = strings.TrimSpace(tag)
	}

	if status, err := c.run(ctx, workspaceRoot, "git", "status", "--porcelain"); err == nil {
		gc.Dirty = strings.TrimSpace(status) != ""
	}

	return gc
}

func runGit(ctx context.Context, dir, name string, args ...string) (string, error) {
	execCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, name, args...) // #nosec G204 - name/args are fixed git subcommands, dir is the caller's workspace root
	cmd.Dir = dir

	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = nil

	if err := cmd.Run(); err != nil {
		return "", err
	}
	return stdout.String(), nil
}
