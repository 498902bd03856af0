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

package gitcontext

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// scriptedRun returns a run func that answers by matching the joined
// subcommand+args against a canned response map, erroring for anything
// unlisted.
func scriptedRun(responses map[string]string, fail map[string]bool) func(context.Context, string, string, ...string) (string, error) {
	return func(_ context.Context, _ string, name string, args ...string) (string, error) {
		key := strings.Join(append([]string{name}, args...), " ")
		if fail[key] {
			return "", errors.New("git: command failed")
		}
		if out, ok := responses[key]; ok {
			return out, nil
		}
		return "", errors.New("git: unexpected command " + key)
	}
}

func foundLookPath(string) (string, error) { return "/usr/bin/git", nil }
func missingLookPath(string) (string, error) {
	return "", errors.New("executable file not found in $PATH")
}

func TestCollect_FullyPopulated(t *testing.T) {
	c := &Collector{
		lookPath: foundLookPath,
		run: scriptedRun(map[string]string{
			"git rev-parse HEAD":                 "abc123\n",
			"git rev-parse --abbrev-ref HEAD":     "main\n",
			"git describe --tags --exact-match":   "v1.2.3\n",
			"git status --porcelain":              "",
		}, nil),
	}

	gc := c.Collect(context.Background(), "/workspace")
	if gc == nil {
		t.Fatal("Collect() = nil, want populated GitContext")
	}
	if gc.Commit != "abc123" {
		t.Errorf("Commit = %q, want %q", gc.Commit, "abc123")
	}
	if gc.Branch != "main" {
		t.Errorf("Branch = %q, want %q", gc.Branch, "main")
	}
	if gc.Tag != "v1.2.3" {
		t.Errorf("Tag = %q, want %q", gc.Tag, "v1.2.3")
	}
	if gc.Dirty {
		t.Error("Dirty = true, want false")
	}
}

func TestCollect_DirtyWorkspace(t *testing.T) {
	c := &Collector{
		lookPath: foundLookPath,
		run: scriptedRun(map[string]string{
			"git rev-parse HEAD":                 "abc123\n",
			"git rev-parse --abbrev-ref HEAD":     "main\n",
			"git status --porcelain":              " M src/lib.rs\n",
		}, map[string]bool{
			"git describe --tags --exact-match": true,
		}),
	}

	gc := c.Collect(context.Background(), "/workspace")
	if gc == nil {
		t.Fatal("Collect() = nil")
	}
	if !gc.Dirty {
		t.Error("Dirty = false, want true")
	}
	if gc.Tag != "" {
		t.Errorf("Tag = %q, want empty (no exact-match tag)", gc.Tag)
	}
}

func TestCollect_DetachedHeadOmitsBranch(t *testing.T) {
	c := &Collector{
		lookPath: foundLookPath,
		run: scriptedRun(map[string]string{
			"git rev-parse HEAD":              "abc123\n",
			"git rev-parse --abbrev-ref HEAD": "HEAD\n",
			"git status --porcelain":          "",
		}, map[string]bool{
			"git describe --tags --exact-match": true,
		}),
	}

	gc := c.Collect(context.Background(), "/workspace")
	if gc == nil {
		t.Fatal("Collect() = nil")
	}
	if gc.Branch != "" {
		t.Errorf("Branch = %q, want empty for detached HEAD", gc.Branch)
	}
}

func TestCollect_NotARepositoryReturnsNil(t *testing.T) {
	c := &Collector{
		lookPath: foundLookPath,
		run:      scriptedRun(nil, map[string]bool{"git rev-parse HEAD": true}),
	}

	if gc := c.Collect(context.Background(), "/workspace"); gc != nil {
		t.Errorf("Collect() = %+v, want nil", gc)
	}
}

func TestCollect_MissingGitBinaryReturnsNil(t *testing.T) {
	c := &Collector{lookPath: missingLookPath, run: scriptedRun(nil, nil)}

	if gc := c.Collect(context.Background(), "/workspace"); gc != nil {
		t.Errorf("Collect() = %+v, want nil", gc)
	}
}
