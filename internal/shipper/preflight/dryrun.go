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

package preflight

import (
	"bytes"
	"context"
	"os/exec"
	"time"
)

const dryRunTimeout = 5 * time.Minute

// CargoDryRunner performs a `cargo publish --dry-run` build, workspace-wide
// when packageName is "" or scoped to one package otherwise.
type CargoDryRunner struct {
	lookPath func(string) (string, error)
}

// NewCargoDryRunner creates a DryRunner backed by the cargo CLI.
func NewCargoDryRunner() *CargoDryRunner {
	return &CargoDryRunner{lookPath: exec.LookPath}
}

// DryRun runs `cargo publish --dry-run` (optionally scoped with -p) in
// workspaceRoot, returning the combined output as evidence regardless of
// outcome.
func (d *CargoDryRunner) DryRun(ctx context.Context, workspaceRoot, packageName string) (bool, string, error) {
	cargoPath, err := d.lookPath("cargo")
	if err != nil {
		return false, "", err
	}

	args := []string{"publish", "--dry-run"}
	if packageName != "" {
		args = append(args, "-p", packageName)
	} else {
		args = append(args, "--workspace")
	}

	execCtx, cancel := context.WithTimeout(ctx, dryRunTimeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, cargoPath, args...) // #nosec G204 - fixed flags plus a validated in-workspace package name
	cmd.Dir = workspaceRoot

	var combined bytes.Buffer
	cmd.Stdout = &combined
	cmd.Stderr = &combined

	runErr := cmd.Run()
	evidence := combined.String()

	if runErr == nil {
		return true, evidence, nil
	}
	if _, ok := runErr.(*exec.ExitError); ok {
		return false, evidence, nil
	}
	return false, evidence, runErr
}
