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

// Package publish defines the Publisher contract the executor drives, and a
// default implementation that shells out to `cargo publish`, capturing a
// bounded tail of stdout/stderr and killing the subprocess on timeout.
package publish

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Request is one publish attempt's parameters.
type Request struct {
	WorkspaceRoot string
	PackageName   string
	RegistryName  string
	Token         string
	AllowDirty    bool
	NoVerify      bool
	OutputLines   int
	Timeout       time.Duration
}

// Result is one publish attempt's outcome.
type Result struct {
	StdoutTail string
	StderrTail string
	Duration   time.Duration
	ExitCode   int
}

// Publisher uploads one package to a registry. The default implementation
// below shells out to cargo; tests substitute a fake that returns canned
// Results without touching a real registry.
type Publisher interface {
	Publish(ctx context.Context, req Request) (Result, error)
}

// CargoPublisher shells out to `cargo publish` for each attempt.
type CargoPublisher struct {
	// lookPath defaults to exec.LookPath; tests override to force the
	// "cargo not found" path without relying on $PATH contents.
	lookPath func(string) (string, error)
}

// NewCargoPublisher creates a Publisher backed by the cargo CLI.
func NewCargoPublisher() *CargoPublisher {
	return &CargoPublisher{lookPath: exec.LookPath}
}

// Publish runs `cargo publish -p <name> --registry <registry>` (plus
// optional --allow-dirty / --no-verify) in workspace_root, enforcing
// req.Timeout by killing the subprocess on deadline expiration.
func (p *CargoPublisher) Publish(ctx context.Context, req Request) (Result, error) {
	cargoPath, err := p.lookPath("cargo")
	if err != nil {
		return Result{}, fmt.Errorf("locate cargo binary: %w", err)
	}

	args := []string{"publish", "-p", req.PackageName, "--registry", req.RegistryName}
	if req.AllowDirty {
		args = append(args, "--allow-dirty")
	}
	if req.NoVerify {
		args = append(args, "--no-verify")
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, cargoPath, args...) // #nosec G204 - args are fixed flags plus validated package/registry names
	cmd.Dir = req.WorkspaceRoot
	if req.Token != "" {
		cmd.Env = append(cmd.Environ(), fmt.Sprintf("CARGO_REGISTRIES_%s_TOKEN=%s", envName(req.RegistryName), req.Token))
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)

	lines := req.OutputLines
	if lines <= 0 {
		lines = 50
	}

	result := Result{
		StdoutTail: tailLines(stdout.String(), lines),
		StderrTail: tailLines(stderr.String(), lines),
		Duration:   duration,
	}

	if execCtx.Err() == context.DeadlineExceeded {
		result.ExitCode = -1
		result.StderrTail = appendLine(result.StderrTail, fmt.Sprintf("command timed out after %s", timeout))
		return result, nil
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if isExitError(runErr, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return Result{}, fmt.Errorf("run cargo publish: %w", runErr)
	}

	return result, nil
}

func isExitError(err error, target **exec.ExitError) bool {
	exitErr, ok := err.(*exec.ExitError)
	if ok {
		*target = exitErr
	}
	return ok
}

// envName uppercases a registry name and replaces non-alphanumerics with
// underscores, matching Cargo's CARGO_REGISTRIES_{NAME}_TOKEN convention.
func envName(registryName string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(registryName) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// tailLines returns the last n lines of s.
func tailLines(s string, n int) string {
	if s == "" {
		return ""
	}
	scanner := bufio.NewScanner(strings.NewReader(s))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if len(lines) <= n {
		return strings.Join(lines, "\n")
	}
	return strings.Join(lines[len(lines)-n:], "\n")
}

func appendLine(s, line string) string {
	if s == "" {
		return line
	}
	return s + "\n" + line
}
