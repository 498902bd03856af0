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
	"testing"

	"github.com/spf13/cobra"
)

// newTestPublishCmd builds a fresh *cobra.Command with the same flag set
// publishCmd registers in init, so tests can exercise publishFlags without
// sharing "Changed" bookkeeping with the package-level singleton.
func newTestPublishCmd() *cobra.Command {
	c := &cobra.Command{Use: "publish"}
	c.Flags().IntVar(&publishMaxConcurrent, "max-concurrent", 0, "")
	c.Flags().BoolVar(&publishAllowDirty, "allow-dirty", false, "")
	c.Flags().BoolVar(&publishNoVerify, "no-verify", false, "")
	c.Flags().BoolVar(&publishStrictOwnership, "strict-ownership", false, "")
	c.Flags().BoolVar(&publishReadinessEnabled, "readiness", true, "")
	c.Flags().DurationVar(&publishPerAttemptTimeout, "per-attempt-timeout", 0, "")
	c.Flags().StringVar(&publishStateDir, "state-dir", "", "")
	c.Flags().IntVar(&publishOutputLines, "output-lines", 0, "")
	c.Flags().IntVar(&publishMaxAttempts, "max-attempts", 0, "")
	return c
}

func TestPublishFlags_UnsetFlagsStayNil(t *testing.T) {
	c := newTestPublishCmd()

	flags := publishFlags(c)

	if flags.MaxConcurrent != nil {
		t.Error("MaxConcurrent != nil, want nil for an unset flag")
	}
	if flags.StateDir != nil {
		t.Error("StateDir != nil, want nil for an unset flag")
	}
}

func TestPublishFlags_SetFlagsArePopulated(t *testing.T) {
	c := newTestPublishCmd()
	if err := c.Flags().Set("max-concurrent", "6"); err != nil {
		t.Fatalf("Set(max-concurrent) error = %v", err)
	}
	if err := c.Flags().Set("state-dir", "/tmp/run"); err != nil {
		t.Fatalf("Set(state-dir) error = %v", err)
	}

	flags := publishFlags(c)

	if flags.MaxConcurrent == nil || *flags.MaxConcurrent != 6 {
		t.Errorf("MaxConcurrent = %v, want pointer to 6", flags.MaxConcurrent)
	}
	if flags.StateDir == nil || *flags.StateDir != "/tmp/run" {
		t.Errorf("StateDir = %v, want pointer to /tmp/run", flags.StateDir)
	}
	if flags.AllowDirty != nil {
		t.Error("AllowDirty != nil, want nil for an unset flag")
	}
}
