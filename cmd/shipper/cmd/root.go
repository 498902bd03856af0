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
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/EffortlessMetrics/shipper/internal/version"
)

var (
	quietFlag   bool
	verboseFlag bool
	logLevel    = slog.LevelInfo

	rootCmd = &cobra.Command{
		Use:   "shipper",
		Short: "Resumable, dependency-ordered Cargo registry publisher",
		Long: `shipper plans and executes a dependency-ordered publish run across a Cargo
workspace: it builds a release plan from workspace metadata, runs a
read-only preflight pass, then publishes each package through a
crash-resumable state machine, recording every attempt and registry
readiness probe to a receipt.`,
		Version: version.Get(),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if quietFlag {
				logLevel = slog.LevelError
			} else if verboseFlag {
				logLevel = slog.LevelDebug
			}
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "suppress informational output (errors only)")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "enable verbose debug output")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// GetLogLevel returns the current log level based on the global flags.
func GetLogLevel() slog.Level {
	return logLevel
}

// newLogger builds the process-wide structured logger, writing to stderr so
// stdout stays free for --format json output.
func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: GetLogLevel()}))
}
