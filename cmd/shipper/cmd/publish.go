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
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/EffortlessMetrics/shipper/internal/shipper/credentials"
	"github.com/EffortlessMetrics/shipper/internal/shipper/gitcontext"
	"github.com/EffortlessMetrics/shipper/internal/shipper/options"
	"github.com/EffortlessMetrics/shipper/internal/shipper/preflight"
	"github.com/EffortlessMetrics/shipper/internal/shipper/store"
	"github.com/EffortlessMetrics/shipper/internal/shipper/types"
)

var (
	publishMaxConcurrent     int
	publishAllowDirty        bool
	publishNoVerify          bool
	publishStrictOwnership   bool
	publishReadinessEnabled  bool
	publishPerAttemptTimeout time.Duration
	publishStateDir          string
	publishOutputLines       int
	publishMaxAttempts       int
	publishForceLock         bool
	publishWebhookURL        string
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Run the full lock, preflight, and publish pipeline",
	Long: `Publish builds the release plan, acquires the node-local exclusion
lock, runs the read-only preflight pass, then drives every publishable
package through the resumable publish state machine — sequentially by
default, or across dependency levels when --max-concurrent is greater
than one. A receipt is written exactly once, whether the run finishes
cleanly or aborts on a fatal failure.`,
	RunE: runPublish,
}

func init() {
	rootCmd.AddCommand(publishCmd)

	publishCmd.Flags().StringVar(&planManifestPath, "manifest-path", "Cargo.toml", "path to the workspace manifest")
	publishCmd.Flags().StringVar(&planRegistryName, "registry", "crates-io", "target registry name")
	publishCmd.Flags().StringVar(&planAPIBase, "registry-api-base", "https://crates.io", "target registry API base URL")
	publishCmd.Flags().StringVar(&planIndexBase, "registry-index-base", "", "target registry sparse-index base URL (defaults to api-base)")
	publishCmd.Flags().StringVar(&planOnlyPackages, "only", "", "comma-separated package names to restrict the run to")

	publishCmd.Flags().IntVar(&publishMaxConcurrent, "max-concurrent", 0, "max packages to publish concurrently per dependency level (0 = use preset/default)")
	publishCmd.Flags().BoolVar(&publishAllowDirty, "allow-dirty", false, "pass --allow-dirty to cargo publish")
	publishCmd.Flags().BoolVar(&publishNoVerify, "no-verify", false, "pass --no-verify to cargo publish")
	publishCmd.Flags().BoolVar(&publishStrictOwnership, "strict-ownership", false, "fail preflight when ownership cannot be verified, even for existing crates")
	publishCmd.Flags().BoolVar(&publishReadinessEnabled, "readiness", true, "poll the registry for post-publish visibility before declaring a package published")
	publishCmd.Flags().DurationVar(&publishPerAttemptTimeout, "per-attempt-timeout", 0, "timeout for a single publish attempt (0 = use preset/default)")
	publishCmd.Flags().StringVar(&publishStateDir, "state-dir", "", "directory for state.json, receipt.json, and events.jsonl (empty = use preset/default)")
	publishCmd.Flags().IntVar(&publishOutputLines, "output-lines", 0, "number of trailing stdout/stderr lines to retain per attempt (0 = use preset/default)")
	publishCmd.Flags().IntVar(&publishMaxAttempts, "max-attempts", 0, "max publish attempts per package (0 = use preset/default)")
	publishCmd.Flags().BoolVar(&publishForceLock, "force", false, "bypass the lock staleness check and reclaim an active lock")
	publishCmd.Flags().StringVar(&publishWebhookURL, "webhook-url", "", "POST terminal events to this URL")
}

func publishFlags(cmd *cobra.Command) *options.CLIFlags {
	flags := &options.CLIFlags{}
	if cmd.Flags().Changed("max-concurrent") {
		flags.MaxConcurrent = &publishMaxConcurrent
	}
	if cmd.Flags().Changed("allow-dirty") {
		flags.AllowDirty = &publishAllowDirty
	}
	if cmd.Flags().Changed("no-verify") {
		flags.NoVerify = &publishNoVerify
	}
	if cmd.Flags().Changed("strict-ownership") {
		flags.StrictOwnership = &publishStrictOwnership
	}
	if cmd.Flags().Changed("readiness") {
		flags.ReadinessEnabled = &publishReadinessEnabled
	}
	if cmd.Flags().Changed("per-attempt-timeout") {
		flags.PerAttemptTimeout = &publishPerAttemptTimeout
	}
	if cmd.Flags().Changed("state-dir") {
		flags.StateDir = &publishStateDir
	}
	if cmd.Flags().Changed("output-lines") {
		flags.OutputLines = &publishOutputLines
	}
	if cmd.Flags().Changed("max-attempts") {
		flags.MaxPublishAttempts = &publishMaxAttempts
	}
	return flags
}

func runPublish(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	ctx := context.Background()

	releasePlan, err := buildReleasePlan()
	if err != nil {
		return fmt.Errorf("build plan: %w", err)
	}

	opts, err := loadOptions(planManifestPath, publishFlags(cmd))
	if err != nil {
		return fmt.Errorf("load options: %w", err)
	}

	startedAt := time.Now()
	var runErr error

	lockErr := acquireLock(opts, releasePlan.PlanID, publishForceLock, func() error {
		st, events, storeErr := setupStore(opts, publishWebhookURL)
		if storeErr != nil {
			return storeErr
		}

		state, loadErr := st.Load()
		if loadErr != nil {
			return fmt.Errorf("load execution state: %w", loadErr)
		}
		if state == nil || state.PlanID != releasePlan.PlanID {
			state = types.NewExecutionState(releasePlan, startedAt)
			if err := st.Save(state); err != nil {
				return fmt.Errorf("persist initial execution state: %w", err)
			}
			if err := events.Emit(store.EventPlanCreated, "", releasePlan.PlanID); err != nil {
				return fmt.Errorf("emit plan created event: %w", err)
			}
		}

		runner := setupPreflight(opts)
		report, preflightErr := runner.Run(ctx, releasePlan)
		if preflightErr != nil {
			return fmt.Errorf("preflight: %w", preflightErr)
		}
		logPreflightReport(logger, report)
		if report.Finishability == preflight.FinishabilityFailed {
			return fmt.Errorf("preflight finishability=Failed: dry run failed for at least one package")
		}

		resolver := credentials.New("")
		token, credErr := resolver.Resolve(releasePlan.Registry.Name)
		if credErr != nil {
			return fmt.Errorf("resolve credentials: %w", credErr)
		}

		eng := newExecutionEngine(opts, events, st)
		mode := selectRunner(eng, opts)
		runErr = mode.Run(ctx, releasePlan, state, token)

		finishedAt := time.Now()
		git := gitcontext.New().Collect(ctx, releasePlan.WorkspaceRoot)
		receipt := types.BuildReceipt(releasePlan, state, startedAt, finishedAt, git, gitcontext.Environment())
		if err := st.SaveReceipt(receipt); err != nil {
			return fmt.Errorf("save receipt: %w", err)
		}

		return nil
	})
	if lockErr != nil {
		return lockErr
	}

	return runErr
}

func logPreflightReport(logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}, report *preflight.Report) {
	logger.Info("preflight complete", "finishability", report.Finishability, "packages", len(report.Packages))
	for _, pkg := range report.Packages {
		if !pkg.DryRunPassed {
			logger.Warn("dry run failed", "package", pkg.Name, "version", pkg.Version)
		}
	}
}
