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
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/EffortlessMetrics/shipper/internal/shipper/store"
	"github.com/EffortlessMetrics/shipper/internal/shipper/types"
)

var statusStateDir string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the persisted execution state for a state directory",
	Long: `Status reads state.json from the state directory without taking
the lock or contacting the registry, so it is always safe to run
alongside (or instead of) a resumed publish.`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVar(&statusStateDir, "state-dir", ".shipper", "directory containing state.json")
}

func runStatus(cmd *cobra.Command, args []string) error {
	st := store.New(statusStateDir, nil)

	state, err := st.Load()
	if err != nil {
		return fmt.Errorf("load execution state: %w", err)
	}
	if state == nil {
		fmt.Printf("No execution state found in %s\n", statusStateDir)
		return nil
	}

	fmt.Printf("Plan %s (registry %s), updated %s\n", state.PlanID, state.Registry.Name, state.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"))
	fmt.Printf("%-40s %-12s %-10s\n", "Package", "State", "Attempts")
	fmt.Println(strings.Repeat("-", 64))

	for key, progress := range state.Packages {
		fmt.Printf("%-40s %-12s %-10d\n", key, describeState(progress.State), progress.Attempts)
	}

	return nil
}

func describeState(s types.PackageState) string {
	switch s.Kind {
	case types.StateFailed, types.StateAmbiguous:
		return fmt.Sprintf("%s(%s)", s.Kind, s.Class)
	case types.StateSkipped:
		return fmt.Sprintf("%s(%s)", s.Kind, s.Reason)
	default:
		return string(s.Kind)
	}
}
