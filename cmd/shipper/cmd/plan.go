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
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/EffortlessMetrics/shipper/internal/shipper/plan"
	"github.com/EffortlessMetrics/shipper/internal/shipper/types"
)

var (
	planManifestPath  string
	planRegistryName  string
	planAPIBase       string
	planIndexBase     string
	planOnlyPackages  string
	planFormat        string
	planOut           string
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Build and display the dependency-ordered release plan",
	Long: `Build loads workspace metadata via cargo metadata, filters to
publish-allowed packages, restricts to a selection's transitive closure
when --only is given, and topologically sorts the result. Nothing is
published; the plan is printed (and optionally written to a file) for
inspection before a publish run.`,
	RunE: runPlan,
}

func init() {
	rootCmd.AddCommand(planCmd)

	planCmd.Flags().StringVar(&planManifestPath, "manifest-path", "Cargo.toml", "path to the workspace manifest")
	planCmd.Flags().StringVar(&planRegistryName, "registry", "crates-io", "target registry name")
	planCmd.Flags().StringVar(&planAPIBase, "registry-api-base", "https://crates.io", "target registry API base URL")
	planCmd.Flags().StringVar(&planIndexBase, "registry-index-base", "", "target registry sparse-index base URL (defaults to api-base)")
	planCmd.Flags().StringVar(&planOnlyPackages, "only", "", "comma-separated package names to restrict the plan to")
	planCmd.Flags().StringVarP(&planFormat, "format", "f", "table", "output format: table, json")
	planCmd.Flags().StringVarP(&planOut, "out", "o", "", "write the plan as JSON to this file")
}

// resolveRegistry fills in IndexBase from APIBase when the caller left it
// unset, since most registries serve their sparse index from the same host.
func resolveRegistry(name, apiBase, indexBase string) types.Registry {
	if indexBase == "" {
		indexBase = apiBase
	}
	return types.Registry{Name: name, APIBase: apiBase, IndexBase: indexBase}
}

// parsePackageList splits a comma-separated package list, trimming
// whitespace and dropping empty entries; an empty input yields a nil slice
// (no selection restriction).
func parsePackageList(only string) []string {
	if only == "" {
		return nil
	}
	var selected []string
	for _, name := range strings.Split(only, ",") {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			selected = append(selected, trimmed)
		}
	}
	return selected
}

func buildReleasePlan() (*types.ReleasePlan, error) {
	registry := resolveRegistry(planRegistryName, planAPIBase, planIndexBase)
	selected := parsePackageList(planOnlyPackages)

	builder := setupPlanBuilder()
	return builder.Build(plan.Request{
		ManifestPath:     planManifestPath,
		Registry:         registry,
		SelectedPackages: selected,
	})
}

func runPlan(cmd *cobra.Command, args []string) error {
	releasePlan, err := buildReleasePlan()
	if err != nil {
		return fmt.Errorf("build plan: %w", err)
	}

	if planOut != "" {
		data, err := json.MarshalIndent(releasePlan, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal plan: %w", err)
		}
		if err := os.WriteFile(planOut, data, 0o600); err != nil {
			return fmt.Errorf("write plan file: %w", err)
		}
		fmt.Printf("Plan written to %s\n", planOut)
	}

	switch planFormat {
	case "json":
		return printPlanJSON(releasePlan)
	case "table":
		return printPlanTable(releasePlan)
	default:
		return fmt.Errorf("unsupported format: %s", planFormat)
	}
}

func printPlanJSON(p *types.ReleasePlan) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(p)
}

func printPlanTable(p *types.ReleasePlan) error {
	if len(p.Packages) == 0 {
		fmt.Println("No publishable packages.")
		return nil
	}

	fmt.Printf("Plan %s for registry %s\n", p.PlanID, p.Registry.Name)
	fmt.Printf("%-40s %-15s %s\n", "Package", "Version", "Depends on")
	fmt.Println(strings.Repeat("-", 80))
	for _, pkg := range p.Packages {
		deps := p.DependsOn[pkg.Key()]
		fmt.Printf("%-40s %-15s %s\n", pkg.Name, pkg.Version, strings.Join(deps, ", "))
	}

	if len(p.Skipped) > 0 {
		fmt.Println("\nSkipped:")
		for _, s := range p.Skipped {
			fmt.Printf("  - %s: %s\n", s.Name, s.Reason)
		}
	}

	return nil
}
