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

package plan

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"

	"github.com/EffortlessMetrics/shipper/internal/shipper/shippererr"
)

const metadataTimeout = 2 * time.Minute

// cargoMetadataOutput mirrors the subset of `cargo metadata --format-version
// 1` JSON this provider reads: workspace members plus each package's
// dependency and publish-allowlist fields.
type cargoMetadataOutput struct {
	WorkspaceRoot string `json:"workspace_root"`
	Packages      []struct {
		Name         string   `json:"name"`
		Version      string   `json:"version"`
		ManifestPath string   `json:"manifest_path"`
		Publish      []string `json:"publish"` // null = unrestricted, [] = never, [...names] = allowlist
		Dependencies []struct {
			Name string `json:"name"`
			Kind string `json:"kind"` // "" = normal, "dev", "build"
			Path string `json:"path"` // non-empty only for in-workspace path dependencies
		} `json:"dependencies"`
	} `json:"packages"`
	WorkspaceMembers []string `json:"workspace_members"`
}

// CargoMetadataProvider loads workspace metadata by shelling out to
// `cargo metadata --format-version 1 --no-deps`.
type CargoMetadataProvider struct {
	lookPath func(string) (string, error)
}

// NewCargoMetadataProvider creates a MetadataProvider backed by the cargo CLI.
func NewCargoMetadataProvider() *CargoMetadataProvider {
	return &CargoMetadataProvider{lookPath: exec.LookPath}
}

// Load runs `cargo metadata` rooted at manifestPath and translates its
// output into a WorkspaceMetadata, keeping only in-workspace path
// dependencies as Dependency edges (§4.1 ignores dependencies resolved from
// a registry — they never gate publish order within this run).
func (p *CargoMetadataProvider) Load(manifestPath string) (*WorkspaceMetadata, error) {
	cargoPath, err := p.lookPath("cargo")
	if err != nil {
		return nil, shippererr.Wrap(shippererr.KindPlanError, "locate cargo binary", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), metadataTimeout)
	defer cancel()

	args := []string{"metadata", "--format-version", "1", "--no-deps"}
	if manifestPath != "" {
		args = append(args, "--manifest-path", manifestPath)
	}

	cmd := exec.CommandContext(ctx, cargoPath, args...) // #nosec G204 - fixed subcommand, manifestPath is caller-supplied workspace input
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, shippererr.Wrap(shippererr.KindPlanError,
			fmt.Sprintf("cargo metadata failed: %s", stderr.String()), err)
	}

	var raw cargoMetadataOutput
	if err := json.Unmarshal(stdout.Bytes(), &raw); err != nil {
		return nil, shippererr.Wrap(shippererr.KindPlanError, "parse cargo metadata output", err)
	}

	memberSet := make(map[string]bool, len(raw.WorkspaceMembers))
	for _, id := range raw.WorkspaceMembers {
		memberSet[id] = true
	}

	members := make([]WorkspaceMember, 0, len(raw.Packages))
	for _, pkg := range raw.Packages {
		var deps []Dependency
		for _, dep := range pkg.Dependencies {
			if dep.Path == "" {
				continue // registry-resolved dependency, not an in-workspace edge
			}
			kind := DependencyNormal
			switch dep.Kind {
			case "dev":
				kind = DependencyDev
			case "build":
				kind = DependencyBuild
			}
			deps = append(deps, Dependency{Name: dep.Name, Kind: kind})
		}

		members = append(members, WorkspaceMember{
			Name:             pkg.Name,
			Version:          pkg.Version,
			ManifestPath:     pkg.ManifestPath,
			PublishAllowlist: pkg.Publish,
			Dependencies:     deps,
		})
	}

	return &WorkspaceMetadata{WorkspaceRoot: raw.WorkspaceRoot, Members: members}, nil
}
