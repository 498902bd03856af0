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

// Package plan builds a deterministic, dependency-ordered ReleasePlan from
// workspace metadata: it filters to publishable packages, restricts to a
// selection's transitive closure when one is given, topologically sorts the
// result with Kahn's algorithm (ties broken by ascending package name), and
// fingerprints the outcome into a plan_id.
package plan

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/EffortlessMetrics/shipper/internal/shipper/shippererr"
	"github.com/EffortlessMetrics/shipper/internal/shipper/types"
)

// Request is the Plan Builder's input: a release specification plus the
// registry it targets.
type Request struct {
	ManifestPath     string
	Registry         types.Registry
	SelectedPackages []string
}

// Builder constructs ReleasePlans from workspace metadata.
type Builder struct {
	metadata MetadataProvider
	now      func() time.Time
}

// NewBuilder creates a Plan Builder backed by the given metadata provider.
// now defaults to time.Now; tests inject a fixed clock for determinism.
func NewBuilder(metadata MetadataProvider, now func() time.Time) *Builder {
	if now == nil {
		now = time.Now
	}
	return &Builder{metadata: metadata, now: now}
}

// Build runs the full Plan Builder algorithm from §4.1: filter, restrict to
// selection closure, topologically sort, and fingerprint.
func (b *Builder) Build(req Request) (*types.ReleasePlan, error) {
	meta, err := b.metadata.Load(req.ManifestPath)
	if err != nil {
		return nil, shippererr.Wrap(shippererr.KindPlanError, "load workspace metadata", err)
	}

	byName := make(map[string]WorkspaceMember, len(meta.Members))
	for _, m := range meta.Members {
		byName[m.Name] = m
	}

	publishable := make(map[string]WorkspaceMember)
	skipped := make([]types.SkippedPackage, 0)
	for _, m := range meta.Members {
		if !m.publishAllowed(req.Registry.Name) {
			skipped = append(skipped, types.SkippedPackage{
				Name:   m.Name,
				Reason: fmt.Sprintf("not publish-allowed for registry %q", req.Registry.Name),
			})
			continue
		}
		if _, err := semver.NewVersion(m.Version); err != nil {
			skipped = append(skipped, types.SkippedPackage{
				Name:   m.Name,
				Reason: fmt.Sprintf("version %q is not valid semver: %v", m.Version, err),
			})
			continue
		}
		publishable[m.Name] = m
	}

	edges := buildEdges(publishable)

	if len(req.SelectedPackages) > 0 {
		for _, name := range req.SelectedPackages {
			if _, ok := byName[name]; !ok {
				return nil, shippererr.New(shippererr.KindPlanError, fmt.Sprintf("unknown selected package %q", name))
			}
			if _, ok := publishable[name]; !ok {
				return nil, shippererr.New(shippererr.KindPlanError, fmt.Sprintf("selected package %q is not publish-allowed for registry %q", name, req.Registry.Name))
			}
		}
		closure := transitiveClosure(req.SelectedPackages, edges)
		for name := range publishable {
			if !closure[name] {
				delete(publishable, name)
				delete(edges, name)
			}
		}
		for name, deps := range edges {
			filtered := deps[:0]
			for _, d := range deps {
				if closure[d] {
					filtered = append(filtered, d)
				}
			}
			edges[name] = filtered
		}
	}

	order, err := topoSort(publishable, edges)
	if err != nil {
		return nil, err
	}

	packages := make([]types.PlannedPackage, 0, len(order))
	dependsOn := make(map[string][]string, len(order))
	for _, name := range order {
		m := publishable[name]
		packages = append(packages, types.PlannedPackage{
			Name:         m.Name,
			Version:      m.Version,
			ManifestPath: m.ManifestPath,
		})
		deps := edges[name]
		keyed := make([]string, len(deps))
		for i, dep := range deps {
			keyed[i] = types.PackageKey(dep, publishable[dep].Version)
		}
		sort.Strings(keyed)
		dependsOn[types.PackageKey(m.Name, m.Version)] = keyed
	}

	now := b.now()
	releasePlan := &types.ReleasePlan{
		CreatedAt:     now,
		Registry:      req.Registry,
		WorkspaceRoot: meta.WorkspaceRoot,
		Packages:      packages,
		DependsOn:     dependsOn,
		Skipped:       skipped,
	}
	releasePlan.PlanID = fingerprint(req.Registry.APIBase, packages)

	return releasePlan, nil
}

// buildEdges restricts the dependency graph to publishable packages and
// normal/build edges; dev-only edges never gate publish order.
func buildEdges(publishable map[string]WorkspaceMember) map[string][]string {
	edges := make(map[string][]string, len(publishable))
	for name, m := range publishable {
		deps := make([]string, 0, len(m.Dependencies))
		for _, dep := range m.Dependencies {
			if dep.Kind == DependencyDev {
				continue
			}
			if _, ok := publishable[dep.Name]; ok {
				deps = append(deps, dep.Name)
			}
		}
		edges[name] = deps
	}
	return edges
}

// transitiveClosure computes {selected} ∪ {their in-workspace deps},
// following edges to a fixed point.
func transitiveClosure(selected []string, edges map[string][]string) map[string]bool {
	closure := make(map[string]bool, len(selected))
	var visit func(name string)
	visit = func(name string) {
		if closure[name] {
			return
		}
		closure[name] = true
		for _, dep := range edges[name] {
			visit(dep)
		}
	}
	for _, name := range selected {
		visit(name)
	}
	return closure
}

// topoSort runs Kahn's algorithm over the publishable set, breaking ties by
// ascending package name for deterministic ordering across hosts.
func topoSort(publishable map[string]WorkspaceMember, edges map[string][]string) ([]string, error) {
	inDegree := make(map[string]int, len(publishable))
	dependents := make(map[string][]string, len(publishable))
	for name := range publishable {
		inDegree[name] = 0
	}
	for name, deps := range edges {
		inDegree[name] = len(deps)
		for _, dep := range deps {
			dependents[dep] = append(dependents[dep], name)
		}
	}

	ready := make([]string, 0, len(publishable))
	for name, degree := range inDegree {
		if degree == 0 {
			ready = append(ready, name)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(publishable))
	for len(ready) > 0 {
		sort.Strings(ready)
		name := ready[0]
		ready = ready[1:]
		order = append(order, name)

		next := append([]string(nil), dependents[name]...)
		sort.Strings(next)
		for _, dependent := range next {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				ready = append(ready, dependent)
			}
		}
	}

	if len(order) != len(publishable) {
		return nil, shippererr.New(shippererr.KindPlanError, "dependency cycle detected among publishable packages")
	}
	return order, nil
}

// fingerprint computes plan_id = hex(SHA-256(api_base || "\n" || for each
// package "name@version\n")), over packages in the already-determined plan
// order.
func fingerprint(apiBase string, packages []types.PlannedPackage) string {
	h := sha256.New()
	_, _ = h.Write([]byte(apiBase))
	_, _ = h.Write([]byte("\n"))
	for _, p := range packages {
		_, _ = h.Write([]byte(p.Name))
		_, _ = h.Write([]byte("@"))
		_, _ = h.Write([]byte(p.Version))
		_, _ = h.Write([]byte("\n"))
	}
	return hex.EncodeToString(h.Sum(nil))
}
