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
	"testing"
	"time"

	"github.com/EffortlessMetrics/shipper/internal/shipper/shippererr"
	"github.com/EffortlessMetrics/shipper/internal/shipper/types"
)

type fixedMetadata struct {
	meta *WorkspaceMetadata
	err  error
}

func (f fixedMetadata) Load(string) (*WorkspaceMetadata, error) {
	return f.meta, f.err
}

func fixedNow() time.Time {
	return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
}

func TestBuilder_Build_FiltersAndOrders(t *testing.T) {
	meta := &WorkspaceMetadata{
		WorkspaceRoot: "/ws",
		Members: []WorkspaceMember{
			{Name: "c", Version: "1.0.0", Dependencies: []Dependency{{Name: "a", Kind: DependencyNormal}, {Name: "b", Kind: DependencyNormal}}},
			{Name: "b", Version: "1.0.0", Dependencies: []Dependency{{Name: "a", Kind: DependencyNormal}}},
			{Name: "a", Version: "1.0.0"},
			{Name: "private", Version: "1.0.0", PublishAllowlist: []string{}},
			{Name: "other-registry-only", Version: "1.0.0", PublishAllowlist: []string{"other"}},
		},
	}
	b := NewBuilder(fixedMetadata{meta: meta}, fixedNow)

	p, err := b.Build(Request{
		ManifestPath: "/ws/Cargo.toml",
		Registry:     types.Registry{Name: "crates-io", APIBase: "https://crates.io"},
	})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if len(p.Packages) != 3 {
		t.Fatalf("Packages count = %d, want 3", len(p.Packages))
	}
	got := []string{p.Packages[0].Name, p.Packages[1].Name, p.Packages[2].Name}
	want := []string{"a", "b", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}

	if len(p.Skipped) != 2 {
		t.Fatalf("Skipped count = %d, want 2", len(p.Skipped))
	}
}

func TestBuilder_Build_DeterministicPlanID(t *testing.T) {
	meta := &WorkspaceMetadata{
		Members: []WorkspaceMember{
			{Name: "a", Version: "1.0.0"},
			{Name: "b", Version: "2.0.0"},
		},
	}
	req := Request{Registry: types.Registry{Name: "crates-io", APIBase: "https://crates.io"}}

	b1 := NewBuilder(fixedMetadata{meta: meta}, fixedNow)
	p1, err := b1.Build(req)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	b2 := NewBuilder(fixedMetadata{meta: meta}, fixedNow)
	p2, err := b2.Build(req)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if p1.PlanID != p2.PlanID {
		t.Errorf("PlanID not deterministic: %s != %s", p1.PlanID, p2.PlanID)
	}
	if p1.PlanID == "" {
		t.Error("PlanID is empty")
	}
}

func TestBuilder_Build_InvalidSemverIsSkipped(t *testing.T) {
	meta := &WorkspaceMetadata{
		WorkspaceRoot: "/ws",
		Members: []WorkspaceMember{
			{Name: "a", Version: "1.0.0"},
			{Name: "b", Version: "not-a-version"},
		},
	}
	b := NewBuilder(fixedMetadata{meta: meta}, fixedNow)

	p, err := b.Build(Request{
		ManifestPath: "/ws/Cargo.toml",
		Registry:     types.Registry{Name: "crates-io", APIBase: "https://crates.io"},
	})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if len(p.Packages) != 1 || p.Packages[0].Name != "a" {
		t.Fatalf("Packages = %+v, want only %q", p.Packages, "a")
	}
	if len(p.Skipped) != 1 || p.Skipped[0].Name != "b" {
		t.Fatalf("Skipped = %+v, want only %q", p.Skipped, "b")
	}
}

func TestBuilder_Build_CycleDetected(t *testing.T) {
	meta := &WorkspaceMetadata{
		Members: []WorkspaceMember{
			{Name: "a", Version: "1.0.0", Dependencies: []Dependency{{Name: "b", Kind: DependencyNormal}}},
			{Name: "b", Version: "1.0.0", Dependencies: []Dependency{{Name: "a", Kind: DependencyNormal}}},
		},
	}
	b := NewBuilder(fixedMetadata{meta: meta}, fixedNow)

	_, err := b.Build(Request{Registry: types.Registry{Name: "crates-io", APIBase: "https://crates.io"}})
	if err == nil {
		t.Fatal("Build() error = nil, want cycle error")
	}
	if !shippererr.Is(err, shippererr.KindPlanError) {
		t.Errorf("error kind = %v, want %v", err, shippererr.KindPlanError)
	}
}

func TestBuilder_Build_SelectionClosure(t *testing.T) {
	meta := &WorkspaceMetadata{
		Members: []WorkspaceMember{
			{Name: "leaf", Version: "1.0.0"},
			{Name: "mid", Version: "1.0.0", Dependencies: []Dependency{{Name: "leaf", Kind: DependencyNormal}}},
			{Name: "unrelated", Version: "1.0.0"},
			{Name: "top", Version: "1.0.0", Dependencies: []Dependency{{Name: "mid", Kind: DependencyNormal}}},
		},
	}
	b := NewBuilder(fixedMetadata{meta: meta}, fixedNow)

	p, err := b.Build(Request{
		Registry:         types.Registry{Name: "crates-io", APIBase: "https://crates.io"},
		SelectedPackages: []string{"top"},
	})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if len(p.Packages) != 3 {
		t.Fatalf("Packages count = %d, want 3 (leaf, mid, top)", len(p.Packages))
	}
	for _, pkg := range p.Packages {
		if pkg.Name == "unrelated" {
			t.Error("unrelated package present in selection closure")
		}
	}
}

func TestBuilder_Build_UnknownSelectedPackage(t *testing.T) {
	meta := &WorkspaceMetadata{
		Members: []WorkspaceMember{{Name: "a", Version: "1.0.0"}},
	}
	b := NewBuilder(fixedMetadata{meta: meta}, fixedNow)

	_, err := b.Build(Request{
		Registry:         types.Registry{Name: "crates-io", APIBase: "https://crates.io"},
		SelectedPackages: []string{"does-not-exist"},
	})
	if err == nil {
		t.Fatal("Build() error = nil, want unknown package error")
	}
}

func TestWorkspaceMember_PublishAllowed(t *testing.T) {
	tests := []struct {
		name         string
		member       WorkspaceMember
		registryName string
		want         bool
	}{
		{name: "absent allowlist publishes anywhere", member: WorkspaceMember{}, registryName: "crates-io", want: true},
		{name: "empty allowlist publishes nowhere", member: WorkspaceMember{PublishAllowlist: []string{}}, registryName: "crates-io", want: false},
		{name: "matching registry in allowlist", member: WorkspaceMember{PublishAllowlist: []string{"crates-io"}}, registryName: "crates-io", want: true},
		{name: "non-matching registry in allowlist", member: WorkspaceMember{PublishAllowlist: []string{"other"}}, registryName: "crates-io", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.member.publishAllowed(tt.registryName); got != tt.want {
				t.Errorf("publishAllowed() = %v, want %v", got, tt.want)
			}
		})
	}
}
