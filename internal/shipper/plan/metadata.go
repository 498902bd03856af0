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

// DependencyKind distinguishes the edges the Plan Builder considers from the
// ones it ignores (dev-only edges never gate publish order).
type DependencyKind string

// DependencyKind values, as reported by the metadata provider.
const (
	DependencyNormal DependencyKind = "normal"
	DependencyBuild  DependencyKind = "build"
	DependencyDev    DependencyKind = "dev"
)

// Dependency is one in-workspace edge from a workspace member to another
// member it depends on.
type Dependency struct {
	Name string
	Kind DependencyKind
}

// WorkspaceMember is one package as reported by the external metadata
// provider, before the Plan Builder has filtered or ordered anything.
type WorkspaceMember struct {
	Name            string
	Version         string
	ManifestPath    string
	PublishAllowlist []string
	Dependencies    []Dependency
}

// publishAllowed implements the exclusion rule from the algorithm: an
// absent allowlist publishes everywhere, a present-but-empty allowlist
// publishes nowhere, and a non-empty allowlist gates on registry name.
func (m WorkspaceMember) publishAllowed(registryName string) bool {
	if m.PublishAllowlist == nil {
		return true
	}
	for _, name := range m.PublishAllowlist {
		if name == registryName {
			return true
		}
	}
	return false
}

// WorkspaceMetadata is the external metadata provider's output: the
// workspace root plus every member it discovered, publishable or not.
type WorkspaceMetadata struct {
	WorkspaceRoot string
	Members       []WorkspaceMember
}

// MetadataProvider loads workspace metadata from a manifest path. The
// default implementation shells out to `cargo metadata`; tests substitute a
// fixed WorkspaceMetadata.
type MetadataProvider interface {
	Load(manifestPath string) (*WorkspaceMetadata, error)
}
