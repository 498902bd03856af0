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

package credentials

import (
	"os"
	"path/filepath"
	"testing"
)

// fakeEnv builds a lookupEnv function backed by a plain map, for tests that
// need to avoid touching the real process environment.
func fakeEnv(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func TestResolve_DefaultRegistryEnvVar(t *testing.T) {
	r := &Resolver{lookupEnv: fakeEnv(map[string]string{
		DefaultRegistryEnvVar: "tok-default",
	})}

	token, err := r.Resolve("crates-io")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if token != "tok-default" {
		t.Errorf("token = %q, want %q", token, "tok-default")
	}
}

func TestResolve_DefaultEnvVarTakesPrecedenceOverPerRegistry(t *testing.T) {
	r := &Resolver{lookupEnv: fakeEnv(map[string]string{
		DefaultRegistryEnvVar:              "tok-default",
		"CARGO_REGISTRIES_CRATES_IO_TOKEN": "tok-named",
	})}

	token, err := r.Resolve("crates-io")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if token != "tok-default" {
		t.Errorf("token = %q, want %q", token, "tok-default")
	}
}

func TestResolve_PerRegistryEnvVarForNamedRegistry(t *testing.T) {
	r := &Resolver{lookupEnv: fakeEnv(map[string]string{
		"CARGO_REGISTRIES_MY_REGISTRY_TOKEN": "tok-my-registry",
	})}

	token, err := r.Resolve("my-registry")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if token != "tok-my-registry" {
		t.Errorf("token = %q, want %q", token, "tok-my-registry")
	}
}

func TestResolve_NoEnvFallsBackToCredentialsFile(t *testing.T) {
	dir := t.TempDir()
	writeCredentialsFile(t, dir, `
[registries.my-registry]
token = "tok-from-file"
`)

	r := &Resolver{cargoHome: dir, lookupEnv: fakeEnv(nil)}
	token, err := r.Resolve("my-registry")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if token != "tok-from-file" {
		t.Errorf("token = %q, want %q", token, "tok-from-file")
	}
}

func TestResolve_CredentialsFileDefaultRegistryTable(t *testing.T) {
	dir := t.TempDir()
	writeCredentialsFile(t, dir, `
[registry]
token = "tok-bare-default"
`)

	r := &Resolver{cargoHome: dir, lookupEnv: fakeEnv(nil)}
	token, err := r.Resolve("crates-io")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if token != "tok-bare-default" {
		t.Errorf("token = %q, want %q", token, "tok-bare-default")
	}
}

func TestResolve_MissingCredentialsFileIsNotAnError(t *testing.T) {
	dir := t.TempDir()

	r := &Resolver{cargoHome: dir, lookupEnv: fakeEnv(nil)}
	token, err := r.Resolve("crates-io")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if token != "" {
		t.Errorf("token = %q, want empty", token)
	}
}

func TestResolve_CorruptCredentialsFileIsAnError(t *testing.T) {
	dir := t.TempDir()
	writeCredentialsFile(t, dir, "not valid [[[ toml")

	r := &Resolver{cargoHome: dir, lookupEnv: fakeEnv(nil)}
	_, err := r.Resolve("crates-io")
	if err == nil {
		t.Fatal("Resolve() error = nil, want error for corrupt file")
	}
}

func TestResolve_UnknownRegistryNoTokenAnywhere(t *testing.T) {
	dir := t.TempDir()
	writeCredentialsFile(t, dir, `
[registries.other]
token = "tok-other"
`)

	r := &Resolver{cargoHome: dir, lookupEnv: fakeEnv(nil)}
	token, err := r.Resolve("my-registry")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if token != "" {
		t.Errorf("token = %q, want empty", token)
	}
}

func TestPerRegistryEnvVar(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"crates-io", "CARGO_REGISTRIES_CRATES_IO_TOKEN"},
		{"my.registry", "CARGO_REGISTRIES_MY_REGISTRY_TOKEN"},
		{"Internal_Mirror", "CARGO_REGISTRIES_INTERNAL_MIRROR_TOKEN"},
	}
	for _, tt := range tests {
		if got := perRegistryEnvVar(tt.name); got != tt.want {
			t.Errorf("perRegistryEnvVar(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func writeCredentialsFile(t *testing.T, dir, contents string) {
	t.Helper()
	path := filepath.Join(dir, credentialsFile)
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write credentials file: %v", err)
	}
}
