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

// Package credentials resolves a registry token through the fixed, three-step
// order from spec §6: a default-registry environment variable for
// crates-io, a per-registry CARGO_REGISTRIES_{NAME}_TOKEN variable, and
// finally a Cargo-style credentials.toml under a Cargo-home directory.
package credentials

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// DefaultRegistryEnvVar is consulted only when registryName is "crates-io".
const DefaultRegistryEnvVar = "CARGO_REGISTRY_TOKEN"

// defaultRegistryName is the one registry name that additionally checks
// DefaultRegistryEnvVar before the per-registry variable.
const defaultRegistryName = "crates-io"

// credentialsFile is the default file name beneath the Cargo-home directory.
const credentialsFile = "credentials.toml"

// Resolver implements preflight.CredentialResolver and publish's token
// input, applying the three-step resolution order.
type Resolver struct {
	// cargoHome is the Cargo-home directory credentials.toml lives under.
	// It defaults to $CARGO_HOME, falling back to ~/.cargo.
	cargoHome string
	lookupEnv func(string) (string, bool)
}

// New creates a Resolver. cargoHome overrides the default Cargo-home
// directory lookup; pass "" to use $CARGO_HOME (or ~/.cargo).
func New(cargoHome string) *Resolver {
	return &Resolver{cargoHome: cargoHome, lookupEnv: os.LookupEnv}
}

// Resolve returns the token for registryName, or "" if none of the three
// steps found one. A missing or unreadable credentials.toml is not itself
// an error — it is simply the "no token" outcome — but a present, corrupt
// file is reported.
func (r *Resolver) Resolve(registryName string) (string, error) {
	if registryName == defaultRegistryName {
		if token, ok := r.lookupEnv(DefaultRegistryEnvVar); ok && token != "" {
			return token, nil
		}
	}

	if token, ok := r.lookupEnv(perRegistryEnvVar(registryName)); ok && token != "" {
		return token, nil
	}

	return r.fromCredentialsFile(registryName)
}

// perRegistryEnvVar formats CARGO_REGISTRIES_{NAME}_TOKEN, uppercasing
// registryName and substituting non-alphanumerics with underscores.
func perRegistryEnvVar(registryName string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(registryName) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return fmt.Sprintf("CARGO_REGISTRIES_%s_TOKEN", b.String())
}

// credentialsDoc mirrors Cargo's credentials.toml shape: a registries table
// keyed by name, each with a token field, plus an optional bare
// default-registry token.
type credentialsDoc struct {
	Registry struct {
		Token string `toml:"token"`
	} `toml:"registry"`
	Registries map[string]struct {
		Token string `toml:"token"`
	} `toml:"registries"`
}

func (r *Resolver) fromCredentialsFile(registryName string) (string, error) {
	home, err := r.resolveCargoHome()
	if err != nil {
		return "", nil //nolint:nilerr // no resolvable Cargo home means no token, not an error
	}

	path := filepath.Join(home, credentialsFile)
	data, err := os.ReadFile(path) // #nosec G304 - path constructed from trusted Cargo-home directory
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read credentials file %s: %w", path, err)
	}

	var doc credentialsDoc
	if err := toml.Unmarshal(data, &doc); err != nil {
		return "", fmt.Errorf("parse credentials file %s: %w", path, err)
	}

	if entry, ok := doc.Registries[registryName]; ok && entry.Token != "" {
		return entry.Token, nil
	}
	if registryName == defaultRegistryName && doc.Registry.Token != "" {
		return doc.Registry.Token, nil
	}
	return "", nil
}

func (r *Resolver) resolveCargoHome() (string, error) {
	if r.cargoHome != "" {
		return r.cargoHome, nil
	}
	if home, ok := r.lookupEnv("CARGO_HOME"); ok && home != "" {
		return home, nil
	}
	userHome, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(userHome, ".cargo"), nil
}
