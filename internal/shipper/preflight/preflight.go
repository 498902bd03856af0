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

// Package preflight runs the read-only pass that never publishes: per
// package it checks whether the version is already live, whether the crate
// is new, what auth is available, whether ownership can be verified, and
// whether a dry-run build succeeds. It aggregates those into a single
// Finishability verdict for the whole plan.
package preflight

import (
	"context"
	"fmt"

	"github.com/EffortlessMetrics/shipper/internal/shipper/registryclient"
	"github.com/EffortlessMetrics/shipper/internal/shipper/types"
)

// AuthType is the kind of credential preflight found for a registry.
type AuthType string

// AuthType values, in the order the spec's auth_type check considers them.
const (
	AuthToken             AuthType = "Token"
	AuthTrustedPublishing AuthType = "TrustedPublishing"
	AuthUnknown           AuthType = "Unknown"
	AuthNone              AuthType = "None"
)

// Finishability is preflight's aggregate verdict across the whole plan.
type Finishability string

// Finishability values.
const (
	FinishabilityProven    Finishability = "Proven"
	FinishabilityFailed    Finishability = "Failed"
	FinishabilityNotProven Finishability = "NotProven"
)

// DryRunner performs a workspace- or package-scope dry build and reports
// whether it passed, along with captured evidence text.
type DryRunner interface {
	DryRun(ctx context.Context, workspaceRoot, packageName string) (passed bool, evidence string, err error)
}

// CredentialResolver looks up a token for a registry by name. It returns
// ("", nil) when no token is configured — that is not itself an error.
type CredentialResolver interface {
	Resolve(registryName string) (token string, err error)
}

// OIDCEnv reports whether the two Trusted Publishing OIDC environment
// variables are present, for the auth_type check.
type OIDCEnv interface {
	RequestURLPresent() bool
	TokenEnvPresent() bool
}

// PackageReport is one package's preflight findings.
type PackageReport struct {
	Name               string
	Version            string
	AlreadyPublished   bool
	IsNewCrate         bool
	AuthType           AuthType
	OwnershipVerified  bool
	OwnershipChecked   bool
	DryRunPassed       bool
	DryRunEvidence     string
}

// Report is preflight's full output for a plan.
type Report struct {
	Packages      []PackageReport
	Finishability Finishability
}

// Runner executes the preflight pass.
type Runner struct {
	registry    *registryclient.Client
	dryRun      DryRunner
	credentials CredentialResolver
	oidc        OIDCEnv
	strictOwnership bool
	perPackageDryRun bool
}

// Options configures a Runner.
type Options struct {
	StrictOwnership  bool
	PerPackageDryRun bool
}

// NewRunner creates a preflight Runner.
func NewRunner(registry *registryclient.Client, dryRun DryRunner, credentials CredentialResolver, oidc OIDCEnv, opts Options) *Runner {
	return &Runner{
		registry:         registry,
		dryRun:           dryRun,
		credentials:      credentials,
		oidc:             oidc,
		strictOwnership:  opts.StrictOwnership,
		perPackageDryRun: opts.PerPackageDryRun,
	}
}

// Run executes the preflight pass over plan, returning a per-package
// report and an overall Finishability verdict.
func (r *Runner) Run(ctx context.Context, p *types.ReleasePlan) (*Report, error) {
	report := &Report{Packages: make([]PackageReport, 0, len(p.Packages))}

	token, err := r.credentials.Resolve(p.Registry.Name)
	if err != nil {
		return nil, fmt.Errorf("resolve credentials for %s: %w", p.Registry.Name, err)
	}

	authType := r.classifyAuth(token)

	allHardFailed := false
	allSoftUnproven := false

	workspaceDryPassed := true
	workspaceDryEvidence := ""
	if !r.perPackageDryRun {
		workspaceDryPassed, workspaceDryEvidence, err = r.dryRun.DryRun(ctx, p.WorkspaceRoot, "")
		if err != nil {
			return nil, fmt.Errorf("workspace dry run: %w", err)
		}
	}

	for _, pkg := range p.Packages {
		pr := PackageReport{Name: pkg.Name, Version: pkg.Version, AuthType: authType}

		published, err := r.registry.VersionExists(ctx, p.Registry, pkg.Name, pkg.Version)
		if err != nil {
			return nil, fmt.Errorf("check version_exists for %s: %w", pkg.Name, err)
		}
		pr.AlreadyPublished = published

		exists, err := r.registry.CrateExists(ctx, p.Registry, pkg.Name)
		if err != nil {
			return nil, fmt.Errorf("check crate_exists for %s: %w", pkg.Name, err)
		}
		pr.IsNewCrate = !exists

		if token != "" {
			_, ownerErr := r.registry.ListOwners(ctx, p.Registry, pkg.Name, token)
			pr.OwnershipChecked = true
			pr.OwnershipVerified = ownerErr == nil
		}

		if r.perPackageDryRun {
			passed, evidence, err := r.dryRun.DryRun(ctx, p.WorkspaceRoot, pkg.Name)
			if err != nil {
				return nil, fmt.Errorf("dry run for %s: %w", pkg.Name, err)
			}
			pr.DryRunPassed = passed
			pr.DryRunEvidence = evidence
		} else {
			pr.DryRunPassed = workspaceDryPassed
			pr.DryRunEvidence = workspaceDryEvidence
		}

		if !pr.DryRunPassed {
			allHardFailed = true
		}

		ownershipOK := pr.OwnershipVerified || pr.IsNewCrate
		if r.strictOwnership && pr.OwnershipChecked && !pr.OwnershipVerified {
			ownershipOK = false
		}
		hasAuth := authType == AuthToken || authType == AuthTrustedPublishing

		if !pr.AlreadyPublished {
			if !hasAuth || !ownershipOK {
				allSoftUnproven = true
			}
		}

		report.Packages = append(report.Packages, pr)
	}

	switch {
	case allHardFailed:
		report.Finishability = FinishabilityFailed
	case allSoftUnproven:
		report.Finishability = FinishabilityNotProven
	default:
		report.Finishability = FinishabilityProven
	}

	return report, nil
}

// classifyAuth implements the auth_type decision tree from §4.9.
func (r *Runner) classifyAuth(token string) AuthType {
	if token != "" {
		return AuthToken
	}
	urlPresent := r.oidc.RequestURLPresent()
	tokenPresent := r.oidc.TokenEnvPresent()
	switch {
	case urlPresent && tokenPresent:
		return AuthTrustedPublishing
	case urlPresent != tokenPresent:
		return AuthUnknown
	default:
		return AuthNone
	}
}
