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

package executor

import (
	"context"
	"time"

	"github.com/EffortlessMetrics/shipper/internal/shipper/backoff"
	"github.com/EffortlessMetrics/shipper/internal/shipper/types"
)

// ReadinessMethod selects which side of the registry the poller probes.
type ReadinessMethod string

// ReadinessMethod values.
const (
	ReadinessAPI   ReadinessMethod = "Api"
	ReadinessIndex ReadinessMethod = "Index"
	ReadinessBoth  ReadinessMethod = "Both"
)

// ReadinessConfig configures the readiness poller for one run.
type ReadinessConfig struct {
	Enabled      bool
	Method       ReadinessMethod
	InitialDelay time.Duration
	MaxDelay     time.Duration
	MaxTotalWait time.Duration
	PollInterval time.Duration
	JitterFactor float64
	IndexBase    string
	PreferIndex  bool
}

// RegistryChecker is the subset of registryclient.Client the readiness
// poller and state machine depend on. Tests substitute a fake so they never
// touch a real registry or the network.
type RegistryChecker interface {
	VersionExists(ctx context.Context, reg types.Registry, name, ver string) (bool, error)
	IndexVisible(ctx context.Context, indexBase, name, ver string) (bool, error)
}

// readinessPoller drives §4.5's algorithm: an optional initial delay, then a
// probe/backoff loop bounded by max_total_wait.
type readinessPoller struct {
	registry RegistryChecker
	sleep    func(time.Duration)
	rand     func() float64
	now      func() time.Time
}

// poll runs the readiness algorithm once for one package, returning whether
// visibility was observed and the evidence trail recorded along the way.
func (p *readinessPoller) poll(ctx context.Context, reg types.Registry, name, version string, cfg ReadinessConfig) (bool, []types.ReadinessEvidence, error) {
	if !cfg.Enabled {
		visible, err := p.registry.VersionExists(ctx, reg, name, version)
		if err != nil {
			return false, nil, err
		}
		return visible, []types.ReadinessEvidence{{Timestamp: p.now(), Attempt: 0, ObservedVisible: visible}}, nil
	}

	start := p.now()
	var evidence []types.ReadinessEvidence

	delayBefore := cfg.InitialDelay
	if delayBefore > 0 {
		p.sleep(delayBefore)
	}

	for attempt := 1; ; attempt++ {
		visible, err := p.probe(ctx, reg, name, version, cfg)
		if err != nil {
			return false, evidence, err
		}

		evidence = append(evidence, types.ReadinessEvidence{
			Timestamp:       p.now(),
			DelayBefore:     delayBefore,
			Attempt:         attempt,
			ObservedVisible: visible,
		})

		if visible {
			return true, evidence, nil
		}
		if p.now().Sub(start) >= cfg.MaxTotalWait {
			return false, evidence, nil
		}

		bounded := backoff.Policy{Base: cfg.PollInterval, Max: cfg.MaxDelay}.Delay(attempt)
		delayBefore = backoff.JitterWithFactor(bounded, cfg.JitterFactor, p.rand)
		p.sleep(delayBefore)
	}
}

// probe runs one visibility check according to cfg.Method. In Both mode it
// checks the preferred side first and only falls through to the other side
// if the preferred side did not report visible.
func (p *readinessPoller) probe(ctx context.Context, reg types.Registry, name, version string, cfg ReadinessConfig) (bool, error) {
	indexBase := cfg.IndexBase
	if indexBase == "" {
		indexBase = reg.IndexBase
	}

	apiCheck := func() (bool, error) { return p.registry.VersionExists(ctx, reg, name, version) }
	indexCheck := func() (bool, error) { return p.registry.IndexVisible(ctx, indexBase, name, version) }

	switch cfg.Method {
	case ReadinessIndex:
		return indexCheck()
	case ReadinessBoth:
		first, second := apiCheck, indexCheck
		if cfg.PreferIndex {
			first, second = indexCheck, apiCheck
		}
		visible, err := first()
		if err != nil {
			return false, err
		}
		if visible {
			return true, nil
		}
		return second()
	default:
		return apiCheck()
	}
}
