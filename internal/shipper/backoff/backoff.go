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

// Package backoff computes publish-attempt retry delays: an exponential
// curve capped at a maximum, then jittered by a uniformly sampled
// multiplier. The readiness poller (internal/shipper/preflight's sibling,
// wired from the executor) uses the same curve shape but a configurable
// jitter factor; this package's Jitter is fixed to the publish-attempt
// pacing range from §4.7.
package backoff

import (
	"math"
	"time"
)

// Policy is the exponential-backoff configuration: delay(attempt) =
// min(base * 2^(attempt-1), max).
type Policy struct {
	Base time.Duration
	Max  time.Duration
}

// Delay returns the unjittered delay before the given attempt number
// (1-indexed: attempt 1 is the delay before the second try).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	exponent := float64(attempt - 1)
	// Cap the exponent so the multiplier can't overflow float64 before the
	// max-delay clamp below gets a chance to apply.
	const maxExponent = 62
	if exponent > maxExponent {
		exponent = maxExponent
	}
	multiplier := math.Pow(2, exponent)
	delay := time.Duration(float64(p.Base) * multiplier)
	if delay <= 0 || (p.Max > 0 && delay > p.Max) {
		return p.Max
	}
	return delay
}

// Jitter samples a uniform multiplier from [0.5, 1.5] using rand and
// applies it to delay. rand is injected so callers (and tests) control
// determinism; production code passes math/rand's default source.
func Jitter(delay time.Duration, rand func() float64) time.Duration {
	return JitterWithFactor(delay, 0.5, rand)
}

// JitterWithFactor samples a uniform multiplier from [1-factor, 1+factor]
// and applies it to delay. The readiness poller uses this directly with its
// own configurable jitter_factor; Jitter is the fixed factor=0.5 case used
// for publish-attempt pacing.
func JitterWithFactor(delay time.Duration, factor float64, rand func() float64) time.Duration {
	if factor < 0 {
		factor = 0
	}
	if factor > 1 {
		factor = 1
	}
	multiplier := (1 - factor) + rand()*(2*factor)
	return time.Duration(float64(delay) * multiplier)
}
