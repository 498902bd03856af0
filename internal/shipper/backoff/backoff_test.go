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

package backoff

import (
	"testing"
	"time"
)

func TestPolicy_Delay(t *testing.T) {
	p := Policy{Base: time.Second, Max: 30 * time.Second}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{attempt: 1, want: time.Second},
		{attempt: 2, want: 2 * time.Second},
		{attempt: 3, want: 4 * time.Second},
		{attempt: 4, want: 8 * time.Second},
		{attempt: 5, want: 16 * time.Second},
		{attempt: 6, want: 30 * time.Second}, // 32s clamped to max
		{attempt: 100, want: 30 * time.Second},
	}

	for _, tt := range tests {
		if got := p.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestPolicy_Delay_ClampsBelowOne(t *testing.T) {
	p := Policy{Base: time.Second, Max: 30 * time.Second}
	if got := p.Delay(0); got != p.Delay(1) {
		t.Errorf("Delay(0) = %v, want same as Delay(1) = %v", got, p.Delay(1))
	}
}

func TestJitter_Range(t *testing.T) {
	delay := 10 * time.Second

	if got := Jitter(delay, func() float64 { return 0 }); got != 5*time.Second {
		t.Errorf("Jitter() at rand=0 = %v, want 5s", got)
	}
	if got := Jitter(delay, func() float64 { return 1 }); got != 15*time.Second {
		t.Errorf("Jitter() at rand=1 = %v, want 15s", got)
	}
}

func TestJitterWithFactor_ZeroFactorIsNoJitter(t *testing.T) {
	delay := 10 * time.Second
	if got := JitterWithFactor(delay, 0, func() float64 { return 0.37 }); got != delay {
		t.Errorf("JitterWithFactor(factor=0) = %v, want %v unchanged", got, delay)
	}
}

func TestJitterWithFactor_RespectsConfiguredFactor(t *testing.T) {
	delay := 10 * time.Second
	got := JitterWithFactor(delay, 0.2, func() float64 { return 0 })
	want := 8 * time.Second // (1 - 0.2) * 10s
	if got != want {
		t.Errorf("JitterWithFactor() at rand=0, factor=0.2 = %v, want %v", got, want)
	}
}
