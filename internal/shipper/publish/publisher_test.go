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

package publish

import "testing"

func TestEnvName(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{name: "crates-io", want: "CRATES_IO"},
		{name: "my.registry", want: "MY_REGISTRY"},
		{name: "Already_Upper", want: "ALREADY_UPPER"},
	}
	for _, tt := range tests {
		if got := envName(tt.name); got != tt.want {
			t.Errorf("envName(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestTailLines(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{name: "empty", in: "", n: 3, want: ""},
		{name: "fewer lines than n", in: "a\nb", n: 5, want: "a\nb"},
		{name: "more lines than n", in: "a\nb\nc\nd", n: 2, want: "c\nd"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tailLines(tt.in, tt.n); got != tt.want {
				t.Errorf("tailLines() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCargoPublisher_Publish_CargoNotFound(t *testing.T) {
	p := &CargoPublisher{lookPath: func(string) (string, error) {
		return "", &exitLookupError{}
	}}

	_, err := p.Publish(nil, Request{PackageName: "foo", RegistryName: "crates-io"}) //nolint:staticcheck // nil context acceptable: lookPath fails before ctx is ever used
	if err == nil {
		t.Fatal("Publish() error = nil, want cargo-not-found error")
	}
}

type exitLookupError struct{}

func (e *exitLookupError) Error() string { return "cargo not found" }
