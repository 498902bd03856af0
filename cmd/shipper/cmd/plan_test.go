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

package cmd

import (
	"reflect"
	"testing"

	"github.com/EffortlessMetrics/shipper/internal/shipper/types"
)

func TestResolveRegistry(t *testing.T) {
	tests := []struct {
		name      string
		apiBase   string
		indexBase string
		want      types.Registry
	}{
		{
			name:    "crates-io",
			apiBase: "https://crates.io",
			want: types.Registry{
				Name:      "crates-io",
				APIBase:   "https://crates.io",
				IndexBase: "https://crates.io",
			},
		},
		{
			name:      "explicit index base wins",
			apiBase:   "https://crates.example.com",
			indexBase: "https://index.example.com",
			want: types.Registry{
				Name:      "explicit index base wins",
				APIBase:   "https://crates.example.com",
				IndexBase: "https://index.example.com",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := resolveRegistry(tt.name, tt.apiBase, tt.indexBase)
			if got != tt.want {
				t.Errorf("resolveRegistry() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParsePackageList(t *testing.T) {
	tests := []struct {
		only string
		want []string
	}{
		{only: "", want: nil},
		{only: "core", want: []string{"core"}},
		{only: "core, utils , cli", want: []string{"core", "utils", "cli"}},
		{only: " , ", want: nil},
	}

	for _, tt := range tests {
		got := parsePackageList(tt.only)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("parsePackageList(%q) = %#v, want %#v", tt.only, got, tt.want)
		}
	}
}
