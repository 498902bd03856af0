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

package classify

import (
	"testing"

	"github.com/EffortlessMetrics/shipper/internal/shipper/types"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		stdoutTail string
		stderrTail string
		want       types.ErrorClass
	}{
		{name: "429 is retryable", stderrTail: "error: 429 Too Many Requests", want: types.ClassRetryable},
		{name: "connection reset is retryable", stderrTail: "Error: connection reset by peer", want: types.ClassRetryable},
		{name: "server error is retryable", stderrTail: "500 Internal Server Error", want: types.ClassRetryable},
		{name: "502 is retryable", stderrTail: "502 Bad Gateway", want: types.ClassRetryable},
		{name: "missing license is permanent", stderrTail: "error: missing field `license`", want: types.ClassPermanent},
		{name: "yanked is permanent", stderrTail: "crate version has been yanked", want: types.ClassPermanent},
		{name: "forbidden is permanent", stderrTail: "403 Forbidden", want: types.ClassPermanent},
		{name: "unrecognized text is ambiguous", stderrTail: "something strange happened", want: types.ClassAmbiguous},
		{name: "retryable wins over permanent marker", stderrTail: "connection reset while checking license", want: types.ClassRetryable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.stdoutTail, tt.stderrTail)
			if got.Class != tt.want {
				t.Errorf("Classify() class = %v, want %v (message: %s)", got.Class, tt.want, got.Message)
			}
		})
	}
}

func TestClassify_CaseInsensitive(t *testing.T) {
	got := Classify("", "CONNECTION RESET BY PEER")
	if got.Class != types.ClassRetryable {
		t.Errorf("Classify() class = %v, want Retryable for uppercase marker", got.Class)
	}
}
