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

// Package classify turns a publisher's captured stdout/stderr tails into one
// of three verdicts — Retryable, Permanent, Ambiguous — by lowercase
// substring matching. Retryable is checked first and always wins; Permanent
// is checked only if nothing retryable matched; anything left over is
// Ambiguous and never short-circuits the executor on its own.
package classify

import (
	"strings"

	"github.com/EffortlessMetrics/shipper/internal/shipper/types"
)

// retryableMarkers are checked first; any match wins regardless of what
// else appears in the tail.
var retryableMarkers = []string{
	"too many requests",
	"429",
	"timeout",
	"timed out",
	"connection reset",
	"connection refused",
	"connection closed",
	"dns",
	"tls",
	"temporarily unavailable",
	"failed to download",
	"failed to send",
	"server error",
	"502",
	"503",
	"504",
}

// permanentMarkers are checked only once no retryable marker matched.
var permanentMarkers = []string{
	"failed to parse manifest",
	"invalid",
	"missing",
	"license",
	"description",
	"readme",
	"repository",
	"could not compile",
	"compilation failed",
	"failed to verify",
	"package is not allowed to be published",
	"publish is disabled",
	"yanked",
	"forbidden",
	"permission denied",
	"not authorized",
	"unauthorized",
}

// Verdict is the classifier's outcome.
type Verdict struct {
	Class   types.ErrorClass
	Message string
}

// Classify inspects the lowercased concatenation of stdout and stderr tails
// and returns a Verdict per §4.6's ordered rule set.
func Classify(stdoutTail, stderrTail string) Verdict {
	combined := strings.ToLower(stdoutTail + "\n" + stderrTail)

	if marker, ok := firstMatch(combined, retryableMarkers); ok {
		return Verdict{Class: types.ClassRetryable, Message: "matched retryable marker: " + marker}
	}
	if marker, ok := firstMatch(combined, permanentMarkers); ok {
		return Verdict{Class: types.ClassPermanent, Message: "matched permanent marker: " + marker}
	}
	return Verdict{Class: types.ClassAmbiguous, Message: "no classifier marker matched"}
}

func firstMatch(haystack string, markers []string) (string, bool) {
	for _, marker := range markers {
		if strings.Contains(haystack, marker) {
			return marker, true
		}
	}
	return "", false
}
