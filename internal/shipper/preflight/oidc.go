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

package preflight

import "os"

// envOIDC reports presence of the two Trusted Publishing OIDC environment
// variables GitHub Actions (and compatible CI runners) set: the token
// request URL and the bearer used to exchange it.
type envOIDC struct {
	lookupEnv func(string) (string, bool)
}

// NewEnvOIDC creates an OIDCEnv backed by the process environment.
func NewEnvOIDC() OIDCEnv {
	return &envOIDC{lookupEnv: os.LookupEnv}
}

// RequestURLPresent reports whether ACTIONS_ID_TOKEN_REQUEST_URL is set.
func (e *envOIDC) RequestURLPresent() bool {
	v, ok := e.lookupEnv("ACTIONS_ID_TOKEN_REQUEST_URL")
	return ok && v != ""
}

// TokenEnvPresent reports whether ACTIONS_ID_TOKEN_REQUEST_TOKEN is set.
func (e *envOIDC) TokenEnvPresent() bool {
	v, ok := e.lookupEnv("ACTIONS_ID_TOKEN_REQUEST_TOKEN")
	return ok && v != ""
}
