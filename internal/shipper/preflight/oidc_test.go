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

import "testing"

func TestEnvOIDC_BothPresent(t *testing.T) {
	e := &envOIDC{lookupEnv: func(key string) (string, bool) {
		switch key {
		case "ACTIONS_ID_TOKEN_REQUEST_URL":
			return "https://example.invalid/token", true
		case "ACTIONS_ID_TOKEN_REQUEST_TOKEN":
			return "tok", true
		}
		return "", false
	}}

	if !e.RequestURLPresent() {
		t.Error("RequestURLPresent() = false, want true")
	}
	if !e.TokenEnvPresent() {
		t.Error("TokenEnvPresent() = false, want true")
	}
}

func TestEnvOIDC_NeitherPresent(t *testing.T) {
	e := &envOIDC{lookupEnv: func(string) (string, bool) { return "", false }}

	if e.RequestURLPresent() {
		t.Error("RequestURLPresent() = true, want false")
	}
	if e.TokenEnvPresent() {
		t.Error("TokenEnvPresent() = true, want false")
	}
}

func TestEnvOIDC_OnlyURLPresent(t *testing.T) {
	e := &envOIDC{lookupEnv: func(key string) (string, bool) {
		if key == "ACTIONS_ID_TOKEN_REQUEST_URL" {
			return "https://example.invalid/token", true
		}
		return "", false
	}}

	if !e.RequestURLPresent() {
		t.Error("RequestURLPresent() = false, want true")
	}
	if e.TokenEnvPresent() {
		t.Error("TokenEnvPresent() = true, want false")
	}
}
