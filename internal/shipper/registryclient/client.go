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

// Package registryclient talks to a Cargo-style registry's v1 API and its
// sparse index: version/crate existence checks, owner listings, and
// index-visibility probes. Transport failures and unexpected HTTP statuses
// are returned as shippererr.KindRegistryError; forbidden and not-found
// owner listings share that kind and differ only in message. Body read and
// JSON parse failures are returned as plain wrapped errors.
package registryclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/EffortlessMetrics/shipper/internal/shipper/shippererr"
	"github.com/EffortlessMetrics/shipper/internal/shipper/types"
	"github.com/EffortlessMetrics/shipper/internal/version"
)

const defaultTimeout = 30 * time.Second

var lowerCaser = cases.Lower(language.Und)

// Client queries a single registry's API and sparse index.
type Client struct {
	httpClient *http.Client
	userAgent  string
}

// New creates a Client with the default 30-second per-request timeout.
func New() *Client {
	return &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		userAgent:  fmt.Sprintf("shipper/%s", version.Get()),
	}
}

func (c *Client) do(ctx context.Context, method, url, token string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, shippererr.Wrap(shippererr.KindRegistryError, fmt.Sprintf("request to %s", url), err)
	}
	return resp, nil
}

// VersionExists reports whether name@version exists on the registry via GET
// api_base/api/v1/crates/{name}/{version}.
func (c *Client) VersionExists(ctx context.Context, reg types.Registry, name, ver string) (bool, error) {
	url := fmt.Sprintf("%s/api/v1/crates/%s/%s", strings.TrimRight(reg.APIBase, "/"), name, ver)
	resp, err := c.do(ctx, http.MethodGet, url, "")
	if err != nil {
		return false, err
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, shippererr.New(shippererr.KindRegistryError, fmt.Sprintf("unexpected status %d for %s", resp.StatusCode, url))
	}
}

// CrateExists reports whether name exists on the registry at all, via GET
// api_base/api/v1/crates/{name}.
func (c *Client) CrateExists(ctx context.Context, reg types.Registry, name string) (bool, error) {
	url := fmt.Sprintf("%s/api/v1/crates/%s", strings.TrimRight(reg.APIBase, "/"), name)
	resp, err := c.do(ctx, http.MethodGet, url, "")
	if err != nil {
		return false, err
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, shippererr.New(shippererr.KindRegistryError, fmt.Sprintf("unexpected status %d for %s", resp.StatusCode, url))
	}
}

// ListOwners fetches the current owners of name via GET
// api_base/api/v1/crates/{name}/owners, presenting token in the
// Authorization header.
func (c *Client) ListOwners(ctx context.Context, reg types.Registry, name, token string) ([]types.Owner, error) {
	url := fmt.Sprintf("%s/api/v1/crates/%s/owners", strings.TrimRight(reg.APIBase, "/"), name)
	resp, err := c.do(ctx, http.MethodGet, url, token)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
		var body struct {
			Users []types.Owner `json:"users"`
		}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read owners response: %w", err)
		}
		if err := json.Unmarshal(data, &body); err != nil {
			return nil, fmt.Errorf("parse owners response: %w", err)
		}
		return body.Users, nil
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, shippererr.New(shippererr.KindRegistryError, fmt.Sprintf("forbidden listing owners of %s", name))
	case http.StatusNotFound:
		return nil, shippererr.New(shippererr.KindRegistryError, fmt.Sprintf("crate %s not found", name))
	default:
		return nil, shippererr.New(shippererr.KindRegistryError, fmt.Sprintf("unexpected status %d listing owners of %s", resp.StatusCode, name))
	}
}

// IndexVisible fetches the sparse-index file for name and reports whether
// any of its "vers" lines equal version.
func (c *Client) IndexVisible(ctx context.Context, indexBase, name, ver string) (bool, error) {
	url := fmt.Sprintf("%s/%s", strings.TrimRight(indexBase, "/"), SparseIndexPath(name))
	resp, err := c.do(ctx, http.MethodGet, url, "")
	if err != nil {
		return false, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return false, shippererr.New(shippererr.KindRegistryError, fmt.Sprintf("unexpected status %d for %s", resp.StatusCode, url))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, fmt.Errorf("read index response: %w", err)
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var entry struct {
			Vers string `json:"vers"`
		}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		if entry.Vers == ver {
			return true, nil
		}
	}
	return false, nil
}

// SparseIndexPath computes the Cargo-style sparse-index path for name:
// length 1 -> "1/{name}", length 2 -> "2/{name}", length 3 ->
// "3/{first char}/{name}", else -> "{first 2}/{chars 3-4}/{name}", all
// lowercased via golang.org/x/text/cases to respect Unicode casing rules
// rather than ASCII-only byte lowering.
func SparseIndexPath(name string) string {
	lower := lowerCaser.String(name)
	runes := []rune(lower)

	switch len(runes) {
	case 0:
		return lower
	case 1:
		return fmt.Sprintf("1/%s", lower)
	case 2:
		return fmt.Sprintf("2/%s", lower)
	case 3:
		return fmt.Sprintf("3/%c/%s", runes[0], lower)
	default:
		return fmt.Sprintf("%s/%s/%s", string(runes[0:2]), string(runes[2:4]), lower)
	}
}
