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

// Package webhook dispatches a best-effort HTTP POST on terminal run events
// (ExecutionFinished, PackageFailed). The target system — Slack, PagerDuty,
// or anything else listening on the far end — is out of scope; a broken or
// unreachable webhook must never fail the run it is reporting on.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/EffortlessMetrics/shipper/internal/shipper/store"
)

const defaultTimeout = 5 * time.Second

// terminalEvents is the set of event types that trigger a dispatch.
var terminalEvents = map[store.EventType]bool{
	store.EventExecutionFinished: true,
	store.EventPackageFailed:     true,
}

// payload is the JSON body POSTed to the webhook URL. DeliveryID lets a
// receiver dedupe retried deliveries; shipper itself does not retry.
type payload struct {
	DeliveryID string          `json:"delivery_id"`
	Type       store.EventType `json:"type"`
	Package    string          `json:"package"`
	Detail     any             `json:"detail,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
}

// Notifier decorates an inner EventEmitter: every Emit call is forwarded to
// inner first, then, for terminal event types, fired at url as a POST. A
// webhook failure is logged and swallowed — it never changes Emit's return
// value, since the audit trail (inner) is the source of truth.
type Notifier struct {
	inner  Emitter
	url    string
	client *http.Client
	logger *slog.Logger
	now    func() time.Time
}

// Emitter is the narrow interface Notifier wraps — satisfied by
// *store.Recorder and by executor.EventEmitter implementations generally.
type Emitter interface {
	Emit(eventType store.EventType, pkg string, detail any) error
}

// New creates a Notifier posting to url, wrapping inner. logger defaults to
// slog.Default() when nil.
func New(inner Emitter, url string, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		inner:  inner,
		url:    url,
		client: &http.Client{Timeout: defaultTimeout},
		logger: logger,
		now:    time.Now,
	}
}

// Emit forwards to the inner emitter and, for terminal event types, fires a
// bounded-timeout POST to the configured webhook URL. The inner emitter's
// error is always returned; webhook dispatch failures are logged only.
func (n *Notifier) Emit(eventType store.EventType, pkg string, detail any) error {
	err := n.inner.Emit(eventType, pkg, detail)

	if n.url != "" && terminalEvents[eventType] {
		n.dispatch(eventType, pkg, detail)
	}

	return err
}

func (n *Notifier) dispatch(eventType store.EventType, pkg string, detail any) {
	body, marshalErr := json.Marshal(payload{
		DeliveryID: uuid.NewString(),
		Type:       eventType,
		Package:    pkg,
		Detail:     detail,
		Timestamp:  n.now(),
	})
	if marshalErr != nil {
		n.logger.Warn("webhook payload marshal failed", "event", eventType, "error", marshalErr)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		n.logger.Warn("webhook request build failed", "event", eventType, "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.Warn("webhook dispatch failed", "event", eventType, "error", err)
		return
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		n.logger.Warn("webhook dispatch rejected", "event", eventType, "status", resp.StatusCode)
	}
}
