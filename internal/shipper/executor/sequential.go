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

package executor

import (
	"context"

	"github.com/EffortlessMetrics/shipper/internal/shipper/store"
	"github.com/EffortlessMetrics/shipper/internal/shipper/types"
)

// Sequential runs the engine over a plan's packages one at a time, in plan
// order. A Failed{Permanent} package aborts the run immediately — the
// remaining packages in the plan never start.
type Sequential struct {
	engine *Engine
}

// NewSequential creates a Sequential executor over engine.
func NewSequential(engine *Engine) *Sequential {
	return &Sequential{engine: engine}
}

// Run drives every package in plan.Packages through the engine in order.
func (s *Sequential) Run(ctx context.Context, plan *types.ReleasePlan, state *types.ExecutionState, token string) error {
	if err := s.engine.emit(store.EventExecutionStarted, "", nil); err != nil {
		return err
	}

	for _, pkg := range plan.Packages {
		if err := s.engine.runPackage(ctx, plan, state, token, pkg); err != nil {
			_ = s.engine.emit(store.EventExecutionFinished, "", map[string]string{"outcome": "aborted", "reason": err.Error()})
			return err
		}
	}

	return s.engine.emit(store.EventExecutionFinished, "", map[string]string{"outcome": "completed"})
}
